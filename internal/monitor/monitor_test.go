package monitor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sitewatch/internal/models"
	"sitewatch/internal/storage"
)

// Simple in-memory storage for testing.
type testStore struct {
	mu         sync.RWMutex
	sites      map[string]models.Site
	history    map[string][]models.CheckEntry
	failUpsert map[string]bool
	failList   bool
}

func newTestStore() *testStore {
	return &testStore{
		sites:      make(map[string]models.Site),
		history:    make(map[string][]models.CheckEntry),
		failUpsert: make(map[string]bool),
	}
}

func (s *testStore) UpsertSite(ctx context.Context, site *models.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert[site.URL] {
		return errors.New("disk full")
	}
	s.sites[site.URL] = *site
	return nil
}

func (s *testStore) GetSite(ctx context.Context, url string) (*models.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if site, ok := s.sites[url]; ok {
		return &site, nil
	}
	return nil, storage.ErrNotFound
}

func (s *testStore) ListSites(ctx context.Context) ([]models.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failList {
		return nil, errors.New("database is locked")
	}
	var sites []models.Site
	for _, site := range s.sites {
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].URL < sites[j].URL })
	return sites, nil
}

func (s *testStore) DeleteSite(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sites[url]; !ok {
		return storage.ErrNotFound
	}
	delete(s.sites, url)
	return nil
}

func (s *testStore) AppendCheckHistory(ctx context.Context, entry *models.CheckEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[entry.URL] = append(s.history[entry.URL], *entry)
	return nil
}

func (s *testStore) RecentChecks(ctx context.Context, url string, since time.Time) ([]models.CheckEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []models.CheckEntry
	for _, e := range s.history[url] {
		if e.CheckedAt.After(since) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CheckedAt.After(entries[j].CheckedAt) })
	return entries, nil
}

// fakeProber returns scripted observations per URL and counts probes.
type fakeProber struct {
	mu        sync.Mutex
	responses map[string]models.Observation
	probes    map[string]int
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		responses: make(map[string]models.Observation),
		probes:    make(map[string]int),
	}
}

func (f *fakeProber) set(url string, obs models.Observation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obs.URL = url
	f.responses[url] = obs
}

func (f *fakeProber) probeCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes[url]
}

func (f *fakeProber) Probe(ctx context.Context, url string) models.Observation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes[url]++
	obs, ok := f.responses[url]
	if !ok {
		return models.Observation{
			URL: url, IP: models.UnknownValue, DNS: models.NoDNSRecords,
			ErrorMessage: "no scripted response", CheckedAt: time.Now().UTC(),
		}
	}
	return obs
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func okObservation(at time.Time) models.Observation {
	return models.Observation{
		Reachable:    true,
		StatusCode:   200,
		ResponseTime: 0.2,
		Fingerprint:  "hash-a",
		IP:           "93.184.216.34",
		DNS:          "A: 93.184.216.34",
		CheckedAt:    at,
	}
}

func errObservation(at time.Time, status int) models.Observation {
	obs := okObservation(at)
	obs.Reachable = false
	obs.StatusCode = status
	obs.Fingerprint = "hash-error-page"
	obs.ErrorMessage = "HTTP 503 Service Unavailable"
	return obs
}

func newTestMonitor(store storage.Storer, prober Prober, at time.Time) *Monitor {
	m := New(store, prober, zap.NewNop(), Options{MaxConcurrency: 2})
	m.now = func() time.Time { return at }
	return m
}

func TestIsDue(t *testing.T) {
	site := models.Site{Interval: 30, LastCheck: t0}

	assert.False(t, isDue(site, t0.Add(10*time.Minute)), "10 minutes elapsed, interval 30")
	assert.False(t, isDue(site, t0.Add(29*time.Minute+59*time.Second)))
	assert.True(t, isDue(site, t0.Add(30*time.Minute)), "due exactly at the interval")
	assert.True(t, isDue(site, t0.Add(31*time.Minute)))
}

func TestAddSiteNormalizesAndStoresBaseline(t *testing.T) {
	store := newTestStore()
	prober := newFakeProber()
	prober.set("https://example.com", okObservation(t0))
	m := newTestMonitor(store, prober, t0)

	site, obs, err := m.AddSite(context.Background(), "example.com", 30)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", site.URL)
	assert.Equal(t, 30, site.Interval)
	assert.Equal(t, "hash-a", site.LastHash)
	assert.True(t, obs.Reachable)

	stored, err := store.GetSite(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "93.184.216.34", stored.IP)
}

func TestAddSiteDefaultInterval(t *testing.T) {
	store := newTestStore()
	prober := newFakeProber()
	prober.set("https://example.com", okObservation(t0))
	m := newTestMonitor(store, prober, t0)

	site, _, err := m.AddSite(context.Background(), "example.com", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, site.Interval)
}

func TestAddSiteToleratesFailedInitialProbe(t *testing.T) {
	store := newTestStore()
	prober := newFakeProber() // unscripted URL yields a degraded observation
	m := newTestMonitor(store, prober, t0)

	site, obs, err := m.AddSite(context.Background(), "down.example", 30)
	require.NoError(t, err, "a failed initial probe must not reject the add")
	assert.False(t, obs.Reachable)
	assert.Equal(t, models.UnknownValue, site.IP)
}

func TestCheckAllIntervalGating(t *testing.T) {
	store := newTestStore()
	prober := newFakeProber()
	url := "https://example.com"
	prober.set(url, okObservation(t0))
	m := newTestMonitor(store, prober, t0)
	_, _, err := m.AddSite(context.Background(), url, 30)
	require.NoError(t, err)
	addProbes := prober.probeCount(url)

	// 10 minutes later: not due, no probe.
	m.now = func() time.Time { return t0.Add(10 * time.Minute) }
	anomalies, err := m.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, anomalies)
	assert.Equal(t, addProbes, prober.probeCount(url))

	// 31 minutes later: due.
	m.now = func() time.Time { return t0.Add(31 * time.Minute) }
	prober.set(url, okObservation(t0.Add(31*time.Minute)))
	_, err = m.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, addProbes+1, prober.probeCount(url))
}

func TestCheckAllEndToEndCriticalAnomaly(t *testing.T) {
	store := newTestStore()
	prober := newFakeProber()
	url := "https://example.com"
	prober.set(url, okObservation(t0))
	m := newTestMonitor(store, prober, t0)
	_, _, err := m.AddSite(context.Background(), "example.com", 30)
	require.NoError(t, err)

	later := t0.Add(31 * time.Minute)
	m.now = func() time.Time { return later }
	prober.set(url, errObservation(later, 503))

	anomalies, err := m.CheckAll(context.Background())
	require.NoError(t, err)
	require.Len(t, anomalies, 1)

	a := anomalies[0]
	assert.Equal(t, url, a.URL)
	assert.True(t, a.StatusCodeError)
	assert.True(t, a.CriticalChanges)
	assert.Equal(t, 1, a.ConsecutiveFailures)
	assert.False(t, a.RequiresAttention)
	assert.Contains(t, a.Issues, "Server error: HTTP 503")

	// Baseline and history reflect the new reality.
	stored, err := store.GetSite(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, later, stored.LastCheck)
	assert.Equal(t, "hash-error-page", stored.LastHash)

	entries, err := store.RecentChecks(context.Background(), url, t0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 503, entries[0].StatusCode)
	assert.Equal(t, 1, entries[0].ConsecutiveFailures)
}

func TestCheckAllCleanChecksProduceNoAnomalies(t *testing.T) {
	store := newTestStore()
	prober := newFakeProber()
	url := "https://example.com"
	prober.set(url, okObservation(t0))
	m := newTestMonitor(store, prober, t0)
	_, _, err := m.AddSite(context.Background(), url, 30)
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		at := t0.Add(time.Duration(i) * 31 * time.Minute)
		m.now = func() time.Time { return at }
		prober.set(url, okObservation(at))

		anomalies, err := m.CheckAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, anomalies, "clean check %d", i)

		stored, err := store.GetSite(context.Background(), url)
		require.NoError(t, err)
		assert.Equal(t, "hash-a", stored.LastHash, "fingerprint stays identical")
		assert.Equal(t, at, stored.LastCheck, "baseline persisted even when clean")
	}
}

func TestCheckAllAttentionAfterThreshold(t *testing.T) {
	store := newTestStore()
	prober := newFakeProber()
	url := "https://example.com"
	prober.set(url, okObservation(t0))
	m := newTestMonitor(store, prober, t0)
	_, _, err := m.AddSite(context.Background(), url, 30)
	require.NoError(t, err)

	// Transport-level failures: status 0, no facet fires, stays silent
	// until the consecutive-failure threshold.
	for i := 1; i <= 3; i++ {
		at := t0.Add(time.Duration(i) * 31 * time.Minute)
		m.now = func() time.Time { return at }
		down := okObservation(at)
		down.Reachable = false
		down.StatusCode = 0
		down.Fingerprint = ""
		down.ErrorMessage = "connection refused"
		prober.set(url, down)

		anomalies, err := m.CheckAll(context.Background())
		require.NoError(t, err)
		if i < 3 {
			assert.Empty(t, anomalies, "failure %d stays silent", i)
		} else {
			require.Len(t, anomalies, 1, "failure %d crosses the threshold", i)
			a := anomalies[0]
			assert.True(t, a.RequiresAttention)
			assert.Equal(t, 3, a.ConsecutiveFailures)
			assert.Equal(t, []string{"Unreachable for 3 consecutive checks"}, a.Issues)
		}
	}
}

func TestRemoveThenReAddGetsFreshBaseline(t *testing.T) {
	store := newTestStore()
	prober := newFakeProber()
	url := "https://example.com"
	prober.set(url, okObservation(t0))
	m := newTestMonitor(store, prober, t0)
	_, _, err := m.AddSite(context.Background(), url, 30)
	require.NoError(t, err)

	require.NoError(t, m.RemoveSite(context.Background(), url))
	_, err = store.GetSite(context.Background(), url)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Re-add with different content; the old fingerprint must not be
	// compared against.
	reAddAt := t0.Add(time.Hour)
	m.now = func() time.Time { return reAddAt }
	fresh := okObservation(reAddAt)
	fresh.Fingerprint = "hash-b"
	prober.set(url, fresh)
	_, _, err = m.AddSite(context.Background(), url, 30)
	require.NoError(t, err)

	tickAt := reAddAt.Add(31 * time.Minute)
	m.now = func() time.Time { return tickAt }
	fresh.CheckedAt = tickAt
	prober.set(url, fresh)
	anomalies, err := m.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, anomalies, "re-added site compares against its fresh baseline only")
}

func TestCheckAllIsolatesPersistenceFailures(t *testing.T) {
	store := newTestStore()
	prober := newFakeProber()
	good := "https://good.example"
	bad := "https://bad.example"
	prober.set(good, okObservation(t0))
	prober.set(bad, okObservation(t0))
	m := newTestMonitor(store, prober, t0)
	_, _, err := m.AddSite(context.Background(), good, 30)
	require.NoError(t, err)
	_, _, err = m.AddSite(context.Background(), bad, 30)
	require.NoError(t, err)

	store.mu.Lock()
	store.failUpsert[bad] = true
	store.mu.Unlock()

	later := t0.Add(31 * time.Minute)
	m.now = func() time.Time { return later }
	prober.set(good, errObservation(later, 503))
	prober.set(bad, errObservation(later, 503))

	anomalies, err := m.CheckAll(context.Background())
	require.NoError(t, err, "one site's persistence failure must not fail the batch")
	require.Len(t, anomalies, 1, "the failing site is skipped, not reported")
	assert.Equal(t, good, anomalies[0].URL)
}

func TestCheckAllSystemicErrorPropagates(t *testing.T) {
	store := newTestStore()
	store.failList = true
	m := newTestMonitor(store, newFakeProber(), t0)

	_, err := m.CheckAll(context.Background())
	assert.Error(t, err, "failure to list sites is the systemic error case")
}

func TestReport(t *testing.T) {
	store := newTestStore()
	prober := newFakeProber()
	healthy := "https://healthy.example"
	broken := "https://broken.example"
	prober.set(healthy, okObservation(t0))
	prober.set(broken, okObservation(t0))
	m := newTestMonitor(store, prober, t0)
	_, _, err := m.AddSite(context.Background(), healthy, 30)
	require.NoError(t, err)
	_, _, err = m.AddSite(context.Background(), broken, 30)
	require.NoError(t, err)

	later := t0.Add(31 * time.Minute)
	m.now = func() time.Time { return later }
	prober.set(healthy, okObservation(later))
	prober.set(broken, errObservation(later, 503))
	_, err = m.CheckAll(context.Background())
	require.NoError(t, err)

	report, err := m.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalSites)
	assert.Equal(t, 1, report.Healthy)
	assert.Equal(t, 1, report.Critical)
	assert.InDelta(t, 0.5, report.SuccessRatio, 0.001)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, broken, report.Issues[0].URL)
}
