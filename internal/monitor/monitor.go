// Package monitor is the core monitoring engine: per-site scheduling,
// multi-signal change detection, consecutive-failure tracking and anomaly
// reporting. The chat/notification surface and the storage backend are
// collaborators behind small interfaces.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"sitewatch/internal/models"
	"sitewatch/internal/storage"
	"sitewatch/internal/urlutil"
)

// DefaultInterval is the check interval, in minutes, applied when an add
// request does not carry one.
const DefaultInterval = 30

// Prober performs one observation of one site. Implementations never return
// an error; failures are folded into the Observation.
type Prober interface {
	Probe(ctx context.Context, url string) models.Observation
}

// Options tunes a Monitor. Zero values fall back to sane defaults.
type Options struct {
	MaxConcurrency   int           // parallel site checks per tick (default 8)
	ProbeDeadline    time.Duration // hard per-site ceiling (default 60s)
	DefaultInterval  int           // minutes (default 30)
	FailureThreshold int           // consecutive failures before attention (default 3)
}

// Monitor owns the scheduling loop state: the failure tracker, the prober
// and the persistence handle. One Monitor serves all sites.
type Monitor struct {
	store    storage.Storer
	prober   Prober
	failures *FailureTracker
	logger   *zap.Logger

	maxConcurrency  int
	probeDeadline   time.Duration
	defaultInterval int

	now func() time.Time

	// tickMu keeps ticks from overlapping: if the previous tick is still in
	// flight the next one is skipped, so per-site state transitions stay
	// serializable.
	tickMu sync.Mutex
}

// New creates a Monitor.
func New(store storage.Storer, prober Prober, logger *zap.Logger, opts Options) *Monitor {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.ProbeDeadline <= 0 {
		opts.ProbeDeadline = 60 * time.Second
	}
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = DefaultInterval
	}
	return &Monitor{
		store:           store,
		prober:          prober,
		failures:        NewFailureTracker(opts.FailureThreshold),
		logger:          logger,
		maxConcurrency:  opts.MaxConcurrency,
		probeDeadline:   opts.ProbeDeadline,
		defaultInterval: opts.DefaultInterval,
		now:             time.Now,
	}
}

// FailureThreshold returns the configured attention threshold.
func (m *Monitor) FailureThreshold() int { return m.failures.Threshold() }

// AddSite registers a site for monitoring. An immediate best-effort probe
// establishes the baseline; probe failures are recorded rather than
// rejecting the add. Re-adding an existing URL overwrites its record and
// forgets any previous failure streak, so the new baseline starts fresh.
// An interval below 1 minute falls back to the default; the caller-facing
// layer applies the policy floor before calling here.
func (m *Monitor) AddSite(ctx context.Context, rawURL string, interval int) (*models.Site, models.Observation, error) {
	u, err := urlutil.Normalize(rawURL)
	if err != nil {
		return nil, models.Observation{}, err
	}
	if interval < 1 {
		interval = m.defaultInterval
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeDeadline)
	obs := m.prober.Probe(probeCtx, u)
	cancel()

	site := &models.Site{
		URL:        u,
		Interval:   interval,
		LastCheck:  obs.CheckedAt,
		LastHash:   obs.Fingerprint,
		IP:         obs.IP,
		DNS:        obs.DNS,
		Screenshot: obs.Screenshot,
		CreatedAt:  m.now().UTC(),
	}
	if err := m.store.UpsertSite(ctx, site); err != nil {
		return nil, obs, fmt.Errorf("failed to store site: %w", err)
	}
	m.failures.Forget(u)

	m.logger.Info("site added",
		zap.String("url", u),
		zap.Int("interval_minutes", interval),
		zap.Bool("reachable", obs.Reachable))
	return site, obs, nil
}

// RemoveSite stops monitoring a URL. Check history is kept for later trend
// queries.
func (m *Monitor) RemoveSite(ctx context.Context, rawURL string) error {
	u, err := urlutil.Normalize(rawURL)
	if err != nil {
		return err
	}
	if err := m.store.DeleteSite(ctx, u); err != nil {
		return err
	}
	m.failures.Forget(u)
	m.logger.Info("site removed", zap.String("url", u))
	return nil
}

// SiteStatus returns the stored baseline for a URL.
func (m *Monitor) SiteStatus(ctx context.Context, rawURL string) (*models.Site, error) {
	u, err := urlutil.Normalize(rawURL)
	if err != nil {
		return nil, err
	}
	return m.store.GetSite(ctx, u)
}

// ListSites returns all monitored sites.
func (m *Monitor) ListSites(ctx context.Context) ([]models.Site, error) {
	return m.store.ListSites(ctx)
}

// CheckAll runs one tick of the monitor loop: every due site is probed,
// compared against its baseline, persisted and logged to history, and the
// anomalies found are returned as a batch. A failure while checking one site
// never aborts the batch; only a systemic failure (listing sites) returns an
// error. If the previous tick is still running, this one is skipped.
func (m *Monitor) CheckAll(ctx context.Context) ([]models.Anomaly, error) {
	if !m.tickMu.TryLock() {
		m.logger.Warn("previous tick still in flight, skipping this one")
		return nil, nil
	}
	defer m.tickMu.Unlock()

	sites, err := m.store.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	now := m.now()
	var due []models.Site
	for _, site := range sites {
		if isDue(site, now) {
			due = append(due, site)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	m.logger.Info("tick started", zap.Int("sites", len(sites)), zap.Int("due", len(due)))

	jobs := make(chan models.Site)
	var (
		mu        sync.Mutex
		anomalies []models.Anomaly
		wg        sync.WaitGroup
	)
	workers := m.maxConcurrency
	if workers > len(due) {
		workers = len(due)
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for site := range jobs {
				if anomaly := m.checkSite(ctx, site); anomaly != nil {
					mu.Lock()
					anomalies = append(anomalies, *anomaly)
					mu.Unlock()
				}
			}
		}()
	}
	for _, site := range due {
		jobs <- site
	}
	close(jobs)
	wg.Wait()

	m.logger.Info("tick finished", zap.Int("checked", len(due)), zap.Int("anomalies", len(anomalies)))
	return anomalies, nil
}

// isDue reports whether enough time has elapsed since the site's last check.
func isDue(site models.Site, now time.Time) bool {
	return now.Sub(site.LastCheck) >= time.Duration(site.Interval)*time.Minute
}

// checkSite runs one site's check end to end: probe, failure tracking,
// change detection, baseline persistence and history append. A persistence
// failure (or a panic) skips the site for this tick and yields no anomaly.
func (m *Monitor) checkSite(ctx context.Context, site models.Site) (anomaly *models.Anomaly) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic while checking site",
				zap.String("url", site.URL), zap.Any("panic", r))
			anomaly = nil
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, m.probeDeadline)
	obs := m.prober.Probe(probeCtx, site.URL)
	cancel()

	failures := m.failures.Record(site.URL, obs.Reachable)
	attention := failures >= m.failures.Threshold()
	det := Detect(site, obs)

	// The baseline tracks latest reality even on clean checks, so interval
	// gating and the next diff stay correct.
	updated := site
	updated.LastCheck = obs.CheckedAt
	updated.LastHash = obs.Fingerprint
	updated.IP = obs.IP
	updated.DNS = obs.DNS
	updated.Screenshot = obs.Screenshot
	if err := m.store.UpsertSite(ctx, &updated); err != nil {
		m.logger.Error("failed to persist baseline, skipping site this tick",
			zap.String("url", site.URL), zap.Error(err))
		return nil
	}

	detail := det.Description()
	if obs.ErrorMessage != "" {
		detail = obs.ErrorMessage
	}
	entry := &models.CheckEntry{
		URL:                 site.URL,
		CheckedAt:           obs.CheckedAt,
		StatusCode:          obs.StatusCode,
		ResponseTime:        obs.ResponseTime,
		Detail:              detail,
		Attention:           attention,
		ConsecutiveFailures: failures,
	}
	if err := m.store.AppendCheckHistory(ctx, entry); err != nil {
		m.logger.Error("failed to append check history, skipping site this tick",
			zap.String("url", site.URL), zap.Error(err))
		return nil
	}

	if !det.Anomalous && !attention {
		return nil
	}

	issues := det.Issues
	if len(issues) == 0 && attention {
		issues = []string{fmt.Sprintf("Unreachable for %d consecutive checks", failures)}
	}
	m.logger.Warn("anomaly detected",
		zap.String("url", site.URL),
		zap.Int("status_code", obs.StatusCode),
		zap.Bool("critical", det.CriticalChanges),
		zap.Int("consecutive_failures", failures),
		zap.Strings("issues", issues))
	return &models.Anomaly{
		URL:                 site.URL,
		Observation:         obs,
		Issues:              issues,
		DNSChanged:          det.DNSChanged,
		IPChanged:           det.IPChanged,
		ContentChanged:      det.ContentChanged,
		StatusCodeError:     det.StatusCodeError,
		HighLatency:         det.HighLatency,
		CriticalChanges:     det.CriticalChanges,
		RequiresAttention:   attention,
		ConsecutiveFailures: failures,
	}
}
