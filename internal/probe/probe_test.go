package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sitewatch/internal/models"
)

type fakeCapturer struct {
	calls int
	path  string
	err   error
}

func (f *fakeCapturer) Capture(ctx context.Context, url string) (string, error) {
	f.calls++
	return f.path, f.err
}

func newTestProber(shots *fakeCapturer) *Prober {
	return New(5*time.Second, shots, zap.NewNop())
}

func TestProbeReachableSite(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>ok</p></body></html>`))
	}))
	defer ts.Close()

	shots := &fakeCapturer{path: "screenshots/test.png"}
	p := newTestProber(shots)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	obs := p.Probe(ctx, ts.URL)

	assert.True(t, obs.Reachable)
	assert.Equal(t, http.StatusOK, obs.StatusCode)
	assert.Empty(t, obs.ErrorMessage)
	assert.NotEmpty(t, obs.Fingerprint)
	assert.Greater(t, obs.ResponseTime, 0.0)
	assert.Equal(t, "127.0.0.1", obs.IP)
	assert.Contains(t, obs.DNS, "A: 127.0.0.1")
	assert.Equal(t, "screenshots/test.png", obs.Screenshot)
	assert.Equal(t, 1, shots.calls)
	assert.False(t, obs.CheckedAt.IsZero())
}

func TestProbeHTTPErrorKeepsStatusCode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	shots := &fakeCapturer{}
	p := newTestProber(shots)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	obs := p.Probe(ctx, ts.URL)

	assert.False(t, obs.Reachable, "4xx/5xx observations are degraded")
	assert.Equal(t, http.StatusServiceUnavailable, obs.StatusCode, "real status kept even when >= 400")
	assert.Contains(t, obs.ErrorMessage, "503")
	assert.NotEmpty(t, obs.Fingerprint, "error pages still fingerprint")
	assert.Equal(t, 0, shots.calls, "no screenshot for degraded observations")
	assert.Empty(t, obs.Screenshot)
}

func TestProbeUnreachableSite(t *testing.T) {
	// Grab a port that is guaranteed closed.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	shots := &fakeCapturer{}
	p := newTestProber(shots)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	obs := p.Probe(ctx, url)

	assert.False(t, obs.Reachable)
	assert.Equal(t, 0, obs.StatusCode, "status 0 is the no-response sentinel")
	assert.NotEmpty(t, obs.ErrorMessage)
	assert.Empty(t, obs.Fingerprint)
	assert.Empty(t, obs.Screenshot)
	assert.Equal(t, 0, shots.calls)
	// IP resolution is independent of the HTTP outcome.
	assert.Equal(t, "127.0.0.1", obs.IP)
}

func TestProbeInvalidURL(t *testing.T) {
	p := newTestProber(&fakeCapturer{})
	obs := p.Probe(context.Background(), "")

	assert.False(t, obs.Reachable)
	assert.Equal(t, 0, obs.StatusCode)
	assert.NotEmpty(t, obs.ErrorMessage)
	assert.Equal(t, models.UnknownValue, obs.IP)
	assert.Equal(t, models.NoDNSRecords, obs.DNS)
}

func TestProbeScreenshotFailureIsNotFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer ts.Close()

	shots := &fakeCapturer{err: assert.AnError}
	p := newTestProber(shots)

	obs := p.Probe(context.Background(), ts.URL)
	require.True(t, obs.Reachable)
	assert.Empty(t, obs.Screenshot)
	assert.Empty(t, obs.ErrorMessage)
}

func TestProbeNormalizesURL(t *testing.T) {
	p := newTestProber(&fakeCapturer{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The probe itself prefixes https:// when the scheme is missing; the
	// connection will fail, but the normalized URL must be recorded.
	obs := p.Probe(ctx, "localhost:1")
	assert.Equal(t, "https://localhost:1", obs.URL)
}
