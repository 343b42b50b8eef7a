package monitor

import "sync"

// DefaultFailureThreshold is how many consecutive failed checks it takes
// before a site requires attention.
const DefaultFailureThreshold = 3

// FailureTracker keeps a per-site consecutive-failure counter. The counter
// is process-lifetime scoped: a restart loses the streak, which is an
// accepted limitation. Safe for concurrent use by checks of different sites.
type FailureTracker struct {
	mu        sync.Mutex
	counts    map[string]int
	threshold int
}

// NewFailureTracker creates a tracker. A threshold <= 0 falls back to
// DefaultFailureThreshold.
func NewFailureTracker(threshold int) *FailureTracker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &FailureTracker{
		counts:    make(map[string]int),
		threshold: threshold,
	}
}

// Record updates the counter for url after a check: any success resets it to
// zero, any failure increments it. Returns the new count.
func (t *FailureTracker) Record(url string, success bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if success {
		t.counts[url] = 0
		return 0
	}
	t.counts[url]++
	return t.counts[url]
}

// Count returns the current consecutive-failure count for url.
func (t *FailureTracker) Count(url string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[url]
}

// RequiresAttention reports whether url has failed at least threshold times
// in a row.
func (t *FailureTracker) RequiresAttention(url string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[url] >= t.threshold
}

// Threshold returns the configured attention threshold.
func (t *FailureTracker) Threshold() int { return t.threshold }

// Forget drops the counter for url entirely, e.g. when the site is removed
// or re-added with a fresh baseline.
func (t *FailureTracker) Forget(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, url)
}
