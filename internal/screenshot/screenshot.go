// Package screenshot captures page images for monitored sites.
// Capture failures are never fatal to a probe; callers treat an error as
// "no screenshot this time".
package screenshot

import "context"

// Capturer takes a screenshot of a URL and returns the path of the written
// image file. Implementations are best-effort: an error means no screenshot
// is available for this check.
type Capturer interface {
	Capture(ctx context.Context, url string) (string, error)
}

// Disabled is a Capturer that never produces a screenshot. Used when
// screenshots are turned off or no browser is available.
type Disabled struct{}

// Capture always reports that no screenshot is available.
func (Disabled) Capture(ctx context.Context, url string) (string, error) {
	return "", nil
}
