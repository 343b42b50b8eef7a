package screenshot

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromeCapturer renders pages in headless Chrome and writes full-page PNGs
// into a directory. A single browser instance backs all captures, so calls
// are serialized; the mutex keeps one slow page from corrupting another's
// session while HTTP-only probes proceed unaffected.
type ChromeCapturer struct {
	dir     string
	timeout time.Duration
	logger  *zap.Logger

	mu sync.Mutex
}

// NewChrome creates a capturer writing screenshots under dir. Each capture
// is bounded by timeout.
func NewChrome(dir string, timeout time.Duration, logger *zap.Logger) (*ChromeCapturer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot dir: %w", err)
	}
	return &ChromeCapturer{dir: dir, timeout: timeout, logger: logger}, nil
}

// Capture navigates to url and writes a full-page screenshot. The file name
// is the MD5 of the url plus a timestamp, so successive captures of the same
// site do not overwrite each other.
func (c *ChromeCapturer) Capture(ctx context.Context, url string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var buf []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(1920, 1080),
		chromedp.Navigate(url),
		chromedp.FullScreenshot(&buf, 90),
	)
	if err != nil {
		return "", fmt.Errorf("screenshot of %s failed: %w", url, err)
	}

	sum := md5.Sum([]byte(url))
	filename := fmt.Sprintf("%s_%s.png", hex.EncodeToString(sum[:]), time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(c.dir, filename)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	c.logger.Debug("screenshot captured", zap.String("url", url), zap.String("path", path))
	return path, nil
}
