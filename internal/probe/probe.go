// Package probe performs a single multi-signal observation of a site:
// HTTP reachability, IP and DNS resolution, content fingerprint and an
// optional screenshot. A probe never fails; every failure mode is folded
// into the returned Observation.
package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"sitewatch/internal/models"
	"sitewatch/internal/screenshot"
	"sitewatch/internal/urlutil"
)

// maxBodyBytes caps how much of a response body is read for fingerprinting.
const maxBodyBytes = 10 << 20

// Prober performs observations over HTTP plus the system resolver.
type Prober struct {
	client   *http.Client
	resolver *net.Resolver
	shots    screenshot.Capturer
	logger   *zap.Logger
}

// New creates a Prober. httpTimeout bounds the GET; DNS lookups and the
// screenshot are bounded by the caller's context.
func New(httpTimeout time.Duration, shots screenshot.Capturer, logger *zap.Logger) *Prober {
	return &Prober{
		client: &http.Client{
			Timeout: httpTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		resolver: net.DefaultResolver,
		shots:    shots,
		logger:   logger,
	}
}

// Probe observes rawURL once. The returned Observation always has a
// timestamp and a latency; StatusCode stays 0 when no HTTP response was
// obtained. Reachable means a transport-level success with a status in
// [200,399].
func (p *Prober) Probe(ctx context.Context, rawURL string) models.Observation {
	obs := models.Observation{
		IP:        models.UnknownValue,
		DNS:       models.NoDNSRecords,
		CheckedAt: time.Now().UTC(),
	}

	u, err := urlutil.Normalize(rawURL)
	if err != nil {
		obs.URL = rawURL
		obs.ErrorMessage = err.Error()
		return obs
	}
	obs.URL = u

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		obs.ErrorMessage = err.Error()
		return obs
	}

	var body string
	resp, err := p.client.Do(req)
	obs.ResponseTime = time.Since(start).Seconds()
	if err != nil {
		obs.ErrorMessage = err.Error()
	} else {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		if readErr != nil {
			obs.ErrorMessage = readErr.Error()
		}
		body = string(raw)
		obs.StatusCode = resp.StatusCode
		obs.Reachable = readErr == nil && resp.StatusCode >= 200 && resp.StatusCode < 400
		if resp.StatusCode >= 400 {
			obs.ErrorMessage = fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
	}

	if body != "" {
		obs.Fingerprint = Fingerprint(body)
	}

	// IP and DNS are resolved regardless of the HTTP outcome: a refused
	// connection says nothing about the record set, and a stable record set
	// keeps recovery from looking like an infrastructure change.
	host := urlutil.Host(u)
	if addrs, lookupErr := p.resolver.LookupHost(ctx, host); lookupErr == nil && len(addrs) > 0 {
		obs.IP = addrs[0]
	} else if lookupErr != nil && obs.ErrorMessage == "" {
		obs.ErrorMessage = lookupErr.Error()
	}
	obs.DNS = p.lookupDNS(ctx, host)

	if obs.Reachable {
		path, shotErr := p.shots.Capture(ctx, u)
		if shotErr != nil {
			p.logger.Debug("screenshot capture failed", zap.String("url", u), zap.Error(shotErr))
		} else {
			obs.Screenshot = path
		}
	}

	return obs
}

// lookupDNS resolves A, MX and NS records independently and formats each as
// a "<TYPE>: <value>" line. Per-type failures are swallowed; when nothing
// resolves the sentinel is returned.
func (p *Prober) lookupDNS(ctx context.Context, host string) string {
	var records []string

	if ips, err := p.resolver.LookupIP(ctx, "ip4", host); err == nil {
		for _, ip := range ips {
			records = append(records, "A: "+ip.String())
		}
	}
	if mxs, err := p.resolver.LookupMX(ctx, host); err == nil {
		for _, mx := range mxs {
			records = append(records, fmt.Sprintf("MX: %d %s", mx.Pref, mx.Host))
		}
	}
	if nss, err := p.resolver.LookupNS(ctx, host); err == nil {
		for _, ns := range nss {
			records = append(records, "NS: "+ns.Host)
		}
	}

	if len(records) == 0 {
		return models.NoDNSRecords
	}
	return strings.Join(records, "\n")
}
