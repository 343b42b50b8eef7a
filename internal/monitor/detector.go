package monitor

import (
	"fmt"
	"strings"

	"sitewatch/internal/models"
)

// HighLatencyThreshold is the response time, in seconds, above which a check
// is flagged as slow.
const HighLatencyThreshold = 5.0

// CleanDescription is the canonical description of a check with no
// significant changes. Downstream formatting relies on this exact sentence.
const CleanDescription = "No significant changes detected"

// Detection is the result of comparing a new observation against a site's
// last persisted baseline.
type Detection struct {
	Anomalous bool

	StatusCodeError bool
	IPChanged       bool
	DNSChanged      bool
	HighLatency     bool
	ContentChanged  bool

	// CriticalChanges marks changes that escalate to admin-level
	// notification: server errors and IP/DNS changes. Client errors,
	// latency and content churn stay non-critical.
	CriticalChanges bool

	// Issues holds one human-readable line per true facet, in fixed
	// priority order: status code, IP, DNS, latency, content.
	Issues []string
}

// Description renders the issue list, or the clean sentence when nothing
// changed.
func (d Detection) Description() string {
	if len(d.Issues) == 0 {
		return CleanDescription
	}
	return strings.Join(d.Issues, "\n")
}

// Detect compares obs against the prior baseline. Every facet is evaluated
// independently; none short-circuits another.
//
// IP and DNS comparisons are plain string inequality, so an Unknown→known
// transition after a failure streak counts as changed. That can raise a
// false alarm on the first successful check after downtime; the policy
// prefers a spurious alert over missing a hijacked record.
//
// Latency and content need an actual HTTP response to mean anything, so
// they are skipped when none was obtained (StatusCode 0).
func Detect(prior models.Site, obs models.Observation) Detection {
	var d Detection
	gotResponse := obs.StatusCode != 0

	if obs.StatusCode >= 400 {
		d.StatusCodeError = true
		d.Issues = append(d.Issues, fmt.Sprintf("Server error: HTTP %d", obs.StatusCode))
	}

	if prior.IP != obs.IP {
		d.IPChanged = true
		d.Issues = append(d.Issues, fmt.Sprintf("IP changed: %s → %s", prior.IP, obs.IP))
	}

	if prior.DNS != obs.DNS {
		d.DNSChanged = true
		d.Issues = append(d.Issues, "DNS records modified")
	}

	if gotResponse && obs.ResponseTime > HighLatencyThreshold {
		d.HighLatency = true
		d.Issues = append(d.Issues, fmt.Sprintf("High latency detected: %.2fs", obs.ResponseTime))
	}

	if gotResponse && obs.Fingerprint != "" && prior.LastHash != obs.Fingerprint {
		d.ContentChanged = true
		d.Issues = append(d.Issues, "Content structure has changed")
	}

	d.Anomalous = d.StatusCodeError || d.IPChanged || d.DNSChanged || d.HighLatency || d.ContentChanged
	d.CriticalChanges = obs.StatusCode >= 500 || d.IPChanged || d.DNSChanged
	return d
}
