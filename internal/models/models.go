package models

import "time"

// UnknownValue is the sentinel stored for an IP or DNS field that could not
// be resolved. Comparing against it still counts as a change; severity
// classification decides how loud that change is.
const UnknownValue = "Unknown"

// NoDNSRecords is stored when none of the queried record types resolved.
const NoDNSRecords = "No DNS records found"

// Site is a monitored URL and its last observed baseline state.
// The normalized URL is the primary key; re-adding the same URL overwrites
// the record.
type Site struct {
	URL        string    `json:"url"`
	Interval   int       `json:"interval"` // minutes between checks, >= 1
	LastCheck  time.Time `json:"last_check"`
	LastHash   string    `json:"-"` // content fingerprint of the last check
	IP         string    `json:"ip"`
	DNS        string    `json:"-"` // formatted record-set blob, one record per line
	Screenshot string    `json:"screenshot,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Observation is the result of a single probe. It is never persisted as a
// whole; a projection of it is merged into the Site baseline and into the
// check history. StatusCode 0 means no HTTP response was obtained.
type Observation struct {
	URL          string    `json:"url"`
	Reachable    bool      `json:"reachable"`
	StatusCode   int       `json:"status_code"`
	ResponseTime float64   `json:"response_time"` // seconds, sub-second precision
	Fingerprint  string    `json:"-"`
	IP           string    `json:"ip"`
	DNS          string    `json:"dns"`
	Screenshot   string    `json:"screenshot,omitempty"` // empty when capture failed or was skipped
	ErrorMessage string    `json:"error_message,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// CheckEntry is one row of the append-only check history for a site.
type CheckEntry struct {
	ID                  string    `json:"id"`
	URL                 string    `json:"-"`
	CheckedAt           time.Time `json:"checked_at"`
	StatusCode          int       `json:"status_code"`
	ResponseTime        float64   `json:"response_time"`
	Detail              string    `json:"detail,omitempty"`
	Attention           bool      `json:"attention"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Anomaly is one site's observation classified as containing at least one
// significant change or error facet. It is built per tick and handed to the
// notification layer; it is never persisted.
type Anomaly struct {
	URL                 string      `json:"url"`
	Observation         Observation `json:"observation"`
	Issues              []string    `json:"issues"`
	DNSChanged          bool        `json:"dns_changed"`
	IPChanged           bool        `json:"ip_changed"`
	ContentChanged      bool        `json:"content_changed"`
	StatusCodeError     bool        `json:"status_code_error"`
	HighLatency         bool        `json:"high_latency"`
	CriticalChanges     bool        `json:"critical_changes"`
	RequiresAttention   bool        `json:"requires_attention"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
}

// Report summarizes the current health of all monitored sites.
type Report struct {
	GeneratedAt     time.Time     `json:"generated_at"`
	TotalSites      int           `json:"total_sites"`
	Healthy         int           `json:"healthy"`
	Warning         int           `json:"warning"`
	Critical        int           `json:"critical"`
	AvgResponseTime float64       `json:"avg_response_time"`
	SuccessRatio    float64       `json:"success_ratio"`
	Issues          []ReportIssue `json:"issues,omitempty"`
}

// ReportIssue is one site's outstanding problem in a Report.
type ReportIssue struct {
	URL    string `json:"url"`
	Detail string `json:"detail"`
}
