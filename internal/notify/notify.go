// Package notify consumes anomaly batches from the monitor loop and maps
// them to alert severities. This stands in for the chat-facing alerting
// surface; the severity contract is the part the core depends on.
package notify

import (
	"context"

	"go.uber.org/zap"

	"sitewatch/internal/models"
)

// Severity of an alert, from informational change to admin-paging problem.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// String returns the severity label used in alerts.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Classify maps an anomaly to an alert severity. Server errors, critical
// facet changes (IP/DNS) and failure streaks at the attention threshold page
// admins; client errors warn; everything else (latency, content churn) is
// informational.
func Classify(a models.Anomaly) Severity {
	switch {
	case a.Observation.StatusCode >= 500, a.CriticalChanges, a.RequiresAttention:
		return SeverityCritical
	case a.Observation.StatusCode >= 400:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Notifier delivers anomaly batches and systemic errors to whoever is
// listening.
type Notifier interface {
	Notify(ctx context.Context, anomalies []models.Anomaly)
	SystemError(ctx context.Context, err error)
}

// LogNotifier writes alerts to the structured log. It is the default sink
// when no chat integration is wired in.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs one alert per anomaly at a level matching its severity.
func (n *LogNotifier) Notify(ctx context.Context, anomalies []models.Anomaly) {
	for _, a := range anomalies {
		fields := []zap.Field{
			zap.String("url", a.URL),
			zap.String("severity", Classify(a).String()),
			zap.Int("status_code", a.Observation.StatusCode),
			zap.Float64("response_time", a.Observation.ResponseTime),
			zap.Int("consecutive_failures", a.ConsecutiveFailures),
			zap.Strings("issues", a.Issues),
		}
		if a.Observation.ErrorMessage != "" {
			fields = append(fields, zap.String("error", a.Observation.ErrorMessage))
		}
		switch Classify(a) {
		case SeverityCritical:
			n.logger.Error("website alert", fields...)
		case SeverityWarning:
			n.logger.Warn("website alert", fields...)
		default:
			n.logger.Info("website change detected", fields...)
		}
	}
}

// SystemError reports a failure of the monitoring loop itself. This is the
// only path that should surface as a loud "monitoring system error" rather
// than a per-site alert.
func (n *LogNotifier) SystemError(ctx context.Context, err error) {
	n.logger.Error("monitoring system error", zap.Error(err))
}
