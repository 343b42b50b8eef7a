package monitor

import (
	"context"
	"time"

	"sitewatch/internal/models"
)

// Report summarizes the last day of checks across all monitored sites:
// health buckets from each site's latest check, average response time and a
// simple success ratio over the window, plus outstanding issues.
func (m *Monitor) Report(ctx context.Context) (*models.Report, error) {
	sites, err := m.store.ListSites(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	report := &models.Report{
		GeneratedAt: now,
		TotalSites:  len(sites),
	}

	var (
		latencySum  float64
		latencyN    int
		successes   int
		totalChecks int
	)
	since := now.Add(-24 * time.Hour)
	for _, site := range sites {
		entries, err := m.store.RecentChecks(ctx, site.URL, since)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			totalChecks++
			if e.StatusCode >= 200 && e.StatusCode < 400 {
				successes++
			}
		}
		if len(entries) == 0 {
			continue
		}

		latest := entries[0]
		switch {
		case latest.StatusCode >= 500 || latest.StatusCode == 0 || latest.Attention:
			report.Critical++
		case latest.StatusCode >= 400:
			report.Warning++
		default:
			report.Healthy++
		}
		if latest.StatusCode != 0 {
			latencySum += latest.ResponseTime
			latencyN++
		}
		if latest.Detail != "" && latest.Detail != CleanDescription {
			report.Issues = append(report.Issues, models.ReportIssue{
				URL:    site.URL,
				Detail: latest.Detail,
			})
		}
	}

	if latencyN > 0 {
		report.AvgResponseTime = latencySum / float64(latencyN)
	}
	if totalChecks > 0 {
		report.SuccessRatio = float64(successes) / float64(totalChecks)
	}
	return report, nil
}
