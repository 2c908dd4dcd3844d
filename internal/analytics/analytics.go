// Package analytics computes on-demand visitor statistics over the raw
// session and page view tables. All aggregation happens in SQL; nothing
// is precomputed or cached, so a snapshot always reflects what is stored.
//
// The package is organized into focused modules:
//   - visitors.go: visitor counts, series, and hourly buckets
//   - sessions.go: session totals, bounce rate, and duration averages
//   - pages.go: page view totals, top pages, and time-on-page
//   - breakdowns.go: dimension breakdowns with percentages
//   - comparison.go: period-over-period trend
//   - snapshot.go: concurrent assembly of the full stats payload
package analytics

import "pagetrail/internal/timeframe"

// BreakdownStat is one row of a dimension breakdown. Percent is the
// share of sessions in the window, rounded to one decimal.
type BreakdownStat struct {
	Label   string  `json:"label"`
	Count   int64   `json:"count"`
	Percent float64 `json:"percent"`
}

// PageStat is one row of the top-pages table. Title is the one captured
// on the page's first recorded view in the window.
type PageStat struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	Views int64  `json:"views"`
}

// HourStat is one bucket of today's hourly visitor histogram.
type HourStat struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// Snapshot is the full stats payload for one time frame.
type Snapshot struct {
	Label          string `json:"label"`
	OnlineSessions int64  `json:"onlineSessions"`

	UniqueVisitors    int64 `json:"uniqueVisitors"`
	VisitorsToday     int64 `json:"visitorsToday"`
	TotalVisitors     int64 `json:"totalVisitors"`
	NewVisitors       int64 `json:"newVisitors"`
	ReturningVisitors int64 `json:"returningVisitors"`

	TotalSessions      int64   `json:"totalSessions"`
	TotalPageViews     int64   `json:"totalPageViews"`
	BounceRate         int     `json:"bounceRate"`
	AvgSessionDuration int     `json:"avgSessionDuration"`
	AvgPagesPerSession float64 `json:"avgPagesPerSession"`
	AvgTimeOnPage      int     `json:"avgTimeOnPage"`

	VisitorTrend float64 `json:"visitorTrend"`

	TrafficSources []BreakdownStat `json:"trafficSources"`
	Countries      []BreakdownStat `json:"countries"`
	Devices        []BreakdownStat `json:"devices"`
	Browsers       []BreakdownStat `json:"browsers"`

	TopPages       []PageStat           `json:"topPages"`
	VisitorSeries  []timeframe.DateStat `json:"visitorSeries"`
	PageViewSeries []timeframe.DateStat `json:"pageViewSeries"`
	HourlyToday    []HourStat           `json:"hourlyToday"`
}
