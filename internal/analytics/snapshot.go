package analytics

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"pagetrail/internal/pkg/async"
	"pagetrail/internal/timeframe"
	"pagetrail/internal/tracking"
)

// snapshotWorkers bounds the queries running concurrently per snapshot.
const snapshotWorkers = 5

type visitorSplit struct {
	newVisitors       int64
	returningVisitors int64
}

// BuildSnapshot assembles the full stats payload for a time frame. The
// independent queries fan out through a worker pool; if any of them
// fails the whole snapshot fails, never a partial payload.
func BuildSnapshot(ctx context.Context, db *gorm.DB, tf *timeframe.TimeFrame) (*Snapshot, error) {
	now := time.Now().UTC()

	tasks := []async.Task{
		{Name: "uniqueVisitors", Execute: func() (interface{}, error) {
			return UniqueVisitorsInTimeFrame(db, tf)
		}},
		{Name: "visitorsToday", Execute: func() (interface{}, error) {
			return UniqueVisitorsToday(db, now)
		}},
		{Name: "totalVisitors", Execute: func() (interface{}, error) {
			return TotalUniqueVisitors(db)
		}},
		{Name: "visitorSplit", Execute: func() (interface{}, error) {
			newVisitors, returningVisitors, err := NewVsReturningVisitors(db, tf)
			return visitorSplit{newVisitors, returningVisitors}, err
		}},
		{Name: "totalSessions", Execute: func() (interface{}, error) {
			return TotalSessionsInTimeFrame(db, tf)
		}},
		{Name: "totalPageViews", Execute: func() (interface{}, error) {
			return TotalPageViewsInTimeFrame(db, tf)
		}},
		{Name: "bounceRate", Execute: func() (interface{}, error) {
			return BounceRateInTimeFrame(db, tf)
		}},
		{Name: "avgSessionDuration", Execute: func() (interface{}, error) {
			return AvgSessionDurationInTimeFrame(db, tf)
		}},
		{Name: "avgPagesPerSession", Execute: func() (interface{}, error) {
			return AvgPagesPerSessionInTimeFrame(db, tf)
		}},
		{Name: "avgTimeOnPage", Execute: func() (interface{}, error) {
			return AvgTimeOnPageInTimeFrame(db, tf)
		}},
		{Name: "visitorTrend", Execute: func() (interface{}, error) {
			return VisitorTrend(db, tf)
		}},
		{Name: "trafficSources", Execute: func() (interface{}, error) {
			return TrafficSourceBreakdown(db, tf)
		}},
		{Name: "countries", Execute: func() (interface{}, error) {
			return CountryBreakdown(db, tf)
		}},
		{Name: "devices", Execute: func() (interface{}, error) {
			return DeviceBreakdown(db, tf)
		}},
		{Name: "browsers", Execute: func() (interface{}, error) {
			return BrowserBreakdown(db, tf)
		}},
		{Name: "topPages", Execute: func() (interface{}, error) {
			return TopPagesInTimeFrame(db, tf)
		}},
		{Name: "visitorSeries", Execute: func() (interface{}, error) {
			return AggregatedVisitorsInTimeFrame(db, tf)
		}},
		{Name: "pageViewSeries", Execute: func() (interface{}, error) {
			return AggregatedPageViewsInTimeFrame(db, tf)
		}},
		{Name: "hourlyToday", Execute: func() (interface{}, error) {
			return HourlyVisitorsToday(db, now)
		}},
		{Name: "onlineSessions", Execute: func() (interface{}, error) {
			return tracking.CountOnlineSessions(db)
		}},
	}

	pool := async.NewPool(snapshotWorkers)
	results := pool.Execute(ctx, tasks)

	if len(results) != len(tasks) {
		return nil, fmt.Errorf("snapshot interrupted: %w", ctx.Err())
	}
	for name, result := range results {
		if result.Err != nil {
			return nil, fmt.Errorf("snapshot query %s failed: %w", name, result.Err)
		}
	}

	split := results["visitorSplit"].Data.(visitorSplit)

	return &Snapshot{
		Label:              tf.Label,
		OnlineSessions:     results["onlineSessions"].Data.(int64),
		UniqueVisitors:     results["uniqueVisitors"].Data.(int64),
		VisitorsToday:      results["visitorsToday"].Data.(int64),
		TotalVisitors:      results["totalVisitors"].Data.(int64),
		NewVisitors:        split.newVisitors,
		ReturningVisitors:  split.returningVisitors,
		TotalSessions:      results["totalSessions"].Data.(int64),
		TotalPageViews:     results["totalPageViews"].Data.(int64),
		BounceRate:         results["bounceRate"].Data.(int),
		AvgSessionDuration: results["avgSessionDuration"].Data.(int),
		AvgPagesPerSession: results["avgPagesPerSession"].Data.(float64),
		AvgTimeOnPage:      results["avgTimeOnPage"].Data.(int),
		VisitorTrend:       results["visitorTrend"].Data.(float64),
		TrafficSources:     results["trafficSources"].Data.([]BreakdownStat),
		Countries:          results["countries"].Data.([]BreakdownStat),
		Devices:            results["devices"].Data.([]BreakdownStat),
		Browsers:           results["browsers"].Data.([]BreakdownStat),
		TopPages:           results["topPages"].Data.([]PageStat),
		VisitorSeries:      results["visitorSeries"].Data.([]timeframe.DateStat),
		PageViewSeries:     results["pageViewSeries"].Data.([]timeframe.DateStat),
		HourlyToday:        results["hourlyToday"].Data.([]HourStat),
	}, nil
}
