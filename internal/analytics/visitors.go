package analytics

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"pagetrail/internal/timeframe"
)

// UniqueVisitorsBetween counts distinct visitors with a session starting
// inside the window.
func UniqueVisitorsBetween(db *gorm.DB, from, to time.Time) (int64, error) {
	var result struct {
		Count int64
	}
	err := db.Raw(`
        SELECT COUNT(DISTINCT visitor_id) AS count
        FROM visitor_sessions
        WHERE start_time BETWEEN ? AND ?
    `, from.UTC(), to.UTC()).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error counting unique visitors: %w", err)
	}
	return result.Count, nil
}

// UniqueVisitorsInTimeFrame counts distinct visitors in the time frame.
func UniqueVisitorsInTimeFrame(db *gorm.DB, tf *timeframe.TimeFrame) (int64, error) {
	return UniqueVisitorsBetween(db, tf.From, tf.To)
}

// TotalUniqueVisitors counts distinct visitors over all stored sessions.
func TotalUniqueVisitors(db *gorm.DB) (int64, error) {
	var result struct {
		Count int64
	}
	err := db.Raw(`SELECT COUNT(DISTINCT visitor_id) AS count FROM visitor_sessions`).
		Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error counting total visitors: %w", err)
	}
	return result.Count, nil
}

// UniqueVisitorsToday counts distinct visitors since midnight UTC.
func UniqueVisitorsToday(db *gorm.DB, now time.Time) (int64, error) {
	utc := now.UTC()
	startOfDay := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return UniqueVisitorsBetween(db, startOfDay, utc)
}

// NewVsReturningVisitors splits the window's distinct visitors by whether
// any of their sessions carried the new-visitor flag.
func NewVsReturningVisitors(db *gorm.DB, tf *timeframe.TimeFrame) (newVisitors, returningVisitors int64, err error) {
	var result struct {
		NewCount   int64
		TotalCount int64
	}
	err = db.Raw(`
        SELECT
            COUNT(DISTINCT CASE WHEN is_new_visitor = 1 THEN visitor_id END) AS new_count,
            COUNT(DISTINCT visitor_id) AS total_count
        FROM visitor_sessions
        WHERE start_time BETWEEN ? AND ?
    `, tf.From.UTC(), tf.To.UTC()).Scan(&result).Error
	if err != nil {
		return 0, 0, fmt.Errorf("error splitting new vs returning visitors: %w", err)
	}
	return result.NewCount, result.TotalCount - result.NewCount, nil
}

// AggregatedVisitorsInTimeFrame returns the visitor time series for the
// window, bucketed by the frame's bucket size with empty buckets at zero.
func AggregatedVisitorsInTimeFrame(db *gorm.DB, tf *timeframe.TimeFrame) ([]timeframe.DateStat, error) {
	groupBy := tf.GroupByExpression("start_time")

	var results []timeframe.DateStat
	query := fmt.Sprintf(`
        SELECT
            %s AS date,
            COUNT(DISTINCT visitor_id) AS count
        FROM visitor_sessions
        WHERE start_time BETWEEN ? AND ?
        GROUP BY date
        ORDER BY date ASC
    `, groupBy)

	err := db.Raw(query, tf.From.UTC(), tf.To.UTC()).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching aggregated visitors: %w", err)
	}

	return tf.BuildTimeSeriesPoints(results), nil
}

// HourlyVisitorsToday returns 24 buckets of distinct visitors for the
// current UTC day, zero-filled.
func HourlyVisitorsToday(db *gorm.DB, now time.Time) ([]HourStat, error) {
	utc := now.UTC()
	startOfDay := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)

	var rows []struct {
		Hour  int
		Count int64
	}
	err := db.Raw(`
        SELECT
            CAST(strftime('%H', start_time) AS INTEGER) AS hour,
            COUNT(DISTINCT visitor_id) AS count
        FROM visitor_sessions
        WHERE start_time BETWEEN ? AND ?
        GROUP BY hour
        ORDER BY hour ASC
    `, startOfDay, utc).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching hourly visitors: %w", err)
	}

	buckets := make([]HourStat, 24)
	for i := range buckets {
		buckets[i].Hour = i
	}
	for _, row := range rows {
		if row.Hour >= 0 && row.Hour < 24 {
			buckets[row.Hour].Count = row.Count
		}
	}
	return buckets, nil
}
