package analytics

import (
	"fmt"
	"math"

	"gorm.io/gorm"

	"pagetrail/internal/timeframe"
)

// TopPagesLimit caps the top-pages table.
const TopPagesLimit = 10

// TotalPageViewsInTimeFrame counts page views inside the window.
func TotalPageViewsInTimeFrame(db *gorm.DB, tf *timeframe.TimeFrame) (int64, error) {
	var result struct {
		Count int64
	}
	err := db.Raw(`
        SELECT COUNT(*) AS count
        FROM page_views
        WHERE timestamp BETWEEN ? AND ?
    `, tf.From.UTC(), tf.To.UTC()).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error counting page views: %w", err)
	}
	return result.Count, nil
}

// TopPagesInTimeFrame returns the most viewed paths with the title seen
// on each path's earliest view in the window. SQLite resolves the bare
// title column from the row selected by MIN(timestamp). Ties break on
// path so the ordering is stable.
func TopPagesInTimeFrame(db *gorm.DB, tf *timeframe.TimeFrame) ([]PageStat, error) {
	var results []PageStat
	err := db.Raw(`
        SELECT
            path,
            title,
            COUNT(*) AS views,
            MIN(timestamp) AS first_seen
        FROM page_views
        WHERE timestamp BETWEEN ? AND ?
        GROUP BY path
        ORDER BY views DESC, path ASC
        LIMIT ?
    `, tf.From.UTC(), tf.To.UTC(), TopPagesLimit).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching top pages: %w", err)
	}
	return results, nil
}

// AggregatedPageViewsInTimeFrame returns the page view time series for
// the window, bucketed like the visitor series.
func AggregatedPageViewsInTimeFrame(db *gorm.DB, tf *timeframe.TimeFrame) ([]timeframe.DateStat, error) {
	groupBy := tf.GroupByExpression("timestamp")

	var results []timeframe.DateStat
	query := fmt.Sprintf(`
        SELECT
            %s AS date,
            COUNT(*) AS count
        FROM page_views
        WHERE timestamp BETWEEN ? AND ?
        GROUP BY date
        ORDER BY date ASC
    `, groupBy)

	err := db.Raw(query, tf.From.UTC(), tf.To.UTC()).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching aggregated page views: %w", err)
	}

	return tf.BuildTimeSeriesPoints(results), nil
}

// AvgTimeOnPageInTimeFrame averages time on page in seconds over views
// that received an exit beacon. Views without one stay at zero and are
// excluded from the average.
func AvgTimeOnPageInTimeFrame(db *gorm.DB, tf *timeframe.TimeFrame) (int, error) {
	var result struct {
		Avg float64
	}
	err := db.Raw(`
        SELECT COALESCE(AVG(time_on_page), 0) AS avg
        FROM page_views
        WHERE timestamp BETWEEN ? AND ? AND time_on_page > 0
    `, tf.From.UTC(), tf.To.UTC()).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error computing average time on page: %w", err)
	}
	return int(math.Round(result.Avg)), nil
}
