package analytics

import (
	"fmt"
	"math"

	"gorm.io/gorm"

	"pagetrail/internal/timeframe"
)

// TotalSessionsInTimeFrame counts sessions starting inside the window.
func TotalSessionsInTimeFrame(db *gorm.DB, tf *timeframe.TimeFrame) (int64, error) {
	var result struct {
		Count int64
	}
	err := db.Raw(`
        SELECT COUNT(*) AS count
        FROM visitor_sessions
        WHERE start_time BETWEEN ? AND ?
    `, tf.From.UTC(), tf.To.UTC()).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error counting sessions: %w", err)
	}
	return result.Count, nil
}

// BounceRateInTimeFrame computes the share of bounced sessions in the
// window as a whole percentage. A window with no sessions has rate zero.
func BounceRateInTimeFrame(db *gorm.DB, tf *timeframe.TimeFrame) (int, error) {
	var result struct {
		Total   int64
		Bounced int64
	}
	err := db.Raw(`
        SELECT
            COUNT(*) AS total,
            COALESCE(SUM(bounced), 0) AS bounced
        FROM visitor_sessions
        WHERE start_time BETWEEN ? AND ?
    `, tf.From.UTC(), tf.To.UTC()).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error computing bounce rate: %w", err)
	}
	if result.Total == 0 {
		return 0, nil
	}
	return int(math.Round(float64(result.Bounced) / float64(result.Total) * 100)), nil
}

// AvgSessionDurationInTimeFrame averages session duration in seconds
// over sessions with a nonzero duration; still-open sessions are excluded.
func AvgSessionDurationInTimeFrame(db *gorm.DB, tf *timeframe.TimeFrame) (int, error) {
	var result struct {
		Avg float64
	}
	err := db.Raw(`
        SELECT COALESCE(AVG(duration), 0) AS avg
        FROM visitor_sessions
        WHERE start_time BETWEEN ? AND ? AND duration > 0
    `, tf.From.UTC(), tf.To.UTC()).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error computing average session duration: %w", err)
	}
	return int(math.Round(result.Avg)), nil
}

// AvgPagesPerSessionInTimeFrame averages page views over sessions that
// recorded at least one view, rounded to one decimal.
func AvgPagesPerSessionInTimeFrame(db *gorm.DB, tf *timeframe.TimeFrame) (float64, error) {
	var result struct {
		Avg float64
	}
	err := db.Raw(`
        SELECT COALESCE(AVG(page_views), 0) AS avg
        FROM visitor_sessions
        WHERE start_time BETWEEN ? AND ? AND page_views > 0
    `, tf.From.UTC(), tf.To.UTC()).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error computing pages per session: %w", err)
	}
	return math.Round(result.Avg*10) / 10, nil
}
