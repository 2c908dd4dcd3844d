package analytics

import (
	"fmt"
	"math"

	"gorm.io/gorm"

	"pagetrail/internal/timeframe"
)

const (
	countryBreakdownLimit = 10
	browserBreakdownLimit = 5
	deviceBreakdownLimit  = 5
	sourceBreakdownLimit  = 10
)

// breakdownByColumn groups sessions in the window by one dimension column
// and attaches each group's share of all sessions in the window. The
// column name is interpolated into the query, so callers pass constants
// only.
func breakdownByColumn(db *gorm.DB, tf *timeframe.TimeFrame, column string, limit int) ([]BreakdownStat, error) {
	var rows []struct {
		Label string
		Count int64
	}
	query := fmt.Sprintf(`
        SELECT
            %s AS label,
            COUNT(*) AS count
        FROM visitor_sessions
        WHERE start_time BETWEEN ? AND ? AND %s != ''
        GROUP BY label
        ORDER BY count DESC, label ASC
        LIMIT ?
    `, column, column)

	err := db.Raw(query, tf.From.UTC(), tf.To.UTC(), limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching %s breakdown: %w", column, err)
	}

	total, err := TotalSessionsInTimeFrame(db, tf)
	if err != nil {
		return nil, err
	}

	results := make([]BreakdownStat, len(rows))
	for i, row := range rows {
		results[i] = BreakdownStat{
			Label: row.Label,
			Count: row.Count,
		}
		if total > 0 {
			results[i].Percent = math.Round(float64(row.Count)/float64(total)*1000) / 10
		}
	}
	return results, nil
}

// TrafficSourceBreakdown groups sessions by classified traffic source.
func TrafficSourceBreakdown(db *gorm.DB, tf *timeframe.TimeFrame) ([]BreakdownStat, error) {
	return breakdownByColumn(db, tf, "traffic_source", sourceBreakdownLimit)
}

// CountryBreakdown groups sessions by country code, top ten.
func CountryBreakdown(db *gorm.DB, tf *timeframe.TimeFrame) ([]BreakdownStat, error) {
	return breakdownByColumn(db, tf, "country", countryBreakdownLimit)
}

// DeviceBreakdown groups sessions by device type.
func DeviceBreakdown(db *gorm.DB, tf *timeframe.TimeFrame) ([]BreakdownStat, error) {
	return breakdownByColumn(db, tf, "device_type", deviceBreakdownLimit)
}

// BrowserBreakdown groups sessions by browser, top five.
func BrowserBreakdown(db *gorm.DB, tf *timeframe.TimeFrame) ([]BreakdownStat, error) {
	return breakdownByColumn(db, tf, "browser", browserBreakdownLimit)
}
