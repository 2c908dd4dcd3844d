// Package timeframe turns a requested reporting range into concrete query
// boundaries, a bucket size for time series, and zero-filled series points.
package timeframe

import (
	"fmt"
	"math"
	"time"
)

// DateStat is a single time series point keyed by its bucket label.
type DateStat struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// BucketSize is the granularity of a time series.
type BucketSize string

const (
	BucketSizeDay   BucketSize = "day"
	BucketSizeWeek  BucketSize = "week"
	BucketSizeMonth BucketSize = "month"
)

// TimeFrame represents a reporting window between two points in time.
type TimeFrame struct {
	From       time.Time
	To         time.Time
	Label      string
	BucketSize BucketSize
}

// NewTimeFrame builds a time frame for the given window, deriving the
// bucket size from the window length.
func NewTimeFrame(from, to time.Time, label string) (*TimeFrame, error) {
	if from.After(to) {
		return nil, fmt.Errorf("from must be before to")
	}
	return &TimeFrame{
		From:       from,
		To:         to,
		Label:      label,
		BucketSize: BucketForDays(windowDays(from, to)),
	}, nil
}

// BucketForDays picks the series granularity for a window of the given
// length: daily up to 30 days, weekly up to 180 days, monthly beyond that.
// Monthly is the fallback for any longer window, including custom windows
// past a year.
func BucketForDays(days int) BucketSize {
	switch {
	case days <= 30:
		return BucketSizeDay
	case days <= 180:
		return BucketSizeWeek
	default:
		return BucketSizeMonth
	}
}

func windowDays(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}

// Days returns the length of the window in days, rounded up.
func (tf *TimeFrame) Days() int {
	return windowDays(tf.From, tf.To)
}

// GroupByExpression returns the SQLite expression that groups rows of the
// given timestamp column into this time frame's buckets. Weeks start on
// Monday.
func (tf *TimeFrame) GroupByExpression(column string) string {
	switch tf.BucketSize {
	case BucketSizeWeek:
		return fmt.Sprintf("date(%s, 'start of day', '-' || ((strftime('%%w', %s) + 6) %% 7) || ' days')", column, column)
	case BucketSizeMonth:
		return fmt.Sprintf("strftime('%%Y-%%m', %s)", column)
	default:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
	}
}

// bucketKey formats a time as the bucket label produced by GroupByExpression.
func (tf *TimeFrame) bucketKey(t time.Time) string {
	if tf.BucketSize == BucketSizeMonth {
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// truncateToBucket aligns a time to the start of its bucket in UTC.
func (tf *TimeFrame) truncateToBucket(t time.Time) time.Time {
	utc := t.UTC()
	year, month, day := utc.Year(), utc.Month(), utc.Day()

	switch tf.BucketSize {
	case BucketSizeMonth:
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	case BucketSizeWeek:
		weekday := int(utc.Weekday())
		if weekday == 0 { // Sunday
			weekday = 7
		}
		return time.Date(year, month, day-(weekday-1), 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}
}

// GenerateDatePoints returns the ordered bucket labels covering the full
// window, including empty buckets.
func (tf *TimeFrame) GenerateDatePoints() []string {
	points := []string{}
	current := tf.truncateToBucket(tf.From)

	// Hard cap to guard against a runaway loop on a malformed window
	maxPoints := 1000

	for len(points) < maxPoints && !current.After(tf.To) {
		points = append(points, tf.bucketKey(current))

		switch tf.BucketSize {
		case BucketSizeMonth:
			current = current.AddDate(0, 1, 0)
		case BucketSizeWeek:
			current = current.AddDate(0, 0, 7)
		default:
			current = current.AddDate(0, 0, 1)
		}
	}

	return points
}

// BuildTimeSeriesPoints expands grouped query results into a complete,
// zero-filled series: one point per bucket over the whole window, empty
// buckets counted as zero.
func (tf *TimeFrame) BuildTimeSeriesPoints(groupedResults []DateStat) []DateStat {
	dateLabels := tf.GenerateDatePoints()
	results := make([]DateStat, len(dateLabels))

	resultsMap := make(map[string]int, len(groupedResults))
	for _, result := range groupedResults {
		resultsMap[result.Date] = result.Count
	}

	for i, label := range dateLabels {
		results[i] = DateStat{
			Date:  label,
			Count: resultsMap[label],
		}
	}

	return results
}

// PrecedingWindow returns the window of equal length immediately before
// this one, used for period-over-period comparisons.
func (tf *TimeFrame) PrecedingWindow() (time.Time, time.Time) {
	length := tf.To.Sub(tf.From)
	prevTo := tf.From.Add(-time.Second)
	prevFrom := prevTo.Add(-length)
	return prevFrom, prevTo
}
