package analytics

import (
	"math"

	"gorm.io/gorm"

	"pagetrail/internal/timeframe"
)

// PercentChange is the period-over-period change in percent, rounded to
// one decimal. Growth from an empty prior period reports as +100; two
// empty periods report as flat.
func PercentChange(current, previous int64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return math.Round(float64(current-previous)/float64(previous)*1000) / 10
}

// VisitorTrend compares the window's unique visitors against the
// equal-length window immediately preceding it.
func VisitorTrend(db *gorm.DB, tf *timeframe.TimeFrame) (float64, error) {
	current, err := UniqueVisitorsBetween(db, tf.From, tf.To)
	if err != nil {
		return 0, err
	}

	prevFrom, prevTo := tf.PrecedingWindow()
	previous, err := UniqueVisitorsBetween(db, prevFrom, prevTo)
	if err != nil {
		return 0, err
	}

	return PercentChange(current, previous), nil
}
