package timeframe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketForDays(t *testing.T) {
	tests := []struct {
		days int
		want BucketSize
	}{
		{1, BucketSizeDay},
		{7, BucketSizeDay},
		{30, BucketSizeDay},
		{31, BucketSizeWeek},
		{90, BucketSizeWeek},
		{180, BucketSizeWeek},
		{181, BucketSizeMonth},
		{365, BucketSizeMonth},
		{730, BucketSizeMonth}, // custom windows beyond a year stay monthly
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketForDays(tt.days), "days=%d", tt.days)
	}
}

func TestGroupByExpression(t *testing.T) {
	day := &TimeFrame{BucketSize: BucketSizeDay}
	assert.Equal(t, "strftime('%Y-%m-%d', start_time)", day.GroupByExpression("start_time"))

	month := &TimeFrame{BucketSize: BucketSizeMonth}
	assert.Equal(t, "strftime('%Y-%m', start_time)", month.GroupByExpression("start_time"))

	week := &TimeFrame{BucketSize: BucketSizeWeek}
	assert.Contains(t, week.GroupByExpression("start_time"), "start of day")
}

func TestGenerateDatePointsDaily(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 7, 15, 30, 0, 0, time.UTC)

	tf, err := NewTimeFrame(from, to, "test")
	require.NoError(t, err)
	require.Equal(t, BucketSizeDay, tf.BucketSize)

	points := tf.GenerateDatePoints()
	require.Len(t, points, 7)
	assert.Equal(t, "2026-08-01", points[0])
	assert.Equal(t, "2026-08-07", points[6])
}

func TestGenerateDatePointsWeekly(t *testing.T) {
	// 90 day window -> weekly buckets aligned to Monday
	from := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC) // Wednesday
	to := from.AddDate(0, 0, 89)

	tf, err := NewTimeFrame(from, to, "test")
	require.NoError(t, err)
	require.Equal(t, BucketSizeWeek, tf.BucketSize)

	points := tf.GenerateDatePoints()
	require.NotEmpty(t, points)
	// First bucket is the Monday of the week containing the window start
	assert.Equal(t, "2026-03-02", points[0])
	for _, p := range points {
		day, err := time.Parse("2006-01-02", p)
		require.NoError(t, err)
		assert.Equal(t, time.Monday, day.Weekday())
	}
}

func TestGenerateDatePointsMonthly(t *testing.T) {
	from := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC)

	tf, err := NewTimeFrame(from, to, "test")
	require.NoError(t, err)
	require.Equal(t, BucketSizeMonth, tf.BucketSize)

	points := tf.GenerateDatePoints()
	require.Len(t, points, 12)
	assert.Equal(t, "2026-01", points[0])
	assert.Equal(t, "2026-12", points[11])
}

func TestBuildTimeSeriesPointsZeroFills(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 5, 23, 59, 59, 0, time.UTC)

	tf, err := NewTimeFrame(from, to, "test")
	require.NoError(t, err)

	grouped := []DateStat{
		{Date: "2026-08-02", Count: 5},
		{Date: "2026-08-04", Count: 2},
	}

	series := tf.BuildTimeSeriesPoints(grouped)
	require.Len(t, series, 5)
	assert.Equal(t, DateStat{Date: "2026-08-01", Count: 0}, series[0])
	assert.Equal(t, DateStat{Date: "2026-08-02", Count: 5}, series[1])
	assert.Equal(t, DateStat{Date: "2026-08-03", Count: 0}, series[2])
	assert.Equal(t, DateStat{Date: "2026-08-04", Count: 2}, series[3])
	assert.Equal(t, DateStat{Date: "2026-08-05", Count: 0}, series[4])
}

func TestPrecedingWindow(t *testing.T) {
	from := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 14, 23, 59, 59, 0, time.UTC)

	tf, err := NewTimeFrame(from, to, "test")
	require.NoError(t, err)

	prevFrom, prevTo := tf.PrecedingWindow()
	assert.True(t, prevTo.Before(from))
	assert.Equal(t, to.Sub(from), prevTo.Sub(prevFrom))
}

func TestNewTimeFrameRejectsInvertedWindow(t *testing.T) {
	from := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	_, err := NewTimeFrame(from, to, "test")
	assert.Error(t, err)
}
