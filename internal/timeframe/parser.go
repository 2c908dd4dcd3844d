package timeframe

import (
	"fmt"
	"time"
)

// Named range presets accepted by the stats API.
const (
	RangeLast7Days   = "7d"
	RangeLast30Days  = "30d"
	RangeLast6Months = "6m"
	RangeLastYear    = "1y"
)

// DefaultRange is used when a request names no range and no custom dates.
const DefaultRange = RangeLast7Days

// TimeProvider abstracts the clock so parsing is testable at fixed times.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock in UTC.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

// Parser resolves range presets and custom from/to dates into TimeFrames.
type Parser struct {
	timeProvider TimeProvider
}

func NewParser(timeProvider ...TimeProvider) *Parser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}
	return &Parser{timeProvider: provider}
}

// presets maps a range name to its day count and label. Each preset covers
// the last N days including today, so "7d" yields seven daily buckets
// ending on the current day.
var presets = map[string]struct {
	days  int
	label string
}{
	RangeLast7Days:   {7, "Last 7 days"},
	RangeLast30Days:  {30, "Last 30 days"},
	RangeLast6Months: {180, "Last 6 months"},
	RangeLastYear:    {365, "Last 12 months"},
}

// Parse resolves a request into a TimeFrame. Explicit from/to dates
// (YYYY-MM-DD) take precedence over the range preset; with neither, the
// default range applies.
func (p *Parser) Parse(rangeName, fromDate, toDate string) (*TimeFrame, error) {
	if fromDate != "" || toDate != "" {
		return p.parseCustom(fromDate, toDate)
	}

	if rangeName == "" {
		rangeName = DefaultRange
	}

	preset, ok := presets[rangeName]
	if !ok {
		return nil, fmt.Errorf("unknown range: %s", rangeName)
	}

	now := p.timeProvider.Now()
	from := startOfDay(now).AddDate(0, 0, -(preset.days - 1))
	return NewTimeFrame(from, now, preset.label)
}

func (p *Parser) parseCustom(fromDate, toDate string) (*TimeFrame, error) {
	if fromDate == "" || toDate == "" {
		return nil, fmt.Errorf("custom range requires both from and to dates")
	}

	from, err := time.ParseInLocation("2006-01-02", fromDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid 'from' date: %w", err)
	}

	to, err := time.ParseInLocation("2006-01-02", toDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid 'to' date: %w", err)
	}

	// The to date is inclusive: extend it to the end of that day, clamped
	// to the present so future dates never produce empty trailing buckets.
	to = endOfDay(to)
	if now := p.timeProvider.Now(); to.After(now) {
		to = now
	}

	label := fmt.Sprintf("%s to %s", from.Format("Jan 2, 2006"), to.Format("Jan 2, 2006"))
	return NewTimeFrame(from, to, label)
}

func startOfDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 23, 59, 59, 999999999, time.UTC)
}
