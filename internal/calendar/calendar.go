// Package calendar holds the date arithmetic shared by the habit and task
// views. Months are zero-based throughout (0 = January) and dates travel as
// YYYY-MM-DD keys, which sort lexicographically in chronological order.
//
// Nothing in this package reads the wall clock; "today" is always passed in.
package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// WeeksPerMonth is the fixed number of week buckets used by trend series.
const WeeksPerMonth = 4

// KeyLayout is the time layout matching date keys.
const KeyLayout = "2006-01-02"

// DaysInMonth returns the number of days in a zero-based month.
func DaysInMonth(year, month int) int {
	// Day 0 of the following month normalizes to the last day of this one.
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// FormatDateKey formats a zero-based month and 1-based day as YYYY-MM-DD.
func FormatDateKey(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month+1, day)
}

// IsToday reports whether dateKey is the given today key.
func IsToday(dateKey, todayKey string) bool {
	return dateKey == todayKey
}

// IsPastDate reports whether dateKey falls strictly before todayKey.
func IsPastDate(dateKey, todayKey string) bool {
	return dateKey < todayKey
}

// WeekBucketIndex maps a zero-based day index to one of four week buckets.
// Days 29-31 share the last bucket with days 22-28.
func WeekBucketIndex(dayIndex int) int {
	return min(WeeksPerMonth-1, dayIndex/7)
}

// MonthDateRange returns the first and last date keys of a month, inclusive.
func MonthDateRange(year, month int) (start, end string) {
	return FormatDateKey(year, month, 1), FormatDateKey(year, month, DaysInMonth(year, month))
}

// Day is a calendar day with a zero-based month.
type Day struct {
	Year  int
	Month int
	Day   int
}

// DayOf converts an instant to the calendar day observed in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc != nil {
		t = t.In(loc)
	}
	return Day{Year: t.Year(), Month: int(t.Month()) - 1, Day: t.Day()}
}

// Key returns the YYYY-MM-DD key of the day.
func (d Day) Key() string {
	return FormatDateKey(d.Year, d.Month, d.Day)
}

// InMonth reports whether the day belongs to the given month.
func (d Day) InMonth(year, month int) bool {
	return d.Year == year && d.Month == month
}

// ParseKey parses a YYYY-MM-DD key into a Day.
func ParseKey(dateKey string) (Day, error) {
	t, err := time.Parse(KeyLayout, dateKey)
	if err != nil {
		return Day{}, fmt.Errorf("parse date key %q: %w", dateKey, err)
	}
	return Day{Year: t.Year(), Month: int(t.Month()) - 1, Day: t.Day()}, nil
}

// ValidMonth reports whether month is a zero-based month index.
func ValidMonth(month int) bool {
	return month >= 0 && month <= 11
}

// Location loads a time zone by name, falling back to UTC for an empty name.
func Location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}
