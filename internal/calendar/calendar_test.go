package calendar

import (
	"testing"
	"time"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month int
		want  int
	}{
		{"january", 2025, 0, 31},
		{"february common year", 2025, 1, 28},
		{"february leap year", 2024, 1, 29},
		{"february century non-leap", 1900, 1, 28},
		{"february quad century leap", 2000, 1, 29},
		{"april", 2025, 3, 30},
		{"december", 2025, 11, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysInMonth(tt.year, tt.month); got != tt.want {
				t.Errorf("DaysInMonth(%d, %d) = %d, want %d", tt.year, tt.month, got, tt.want)
			}
		})
	}
}

func TestFormatDateKey(t *testing.T) {
	tests := []struct {
		year, month, day int
		want             string
	}{
		{2025, 0, 1, "2025-01-01"},
		{2025, 8, 9, "2025-09-09"},
		{2025, 11, 31, "2025-12-31"},
		{987, 0, 5, "0987-01-05"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDateKey(tt.year, tt.month, tt.day); got != tt.want {
				t.Errorf("FormatDateKey(%d, %d, %d) = %q, want %q", tt.year, tt.month, tt.day, got, tt.want)
			}
		})
	}
}

func TestDateClassification(t *testing.T) {
	today := "2025-01-15"
	tests := []struct {
		key       string
		wantToday bool
		wantPast  bool
	}{
		{"2025-01-15", true, false},
		{"2025-01-14", false, true},
		{"2024-12-31", false, true},
		{"2025-01-16", false, false},
		{"2025-02-01", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := IsToday(tt.key, today); got != tt.wantToday {
				t.Errorf("IsToday(%q) = %v, want %v", tt.key, got, tt.wantToday)
			}
			if got := IsPastDate(tt.key, today); got != tt.wantPast {
				t.Errorf("IsPastDate(%q) = %v, want %v", tt.key, got, tt.wantPast)
			}
		})
	}
}

func TestWeekBucketIndex(t *testing.T) {
	tests := []struct {
		dayIndex int
		want     int
	}{
		{0, 0}, {6, 0}, {7, 1}, {13, 1}, {14, 2}, {20, 2},
		{21, 3}, {27, 3}, {28, 3}, {30, 3},
	}

	for _, tt := range tests {
		if got := WeekBucketIndex(tt.dayIndex); got != tt.want {
			t.Errorf("WeekBucketIndex(%d) = %d, want %d", tt.dayIndex, got, tt.want)
		}
	}
}

func TestWeekBucketsCoverEveryMonthLength(t *testing.T) {
	for _, days := range []int{28, 29, 30, 31} {
		seen := make(map[int]bool)
		for i := 0; i < days; i++ {
			seen[WeekBucketIndex(i)] = true
		}
		if len(seen) != WeeksPerMonth {
			t.Errorf("%d-day month uses %d buckets, want %d", days, len(seen), WeeksPerMonth)
		}
	}
}

func TestMonthDateRange(t *testing.T) {
	start, end := MonthDateRange(2024, 1)
	if start != "2024-02-01" || end != "2024-02-29" {
		t.Errorf("MonthDateRange(2024, 1) = %q, %q", start, end)
	}
}

func TestDayOf(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 20:00 UTC on Jan 31 is already Feb 1 in India.
	instant := time.Date(2025, time.January, 31, 20, 0, 0, 0, time.UTC)

	if got := DayOf(instant, time.UTC); got != (Day{2025, 0, 31}) {
		t.Errorf("DayOf(UTC) = %+v", got)
	}
	got := DayOf(instant, kolkata)
	if got != (Day{2025, 1, 1}) {
		t.Errorf("DayOf(Asia/Kolkata) = %+v", got)
	}
	if got.Key() != "2025-02-01" {
		t.Errorf("Key() = %q", got.Key())
	}
	if !got.InMonth(2025, 1) || got.InMonth(2025, 0) {
		t.Errorf("InMonth mismatch for %+v", got)
	}
}

func TestParseKey(t *testing.T) {
	d, err := ParseKey("2025-03-07")
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if d != (Day{2025, 2, 7}) {
		t.Errorf("ParseKey() = %+v", d)
	}
	if _, err := ParseKey("2025-13-01"); err == nil {
		t.Error("ParseKey() should reject month 13")
	}
}
