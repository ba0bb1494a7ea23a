package dateparse

import (
	"testing"
	"time"
)

// Tuesday 2026-09-01
var ref = time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)

func TestParseDateFrom(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2026-03-01", "2026-03-01"},
		{"today", "2026-09-01"},
		{"yesterday", "2026-08-31"},
		{"-1d", "2026-08-31"},
		{"-7d", "2026-08-25"},
		{"-2w", "2026-08-18"},
		{"-1m", "2026-08-01"},
		{"this-week", "2026-08-31"},
		{"last-week", "2026-08-24"},
		{"this-month", "2026-09-01"},
		{"last-month", "2026-08-01"},
		{"monday", "2026-08-31"},
		{"tuesday", "2026-08-25"}, // ref is a Tuesday, so last Tuesday
		{"sunday", "2026-08-30"},
		{"  Yesterday  ", "2026-08-31"},
	}
	for _, tt := range tests {
		got, err := ParseDateFrom(tt.input, ref)
		if err != nil {
			t.Errorf("ParseDateFrom(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDateFrom(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseDateFromErrors(t *testing.T) {
	for _, input := range []string{"", "next tuesday", "-5x", "03/01/2026"} {
		if _, err := ParseDateFrom(input, ref); err == nil {
			t.Errorf("ParseDateFrom(%q) should fail", input)
		}
	}
}

func TestDayBounds(t *testing.T) {
	start, err := DayStart("2026-09-01")
	if err != nil {
		t.Fatalf("day start: %v", err)
	}
	if start.Hour() != 0 || start.Day() != 1 {
		t.Errorf("day start = %v", start)
	}

	end, err := DayEnd("2026-09-01")
	if err != nil {
		t.Fatalf("day end: %v", err)
	}
	if !end.After(start) || end.Day() != 1 {
		t.Errorf("day end = %v", end)
	}
	if end.AddDate(0, 0, 0).Add(time.Nanosecond).Day() != 2 {
		t.Errorf("day end should be the last instant of the day, got %v", end)
	}

	if _, err := DayStart("bogus"); err == nil {
		t.Error("invalid date should fail")
	}
}
