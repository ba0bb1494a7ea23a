// Package dateparse parses the relative and absolute date strings the sale
// listing flags accept into concrete days.
package dateparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDate parses a date input string and returns an ISO 8601 date
// (YYYY-MM-DD). Uses the current time as the reference point.
//
// Supported formats:
//   - Exact dates: "2026-03-01"
//   - Relative days back: "-7d"
//   - Relative weeks back: "-2w"
//   - Relative months back: "-1m"
//   - Day names: "monday", "tuesday", etc. (most recent occurrence)
//   - Keywords: "today", "yesterday", "this-week", "this-month",
//     "last-week", "last-month"
func ParseDate(input string) (string, error) {
	return ParseDateFrom(input, time.Now())
}

// ParseDateFrom parses a date input string relative to the given reference
// time. This variant enables deterministic testing with a fixed "now".
func ParseDateFrom(input string, now time.Time) (string, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return "", fmt.Errorf("empty date input")
	}

	// Exact date: YYYY-MM-DD
	if t, err := time.Parse("2006-01-02", input); err == nil {
		return t.Format("2006-01-02"), nil
	}

	// Keywords
	switch input {
	case "today":
		return formatDate(now), nil
	case "yesterday":
		return formatDate(now.AddDate(0, 0, -1)), nil
	case "this-week":
		// Monday of the current week
		daysSinceMonday := (int(now.Weekday()) - int(time.Monday) + 7) % 7
		return formatDate(now.AddDate(0, 0, -daysSinceMonday)), nil
	case "last-week":
		daysSinceMonday := (int(now.Weekday()) - int(time.Monday) + 7) % 7
		return formatDate(now.AddDate(0, 0, -daysSinceMonday-7)), nil
	case "this-month":
		year, month, _ := now.Date()
		return formatDate(time.Date(year, month, 1, 0, 0, 0, 0, now.Location())), nil
	case "last-month":
		year, month, _ := now.Date()
		return formatDate(time.Date(year, month-1, 1, 0, 0, 0, 0, now.Location())), nil
	}

	// Relative offsets back: -Nd, -Nw, -Nm
	if strings.HasPrefix(input, "-") && len(input) >= 3 {
		suffix := input[len(input)-1]
		numStr := input[1 : len(input)-1]
		n, err := strconv.Atoi(numStr)
		if err == nil && n >= 0 {
			switch suffix {
			case 'd':
				return formatDate(now.AddDate(0, 0, -n)), nil
			case 'w':
				return formatDate(now.AddDate(0, 0, -n*7)), nil
			case 'm':
				return formatDate(now.AddDate(0, -n, 0)), nil
			default:
				return "", fmt.Errorf("unknown relative unit %q in %q (use d, w, or m)", string(suffix), input)
			}
		}
	}

	// Day names: most recent occurrence of that weekday
	dayMap := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	if target, ok := dayMap[input]; ok {
		daysBack := (int(now.Weekday()) - int(target) + 7) % 7
		if daysBack == 0 {
			daysBack = 7 // "monday" on a Monday means last Monday
		}
		return formatDate(now.AddDate(0, 0, -daysBack)), nil
	}

	return "", fmt.Errorf("unrecognized date format: %q", input)
}

// DayStart returns midnight local time of the given ISO date.
func DayStart(isoDate string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", isoDate, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", isoDate, err)
	}
	return t, nil
}

// DayEnd returns the instant just before midnight ends the given ISO date,
// so an inclusive --until bound covers the whole day.
func DayEnd(isoDate string) (time.Time, error) {
	t, err := DayStart(isoDate)
	if err != nil {
		return time.Time{}, err
	}
	return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
