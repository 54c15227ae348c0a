package util

import "time"

// DateLayout is the calendar-day format used by Search Console.
const DateLayout = "2006-01-02"

// ParseDate accepts YYYY-MM-DD or RFC3339 (with or without fractional
// seconds). Bare digit strings such as "20240101" are rejected.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ParseDateDefault parses a date or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, ok := ParseDate(s); ok {
		return t
	}
	return def
}

// FormatDate renders t as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DaysBetween returns the fractional number of days from a to b.
func DaysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}

// ResolveRange fills a missing start/end pair relative to now. Search Console
// data lags, so the default window ends lagDays before today and spans
// lookbackDays.
func ResolveRange(start, end string, now time.Time, lookbackDays, lagDays int) (string, string) {
	endT := ParseDateDefault(end, now.UTC().Truncate(24*time.Hour).AddDate(0, 0, -lagDays))
	startT := ParseDateDefault(start, endT.AddDate(0, 0, -(lookbackDays-1)))
	if startT.After(endT) {
		startT, endT = endT, startT
	}
	return FormatDate(startT), FormatDate(endT)
}
