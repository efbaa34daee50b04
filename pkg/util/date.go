package util

import (
    "strconv"
    "time"
)

// ISODate is the calendar date layout used across the API and data files.
const ISODate = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, ISO date, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(ISODate, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// ParseISODate parses a calendar date at UTC midnight.
func ParseISODate(s string) (time.Time, bool) {
    t, err := time.Parse(ISODate, s)
    if err != nil {
        return time.Time{}, false
    }
    return t, true
}

// FormatISODate formats a time as its UTC calendar date.
func FormatISODate(t time.Time) string {
    return t.UTC().Format(ISODate)
}

// Day truncates a time to its UTC calendar day.
func Day(t time.Time) time.Time {
    y, m, d := t.UTC().Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AlignFromTo rounds a query range to whole UTC days.
func AlignFromTo(from, to time.Time) (time.Time, time.Time) {
    return Day(from), Day(to)
}
