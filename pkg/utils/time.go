package utils

import "time"

// Now returns the current time in UTC timezone
func Now() time.Time {
	return time.Now().UTC()
}

// FormatISO8601 formats a time.Time to ISO8601 format in UTC
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatClock formats a time.Time as a local HH:MM clock value for display
func FormatClock(t time.Time) string {
	return t.Local().Format("15:04")
}
