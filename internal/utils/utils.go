package utils

import (
	"fmt"
	"time"
)

// timestampLayout is the display format used by the browser tables.
const timestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t as a local date-time string. Zero times render as
// "N/A"; times outside the representable forensic range render as
// "Invalid Date".
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	if t.Year() < 1601 || t.Year() > 3000 {
		return "Invalid Date"
	}
	return t.Local().Format(timestampLayout)
}

// FormatMode renders permission bits as octal text, or "N/A" when the
// underlying filesystem does not expose them.
func FormatMode(known bool, mode uint32) string {
	if !known {
		return "N/A"
	}
	return fmt.Sprintf("%#o", mode)
}
