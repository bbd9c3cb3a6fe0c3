package suite

import (
	"time"
	"unicode/utf8"
)

// Truncate shortens text to maxLen runes, appending "..." when cut.
func Truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxLen]) + "..."
}

// FormatTimestamp renders a timestamp for listings.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
