package ui

import (
	"fmt"
	"strings"
	"time"
)

// FormatPerMinute formats a scans-per-minute rate.
func FormatPerMinute(v float64) string {
	if v <= 0 {
		return "0/min"
	}
	if v < 10 {
		return fmt.Sprintf("%.1f/min", v)
	}
	return fmt.Sprintf("%.0f/min", v)
}

// FormatCount formats an integer with comma separators.
func FormatCount(n int64) string {
	if n < 0 {
		return "-" + FormatCount(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		b.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatDuration formats elapsed time concisely.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// Outcome returns a short label for a terminal event, or "" for events
// that do not end a scan.
func Outcome(ev Event) string {
	switch ev.Type {
	case BookFound:
		return "found"
	case BookAdded:
		return "added"
	case BookAlreadyPresent:
		return "duplicate"
	case BookNotFound:
		return "not found"
	case DispatchFailed:
		return "failed"
	default:
		return ""
	}
}

// Detail describes the book or error carried by a terminal event.
func Detail(ev Event) string {
	switch ev.Type {
	case BookAdded, BookAlreadyPresent:
		if ev.Library != "" {
			return fmt.Sprintf("%s  (%s)", ev.Title, ev.Library)
		}
		return ev.Title
	case DispatchFailed:
		if ev.Error != nil {
			return ev.Error.Error()
		}
		return "error"
	default:
		return ev.Title
	}
}
