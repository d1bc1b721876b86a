package temporal

import (
	"fmt"
	"time"
)

// Overdue is the countdown text for a deadline whose time has passed.
const Overdue = "Overdue"

// CountdownStyle selects a countdown presentation.
type CountdownStyle int

const (
	// StyleShort renders the two largest units, "2d 3h left".
	StyleShort CountdownStyle = iota
	// StyleLong renders days and hours, "1 Day, 2 Hours".
	StyleLong
)

// ParseCountdownStyle maps the configuration names "short" and "long".
func ParseCountdownStyle(s string) (CountdownStyle, error) {
	switch s {
	case "short", "":
		return StyleShort, nil
	case "long":
		return StyleLong, nil
	}
	return StyleShort, fmt.Errorf("unknown countdown style %q", s)
}

// RemainingDuration returns dueAt - now. Negative means overdue. An
// unparsable dueAt yields zero rather than an error.
func RemainingDuration(dueAt string, now time.Time) time.Duration {
	due, err := ParseInstant(dueAt)
	if err != nil {
		return 0
	}
	return due.Sub(now)
}

// FormatCountdown renders the time left until dueAt, or Overdue once the
// remaining duration is zero or negative.
func FormatCountdown(dueAt string, now time.Time, style CountdownStyle) string {
	remaining := RemainingDuration(dueAt, now)
	if remaining <= 0 {
		return Overdue
	}
	if style == StyleLong {
		return formatLong(remaining)
	}
	return formatShort(remaining)
}

func formatLong(remaining time.Duration) string {
	// Days and hours both come from the one whole-hour count.
	totalHours := int64(remaining / time.Hour)
	days := totalHours / 24
	hours := totalHours % 24

	return fmt.Sprintf("%d Day%s, %d Hour%s", days, plural(days), hours, plural(hours))
}

func formatShort(remaining time.Duration) string {
	totalMinutes := int64(remaining / time.Minute)
	days := totalMinutes / (24 * 60)
	hours := (totalMinutes % (24 * 60)) / 60
	minutes := totalMinutes % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh left", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm left", hours, minutes)
	default:
		return fmt.Sprintf("%dm left", minutes)
	}
}

func plural(n int64) string {
	if n == 1 {
		return ""
	}
	return "s"
}
