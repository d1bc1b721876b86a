// Package temporal turns user-entered due dates into absolute instants and
// renders countdowns and labels relative to a given "now".
package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	// Zone data is embedded so IANA names resolve on hosts without a
	// system zoneinfo database.
	_ "time/tzdata"
)

// InstantLayout is the canonical serialized form of an absolute instant:
// ISO-8601 in UTC with millisecond precision.
const InstantLayout = "2006-01-02T15:04:05.000Z"

var (
	dueDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	dueTimePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// ValidationError reports a malformed due date, time or timezone.
type ValidationError struct {
	// Field is "dueDate", "dueTime" or "timezone".
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// FormatInstant serializes t in InstantLayout.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}

// ParseInstant parses an RFC 3339 timestamp with an optional fractional
// second, such as the values produced by FormatInstant.
func ParseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing instant %q: %w", s, err)
	}
	return t, nil
}

// ResolveDueAt is ResolveDueInstant serialized with FormatInstant.
func ResolveDueAt(dueDate, dueTime, timezone string) (string, error) {
	t, err := ResolveDueInstant(dueDate, dueTime, timezone)
	if err != nil {
		return "", err
	}
	return FormatInstant(t), nil
}

// ResolveDueInstant interprets dueDate (YYYY-MM-DD) and dueTime (H:MM or
// HH:MM, 24-hour) as wall-clock time and returns the absolute instant.
//
// With an empty timezone the process local zone is used. Otherwise timezone
// must be an IANA zone name and the instant is found by offsetFixedPoint.
func ResolveDueInstant(dueDate, dueTime, timezone string) (time.Time, error) {
	year, month, day, err := parseDueDate(dueDate)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := parseDueTime(dueTime)
	if err != nil {
		return time.Time{}, err
	}

	if timezone == "" {
		return time.Date(year, month, day, hour, minute, 0, 0, time.Local), nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:  "timezone",
			Value:  timezone,
			Reason: "unknown IANA zone",
		}
	}

	wall := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	return offsetFixedPoint(wall, loc), nil
}

// offsetFixedPoint converts a wall-clock reading in loc, expressed as if it
// were UTC, to the instant it denotes.
//
// The zone offset depends on the instant being solved for, so it is found by
// iteration: look up the offset at the wall-as-UTC guess, correct once, then
// look up the offset again at the corrected instant and apply that one to the
// wall value. Two lookups converge for every real zone because transitions are
// hours apart. A third pass is never made: if a transition falls between the
// first and second guesses the result may be off by the size of that
// transition.
func offsetFixedPoint(wall time.Time, loc *time.Location) time.Time {
	firstGuess := wall.Add(-offsetAt(wall, loc))
	return wall.Add(-offsetAt(firstGuess, loc))
}

func offsetAt(t time.Time, loc *time.Location) time.Duration {
	_, offset := t.In(loc).Zone()
	return time.Duration(offset) * time.Second
}

func parseDueDate(s string) (int, time.Month, int, error) {
	m := dueDatePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, 0, &ValidationError{Field: "dueDate", Value: s, Reason: "expected YYYY-MM-DD"}
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	if month < 1 || month > 12 {
		return 0, 0, 0, &ValidationError{Field: "dueDate", Value: s, Reason: "month out of range"}
	}
	// time.Date normalizes overflow, so a day that does not survive the
	// round trip does not exist in that month.
	if day < 1 || time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Day() != day {
		return 0, 0, 0, &ValidationError{Field: "dueDate", Value: s, Reason: "day out of range"}
	}
	return year, time.Month(month), day, nil
}

func parseDueTime(s string) (int, int, error) {
	m := dueTimePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, &ValidationError{Field: "dueTime", Value: s, Reason: "expected HH:MM"}
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	if hour > 23 || minute > 59 {
		return 0, 0, &ValidationError{Field: "dueTime", Value: s, Reason: "hour or minute out of range"}
	}
	return hour, minute, nil
}
