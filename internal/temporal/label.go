package temporal

import "time"

const (
	dueLabelLayout      = "Jan 2, 03:04 PM"
	zonedDueLabelLayout = "02 Jan, 15:04"
)

// FormatDueLabel renders dueAt as a short label in the local zone, such as
// "Feb 20, 02:30 PM". The input is returned unchanged if it does not parse.
func FormatDueLabel(dueAt string) string {
	t, err := ParseInstant(dueAt)
	if err != nil {
		return dueAt
	}
	return t.In(time.Local).Format(dueLabelLayout)
}

// FormatDueLabelIn renders dueAt as a 24-hour label in loc, such as
// "20 Feb, 14:30". A nil loc means local time. The input is returned
// unchanged if it does not parse.
func FormatDueLabelIn(dueAt string, loc *time.Location) string {
	t, err := ParseInstant(dueAt)
	if err != nil {
		return dueAt
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(zonedDueLabelLayout)
}
