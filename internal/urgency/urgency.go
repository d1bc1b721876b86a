// Package urgency classifies remaining time into the red/yellow/green tiers.
package urgency

import (
	"time"

	"github.com/nhle/deadliner/internal/model"
	"github.com/nhle/deadliner/internal/temporal"
)

// Tier boundaries. Each is the inclusive lower bound of the next calmer tier.
const (
	YellowFrom = 24 * time.Hour
	GreenFrom  = 72 * time.Hour
)

// Classify maps remaining time to a tier: under a day is red, under three
// days is yellow, anything else green. Exactly one day is yellow and exactly
// three days is green.
func Classify(remaining time.Duration) model.ColorStatus {
	switch {
	case remaining < YellowFrom:
		return model.ColorRed
	case remaining < GreenFrom:
		return model.ColorYellow
	default:
		return model.ColorGreen
	}
}

// ClassifyDueAt classifies the time left until dueAt. An unparsable dueAt is
// green.
func ClassifyDueAt(dueAt string, now time.Time) model.ColorStatus {
	due, err := temporal.ParseInstant(dueAt)
	if err != nil {
		return model.ColorGreen
	}
	return Classify(due.Sub(now))
}

// IsUrgent reports whether remaining is inside the red tier.
func IsUrgent(remaining time.Duration) bool {
	return remaining < YellowFrom
}
