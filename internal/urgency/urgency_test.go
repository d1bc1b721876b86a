package urgency_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/deadliner/internal/model"
	"github.com/nhle/deadliner/internal/urgency"
)

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		expected  model.ColorStatus
	}{
		{-time.Hour, model.ColorRed},
		{0, model.ColorRed},
		{23 * time.Hour, model.ColorRed},
		{24*time.Hour - time.Millisecond, model.ColorRed},
		{24 * time.Hour, model.ColorYellow},
		{48 * time.Hour, model.ColorYellow},
		{72*time.Hour - time.Millisecond, model.ColorYellow},
		{72 * time.Hour, model.ColorGreen},
		{96 * time.Hour, model.ColorGreen},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, urgency.Classify(tt.remaining), "remaining %s", tt.remaining)
	}
}

func TestClassifyDueAt(t *testing.T) {
	now := time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, model.ColorYellow, urgency.ClassifyDueAt("2026-02-21T16:00:00.000Z", now))
	assert.Equal(t, model.ColorRed, urgency.ClassifyDueAt("2026-02-19T10:00:00.000Z", now))
	assert.Equal(t, model.ColorGreen, urgency.ClassifyDueAt("2026-03-01T00:00:00.000Z", now))
}

func TestClassifyDueAtUnparsableIsGreen(t *testing.T) {
	now := time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, model.ColorGreen, urgency.ClassifyDueAt("", now))
	assert.Equal(t, model.ColorGreen, urgency.ClassifyDueAt("tomorrow-ish", now))
}

func TestIsUrgent(t *testing.T) {
	assert.True(t, urgency.IsUrgent(23*time.Hour))
	assert.True(t, urgency.IsUrgent(-time.Minute))
	assert.False(t, urgency.IsUrgent(24*time.Hour))
}
