package ordering_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/deadliner/internal/model"
	"github.com/nhle/deadliner/internal/ordering"
)

func ids(ds []model.Deadline) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}

func TestDeadlinesAscending(t *testing.T) {
	input := []model.Deadline{
		{ID: "c", DueAt: "2026-02-22T00:00:00.000Z"},
		{ID: "a", DueAt: "2026-02-20T00:00:00.000Z"},
		{ID: "b", DueAt: "2026-02-21T00:00:00.000Z"},
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids(ordering.Deadlines(input)))
}

func TestDeadlinesComparesInstantsNotStrings(t *testing.T) {
	input := []model.Deadline{
		{ID: "late-utc", DueAt: "2026-02-20T08:00:00.000Z"},
		{ID: "early-offset", DueAt: "2026-02-20T14:30:00+07:00"},
	}

	assert.Equal(t, []string{"early-offset", "late-utc"}, ids(ordering.Deadlines(input)))
}

func TestDeadlinesUnparsableSortLast(t *testing.T) {
	input := []model.Deadline{
		{ID: "bad1", DueAt: "garbage"},
		{ID: "mid", DueAt: "2026-02-21T00:00:00.000Z"},
		{ID: "bad2", DueAt: ""},
		{ID: "first", DueAt: "2026-02-20T00:00:00.000Z"},
	}

	assert.Equal(t, []string{"first", "mid", "bad1", "bad2"}, ids(ordering.Deadlines(input)))

	reversed := []model.Deadline{input[3], input[2], input[1], input[0]}
	assert.Equal(t, []string{"first", "mid", "bad2", "bad1"}, ids(ordering.Deadlines(reversed)))
}

func TestDeadlinesStableForEqualInstants(t *testing.T) {
	input := []model.Deadline{
		{ID: "x", DueAt: "2026-02-20T00:00:00.000Z"},
		{ID: "y", DueAt: "2026-02-20T00:00:00Z"},
		{ID: "z", DueAt: "2026-02-20T07:00:00+07:00"},
	}

	assert.Equal(t, []string{"x", "y", "z"}, ids(ordering.Deadlines(input)))
}

func TestDeadlinesIdempotent(t *testing.T) {
	input := []model.Deadline{
		{ID: "b", DueAt: "2026-02-21T00:00:00.000Z"},
		{ID: "bad", DueAt: "nope"},
		{ID: "a1", DueAt: "2026-02-20T00:00:00.000Z"},
		{ID: "a2", DueAt: "2026-02-20T00:00:00.000Z"},
	}

	once := ordering.Deadlines(input)
	twice := ordering.Deadlines(once)
	assert.Equal(t, once, twice)
}

func TestDeadlinesDoesNotMutateInput(t *testing.T) {
	input := []model.Deadline{
		{ID: "b", DueAt: "2026-02-21T00:00:00.000Z"},
		{ID: "a", DueAt: "2026-02-20T00:00:00.000Z"},
	}

	_ = ordering.Deadlines(input)
	assert.Equal(t, []string{"b", "a"}, ids(input))
}

func TestSortByDueInstantGeneric(t *testing.T) {
	type event struct {
		name string
		at   string
	}
	events := []event{{"two", "2026-01-02T00:00:00Z"}, {"one", "2026-01-01T00:00:00Z"}}

	sorted := ordering.SortByDueInstant(events, func(e event) string { return e.at })
	assert.Equal(t, "one", sorted[0].name)
	assert.Equal(t, "two", sorted[1].name)
	assert.Empty(t, ordering.Deadlines(nil))
}
