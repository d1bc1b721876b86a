// Package ordering sorts deadlines by their absolute due instant.
package ordering

import (
	"slices"
	"time"

	"github.com/nhle/deadliner/internal/model"
	"github.com/nhle/deadliner/internal/temporal"
)

type keyed[T any] struct {
	item  T
	due   time.Time
	valid bool
}

// SortByDueInstant returns a new slice holding items in ascending order of
// the instant dueAt extracts from each. Items whose instant does not parse
// sort after all others. The sort is stable, so equal keys keep their input
// order and sorting sorted input is a no-op. items is not modified.
func SortByDueInstant[T any](items []T, dueAt func(T) string) []T {
	keys := make([]keyed[T], len(items))
	for i, item := range items {
		due, err := temporal.ParseInstant(dueAt(item))
		keys[i] = keyed[T]{item: item, due: due, valid: err == nil}
	}

	slices.SortStableFunc(keys, compareKeys[T])

	sorted := make([]T, len(keys))
	for i, k := range keys {
		sorted[i] = k.item
	}
	return sorted
}

// compareKeys orders parsed instants ascending and treats unparsable ones as
// later than any real instant.
func compareKeys[T any](a, b keyed[T]) int {
	switch {
	case !a.valid && !b.valid:
		return 0
	case !a.valid:
		return 1
	case !b.valid:
		return -1
	}
	return a.due.Compare(b.due)
}

// Deadlines sorts deadlines by DueAt.
func Deadlines(ds []model.Deadline) []model.Deadline {
	return SortByDueInstant(ds, func(d model.Deadline) string { return d.DueAt })
}
