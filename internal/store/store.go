package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/deadliner/internal/model"
)

// ErrNotFound is the kind of every NotFoundError.
var ErrNotFound = errors.New("deadline not found")

// NotFoundError indicates that an operation referenced an absent deadline.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("deadline %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// PersistenceError wraps a failed backend call.
type PersistenceError struct {
	// Op names the backend call, e.g. "load" or "insert".
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Backend is the persistence contract for a deadline collection. It is
// implemented by the local SQLiteStore and the remote FirestoreStore.
type Backend interface {
	// LoadAll returns every stored deadline. Order is not guaranteed.
	LoadAll(ctx context.Context) ([]model.Deadline, error)

	// Insert stores d and returns its ID. If d.ID is empty the backend
	// assigns one.
	Insert(ctx context.Context, d model.Deadline) (string, error)

	// Update writes the fields set in p onto the deadline with the given ID
	// and leaves the others as stored. It returns a NotFoundError if no such
	// deadline exists.
	Update(ctx context.Context, id string, p model.Patch) error

	// Delete removes the deadline with the given ID. Deleting an absent ID
	// succeeds.
	Delete(ctx context.Context, id string) error

	// ReplaceAll makes ds the whole stored collection.
	ReplaceAll(ctx context.Context, ds []model.Deadline) error
}
