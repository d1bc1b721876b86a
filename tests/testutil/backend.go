package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/nhle/deadliner/internal/model"
	"github.com/nhle/deadliner/internal/store"
)

// Backend operation names accepted by MemoryBackend.Fail and Hold.
const (
	OpLoadAll    = "loadAll"
	OpInsert     = "insert"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpReplaceAll = "replaceAll"
)

// Gate blocks one backend call until released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered is closed once the held call has started.
func (g *Gate) Entered() <-chan struct{} { return g.entered }

// Release lets the held call continue.
func (g *Gate) Release() { g.once.Do(func() { close(g.release) }) }

// MemoryBackend is an in-process store.Backend for tests. Calls can be made
// to fail or be held at a Gate to force a particular completion order.
// LoadAll captures its result before waiting at a gate, so a held load
// returns the data as it was when the call started.
type MemoryBackend struct {
	mu       sync.Mutex
	docs     []model.Deadline
	nextID   int
	failures map[string]error
	gates    map[string][]*Gate
	calls    map[string]int
}

var _ store.Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns a backend holding seed.
func NewMemoryBackend(seed ...model.Deadline) *MemoryBackend {
	b := &MemoryBackend{
		failures: make(map[string]error),
		gates:    make(map[string][]*Gate),
		calls:    make(map[string]int),
	}
	b.docs = append(b.docs, seed...)
	return b
}

// Fail makes calls to op that complete from now on return err. A nil err
// clears it.
func (b *MemoryBackend) Fail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// Hold queues a gate for the next call to op.
func (b *MemoryBackend) Hold(op string) *Gate {
	g := &Gate{entered: make(chan struct{}), release: make(chan struct{})}
	b.mu.Lock()
	b.gates[op] = append(b.gates[op], g)
	b.mu.Unlock()
	return g
}

// Calls returns how many times op has been invoked.
func (b *MemoryBackend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Seed replaces the stored collection directly, bypassing failures and gates.
func (b *MemoryBackend) Seed(ds ...model.Deadline) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = append([]model.Deadline(nil), ds...)
}

// Stored returns a copy of the stored collection.
func (b *MemoryBackend) Stored() []model.Deadline {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Deadline(nil), b.docs...)
}

// enter records the call and returns its gate, if any.
func (b *MemoryBackend) enter(op string) *Gate {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op]++
	if queued := b.gates[op]; len(queued) > 0 {
		b.gates[op] = queued[1:]
		return queued[0]
	}
	return nil
}

// pass waits at the call's gate, then reports the failure injected for op
// at that moment.
func (b *MemoryBackend) pass(ctx context.Context, op string, g *Gate) error {
	if g != nil {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures[op]
}

func (b *MemoryBackend) LoadAll(ctx context.Context) ([]model.Deadline, error) {
	g := b.enter(OpLoadAll)
	captured := b.Stored()
	if err := b.pass(ctx, OpLoadAll, g); err != nil {
		return nil, err
	}
	return captured, nil
}

func (b *MemoryBackend) Insert(ctx context.Context, d model.Deadline) (string, error) {
	if err := b.pass(ctx, OpInsert, b.enter(OpInsert)); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if d.ID == "" {
		b.nextID++
		d.ID = fmt.Sprintf("mem-%d", b.nextID)
	}
	b.docs = append(b.docs, d)
	return d.ID, nil
}

func (b *MemoryBackend) Update(ctx context.Context, id string, p model.Patch) error {
	if err := b.pass(ctx, OpUpdate, b.enter(OpUpdate)); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.docs {
		if b.docs[i].ID == id {
			b.docs[i] = p.Apply(b.docs[i])
			return nil
		}
	}
	return &store.NotFoundError{ID: id}
}

func (b *MemoryBackend) Delete(ctx context.Context, id string) error {
	if err := b.pass(ctx, OpDelete, b.enter(OpDelete)); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.docs[:0]
	for _, d := range b.docs {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	b.docs = kept
	return nil
}

func (b *MemoryBackend) ReplaceAll(ctx context.Context, ds []model.Deadline) error {
	if err := b.pass(ctx, OpReplaceAll, b.enter(OpReplaceAll)); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = append([]model.Deadline(nil), ds...)
	return nil
}
