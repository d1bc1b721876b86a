// Package tracker holds the in-memory deadline collection, keeps it sorted by
// due instant and synchronizes it with a store.Backend.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/deadliner/internal/model"
	"github.com/nhle/deadliner/internal/ordering"
	"github.com/nhle/deadliner/internal/store"
	"github.com/nhle/deadliner/internal/temporal"
	"github.com/nhle/deadliner/internal/urgency"
)

// ErrClosed is returned by operations issued after Close.
var ErrClosed = errors.New("tracker closed")

// SyncPolicy selects how memory and the backend are kept in step.
type SyncPolicy int

const (
	// Optimistic applies a change to memory first and then persists the whole
	// collection with Backend.ReplaceAll.
	Optimistic SyncPolicy = iota

	// Authoritative persists a change first and then replaces memory with a
	// fresh Backend.LoadAll.
	Authoritative
)

func (p SyncPolicy) String() string {
	switch p {
	case Optimistic:
		return model.PolicyOptimistic
	case Authoritative:
		return model.PolicyAuthoritative
	default:
		return fmt.Sprintf("SyncPolicy(%d)", int(p))
	}
}

// ParseSyncPolicy maps a configuration value to a SyncPolicy.
func ParseSyncPolicy(s string) (SyncPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case model.PolicyOptimistic:
		return Optimistic, nil
	case model.PolicyAuthoritative:
		return Authoritative, nil
	default:
		return 0, fmt.Errorf("unknown sync policy %q", s)
	}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPolicy sets the synchronization policy. The default is Optimistic.
func WithPolicy(p SyncPolicy) Option {
	return func(t *Tracker) { t.policy = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// WithIDGenerator replaces the UUIDv7 generator used for new deadlines under
// the Optimistic policy. Authoritative inserts let the backend assign IDs.
func WithIDGenerator(gen func() string) Option {
	return func(t *Tracker) { t.newID = gen }
}

// Tracker is the deadline collection shared by the CLI commands and the
// poller. All methods are safe for concurrent use.
type Tracker struct {
	backend store.Backend
	policy  SyncPolicy
	now     func() time.Time
	log     zerolog.Logger
	newID   func() string

	mu       sync.Mutex
	items    []model.Deadline
	selected string
	// issued is the last sequence number handed out; applied is the sequence
	// of the change memory currently reflects.
	issued  uint64
	applied uint64
	// pending holds the write round-trips still in flight, by sequence. A
	// load waits for the writes issued before it.
	pending map[uint64]chan struct{}
	subs    map[int]chan []model.Deadline
	nextSub int
	closed  bool

	persistMu sync.Mutex
	persisted uint64

	wg sync.WaitGroup
}

// New returns an empty tracker over backend. Call Load to populate it.
func New(backend store.Backend, opts ...Option) *Tracker {
	t := &Tracker{
		backend: backend,
		policy:  Optimistic,
		now:     time.Now,
		log:     zerolog.Nop(),
		newID:   newUUID,
		pending: make(map[uint64]chan struct{}),
		subs:    make(map[int]chan []model.Deadline),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Policy reports the synchronization policy in use.
func (t *Tracker) Policy() SyncPolicy { return t.policy }

// Normalize repairs a loaded record: an unknown ColorStatus is replaced by
// the classification of its DueAt at now.
func Normalize(d model.Deadline, now time.Time) model.Deadline {
	if !d.ColorStatus.Valid() {
		d.ColorStatus = urgency.ClassifyDueAt(d.DueAt, now)
	}
	return d
}

// === Reads ===

// Deadlines returns a copy of the collection in due order.
func (t *Tracker) Deadlines() []model.Deadline {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.items)
}

// Get looks up a deadline by ID.
func (t *Tracker) Get(id string) (model.Deadline, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getLocked(id)
}

func (t *Tracker) getLocked(id string) (model.Deadline, bool) {
	i := t.indexLocked(id)
	if i < 0 {
		return model.Deadline{}, false
	}
	return t.items[i], true
}

func (t *Tracker) indexLocked(id string) int {
	return slices.IndexFunc(t.items, func(d model.Deadline) bool { return d.ID == id })
}

// === Selection ===

// Select marks id as the current deadline. The ID need not exist.
func (t *Tracker) Select(id string) {
	t.mu.Lock()
	t.selected = id
	t.mu.Unlock()
}

// ClearSelection drops the current selection.
func (t *Tracker) ClearSelection() {
	t.Select("")
}

// Selected returns the selected ID.
func (t *Tracker) Selected() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected, t.selected != ""
}

// SelectedDeadline returns the selected deadline if it is in the collection.
func (t *Tracker) SelectedDeadline() (model.Deadline, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selected == "" {
		return model.Deadline{}, false
	}
	return t.getLocked(t.selected)
}

// === Subscriptions ===

// Subscribe returns a channel that receives the collection after every
// change. Only the latest snapshot is kept for a slow reader. The returned
// function unsubscribes; the channel is also closed by Close.
func (t *Tracker) Subscribe() (<-chan []model.Deadline, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan []model.Deadline, 1)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	key := t.nextSub
	t.nextSub++
	t.subs[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if c, ok := t.subs[key]; ok {
				delete(t.subs, key)
				close(c)
			}
		})
	}
}

func (t *Tracker) notifyLocked() {
	for _, ch := range t.subs {
		snap := slices.Clone(t.items)
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// === Lifecycle ===

// Close waits for in-flight backend work and closes all subscriptions.
// Operations issued afterwards fail with ErrClosed.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.wg.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	for key, ch := range t.subs {
		delete(t.subs, key)
		close(ch)
	}
	return nil
}

// === Load ===

// Load replaces the collection with the backend's contents. If the backend
// fails the collection becomes empty. A load that completes after a later
// change has been applied is discarded.
func (t *Tracker) Load(ctx context.Context) *Op {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return completedOp("", ErrClosed)
	}

	op := newOp()
	t.startLoadLocked(ctx, op, true, "")
	return op
}

// startLoadLocked issues a load sequence and fetches in the background.
// When emptyOnError is false a failed fetch leaves memory untouched.
func (t *Tracker) startLoadLocked(ctx context.Context, op *Op, emptyOnError bool, id string) {
	t.issued++
	seq := t.issued
	waitFor := t.pendingBeforeLocked(seq)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for _, ch := range waitFor {
			<-ch
		}

		ds, err := t.backend.LoadAll(context.WithoutCancel(ctx))
		if err != nil {
			err = &store.PersistenceError{Op: "load", Err: err}
			t.log.Error().Err(err).Uint64("seq", seq).Msg("loading deadlines failed")
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		if seq < t.applied {
			t.log.Debug().Uint64("seq", seq).Uint64("applied", t.applied).Msg("discarding stale load")
			op.id = id
			op.finish(err)
			return
		}
		switch {
		case err == nil:
			now := t.now()
			for i := range ds {
				ds[i] = Normalize(ds[i], now)
			}
			t.replaceLocked(seq, ordering.Deadlines(ds))
			t.log.Debug().Int("count", len(ds)).Uint64("seq", seq).Msg("deadlines loaded")
		case emptyOnError:
			t.replaceLocked(seq, nil)
		}
		op.id = id
		op.finish(err)
	}()
}

func (t *Tracker) pendingBeforeLocked(seq uint64) []<-chan struct{} {
	var chans []<-chan struct{}
	for s, ch := range t.pending {
		if s < seq {
			chans = append(chans, ch)
		}
	}
	return chans
}

func (t *Tracker) replaceLocked(seq uint64, items []model.Deadline) {
	if items == nil {
		items = []model.Deadline{}
	}
	t.items = items
	t.applied = seq
	t.notifyLocked()
}

// === Mutations ===

// Add creates a deadline. When in.DueAt is empty it is resolved from
// DueDate, DueTime and Timezone, and a resolution failure is returned as a
// *temporal.ValidationError before anything changes.
func (t *Tracker) Add(ctx context.Context, in model.CreateInput) (*Op, error) {
	dueAt := in.DueAt
	if dueAt == "" {
		resolved, err := temporal.ResolveDueAt(in.DueDate, in.DueTime, in.Timezone)
		if err != nil {
			return nil, err
		}
		dueAt = resolved
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}

	now := t.now()
	stamp := temporal.FormatInstant(now)
	color := in.ColorStatus
	if !color.Valid() {
		color = urgency.ClassifyDueAt(dueAt, now)
	}
	d := model.Deadline{
		CourseName:     in.CourseName,
		AssignmentName: in.AssignmentName,
		DueDate:        in.DueDate,
		DueTime:        in.DueTime,
		DueAt:          dueAt,
		ColorStatus:    color,
		CreatedAt:      stamp,
		UpdatedAt:      stamp,
	}

	if t.policy == Authoritative {
		op := newOp()
		t.startWriteLocked(ctx, op, "insert", func(ctx context.Context) (string, error) {
			return t.backend.Insert(ctx, d)
		})
		return op, nil
	}

	d.ID = t.newID()
	items := append(slices.Clone(t.items), d)
	return t.applyOptimisticLocked(ctx, d.ID, ordering.Deadlines(items)), nil
}

// Update merges in onto the deadline with the given ID. It returns a
// *store.NotFoundError when the ID is not in the collection and a
// *temporal.ValidationError when a changed date or time cannot be resolved.
// ColorStatus is always reclassified and UpdatedAt always moves forward.
func (t *Tracker) Update(ctx context.Context, id string, in model.UpdateInput) (*Op, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}

	prev, ok := t.getLocked(id)
	if !ok {
		return nil, &store.NotFoundError{ID: id}
	}

	patch := model.Patch{
		CourseName:     in.CourseName,
		AssignmentName: in.AssignmentName,
		DueDate:        in.DueDate,
		DueTime:        in.DueTime,
		DueAt:          in.DueAt,
	}
	d := in.Apply(prev)
	if in.ReschedulesWithoutInstant() {
		dueAt, err := temporal.ResolveDueAt(d.DueDate, d.DueTime, in.Timezone)
		if err != nil {
			return nil, err
		}
		d.DueAt = dueAt
		patch.DueAt = &dueAt
	}

	now := t.now()
	patch.ColorStatus = urgency.ClassifyDueAt(d.DueAt, now)
	patch.UpdatedAt = nextUpdatedAt(prev.UpdatedAt, now)
	d = patch.Apply(prev)

	// The backend receives the patch, not d: memory may predate earlier
	// writes that have not been refetched yet.
	if t.policy == Authoritative {
		op := newOp()
		t.startWriteLocked(ctx, op, "update", func(ctx context.Context) (string, error) {
			return "", t.backend.Update(ctx, id, patch)
		})
		return op, nil
	}

	items := slices.Clone(t.items)
	items[t.indexLocked(id)] = d
	return t.applyOptimisticLocked(ctx, "", ordering.Deadlines(items)), nil
}

// nextUpdatedAt formats now, bumped one millisecond past prev when the clock
// has not advanced beyond it.
func nextUpdatedAt(prev string, now time.Time) string {
	next := now.UTC().Truncate(time.Millisecond)
	if last, err := temporal.ParseInstant(prev); err == nil && !next.After(last) {
		next = last.Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return temporal.FormatInstant(next)
}

// Remove deletes the deadline with the given ID and clears the selection if
// it pointed there. Removing an absent ID does nothing.
func (t *Tracker) Remove(ctx context.Context, id string) *Op {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return completedOp("", ErrClosed)
	}

	if t.selected == id {
		t.selected = ""
	}
	i := t.indexLocked(id)
	if i < 0 {
		return completedOp("", nil)
	}

	if t.policy == Authoritative {
		op := newOp()
		t.startWriteLocked(ctx, op, "delete", func(ctx context.Context) (string, error) {
			return "", t.backend.Delete(ctx, id)
		})
		return op
	}

	items := slices.Delete(slices.Clone(t.items), i, i+1)
	return t.applyOptimisticLocked(ctx, "", items)
}

// applyOptimisticLocked installs items in memory and persists them as a
// snapshot in the background. Snapshots are written in sequence order; a
// snapshot older than one already written is dropped.
func (t *Tracker) applyOptimisticLocked(ctx context.Context, id string, items []model.Deadline) *Op {
	t.issued++
	seq := t.issued
	t.replaceLocked(seq, items)

	snapshot := slices.Clone(items)
	done := make(chan struct{})
	t.pending[seq] = done

	op := newOp()
	op.id = id
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		err := t.persistSnapshot(context.WithoutCancel(ctx), seq, snapshot)

		t.mu.Lock()
		delete(t.pending, seq)
		t.mu.Unlock()
		close(done)
		op.finish(err)
	}()
	return op
}

func (t *Tracker) persistSnapshot(ctx context.Context, seq uint64, snapshot []model.Deadline) error {
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	if seq < t.persisted {
		t.log.Debug().Uint64("seq", seq).Uint64("persisted", t.persisted).Msg("skipping superseded snapshot")
		return nil
	}
	t.persisted = seq

	if err := t.backend.ReplaceAll(ctx, snapshot); err != nil {
		err = &store.PersistenceError{Op: "replace_all", Err: err}
		t.log.Error().Err(err).Uint64("seq", seq).Msg("persisting deadlines failed")
		return err
	}
	return nil
}

// startWriteLocked runs write in the background once every earlier write
// has finished and, if it succeeds, refetches the collection. A failed write
// or refetch leaves memory as it was.
func (t *Tracker) startWriteLocked(
	ctx context.Context,
	op *Op,
	name string,
	write func(context.Context) (string, error),
) {
	t.issued++
	seq := t.issued
	waitFor := t.pendingBeforeLocked(seq)
	done := make(chan struct{})
	t.pending[seq] = done

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for _, ch := range waitFor {
			<-ch
		}
		bctx := context.WithoutCancel(ctx)
		id, err := write(bctx)

		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.pending, seq)
		close(done)

		if err != nil {
			err = &store.PersistenceError{Op: name, Err: err}
			t.log.Error().Err(err).Str("op", name).Msg("persisting deadline failed")
			op.finish(err)
			return
		}
		t.startLoadLocked(bctx, op, false, id)
	}()
}
