package tracker

import "context"

// Op is the completion handle of a background backend round-trip. Callers
// may ignore it; tests and the CLI wait on it.
type Op struct {
	done chan struct{}
	err  error
	id   string
}

func newOp() *Op {
	return &Op{done: make(chan struct{})}
}

func completedOp(id string, err error) *Op {
	o := newOp()
	o.id = id
	o.finish(err)
	return o
}

// finish records the outcome. It must be called exactly once.
func (o *Op) finish(err error) {
	o.err = err
	close(o.done)
}

// Done is closed when the operation has completed.
func (o *Op) Done() <-chan struct{} { return o.done }

// Wait blocks until the operation completes or ctx is done. Cancelling ctx
// does not cancel the operation itself.
func (o *Op) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the operation's error, or nil while it is still running.
func (o *Op) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// ID returns the ID of the deadline an Add created. It is empty until the
// operation completes, and for operations other than Add.
func (o *Op) ID() string {
	select {
	case <-o.done:
		return o.id
	default:
		return ""
	}
}
