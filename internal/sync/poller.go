package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/deadliner/internal/model"
	"github.com/nhle/deadliner/internal/tracker"
)

// SyncState represents the current state of the reload loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the outcome of the most recent reload.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// Result is published after every reload.
type Result struct {
	Deadlines []model.Deadline
	Err       error
	At        time.Time
}

// Loader is the part of the tracker the poller drives.
type Loader interface {
	Load(ctx context.Context) *tracker.Op
	Deadlines() []model.Deadline
}

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 60 * time.Second

// waitTimeout bounds how long the poller waits for a single reload. The load
// itself keeps running if this expires.
const waitTimeout = 30 * time.Second

// Poller reloads the tracker from its backend on an interval and on demand.
type Poller struct {
	loader    Loader
	interval  time.Duration
	log       zerolog.Logger
	status    SyncStatus
	resultCh  chan Result
	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a Poller over loader.
func New(loader Loader, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		loader:    loader,
		interval:  interval,
		log:       log,
		resultCh:  make(chan Result, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the reload loop, which reloads once immediately. Calling
// Start on a running poller does nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	go p.loop()
}

// Stop halts the loop and waits for it to exit. A poller cannot be
// restarted.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	<-p.doneCh
}

// Refresh requests an immediate reload. Requests made while one is already
// queued are coalesced.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Results returns the channel reload results are published on. Results are
// dropped when nobody reads them.
func (p *Poller) Results() <-chan Result {
	return p.resultCh
}

// Status returns the outcome of the most recent reload.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.reload()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reload()
		case <-p.triggerCh:
			p.reload()
		}
	}
}

// reload runs one load and publishes its outcome.
func (p *Poller) reload() {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	err := p.loader.Load(ctx).Wait(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("reloading deadlines failed")
		p.setStatus(SyncError, err)
	} else {
		p.setStatus(SyncIdle, nil)
	}

	p.sendResult(Result{
		Deadlines: p.loader.Deadlines(),
		Err:       err,
		At:        time.Now(),
	})
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle {
		p.status.LastSync = time.Now()
	}
}

// sendResult publishes without blocking.
func (p *Poller) sendResult(r Result) {
	select {
	case p.resultCh <- r:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}
