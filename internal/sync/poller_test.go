package sync_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/deadliner/internal/model"
	dsync "github.com/nhle/deadliner/internal/sync"
	"github.com/nhle/deadliner/internal/tracker"
	"github.com/nhle/deadliner/tests/testutil"
)

func nextResult(t *testing.T, p *dsync.Poller) dsync.Result {
	t.Helper()
	select {
	case r := <-p.Results():
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no reload result")
		return dsync.Result{}
	}
}

func TestPollerReloadsOnStartAndRefresh(t *testing.T) {
	b := testutil.NewMemoryBackend(model.Deadline{ID: "a", DueAt: "2026-02-20T07:30:00.000Z", ColorStatus: model.ColorRed})
	tr := tracker.New(b)
	t.Cleanup(func() { _ = tr.Close() })

	p := dsync.New(tr, time.Hour, zerolog.Nop())
	p.Start()
	p.Start()
	defer p.Stop()

	r := nextResult(t, p)
	require.NoError(t, r.Err)
	require.Len(t, r.Deadlines, 1)
	assert.Equal(t, "a", r.Deadlines[0].ID)
	assert.False(t, r.At.IsZero())

	b.Seed(
		model.Deadline{ID: "a", DueAt: "2026-02-20T07:30:00.000Z", ColorStatus: model.ColorRed},
		model.Deadline{ID: "b", DueAt: "2026-02-19T07:30:00.000Z", ColorStatus: model.ColorRed},
	)
	p.Refresh()

	r = nextResult(t, p)
	require.NoError(t, r.Err)
	require.Len(t, r.Deadlines, 2)
	assert.Equal(t, "b", r.Deadlines[0].ID)

	st := p.Status()
	assert.Equal(t, dsync.SyncIdle, st.State)
	assert.False(t, st.LastSync.IsZero())
}

func TestPollerReportsErrors(t *testing.T) {
	b := testutil.NewMemoryBackend()
	b.Fail(testutil.OpLoadAll, errors.New("unreachable"))
	tr := tracker.New(b)
	t.Cleanup(func() { _ = tr.Close() })

	p := dsync.New(tr, time.Hour, zerolog.Nop())
	p.Start()
	defer p.Stop()

	r := nextResult(t, p)
	assert.Error(t, r.Err)
	assert.Empty(t, r.Deadlines)

	st := p.Status()
	assert.Equal(t, dsync.SyncError, st.State)
	assert.Equal(t, "error", st.State.String())
	assert.Error(t, st.Error)
}

func TestPollerTicks(t *testing.T) {
	b := testutil.NewMemoryBackend()
	tr := tracker.New(b)
	t.Cleanup(func() { _ = tr.Close() })

	p := dsync.New(tr, 10*time.Millisecond, zerolog.Nop())
	p.Start()

	nextResult(t, p)
	nextResult(t, p)
	p.Stop()
	p.Stop()

	assert.GreaterOrEqual(t, b.Calls(testutil.OpLoadAll), 2)
}
