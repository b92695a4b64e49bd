package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"config-watch/internal/store"
)

func TestParseFilter(t *testing.T) {
	cases := map[string]Filter{
		"":         FilterAll,
		"all":      FilterAll,
		" Active ": FilterActive,
		"slow":     FilterSlow,
		"DEAD":     FilterDead,
		"untested": FilterUntested,
	}
	for in, want := range cases {
		got, err := ParseFilter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFilter("fastest")
	assert.Error(t, err)
}

func TestProjectKeepsStoreOrder(t *testing.T) {
	records := []store.ConfigRecord{
		{ID: "3", Status: store.StatusActive},
		{ID: "1", Status: store.StatusDead},
		{ID: "2", Status: store.StatusActive},
	}

	all := Project(records, FilterAll)
	assert.Len(t, all, 3)

	active := Project(records, FilterActive)
	require.Len(t, active, 2)
	assert.Equal(t, store.ID("3"), active[0].ID)
	assert.Equal(t, store.ID("2"), active[1].ID)

	assert.Empty(t, Project(records, FilterSlow))
	assert.NotNil(t, Project(nil, FilterAll))
}

func TestTrackerProgressCapsBelowDone(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var tr tracker

	assert.False(t, tr.progress("1", "early", now))

	tr.start("1", &store.ConfigRecord{Name: "one", Server: "::1", Port: 443}, now)
	assert.Equal(t, "[::1]:443", tr.state.Address)
	assert.Equal(t, "connecting", tr.state.Status)

	var seen []int
	for i := 0; i < 6; i++ {
		require.True(t, tr.progress("1", "probing", now))
		seen = append(seen, tr.state.Progress)
	}
	assert.Equal(t, []int{25, 50, 75, 90, 90, 90}, seen)

	assert.False(t, tr.complete("2", store.StatusActive, now))
	require.True(t, tr.complete("1", store.StatusDead, now))
	assert.Equal(t, 100, tr.state.Progress)
	assert.Equal(t, "test finished - dead", tr.state.Status)
	last := tr.state.Lines[len(tr.state.Lines)-1]
	assert.Equal(t, LevelError, last.Level)
	assert.Equal(t, "result: dead", last.Text)
}

func TestTrackerSnapshotIsolated(t *testing.T) {
	now := time.Now()
	var tr tracker
	tr.start("1", nil, now)

	snap := tr.snapshot()
	tr.fail("1", errors.New("refused"), now)
	assert.Len(t, snap.Lines, 1)
	assert.Len(t, tr.state.Lines, 2)
	assert.Empty(t, snap.Address)

	tr.close()
	assert.False(t, tr.snapshot().Active)
	assert.False(t, tr.fail("1", errors.New("late"), now))
}

func TestOperationLifecycle(t *testing.T) {
	c := newCoordinator()
	op := &c.fetch

	seq, err := op.begin()
	require.NoError(t, err)
	assert.Equal(t, Requesting, op.state)
	assert.NotEmpty(t, op.cycle)

	_, err = op.begin()
	assert.ErrorIs(t, err, ErrBusy)

	assert.Equal(t, Idle, c.testAll.state)

	assert.True(t, op.acknowledge(seq, nil))
	assert.Equal(t, AwaitingPush, op.state)
	assert.False(t, op.acknowledge(seq, nil))

	assert.True(t, op.finish())
	assert.Equal(t, Idle, op.state)
	assert.False(t, op.finish())
	assert.False(t, op.expire(seq))
}

func TestOperationAckErrorResets(t *testing.T) {
	var op operation
	seq, err := op.begin()
	require.NoError(t, err)

	stopped := false
	op.stopTimer = func() bool { stopped = true; return true }

	assert.True(t, op.acknowledge(seq, errors.New("boom")))
	assert.Equal(t, Idle, op.state)
	assert.True(t, stopped)
	assert.Nil(t, op.stopTimer)

	next, err := op.begin()
	require.NoError(t, err)
	assert.False(t, op.acknowledge(seq, nil), "ack from previous cycle")
	assert.True(t, op.expire(next))
}

func TestOpStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "requesting", Requesting.String())
	assert.Equal(t, "awaiting_push", AwaitingPush.String())
}
