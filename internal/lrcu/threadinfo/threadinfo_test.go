package threadinfo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterExitReadNesting(t *testing.T) {
	ti := New(1)

	outermost := ti.EnterRead(0, 42)
	assert.True(t, outermost)
	assert.Equal(t, uint64(42), ti.LocalVersion(0))
	assert.EqualValues(t, 1, ti.Counter(0))

	outermost = ti.EnterRead(0, 99)
	assert.False(t, outermost)
	assert.Equal(t, uint64(42), ti.LocalVersion(0), "nested entry must not overwrite captured version")
	assert.EqualValues(t, 2, ti.Counter(0))

	before := ti.ExitRead(0)
	assert.EqualValues(t, 2, before)
	assert.EqualValues(t, 1, ti.Counter(0))

	before = ti.ExitRead(0)
	assert.EqualValues(t, 1, before)
	assert.EqualValues(t, 0, ti.Counter(0))
}

func TestExitReadUnderflow(t *testing.T) {
	ti := New(1)
	assert.PanicsWithValue(t, ErrCounterUnderflow, func() {
		ti.ExitRead(0)
	})
}

func TestNamespacesAreIndependent(t *testing.T) {
	ti := New(1)
	ti.EnterRead(0, 10)
	ti.EnterRead(1, 20)

	assert.EqualValues(t, 1, ti.Counter(0))
	assert.EqualValues(t, 1, ti.Counter(1))
	assert.Equal(t, uint64(10), ti.LocalVersion(0))
	assert.Equal(t, uint64(20), ti.LocalVersion(1))
}

func TestHungSnapshotAndTimer(t *testing.T) {
	ti := New(1)
	_, running := ti.Timer(0)
	assert.False(t, running)

	now := time.Now()
	ti.StartTimer(0, now)
	got, running := ti.Timer(0)
	require.True(t, running)
	assert.Equal(t, now, got)

	later := now.Add(time.Second)
	ti.StartTimer(0, later)
	got, _ = ti.Timer(0)
	assert.Equal(t, now, got, "StartTimer must not reset an already-running timer")

	ti.ClearTimer(0)
	_, running = ti.Timer(0)
	assert.False(t, running)

	snap := LocalNamespace{Version: 7, Counter: 1}
	ti.SetHungSnapshot(0, snap)
	assert.Equal(t, snap, ti.HungSnapshot(0))
}
