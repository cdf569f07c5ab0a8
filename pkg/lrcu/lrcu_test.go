package lrcu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WorkerPeriod = time.Millisecond
	cfg.SyncPollInterval = time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	en, err := New(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = en.Shutdown() })
	return en
}

func TestNewAndShutdown(t *testing.T) {
	en := newTestEngine(t)
	require.NotNil(t, en)
}

func TestThreadInitReadSection(t *testing.T) {
	en := newTestEngine(t)
	require.NoError(t, en.ThreadInit())
	defer en.ThreadDeinit()

	require.NoError(t, en.ReadLock(DefaultNamespace))
	require.NoError(t, en.ReadUnlock(DefaultNamespace))
}

func TestReadUnlockUnderflow(t *testing.T) {
	en := newTestEngine(t)
	require.NoError(t, en.ThreadInit())
	defer en.ThreadDeinit()

	assert.PanicsWithValue(t, ErrCounterUnderflow, func() {
		_ = en.ReadUnlock(DefaultNamespace)
	})
}

func TestOperationsWithoutThreadInit(t *testing.T) {
	en := newTestEngine(t)
	assert.PanicsWithValue(t, ErrNotRegistered, func() {
		_ = en.ReadLock(DefaultNamespace)
	})
}

func TestNamespaceInitDuplicate(t *testing.T) {
	en := newTestEngine(t)
	err := en.NamespaceInit(DefaultNamespace)
	assert.ErrorIs(t, err, ErrNamespaceExists)
}

func TestNamespaceLifecycle(t *testing.T) {
	en := newTestEngine(t)
	require.NoError(t, en.NamespaceInit(5))

	require.NoError(t, en.ThreadInit())
	defer en.ThreadDeinit()
	require.NoError(t, en.ThreadJoinNamespace(5))

	require.NoError(t, en.ReadLock(5))
	require.NoError(t, en.ReadUnlock(5))

	require.NoError(t, en.ThreadLeaveNamespace(5))
	require.NoError(t, en.NamespaceDeinit(5))

	assert.PanicsWithValue(t, fmt.Errorf("%w: id=%d", ErrUnknownNamespace, 5), func() {
		_ = en.ReadLock(5)
	})
}

func TestCallReclaimsAfterBarrier(t *testing.T) {
	en := newTestEngine(t)
	require.NoError(t, en.ThreadInit())
	defer en.ThreadDeinit()

	var ran atomic.Bool
	require.NoError(t, en.Call(DefaultNamespace, "payload", func(p any) {
		assert.Equal(t, "payload", p)
		ran.Store(true)
	}))

	require.NoError(t, en.Barrier(DefaultNamespace))
	assert.True(t, ran.Load())
}

func TestSynchronizeWaitsForReaders(t *testing.T) {
	en := newTestEngine(t)
	require.NoError(t, en.ThreadInit())
	defer en.ThreadDeinit()

	var wg sync.WaitGroup
	wg.Add(1)
	readerEntered := make(chan struct{})
	readerRelease := make(chan struct{})

	go func() {
		defer wg.Done()
		require.NoError(t, en.ThreadInit())
		defer en.ThreadDeinit()
		require.NoError(t, en.ReadLock(DefaultNamespace))
		close(readerEntered)
		<-readerRelease
		require.NoError(t, en.ReadUnlock(DefaultNamespace))
	}()

	<-readerEntered
	var released atomic.Bool
	go func() {
		time.Sleep(20 * time.Millisecond)
		released.Store(true)
		close(readerRelease)
	}()

	require.NoError(t, en.Synchronize(DefaultNamespace))
	assert.True(t, released.Load(), "Synchronize returned while the reader was still inside its section")
	wg.Wait()
}

func TestPtrInitAssignDereference(t *testing.T) {
	en := newTestEngine(t)
	require.NoError(t, en.ThreadInit())
	defer en.ThreadDeinit()

	type value struct{ N int }
	var p Ptr[value]
	p.Init(&value{N: 1})

	require.NoError(t, en.ReadLock(DefaultNamespace))
	got := p.Dereference()
	require.NoError(t, en.ReadUnlock(DefaultNamespace))
	assert.Equal(t, 1, got.N)

	require.NoError(t, en.WriteLock(DefaultNamespace))
	old := p.AssignPointer(&value{N: 2})
	require.NoError(t, en.WriteUnlock(DefaultNamespace))
	assert.Equal(t, 1, old.N)

	var reclaimed atomic.Bool
	require.NoError(t, en.Call(DefaultNamespace, old, func(v any) {
		reclaimed.Store(true)
	}))
	require.NoError(t, en.Barrier(DefaultNamespace))
	assert.True(t, reclaimed.Load())

	require.NoError(t, en.ReadLock(DefaultNamespace))
	got = p.Dereference()
	require.NoError(t, en.ReadUnlock(DefaultNamespace))
	assert.Equal(t, 2, got.N)
}

func TestPtrCallCurrent(t *testing.T) {
	en := newTestEngine(t)
	require.NoError(t, en.ThreadInit())
	defer en.ThreadDeinit()

	type value struct{ N int }
	var p Ptr[value]
	p.Init(&value{N: 7})

	var freed atomic.Bool
	require.NoError(t, p.CallCurrent(en, DefaultNamespace, func(v *value) {
		assert.Equal(t, 7, v.N)
		freed.Store(true)
	}))

	require.NoError(t, en.Barrier(DefaultNamespace))
	assert.True(t, freed.Load())
}

func TestStandaloneAssignPointer(t *testing.T) {
	en := newTestEngine(t)
	require.NoError(t, en.ThreadInit())
	defer en.ThreadDeinit()

	type value struct{ N int }
	var slot atomic.Pointer[value]
	slot.Store(&value{N: 1})

	old, err := AssignPointer(en, &slot, &value{N: 2}, DefaultNamespace)
	require.NoError(t, err)
	assert.Equal(t, 1, old.N)
	assert.Equal(t, 2, slot.Load().N)
}

func TestWriteLockNestedPanics(t *testing.T) {
	en := newTestEngine(t)
	require.NoError(t, en.ThreadInit())
	defer en.ThreadDeinit()

	require.NoError(t, en.WriteLock(DefaultNamespace))
	defer en.WriteUnlock(DefaultNamespace)

	assert.PanicsWithValue(t, ErrNestedWriter, func() {
		_ = en.WriteLock(DefaultNamespace)
	})
}

func TestThreadJoinNamespaceTooManyThreads(t *testing.T) {
	cfg := testConfig()
	cfg.ThreadsMax = 1
	en, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = en.Shutdown() })

	// ThreadsMax=1 is already consumed by the engine's own worker thread
	// registered on DefaultNamespace at NamespaceInit time.
	err = en.ThreadInit()
	assert.ErrorIs(t, err, ErrTooManyThreads)
}

func TestSelfDeadlockNotTriggeredFromOrdinaryGoroutine(t *testing.T) {
	en := newTestEngine(t)
	require.NoError(t, en.ThreadInit())
	defer en.ThreadDeinit()

	err := en.Synchronize(DefaultNamespace)
	assert.NoError(t, err)
}
