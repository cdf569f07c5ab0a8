// Package namespace implements one reclamation epoch domain: an
// independent version counter, its pending-callback queues, and the
// registry of threads currently reading or writing inside it.
//
// Namespaces are independent of one another: a writer or the worker
// draining namespace A never blocks on, or coordinates with, namespace
// B. internal/lrcu/engine owns the table of namespaces and the worker
// goroutine that drains all of them in turn; this package owns only the
// state local to a single epoch domain.
package namespace

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"sync/atomic"

	"github.com/kolkov/lrcu/internal/lrcu/gid"
	"github.com/kolkov/lrcu/internal/lrcu/queue"
	"github.com/kolkov/lrcu/internal/lrcu/threadinfo"
	"github.com/kolkov/lrcu/internal/lrcu/ticketlock"
)

// ErrNestedWriter is the fail-fast panic value for a WriteLock call made
// by a goroutine that already holds this namespace's write section.
// spec.md §7 classifies reentrant WriteLock as a programmer-contract
// violation: the ticket lock itself would just deadlock the goroutine
// against its own held ticket, which is indistinguishable from a stalled
// writer elsewhere, so WriteLock detects the self-deadlock case up
// front and panics with a diagnosable value instead.
var ErrNestedWriter = errors.New("lrcu: nested write lock on namespace")

// ErrTooManyThreads is returned by RegisterThread when the namespace
// already has ThreadsMax threads registered. Unlike the programmer
// errors above, this is a resource-exhaustion condition — analogous to
// spec.md §7's OutOfMemory — so it is reported as an ordinary error a
// caller can act on, not a panic.
var ErrTooManyThreads = errors.New("lrcu: namespace thread registry full")

// noOwner is the writeOwner sentinel meaning "no goroutine currently
// holds the write section".
const noOwner = -1

// Namespace is one epoch domain: a version counter, a write serializer,
// two pending-callback queues and two thread registries (active and
// hung readers).
type Namespace struct {
	// ID identifies this namespace's slot in the engine's table.
	ID uint8

	// SyncTimeout is the poll granularity Synchronize/Barrier use while
	// waiting for this namespace's worker pass to catch up.
	SyncTimeout time.Duration

	version          atomic.Uint64
	processedVersion atomic.Uint64

	writeLock  ticketlock.Lock
	writeOwner atomic.Int64

	queueLock     sync.Mutex
	free          queue.Queue
	freeIntrusive queue.IntrusiveQueue

	// ThreadsMax bounds the number of threads simultaneously registered
	// (active+hung) on this namespace, per spec.md §6 THREADS_MAX.
	ThreadsMax int

	threadsLock sync.Mutex
	active      []*threadinfo.Info
	hung        []*threadinfo.Info

	// tearingDown is set by Deinit/DeinitSafe; deinitVersion records the
	// version at the moment teardown began, used by the worker to decide
	// when every remaining reader has moved past it (§4.1 deinit_safe).
	tearingDown   atomic.Bool
	deinitVersion atomic.Uint64
}

// New allocates a namespace with version=1 and processed_version=0, per
// SPEC_FULL.md §4.1 init. threadsMax bounds the number of simultaneously
// registered threads (spec.md §6 THREADS_MAX).
func New(id uint8, syncTimeout time.Duration, threadsMax int) *Namespace {
	ns := &Namespace{ID: id, SyncTimeout: syncTimeout, ThreadsMax: threadsMax}
	ns.version.Store(1)
	ns.writeOwner.Store(noOwner)
	return ns
}

// Version returns the current version counter.
func (ns *Namespace) Version() uint64 { return ns.version.Load() }

// ProcessedVersion returns the greatest version for which every
// scheduled callback enqueued at or before it has run.
func (ns *Namespace) ProcessedVersion() uint64 { return ns.processedVersion.Load() }

// SetProcessedVersion publishes v as the new processed_version. Only the
// worker calls this, after a drain pass.
func (ns *Namespace) SetProcessedVersion(v uint64) { ns.processedVersion.Store(v) }

// Bump unconditionally advances the version counter by one and returns
// the new value. Used by WriteLock and by the worker's liveness
// write-barrier (§4.3 step 5).
func (ns *Namespace) Bump() uint64 { return ns.version.Add(1) }

// WriteLock acquires the namespace's write serializer and unconditionally
// bumps the version. The section is not nestable: a goroutine that calls
// WriteLock again before WriteUnlock is a programmer-contract violation
// (SPEC_FULL.md's NestedWriter) — left unchecked it would just deadlock
// the goroutine against its own held ticket, so WriteLock recognizes its
// own owner and panics with ErrNestedWriter instead.
func (ns *Namespace) WriteLock() {
	if ns.writeOwner.Load() == gid.Current() {
		panic(ErrNestedWriter)
	}
	ns.writeLock.Lock()
	ns.writeOwner.Store(gid.Current())
	ns.Bump()
}

// WriteUnlock releases the write serializer acquired by WriteLock.
func (ns *Namespace) WriteUnlock() {
	ns.writeOwner.Store(noOwner)
	ns.writeLock.Unlock()
}

// EnterRead records a read-section entry for ti, capturing the current
// version on the outermost entry. Returns the updated nesting depth.
//
//go:nosplit
func (ns *Namespace) EnterRead(ti *threadinfo.Info) int32 {
	ti.EnterRead(ns.ID, ns.version.Load())
	return ti.Counter(ns.ID)
}

// ExitRead records a read-section exit for ti, returning the nesting
// depth before the decrement. It panics with threadinfo.ErrCounterUnderflow
// if the counter was already zero (SPEC_FULL.md's CounterUnderflow).
//
//go:nosplit
func (ns *Namespace) ExitRead(ti *threadinfo.Info) (before int32) {
	return ti.ExitRead(ns.ID)
}

// EnqueueCall appends an owned-payload callback entry to the free queue.
// Safe to call from any context: reader, writer, or worker.
func (ns *Namespace) EnqueueCall(payload any, destructor func(any)) *queue.Entry {
	e := &queue.Entry{Payload: payload, Destructor: destructor, Version: ns.version.Load()}
	ns.queueLock.Lock()
	ns.free.Push(e)
	ns.queueLock.Unlock()
	return e
}

// EnqueueCallHead links a caller-owned intrusive entry onto the free
// queue without allocating. The caller fills Destructor before calling
// this; EnqueueCallHead only stamps Version and links the node.
func (ns *Namespace) EnqueueCallHead(e *queue.IntrusiveEntry) {
	e.Version = ns.version.Load()
	ns.queueLock.Lock()
	ns.freeIntrusive.Push(e)
	ns.queueLock.Unlock()
}

// SpliceQueues moves every entry waiting on the free queues onto the
// worker-owned queues passed in, under the queue lock, and reports
// whether both free queues were already empty.
func (ns *Namespace) SpliceQueues(workerQ *queue.Queue, workerIntrusive *queue.IntrusiveQueue) (wasEmpty bool) {
	ns.queueLock.Lock()
	wasEmpty = ns.free.Empty() && ns.freeIntrusive.Empty()
	workerQ.Splice(&ns.free)
	workerIntrusive.Splice(&ns.freeIntrusive)
	ns.queueLock.Unlock()
	return wasEmpty
}

// RegisterThread appends ti to the active-threads list. It returns
// ErrTooManyThreads, without registering ti, if doing so would exceed
// ThreadsMax.
func (ns *Namespace) RegisterThread(ti *threadinfo.Info) error {
	ns.threadsLock.Lock()
	defer ns.threadsLock.Unlock()
	if ns.ThreadsMax > 0 && len(ns.active)+len(ns.hung) >= ns.ThreadsMax {
		return fmt.Errorf("%w: namespace=%d max=%d", ErrTooManyThreads, ns.ID, ns.ThreadsMax)
	}
	ns.active = append(ns.active, ti)
	return nil
}

// UnregisterThread removes ti, searched for by identity, from whichever
// of the active/hung lists it is currently on. Reports whether it was
// found.
func (ns *Namespace) UnregisterThread(ti *threadinfo.Info) bool {
	ns.threadsLock.Lock()
	defer ns.threadsLock.Unlock()

	if idx := indexOf(ns.active, ti); idx >= 0 {
		ns.active = removeAt(ns.active, idx)
		return true
	}
	if idx := indexOf(ns.hung, ti); idx >= 0 {
		ns.hung = removeAt(ns.hung, idx)
		return true
	}
	return false
}

func indexOf(list []*threadinfo.Info, ti *threadinfo.Info) int {
	for i, v := range list {
		if v == ti {
			return i
		}
	}
	return -1
}

func removeAt(list []*threadinfo.Info, idx int) []*threadinfo.Info {
	list[idx] = list[len(list)-1]
	return list[:len(list)-1]
}

// Threads returns copies of the active and hung thread lists, taken
// under the threads lock, for the worker's range-computation scan.
func (ns *Namespace) Threads() (active, hung []*threadinfo.Info) {
	ns.threadsLock.Lock()
	active = append([]*threadinfo.Info(nil), ns.active...)
	hung = append([]*threadinfo.Info(nil), ns.hung...)
	ns.threadsLock.Unlock()
	return active, hung
}

// MoveToHung transfers ti from the active list to the hung list. Called
// only by the worker, under the threads lock.
func (ns *Namespace) MoveToHung(ti *threadinfo.Info) {
	ns.threadsLock.Lock()
	if idx := indexOf(ns.active, ti); idx >= 0 {
		ns.active = removeAt(ns.active, idx)
		ns.hung = append(ns.hung, ti)
	}
	ns.threadsLock.Unlock()
}

// MoveToActive transfers ti from the hung list back to the active list,
// used when a previously-stalled reader is observed to have made
// progress or released its section.
func (ns *Namespace) MoveToActive(ti *threadinfo.Info) {
	ns.threadsLock.Lock()
	if idx := indexOf(ns.hung, ti); idx >= 0 {
		ns.hung = removeAt(ns.hung, idx)
		ns.active = append(ns.active, ti)
	}
	ns.threadsLock.Unlock()
}

// ThreadCount reports the total number of threads registered on either
// list.
func (ns *Namespace) ThreadCount() int {
	ns.threadsLock.Lock()
	n := len(ns.active) + len(ns.hung)
	ns.threadsLock.Unlock()
	return n
}

// OnlyThreadIs reports whether ti is the sole thread registered (on
// either list), used to detect that only the worker's own Info remains
// before freeing a torn-down namespace.
func (ns *Namespace) OnlyThreadIs(ti *threadinfo.Info) bool {
	ns.threadsLock.Lock()
	defer ns.threadsLock.Unlock()
	return len(ns.active)+len(ns.hung) == 1 &&
		(len(ns.active) == 0 || ns.active[0] == ti) &&
		(len(ns.hung) == 0 || ns.hung[0] == ti)
}

// EveryOtherThreadPastDeinit reports whether every registered thread
// other than ti is either quiescent (Counter == 0) or has already
// observed a version at or beyond atVersion — the condition
// deinit_safe waits for before a torn-down namespace can be freed.
func (ns *Namespace) EveryOtherThreadPastDeinit(ti *threadinfo.Info, atVersion uint64) bool {
	ns.threadsLock.Lock()
	defer ns.threadsLock.Unlock()

	check := func(list []*threadinfo.Info) bool {
		for _, other := range list {
			if other == ti {
				continue
			}
			snap := other.Snapshot(ns.ID)
			if snap.Counter != 0 && snap.Version < atVersion {
				return false
			}
		}
		return true
	}
	return check(ns.active) && check(ns.hung)
}

// BeginTeardown marks the namespace as unpublished from the live table
// and records the version at which teardown began. ns.Bump() must be
// called by the caller as part of the same operation (see §4.1 deinit:
// "unpublishes..., bumps version").
func (ns *Namespace) BeginTeardown() {
	ns.deinitVersion.Store(ns.version.Load())
	ns.tearingDown.Store(true)
}

// TearingDown reports whether the namespace has begun teardown, and if
// so the version recorded at that moment.
func (ns *Namespace) TearingDown() (atVersion uint64, tearing bool) {
	if !ns.tearingDown.Load() {
		return 0, false
	}
	return ns.deinitVersion.Load(), true
}

// QueuesEmpty reports whether both free queues are currently empty.
// Used by the worker's deferred-teardown check; it does not reflect the
// worker-private queues, which the worker already knows are empty once
// it has drained them.
func (ns *Namespace) QueuesEmpty() bool {
	ns.queueLock.Lock()
	defer ns.queueLock.Unlock()
	return ns.free.Empty() && ns.freeIntrusive.Empty()
}
