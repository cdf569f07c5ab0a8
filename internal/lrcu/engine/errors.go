package engine

import (
	"errors"

	"github.com/kolkov/lrcu/internal/lrcu/namespace"
	"github.com/kolkov/lrcu/internal/lrcu/threadinfo"
)

// Sentinel errors for this package's failure modes.
//
// spec.md §7 splits these into two classes: programmer-contract
// violations (UnknownNamespace, NotRegistered, NestedWriter,
// CounterUnderflow), which are internal invariants a caller can never
// recover from and so are reported by panicking rather than returned as
// an ignorable error; and resource-exhaustion/lifecycle failures
// (NamespaceExists, WorkerStartFailed, SelfDeadlock, and
// RegisterThread's ErrTooManyThreads), which are ordinary returned
// errors a caller can act on. ErrNestedWriter and ErrCounterUnderflow
// are defined in the namespace/threadinfo packages, where the panic is
// actually raised, and aliased here so callers of this package can
// still errors.Is against a single, stable name.
var (
	// ErrUnknownNamespace is the panic value when an operation names a
	// namespace id with no bound namespace.
	ErrUnknownNamespace = errors.New("lrcu: unknown namespace")

	// ErrNotRegistered is the panic value when a goroutine calls
	// ReadLock, ReadUnlock, ThreadDeinit, ThreadJoinNamespace or
	// ThreadLeaveNamespace without a prior ThreadInit. WriteLock,
	// WriteUnlock, Call and CallHead do not look up the calling goroutine
	// and so do not check its registration.
	ErrNotRegistered = errors.New("lrcu: calling goroutine has no registered thread info")

	// ErrNamespaceExists is returned by NamespaceInit when the requested
	// id is already bound to a live namespace.
	ErrNamespaceExists = errors.New("lrcu: namespace already initialized")

	// ErrCounterUnderflow is the panic value when ReadUnlock is called
	// with no matching outstanding ReadLock.
	ErrCounterUnderflow = threadinfo.ErrCounterUnderflow

	// ErrNestedWriter is the panic value when WriteLock is called again
	// by the goroutine that already holds the namespace's write section.
	ErrNestedWriter = namespace.ErrNestedWriter

	// ErrTooManyThreads is returned by ThreadJoinNamespace/ThreadInit when
	// registering would exceed the namespace's ThreadsMax. Unlike the
	// panics above, this is a resource-exhaustion condition analogous to
	// spec.md §7's OutOfMemory, so it is an ordinary returned error.
	ErrTooManyThreads = namespace.ErrTooManyThreads

	// ErrWorkerStartFailed is returned by New if the reclamation worker
	// did not reach the Running state before startTimeout elapsed.
	ErrWorkerStartFailed = errors.New("lrcu: reclamation worker failed to start")

	// ErrShuttingDown is not returned by any operation of this package.
	// After Shutdown every namespace slot is cleared, so namespace
	// operations invoked afterwards panic with ErrUnknownNamespace.
	ErrShuttingDown = errors.New("lrcu: engine is shutting down")

	// ErrSelfDeadlock is returned by Synchronize/Barrier when called
	// from the reclamation worker's own goroutine, which would otherwise
	// block forever waiting on its own progress (SPEC_FULL.md §4, Open
	// Question on destructor reentrancy).
	ErrSelfDeadlock = errors.New("lrcu: synchronize/barrier called from the reclamation worker goroutine")
)
