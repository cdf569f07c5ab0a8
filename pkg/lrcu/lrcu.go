// Package lrcu provides the public API for the lazy read-copy-update
// reclamation engine.
//
// See doc.go for an overview and examples.
package lrcu

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kolkov/lrcu/internal/lrcu/engine"
	"github.com/kolkov/lrcu/internal/lrcu/queue"
)

// DefaultNamespace is the namespace every ThreadInit joins and every
// defaulted operation targets.
const DefaultNamespace = engine.DefaultNamespace

// Sentinel errors returned by the operations below. Callers should test
// for these with errors.Is rather than comparing strings.
var (
	ErrUnknownNamespace  = engine.ErrUnknownNamespace
	ErrNotRegistered     = engine.ErrNotRegistered
	ErrNamespaceExists   = engine.ErrNamespaceExists
	ErrCounterUnderflow  = engine.ErrCounterUnderflow
	ErrNestedWriter      = engine.ErrNestedWriter
	ErrTooManyThreads    = engine.ErrTooManyThreads
	ErrWorkerStartFailed = engine.ErrWorkerStartFailed
	ErrShuttingDown      = engine.ErrShuttingDown
	ErrSelfDeadlock      = engine.ErrSelfDeadlock
)

// Config holds the engine's compile-time-style tunables: the worker's
// poll period, the synchronize/barrier poll interval, and the
// hung-reader timeout.
type Config = engine.Config

// DefaultConfig returns the documented defaults: a 50µs worker period,
// a 100µs synchronize poll interval, and a 600s hang timeout.
func DefaultConfig() Config { return engine.DefaultConfig() }

// Option configures optional Engine dependencies.
type Option = engine.Option

// WithLogger sets the structured logger the engine uses for lifecycle
// and hung-reader diagnostics. Omitting this discards all log output.
func WithLogger(l *zap.Logger) Option { return engine.WithLogger(l) }

// WithMetrics registers the engine's Prometheus collectors against reg.
// Omitting this option disables metrics entirely.
func WithMetrics(reg prometheus.Registerer) Option { return engine.WithMetrics(reg) }

// Entry is a caller-allocated, intrusively-linked callback entry for use
// with CallHead, avoiding the allocation Call performs internally.
type Entry = queue.IntrusiveEntry

// Engine is a reclamation domain: a namespace table, a background
// reclamation worker, and the goroutine registry backing ReadLock's
// thread-local-storage emulation.
//
// The zero value is not usable; construct one with New.
type Engine struct {
	e *engine.Engine
}

// New starts a reclamation engine: it spawns the background worker,
// waits for it to report itself running, and creates the default
// namespace. It returns ErrWorkerStartFailed if the worker does not
// start within a bounded timeout.
func New(cfg Config, opts ...Option) (*Engine, error) {
	e, err := engine.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Engine{e: e}, nil
}

// Shutdown stops the reclamation worker and discards every remaining
// namespace unconditionally, regardless of whether readers or pending
// callbacks still reference them.
func (en *Engine) Shutdown() error { return en.e.Shutdown() }

// NamespaceInit creates and publishes a new namespace at id. It returns
// ErrNamespaceExists if id is already bound to a live namespace.
func (en *Engine) NamespaceInit(id uint8) error {
	_, err := en.e.NamespaceInit(id)
	return err
}

// NamespaceDeinit unpublishes the namespace at id and blocks until the
// reclamation worker has drained every enqueued callback and freed it.
func (en *Engine) NamespaceDeinit(id uint8) error {
	return en.e.NamespaceDeinit(id)
}

// NamespaceDeinitSafe unpublishes the namespace at id and returns
// immediately; the engine finishes reclaiming and frees it in the
// background once no registered thread still references it.
func (en *Engine) NamespaceDeinitSafe(id uint8) error {
	return en.e.NamespaceDeinitSafe(id)
}

// ThreadInit registers the calling goroutine with the engine and joins
// it to DefaultNamespace. Every goroutine that calls ReadLock, WriteLock
// or Call must call ThreadInit first.
func (en *Engine) ThreadInit() error {
	_, err := en.e.ThreadInit()
	return err
}

// ThreadDeinit removes the calling goroutine's registration from every
// namespace it joined.
func (en *Engine) ThreadDeinit() error { return en.e.ThreadDeinit() }

// ThreadJoinNamespace additionally registers the calling goroutine on
// the namespace at id, on top of whatever namespaces it already joined.
// It returns ErrTooManyThreads if id's namespace already has ThreadsMax
// threads registered.
func (en *Engine) ThreadJoinNamespace(id uint8) error {
	return en.e.ThreadJoinNamespace(id)
}

// ThreadLeaveNamespace removes the calling goroutine's registration from
// the namespace at id only, leaving its registration on any other
// namespace untouched.
func (en *Engine) ThreadLeaveNamespace(id uint8) error {
	return en.e.ThreadLeaveNamespace(id)
}

// ReadLock enters a read section in namespace id for the calling
// goroutine. Read sections nest: an outer/inner pair of calls is valid
// and only the outermost ReadLock captures the namespace's version. It
// panics with ErrUnknownNamespace or ErrNotRegistered if id names no
// live namespace or the calling goroutine never called ThreadInit —
// both are programmer-contract violations, not recoverable errors.
//
//go:nosplit
func (en *Engine) ReadLock(id uint8) error { return en.e.ReadLock(id) }

// ReadUnlock exits a read section in namespace id for the calling
// goroutine. It panics with ErrCounterUnderflow if there is no matching
// outstanding ReadLock, since that can only happen from unbalanced
// caller code.
//
//go:nosplit
func (en *Engine) ReadUnlock(id uint8) error { return en.e.ReadUnlock(id) }

// WriteLock acquires namespace id's write serializer for the calling
// goroutine and bumps its version. Write sections are not nestable: a
// goroutine calling WriteLock again before WriteUnlock panics with
// ErrNestedWriter instead of deadlocking against itself.
func (en *Engine) WriteLock(id uint8) error { return en.e.WriteLock(id) }

// WriteUnlock releases namespace id's write serializer.
func (en *Engine) WriteUnlock(id uint8) error { return en.e.WriteUnlock(id) }

// Call schedules destructor(payload) to run once no reader can still
// observe the version of namespace id current at the time of the call.
func (en *Engine) Call(id uint8, payload any, destructor func(any)) error {
	return en.e.Call(id, payload, destructor)
}

// CallHead schedules a caller-allocated Entry for reclamation without an
// additional allocation. The caller must set entry.Destructor before
// calling this.
func (en *Engine) CallHead(id uint8, entry *Entry) error {
	return en.e.CallHead(id, entry)
}

// Synchronize blocks until no reader of namespace id still holds a read
// section that began at or before the namespace's version at the time of
// the call. It does not wait for destructors to run (Barrier does). It
// returns ErrSelfDeadlock if called from the reclamation worker's own
// goroutine.
func (en *Engine) Synchronize(id uint8) error { return en.e.Synchronize(id) }

// Barrier blocks until namespace id's processed version has advanced
// past the version snapshotted at the time of the call, i.e. until the
// corresponding destructors have actually run. It returns
// ErrSelfDeadlock if called from the reclamation worker's own goroutine.
func (en *Engine) Barrier(id uint8) error { return en.e.Barrier(id) }
