// Package engine implements the process-wide reclamation engine: the
// namespace table, the background reclamation worker, and thread
// registration. It is the Go re-expression of SPEC_FULL.md's Handler
// (§4.5), generalized from a single process-wide singleton into an
// ordinary constructible object, per the re-architecture guidance in
// spec.md §9 ("prefer passing the engine explicitly").
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kolkov/lrcu/internal/lrcu/gid"
	"github.com/kolkov/lrcu/internal/lrcu/namespace"
	"github.com/kolkov/lrcu/internal/lrcu/queue"
	"github.com/kolkov/lrcu/internal/lrcu/threadinfo"
)

// DefaultNamespace is the namespace id every ThreadInit registers into
// and every defaulted operation targets, per SPEC_FULL.md §4.2.
const DefaultNamespace uint8 = 0

// startTimeout bounds how long New waits for the worker to reach
// stateRunning before giving up and returning ErrWorkerStartFailed.
const startTimeout = 5 * time.Second

// Engine is the process-wide (or, since Go's goroutine-id registry
// removes the need for a single TLS slot, optionally per-subsystem)
// reclamation engine. The zero value is not usable; construct one with
// New.
type Engine struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics

	// nsLock serializes mutations of live/worker (init, deinit, teardown
	// completion). Readers never take it: live[id] is an atomic pointer
	// so ReadLock/ReadUnlock/Dereference stay lock-free, matching
	// SPEC_FULL.md's design note that the reader fast path must remain
	// allocation-free and lock-free.
	nsLock sync.Mutex
	live   [MaxNamespaces]atomic.Pointer[namespace.Namespace]
	worker [MaxNamespaces]atomic.Pointer[namespace.Namespace]

	registry sync.Map // int64 (goroutine id) -> *threadinfo.Info

	state    atomic.Int32
	workerTI *threadinfo.Info
	workerID int64
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Option configures optional dependencies of an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger the engine and its worker use
// for diagnostics (hung readers, lifecycle events). A nil
// logger (the default) discards all log output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics registers the engine's Prometheus collectors against reg.
// Omitting this option disables metrics entirely at zero cost.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.metrics = newMetrics(reg) }
}

// New allocates an engine, spawns its reclamation worker, waits for the
// worker to report itself running, and creates the default namespace
// (id 0). If the worker does not start within a bounded timeout, New
// tears down what it built and returns ErrWorkerStartFailed, per
// SPEC_FULL.md §4.5 init's failure contract.
func New(cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    cfg.withDefaults(),
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.state.Store(int32(stateRun))
	go e.runWorker()

	deadline := time.Now().Add(startTimeout)
	for workerState(e.state.Load()) != stateRunning {
		if time.Now().After(deadline) {
			close(e.stopCh)
			return nil, ErrWorkerStartFailed
		}
		time.Sleep(time.Microsecond)
	}

	if _, err := e.NamespaceInit(DefaultNamespace); err != nil {
		e.forceStopWorker()
		return nil, fmt.Errorf("lrcu: initializing default namespace: %w", err)
	}

	e.logger.Info("lrcu engine started",
		zap.Duration("worker_period", e.cfg.WorkerPeriod),
		zap.Duration("hang_timeout", e.cfg.HangTimeout))
	return e, nil
}

func (e *Engine) forceStopWorker() {
	close(e.stopCh)
	<-e.doneCh
}

// Shutdown stops the reclamation worker and destroys every remaining
// namespace unconditionally (forced mode), per SPEC_FULL.md §4.5 deinit.
func (e *Engine) Shutdown() error {
	e.state.Store(int32(stateStop))
	close(e.stopCh)
	<-e.doneCh

	e.nsLock.Lock()
	defer e.nsLock.Unlock()
	for id := range e.live {
		if e.live[id].Load() != nil {
			e.logger.Warn("forcing teardown of namespace still live at shutdown", zap.Int("namespace", id))
		}
		e.live[id].Store(nil)
		e.worker[id].Store(nil)
	}
	e.logger.Info("lrcu engine stopped")
	return nil
}

// Namespace returns the live namespace bound to id. It performs a single
// atomic load and never blocks on nsLock, so it is safe to call from the
// reader/writer fast path. Calling it with an id that names no live
// namespace is a programmer-contract violation (SPEC_FULL.md's
// UnknownNamespace, spec.md §7): Namespace panics rather than return an
// ignorable error.
func (e *Engine) Namespace(id uint8) *namespace.Namespace {
	ns := e.live[id].Load()
	if ns == nil {
		panic(fmt.Errorf("%w: id=%d", ErrUnknownNamespace, id))
	}
	return ns
}

// NamespaceInit allocates and publishes a namespace at id, per
// SPEC_FULL.md §4.1 init. If the slot holds a namespace that was torn
// down but not yet reclaimed by the worker, that namespace is
// re-adopted: it is republished to the live table unchanged rather than
// replaced.
func (e *Engine) NamespaceInit(id uint8) (*namespace.Namespace, error) {
	e.nsLock.Lock()
	defer e.nsLock.Unlock()

	if e.live[id].Load() != nil {
		return nil, fmt.Errorf("%w: id=%d", ErrNamespaceExists, id)
	}

	if pending := e.worker[id].Load(); pending != nil {
		e.live[id].Store(pending)
		e.logger.Info("re-adopted pending namespace", zap.Int("namespace", id))
		return pending, nil
	}

	ns := namespace.New(id, e.cfg.SyncPollInterval, e.cfg.ThreadsMax)
	if err := ns.RegisterThread(e.workerTI); err != nil {
		return nil, fmt.Errorf("lrcu: registering worker thread on namespace %d: %w", id, err)
	}
	e.live[id].Store(ns)
	e.worker[id].Store(ns)
	e.logger.Debug("namespace initialized", zap.Int("namespace", id))
	return ns, nil
}

// NamespaceDeinit unpublishes the namespace at id and blocks until the
// reclamation worker has drained every enqueued callback and freed it.
func (e *Engine) NamespaceDeinit(id uint8) error {
	e.beginNamespaceTeardown(id)
	for e.worker[id].Load() != nil {
		time.Sleep(e.cfg.SyncPollInterval)
	}
	return nil
}

// NamespaceDeinitSafe unpublishes the namespace at id and returns
// immediately; the worker finishes reclamation and frees it
// asynchronously once no registered thread still references it.
func (e *Engine) NamespaceDeinitSafe(id uint8) error {
	e.beginNamespaceTeardown(id)
	return nil
}

func (e *Engine) beginNamespaceTeardown(id uint8) {
	e.nsLock.Lock()
	defer e.nsLock.Unlock()

	ns := e.live[id].Load()
	if ns == nil {
		panic(fmt.Errorf("%w: id=%d", ErrUnknownNamespace, id))
	}
	e.live[id].Store(nil)
	ns.BeginTeardown()
	ns.Bump()
	e.logger.Debug("namespace teardown requested", zap.Int("namespace", id))
}

// currentThread looks up the Info registered for the calling goroutine.
// Calling it from a goroutine that never called ThreadInit is a
// programmer-contract violation (SPEC_FULL.md's NotRegistered, spec.md
// §7): currentThread panics rather than return an ignorable error.
func (e *Engine) currentThread() *threadinfo.Info {
	v, ok := e.registry.Load(gid.Current())
	if !ok {
		panic(ErrNotRegistered)
	}
	return v.(*threadinfo.Info)
}

// ThreadInit registers the calling goroutine with the engine and joins
// it to the default namespace.
func (e *Engine) ThreadInit() (*threadinfo.Info, error) {
	id := gid.Current()
	if _, exists := e.registry.Load(id); exists {
		return nil, fmt.Errorf("lrcu: goroutine %d already registered", id)
	}

	ti := threadinfo.New(id)
	e.registry.Store(id, ti)

	if err := e.ThreadJoinNamespace(DefaultNamespace); err != nil {
		e.registry.Delete(id)
		return nil, err
	}
	return ti, nil
}

// ThreadDeinit removes the calling goroutine's Info from every namespace
// it joined and from the registry.
func (e *Engine) ThreadDeinit() error {
	ti := e.currentThread()

	for i := range e.live {
		if ns := e.live[i].Load(); ns != nil {
			ns.UnregisterThread(ti)
		}
	}
	e.registry.Delete(ti.ID)
	return nil
}

// ThreadJoinNamespace registers the calling goroutine's Info on the
// namespace at id, in addition to whatever namespaces it has already
// joined. This restores the original implementation's
// thread_set_ns, which SPEC_FULL.md §7 documents as a supplemented
// feature: ThreadInit alone only joins the default namespace.
func (e *Engine) ThreadJoinNamespace(id uint8) error {
	ti := e.currentThread()
	ns := e.Namespace(id)
	return ns.RegisterThread(ti)
}

// ThreadLeaveNamespace removes the calling goroutine's Info from the
// namespace at id, without affecting its registration in any other
// namespace.
func (e *Engine) ThreadLeaveNamespace(id uint8) error {
	ti := e.currentThread()
	ns := e.Namespace(id)
	ns.UnregisterThread(ti)
	return nil
}

// ReadLock enters a read section in namespace id for the calling
// goroutine.
//
//go:nosplit
func (e *Engine) ReadLock(id uint8) error {
	ns := e.Namespace(id)
	ti := e.currentThread()
	ns.EnterRead(ti)
	return nil
}

// ReadUnlock exits a read section in namespace id for the calling
// goroutine. It panics with threadinfo.ErrCounterUnderflow if there was
// no matching ReadLock, per spec.md §7's fail-fast policy.
//
//go:nosplit
func (e *Engine) ReadUnlock(id uint8) error {
	ns := e.Namespace(id)
	ti := e.currentThread()
	ns.ExitRead(ti)
	return nil
}

// WriteLock acquires namespace id's write serializer for the calling
// goroutine and bumps its version.
func (e *Engine) WriteLock(id uint8) error {
	ns := e.Namespace(id)
	ns.WriteLock()
	return nil
}

// WriteUnlock releases namespace id's write serializer.
func (e *Engine) WriteUnlock(id uint8) error {
	ns := e.Namespace(id)
	ns.WriteUnlock()
	return nil
}

// Call schedules destructor(payload) to run once no reader can still
// observe the current version of namespace id.
func (e *Engine) Call(id uint8, payload any, destructor func(any)) error {
	ns := e.Namespace(id)
	ns.EnqueueCall(payload, destructor)
	return nil
}

// CallHead schedules a caller-allocated intrusive entry for reclamation
// without an additional allocation. The caller must set entry.Destructor
// before calling this.
func (e *Engine) CallHead(id uint8, entry *queue.IntrusiveEntry) error {
	ns := e.Namespace(id)
	ns.EnqueueCallHead(entry)
	return nil
}

// Synchronize blocks until no reader of namespace id still holds a read
// section whose captured version is at or before the namespace's version
// at the time of the call. It polls reader state directly and does not
// wait for the worker to run the corresponding destructors; Barrier does.
func (e *Engine) Synchronize(id uint8) error {
	if gid.Current() == atomic.LoadInt64(&e.workerID) {
		return ErrSelfDeadlock
	}
	ns := e.Namespace(id)
	target := ns.Version()
	for {
		if !e.versionUnreleasable(ns, target) {
			return nil
		}
		time.Sleep(ns.SyncTimeout)
	}
}

// Barrier blocks until namespace id's processed_version has exceeded
// the version snapshotted at the time of the call, i.e. until the
// destructors have actually run.
func (e *Engine) Barrier(id uint8) error {
	if gid.Current() == atomic.LoadInt64(&e.workerID) {
		return ErrSelfDeadlock
	}
	ns := e.Namespace(id)
	target := ns.Version()
	for ns.ProcessedVersion() <= target {
		time.Sleep(ns.SyncTimeout)
	}
	return nil
}
