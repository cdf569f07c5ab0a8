package engine

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kolkov/lrcu/internal/lrcu/gid"
	"github.com/kolkov/lrcu/internal/lrcu/namespace"
	"github.com/kolkov/lrcu/internal/lrcu/queue"
	"github.com/kolkov/lrcu/internal/lrcu/rangeset"
	"github.com/kolkov/lrcu/internal/lrcu/threadinfo"
)

// runWorker is the reclamation worker's entire lifetime: register its
// own Info (so destructors may themselves call Call, per SPEC_FULL.md
// §4's resolution of the destructor-reentrancy open question), announce
// Running, loop until asked to Stop, then announce Done.
func (e *Engine) runWorker() {
	e.workerTI = threadinfo.New(gid.Current())
	atomic.StoreInt64(&e.workerID, e.workerTI.ID)
	e.registry.Store(e.workerTI.ID, e.workerTI)

	e.state.Store(int32(stateRunning))
	defer func() {
		e.state.Store(int32(stateDone))
		close(e.doneCh)
	}()

	ticker := time.NewTicker(e.cfg.WorkerPeriod)
	defer ticker.Stop()

	workerQ := make([]queue.Queue, MaxNamespaces)
	workerIQ := make([]queue.IntrusiveQueue, MaxNamespaces)

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.runPass(workerQ, workerIQ)
		}
	}
}

// runPass performs one reclamation pass over every namespace slot that
// e.worker currently holds (live or awaiting teardown), per SPEC_FULL.md
// §4.3 steps 1-6.
func (e *Engine) runPass(workerQ []queue.Queue, workerIQ []queue.IntrusiveQueue) {
	start := time.Now()
	totalReclaimed := 0
	totalQueueDepth := 0
	totalHung := 0
	maxRangeLen := 0

	for id := 0; id < MaxNamespaces; id++ {
		ns := e.worker[id].Load()
		if ns == nil {
			continue
		}

		reclaimed, rangeLen, hungCount := e.passOne(ns, &workerQ[id], &workerIQ[id])
		totalReclaimed += reclaimed
		totalQueueDepth += workerQ[id].Len() + workerIQ[id].Len()
		totalHung += hungCount
		if rangeLen > maxRangeLen {
			maxRangeLen = rangeLen
		}

		e.maybeTeardown(uint8(id), ns, &workerQ[id], &workerIQ[id])
	}

	e.metrics.addReclaimed(totalReclaimed)
	e.metrics.setQueueDepth(totalQueueDepth)
	e.metrics.setHungReaders(totalHung)
	e.metrics.setRangeSetLen(maxRangeLen)
	e.metrics.observePassDuration(time.Since(start).Seconds())
}

// passOne runs steps 1-5 of SPEC_FULL.md §4.3 for a single namespace.
func (e *Engine) passOne(ns *namespace.Namespace, wq *queue.Queue, wiq *queue.IntrusiveQueue) (reclaimed, rangeLen, hungCount int) {
	// Step 1: splice free queues into the worker-private queues.
	ns.SpliceQueues(wq, wiq)

	// Step 2: compute the safe-release range.
	rs, hungCount := e.computeRangeSet(ns)
	rangeLen = rs.Len()

	// Step 3: drain releasable callbacks.
	wq.Drain(func(ent *queue.Entry) bool {
		if rs.Find(ent.Version) {
			return true // keep: still unreleasable
		}
		ent.Destructor(ent.Payload)
		reclaimed++
		return false
	})
	wiq.Drain(func(ent *queue.IntrusiveEntry) bool {
		if rs.Find(ent.Version) {
			return true
		}
		ent.Destructor(ent)
		reclaimed++
		return false
	})

	// Step 4: publish progress.
	if minV, ok := rs.Min(); ok {
		ns.SetProcessedVersion(minV)
	} else {
		ns.SetProcessedVersion(ns.Version() + 1)
	}

	// Step 5: liveness write-barrier, so no reader can be pinned forever
	// on an unchanging version.
	ns.Bump()

	return reclaimed, rangeLen, hungCount
}

// computeRangeSet implements SPEC_FULL.md §4.3's range-computation
// algorithm: one unreleasable interval per live reader, plus the
// hung-reader detection sweep.
func (e *Engine) computeRangeSet(ns *namespace.Namespace) (*rangeset.Set, int) {
	active, hung := ns.Threads()
	rs := rangeset.New(max(1, len(active)+len(hung)))
	now := time.Now()
	curVersion := ns.Version()

	for _, ti := range active {
		snap := ti.Snapshot(ns.ID)
		if snap.Counter != 0 {
			rs.Add(snap.Version, curVersion)

			if t, running := ti.Timer(ns.ID); running && now.Sub(t) >= e.cfg.HangTimeout {
				if ti.HungSnapshot(ns.ID) == snap {
					ti.SetHungSnapshot(ns.ID, threadinfo.LocalNamespace{Version: curVersion, Counter: snap.Counter})
					ns.MoveToHung(ti)
					e.logger.Warn("reader classified as hung",
						zap.Uint64("local_version", snap.Version),
						zap.Int("namespace", int(ns.ID)))
					continue
				}
			} else if !running {
				ti.StartTimer(ns.ID, now)
			}
			ti.SetHungSnapshot(ns.ID, snap)
		} else {
			ti.ClearTimer(ns.ID)
		}
	}

	hungCount := 0
	for _, ti := range hung {
		snap := ti.Snapshot(ns.ID)
		hsnap := ti.HungSnapshot(ns.ID)
		if snap.Version > hsnap.Version || snap.Counter == 0 {
			ns.MoveToActive(ti)
			ti.ClearTimer(ns.ID)
			continue
		}
		rs.Add(snap.Version, hsnap.Version)
		hungCount++
	}

	rs.Optimize(rangeset.Merge)
	if rs.Full() {
		rs.Optimize(rangeset.Squeeze)
	}
	return rs, hungCount
}

// maybeTeardown implements SPEC_FULL.md §4.3 step 6: free a
// torn-down-but-not-yet-reclaimed namespace once both queues are empty
// and no reader can still reference it.
func (e *Engine) maybeTeardown(id uint8, ns *namespace.Namespace, wq *queue.Queue, wiq *queue.IntrusiveQueue) {
	if e.live[id].Load() == ns {
		return
	}

	if !wq.Empty() || !wiq.Empty() || !ns.QueuesEmpty() {
		return
	}

	atVersion, tearing := ns.TearingDown()
	if !tearing {
		return
	}
	if !ns.OnlyThreadIs(e.workerTI) && !ns.EveryOtherThreadPastDeinit(e.workerTI, atVersion) {
		return
	}

	e.nsLock.Lock()
	defer e.nsLock.Unlock()
	if e.live[id].Load() == ns {
		return // re-adopted by NamespaceInit since the check above
	}
	e.worker[id].Store(nil)
	e.metrics.addTeardown()
	e.logger.Debug("namespace freed after deferred teardown", zap.Int("namespace", int(id)))
}

// versionUnreleasable reports whether target still falls inside some
// reader's unreleasable interval, without mutating any hung-reader
// state — Synchronize polls this directly rather than running the full
// worker pass, since it only needs a yes/no answer about reachability,
// not to perform hung-reader classification or drain queues.
func (e *Engine) versionUnreleasable(ns *namespace.Namespace, target uint64) bool {
	active, hung := ns.Threads()
	for _, ti := range active {
		snap := ti.Snapshot(ns.ID)
		if snap.Counter != 0 && snap.Version <= target {
			return true
		}
	}
	for _, ti := range hung {
		snap := ti.Snapshot(ns.ID)
		if snap.Counter == 0 || snap.Version > target {
			continue
		}
		hsnap := ti.HungSnapshot(ns.ID)
		if target <= hsnap.Version {
			return true
		}
	}
	return false
}
