// Package threadinfo implements the per-goroutine state the reclamation
// engine keeps for every registered reader/writer.
//
// Each registered goroutine owns one Info, indexed by namespace id, that
// tracks its read-section nesting depth and the namespace version it
// captured on entering the outermost section. This is the Go analogue of
// the engine's thread-local-storage slot: instead of a TLS pointer, the
// engine keys a registry by the goroutine id (internal/lrcu/gid) and
// looks up the Info on every call, which is why LocalNamespace access
// must stay allocation-free and branch-light (it runs on every
// ReadLock/ReadUnlock).
package threadinfo

import (
	"errors"
	"sync/atomic"
	"time"
)

// MaxNamespaces bounds the number of namespace slots an Info can track,
// matching the engine-wide namespace table capacity (NS_MAX).
const MaxNamespaces = 256

// ErrCounterUnderflow is the fail-fast panic value for ExitRead called
// with no matching outstanding EnterRead. spec.md §7 classifies this as
// an internal invariant violation, not a recoverable error: it can only
// happen if caller code is unbalanced, so it is reported the same way an
// out-of-bounds slice index is, by panicking immediately rather than
// returning a value a caller could silently ignore.
var ErrCounterUnderflow = errors.New("lrcu: read section counter underflow")

// LocalNamespace is a point-in-time, plain-value view of one goroutine's
// state in one namespace: the version captured when its outermost read
// section began, and the current nesting depth. It is what Snapshot and
// the hung-reader bookkeeping exchange, since comparing and storing a
// snapshot must not itself touch the live atomic state.
type LocalNamespace struct {
	Version uint64
	Counter int32
}

// liveNamespace is the actively-mutated per-namespace state backing
// EnterRead/ExitRead/Snapshot. The owning goroutine writes it with zero
// synchronization of its own; the reclamation worker concurrently reads
// it on every pass (computeRangeSet, versionUnreleasable), so both
// fields must be atomics, per spec.md §9's "acquire/release atomics on
// version, counter" requirement — plain fields here would be a genuine
// data race, not the benign staleness the hardware-fenced C original
// tolerates.
type liveNamespace struct {
	version atomic.Uint64
	counter atomic.Int32
}

// Info is the per-goroutine state registered with the engine.
//
// The local array is mutated only by the goroutine that owns it and
// read concurrently by the reclamation worker, hence the atomics above.
// The hung/timestamp arrays are touched only by the worker (under the
// owning namespace's threads lock), so they stay plain fields.
type Info struct {
	// ID is the owning goroutine's id, from gid.Current.
	ID int64

	local     [MaxNamespaces]liveNamespace
	hung      [MaxNamespaces]LocalNamespace
	timestamp [MaxNamespaces]time.Time
}

// New allocates an Info for the goroutine identified by id.
func New(id int64) *Info {
	return &Info{ID: id}
}

// Counter returns the current read-section nesting depth in namespace
// nsID.
func (ti *Info) Counter(nsID uint8) int32 {
	return ti.local[nsID].counter.Load()
}

// LocalVersion returns the namespace version captured when the
// outermost read section in nsID began. Only meaningful while
// Counter(nsID) > 0.
func (ti *Info) LocalVersion(nsID uint8) uint64 {
	return ti.local[nsID].version.Load()
}

// EnterRead increments the nesting counter for nsID. If this is the
// outermost entry (0→1 transition), it captures nsVersion as the
// section's local version and returns true.
//
// Version is stored before Counter is published, so a worker that
// observes the 0→1 transition through Counter also observes the
// correct Version: both are atomics on the same goroutine, and Go's
// memory model gives the store-before-store program order a
// happens-before edge into whatever synchronizes-after the Counter
// store.
//
//go:nosplit
func (ti *Info) EnterRead(nsID uint8, nsVersion uint64) (outermost bool) {
	ln := &ti.local[nsID]
	if ln.counter.Load() == 0 {
		ln.version.Store(nsVersion)
		ln.counter.Store(1)
		return true
	}
	ln.counter.Add(1)
	return false
}

// ExitRead decrements the nesting counter for nsID and returns the
// counter's value *before* the decrement. It panics with
// ErrCounterUnderflow if the counter was already zero, per spec.md §7's
// fail-fast policy for internal invariant violations.
//
//go:nosplit
func (ti *Info) ExitRead(nsID uint8) (before int32) {
	ln := &ti.local[nsID]
	c := ln.counter.Load()
	if c <= 0 {
		panic(ErrCounterUnderflow)
	}
	ln.counter.Store(c - 1)
	return c
}

// Snapshot returns a copy of the current local-namespace state for
// nsID, used by the worker's range computation pass.
func (ti *Info) Snapshot(nsID uint8) LocalNamespace {
	ln := &ti.local[nsID]
	c := ln.counter.Load()
	return LocalNamespace{Version: ln.version.Load(), Counter: c}
}

// HungSnapshot returns the worker's last recorded snapshot for nsID,
// used to detect a reader that has stopped making progress.
func (ti *Info) HungSnapshot(nsID uint8) LocalNamespace {
	return ti.hung[nsID]
}

// SetHungSnapshot records snap as the worker's latest observation for
// nsID.
func (ti *Info) SetHungSnapshot(nsID uint8, snap LocalNamespace) {
	ti.hung[nsID] = snap
}

// Timer returns the time the worker first observed a non-zero counter
// for nsID, and whether a timer is currently set.
func (ti *Info) Timer(nsID uint8) (time.Time, bool) {
	t := ti.timestamp[nsID]
	return t, !t.IsZero()
}

// StartTimer sets the hang-detection timer for nsID to now, if it is
// not already running.
func (ti *Info) StartTimer(nsID uint8, now time.Time) {
	if ti.timestamp[nsID].IsZero() {
		ti.timestamp[nsID] = now
	}
}

// ClearTimer clears the hang-detection timer for nsID.
func (ti *Info) ClearTimer(nsID uint8) {
	ti.timestamp[nsID] = time.Time{}
}
