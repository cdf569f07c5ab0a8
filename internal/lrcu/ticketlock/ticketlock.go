// Package ticketlock implements a fair spinlock for writer serialization
// within a single namespace.
//
// Writer contention inside one namespace must be fair: a ticket lock
// grants the lock in strict arrival order, so no writer can be starved
// by a stream of later arrivals the way an unfair spinlock or mutex CAS
// retry can starve one. The lock packs two 16-bit counters, "next" (the
// ticket a new arrival draws) and "serving" (the ticket currently holding
// the lock), into a single 32-bit word so both can live in one
// atomic.Uint32 and the common path needs one compare-and-swap (retried
// only under contention) plus a spin on one atomic load.
package ticketlock

import (
	"runtime"
	"sync/atomic"
)

// Lock is a ticket spinlock. The zero value is an unlocked lock ready
// for use.
type Lock struct {
	// word packs next (high 16 bits) and serving (low 16 bits).
	word atomic.Uint32
}

func pack(next, serving uint16) uint32 {
	return uint32(next)<<16 | uint32(serving)
}

func unpack(word uint32) (next, serving uint16) {
	return uint16(word >> 16), uint16(word)
}

// Lock blocks until the caller holds the lock.
//
//go:nosplit
func (l *Lock) Lock() {
	ticket := l.draw()
	spins := 0
	for {
		_, serving := unpack(l.word.Load())
		if serving == ticket {
			return
		}
		spins++
		if spins < 32 {
			runtime.Gosched()
		} else {
			runtime.Gosched()
			spins = 0
		}
	}
}

// draw atomically increments "next" and returns the ticket drawn.
func (l *Lock) draw() uint16 {
	for {
		old := l.word.Load()
		next, serving := unpack(old)
		if l.word.CompareAndSwap(old, pack(next+1, serving)) {
			return next
		}
	}
}

// Unlock releases the lock, advancing "serving" to the next ticket.
//
// The caller must currently hold the lock; calling Unlock without a
// matching Lock is a programmer error and corrupts the serving counter.
//
//go:nosplit
func (l *Lock) Unlock() {
	for {
		old := l.word.Load()
		next, serving := unpack(old)
		if l.word.CompareAndSwap(old, pack(next, serving+1)) {
			return
		}
	}
}

// TryLock acquires the lock only if it is not currently held by anyone
// and no other arrival is already waiting ahead of this one, i.e. only
// when the lock is completely idle. It never blocks.
func (l *Lock) TryLock() bool {
	old := l.word.Load()
	next, serving := unpack(old)
	if next != serving {
		return false
	}
	return l.word.CompareAndSwap(old, pack(next+1, serving))
}

// Locked reports whether the lock is currently held by anyone. Intended
// for diagnostics and tests only; the result can be stale the instant it
// is observed.
func (l *Lock) Locked() bool {
	next, serving := unpack(l.word.Load())
	return next != serving
}
