package lrcu

import "sync/atomic"

// Ptr is a generic, lock-free published pointer to a value of type T.
// It is the canonical expression of assign_pointer/dereference from
// SPEC_FULL.md §4's Open Question on Ptr's shape: a thin wrapper over
// atomic.Pointer[T] rather than a raw uintptr, so AssignPointer and
// Dereference carry Go's type safety instead of requiring unsafe
// conversions at every call site.
//
// The zero value is a Ptr holding nil; use Init to publish a first
// value without going through the reclamation queue.
type Ptr[T any] struct {
	p atomic.Pointer[T]
}

// Init publishes the initial value of p outside of any write section.
// Callers must not call Init concurrently with AssignPointer or after
// any goroutine has already called Dereference, since it bypasses
// reclamation entirely.
func (p *Ptr[T]) Init(v *T) {
	p.p.Store(v)
}

// AssignPointer publishes v as p's new value and returns the pointer it
// replaced. The caller is responsible for scheduling the old value's
// destruction, typically via Engine.Call(id, old, destructor), once
// readers can no longer observe it.
//
// AssignPointer does not itself bump any namespace version; callers
// publish under Engine.WriteLock/WriteUnlock so the version bump and the
// pointer swap happen inside the same write section.
func (p *Ptr[T]) AssignPointer(v *T) *T {
	return p.p.Swap(v)
}

// AssignPointer is the standalone form of assign_pointer for callers
// that manage their own published slot instead of wrapping it in a
// Ptr[T] — SPEC_FULL.md §4's resolution of the Open Question on
// assign_pointer's shape keeps this alongside the canonical Ptr[T]
// method. Where the method assumes the caller already holds nsID's
// write section (the "pre-held namespace id" variant spec.md §4.2
// describes), this form performs the whole publish itself: it acquires
// the write section, swaps newptr into *dst, and releases it, bumping
// the namespace version as part of the same operation. It takes en
// explicitly rather than as a package-level singleton, per this
// module's re-architecture away from a process-wide handler (spec.md
// §9).
func AssignPointer[T any](en *Engine, dst *atomic.Pointer[T], newptr *T, nsID uint8) (old *T, err error) {
	if err := en.WriteLock(nsID); err != nil {
		return nil, err
	}
	old = dst.Swap(newptr)
	if err := en.WriteUnlock(nsID); err != nil {
		return old, err
	}
	return old, nil
}

// Dereference loads p's current value. Callers must hold a read section
// (Engine.ReadLock/ReadUnlock) around the load and every use of the
// returned pointer.
//
//go:nosplit
func (p *Ptr[T]) Dereference() *T {
	return p.p.Load()
}

// CallCurrent schedules destructor on p's current value, the way a
// writer that is retiring a structure entirely (rather than replacing
// it) would: it loads the current pointer and hands it to
// Engine.Call(id, ...) without swapping in a replacement. This restores
// the original implementation's call_rcu-on-current idiom, which
// SPEC_FULL.md §7 documents as a supplemented feature beyond plain
// assign_pointer/call pairs.
func (p *Ptr[T]) CallCurrent(en *Engine, id uint8, destructor func(*T)) error {
	cur := p.p.Load()
	if cur == nil {
		return nil
	}
	return en.Call(id, cur, func(payload any) {
		destructor(payload.(*T))
	})
}
