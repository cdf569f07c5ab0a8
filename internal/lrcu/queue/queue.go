// Package queue implements the pending-callback queues a namespace uses
// to hand scheduled destructors from writers to the reclamation worker.
//
// Two shapes are provided, mirroring the two queue variants a namespace
// keeps (see internal/lrcu/namespace): Queue, which links Entry nodes
// allocated by the namespace in a doubly-linked list (the "owned payload" queue writers use
// through Call), and IntrusiveQueue, which links entries by a pointer
// the caller already allocated as part of its own payload struct (the
// "intrusive head" queue CallHead uses, for call sites that want to
// avoid the allocation of a separate queue node).
//
// Both support the splice operation the worker needs: atomically (under
// a caller-held lock) detaching every entry from the producer-side free
// list and appending it to the worker's private list, in O(1).
package queue

// Entry is one scheduled reclamation: a payload, the destructor that
// frees it, and the namespace version at the moment it was enqueued.
type Entry struct {
	Payload     any
	Destructor  func(any)
	Version     uint64
	next, prev  *Entry
}

// Queue is a doubly-linked list of owned Entry values.
//
// Queue is not safe for concurrent use; callers serialize access to the
// free-side queue with their own lock (namespace.Namespace does this)
// and the worker-side queue is only ever touched by the worker goroutine.
type Queue struct {
	head, tail *Entry
	length     int
}

// Empty reports whether the queue has no entries.
func (q *Queue) Empty() bool { return q.head == nil }

// Len reports the number of entries currently linked.
func (q *Queue) Len() int { return q.length }

// Push appends an entry to the tail of the queue.
func (q *Queue) Push(e *Entry) {
	e.next, e.prev = nil, nil
	if q.head == nil {
		q.head, q.tail = e, e
	} else {
		e.prev = q.tail
		q.tail.next = e
		q.tail = e
	}
	q.length++
}

// Splice moves every entry from src to the tail of q, leaving src empty.
// This is the operation the worker uses to take ownership of everything
// writers enqueued since the last pass, in constant time regardless of
// how many entries src holds.
func (q *Queue) Splice(src *Queue) {
	if src.Empty() {
		return
	}
	if q.Empty() {
		q.head, q.tail, q.length = src.head, src.tail, src.length
	} else {
		q.tail.next = src.head
		src.head.prev = q.tail
		q.tail = src.tail
		q.length += src.length
	}
	src.head, src.tail, src.length = nil, nil, 0
}

// Unlink removes e from the queue. e must currently be linked into q;
// unlinking an entry that belongs to a different queue corrupts both.
func (q *Queue) Unlink(e *Entry) {
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		q.tail = e.prev
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		q.head = e.next
	}
	e.next, e.prev = nil, nil
	q.length--
}

// ForEach calls fn for every entry currently in the queue, in list order.
// fn must not splice, push, or unlink into q while iterating; use Drain
// if entries need to be removed during the walk.
func (q *Queue) ForEach(fn func(*Entry)) {
	for e := q.head; e != nil; e = e.next {
		fn(e)
	}
}

// Drain walks the queue and unlinks every entry for which keep returns
// false, in a single forward pass safe against concurrent unlinking of
// the current entry.
func (q *Queue) Drain(keep func(*Entry) bool) {
	e := q.head
	for e != nil {
		next := e.next
		if !keep(e) {
			q.Unlink(e)
		}
		e = next
	}
}

// IntrusiveEntry is the header a caller embeds in its own payload struct
// to use CallHead without a separate allocation. Next is reserved for the
// queue; callers must not mutate it.
type IntrusiveEntry struct {
	Next       *IntrusiveEntry
	Destructor func(*IntrusiveEntry)
	Version    uint64
}

// IntrusiveQueue is a singly-linked, tail-appending list of
// IntrusiveEntry headers, matching the host list primitive's contract in
// SPEC_FULL.md (external interfaces): head-only init, insertion at tail,
// forward-only walk, and splice.
type IntrusiveQueue struct {
	head, tail *IntrusiveEntry
	length     int
}

// Empty reports whether the queue has no entries.
func (q *IntrusiveQueue) Empty() bool { return q.head == nil }

// Len reports the number of linked entries.
func (q *IntrusiveQueue) Len() int { return q.length }

// Push links e at the tail of the queue without allocating.
func (q *IntrusiveQueue) Push(e *IntrusiveEntry) {
	e.Next = nil
	if q.head == nil {
		q.head = e
	} else {
		q.tail.Next = e
	}
	q.tail = e
	q.length++
}

// Splice moves every entry from src to the tail of q in O(1), leaving
// src empty.
func (q *IntrusiveQueue) Splice(src *IntrusiveQueue) {
	if src.Empty() {
		return
	}
	if q.Empty() {
		q.head = src.head
	} else {
		q.tail.Next = src.head
	}
	q.tail = src.tail
	q.length += src.length
	src.head, src.tail, src.length = nil, nil, 0
}

// Drain walks the queue forward, unlinking (via "unlink next of prev",
// the only deletion-while-traversing form the list primitive supports)
// every entry for which keep returns false.
func (q *IntrusiveQueue) Drain(keep func(*IntrusiveEntry) bool) {
	var prev *IntrusiveEntry
	cur := q.head
	for cur != nil {
		next := cur.Next
		if keep(cur) {
			prev = cur
		} else {
			if prev == nil {
				q.head = next
			} else {
				prev.Next = next
			}
			if next == nil {
				q.tail = prev
			}
			cur.Next = nil
			q.length--
		}
		cur = next
	}
}
