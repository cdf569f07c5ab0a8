package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(q *Queue) []uint64 {
	var out []uint64
	q.ForEach(func(e *Entry) { out = append(out, e.Version) })
	return out
}

func TestQueuePushAndSplice(t *testing.T) {
	free := &Queue{}
	free.Push(&Entry{Version: 1})
	free.Push(&Entry{Version: 2})

	worker := &Queue{}
	worker.Push(&Entry{Version: 0})
	worker.Splice(free)

	require.True(t, free.Empty())
	assert.Equal(t, []uint64{0, 1, 2}, collect(worker))
	assert.Equal(t, 3, worker.Len())
}

func TestQueueSpliceIntoEmpty(t *testing.T) {
	free := &Queue{}
	free.Push(&Entry{Version: 5})

	worker := &Queue{}
	worker.Splice(free)

	assert.Equal(t, []uint64{5}, collect(worker))
}

func TestQueueUnlink(t *testing.T) {
	q := &Queue{}
	a, b, c := &Entry{Version: 1}, &Entry{Version: 2}, &Entry{Version: 3}
	q.Push(a)
	q.Push(b)
	q.Push(c)

	q.Unlink(b)
	assert.Equal(t, []uint64{1, 3}, collect(q))
	assert.Equal(t, 2, q.Len())

	q.Unlink(a)
	q.Unlink(c)
	assert.True(t, q.Empty())
}

func TestQueueDrain(t *testing.T) {
	q := &Queue{}
	for _, v := range []uint64{1, 2, 3, 4, 5} {
		q.Push(&Entry{Version: v})
	}

	var reclaimed []uint64
	q.Drain(func(e *Entry) bool {
		if e.Version%2 == 0 {
			return true
		}
		reclaimed = append(reclaimed, e.Version)
		return false
	})

	assert.Equal(t, []uint64{1, 3, 5}, reclaimed)
	assert.Equal(t, []uint64{2, 4}, collect(q))
}

func collectIntrusive(q *IntrusiveQueue) []uint64 {
	var out []uint64
	for e := q.head; e != nil; e = e.Next {
		out = append(out, e.Version)
	}
	return out
}

func TestIntrusiveQueuePushSpliceDrain(t *testing.T) {
	free := &IntrusiveQueue{}
	free.Push(&IntrusiveEntry{Version: 1})
	free.Push(&IntrusiveEntry{Version: 2})
	free.Push(&IntrusiveEntry{Version: 3})

	worker := &IntrusiveQueue{}
	worker.Splice(free)
	require.True(t, free.Empty())
	assert.Equal(t, []uint64{1, 2, 3}, collectIntrusive(worker))

	worker.Drain(func(e *IntrusiveEntry) bool { return e.Version != 2 })
	assert.Equal(t, []uint64{1, 3}, collectIntrusive(worker))
	assert.Equal(t, 2, worker.Len())
}

func TestIntrusiveQueueDrainAllLeavesEmptyTail(t *testing.T) {
	q := &IntrusiveQueue{}
	q.Push(&IntrusiveEntry{Version: 1})
	q.Push(&IntrusiveEntry{Version: 2})

	q.Drain(func(*IntrusiveEntry) bool { return false })
	assert.True(t, q.Empty())

	q.Push(&IntrusiveEntry{Version: 9})
	assert.Equal(t, []uint64{9}, collectIntrusive(q))
}
