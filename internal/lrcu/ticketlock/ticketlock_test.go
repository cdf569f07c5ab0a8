package ticketlock

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMutualExclusion(t *testing.T) {
	var l Lock
	counter := 0
	const goroutines = 50
	const perGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, counter)
}

func TestFairness(t *testing.T) {
	var l Lock
	const goroutines = 16

	tickets := make([]uint16, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		i := i
		go func() {
			defer wg.Done()
			tickets[i] = l.draw()
		}()
	}
	wg.Wait()

	sort.Slice(tickets, func(i, j int) bool { return tickets[i] < tickets[j] })
	for i := 1; i < len(tickets); i++ {
		assert.Equal(t, tickets[i-1]+1, tickets[i], "tickets must be consecutive with no duplicates")
	}
}

func TestTryLock(t *testing.T) {
	var l Lock
	assert.True(t, l.TryLock())
	assert.False(t, l.TryLock())
	l.Unlock()
	assert.True(t, l.TryLock())
	l.Unlock()
}

func TestLocked(t *testing.T) {
	var l Lock
	assert.False(t, l.Locked())
	l.Lock()
	assert.True(t, l.Locked())
	l.Unlock()
	assert.False(t, l.Locked())
}
