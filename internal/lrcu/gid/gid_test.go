package gid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentNonZero(t *testing.T) {
	id := Current()
	require.NotZero(t, id)
}

func TestCurrentDistinctAcrossGoroutines(t *testing.T) {
	const n = 8
	ids := make([]int64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			ids[i] = Current()
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "goroutine id %d observed twice", id)
		seen[id] = true
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int64
	}{
		{"wellFormed", "goroutine 42 [running]:\nmain.main()", 42},
		{"missingPrefix", "not a stack trace", 0},
		{"truncated", "goroutine ", 0},
		{"nonDigitImmediately", "goroutine x [running]:", 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, parse([]byte(c.in)))
		})
	}
}
