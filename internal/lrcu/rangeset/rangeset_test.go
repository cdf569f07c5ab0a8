package rangeset

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFind(t *testing.T) {
	s := New(4)
	s.Add(10, 20)
	s.Add(30, 40)

	assert.True(t, s.Find(15))
	assert.True(t, s.Find(10))
	assert.True(t, s.Find(20))
	assert.False(t, s.Find(25))
	assert.True(t, s.Find(35))
	assert.False(t, s.Find(41))
}

func TestMergeCoalescesOverlapAndAdjacency(t *testing.T) {
	cases := []struct {
		name string
		in   []Range
		want []Range
	}{
		{"overlap", []Range{{5, 15}, {10, 20}}, []Range{{5, 20}}},
		{"adjacent", []Range{{1, 10}, {11, 20}}, []Range{{1, 20}}},
		{"disjointGap", []Range{{1, 5}, {10, 20}}, []Range{{1, 5}, {10, 20}}},
		{"unsortedInput", []Range{{30, 40}, {1, 10}, {5, 35}}, []Range{{1, 40}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := New(8)
			for _, r := range c.in {
				s.Add(r.Lo, r.Hi)
			}
			s.Optimize(Merge)
			if diff := cmp.Diff(c.want, s.Ranges()); diff != "" {
				t.Fatalf("merge mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSqueezeMergesSmallestGapAndFreesCapacity(t *testing.T) {
	s := New(3)
	s.Add(0, 1)
	s.Add(100, 101)
	s.Add(10, 11) // gap to [0,1] is 9, gap to [100,101] is 89

	require.True(t, s.Full())
	s.Optimize(Squeeze)
	assert.False(t, s.Full())

	ranges := s.Ranges()
	require.Len(t, ranges, 2)
	assert.Equal(t, Range{0, 11}, ranges[0])
	assert.Equal(t, Range{100, 101}, ranges[1])
}

func TestAddEscalatesToSqueezeWhenMergeDoesNotFreeCapacity(t *testing.T) {
	s := New(2)
	s.Add(0, 1)
	s.Add(100, 101) // already disjoint, Merge alone cannot free a slot

	s.Add(50, 51) // forces Merge then Squeeze before the third Add succeeds

	assert.LessOrEqual(t, s.Len(), 2)
	assert.True(t, s.Find(50))
}

func TestMinReturnsSmallestLo(t *testing.T) {
	s := New(4)
	_, ok := s.Min()
	assert.False(t, ok)

	s.Add(50, 60)
	s.Add(5, 10)
	min, ok := s.Min()
	require.True(t, ok)
	assert.Equal(t, uint64(5), min)
}

func TestResetClearsSet(t *testing.T) {
	s := New(4)
	s.Add(1, 2)
	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Find(1))
}
