package render

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requirePanicIs runs fn and checks that it panics with an error matching
// target.
func requirePanicIs(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.True(t, errors.Is(err, target), "panic %v is not %v", err, target)
	}()
	fn()
}

type tagged struct {
	CustomCommand
	seq int
}

func newTagged(order float32, seq int) *tagged {
	return &tagged{CustomCommand: CustomCommand{commandBase: commandBase{globalOrder: order}}, seq: seq}
}

func TestQueueOrdering(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		var q RenderQueue
		var submitted []*tagged
		for i := range 40 {
			// Few distinct orders so ties are common.
			order := float32(rng.IntN(7) - 3)
			c := newTagged(order, i)
			submitted = append(submitted, c)
			q.PushBack(c)
		}
		q.Sort()
		require.Equal(t, len(submitted), q.Len())

		var got []*tagged
		for i := range q.Len() {
			got = append(got, q.At(i).(*tagged))
		}
		for i := 1; i < len(got); i++ {
			a, b := got[i-1], got[i]
			ao, bo := a.GlobalOrder(), b.GlobalOrder()
			if ao == bo {
				require.Less(t, a.seq, b.seq, "equal orders keep submission order")
				continue
			}
			require.Less(t, ao, bo)
		}
	}
}

func TestQueueZeroBucketIsNotSorted(t *testing.T) {
	var q RenderQueue
	q.PushBack(newTagged(2, 0))
	q.PushBack(newTagged(0, 1))
	q.PushBack(newTagged(-1, 2))
	q.PushBack(newTagged(0, 3))
	q.PushBack(newTagged(-5, 4))
	q.Sort()

	var seqs []int
	for i := range q.Len() {
		seqs = append(seqs, q.At(i).(*tagged).seq)
	}
	assert.Equal(t, []int{4, 2, 1, 3, 0}, seqs)
}

func TestQueueAtOutOfRange(t *testing.T) {
	var q RenderQueue
	q.PushBack(newTagged(0, 0))
	requirePanicIs(t, ErrIndexOutOfRange, func() { q.At(1) })
	requirePanicIs(t, ErrIndexOutOfRange, func() { q.At(-1) })
}

func TestQueueClear(t *testing.T) {
	var q RenderQueue
	for i := range 5 {
		q.PushBack(newTagged(float32(i-2), i))
	}
	q.Clear()
	assert.Zero(t, q.Len())
	q.PushBack(newTagged(0, 9))
	assert.Equal(t, 9, q.At(0).(*tagged).seq)
}
