package render

import (
	"cmp"
	"fmt"
	"slices"
)

// RenderQueue holds the commands of one queue split by the sign of their
// global order. The zero bucket keeps submission order; the others are
// sorted by Sort.
type RenderQueue struct {
	neg  []Command
	zero []Command
	pos  []Command
}

func (q *RenderQueue) PushBack(cmd Command) {
	switch o := cmd.GlobalOrder(); {
	case o < 0:
		q.neg = append(q.neg, cmd)
	case o > 0:
		q.pos = append(q.pos, cmd)
	default:
		q.zero = append(q.zero, cmd)
	}
}

// Len returns the number of commands across all buckets.
func (q *RenderQueue) Len() int {
	return len(q.neg) + len(q.zero) + len(q.pos)
}

// Sort orders the negative and positive buckets by ascending global order.
// Commands with equal orders keep their submission order.
func (q *RenderQueue) Sort() {
	byOrder := func(a, b Command) int { return cmp.Compare(a.GlobalOrder(), b.GlobalOrder()) }
	slices.SortStableFunc(q.neg, byOrder)
	slices.SortStableFunc(q.pos, byOrder)
}

// At returns the i'th command counting through the negative, zero and
// positive buckets in turn.
func (q *RenderQueue) At(i int) Command {
	if i < 0 {
		panic(fmt.Errorf("%w: index %d of %d", ErrIndexOutOfRange, i, q.Len()))
	}
	j := i
	for _, b := range [...][]Command{q.neg, q.zero, q.pos} {
		if j < len(b) {
			return b[j]
		}
		j -= len(b)
	}
	panic(fmt.Errorf("%w: index %d of %d", ErrIndexOutOfRange, i, q.Len()))
}

// Clear empties the queue, keeping its storage. The commands themselves
// belong to their submitters.
func (q *RenderQueue) Clear() {
	clear(q.neg)
	clear(q.zero)
	clear(q.pos)
	q.neg = q.neg[:0]
	q.zero = q.zero[:0]
	q.pos = q.pos[:0]
}
