package pool

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/Sumatoshi-tech/fixedtree/pkg/safeconv"
)

// CompactPool keeps live values contiguous in [0, Len()). Freeing a slot
// moves the last live value into the hole, so iteration over live values
// is a plain slice walk.
type CompactPool[I constraints.Unsigned, T any] struct {
	slots []T
	size  int
}

// NewCompact creates a compacting pool.
func NewCompact[I constraints.Unsigned, T any](capacity int) *CompactPool[I, T] {
	checkCapacity[I](capacity)

	return &CompactPool[I, T]{slots: make([]T, capacity)}
}

// Allocate implements Pool. New values always land at index Len().
func (pool *CompactPool[I, T]) Allocate(value T) I {
	doAssert(!pool.Full())

	pool.slots[pool.size] = value
	pool.size++

	return safeconv.MustIndex[I](pool.size - 1)
}

// Free implements Pool. It returns the new Len(), which is the old index of
// the value now stored at idx; it equals idx when idx was the last slot.
func (pool *CompactPool[I, T]) Free(idx I) I {
	doAssert(pool.Live(idx))

	var zero T

	last := pool.size - 1
	pos := safeconv.IndexToInt(idx)

	if pos != last {
		pool.slots[pos] = pool.slots[last]
	}

	pool.slots[last] = zero
	pool.size = last

	return safeconv.MustIndex[I](last)
}

// At implements Pool.
func (pool *CompactPool[I, T]) At(idx I) *T {
	return &pool.slots[idx]
}

// Live implements Pool.
func (pool *CompactPool[I, T]) Live(idx I) bool {
	return uint64(idx) < uint64(pool.size)
}

// Len implements Pool.
func (pool *CompactPool[I, T]) Len() int {
	return pool.size
}

// Cap implements Pool.
func (pool *CompactPool[I, T]) Cap() int {
	return len(pool.slots)
}

// Full implements Pool.
func (pool *CompactPool[I, T]) Full() bool {
	return pool.size == len(pool.slots)
}

// Clear implements Pool.
func (pool *CompactPool[I, T]) Clear() {
	clear(pool.slots[:pool.size])
	pool.size = 0
}

// Kind implements Pool.
func (pool *CompactPool[I, T]) Kind() Kind {
	return Compact
}

// Values returns the live values in slot order.
func (pool *CompactPool[I, T]) Values() []T {
	return pool.slots[:pool.size]
}

// State implements Pool.
func (pool *CompactPool[I, T]) State() State[I] {
	return State[I]{Kind: Compact, Len: pool.size, Head: Null[I]()}
}

// Restore implements Pool.
func (pool *CompactPool[I, T]) Restore(state State[I]) error {
	if state.Kind != Compact || state.Len < 0 || state.Len > len(pool.slots) {
		return fmt.Errorf("%w: kind %v with %d live slots into compact pool of capacity %d",
			ErrStateMismatch, state.Kind, state.Len, len(pool.slots))
	}

	clear(pool.slots)
	pool.size = state.Len

	return nil
}
