package pool

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/Sumatoshi-tech/fixedtree/pkg/safeconv"
)

type freeSlot[I constraints.Unsigned, T any] struct {
	value T
	// next is Null for a live slot, otherwise the next free slot.
	next I
}

// FreeListPool recycles slots through an intrusive singly linked list.
// Allocation and release are O(1) and indices stay stable for the lifetime
// of the value.
type FreeListPool[I constraints.Unsigned, T any] struct {
	slots []freeSlot[I, T]
	head  I
	size  int
}

// NewFreeList creates a free-list pool. The capacity must be smaller than
// the largest value of I, which is reserved for Null.
func NewFreeList[I constraints.Unsigned, T any](capacity int) *FreeListPool[I, T] {
	checkCapacity[I](capacity)

	pool := &FreeListPool[I, T]{slots: make([]freeSlot[I, T], capacity)}
	pool.Clear()

	return pool
}

// Allocate implements Pool.
func (pool *FreeListPool[I, T]) Allocate(value T) I {
	doAssert(!pool.Full())

	idx := pool.head
	slot := &pool.slots[idx]
	pool.head = slot.next
	slot.next = Null[I]()
	slot.value = value
	pool.size++

	return idx
}

// Free implements Pool. Indices never move, so it always returns idx.
func (pool *FreeListPool[I, T]) Free(idx I) I {
	doAssert(pool.Live(idx))

	var zero T

	slot := &pool.slots[idx]
	slot.value = zero
	slot.next = pool.head
	pool.head = idx
	pool.size--

	return idx
}

// At implements Pool.
func (pool *FreeListPool[I, T]) At(idx I) *T {
	return &pool.slots[idx].value
}

// Live implements Pool.
func (pool *FreeListPool[I, T]) Live(idx I) bool {
	return uint64(idx) < uint64(len(pool.slots)) && pool.slots[idx].next == Null[I]()
}

// Len implements Pool.
func (pool *FreeListPool[I, T]) Len() int {
	return pool.size
}

// Cap implements Pool.
func (pool *FreeListPool[I, T]) Cap() int {
	return len(pool.slots)
}

// Full implements Pool.
func (pool *FreeListPool[I, T]) Full() bool {
	return pool.size == len(pool.slots)
}

// Clear implements Pool.
func (pool *FreeListPool[I, T]) Clear() {
	var zero T

	for idx := range pool.slots {
		pool.slots[idx] = freeSlot[I, T]{value: zero, next: safeconv.MustIndex[I](idx + 1)}
	}

	pool.head = 0
	pool.size = 0
}

// Kind implements Pool.
func (pool *FreeListPool[I, T]) Kind() Kind {
	return FreeList
}

// State implements Pool.
func (pool *FreeListPool[I, T]) State() State[I] {
	links := make([]I, len(pool.slots))

	for idx := range pool.slots {
		links[idx] = pool.slots[idx].next
	}

	return State[I]{Kind: FreeList, Len: pool.size, Head: pool.head, Links: links}
}

// Restore implements Pool.
func (pool *FreeListPool[I, T]) Restore(state State[I]) error {
	if state.Kind != FreeList || len(state.Links) != len(pool.slots) {
		return fmt.Errorf("%w: kind %v with %d links into freelist of capacity %d",
			ErrStateMismatch, state.Kind, len(state.Links), len(pool.slots))
	}

	end := safeconv.MustIndex[I](len(pool.slots))
	live := 0

	for _, link := range state.Links {
		switch {
		case link == Null[I]():
			live++
		case link > end:
			return fmt.Errorf("%w: free link %d beyond capacity %d", ErrStateMismatch, link, len(pool.slots))
		}
	}

	if live != state.Len || state.Head > end {
		return fmt.Errorf("%w: %d live slots, header says %d (head %d)", ErrStateMismatch, live, state.Len, state.Head)
	}

	err := walkFreeChain(state.Links, state.Head, end, len(state.Links)-live)
	if err != nil {
		return err
	}

	var zero T

	for idx, link := range state.Links {
		pool.slots[idx] = freeSlot[I, T]{value: zero, next: link}
	}

	pool.head = state.Head
	pool.size = state.Len

	return nil
}

// walkFreeChain checks that the chain from head visits each of the dead
// slots once and then stops at end.
func walkFreeChain[I constraints.Unsigned](links []I, head, end I, dead int) error {
	visited := make([]bool, len(links))
	cur := head

	for range dead {
		if cur >= end || links[cur] == Null[I]() || visited[cur] {
			return fmt.Errorf("%w: free chain reaches slot %d", ErrStateMismatch, cur)
		}

		visited[cur] = true
		cur = links[cur]
	}

	if cur != end {
		return fmt.Errorf("%w: free chain continues at %d", ErrStateMismatch, cur)
	}

	return nil
}
