// Package circular implements a fixed-capacity ring buffer that overwrites
// its oldest element when pushed while full.
package circular

import (
	"fmt"
	"iter"

	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
)

const container = "circular.Buffer"

// Buffer is a ring of Cap() slots. Logical position 0 is the oldest
// element; raw slots are addressed with Slot.
//
// Buffer is not safe for concurrent use.
type Buffer[T any] struct {
	slots  []T
	start  int
	size   int
	policy check.Policy
}

// Option configures a Buffer.
type Option func(*options)

type options struct {
	policy check.Policy
}

// WithPolicy sets the checking policy for out-of-range positions.
func WithPolicy(policy check.Policy) Option {
	return func(o *options) {
		if policy != nil {
			o.policy = policy
		}
	}
}

// New creates an empty buffer with room for capacity elements.
func New[T any](capacity int, opts ...Option) *Buffer[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("circular: capacity must be positive, got %d", capacity))
	}

	o := options{policy: check.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Buffer[T]{slots: make([]T, capacity), policy: o.policy}
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the number of slots.
func (b *Buffer[T]) Cap() int { return len(b.slots) }

// Full reports whether the next Push overwrites.
func (b *Buffer[T]) Full() bool { return b.size == len(b.slots) }

// Empty reports whether the buffer holds nothing.
func (b *Buffer[T]) Empty() bool { return b.size == 0 }

// Push appends value. When full it replaces the oldest element, returns it
// and reports true.
func (b *Buffer[T]) Push(value T) (T, bool) {
	if b.Full() {
		evicted := b.slots[b.start]
		b.slots[b.start] = value
		b.start = b.wrap(b.start + 1)

		return evicted, true
	}

	b.slots[b.wrap(b.start+b.size)] = value
	b.size++

	var zero T

	return zero, false
}

// PopFront removes and returns the oldest element.
func (b *Buffer[T]) PopFront() (T, bool) {
	var zero T

	if b.size == 0 {
		return zero, false
	}

	value := b.slots[b.start]
	b.slots[b.start] = zero
	b.start = b.wrap(b.start + 1)
	b.size--

	return value, true
}

// PopBack removes and returns the newest element.
func (b *Buffer[T]) PopBack() (T, bool) {
	var zero T

	if b.size == 0 {
		return zero, false
	}

	last := b.wrap(b.start + b.size - 1)
	value := b.slots[last]
	b.slots[last] = zero
	b.size--

	return value, true
}

// Front returns the oldest element.
func (b *Buffer[T]) Front() (T, bool) {
	if b.size == 0 {
		var zero T

		return zero, false
	}

	return b.slots[b.start], true
}

// Back returns the newest element.
func (b *Buffer[T]) Back() (T, bool) {
	if b.size == 0 {
		var zero T

		return zero, false
	}

	return b.slots[b.wrap(b.start+b.size-1)], true
}

// At returns the element at logical position pos, 0 being the oldest.
func (b *Buffer[T]) At(pos int) (T, error) {
	if pos < 0 || pos >= b.size {
		var zero T

		return zero, b.policy.Handle(check.Range(container, len(b.slots), pos))
	}

	return b.slots[b.wrap(b.start+pos)], nil
}

// Slot returns raw slot idx regardless of age. Slots that were never
// written, or were popped, hold the zero value.
func (b *Buffer[T]) Slot(idx int) (T, error) {
	if idx < 0 || idx >= len(b.slots) {
		var zero T

		return zero, b.policy.Handle(check.Range(container, len(b.slots), idx))
	}

	return b.slots[idx], nil
}

// Clear drops every element.
func (b *Buffer[T]) Clear() {
	clear(b.slots)
	b.start, b.size = 0, 0
}

// All iterates elements from oldest to newest with their logical position.
func (b *Buffer[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for pos := range b.size {
			if !yield(pos, b.slots[b.wrap(b.start+pos)]) {
				return
			}
		}
	}
}

// AppendTo appends the elements from oldest to newest to dst.
func (b *Buffer[T]) AppendTo(dst []T) []T {
	for _, value := range b.All() {
		dst = append(dst, value)
	}

	return dst
}

func (b *Buffer[T]) wrap(idx int) int {
	if idx >= len(b.slots) {
		return idx - len(b.slots)
	}

	return idx
}
