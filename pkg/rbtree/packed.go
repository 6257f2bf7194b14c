package rbtree

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
)

type packedNode[K, V any, I constraints.Unsigned] struct {
	key   K
	value V
	// parentColor holds the parent index in the low bits and the color in
	// the most significant bit (set = black). The all-ones low pattern
	// stands for a null parent.
	parentColor I
	left, right I
}

// PackedStorage stores the node color in the top bit of the parent link.
// Indices are limited to half the range of I.
type PackedStorage[K, V any, I constraints.Unsigned] struct {
	nodes pool.Pool[I, packedNode[K, V, I]]
}

// packedNull is the in-word encoding of a null parent; it doubles as the
// mask of the parent bits.
func packedNull[I constraints.Unsigned]() I {
	return Null[I]() >> 1
}

func colorBit[I constraints.Unsigned]() I {
	return Null[I]() ^ packedNull[I]()
}

// NewPackedStorage creates storage with the color packed into the parent
// link. The capacity must be smaller than half the range of I.
func NewPackedStorage[K, V any, I constraints.Unsigned](kind pool.Kind, capacity int) *PackedStorage[K, V, I] {
	if capacity < 0 || uint64(capacity) >= uint64(packedNull[I]()) {
		panic(fmt.Sprintf("rbtree: capacity %d does not fit a packed index", capacity))
	}

	return &PackedStorage[K, V, I]{nodes: pool.New[I, packedNode[K, V, I]](kind, capacity)}
}

// Emplace implements NodeStorage.
func (s *PackedStorage[K, V, I]) Emplace(key K, value V) I {
	null := Null[I]()

	return s.nodes.Allocate(packedNode[K, V, I]{
		key: key, value: value, parentColor: packedNull[I](), left: null, right: null,
	})
}

// DeleteAt implements NodeStorage.
func (s *PackedStorage[K, V, I]) DeleteAt(i I) I { return s.nodes.Free(i) }

// Contains implements NodeStorage.
func (s *PackedStorage[K, V, I]) Contains(i I) bool { return s.nodes.Live(i) }

// Len implements NodeStorage.
func (s *PackedStorage[K, V, I]) Len() int { return s.nodes.Len() }

// Cap implements NodeStorage.
func (s *PackedStorage[K, V, I]) Cap() int { return s.nodes.Cap() }

// Full implements NodeStorage.
func (s *PackedStorage[K, V, I]) Full() bool { return s.nodes.Full() }

// Clear implements NodeStorage.
func (s *PackedStorage[K, V, I]) Clear() { s.nodes.Clear() }

// Key implements NodeStorage.
func (s *PackedStorage[K, V, I]) Key(i I) K { return s.nodes.At(i).key }

// Value implements NodeStorage.
func (s *PackedStorage[K, V, I]) Value(i I) V { return s.nodes.At(i).value }

// ValueRef implements NodeStorage.
func (s *PackedStorage[K, V, I]) ValueRef(i I) *V { return &s.nodes.At(i).value }

// SetValue implements NodeStorage.
func (s *PackedStorage[K, V, I]) SetValue(i I, value V) { s.nodes.At(i).value = value }

// SetPayload implements NodeStorage.
func (s *PackedStorage[K, V, I]) SetPayload(i I, key K, value V) {
	nd := s.nodes.At(i)
	nd.key = key
	nd.value = value
}

// SwapPayload implements NodeStorage.
func (s *PackedStorage[K, V, I]) SwapPayload(i, j I) {
	a, b := s.nodes.At(i), s.nodes.At(j)
	a.key, b.key = b.key, a.key
	a.value, b.value = b.value, a.value
}

// Parent implements NodeStorage.
func (s *PackedStorage[K, V, I]) Parent(i I) I {
	parent := s.nodes.At(i).parentColor & packedNull[I]()
	if parent == packedNull[I]() {
		return Null[I]()
	}

	return parent
}

// SetParent implements NodeStorage.
func (s *PackedStorage[K, V, I]) SetParent(i, parent I) {
	if parent == Null[I]() {
		parent = packedNull[I]()
	}

	nd := s.nodes.At(i)
	nd.parentColor = nd.parentColor&colorBit[I]() | parent
}

// Left implements NodeStorage.
func (s *PackedStorage[K, V, I]) Left(i I) I { return s.nodes.At(i).left }

// SetLeft implements NodeStorage.
func (s *PackedStorage[K, V, I]) SetLeft(i, left I) { s.nodes.At(i).left = left }

// Right implements NodeStorage.
func (s *PackedStorage[K, V, I]) Right(i I) I { return s.nodes.At(i).right }

// SetRight implements NodeStorage.
func (s *PackedStorage[K, V, I]) SetRight(i, right I) { s.nodes.At(i).right = right }

// Color implements NodeStorage.
func (s *PackedStorage[K, V, I]) Color(i I) Color {
	return Color(s.nodes.At(i).parentColor&colorBit[I]() != 0)
}

// SetColor implements NodeStorage.
func (s *PackedStorage[K, V, I]) SetColor(i I, color Color) {
	nd := s.nodes.At(i)
	if color == Black {
		nd.parentColor |= colorBit[I]()
	} else {
		nd.parentColor &= packedNull[I]()
	}
}

// Layout implements NodeStorage.
func (s *PackedStorage[K, V, I]) Layout() Layout { return LayoutPackedColor }

// PoolKind implements NodeStorage.
func (s *PackedStorage[K, V, I]) PoolKind() pool.Kind { return s.nodes.Kind() }

// PoolState implements NodeStorage.
func (s *PackedStorage[K, V, I]) PoolState() pool.State[I] { return s.nodes.State() }

// RestorePool implements NodeStorage. Restored nodes are black and unlinked.
func (s *PackedStorage[K, V, I]) RestorePool(state pool.State[I]) error {
	err := s.nodes.Restore(state)
	if err != nil {
		return fmt.Errorf("restore node pool: %w", err)
	}

	null := Null[I]()

	for i := range indexRange[I](s.nodes.Cap()) {
		if s.nodes.Live(i) {
			*s.nodes.At(i) = packedNode[K, V, I]{parentColor: Null[I](), left: null, right: null}
		}
	}

	return nil
}
