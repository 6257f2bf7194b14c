package rbtree

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/exp/constraints"

	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
)

// ErrUnknownLayout is returned when a layout name cannot be parsed.
var ErrUnknownLayout = errors.New("unknown node layout")

// Color is the color of a tree node.
type Color bool

const (
	// Red nodes never have red children.
	Red Color = false
	// Black nodes count towards the black height.
	Black Color = true
)

// String returns "red" or "black".
func (c Color) String() string {
	if c == Black {
		return "black"
	}

	return "red"
}

// Layout selects the physical representation of tree nodes.
type Layout uint8

const (
	// LayoutColorField stores the color in a dedicated field.
	LayoutColorField Layout = iota
	// LayoutPackedColor stores the color in the most significant bit of the
	// parent index, which halves the usable index range.
	LayoutPackedColor
)

// String returns the layout name.
func (l Layout) String() string {
	switch l {
	case LayoutColorField:
		return "field"
	case LayoutPackedColor:
		return "packed"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

// ParseLayout parses the name produced by Layout.String.
func ParseLayout(name string) (Layout, error) {
	switch strings.ToLower(name) {
	case "field", "color_field", "colorfield":
		return LayoutColorField, nil
	case "packed", "packed_color", "packedcolor":
		return LayoutPackedColor, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}
}

// NodeStorage owns the nodes of a tree: their payload and their structural
// links. Link accessors return Null for absent neighbors.
//
// All accessors are unchecked: the caller guarantees Contains(i).
type NodeStorage[K, V any, I constraints.Unsigned] interface {
	// Emplace stores a new red node without links and returns its index.
	// REQUIRES: !Full().
	Emplace(key K, value V) I
	// DeleteAt releases node i and returns the index whose node was moved
	// into i. The result equals i when nothing moved.
	DeleteAt(i I) I
	Contains(i I) bool
	Len() int
	Cap() int
	Full() bool
	Clear()

	Key(i I) K
	Value(i I) V
	ValueRef(i I) *V
	SetValue(i I, value V)
	SetPayload(i I, key K, value V)
	// SwapPayload exchanges keys and values of i and j, leaving links alone.
	SwapPayload(i, j I)

	Parent(i I) I
	SetParent(i, parent I)
	Left(i I) I
	SetLeft(i, left I)
	Right(i I) I
	SetRight(i, right I)
	Color(i I) Color
	SetColor(i I, color Color)

	Layout() Layout
	PoolKind() pool.Kind
	PoolState() pool.State[I]
	RestorePool(state pool.State[I]) error
}

// NewStorage creates node storage with the given layout over a pool of kind.
func NewStorage[K, V any, I constraints.Unsigned](layout Layout, kind pool.Kind, capacity int) NodeStorage[K, V, I] {
	switch layout {
	case LayoutColorField:
		return NewFieldStorage[K, V, I](kind, capacity)
	case LayoutPackedColor:
		return NewPackedStorage[K, V, I](kind, capacity)
	default:
		panic(fmt.Sprintf("rbtree: %v", layout))
	}
}

// NodeBytes returns the in-memory size of one node slot with the given layout.
func NodeBytes[K, V any, I constraints.Unsigned](layout Layout) uintptr {
	if layout == LayoutPackedColor {
		return unsafe.Sizeof(packedNode[K, V, I]{})
	}

	return unsafe.Sizeof(fieldNode[K, V, I]{})
}

type fieldNode[K, V any, I constraints.Unsigned] struct {
	key                 K
	value               V
	parent, left, right I
	color               Color
}

// FieldStorage keeps every node attribute in its own field.
type FieldStorage[K, V any, I constraints.Unsigned] struct {
	nodes pool.Pool[I, fieldNode[K, V, I]]
}

// NewFieldStorage creates storage with a dedicated color field.
func NewFieldStorage[K, V any, I constraints.Unsigned](kind pool.Kind, capacity int) *FieldStorage[K, V, I] {
	return &FieldStorage[K, V, I]{nodes: pool.New[I, fieldNode[K, V, I]](kind, capacity)}
}

// Emplace implements NodeStorage.
func (s *FieldStorage[K, V, I]) Emplace(key K, value V) I {
	null := Null[I]()

	return s.nodes.Allocate(fieldNode[K, V, I]{
		key: key, value: value, parent: null, left: null, right: null, color: Red,
	})
}

// DeleteAt implements NodeStorage.
func (s *FieldStorage[K, V, I]) DeleteAt(i I) I { return s.nodes.Free(i) }

// Contains implements NodeStorage.
func (s *FieldStorage[K, V, I]) Contains(i I) bool { return s.nodes.Live(i) }

// Len implements NodeStorage.
func (s *FieldStorage[K, V, I]) Len() int { return s.nodes.Len() }

// Cap implements NodeStorage.
func (s *FieldStorage[K, V, I]) Cap() int { return s.nodes.Cap() }

// Full implements NodeStorage.
func (s *FieldStorage[K, V, I]) Full() bool { return s.nodes.Full() }

// Clear implements NodeStorage.
func (s *FieldStorage[K, V, I]) Clear() { s.nodes.Clear() }

// Key implements NodeStorage.
func (s *FieldStorage[K, V, I]) Key(i I) K { return s.nodes.At(i).key }

// Value implements NodeStorage.
func (s *FieldStorage[K, V, I]) Value(i I) V { return s.nodes.At(i).value }

// ValueRef implements NodeStorage.
func (s *FieldStorage[K, V, I]) ValueRef(i I) *V { return &s.nodes.At(i).value }

// SetValue implements NodeStorage.
func (s *FieldStorage[K, V, I]) SetValue(i I, value V) { s.nodes.At(i).value = value }

// SetPayload implements NodeStorage.
func (s *FieldStorage[K, V, I]) SetPayload(i I, key K, value V) {
	nd := s.nodes.At(i)
	nd.key = key
	nd.value = value
}

// SwapPayload implements NodeStorage.
func (s *FieldStorage[K, V, I]) SwapPayload(i, j I) {
	a, b := s.nodes.At(i), s.nodes.At(j)
	a.key, b.key = b.key, a.key
	a.value, b.value = b.value, a.value
}

// Parent implements NodeStorage.
func (s *FieldStorage[K, V, I]) Parent(i I) I { return s.nodes.At(i).parent }

// SetParent implements NodeStorage.
func (s *FieldStorage[K, V, I]) SetParent(i, parent I) { s.nodes.At(i).parent = parent }

// Left implements NodeStorage.
func (s *FieldStorage[K, V, I]) Left(i I) I { return s.nodes.At(i).left }

// SetLeft implements NodeStorage.
func (s *FieldStorage[K, V, I]) SetLeft(i, left I) { s.nodes.At(i).left = left }

// Right implements NodeStorage.
func (s *FieldStorage[K, V, I]) Right(i I) I { return s.nodes.At(i).right }

// SetRight implements NodeStorage.
func (s *FieldStorage[K, V, I]) SetRight(i, right I) { s.nodes.At(i).right = right }

// Color implements NodeStorage.
func (s *FieldStorage[K, V, I]) Color(i I) Color { return s.nodes.At(i).color }

// SetColor implements NodeStorage.
func (s *FieldStorage[K, V, I]) SetColor(i I, color Color) { s.nodes.At(i).color = color }

// Layout implements NodeStorage.
func (s *FieldStorage[K, V, I]) Layout() Layout { return LayoutColorField }

// PoolKind implements NodeStorage.
func (s *FieldStorage[K, V, I]) PoolKind() pool.Kind { return s.nodes.Kind() }

// PoolState implements NodeStorage.
func (s *FieldStorage[K, V, I]) PoolState() pool.State[I] { return s.nodes.State() }

// RestorePool implements NodeStorage. Restored nodes are black and unlinked.
func (s *FieldStorage[K, V, I]) RestorePool(state pool.State[I]) error {
	err := s.nodes.Restore(state)
	if err != nil {
		return fmt.Errorf("restore node pool: %w", err)
	}

	null := Null[I]()

	for i := range indexRange[I](s.nodes.Cap()) {
		if s.nodes.Live(i) {
			*s.nodes.At(i) = fieldNode[K, V, I]{parent: null, left: null, right: null, color: Black}
		}
	}

	return nil
}
