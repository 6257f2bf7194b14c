// Package fixedmap provides ordered maps and sets with a capacity fixed at
// construction, built on the index-based red-black tree in pkg/rbtree.
//
// Precondition violations (inserting into a full map, reading a missing key
// with At) are reported to a check.Policy. With the default policy they
// come back as errors wrapping check.ErrCapacityExceeded or
// check.ErrOutOfRange.
//
// Map and Set are not safe for concurrent use. Sharded adds per-shard
// locking on top of independent maps.
package fixedmap

import (
	"cmp"
	"iter"

	"golang.org/x/exp/constraints"

	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

const mapContainer = "fixedmap.Map"

// Options configures a Map, Set or Sharded map.
type Options struct {
	Pool   pool.Kind
	Layout rbtree.Layout
	Policy check.Policy
}

// Option mutates Options.
type Option func(*Options)

// WithPool selects the node pool kind.
func WithPool(kind pool.Kind) Option {
	return func(o *Options) { o.Pool = kind }
}

// WithLayout selects the node layout.
func WithLayout(layout rbtree.Layout) Option {
	return func(o *Options) { o.Layout = layout }
}

// WithPolicy sets the checking policy. A nil policy keeps the default.
func WithPolicy(policy check.Policy) Option {
	return func(o *Options) {
		if policy != nil {
			o.Policy = policy
		}
	}
}

func buildOptions(opts []Option) Options {
	options := Options{Pool: pool.FreeList, Layout: rbtree.LayoutColorField, Policy: check.Default()}
	for _, opt := range opts {
		opt(&options)
	}

	return options
}

// Entry is a key-value pair returned by bound queries.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// Map is an ordered map holding at most Cap() entries.
type Map[K, V any, I constraints.Unsigned] struct {
	tree   *rbtree.Tree[K, V, I]
	policy check.Policy
}

// New creates an empty map ordered by compare.
func New[K, V any, I constraints.Unsigned](capacity int, compare func(a, b K) int, opts ...Option) *Map[K, V, I] {
	options := buildOptions(opts)
	tree := rbtree.New[K, V, I](capacity, compare, rbtree.WithPool(options.Pool), rbtree.WithLayout(options.Layout))

	return &Map[K, V, I]{tree: tree, policy: options.Policy}
}

// NewOrdered creates an empty map ordered by cmp.Compare.
func NewOrdered[K cmp.Ordered, V any, I constraints.Unsigned](capacity int, opts ...Option) *Map[K, V, I] {
	return New[K, V, I](capacity, cmp.Compare[K], opts...)
}

// FromTree wraps an existing tree, typically one restored from a snapshot.
func FromTree[K, V any, I constraints.Unsigned](tree *rbtree.Tree[K, V, I], policy check.Policy) *Map[K, V, I] {
	if policy == nil {
		policy = check.Default()
	}

	return &Map[K, V, I]{tree: tree, policy: policy}
}

// Tree exposes the underlying tree.
func (m *Map[K, V, I]) Tree() *rbtree.Tree[K, V, I] { return m.tree }

// Policy returns the checking policy.
func (m *Map[K, V, I]) Policy() check.Policy { return m.policy }

// Len returns the number of entries.
func (m *Map[K, V, I]) Len() int { return m.tree.Len() }

// Cap returns the fixed capacity.
func (m *Map[K, V, I]) Cap() int { return m.tree.Cap() }

// Full reports whether no more entries fit.
func (m *Map[K, V, I]) Full() bool { return m.tree.Full() }

// Clear removes every entry.
func (m *Map[K, V, I]) Clear() { m.tree.Clear() }

// Put inserts or overwrites key. Inserting a new key into a full map is a
// capacity violation; overwriting never is.
func (m *Map[K, V, I]) Put(key K, value V) error {
	probe := m.tree.Probe(key)
	if probe.Found() {
		m.tree.SetValue(probe.Index, value)

		return nil
	}

	if m.tree.Full() {
		return m.policy.Handle(check.Capacity(mapContainer, m.Cap()))
	}

	m.tree.InsertAt(probe, key, value)

	return nil
}

// TryPut inserts key only when it is absent and reports whether it did.
func (m *Map[K, V, I]) TryPut(key K, value V) (bool, error) {
	probe := m.tree.Probe(key)
	if probe.Found() {
		return false, nil
	}

	if m.tree.Full() {
		return false, m.policy.Handle(check.Capacity(mapContainer, m.Cap()))
	}

	m.tree.InsertAt(probe, key, value)

	return true, nil
}

// Get returns the value stored under key.
func (m *Map[K, V, I]) Get(key K) (V, bool) {
	return m.tree.Get(key)
}

// At returns the value stored under key; a missing key is an out-of-range
// violation.
func (m *Map[K, V, I]) At(key K) (V, error) {
	value, ok := m.tree.Get(key)
	if !ok {
		return value, m.policy.Handle(check.MissingKey(mapContainer, m.Cap(), key))
	}

	return value, nil
}

// Ref returns a pointer to the value stored under key, or nil. The pointer
// is valid until the next erase.
func (m *Map[K, V, I]) Ref(key K) *V {
	idx := m.tree.IndexOf(key)
	if idx == rbtree.Null[I]() {
		return nil
	}

	return m.tree.ValueRef(idx)
}

// Contains reports whether key is present.
func (m *Map[K, V, I]) Contains(key K) bool { return m.tree.Contains(key) }

// Delete removes key and reports whether it was present.
func (m *Map[K, V, I]) Delete(key K) bool { return m.tree.Delete(key) }

// Find returns a cursor on key, or End() when absent.
func (m *Map[K, V, I]) Find(key K) rbtree.Iterator[K, V, I] { return m.tree.Find(key) }

// Begin returns a cursor on the smallest key.
func (m *Map[K, V, I]) Begin() rbtree.Iterator[K, V, I] { return m.tree.Begin() }

// End returns the past-the-end cursor.
func (m *Map[K, V, I]) End() rbtree.Iterator[K, V, I] { return m.tree.End() }

// EraseAt removes the entry under cursor and returns a cursor on its
// successor.
func (m *Map[K, V, I]) EraseAt(cursor rbtree.Iterator[K, V, I]) rbtree.Iterator[K, V, I] {
	return m.tree.Erase(cursor)
}

// EraseRange removes the entries in [from, to) and returns the cursor to.
func (m *Map[K, V, I]) EraseRange(from, to rbtree.Iterator[K, V, I]) rbtree.Iterator[K, V, I] {
	return m.tree.At(m.tree.EraseRange(from.Index(), to.Index()))
}

// DeleteRange removes every key in [from, to) and returns how many went.
func (m *Map[K, V, I]) DeleteRange(from, to K) int {
	if m.tree.Compare()(from, to) >= 0 {
		return 0
	}

	before := m.tree.Len()
	m.tree.EraseRange(m.tree.Ceiling(from), m.tree.Ceiling(to))

	return before - m.tree.Len()
}

// Min returns the entry with the smallest key.
func (m *Map[K, V, I]) Min() (Entry[K, V], bool) { return m.entry(m.tree.MinIndex()) }

// Max returns the entry with the largest key.
func (m *Map[K, V, I]) Max() (Entry[K, V], bool) { return m.entry(m.tree.MaxIndex()) }

// Floor returns the entry with the largest key <= key.
func (m *Map[K, V, I]) Floor(key K) (Entry[K, V], bool) { return m.entry(m.tree.Floor(key)) }

// Ceiling returns the entry with the smallest key >= key.
func (m *Map[K, V, I]) Ceiling(key K) (Entry[K, V], bool) { return m.entry(m.tree.Ceiling(key)) }

// Lower returns the entry with the largest key < key.
func (m *Map[K, V, I]) Lower(key K) (Entry[K, V], bool) { return m.entry(m.tree.Lower(key)) }

// Higher returns the entry with the smallest key > key.
func (m *Map[K, V, I]) Higher(key K) (Entry[K, V], bool) { return m.entry(m.tree.Higher(key)) }

// All iterates entries in ascending key order.
func (m *Map[K, V, I]) All() iter.Seq2[K, V] { return m.tree.All() }

// Backward iterates entries in descending key order.
func (m *Map[K, V, I]) Backward() iter.Seq2[K, V] { return m.tree.Backward() }

// Keys iterates keys in ascending order.
func (m *Map[K, V, I]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for key := range m.tree.All() {
			if !yield(key) {
				return
			}
		}
	}
}

// Values iterates values in ascending key order.
func (m *Map[K, V, I]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, value := range m.tree.All() {
			if !yield(value) {
				return
			}
		}
	}
}

// SaveSnapshot writes the map to path atomically.
func (m *Map[K, V, I]) SaveSnapshot(path string) error {
	return m.tree.SaveSnapshot(path)
}

// LoadMap restores a map saved with SaveSnapshot. Pool and layout come from
// the file; only the policy option applies.
func LoadMap[K, V any, I constraints.Unsigned](
	path string, maxSize int64, compare func(a, b K) int, opts ...Option,
) (*Map[K, V, I], error) {
	tree, err := rbtree.LoadSnapshot[K, V, I](path, maxSize, compare)
	if err != nil {
		return nil, err
	}

	return FromTree(tree, buildOptions(opts).Policy), nil
}

func (m *Map[K, V, I]) entry(idx I) (Entry[K, V], bool) {
	if idx == rbtree.Null[I]() {
		return Entry[K, V]{}, false
	}

	return Entry[K, V]{Key: m.tree.Key(idx), Value: m.tree.Value(idx)}, true
}
