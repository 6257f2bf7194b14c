package fixedmap

import (
	"cmp"
	"iter"

	"golang.org/x/exp/constraints"

	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

const setContainer = "fixedmap.Set"

// Set is an ordered set holding at most Cap() keys.
type Set[K any, I constraints.Unsigned] struct {
	tree   *rbtree.Tree[K, struct{}, I]
	policy check.Policy
}

// NewSet creates an empty set ordered by compare.
func NewSet[K any, I constraints.Unsigned](capacity int, compare func(a, b K) int, opts ...Option) *Set[K, I] {
	options := buildOptions(opts)
	tree := rbtree.New[K, struct{}, I](capacity, compare,
		rbtree.WithPool(options.Pool), rbtree.WithLayout(options.Layout))

	return &Set[K, I]{tree: tree, policy: options.Policy}
}

// NewOrderedSet creates an empty set ordered by cmp.Compare.
func NewOrderedSet[K cmp.Ordered, I constraints.Unsigned](capacity int, opts ...Option) *Set[K, I] {
	return NewSet[K, I](capacity, cmp.Compare[K], opts...)
}

// Tree exposes the underlying tree.
func (s *Set[K, I]) Tree() *rbtree.Tree[K, struct{}, I] { return s.tree }

// Len returns the number of keys.
func (s *Set[K, I]) Len() int { return s.tree.Len() }

// Cap returns the fixed capacity.
func (s *Set[K, I]) Cap() int { return s.tree.Cap() }

// Full reports whether no more keys fit.
func (s *Set[K, I]) Full() bool { return s.tree.Full() }

// Clear removes every key.
func (s *Set[K, I]) Clear() { s.tree.Clear() }

// Insert adds key and reports whether it was new.
func (s *Set[K, I]) Insert(key K) (bool, error) {
	probe := s.tree.Probe(key)
	if probe.Found() {
		return false, nil
	}

	if s.tree.Full() {
		return false, s.policy.Handle(check.Capacity(setContainer, s.Cap()))
	}

	s.tree.InsertAt(probe, key, struct{}{})

	return true, nil
}

// Contains reports whether key is present.
func (s *Set[K, I]) Contains(key K) bool { return s.tree.Contains(key) }

// Delete removes key and reports whether it was present.
func (s *Set[K, I]) Delete(key K) bool { return s.tree.Delete(key) }

// Min returns the smallest key.
func (s *Set[K, I]) Min() (K, bool) { return s.key(s.tree.MinIndex()) }

// Max returns the largest key.
func (s *Set[K, I]) Max() (K, bool) { return s.key(s.tree.MaxIndex()) }

// Floor returns the largest key <= key.
func (s *Set[K, I]) Floor(key K) (K, bool) { return s.key(s.tree.Floor(key)) }

// Ceiling returns the smallest key >= key.
func (s *Set[K, I]) Ceiling(key K) (K, bool) { return s.key(s.tree.Ceiling(key)) }

// Lower returns the largest key < key.
func (s *Set[K, I]) Lower(key K) (K, bool) { return s.key(s.tree.Lower(key)) }

// Higher returns the smallest key > key.
func (s *Set[K, I]) Higher(key K) (K, bool) { return s.key(s.tree.Higher(key)) }

// All iterates keys in ascending order.
func (s *Set[K, I]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		for key := range s.tree.All() {
			if !yield(key) {
				return
			}
		}
	}
}

// Backward iterates keys in descending order.
func (s *Set[K, I]) Backward() iter.Seq[K] {
	return func(yield func(K) bool) {
		for key := range s.tree.Backward() {
			if !yield(key) {
				return
			}
		}
	}
}

// DeleteRange removes every key in [from, to) and returns how many went.
func (s *Set[K, I]) DeleteRange(from, to K) int {
	if s.tree.Compare()(from, to) >= 0 {
		return 0
	}

	before := s.tree.Len()
	s.tree.EraseRange(s.tree.Ceiling(from), s.tree.Ceiling(to))

	return before - s.tree.Len()
}

// SaveSnapshot writes the set to path atomically.
func (s *Set[K, I]) SaveSnapshot(path string) error {
	return s.tree.SaveSnapshot(path)
}

// LoadSet restores a set saved with SaveSnapshot.
func LoadSet[K any, I constraints.Unsigned](
	path string, maxSize int64, compare func(a, b K) int, opts ...Option,
) (*Set[K, I], error) {
	tree, err := rbtree.LoadSnapshot[K, struct{}, I](path, maxSize, compare)
	if err != nil {
		return nil, err
	}

	return &Set[K, I]{tree: tree, policy: buildOptions(opts).Policy}, nil
}

func (s *Set[K, I]) key(idx I) (K, bool) {
	if idx == rbtree.Null[I]() {
		var zero K

		return zero, false
	}

	return s.tree.Key(idx), true
}
