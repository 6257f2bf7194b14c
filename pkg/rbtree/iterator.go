package rbtree

import "golang.org/x/exp/constraints"

// Iterator allows scanning tree elements in sort order.
//
// Iterator invalidation rule is the same as C++ std::map<>'s, with one
// addition for compacting pools: erasing any element may move another one
// to a new index, so every iterator except the one returned by Erase
// becomes invalid.
type Iterator[K, V any, I constraints.Unsigned] struct {
	tree *Tree[K, V, I]
	node I
}

// Begin creates an iterator that points to the minimum item in the tree.
// If the tree is empty, returns End().
func (tree *Tree[K, V, I]) Begin() Iterator[K, V, I] {
	return Iterator[K, V, I]{tree, tree.MinIndex()}
}

// End creates an iterator that points beyond the maximum item in the tree.
func (tree *Tree[K, V, I]) End() Iterator[K, V, I] {
	return Iterator[K, V, I]{tree, Null[I]()}
}

// At creates an iterator positioned on node i.
func (tree *Tree[K, V, I]) At(i I) Iterator[K, V, I] {
	doAssert(i == Null[I]() || tree.ContainsAt(i))

	return Iterator[K, V, I]{tree, i}
}

// Find creates an iterator positioned on key, or End() when absent.
func (tree *Tree[K, V, I]) Find(key K) Iterator[K, V, I] {
	return Iterator[K, V, I]{tree, tree.IndexOf(key)}
}

// FindGE finds the smallest element N such that N >= Key.
func (tree *Tree[K, V, I]) FindGE(key K) Iterator[K, V, I] {
	return Iterator[K, V, I]{tree, tree.Ceiling(key)}
}

// FindLE finds the largest element N such that N <= Key. Returns End() if
// there is none.
func (tree *Tree[K, V, I]) FindLE(key K) Iterator[K, V, I] {
	return Iterator[K, V, I]{tree, tree.Floor(key)}
}

// Erase removes the element under the iterator and returns an iterator to
// its successor.
//
// REQUIRES: !iter.Limit().
func (tree *Tree[K, V, I]) Erase(iter Iterator[K, V, I]) Iterator[K, V, I] {
	doAssert(iter.tree == tree && !iter.Limit())

	return Iterator[K, V, I]{tree, tree.EraseAt(iter.node)}
}

// Limit checks if the iterator points beyond the max element in the tree.
func (iter Iterator[K, V, I]) Limit() bool {
	return iter.node == Null[I]()
}

// Index returns the node index under the iterator.
func (iter Iterator[K, V, I]) Index() I {
	return iter.node
}

// Equal checks for the underlying nodes equality.
func (iter Iterator[K, V, I]) Equal(other Iterator[K, V, I]) bool {
	return iter.tree == other.tree && iter.node == other.node
}

// Key returns the current key.
//
// REQUIRES: !iter.Limit().
func (iter Iterator[K, V, I]) Key() K {
	doAssert(!iter.Limit())

	return iter.tree.storage.Key(iter.node)
}

// Value returns a pointer to the current value, allowing it to be mutated
// in place.
//
// REQUIRES: !iter.Limit().
func (iter Iterator[K, V, I]) Value() *V {
	doAssert(!iter.Limit())

	return iter.tree.storage.ValueRef(iter.node)
}

// Next creates a new iterator that points to the successor of the current element.
//
// REQUIRES: !iter.Limit().
func (iter Iterator[K, V, I]) Next() Iterator[K, V, I] {
	doAssert(!iter.Limit())

	return Iterator[K, V, I]{iter.tree, iter.tree.Successor(iter.node)}
}

// Prev creates a new iterator that points to the predecessor of the current
// node. Stepping back from End() lands on the maximum; stepping back from the
// minimum yields End().
func (iter Iterator[K, V, I]) Prev() Iterator[K, V, I] {
	if iter.Limit() {
		return Iterator[K, V, I]{iter.tree, iter.tree.MaxIndex()}
	}

	return Iterator[K, V, I]{iter.tree, iter.tree.Predecessor(iter.node)}
}
