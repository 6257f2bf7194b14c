// Package rbtree provides a fixed-capacity red-black tree whose nodes live in
// a pre-allocated index pool and refer to each other by integer index.
//
// The tree never allocates after construction. Nodes are addressed by an
// unsigned index type I; the largest value of I is reserved as Null. Two
// pool strategies (stable free list or compacting) and two node layouts
// (dedicated color field or color packed into the parent link) can be
// combined freely.
//
// A Tree is not safe for concurrent use.
package rbtree

import (
	"cmp"
	"iter"

	"golang.org/x/exp/constraints"

	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
	"github.com/Sumatoshi-tech/fixedtree/pkg/safeconv"
)

// Null returns the sentinel index meaning "no node".
func Null[I constraints.Unsigned]() I {
	return pool.Null[I]()
}

// Probe is the outcome of a key search.
//
// When the key is present, Index is its node and Parent the node's parent.
// Otherwise Index is Null, Parent is the node the key would hang from (Null
// for an empty tree) and Left tells on which side.
type Probe[I constraints.Unsigned] struct {
	Index  I
	Parent I
	Left   bool
}

// Found reports whether the probed key is present.
func (p Probe[I]) Found() bool {
	return p.Index != Null[I]()
}

// Reposition describes a node that erase moved from one slot to another.
// Both fields are Null when nothing moved.
type Reposition[I constraints.Unsigned] struct {
	From I
	To   I
}

// Moved reports whether a node changed index.
func (r Reposition[I]) Moved() bool {
	return r.From != r.To
}

// Apply translates an index held by the caller across the move.
func (r Reposition[I]) Apply(i I) I {
	if r.Moved() && i == r.From {
		return r.To
	}

	return i
}

func noReposition[I constraints.Unsigned]() Reposition[I] {
	return Reposition[I]{From: Null[I](), To: Null[I]()}
}

// Stats counts structural work performed by a tree.
type Stats struct {
	Inserts     uint64
	Erases      uint64
	Rotations   uint64
	Repositions uint64
	Swaps       uint64
}

// Options configure a Tree.
type Options struct {
	Pool   pool.Kind
	Layout Layout
}

// Option is a functional option for New.
type Option func(*Options)

// WithPool selects the index pool strategy.
func WithPool(kind pool.Kind) Option {
	return func(o *Options) {
		o.Pool = kind
	}
}

// WithLayout selects the node layout.
func WithLayout(layout Layout) Option {
	return func(o *Options) {
		o.Layout = layout
	}
}

// Tree is an index-addressed red-black tree with a fixed capacity.
type Tree[K, V any, I constraints.Unsigned] struct {
	storage NodeStorage[K, V, I]
	compare func(a, b K) int
	root    I
	stats   Stats
}

// New creates an empty tree holding at most capacity nodes, ordered by
// compare. The default configuration is a free-list pool with a color field.
func New[K, V any, I constraints.Unsigned](capacity int, compare func(a, b K) int, opts ...Option) *Tree[K, V, I] {
	options := Options{Pool: pool.FreeList, Layout: LayoutColorField}
	for _, opt := range opts {
		opt(&options)
	}

	return NewWithStorage(NewStorage[K, V, I](options.Layout, options.Pool, capacity), compare)
}

// NewOrdered creates a tree over a naturally ordered key type.
func NewOrdered[K cmp.Ordered, V any, I constraints.Unsigned](capacity int, opts ...Option) *Tree[K, V, I] {
	return New[K, V, I](capacity, cmp.Compare[K], opts...)
}

// NewWithStorage creates a tree over caller-provided storage, which must be empty.
func NewWithStorage[K, V any, I constraints.Unsigned](storage NodeStorage[K, V, I], compare func(a, b K) int) *Tree[K, V, I] {
	doAssert(storage.Len() == 0)

	return &Tree[K, V, I]{storage: storage, compare: compare, root: Null[I]()}
}

// Storage returns the underlying node storage.
func (tree *Tree[K, V, I]) Storage() NodeStorage[K, V, I] {
	return tree.storage
}

// Compare returns the key ordering of the tree.
func (tree *Tree[K, V, I]) Compare() func(a, b K) int {
	return tree.compare
}

// Stats returns the structural work counters.
func (tree *Tree[K, V, I]) Stats() Stats {
	return tree.stats
}

// ResetStats zeroes the structural work counters.
func (tree *Tree[K, V, I]) ResetStats() {
	tree.stats = Stats{}
}

// Len returns the number of elements in the tree.
func (tree *Tree[K, V, I]) Len() int {
	return tree.storage.Len()
}

// Cap returns the fixed capacity.
func (tree *Tree[K, V, I]) Cap() int {
	return tree.storage.Cap()
}

// Full reports whether another insertion would exceed the capacity.
func (tree *Tree[K, V, I]) Full() bool {
	return tree.storage.Full()
}

// Root returns the index of the root node, or Null for an empty tree.
func (tree *Tree[K, V, I]) Root() I {
	return tree.root
}

// Clear removes every node.
func (tree *Tree[K, V, I]) Clear() {
	tree.storage.Clear()
	tree.root = Null[I]()
}

// ContainsAt reports whether i addresses a node of the tree.
func (tree *Tree[K, V, I]) ContainsAt(i I) bool {
	return i != Null[I]() && tree.storage.Contains(i)
}

// Key returns the key of node i.
func (tree *Tree[K, V, I]) Key(i I) K {
	return tree.storage.Key(i)
}

// Value returns the value of node i.
func (tree *Tree[K, V, I]) Value(i I) V {
	return tree.storage.Value(i)
}

// ValueRef returns a pointer to the value of node i. It stays valid until
// the next erase.
func (tree *Tree[K, V, I]) ValueRef(i I) *V {
	return tree.storage.ValueRef(i)
}

// SetValue replaces the value of node i.
func (tree *Tree[K, V, I]) SetValue(i I, value V) {
	tree.storage.SetValue(i, value)
}

// Probe searches for key and reports where it is or would be attached.
func (tree *Tree[K, V, I]) Probe(key K) Probe[I] {
	null := Null[I]()
	probe := Probe[I]{Index: null, Parent: null}
	nodeIdx := tree.root

	for nodeIdx != null {
		comp := tree.compare(key, tree.storage.Key(nodeIdx))

		switch {
		case comp == 0:
			probe.Index = nodeIdx
			probe.Parent = tree.storage.Parent(nodeIdx)

			return probe
		case comp < 0:
			probe.Parent, probe.Left = nodeIdx, true
			nodeIdx = tree.storage.Left(nodeIdx)
		default:
			probe.Parent, probe.Left = nodeIdx, false
			nodeIdx = tree.storage.Right(nodeIdx)
		}
	}

	return probe
}

// IndexOf returns the node holding key, or Null.
func (tree *Tree[K, V, I]) IndexOf(key K) I {
	return tree.Probe(key).Index
}

// Contains reports whether key is present.
func (tree *Tree[K, V, I]) Contains(key K) bool {
	return tree.Probe(key).Found()
}

// Get is a convenience function for finding the value stored under key.
func (tree *Tree[K, V, I]) Get(key K) (V, bool) {
	nodeIdx := tree.IndexOf(key)
	if nodeIdx == Null[I]() {
		var zero V

		return zero, false
	}

	return tree.storage.Value(nodeIdx), true
}

// InsertAt attaches a new node at the position reported by a miss probe and
// rebalances. No other node changes index.
//
// REQUIRES: !probe.Found() && !Full() and no mutation since the probe.
func (tree *Tree[K, V, I]) InsertAt(probe Probe[I], key K, value V) I {
	doAssert(!probe.Found())

	nodeIdx := tree.storage.Emplace(key, value)
	parent := probe.Parent
	tree.storage.SetParent(nodeIdx, parent)

	switch {
	case parent == Null[I]():
		doAssert(tree.root == Null[I]())
		tree.root = nodeIdx
	case probe.Left:
		tree.storage.SetLeft(parent, nodeIdx)
	default:
		tree.storage.SetRight(parent, nodeIdx)
	}

	tree.stats.Inserts++
	tree.fixAfterInsertion(nodeIdx)

	return nodeIdx
}

// Insert an element. If the key is already in the tree, do nothing and
// return its index and false. Else return the new index and true.
//
// REQUIRES: !Full() when the key is absent.
func (tree *Tree[K, V, I]) Insert(key K, value V) (I, bool) {
	probe := tree.Probe(key)
	if probe.Found() {
		return probe.Index, false
	}

	return tree.InsertAt(probe, key, value), true
}

// Put inserts key or overwrites the value of an existing key. The boolean
// is true when a new node was created.
//
// REQUIRES: !Full() when the key is absent.
func (tree *Tree[K, V, I]) Put(key K, value V) (I, bool) {
	probe := tree.Probe(key)
	if probe.Found() {
		tree.storage.SetValue(probe.Index, value)

		return probe.Index, false
	}

	return tree.InsertAt(probe, key, value), true
}

// MinIndex returns the node with the smallest key, or Null.
func (tree *Tree[K, V, I]) MinIndex() I {
	return tree.minUnder(tree.root)
}

// MaxIndex returns the node with the largest key, or Null.
func (tree *Tree[K, V, I]) MaxIndex() I {
	return tree.maxUnder(tree.root)
}

// Successor returns the node with the next larger key, or Null.
func (tree *Tree[K, V, I]) Successor(i I) I {
	null := Null[I]()
	if i == null {
		return null
	}

	if right := tree.storage.Right(i); right != null {
		return tree.minUnder(right)
	}

	parent := tree.storage.Parent(i)
	for parent != null && i == tree.storage.Right(parent) {
		i = parent
		parent = tree.storage.Parent(i)
	}

	return parent
}

// Predecessor returns the node with the next smaller key, or Null.
func (tree *Tree[K, V, I]) Predecessor(i I) I {
	null := Null[I]()
	if i == null {
		return null
	}

	if left := tree.storage.Left(i); left != null {
		return tree.maxUnder(left)
	}

	parent := tree.storage.Parent(i)
	for parent != null && i == tree.storage.Left(parent) {
		i = parent
		parent = tree.storage.Parent(i)
	}

	return parent
}

// Height returns the number of edges on the longest root-to-leaf path.
// Empty and single-node trees have height 0.
func (tree *Tree[K, V, I]) Height() int {
	return max(tree.heightUnder(tree.root)-1, 0)
}

// Indices yields node indices in ascending key order.
func (tree *Tree[K, V, I]) Indices() iter.Seq[I] {
	return func(yield func(I) bool) {
		for nodeIdx := tree.MinIndex(); nodeIdx != Null[I](); nodeIdx = tree.Successor(nodeIdx) {
			if !yield(nodeIdx) {
				return
			}
		}
	}
}

// All yields key-value pairs in ascending key order.
func (tree *Tree[K, V, I]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for nodeIdx := range tree.Indices() {
			if !yield(tree.storage.Key(nodeIdx), tree.storage.Value(nodeIdx)) {
				return
			}
		}
	}
}

// Backward yields key-value pairs in descending key order.
func (tree *Tree[K, V, I]) Backward() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for nodeIdx := tree.MaxIndex(); nodeIdx != Null[I](); nodeIdx = tree.Predecessor(nodeIdx) {
			if !yield(tree.storage.Key(nodeIdx), tree.storage.Value(nodeIdx)) {
				return
			}
		}
	}
}

func (tree *Tree[K, V, I]) heightUnder(nodeIdx I) int {
	if nodeIdx == Null[I]() {
		return 0
	}

	return 1 + max(tree.heightUnder(tree.storage.Left(nodeIdx)), tree.heightUnder(tree.storage.Right(nodeIdx)))
}

func (tree *Tree[K, V, I]) minUnder(nodeIdx I) I {
	null := Null[I]()
	if nodeIdx == null {
		return null
	}

	for left := tree.storage.Left(nodeIdx); left != null; left = tree.storage.Left(nodeIdx) {
		nodeIdx = left
	}

	return nodeIdx
}

func (tree *Tree[K, V, I]) maxUnder(nodeIdx I) I {
	null := Null[I]()
	if nodeIdx == null {
		return null
	}

	for right := tree.storage.Right(nodeIdx); right != null; right = tree.storage.Right(nodeIdx) {
		nodeIdx = right
	}

	return nodeIdx
}

// Null-tolerant node attribute accessors.

func (tree *Tree[K, V, I]) parentOf(nodeIdx I) I {
	if nodeIdx == Null[I]() {
		return nodeIdx
	}

	return tree.storage.Parent(nodeIdx)
}

func (tree *Tree[K, V, I]) leftOf(nodeIdx I) I {
	if nodeIdx == Null[I]() {
		return nodeIdx
	}

	return tree.storage.Left(nodeIdx)
}

func (tree *Tree[K, V, I]) rightOf(nodeIdx I) I {
	if nodeIdx == Null[I]() {
		return nodeIdx
	}

	return tree.storage.Right(nodeIdx)
}

func (tree *Tree[K, V, I]) colorOf(nodeIdx I) Color {
	if nodeIdx == Null[I]() {
		return Black
	}

	return tree.storage.Color(nodeIdx)
}

func (tree *Tree[K, V, I]) setColor(nodeIdx I, color Color) {
	if nodeIdx != Null[I]() {
		tree.storage.SetColor(nodeIdx, color)
	}
}

// fixAfterInsertion restores the red-black properties after x was attached
// as a red leaf.
func (tree *Tree[K, V, I]) fixAfterInsertion(x I) {
	tree.storage.SetColor(x, Red)

	for x != Null[I]() && x != tree.root && tree.colorOf(tree.parentOf(x)) == Red {
		parent := tree.parentOf(x)
		grandparent := tree.parentOf(parent)

		if parent == tree.leftOf(grandparent) {
			uncle := tree.rightOf(grandparent)

			// Case 1: red uncle, push blackness down from the grandparent.
			if tree.colorOf(uncle) == Red {
				tree.setColor(parent, Black)
				tree.setColor(uncle, Black)
				tree.setColor(grandparent, Red)
				x = grandparent

				continue
			}

			// Case 2: inner child, rotate it outside.
			if x == tree.rightOf(parent) {
				x = parent
				tree.rotateLeft(x)
			}

			// Case 3: outer child.
			tree.setColor(tree.parentOf(x), Black)
			tree.setColor(tree.parentOf(tree.parentOf(x)), Red)
			tree.rotateRight(tree.parentOf(tree.parentOf(x)))
		} else {
			uncle := tree.leftOf(grandparent)

			if tree.colorOf(uncle) == Red {
				tree.setColor(parent, Black)
				tree.setColor(uncle, Black)
				tree.setColor(grandparent, Red)
				x = grandparent

				continue
			}

			if x == tree.leftOf(parent) {
				x = parent
				tree.rotateRight(x)
			}

			tree.setColor(tree.parentOf(x), Black)
			tree.setColor(tree.parentOf(tree.parentOf(x)), Red)
			tree.rotateLeft(tree.parentOf(tree.parentOf(x)))
		}
	}

	tree.storage.SetColor(tree.root, Black)
}

// replaceChild points the link of parent that referenced oldChild at
// newChild. A Null parent means oldChild was the root.
func (tree *Tree[K, V, I]) replaceChild(parent, oldChild, newChild I) {
	switch {
	case parent == Null[I]():
		tree.root = newChild
	case tree.storage.Left(parent) == oldChild:
		tree.storage.SetLeft(parent, newChild)
	default:
		doAssert(tree.storage.Right(parent) == oldChild)
		tree.storage.SetRight(parent, newChild)
	}
}

// rotateDirection performs a tree rotation in the specified direction.
// IsLeft=true performs left rotation, isLeft=false performs right rotation.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation:
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (tree *Tree[K, V, I]) rotateDirection(pivot I, isLeft bool) {
	null := Null[I]()
	if pivot == null {
		return
	}

	storage := tree.storage

	// Get the child in the opposite direction of rotation.
	var child I
	if isLeft {
		child = storage.Right(pivot)
	} else {
		child = storage.Left(pivot)
	}

	doAssert(child != null)

	// Move the inner subtree.
	var innerSubtree I
	if isLeft {
		innerSubtree = storage.Left(child)
		storage.SetRight(pivot, innerSubtree)
	} else {
		innerSubtree = storage.Right(child)
		storage.SetLeft(pivot, innerSubtree)
	}

	if innerSubtree != null {
		storage.SetParent(innerSubtree, pivot)
	}

	// Update parent links.
	parent := storage.Parent(pivot)
	storage.SetParent(child, parent)
	tree.replaceChild(parent, pivot, child)

	// Complete the rotation.
	if isLeft {
		storage.SetLeft(child, pivot)
	} else {
		storage.SetRight(child, pivot)
	}

	storage.SetParent(pivot, child)
	tree.stats.Rotations++
}

func (tree *Tree[K, V, I]) rotateLeft(nodeIdx I) {
	tree.rotateDirection(nodeIdx, true)
}

func (tree *Tree[K, V, I]) rotateRight(nodeIdx I) {
	tree.rotateDirection(nodeIdx, false)
}

// indexRange yields the indices [0, n).
func indexRange[I constraints.Unsigned](n int) iter.Seq[I] {
	return func(yield func(I) bool) {
		for pos := range n {
			if !yield(safeconv.MustIndex[I](pos)) {
				return
			}
		}
	}
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}
