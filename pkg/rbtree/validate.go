package rbtree

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

// ErrInvariant is returned when a tree or a dump violates a red-black or
// binary-search-tree invariant.
var ErrInvariant = errors.New("red-black invariant violated")

// shape is the read-only structural view shared by live trees and dumps.
type shape[K any, I constraints.Unsigned] interface {
	rootIndex() I
	size() int
	contains(i I) bool
	parent(i I) I
	left(i I) I
	right(i I) I
	color(i I) Color
	key(i I) K
}

// Validate checks every invariant of the tree: a black root without a
// parent, symmetric parent and child links, no red node with a red child,
// equal black height on every path, strictly increasing in-order keys and
// a node count matching Len.
func (tree *Tree[K, V, I]) Validate() error {
	return validateShape[K, I](treeShape[K, V, I]{tree}, tree.compare)
}

//nolint:gocognit,cyclop // single recursive walk checking all invariants.
func validateShape[K any, I constraints.Unsigned](s shape[K, I], compare func(a, b K) int) error {
	null := Null[I]()
	root := s.rootIndex()

	if root == null {
		if s.size() != 0 {
			return fmt.Errorf("%w: no root but %d nodes", ErrInvariant, s.size())
		}

		return nil
	}

	switch {
	case !s.contains(root):
		return fmt.Errorf("%w: root %d is not allocated", ErrInvariant, root)
	case s.parent(root) != null:
		return fmt.Errorf("%w: root %d has parent %d", ErrInvariant, root, s.parent(root))
	case s.color(root) != Black:
		return fmt.Errorf("%w: root %d is red", ErrInvariant, root)
	}

	var (
		visited  int
		prev     K
		havePrev bool
		walk     func(nodeIdx I) (int, error)
	)

	walk = func(nodeIdx I) (int, error) {
		if nodeIdx == null {
			return 1, nil
		}

		visited++
		if visited > s.size() {
			return 0, fmt.Errorf("%w: more reachable nodes than the %d stored", ErrInvariant, s.size())
		}

		left, right := s.left(nodeIdx), s.right(nodeIdx)

		for _, child := range [2]I{left, right} {
			if child == null {
				continue
			}

			if !s.contains(child) {
				return 0, fmt.Errorf("%w: child %d of %d is not allocated", ErrInvariant, child, nodeIdx)
			}

			if s.parent(child) != nodeIdx {
				return 0, fmt.Errorf("%w: child %d of %d points to parent %d",
					ErrInvariant, child, nodeIdx, s.parent(child))
			}

			if s.color(nodeIdx) == Red && s.color(child) == Red {
				return 0, fmt.Errorf("%w: red node %d has red child %d", ErrInvariant, nodeIdx, child)
			}
		}

		leftHeight, err := walk(left)
		if err != nil {
			return 0, err
		}

		key := s.key(nodeIdx)
		if havePrev && compare(prev, key) >= 0 {
			return 0, fmt.Errorf("%w: key of node %d is out of order", ErrInvariant, nodeIdx)
		}

		prev, havePrev = key, true

		rightHeight, err := walk(right)
		if err != nil {
			return 0, err
		}

		if leftHeight != rightHeight {
			return 0, fmt.Errorf("%w: black height %d on the left of %d, %d on the right",
				ErrInvariant, leftHeight, nodeIdx, rightHeight)
		}

		if s.color(nodeIdx) == Black {
			leftHeight++
		}

		return leftHeight, nil
	}

	_, err := walk(root)
	if err != nil {
		return err
	}

	if visited != s.size() {
		return fmt.Errorf("%w: %d reachable nodes, %d stored", ErrInvariant, visited, s.size())
	}

	return nil
}

type treeShape[K, V any, I constraints.Unsigned] struct {
	tree *Tree[K, V, I]
}

func (s treeShape[K, V, I]) rootIndex() I { return s.tree.root }
func (s treeShape[K, V, I]) size() int { return s.tree.storage.Len() }
func (s treeShape[K, V, I]) contains(i I) bool { return s.tree.ContainsAt(i) }
func (s treeShape[K, V, I]) parent(i I) I { return s.tree.storage.Parent(i) }
func (s treeShape[K, V, I]) left(i I) I { return s.tree.storage.Left(i) }
func (s treeShape[K, V, I]) right(i I) I { return s.tree.storage.Right(i) }
func (s treeShape[K, V, I]) color(i I) Color { return s.tree.storage.Color(i) }
func (s treeShape[K, V, I]) key(i I) K { return s.tree.storage.Key(i) }
