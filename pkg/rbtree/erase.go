package rbtree

// EraseAt removes node i and returns the index of its in-order successor,
// or Null when i held the largest key.
//
// With a compacting pool another node may move into slot i; use
// EraseAtReposition to learn about it.
func (tree *Tree[K, V, I]) EraseAt(i I) I {
	successor, _ := tree.EraseAtReposition(i)

	return successor
}

// EraseAtReposition removes node i and returns its successor together with
// the slot move the pool performed, if any. The returned successor already
// accounts for the move.
func (tree *Tree[K, V, I]) EraseAtReposition(i I) (I, Reposition[I]) {
	doAssert(tree.ContainsAt(i))

	null := Null[I]()

	tree.stats.Erases++

	if tree.storage.Len() == 1 {
		tree.Clear()

		return null, noReposition[I]()
	}

	storage := tree.storage
	successor := tree.Successor(i)

	// Strictly internal: trade places with the successor, which has no left
	// child, so i ends up with at most one child.
	if storage.Left(i) != null && storage.Right(i) != null {
		tree.swapPositions(i, successor)
		tree.stats.Swaps++
	}

	replacement := storage.Left(i)
	if replacement == null {
		replacement = storage.Right(i)
	}

	parent := storage.Parent(i)

	if replacement != null {
		storage.SetParent(replacement, parent)
		tree.replaceChild(parent, i, replacement)
		tree.unlink(i)

		if storage.Color(i) == Black {
			tree.fixAfterDeletion(replacement)
		}
	} else {
		// Leaf: use it as the phantom replacement during the fix-up, then
		// detach it.
		doAssert(parent != null)

		if storage.Color(i) == Black {
			tree.fixAfterDeletion(i)
		}

		tree.replaceChild(storage.Parent(i), i, null)
		tree.unlink(i)
	}

	from := storage.DeleteAt(i)
	if from == i {
		return successor, noReposition[I]()
	}

	tree.fixupRepositioned(from, i)
	tree.stats.Repositions++

	rep := Reposition[I]{From: from, To: i}

	return rep.Apply(successor), rep
}

// EraseRange removes the nodes in the in-order range [from, to) and returns
// the index of to after the removals. A Null to erases through the end.
func (tree *Tree[K, V, I]) EraseRange(from, to I) I {
	for from != to {
		var rep Reposition[I]

		from, rep = tree.EraseAtReposition(from)
		to = rep.Apply(to)
	}

	return to
}

// Delete removes key and reports whether it was present.
func (tree *Tree[K, V, I]) Delete(key K) bool {
	nodeIdx := tree.IndexOf(key)
	if nodeIdx == Null[I]() {
		return false
	}

	tree.EraseAt(nodeIdx)

	return true
}

func (tree *Tree[K, V, I]) unlink(nodeIdx I) {
	null := Null[I]()

	tree.storage.SetParent(nodeIdx, null)
	tree.storage.SetLeft(nodeIdx, null)
	tree.storage.SetRight(nodeIdx, null)
}

// fixupRepositioned repoints the neighbors of a node that the pool moved
// from slot from to slot to. The node's own links are still valid.
func (tree *Tree[K, V, I]) fixupRepositioned(from, to I) {
	null := Null[I]()
	storage := tree.storage

	parent := storage.Parent(to)
	if parent == null {
		doAssert(tree.root == from)
		tree.root = to
	} else {
		tree.replaceChild(parent, from, to)
	}

	tree.adopt(storage.Left(to), to)
	tree.adopt(storage.Right(to), to)
}

// fixAfterDeletion restores the red-black properties after a black node was
// removed above x.
//
//nolint:gocognit // mirrored four-case fix-up.
func (tree *Tree[K, V, I]) fixAfterDeletion(x I) {
	for x != tree.root && tree.colorOf(x) == Black {
		if x == tree.leftOf(tree.parentOf(x)) {
			sib := tree.rightOf(tree.parentOf(x))

			// Case 1: red sibling, rotate it above the parent.
			if tree.colorOf(sib) == Red {
				tree.setColor(sib, Black)
				tree.setColor(tree.parentOf(x), Red)
				tree.rotateLeft(tree.parentOf(x))
				sib = tree.rightOf(tree.parentOf(x))
			}

			// Case 2: both nephews black, move the deficit up.
			if tree.colorOf(tree.leftOf(sib)) == Black && tree.colorOf(tree.rightOf(sib)) == Black {
				tree.setColor(sib, Red)
				x = tree.parentOf(x)

				continue
			}

			// Case 3: only the inner nephew is red.
			if tree.colorOf(tree.rightOf(sib)) == Black {
				tree.setColor(tree.leftOf(sib), Black)
				tree.setColor(sib, Red)
				tree.rotateRight(sib)
				sib = tree.rightOf(tree.parentOf(x))
			}

			// Case 4: outer nephew red.
			tree.setColor(sib, tree.colorOf(tree.parentOf(x)))
			tree.setColor(tree.parentOf(x), Black)
			tree.setColor(tree.rightOf(sib), Black)
			tree.rotateLeft(tree.parentOf(x))
			x = tree.root
		} else {
			sib := tree.leftOf(tree.parentOf(x))

			if tree.colorOf(sib) == Red {
				tree.setColor(sib, Black)
				tree.setColor(tree.parentOf(x), Red)
				tree.rotateRight(tree.parentOf(x))
				sib = tree.leftOf(tree.parentOf(x))
			}

			if tree.colorOf(tree.rightOf(sib)) == Black && tree.colorOf(tree.leftOf(sib)) == Black {
				tree.setColor(sib, Red)
				x = tree.parentOf(x)

				continue
			}

			if tree.colorOf(tree.leftOf(sib)) == Black {
				tree.setColor(tree.rightOf(sib), Black)
				tree.setColor(sib, Red)
				tree.rotateLeft(sib)
				sib = tree.leftOf(tree.parentOf(x))
			}

			tree.setColor(sib, tree.colorOf(tree.parentOf(x)))
			tree.setColor(tree.parentOf(x), Black)
			tree.setColor(tree.leftOf(sib), Black)
			tree.rotateRight(tree.parentOf(x))
			x = tree.root
		}
	}

	tree.setColor(x, Black)
}
