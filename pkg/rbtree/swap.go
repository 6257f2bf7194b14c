package rbtree

// SwapNodesExcludingKeyAndValue exchanges the tree positions of nodes i and
// j: parents, children and colors trade places while each node keeps its
// own key and value. The result is usually not ordered; callers restore
// order themselves (erase does it by removing one of the two right away).
func (tree *Tree[K, V, I]) SwapNodesExcludingKeyAndValue(i, j I) {
	doAssert(tree.ContainsAt(i) && tree.ContainsAt(j))

	if i == j {
		return
	}

	tree.swapPositions(i, j)
	tree.stats.Swaps++
}

// SwapNodesIncludingKeyAndValue exchanges the positions and the payloads of
// i and j. Ordering is preserved; only the indices of the two entries are
// relabeled.
func (tree *Tree[K, V, I]) SwapNodesIncludingKeyAndValue(i, j I) {
	doAssert(tree.ContainsAt(i) && tree.ContainsAt(j))

	if i == j {
		return
	}

	tree.swapPositions(i, j)
	tree.storage.SwapPayload(i, j)
	tree.stats.Swaps++
}

//nolint:gocognit // three topologies with symmetric pointer fix-ups.
func (tree *Tree[K, V, I]) swapPositions(i, j I) {
	storage := tree.storage

	if storage.Parent(i) == j {
		i, j = j, i
	}

	null := Null[I]()
	parentI, leftI, rightI, colorI := storage.Parent(i), storage.Left(i), storage.Right(i), storage.Color(i)
	parentJ, leftJ, rightJ, colorJ := storage.Parent(j), storage.Left(j), storage.Right(j), storage.Color(j)

	// Record the sides before anything moves; siblings share a parent.
	iIsLeft := parentI != null && storage.Left(parentI) == i
	jIsLeft := parentJ != null && storage.Left(parentJ) == j

	if parentJ == i {
		// j is a direct child of i: j takes i's place and adopts i.
		tree.attachChild(parentI, iIsLeft, j)
		storage.SetParent(j, parentI)

		if leftI == j {
			storage.SetLeft(j, i)
			storage.SetRight(j, rightI)
			tree.adopt(rightI, j)
		} else {
			storage.SetRight(j, i)
			storage.SetLeft(j, leftI)
			tree.adopt(leftI, j)
		}

		storage.SetParent(i, j)
	} else {
		tree.attachChild(parentI, iIsLeft, j)
		tree.attachChild(parentJ, jIsLeft, i)
		storage.SetParent(i, parentJ)
		storage.SetParent(j, parentI)
		storage.SetLeft(j, leftI)
		storage.SetRight(j, rightI)
		tree.adopt(leftI, j)
		tree.adopt(rightI, j)
	}

	storage.SetLeft(i, leftJ)
	storage.SetRight(i, rightJ)
	tree.adopt(leftJ, i)
	tree.adopt(rightJ, i)

	storage.SetColor(i, colorJ)
	storage.SetColor(j, colorI)

	switch tree.root {
	case i:
		tree.root = j
	case j:
		tree.root = i
	}
}

// attachChild links child under parent on the given side. A Null parent is
// left to the root fix-up of the caller.
func (tree *Tree[K, V, I]) attachChild(parent I, left bool, child I) {
	switch {
	case parent == Null[I]():
	case left:
		tree.storage.SetLeft(parent, child)
	default:
		tree.storage.SetRight(parent, child)
	}
}

func (tree *Tree[K, V, I]) adopt(child, parent I) {
	if child != Null[I]() {
		tree.storage.SetParent(child, parent)
	}
}
