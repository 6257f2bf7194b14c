package rbtree

// Bound queries derive their answer from a single probe: on a miss the
// probe parent is the closest node on one side, and its in-order neighbor
// is the closest on the other.

// Ceiling returns the node with the smallest key >= key, or Null.
func (tree *Tree[K, V, I]) Ceiling(key K) I {
	probe := tree.Probe(key)
	if probe.Found() {
		return probe.Index
	}

	return tree.aboveMiss(probe)
}

// Higher returns the node with the smallest key > key, or Null.
func (tree *Tree[K, V, I]) Higher(key K) I {
	probe := tree.Probe(key)
	if probe.Found() {
		return tree.Successor(probe.Index)
	}

	return tree.aboveMiss(probe)
}

// Floor returns the node with the largest key <= key, or Null.
func (tree *Tree[K, V, I]) Floor(key K) I {
	probe := tree.Probe(key)
	if probe.Found() {
		return probe.Index
	}

	return tree.belowMiss(probe)
}

// Lower returns the node with the largest key < key, or Null.
func (tree *Tree[K, V, I]) Lower(key K) I {
	probe := tree.Probe(key)
	if probe.Found() {
		return tree.Predecessor(probe.Index)
	}

	return tree.belowMiss(probe)
}

func (tree *Tree[K, V, I]) aboveMiss(probe Probe[I]) I {
	if probe.Parent == Null[I]() || probe.Left {
		return probe.Parent
	}

	return tree.Successor(probe.Parent)
}

func (tree *Tree[K, V, I]) belowMiss(probe Probe[I]) I {
	if probe.Parent == Null[I]() || !probe.Left {
		return probe.Parent
	}

	return tree.Predecessor(probe.Parent)
}
