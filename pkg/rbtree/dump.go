package rbtree

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
	"github.com/Sumatoshi-tech/fixedtree/pkg/safeconv"
)

// NullLink is the link value used in dumps for an absent neighbor.
const NullLink = -1

// DumpNode is the structural record of one node in a Dump.
type DumpNode[K, V any] struct {
	Index  int    `json:"index"`
	Key    K      `json:"key"`
	Value  V      `json:"value"`
	Parent int    `json:"parent"`
	Left   int    `json:"left"`
	Right  int    `json:"right"`
	Color  string `json:"color"`
}

// Dump is a self-contained, serializable picture of a tree: every live node
// in slot order with its links. Indices are ints with NullLink for Null.
type Dump[K, V any] struct {
	Layout   string           `json:"layout"`
	Pool     string           `json:"pool"`
	Capacity int              `json:"capacity"`
	Size     int              `json:"size"`
	Root     int              `json:"root"`
	Height   int              `json:"height"`
	Nodes    []DumpNode[K, V] `json:"nodes"`
}

// Dump captures the current structure of the tree.
func (tree *Tree[K, V, I]) Dump() *Dump[K, V] {
	dump := &Dump[K, V]{
		Layout:   tree.storage.Layout().String(),
		Pool:     tree.storage.PoolKind().String(),
		Capacity: tree.Cap(),
		Size:     tree.Len(),
		Root:     dumpLink(tree.root),
		Height:   tree.Height(),
		Nodes:    make([]DumpNode[K, V], 0, tree.Len()),
	}

	for nodeIdx := range indexRange[I](tree.Cap()) {
		if !tree.storage.Contains(nodeIdx) {
			continue
		}

		dump.Nodes = append(dump.Nodes, DumpNode[K, V]{
			Index:  safeconv.IndexToInt(nodeIdx),
			Key:    tree.storage.Key(nodeIdx),
			Value:  tree.storage.Value(nodeIdx),
			Parent: dumpLink(tree.storage.Parent(nodeIdx)),
			Left:   dumpLink(tree.storage.Left(nodeIdx)),
			Right:  dumpLink(tree.storage.Right(nodeIdx)),
			Color:  tree.storage.Color(nodeIdx).String(),
		})
	}

	return dump
}

// Validate checks the dump against the same invariants as Tree.Validate,
// plus consistency of its header fields.
func (d *Dump[K, V]) Validate(compare func(a, b K) int) error {
	_, err := ParseLayout(d.Layout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvariant, err)
	}

	_, err = pool.ParseKind(d.Pool)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvariant, err)
	}

	if d.Size != len(d.Nodes) || d.Size > d.Capacity {
		return fmt.Errorf("%w: size %d with %d nodes and capacity %d", ErrInvariant, d.Size, len(d.Nodes), d.Capacity)
	}

	view := dumpShape[K, V]{dump: d, byIndex: make(map[uint64]*DumpNode[K, V], len(d.Nodes))}

	for pos := range d.Nodes {
		nd := &d.Nodes[pos]

		if nd.Index < 0 || nd.Index >= d.Capacity {
			return fmt.Errorf("%w: node index %d outside capacity %d", ErrInvariant, nd.Index, d.Capacity)
		}

		if nd.Color != Red.String() && nd.Color != Black.String() {
			return fmt.Errorf("%w: node %d has color %q", ErrInvariant, nd.Index, nd.Color)
		}

		if _, dup := view.byIndex[uint64(nd.Index)]; dup {
			return fmt.Errorf("%w: duplicate node index %d", ErrInvariant, nd.Index)
		}

		view.byIndex[uint64(nd.Index)] = nd
	}

	err = validateShape[K, uint64](view, compare)
	if err != nil {
		return err
	}

	if d.Root != NullLink {
		height := max(dumpHeight(view, view.rootIndex())-1, 0)
		if height != d.Height {
			return fmt.Errorf("%w: recorded height %d, actual %d", ErrInvariant, d.Height, height)
		}
	}

	return nil
}

// Keys returns the keys of the dump in ascending order.
func (d *Dump[K, V]) Keys() []K {
	view := dumpShape[K, V]{dump: d, byIndex: make(map[uint64]*DumpNode[K, V], len(d.Nodes))}
	for pos := range d.Nodes {
		view.byIndex[uint64(max(d.Nodes[pos].Index, 0))] = &d.Nodes[pos]
	}

	keys := make([]K, 0, len(d.Nodes))

	var walk func(nodeIdx uint64, depth int)

	// Depth and count bounds keep malformed dumps from looping.
	walk = func(nodeIdx uint64, depth int) {
		if !view.contains(nodeIdx) || depth > len(d.Nodes) || len(keys) == len(d.Nodes) {
			return
		}

		walk(view.left(nodeIdx), depth+1)
		keys = append(keys, view.key(nodeIdx))
		walk(view.right(nodeIdx), depth+1)
	}

	walk(view.rootIndex(), 0)

	return keys
}

func dumpHeight[K, V any](view dumpShape[K, V], nodeIdx uint64) int {
	if !view.contains(nodeIdx) {
		return 0
	}

	return 1 + max(dumpHeight(view, view.left(nodeIdx)), dumpHeight(view, view.right(nodeIdx)))
}

func dumpLink[I constraints.Unsigned](i I) int {
	if i == Null[I]() {
		return NullLink
	}

	return safeconv.IndexToInt(i)
}

func loadLink(link int) uint64 {
	if link < 0 {
		return Null[uint64]()
	}

	return uint64(link)
}

type dumpShape[K, V any] struct {
	dump    *Dump[K, V]
	byIndex map[uint64]*DumpNode[K, V]
}

func (s dumpShape[K, V]) rootIndex() uint64 { return loadLink(s.dump.Root) }
func (s dumpShape[K, V]) size() int { return s.dump.Size }

func (s dumpShape[K, V]) contains(i uint64) bool {
	_, ok := s.byIndex[i]

	return ok
}

func (s dumpShape[K, V]) parent(i uint64) uint64 { return loadLink(s.byIndex[i].Parent) }
func (s dumpShape[K, V]) left(i uint64) uint64 { return loadLink(s.byIndex[i].Left) }
func (s dumpShape[K, V]) right(i uint64) uint64 { return loadLink(s.byIndex[i].Right) }
func (s dumpShape[K, V]) color(i uint64) Color { return Color(s.byIndex[i].Color == Black.String()) }
func (s dumpShape[K, V]) key(i uint64) K { return s.byIndex[i].Key }
