package rbtree_test

import (
	"cmp"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/fixedtree/pkg/persist"
	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

func dumpFixture(t *testing.T) *rbtree.Dump[int, string] {
	t.Helper()

	tree := rbtree.NewOrdered[int, string, uint16](16, rbtree.WithPool(pool.FreeList))
	for _, key := range []int{8, 5, 15, 12, 19, 9, 13, 23} {
		tree.Insert(key, "v")
	}

	tree.Delete(9)

	return tree.Dump()
}

func TestDump_Header(t *testing.T) {
	t.Parallel()

	dump := dumpFixture(t)

	assert.Equal(t, "field", dump.Layout)
	assert.Equal(t, "freelist", dump.Pool)
	assert.Equal(t, 16, dump.Capacity)
	assert.Equal(t, 7, dump.Size)
	assert.Len(t, dump.Nodes, 7)
	assert.Equal(t, []int{5, 8, 12, 13, 15, 19, 23}, dump.Keys())
	require.NoError(t, dump.Validate(cmp.Compare[int]))
}

func TestDump_EmptyTree(t *testing.T) {
	t.Parallel()

	dump := rbtree.NewOrdered[int, int, uint8](4).Dump()

	assert.Equal(t, rbtree.NullLink, dump.Root)
	assert.Equal(t, 0, dump.Height)
	assert.Empty(t, dump.Keys())
	require.NoError(t, dump.Validate(cmp.Compare[int]))
}

func TestDump_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dump := dumpFixture(t)

	require.NoError(t, persist.SaveState(dir, "tree", persist.NewJSONCodec(), dump))

	var loaded rbtree.Dump[int, string]
	require.NoError(t, persist.LoadState(dir, "tree", persist.NewJSONCodec(), &loaded))

	assert.Equal(t, *dump, loaded)
	require.NoError(t, loaded.Validate(cmp.Compare[int]))

	raw, err := json.Marshal(dump.Nodes[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"color":`)
}

func TestDump_ValidateDetectsCorruption(t *testing.T) {
	t.Parallel()

	byKey := func(d *rbtree.Dump[int, string], key int) *rbtree.DumpNode[int, string] {
		for pos := range d.Nodes {
			if d.Nodes[pos].Key == key {
				return &d.Nodes[pos]
			}
		}

		t.Fatalf("key %d not in dump", key)

		return nil
	}

	tests := []struct {
		name    string
		corrupt func(d *rbtree.Dump[int, string])
	}{
		{name: "unknown layout", corrupt: func(d *rbtree.Dump[int, string]) { d.Layout = "diagonal" }},
		{name: "unknown pool", corrupt: func(d *rbtree.Dump[int, string]) { d.Pool = "heap" }},
		{name: "size mismatch", corrupt: func(d *rbtree.Dump[int, string]) { d.Size++ }},
		{name: "index outside capacity", corrupt: func(d *rbtree.Dump[int, string]) { d.Nodes[0].Index = 99 }},
		{name: "bad color", corrupt: func(d *rbtree.Dump[int, string]) { d.Nodes[0].Color = "green" }},
		{name: "duplicate index", corrupt: func(d *rbtree.Dump[int, string]) { d.Nodes[1].Index = d.Nodes[0].Index }},
		{name: "red root", corrupt: func(d *rbtree.Dump[int, string]) { byKey(d, 8).Color = "red" }},
		{name: "out of order", corrupt: func(d *rbtree.Dump[int, string]) { byKey(d, 5).Key = 100 }},
		{name: "wrong height", corrupt: func(d *rbtree.Dump[int, string]) { d.Height += 2 }},
		{name: "dangling child", corrupt: func(d *rbtree.Dump[int, string]) { byKey(d, 5).Left = 14 }},
		{name: "black height", corrupt: func(d *rbtree.Dump[int, string]) {
			for pos := range d.Nodes {
				d.Nodes[pos].Color = "black"
			}
		}},
		{name: "broken parent", corrupt: func(d *rbtree.Dump[int, string]) {
			byKey(d, 23).Parent = byKey(d, 5).Index
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dump := dumpFixture(t)
			require.NoError(t, dump.Validate(cmp.Compare[int]))

			tc.corrupt(dump)
			require.ErrorIs(t, dump.Validate(cmp.Compare[int]), rbtree.ErrInvariant)
		})
	}
}
