package rbtree_test

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/fixedtree/pkg/persist"
	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

type snapshotConfig struct {
	name   string
	kind   pool.Kind
	layout rbtree.Layout
}

var snapshotConfigs = []snapshotConfig{
	{name: "freelist_field", kind: pool.FreeList, layout: rbtree.LayoutColorField},
	{name: "freelist_packed", kind: pool.FreeList, layout: rbtree.LayoutPackedColor},
	{name: "compact_field", kind: pool.Compact, layout: rbtree.LayoutColorField},
	{name: "compact_packed", kind: pool.Compact, layout: rbtree.LayoutPackedColor},
}

// churnedTree inserts and deletes random keys so the free list is scrambled.
func churnedTree(cfg snapshotConfig) *rbtree.Tree[int64, string, uint32] {
	rng := rand.New(rand.NewPCG(7, 11))
	tree := rbtree.NewOrdered[int64, string, uint32](300, rbtree.WithPool(cfg.kind), rbtree.WithLayout(cfg.layout))

	for range 1000 {
		key := rng.Int64N(400)
		if rng.IntN(3) == 0 {
			tree.Delete(key)

			continue
		}

		if !tree.Full() {
			tree.Put(key, "v")
		}
	}

	return tree
}

func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, cfg := range snapshotConfigs {
		t.Run(cfg.name, func(t *testing.T) {
			t.Parallel()

			tree := churnedTree(cfg)

			var buf bytes.Buffer
			require.NoError(t, tree.WriteSnapshot(&buf))

			restored, err := rbtree.ReadSnapshot[int64, string, uint32](&buf, cmp.Compare[int64])
			require.NoError(t, err)

			// The dump lists every live node with its index and links.
			assert.Equal(t, tree.Dump(), restored.Dump())
			assert.Equal(t, tree.Root(), restored.Root())

			// The next allocations land in the same slots.
			for key := int64(1000); !tree.Full(); key++ {
				want, _ := tree.Insert(key, "x")
				got, _ := restored.Insert(key, "x")
				require.Equal(t, want, got)
			}
		})
	}
}

func TestSnapshot_EmptyTree(t *testing.T) {
	t.Parallel()

	tree := rbtree.NewOrdered[int, int, uint16](8)

	var buf bytes.Buffer
	require.NoError(t, tree.WriteSnapshot(&buf))

	restored, err := rbtree.ReadSnapshot[int, int, uint16](&buf, cmp.Compare[int])
	require.NoError(t, err)
	assert.Equal(t, 0, restored.Len())
	assert.Equal(t, 8, restored.Cap())
}

func TestSnapshot_SetWithEmptyValues(t *testing.T) {
	t.Parallel()

	tree := rbtree.NewOrdered[string, struct{}, uint8](16, rbtree.WithPool(pool.Compact))
	for _, key := range []string{"m", "c", "x", "a", "e"} {
		tree.Insert(key, struct{}{})
	}

	var buf bytes.Buffer
	require.NoError(t, tree.WriteSnapshot(&buf))

	restored, err := rbtree.ReadSnapshot[string, struct{}, uint8](&buf, cmp.Compare[string])
	require.NoError(t, err)
	assert.Equal(t, tree.Dump(), restored.Dump())
}

func TestSnapshot_Incompatible(t *testing.T) {
	t.Parallel()

	tree := rbtree.NewOrdered[int, int, uint16](1000, rbtree.WithLayout(rbtree.LayoutPackedColor))
	tree.Insert(1, 1)

	var buf bytes.Buffer
	require.NoError(t, tree.WriteSnapshot(&buf))

	_, err := rbtree.ReadSnapshot[int, int, uint8](bytes.NewReader(buf.Bytes()), cmp.Compare[int])
	require.ErrorIs(t, err, rbtree.ErrSnapshotIncompatible)
}

func TestSnapshot_Corrupt(t *testing.T) {
	t.Parallel()

	tree := churnedTree(snapshotConfigs[0])

	var buf bytes.Buffer
	require.NoError(t, tree.WriteSnapshot(&buf))

	valid := buf.Bytes()

	read := func(data []byte) error {
		_, err := rbtree.ReadSnapshot[int64, string, uint32](bytes.NewReader(data), cmp.Compare[int64])

		return err
	}

	t.Run("magic", func(t *testing.T) {
		t.Parallel()

		data := append([]byte(nil), valid...)
		data[0] = 'X'
		require.ErrorIs(t, read(data), rbtree.ErrSnapshotFormat)
	})

	t.Run("version", func(t *testing.T) {
		t.Parallel()

		data := append([]byte(nil), valid...)
		data[4] = 9
		require.ErrorIs(t, read(data), rbtree.ErrSnapshotFormat)
	})

	t.Run("layout", func(t *testing.T) {
		t.Parallel()

		data := append([]byte(nil), valid...)
		data[5] = 7
		require.ErrorIs(t, read(data), rbtree.ErrSnapshotFormat)
	})

	t.Run("free_list_head_on_root", func(t *testing.T) {
		t.Parallel()

		// Header fields after the magic: version, layout, pool, capacity,
		// size, root, head.
		rest := valid[4:]
		fields := make([]uint64, 7)

		for idx := range fields {
			value, n := binary.Uvarint(rest)
			require.Positive(t, n)

			fields[idx] = value
			rest = rest[n:]
		}

		fields[6] = fields[5]

		data := append([]byte(nil), valid[:4]...)
		for _, field := range fields {
			data = binary.AppendUvarint(data, field)
		}

		data = append(data, rest...)

		err := read(data)
		require.ErrorIs(t, err, rbtree.ErrSnapshotFormat)
		require.ErrorIs(t, err, pool.ErrStateMismatch)
	})

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()

		for _, cut := range []int{2, 6, len(valid) / 2, len(valid) - 1} {
			require.Error(t, read(valid[:cut]), "cut at %d", cut)
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		require.Error(t, read(nil))
	})
}

func TestSnapshot_SwappedKeysFailValidation(t *testing.T) {
	t.Parallel()

	tree := rbtree.NewOrdered[int, int, uint16](8)
	for key := range 5 {
		tree.Insert(key, key)
	}

	// Swapping positions without payloads breaks the ordering on purpose.
	tree.SwapNodesExcludingKeyAndValue(tree.IndexOf(0), tree.IndexOf(4))

	var buf bytes.Buffer
	require.NoError(t, tree.WriteSnapshot(&buf))

	_, err := rbtree.ReadSnapshot[int, int, uint16](&buf, cmp.Compare[int])
	require.ErrorIs(t, err, rbtree.ErrSnapshotFormat)
	require.ErrorIs(t, err, rbtree.ErrInvariant)
}

func TestSnapshot_SaveLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tree.fxrb")
	tree := churnedTree(snapshotConfigs[3])

	require.NoError(t, tree.SaveSnapshot(path))

	loaded, err := rbtree.LoadSnapshot[int64, string, uint32](path, 0, cmp.Compare[int64])
	require.NoError(t, err)
	assert.Equal(t, tree.Dump(), loaded.Dump())

	info, err := os.Stat(path)
	require.NoError(t, err)

	_, err = rbtree.LoadSnapshot[int64, string, uint32](path, info.Size()-1, cmp.Compare[int64])
	require.ErrorIs(t, err, persist.ErrTooLarge)

	_, err = rbtree.LoadSnapshot[int64, string, uint32](filepath.Join(dir, "missing"), 0, cmp.Compare[int64])
	require.ErrorIs(t, err, os.ErrNotExist)
}
