package fixedmap_test

import (
	"bytes"
	"cmp"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
	"github.com/Sumatoshi-tech/fixedtree/pkg/fixedmap"
	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

func TestMap_PutGet(t *testing.T) {
	t.Parallel()

	m := fixedmap.NewOrdered[string, int, uint8](4)

	require.NoError(t, m.Put("b", 2))
	require.NoError(t, m.Put("a", 1))
	require.NoError(t, m.Put("b", 20))

	value, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, 20, value)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 4, m.Cap())

	_, ok = m.Get("z")
	assert.False(t, ok)
}

func TestMap_PutWhenFull(t *testing.T) {
	t.Parallel()

	m := fixedmap.NewOrdered[int, int, uint16](2)
	require.NoError(t, m.Put(1, 1))
	require.NoError(t, m.Put(2, 2))
	require.True(t, m.Full())

	// Overwriting an existing key never needs room.
	require.NoError(t, m.Put(2, 22))

	err := m.Put(3, 3)
	require.ErrorIs(t, err, check.ErrCapacityExceeded)
	assert.Contains(t, err.Error(), "fixedmap.Map")
	assert.False(t, m.Contains(3))
	assert.Equal(t, 2, m.Len())

	inserted, err := m.TryPut(4, 4)
	require.ErrorIs(t, err, check.ErrCapacityExceeded)
	assert.False(t, inserted)
}

func TestMap_TryPut(t *testing.T) {
	t.Parallel()

	m := fixedmap.NewOrdered[int, string, uint16](8)

	inserted, err := m.TryPut(1, "first")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = m.TryPut(1, "second")
	require.NoError(t, err)
	assert.False(t, inserted)

	value, _ := m.Get(1)
	assert.Equal(t, "first", value)
}

func TestMap_At(t *testing.T) {
	t.Parallel()

	m := fixedmap.NewOrdered[int, string, uint16](8)
	require.NoError(t, m.Put(7, "seven"))

	value, err := m.At(7)
	require.NoError(t, err)
	assert.Equal(t, "seven", value)

	_, err = m.At(8)
	require.ErrorIs(t, err, check.ErrOutOfRange)
	assert.Contains(t, err.Error(), "key 8")
}

func TestMap_Policies(t *testing.T) {
	t.Parallel()

	t.Run("panic", func(t *testing.T) {
		t.Parallel()

		m := fixedmap.NewOrdered[int, int, uint8](1, fixedmap.WithPolicy(check.Panic{}))
		require.NoError(t, m.Put(1, 1))
		assert.Panics(t, func() { _ = m.Put(2, 2) })
	})

	t.Run("log", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		logger := slog.New(slog.NewTextHandler(&buf, nil))
		m := fixedmap.NewOrdered[int, int, uint8](1, fixedmap.WithPolicy(check.Log{Logger: logger}))
		require.NoError(t, m.Put(1, 1))

		err := m.Put(2, 2)
		require.ErrorIs(t, err, check.ErrCapacityExceeded)
		assert.Contains(t, buf.String(), "container=fixedmap.Map")
	})

	t.Run("abort", func(t *testing.T) {
		t.Parallel()

		code := 0
		policy := check.Abort{Logger: slog.New(slog.DiscardHandler), Exit: func(c int) { code = c }}
		m := fixedmap.NewOrdered[int, int, uint8](1, fixedmap.WithPolicy(policy))
		require.NoError(t, m.Put(1, 1))

		_, err := m.At(5)
		require.Error(t, err)
		assert.Equal(t, 134, code)
	})

	t.Run("nil keeps default", func(t *testing.T) {
		t.Parallel()

		m := fixedmap.NewOrdered[int, int, uint8](1, fixedmap.WithPolicy(nil))
		assert.Equal(t, check.Default(), m.Policy())
	})
}

func TestMap_Bounds(t *testing.T) {
	t.Parallel()

	m := fixedmap.NewOrdered[int, string, uint16](16, fixedmap.WithPool(pool.Compact))
	for _, key := range []int{10, 20, 30, 40} {
		require.NoError(t, m.Put(key, strings.Repeat("x", key/10)))
	}

	tests := []struct {
		name  string
		query func(int) (fixedmap.Entry[int, string], bool)
		key   int
		want  int
		found bool
	}{
		{"floor exact", m.Floor, 20, 20, true},
		{"floor between", m.Floor, 25, 20, true},
		{"floor below", m.Floor, 5, 0, false},
		{"ceiling between", m.Ceiling, 25, 30, true},
		{"ceiling above", m.Ceiling, 45, 0, false},
		{"lower exact", m.Lower, 20, 10, true},
		{"lower min", m.Lower, 10, 0, false},
		{"higher exact", m.Higher, 30, 40, true},
		{"higher max", m.Higher, 40, 0, false},
	}

	for _, tc := range tests {
		entry, found := tc.query(tc.key)
		assert.Equal(t, tc.found, found, tc.name)
		assert.Equal(t, tc.want, entry.Key, tc.name)
	}

	low, ok := m.Min()
	require.True(t, ok)
	assert.Equal(t, fixedmap.Entry[int, string]{Key: 10, Value: "x"}, low)

	high, ok := m.Max()
	require.True(t, ok)
	assert.Equal(t, 40, high.Key)
}

func TestMap_Iteration(t *testing.T) {
	t.Parallel()

	m := fixedmap.NewOrdered[int, int, uint16](32, fixedmap.WithLayout(rbtree.LayoutPackedColor))
	for _, key := range []int{5, 3, 9, 1, 7} {
		require.NoError(t, m.Put(key, key*key))
	}

	assert.Equal(t, []int{1, 3, 5, 7, 9}, slices.Collect(m.Keys()))
	assert.Equal(t, []int{1, 9, 25, 49, 81}, slices.Collect(m.Values()))

	var backward []int
	for key := range m.Backward() {
		backward = append(backward, key)
	}

	assert.Equal(t, []int{9, 7, 5, 3, 1}, backward)

	for key := range m.Keys() {
		if key == 3 {
			break
		}
	}
}

func TestMap_Cursors(t *testing.T) {
	t.Parallel()

	m := fixedmap.NewOrdered[int, int, uint16](32, fixedmap.WithPool(pool.Compact))
	for key := range 10 {
		require.NoError(t, m.Put(key, key))
	}

	cursor := m.Find(4)
	require.False(t, cursor.Limit())

	cursor = m.EraseAt(cursor)
	assert.Equal(t, 5, cursor.Key())

	cursor = m.EraseRange(cursor, m.Find(8))
	assert.Equal(t, 8, cursor.Key())
	assert.Equal(t, []int{0, 1, 2, 3, 8, 9}, slices.Collect(m.Keys()))

	cursor = m.EraseRange(m.Find(8), m.End())
	assert.True(t, cursor.Limit())
	assert.Equal(t, []int{0, 1, 2, 3}, slices.Collect(m.Keys()))

	assert.True(t, m.Find(42).Limit())
	assert.Equal(t, 0, m.Begin().Key())
	require.NoError(t, m.Tree().Validate())
}

func TestMap_DeleteRange(t *testing.T) {
	t.Parallel()

	m := fixedmap.NewOrdered[int, int, uint16](64)
	for key := range 20 {
		require.NoError(t, m.Put(key*2, key))
	}

	assert.Equal(t, 0, m.DeleteRange(10, 10))
	assert.Equal(t, 0, m.DeleteRange(20, 10))
	assert.Equal(t, 5, m.DeleteRange(9, 19))
	assert.False(t, m.Contains(10))
	assert.True(t, m.Contains(20))
	assert.Equal(t, 3, m.DeleteRange(33, 100))
	assert.Equal(t, 12, m.Len())
}

func TestMap_RefAndDelete(t *testing.T) {
	t.Parallel()

	m := fixedmap.NewOrdered[string, []string, uint16](4)
	require.NoError(t, m.Put("k", nil))

	ref := m.Ref("k")
	require.NotNil(t, ref)

	*ref = append(*ref, "appended")

	value, _ := m.Get("k")
	assert.Equal(t, []string{"appended"}, value)
	assert.Nil(t, m.Ref("missing"))

	assert.True(t, m.Delete("k"))
	assert.False(t, m.Delete("k"))

	require.NoError(t, m.Put("x", nil))
	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestMap_CustomCompare(t *testing.T) {
	t.Parallel()

	reverse := func(a, b int) int { return cmp.Compare(b, a) }
	m := fixedmap.New[int, bool, uint8](8, reverse)

	for key := range 5 {
		require.NoError(t, m.Put(key, true))
	}

	assert.Equal(t, []int{4, 3, 2, 1, 0}, slices.Collect(m.Keys()))
}

func TestMap_Snapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "map.fxrb")
	m := fixedmap.NewOrdered[string, int, uint16](16, fixedmap.WithLayout(rbtree.LayoutPackedColor))

	for idx, key := range []string{"delta", "alpha", "charlie", "bravo"} {
		require.NoError(t, m.Put(key, idx))
	}

	require.NoError(t, m.SaveSnapshot(path))

	loaded, err := fixedmap.LoadMap[string, int, uint16](path, 0, cmp.Compare[string],
		fixedmap.WithPolicy(check.Panic{}))
	require.NoError(t, err)

	assert.Equal(t, slices.Collect(m.Keys()), slices.Collect(loaded.Keys()))
	assert.Equal(t, rbtree.LayoutPackedColor, loaded.Tree().Storage().Layout())
	assert.Equal(t, check.Panic{}, loaded.Policy())

	_, err = fixedmap.LoadMap[string, int, uint16](filepath.Join(t.TempDir(), "none"), 0, cmp.Compare[string])
	require.Error(t, err)
}

func TestFromTree(t *testing.T) {
	t.Parallel()

	tree := rbtree.NewOrdered[int, int, uint8](4)
	tree.Insert(1, 10)

	m := fixedmap.FromTree(tree, nil)
	value, err := m.At(1)
	require.NoError(t, err)
	assert.Equal(t, 10, value)
	assert.Equal(t, check.Default(), m.Policy())
}
