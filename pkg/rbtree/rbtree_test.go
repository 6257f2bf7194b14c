package rbtree //nolint:testpackage // tests inspect root, storage links and colors directly.

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
)

type testConfig struct {
	name   string
	kind   pool.Kind
	layout Layout
}

var testConfigs = []testConfig{
	{name: "freelist_field", kind: pool.FreeList, layout: LayoutColorField},
	{name: "freelist_packed", kind: pool.FreeList, layout: LayoutPackedColor},
	{name: "compact_field", kind: pool.Compact, layout: LayoutColorField},
	{name: "compact_packed", kind: pool.Compact, layout: LayoutPackedColor},
}

type intTree = Tree[int, int, uint16]

func newIntTree(cfg testConfig, capacity int) *intTree {
	return NewOrdered[int, int, uint16](capacity, WithPool(cfg.kind), WithLayout(cfg.layout))
}

// Create a tree storing a set of integers.
func testNewIntSet() *intTree {
	return NewOrdered[int, int, uint16](64)
}

func testAssert(tb testing.TB, condition bool, message string) {
	tb.Helper()
	assert.True(tb, condition, message)
}

func boolInsert(tree *intTree, item int) bool {
	_, status := tree.Insert(item, item)

	return status
}

func mustValidate(tb testing.TB, tree *intTree) {
	tb.Helper()
	require.NoError(tb, tree.Validate())
}

func keysOf(tree *intTree) []int {
	keys := make([]int, 0, tree.Len())
	for key := range tree.All() {
		keys = append(keys, key)
	}

	return keys
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	null := Null[uint16]()

	testAssert(t, tree.Len() == 0, "len!=0")
	testAssert(t, tree.Root() == null, "root")
	testAssert(t, tree.MinIndex() == null, "min")
	testAssert(t, tree.MaxIndex() == null, "max")
	testAssert(t, tree.Begin().Limit(), "limit")
	testAssert(t, tree.FindGE(10).Limit(), "Not empty")
	testAssert(t, tree.FindLE(10).Limit(), "Not empty")
	testAssert(t, tree.End().Equal(tree.Begin()), "iter")
	assert.Equal(t, 0, tree.Height())
	assert.False(t, tree.Contains(10))
	assert.False(t, tree.Delete(10))

	_, ok := tree.Get(10)
	assert.False(t, ok)
	mustValidate(t, tree)
}

func TestFindGE(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testAssert(t, boolInsert(tree, 10), "Insert1")
	testAssert(t, !boolInsert(tree, 10), "Insert2")
	testAssert(t, tree.Len() == 1, "len==1")
	testAssert(t, tree.FindGE(10).Key() == 10, "FindGE 10")
	testAssert(t, tree.FindGE(11).Limit(), "FindGE 11")
	assert.Equal(t, 10, tree.FindGE(9).Key(), "FindGE 10")
}

func TestFindLE(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testAssert(t, boolInsert(tree, 10), "insert1")
	testAssert(t, tree.FindLE(10).Key() == 10, "FindLE 10")
	testAssert(t, tree.FindLE(11).Key() == 10, "FindLE 11")
	testAssert(t, tree.FindLE(9).Limit(), "FindLE 9")
}

func TestGetAndPut(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testAssert(t, boolInsert(tree, 10), "insert1")

	value, ok := tree.Get(10)
	require.True(t, ok)
	assert.Equal(t, 10, value)

	_, ok = tree.Get(9)
	assert.False(t, ok)

	idx, created := tree.Put(10, 100)
	assert.False(t, created)
	assert.Equal(t, 100, tree.Value(idx))

	// Insert never overwrites.
	_, created = tree.Insert(10, 1)
	assert.False(t, created)
	assert.Equal(t, 100, tree.Value(idx))

	*tree.ValueRef(idx) = 7
	value, _ = tree.Get(10)
	assert.Equal(t, 7, value)

	tree.SetValue(idx, 8)
	assert.Equal(t, 8, *tree.Find(10).Value())
}

func TestDelete(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testAssert(t, !tree.Delete(10), "del")
	testAssert(t, tree.Len() == 0, "dellen")
	testAssert(t, boolInsert(tree, 10), "ins")
	testAssert(t, tree.Delete(10), "del")
	testAssert(t, tree.Len() == 0, "dellen")

	// Delete must not remove the neighbor of a missing key.
	testAssert(t, boolInsert(tree, 10), "ins")
	testAssert(t, !tree.Delete(9), "del")
	testAssert(t, tree.Len() == 1, "dellen")
}

func iterToString(iter Iterator[int, int, uint16]) string {
	parts := []string{}

	for ; !iter.Limit(); iter = iter.Next() {
		parts = append(parts, strconv.Itoa(iter.Key()))
	}

	return strings.Join(parts, ",")
}

func reverseIterToString(iter Iterator[int, int, uint16]) string {
	parts := []string{}

	for ; !iter.Limit(); iter = iter.Prev() {
		parts = append(parts, strconv.Itoa(iter.Key()))
	}

	return strings.Join(parts, ",")
}

func TestIterator(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for idx := 0; idx < 10; idx += 2 {
		boolInsert(tree, idx)
	}

	assert.Equal(t, "4,6,8", iterToString(tree.FindGE(3)))
	assert.Equal(t, "4,6,8", iterToString(tree.FindGE(4)))
	assert.Equal(t, "8", iterToString(tree.FindGE(8)))
	assert.Empty(t, iterToString(tree.FindGE(9)))
	assert.Equal(t, "2,0", reverseIterToString(tree.FindLE(3)))
	assert.Equal(t, "2,0", reverseIterToString(tree.FindLE(2)))
	assert.Equal(t, "0", reverseIterToString(tree.FindLE(0)))
	assert.Equal(t, "8,6,4,2,0", reverseIterToString(tree.End().Prev()))
}

func TestIterator_Erase(t *testing.T) {
	t.Parallel()

	for _, cfg := range testConfigs {
		tree := newIntTree(cfg, 16)
		for key := range 10 {
			boolInsert(tree, key)
		}

		// Remove the odd keys while walking.
		for iter := tree.Begin(); !iter.Limit(); {
			if iter.Key()%2 == 1 {
				iter = tree.Erase(iter)
			} else {
				iter = iter.Next()
			}
		}

		assert.Equal(t, []int{0, 2, 4, 6, 8}, keysOf(tree), cfg.name)
		mustValidate(t, tree)
	}
}

func TestAllAndBackward_StopEarly(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	for key := range 10 {
		boolInsert(tree, key)
	}

	var forward, backward []int

	for key := range tree.All() {
		if key == 3 {
			break
		}

		forward = append(forward, key)
	}

	for key := range tree.Backward() {
		if key == 6 {
			break
		}

		backward = append(backward, key)
	}

	assert.Equal(t, []int{0, 1, 2}, forward)
	assert.Equal(t, []int{9, 8, 7}, backward)
}

func TestScenario_InsertSequenceHeight(t *testing.T) {
	t.Parallel()

	for _, cfg := range testConfigs {
		tree := newIntTree(cfg, 20)
		for _, key := range []int{8, 5, 15, 12, 19, 9, 13, 23} {
			boolInsert(tree, key)
		}

		mustValidate(t, tree)
		assert.Equal(t, 3, tree.Height(), cfg.name)
		assert.Equal(t, 8, tree.Key(tree.Root()), cfg.name)
	}
}

func TestScenario_DeleteLeafHeight(t *testing.T) {
	t.Parallel()

	for _, cfg := range testConfigs {
		tree := newIntTree(cfg, 20)
		for _, key := range []int{3, 1, 5, 7, 6, 8, 9, 10} {
			boolInsert(tree, key)
		}

		require.True(t, tree.Delete(10))
		mustValidate(t, tree)
		assert.Equal(t, 2, tree.Height(), cfg.name)
		// The rebalancing that inserted 10 already rotated 6 to the root;
		// removing the red leaf 10 does not restructure.
		assert.Equal(t, 6, tree.Key(tree.Root()), cfg.name)
		assert.Equal(t, []int{1, 3, 5, 6, 7, 8, 9}, keysOf(tree))
	}
}

func TestHeightBound(t *testing.T) {
	t.Parallel()

	const size = 512

	orders := map[string][]int{
		"ascending":  make([]int, size),
		"descending": make([]int, size),
		"random":     rand.New(rand.NewPCG(7, 7)).Perm(size),
	}

	for idx := range size {
		orders["ascending"][idx] = idx
		orders["descending"][idx] = size - idx
	}

	// 2*log2(513) rounded down.
	const bound = 18

	for _, cfg := range testConfigs {
		for name, keys := range orders {
			tree := newIntTree(cfg, size)
			for _, key := range keys {
				require.True(t, boolInsert(tree, key))
			}

			mustValidate(t, tree)
			assert.True(t, tree.Full())
			assert.LessOrEqual(t, tree.Height(), bound, "%s %s", cfg.name, name)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, cfg := range testConfigs {
		tree := newIntTree(cfg, 100)
		keys := rand.New(rand.NewPCG(1, 2)).Perm(100)

		for _, key := range keys {
			boolInsert(tree, key)
			mustValidate(t, tree)
		}

		for _, key := range keys {
			require.True(t, tree.Contains(key))
			require.True(t, tree.Delete(key))
			require.False(t, tree.Contains(key))
			mustValidate(t, tree)
		}

		assert.Equal(t, 0, tree.Len(), cfg.name)
		assert.Equal(t, Null[uint16](), tree.Root())
	}
}

func TestSuccessorPredecessor(t *testing.T) {
	t.Parallel()

	for _, cfg := range testConfigs {
		tree := newIntTree(cfg, 64)
		for _, key := range rand.New(rand.NewPCG(3, 4)).Perm(50) {
			boolInsert(tree, key*2)
		}

		null := Null[uint16]()

		assert.Equal(t, null, tree.Predecessor(tree.MinIndex()))
		assert.Equal(t, null, tree.Successor(tree.MaxIndex()))
		assert.Equal(t, null, tree.Successor(null))
		assert.Equal(t, 0, tree.Key(tree.MinIndex()))
		assert.Equal(t, 98, tree.Key(tree.MaxIndex()))

		for idx := range tree.Indices() {
			if succ := tree.Successor(idx); succ != null {
				assert.Equal(t, idx, tree.Predecessor(succ))
				assert.Equal(t, tree.Key(idx)+2, tree.Key(succ))
			}

			if pred := tree.Predecessor(idx); pred != null {
				assert.Equal(t, idx, tree.Successor(pred))
			}
		}
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	for _, cfg := range testConfigs {
		tree := newIntTree(cfg, 8)
		for key := range 8 {
			boolInsert(tree, key)
		}

		tree.Clear()

		assert.Equal(t, 0, tree.Len())
		assert.Equal(t, 8, tree.Cap())
		mustValidate(t, tree)

		for key := range 8 {
			boolInsert(tree, key)
		}

		mustValidate(t, tree)
	}
}

func TestInsertWhenFullPanics(t *testing.T) {
	t.Parallel()

	tree := NewOrdered[int, int, uint8](2)
	insert := func(key int) { tree.Insert(key, key) }

	insert(1)
	insert(2)

	assert.True(t, tree.Full())
	assert.NotPanics(t, func() { insert(1) }, "existing key needs no slot")
	assert.Panics(t, func() { insert(3) })
}

func TestCustomCompare(t *testing.T) {
	t.Parallel()

	// Case-insensitive keys, descending.
	compare := func(a, b string) int {
		return -cmp.Compare(strings.ToLower(a), strings.ToLower(b))
	}

	tree := New[string, int, uint32](8, compare, WithLayout(LayoutPackedColor))

	for idx, key := range []string{"b", "A", "c", "B"} {
		tree.Put(key, idx)
	}

	var keys []string

	for key := range tree.All() {
		keys = append(keys, key)
	}

	assert.Equal(t, []string{"c", "b", "A"}, keys)

	value, ok := tree.Get("b")
	require.True(t, ok)
	assert.Equal(t, 3, value)
}

func TestStats(t *testing.T) {
	t.Parallel()

	tree := NewOrdered[int, int, uint16](64, WithPool(pool.Compact))
	for key := range 32 {
		boolInsert(tree, key)
	}

	stats := tree.Stats()
	assert.Equal(t, uint64(32), stats.Inserts)
	assert.Positive(t, stats.Rotations)

	tree.Delete(tree.Key(tree.Root()))

	stats = tree.Stats()
	assert.Equal(t, uint64(1), stats.Erases)
	assert.Equal(t, uint64(1), stats.Swaps, "root of 32 nodes has two children")
	assert.Equal(t, uint64(1), stats.Repositions)

	tree.ResetStats()
	assert.Equal(t, Stats{}, tree.Stats())
}

// Randomized tests.

// oracle provides an interface similar to the tree, but stores data in a
// sorted slice.
type oracle struct {
	data []int
}

func (o *oracle) Insert(key int) bool {
	pos, found := slices.BinarySearch(o.data, key)
	if found {
		return false
	}

	o.data = slices.Insert(o.data, pos, key)

	return true
}

func (o *oracle) Delete(key int) bool {
	pos, found := slices.BinarySearch(o.data, key)
	if !found {
		return false
	}

	o.data = slices.Delete(o.data, pos, pos+1)

	return true
}

func (o *oracle) RandomExistingKey(rng *rand.Rand) int {
	return o.data[rng.IntN(len(o.data))]
}

// ceiling returns the smallest key >= key, or -1.
func (o *oracle) ceiling(key int, strict bool) int {
	for _, elem := range o.data {
		if elem > key || (!strict && elem == key) {
			return elem
		}
	}

	return -1
}

// floor returns the largest key <= key, or -1.
func (o *oracle) floor(key int, strict bool) int {
	for _, elem := range slices.Backward(o.data) {
		if elem < key || (!strict && elem == key) {
			return elem
		}
	}

	return -1
}

func keyOrMinusOne(tree *intTree, idx uint16) int {
	if idx == Null[uint16]() {
		return -1
	}

	return tree.Key(idx)
}

func TestRandomized(t *testing.T) {
	t.Parallel()

	const numKeys = 1000

	for _, cfg := range testConfigs {
		t.Run(cfg.name, func(t *testing.T) {
			t.Parallel()

			orc := &oracle{}
			tree := newIntTree(cfg, numKeys)
			rng := rand.New(rand.NewPCG(0, uint64(cfg.layout)<<8|uint64(cfg.kind)))

			for range 10000 {
				op := rng.IntN(100)

				switch {
				case op < 50:
					key := rng.IntN(numKeys)
					require.Equal(t, orc.Insert(key), boolInsert(tree, key))
				case op < 90 && len(orc.data) > 0:
					key := orc.RandomExistingKey(rng)
					orc.Delete(key)

					if !tree.Delete(key) {
						t.Fatal("DeleteExisting", key)
					}
				default:
					key := rng.IntN(numKeys)
					require.Equal(t, orc.ceiling(key, false), keyOrMinusOne(tree, tree.Ceiling(key)), "ceiling %d", key)
					require.Equal(t, orc.ceiling(key, true), keyOrMinusOne(tree, tree.Higher(key)), "higher %d", key)
					require.Equal(t, orc.floor(key, false), keyOrMinusOne(tree, tree.Floor(key)), "floor %d", key)
					require.Equal(t, orc.floor(key, true), keyOrMinusOne(tree, tree.Lower(key)), "lower %d", key)
				}

				require.Equal(t, orc.data, keysOf(tree))
			}

			mustValidate(t, tree)
		})
	}
}

func TestPermutations(t *testing.T) {
	t.Parallel()

	const size = 5

	keys := make([]int, size)
	for idx := range keys {
		keys[idx] = idx * 10
	}

	orders := permutations(keys)

	for _, cfg := range testConfigs {
		t.Run(cfg.name, func(t *testing.T) {
			t.Parallel()

			for _, insertOrder := range orders {
				for _, deleteOrder := range orders {
					tree := newIntTree(cfg, size)

					for _, key := range insertOrder {
						boolInsert(tree, key)
						mustValidate(t, tree)
					}

					require.Equal(t, keys, keysOf(tree))

					remaining := slices.Clone(keys)

					for _, key := range deleteOrder {
						require.True(t, tree.Delete(key), "insert %v, delete %v", insertOrder, deleteOrder)
						mustValidate(t, tree)

						remaining = slices.DeleteFunc(remaining, func(k int) bool { return k == key })
						require.Equal(t, remaining, keysOf(tree), "insert %v, delete %v", insertOrder, deleteOrder)
					}
				}
			}
		})
	}
}

func permutations(items []int) [][]int {
	if len(items) <= 1 {
		return [][]int{slices.Clone(items)}
	}

	var out [][]int

	for idx := range items {
		rest := slices.Concat(items[:idx], items[idx+1:])
		for _, perm := range permutations(rest) {
			out = append(out, append([]int{items[idx]}, perm...))
		}
	}

	return out
}
