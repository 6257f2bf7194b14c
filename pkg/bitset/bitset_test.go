package bitset_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/fixedtree/pkg/bitset"
	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
)

func TestFromUint64_KeepsLowBits(t *testing.T) {
	t.Parallel()

	b := bitset.FromUint64(8, 0xfff0)

	assert.Equal(t, "11110000", b.Format('0', '1'))
	assert.Equal(t, 4, b.Count())
	assert.Equal(t, 8, b.Len())
}

func TestFormat_CustomDigits(t *testing.T) {
	t.Parallel()

	b := bitset.FromUint64(5, 0b10110)
	assert.Equal(t, "x.xx.", b.Format('.', 'x'))
	assert.Equal(t, "10110", b.String())
}

func TestSetResetFlipTest(t *testing.T) {
	t.Parallel()

	b := bitset.New(130)

	require.NoError(t, b.Set(0))
	require.NoError(t, b.Set(64))
	require.NoError(t, b.Set(129))
	assert.Equal(t, 3, b.Count())

	set, err := b.Test(64)
	require.NoError(t, err)
	assert.True(t, set)

	require.NoError(t, b.Reset(64))
	set, err = b.Test(64)
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, b.Flip(1))
	require.NoError(t, b.Flip(0))
	require.NoError(t, b.SetTo(2, true))
	require.NoError(t, b.SetTo(129, false))
	assert.Equal(t, "110", b.String()[127:])
	assert.Equal(t, 2, b.Count())
}

func TestOutOfRange(t *testing.T) {
	t.Parallel()

	b := bitset.New(8)

	for _, pos := range []int{-1, 8, 100} {
		require.ErrorIs(t, b.Set(pos), check.ErrOutOfRange)
		require.ErrorIs(t, b.Reset(pos), check.ErrOutOfRange)
		require.ErrorIs(t, b.Flip(pos), check.ErrOutOfRange)

		_, err := b.Test(pos)
		require.ErrorIs(t, err, check.ErrOutOfRange)
	}

	panicky := bitset.New(8, bitset.WithPolicy(check.Panic{}))
	assert.Panics(t, func() { _ = panicky.Set(8) })
}

func TestAllAnyNone(t *testing.T) {
	t.Parallel()

	b := bitset.New(70)
	assert.True(t, b.None())
	assert.False(t, b.Any())
	assert.False(t, b.All())

	b.SetAll()
	assert.True(t, b.All())
	assert.Equal(t, 70, b.Count())

	b.FlipAll()
	assert.True(t, b.None())

	b.FlipAll()
	b.ResetAll()
	assert.True(t, b.None())

	assert.True(t, bitset.New(0).All())
	assert.True(t, bitset.New(0).None())
}

func TestToUint(t *testing.T) {
	t.Parallel()

	b := bitset.FromUint64(100, 0xdeadbeef)

	u64, err := b.ToUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), u64)

	u32, err := b.ToUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), u32)

	// A set bit at position 32 does not fit a uint32 but fits a uint64.
	require.NoError(t, b.Set(32))
	_, err = b.ToUint32()
	require.ErrorIs(t, err, check.ErrOutOfRange)

	_, err = b.ToUint64()
	require.NoError(t, err)

	require.NoError(t, b.Set(64))
	_, err = b.ToUint64()
	require.ErrorIs(t, err, check.ErrOutOfRange)

	// Width alone never overflows: only set bits count.
	wide := bitset.New(200)
	value, err := wide.ToUint32()
	require.NoError(t, err)
	assert.Zero(t, value)

	empty, err := bitset.New(0).ToUint64()
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestLogicalOps(t *testing.T) {
	t.Parallel()

	a := bitset.FromUint64(8, 0b11001100)
	b := bitset.FromUint64(8, 0b10101010)

	and := bitset.FromUint64(8, 0b11001100)
	and.And(b)
	assert.Equal(t, "10001000", and.String())

	or := bitset.FromUint64(8, 0b11001100)
	or.Or(b)
	assert.Equal(t, "11101110", or.String())

	a.Xor(b)
	assert.Equal(t, "01100110", a.String())

	assert.True(t, bitset.FromUint64(8, 3).Equal(bitset.FromUint64(8, 3)))
	assert.False(t, bitset.FromUint64(8, 3).Equal(bitset.FromUint64(9, 3)))
	assert.False(t, bitset.FromUint64(8, 3).Equal(bitset.FromUint64(8, 2)))

	assert.Panics(t, func() { a.And(bitset.New(9)) })
}

func TestShifts(t *testing.T) {
	t.Parallel()

	b := bitset.FromUint64(8, 0b10010011)
	b.ShiftLeft(2)
	assert.Equal(t, "01001100", b.String())

	b.ShiftRight(3)
	assert.Equal(t, "00001001", b.String())

	b.ShiftLeft(0)
	assert.Equal(t, "00001001", b.String())

	b.ShiftLeft(8)
	assert.True(t, b.None())

	// Across word boundaries.
	wide := bitset.New(150)
	require.NoError(t, wide.Set(60))
	wide.ShiftLeft(70)

	set, err := wide.Test(130)
	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, 1, wide.Count())

	wide.ShiftRight(129)

	set, err = wide.Test(1)
	require.NoError(t, err)
	assert.True(t, set)

	wide.ShiftLeft(149)
	assert.True(t, wide.None(), "bit shifted past the width is lost")
}

func TestParse(t *testing.T) {
	t.Parallel()

	b, err := bitset.Parse("1100", '0', '1')
	require.NoError(t, err)
	assert.Equal(t, 4, b.Len())

	value, err := b.ToUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(12), value)

	_, err = bitset.Parse("10a1", '0', '1')
	require.ErrorIs(t, err, bitset.ErrInvalidDigit)
}

func TestTextMarshaling(t *testing.T) {
	t.Parallel()

	type payload struct {
		Flags *bitset.Bitset `json:"flags"`
	}

	raw, err := json.Marshal(payload{Flags: bitset.FromUint64(6, 0b100101)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"flags":"100101"}`, string(raw))

	var decoded payload
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "100101", decoded.Flags.String())
	assert.Equal(t, 6, decoded.Flags.Len())
}
