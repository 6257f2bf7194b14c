package rbtree

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

const wordSize = 4

// column holds one structural field for every slot of the pool, in slot
// order. Links are stored as encodeLink values so that zero means Null.
type column []uint32

// deltaEncode rewrites each entry as the difference from its predecessor.
// A fresh free list, where slot i links to slot i+1, becomes a run of ones.
func (c column) deltaEncode() {
	for pos := len(c) - 1; pos > 0; pos-- {
		c[pos] -= c[pos-1]
	}
}

// deltaDecode undoes deltaEncode with a running sum.
func (c column) deltaDecode() {
	for pos := 1; pos < len(c); pos++ {
		c[pos] += c[pos-1]
	}
}

func (c column) bytes() []byte {
	out := make([]byte, 0, len(c)*wordSize)
	for _, v := range c {
		out = binary.LittleEndian.AppendUint32(out, v)
	}

	return out
}

func (c column) fill(raw []byte) error {
	if len(raw) != len(c)*wordSize {
		return fmt.Errorf("%w: column holds %d bytes, want %d", ErrSnapshotFormat, len(raw), len(c)*wordSize)
	}

	for pos := range c {
		c[pos] = binary.LittleEndian.Uint32(raw[pos*wordSize:])
	}

	return nil
}

// block returns the column as an LZ4 block, or nil when LZ4 does not make
// it smaller.
func (c column) block() []byte {
	if len(c) == 0 {
		return nil
	}

	raw := c.bytes()
	dst := make([]byte, lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, dst, nil)
	if err != nil || written == 0 || written >= len(raw) {
		return nil
	}

	return dst[:written]
}

// inflate fills the column from an LZ4 block produced by block.
func (c column) inflate(src []byte) error {
	raw := make([]byte, len(c)*wordSize)

	read, err := lz4.UncompressBlock(src, raw)
	if err != nil {
		return fmt.Errorf("%w: lz4: %w", ErrSnapshotFormat, err)
	}

	return c.fill(raw[:read])
}

// appendTo writes the entry count and the block length, followed by the
// block or, when the length is zero, the raw little-endian words.
func (c column) appendTo(out []byte) []byte {
	out = binary.AppendUvarint(out, uint64(len(c)))
	if len(c) == 0 {
		return binary.AppendUvarint(out, 0)
	}

	blk := c.block()
	out = binary.AppendUvarint(out, uint64(len(blk)))

	if blk != nil {
		return append(out, blk...)
	}

	return append(out, c.bytes()...)
}

// readColumn reads a column written by appendTo. An empty column is
// returned as nil; any other column must have capacity entries.
func readColumn(reader *bufio.Reader, capacity int) (column, error) {
	count, err := binary.ReadUvarint(reader)
	if err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	if count != 0 && count != uint64(capacity) {
		return nil, fmt.Errorf("%w: column of %d entries for capacity %d", ErrSnapshotFormat, count, capacity)
	}

	blockLen, err := binary.ReadUvarint(reader)
	if err != nil {
		return nil, fmt.Errorf("read block length: %w", err)
	}

	if count == 0 {
		return nil, nil
	}

	col := make(column, count)
	rawLen := len(col) * wordSize

	if blockLen == 0 {
		raw := make([]byte, rawLen)

		_, err = io.ReadFull(reader, raw)
		if err != nil {
			return nil, fmt.Errorf("read raw column: %w", err)
		}

		return col, col.fill(raw)
	}

	if blockLen >= uint64(rawLen) {
		return nil, fmt.Errorf("%w: block of %d bytes for %d raw", ErrSnapshotFormat, blockLen, rawLen)
	}

	blk := make([]byte, blockLen)

	_, err = io.ReadFull(reader, blk)
	if err != nil {
		return nil, fmt.Errorf("read column block: %w", err)
	}

	return col, col.inflate(blk)
}
