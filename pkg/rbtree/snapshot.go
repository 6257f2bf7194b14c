package rbtree

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"

	"golang.org/x/exp/constraints"

	"github.com/Sumatoshi-tech/fixedtree/pkg/persist"
	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
	"github.com/Sumatoshi-tech/fixedtree/pkg/safeconv"
)

// Snapshot errors.
var (
	ErrSnapshotFormat       = errors.New("malformed snapshot")
	ErrSnapshotIncompatible = errors.New("snapshot does not fit the tree type")
)

const (
	snapshotMagic   = "FXRB"
	snapshotVersion = 1
)

// Column order inside a snapshot.
const (
	columnLinks = iota
	columnParent
	columnLeft
	columnRight
	columnColor
	columnCount
)

// payloadCodec encodes keys and values of live nodes.
var payloadCodec = persist.NewLZ4Codec(persist.NewGobCodec())

// WriteSnapshot serializes the tree, free list included, so that
// ReadSnapshot restores identical node indices.
//
// Structural columns are deinterleaved into uint32 slices and compressed
// with LZ4 block compression; keys and values are gob-encoded in an LZ4
// frame. K and V must be gob-encodable.
func (tree *Tree[K, V, I]) WriteSnapshot(w io.Writer) error {
	capacity := tree.Cap()
	if uint64(capacity) >= math.MaxUint32 {
		return fmt.Errorf("%w: capacity %d", ErrSnapshotIncompatible, capacity)
	}

	state := tree.storage.PoolState()
	columns := [columnCount]column{}

	for idx := range columns {
		columns[idx] = make(column, capacity)
	}

	keys := make([]K, 0, tree.Len())
	values := make([]V, 0, tree.Len())

	for nodeIdx := range indexRange[I](capacity) {
		pos := safeconv.IndexToInt(nodeIdx)

		if len(state.Links) > 0 {
			columns[columnLinks][pos] = encodeLink(state.Links[pos])
		}

		if !tree.storage.Contains(nodeIdx) {
			continue
		}

		columns[columnParent][pos] = encodeLink(tree.storage.Parent(nodeIdx))
		columns[columnLeft][pos] = encodeLink(tree.storage.Left(nodeIdx))
		columns[columnRight][pos] = encodeLink(tree.storage.Right(nodeIdx))

		if tree.storage.Color(nodeIdx) == Black {
			columns[columnColor][pos] = 1
		}

		keys = append(keys, tree.storage.Key(nodeIdx))
		values = append(values, tree.storage.Value(nodeIdx))
	}

	if len(state.Links) == 0 {
		columns[columnLinks] = nil
	}

	// Free links mostly point to the next slot.
	columns[columnLinks].deltaEncode()

	out := []byte(snapshotMagic)
	for _, field := range []uint64{
		snapshotVersion,
		uint64(tree.storage.Layout()),
		uint64(state.Kind),
		uint64(capacity),
		uint64(tree.Len()),
		uint64(encodeLink(tree.root)),
		uint64(encodeLink(state.Head)),
	} {
		out = binary.AppendUvarint(out, field)
	}

	for _, col := range columns {
		out = col.appendTo(out)
	}

	out, err := appendPayload(out, keys)
	if err != nil {
		return fmt.Errorf("encode keys: %w", err)
	}

	if !zeroSized[V]() {
		out, err = appendPayload(out, values)
		if err != nil {
			return fmt.Errorf("encode values: %w", err)
		}
	}

	_, err = w.Write(out)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	return nil
}

// ReadSnapshot restores a tree written by WriteSnapshot. The restored tree
// is validated before it is returned.
//
//nolint:gocognit,cyclop,funlen // sequential decoding of a flat format.
func ReadSnapshot[K, V any, I constraints.Unsigned](r io.Reader, compare func(a, b K) int) (*Tree[K, V, I], error) {
	reader := bufio.NewReader(r)

	magic := make([]byte, len(snapshotMagic))

	_, err := io.ReadFull(reader, magic)
	if err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}

	if string(magic) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrSnapshotFormat, magic)
	}

	header := [7]uint64{}
	for idx := range header {
		header[idx], err = binary.ReadUvarint(reader)
		if err != nil {
			return nil, fmt.Errorf("read header field %d: %w", idx, err)
		}
	}

	version, layoutField, kindField, capField, size, root, head :=
		header[0], header[1], header[2], header[3], header[4], header[5], header[6]

	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d", ErrSnapshotFormat, version)
	}

	if layoutField > uint64(LayoutPackedColor) {
		return nil, fmt.Errorf("%w: layout %d", ErrSnapshotFormat, layoutField)
	}

	if kindField > uint64(pool.Compact) {
		return nil, fmt.Errorf("%w: pool kind %d", ErrSnapshotFormat, kindField)
	}

	layout, kind := Layout(layoutField), pool.Kind(kindField)

	if capField >= math.MaxUint32 || size > capField {
		return nil, fmt.Errorf("%w: capacity %d, size %d", ErrSnapshotFormat, capField, size)
	}

	capacity := int(capField)
	if !safeconv.FitsIndex[I](capacity) ||
		(layout == LayoutPackedColor && uint64(capacity) >= uint64(packedNull[I]())) {
		return nil, fmt.Errorf("%w: capacity %d with %v layout", ErrSnapshotIncompatible, capacity, layout)
	}

	columns := [columnCount]column{}

	for idx := range columns {
		columns[idx], err = readColumn(reader, capacity)
		if err != nil {
			return nil, fmt.Errorf("read column %d: %w", idx, err)
		}

		if idx != columnLinks && len(columns[idx]) != capacity {
			return nil, fmt.Errorf("%w: column %d has %d entries", ErrSnapshotFormat, idx, len(columns[idx]))
		}
	}

	keys, err := readPayload[K](reader)
	if err != nil {
		return nil, fmt.Errorf("decode keys: %w", err)
	}

	values := make([]V, len(keys))
	if !zeroSized[V]() {
		values, err = readPayload[V](reader)
		if err != nil {
			return nil, fmt.Errorf("decode values: %w", err)
		}
	}

	if uint64(len(keys)) != size || len(values) != len(keys) {
		return nil, fmt.Errorf("%w: %d keys and %d values for %d nodes", ErrSnapshotFormat, len(keys), len(values), size)
	}

	tree := New[K, V, I](capacity, compare, WithPool(kind), WithLayout(layout))

	decode := func(v uint32) (I, error) {
		if v == 0 {
			return Null[I](), nil
		}

		if uint64(v-1) > uint64(capacity) {
			return 0, fmt.Errorf("%w: link %d beyond capacity %d", ErrSnapshotFormat, v-1, capacity)
		}

		return I(v - 1), nil
	}

	state := pool.State[I]{Kind: kind, Len: int(size)}

	if kind == pool.FreeList {
		if len(columns[columnLinks]) != capacity {
			return nil, fmt.Errorf("%w: free list without links", ErrSnapshotFormat)
		}

		columns[columnLinks].deltaDecode()
		state.Links = make([]I, capacity)

		for pos, v := range columns[columnLinks] {
			state.Links[pos], err = decode(v)
			if err != nil {
				return nil, err
			}
		}
	}

	if head > math.MaxUint32 {
		return nil, fmt.Errorf("%w: head %d", ErrSnapshotFormat, head)
	}

	state.Head, err = decode(uint32(head))
	if err != nil {
		return nil, err
	}

	err = tree.storage.RestorePool(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotFormat, err)
	}

	next := 0

	for nodeIdx := range indexRange[I](capacity) {
		if !tree.storage.Contains(nodeIdx) {
			continue
		}

		pos := safeconv.IndexToInt(nodeIdx)

		links := [3]I{}
		for side, field := range []int{columnParent, columnLeft, columnRight} {
			links[side], err = decode(columns[field][pos])
			if err != nil {
				return nil, err
			}
		}

		tree.storage.SetPayload(nodeIdx, keys[next], values[next])
		tree.storage.SetParent(nodeIdx, links[0])
		tree.storage.SetLeft(nodeIdx, links[1])
		tree.storage.SetRight(nodeIdx, links[2])
		tree.storage.SetColor(nodeIdx, Color(columns[columnColor][pos] == 1))
		next++
	}

	if root > math.MaxUint32 {
		return nil, fmt.Errorf("%w: root %d", ErrSnapshotFormat, root)
	}

	tree.root, err = decode(uint32(root))
	if err != nil {
		return nil, err
	}

	err = tree.Validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotFormat, err)
	}

	return tree, nil
}

// SaveSnapshot atomically writes the tree snapshot to path.
func (tree *Tree[K, V, I]) SaveSnapshot(path string) error {
	return persist.WriteAtomic(path, tree.WriteSnapshot)
}

// LoadSnapshot reads a snapshot file. A positive maxSize rejects larger files.
func LoadSnapshot[K, V any, I constraints.Unsigned](
	path string, maxSize int64, compare func(a, b K) int,
) (*Tree[K, V, I], error) {
	var tree *Tree[K, V, I]

	err := persist.ReadLimited(path, maxSize, func(r io.Reader) error {
		var readErr error

		tree, readErr = ReadSnapshot[K, V, I](r, compare)

		return readErr
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}

// encodeLink maps Null to 0 and every index to index+1.
func encodeLink[I constraints.Unsigned](i I) uint32 {
	if i == Null[I]() {
		return 0
	}

	return safeconv.MustIndex[uint32](safeconv.IndexToInt(i) + 1)
}

func zeroSized[T any]() bool {
	return reflect.TypeFor[T]().Size() == 0
}

func appendPayload[T any](out []byte, items []T) ([]byte, error) {
	var buf bytes.Buffer

	err := payloadCodec.Encode(&buf, items)
	if err != nil {
		return nil, err
	}

	out = binary.AppendUvarint(out, uint64(buf.Len()))

	return append(out, buf.Bytes()...), nil
}

func readPayload[T any](reader *bufio.Reader) ([]T, error) {
	length, err := binary.ReadUvarint(reader)
	if err != nil {
		return nil, fmt.Errorf("read payload length: %w", err)
	}

	if length > math.MaxInt32 {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrSnapshotFormat, length)
	}

	raw := make([]byte, length)

	_, err = io.ReadFull(reader, raw)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	var items []T

	err = payloadCodec.Decode(bytes.NewReader(raw), &items)
	if err != nil {
		return nil, err
	}

	return items, nil
}
