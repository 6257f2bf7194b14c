// Package persist provides codecs and crash-safe file persistence for
// container dumps, snapshots and shard manifests.
package persist

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Codec serializes one state value to a stream.
type Codec interface {
	Encode(w io.Writer, state any) error
	Decode(r io.Reader, state any) error
	// Extension is the file suffix, e.g. ".json" or ".gob.lz4".
	Extension() string
}

// jsonCodec rejects unknown fields on decode, so a dump of a different
// container type fails loudly.
type jsonCodec struct {
	indent string
}

// NewJSONCodec returns a JSON codec indenting with two spaces.
func NewJSONCodec() Codec { return jsonCodec{indent: "  "} }

func (c jsonCodec) Encode(w io.Writer, state any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", c.indent)

	if err := enc.Encode(state); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func (c jsonCodec) Decode(r io.Reader, state any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(state); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}

func (jsonCodec) Extension() string { return ".json" }

type gobCodec struct{}

// NewGobCodec returns a gob codec. Stored types must be gob-encodable.
func NewGobCodec() Codec { return gobCodec{} }

func (gobCodec) Encode(w io.Writer, state any) error {
	if err := gob.NewEncoder(w).Encode(state); err != nil {
		return fmt.Errorf("encode gob: %w", err)
	}

	return nil
}

func (gobCodec) Decode(r io.Reader, state any) error {
	if err := gob.NewDecoder(r).Decode(state); err != nil {
		return fmt.Errorf("decode gob: %w", err)
	}

	return nil
}

func (gobCodec) Extension() string { return ".gob" }

// lz4Codec frames another codec's output. Blocks carry checksums so a
// corrupted file fails on decode instead of yielding garbage.
type lz4Codec struct {
	inner Codec
}

// NewLZ4Codec wraps inner in an LZ4 frame.
func NewLZ4Codec(inner Codec) Codec { return lz4Codec{inner: inner} }

func (c lz4Codec) Encode(w io.Writer, state any) error {
	zw := lz4.NewWriter(w)

	if err := zw.Apply(lz4.BlockChecksumOption(true)); err != nil {
		return fmt.Errorf("configure lz4: %w", err)
	}

	if err := c.inner.Encode(zw, state); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close lz4 frame: %w", err)
	}

	return nil
}

func (c lz4Codec) Decode(r io.Reader, state any) error {
	return c.inner.Decode(lz4.NewReader(r), state)
}

func (c lz4Codec) Extension() string { return c.inner.Extension() + ".lz4" }
