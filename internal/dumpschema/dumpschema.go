// Package dumpschema validates JSON tree dumps against the embedded schema
// and the red-black invariants.
package dumpschema

import (
	"bytes"
	"cmp"
	"embed"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/fixedtree/pkg/persist"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

// SchemaName is the file name of the embedded schema.
const SchemaName = "dump-schema.json"

//go:generate go run ../../tools/schemagen -o dump-schema.json

// SchemaFS contains the embedded dump JSON schema.
//
//go:embed dump-schema.json
var SchemaFS embed.FS

// ErrSchema is returned when a document does not match the dump schema.
var ErrSchema = errors.New("dump does not match schema")

// Issue is a single schema mismatch.
type Issue struct {
	Field       string
	Description string
}

func (i Issue) String() string {
	return i.Field + ": " + i.Description
}

// Schema returns the raw embedded schema.
func Schema() ([]byte, error) {
	data, err := SchemaFS.ReadFile(SchemaName)
	if err != nil {
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}

	return data, nil
}

// CheckSchema matches data against the dump schema and returns every
// mismatch. The error is reserved for unreadable schema or input.
func CheckSchema(data []byte) ([]Issue, error) {
	schema, err := Schema()
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	issues := make([]Issue, 0, len(result.Errors()))
	for _, resErr := range result.Errors() {
		issues = append(issues, Issue{Field: resErr.Field(), Description: resErr.Description()})
	}

	return issues, nil
}

// Validate checks data against the schema, decodes it and verifies the
// red-black invariants. Schema mismatches wrap ErrSchema with the first
// issue; invariant breaks wrap rbtree.ErrInvariant.
func Validate(data []byte) (*rbtree.Dump[int64, int64], error) {
	issues, err := CheckSchema(data)
	if err != nil {
		return nil, err
	}

	if len(issues) > 0 {
		return nil, fmt.Errorf("%w: %s (%d issues)", ErrSchema, issues[0], len(issues))
	}

	var dump rbtree.Dump[int64, int64]

	err = persist.NewJSONCodec().Decode(bytes.NewReader(data), &dump)
	if err != nil {
		return nil, err
	}

	err = dump.Validate(cmp.Compare[int64])
	if err != nil {
		return &dump, err
	}

	return &dump, nil
}
