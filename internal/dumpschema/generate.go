package dumpschema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

// Definition names used in the generated schema.
const (
	defLink = "link"
	defNode = "node"
)

// Node is the subset of JSON Schema draft-07 the dump schema needs.
type Node struct {
	Schema               string           `json:"$schema,omitempty"`
	Title                string           `json:"title,omitempty"`
	Ref                  string           `json:"$ref,omitempty"`
	Type                 any              `json:"type,omitempty"`
	Enum                 []string         `json:"enum,omitempty"`
	Minimum              *int             `json:"minimum,omitempty"`
	AdditionalProperties *bool            `json:"additionalProperties,omitempty"`
	Required             []string         `json:"required,omitempty"`
	Properties           map[string]*Node `json:"properties,omitempty"`
	Items                *Node            `json:"items,omitempty"`
	Definitions          map[string]*Node `json:"definitions,omitempty"`
}

// fieldRules refine the schema of dump fields by JSON name. Enumerations
// are taken from the String methods that produce them.
var fieldRules = map[string]func() *Node{
	"layout": func() *Node {
		return enum(rbtree.LayoutColorField.String(), rbtree.LayoutPackedColor.String())
	},
	"pool":  func() *Node { return enum(pool.FreeList.String(), pool.Compact.String()) },
	"color": func() *Node { return enum(rbtree.Red.String(), rbtree.Black.String()) },

	"root":   linkRef,
	"parent": linkRef,
	"left":   linkRef,
	"right":  linkRef,

	"capacity": nonNegative,
	"size":     nonNegative,
	"height":   nonNegative,
	"index":    nonNegative,
}

// Generate builds the dump schema by reflecting over rbtree.Dump with
// int64 keys and values.
func Generate() ([]byte, error) {
	defs := map[string]*Node{
		defLink: {Type: "integer", Minimum: minimum(rbtree.NullLink)},
	}

	root := objectOf(reflect.TypeFor[rbtree.Dump[int64, int64]](), defs)
	root.Schema = "http://json-schema.org/draft-07/schema#"
	root.Title = "fixedtree dump"
	root.Definitions = defs

	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return append(data, '\n'), nil
}

func objectOf(t reflect.Type, defs map[string]*Node) *Node {
	closed := false
	obj := &Node{
		Type:                 "object",
		AdditionalProperties: &closed,
		Properties:           make(map[string]*Node, t.NumField()),
	}

	for idx := range t.NumField() {
		field := t.Field(idx)

		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}

		obj.Required = append(obj.Required, name)

		if rule, ok := fieldRules[name]; ok {
			obj.Properties[name] = rule()

			continue
		}

		obj.Properties[name] = typeOf(field.Type, defs)
	}

	return obj
}

func typeOf(t reflect.Type, defs map[string]*Node) *Node {
	switch t.Kind() {
	case reflect.String:
		return &Node{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Node{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Node{Type: "number"}
	case reflect.Bool:
		return &Node{Type: "boolean"}
	case reflect.Slice:
		// A nil slice encodes as null.
		return &Node{Type: []string{"array", "null"}, Items: typeOf(t.Elem(), defs)}
	case reflect.Struct:
		// Dumps nest exactly one struct type: the node record.
		if _, ok := defs[defNode]; !ok {
			defs[defNode] = objectOf(t, defs)
		}

		return linkTo(defNode)
	default:
		return &Node{}
	}
}

func enum(values ...string) *Node { return &Node{Type: "string", Enum: values} }

func linkRef() *Node { return linkTo(defLink) }

func linkTo(def string) *Node { return &Node{Ref: "#/definitions/" + def} }

func nonNegative() *Node { return &Node{Type: "integer", Minimum: minimum(0)} }

func minimum(v int) *int { return &v }
