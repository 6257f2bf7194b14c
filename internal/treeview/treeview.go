// Package treeview renders tree dumps for terminals and compares them.
package treeview

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/fixedtree/pkg/persist"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

// Dump is the dump shape the CLI reads and writes: int64 keys and values.
type Dump = rbtree.Dump[int64, int64]

const (
	branchMid  = "├── "
	branchLast = "└── "
	indentMid  = "│   "
	indentLast = "    "
	nilChild   = "·"
)

// ReadDump decodes a JSON dump file. A positive maxSize rejects larger files.
func ReadDump(path string, maxSize int64) (*Dump, error) {
	var dump Dump

	err := persist.ReadLimited(path, maxSize, func(r io.Reader) error {
		return persist.NewJSONCodec().Decode(r, &dump)
	})
	if err != nil {
		return nil, err
	}

	return &dump, nil
}

// WriteDump atomically writes dump to path as indented JSON.
func WriteDump(path string, dump *Dump) error {
	return persist.WriteAtomic(path, func(w io.Writer) error {
		return persist.NewJSONCodec().Encode(w, dump)
	})
}

// Header summarizes the dump's shape on one line.
func Header(dump *Dump) string {
	return fmt.Sprintf("layout=%s pool=%s capacity=%d size=%d root=%s height=%d",
		dump.Layout, dump.Pool, dump.Capacity, dump.Size, slotName(dump.Root), dump.Height)
}

// Lines renders the dump as plain text: the header, then the tree drawn
// from the root with one node per line.
func Lines(dump *Dump) []string {
	var lines []string

	lines = append(lines, Header(dump))
	walk(dump, func(prefix string, node *rbtree.DumpNode[int64, int64]) {
		lines = append(lines, prefix+label(node, nil, nil))
	})

	return lines
}

// Render writes the tree to w. With colorize, red nodes are printed red and
// black nodes bold.
func Render(w io.Writer, dump *Dump, colorize bool) error {
	red := color.New(color.FgRed, color.Bold)
	black := color.New(color.Bold)

	if colorize {
		red.EnableColor()
		black.EnableColor()
	} else {
		red.DisableColor()
		black.DisableColor()
	}

	var sb strings.Builder

	sb.WriteString(Header(dump))
	sb.WriteByte('\n')

	walk(dump, func(prefix string, node *rbtree.DumpNode[int64, int64]) {
		sb.WriteString(prefix)
		sb.WriteString(label(node, red, black))
		sb.WriteByte('\n')
	})

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("render tree: %w", err)
	}

	return nil
}

// walk visits nodes in pre-order, left child first. A nil node stands for an
// absent child whose sibling exists. Links that leave the dump are drawn as
// absent; cycles are cut at the dump's size.
func walk(dump *Dump, visit func(prefix string, node *rbtree.DumpNode[int64, int64])) {
	byIndex := make(map[int]*rbtree.DumpNode[int64, int64], len(dump.Nodes))
	for pos := range dump.Nodes {
		byIndex[dump.Nodes[pos].Index] = &dump.Nodes[pos]
	}

	root, ok := byIndex[dump.Root]
	if !ok {
		return
	}

	visited := 0

	var descend func(node *rbtree.DumpNode[int64, int64], indent string)

	descend = func(node *rbtree.DumpNode[int64, int64], indent string) {
		left, right := byIndex[node.Left], byIndex[node.Right]
		if left == nil && right == nil {
			return
		}

		children := []*rbtree.DumpNode[int64, int64]{left, right}

		for pos, child := range children {
			branch, next := branchMid, indentMid
			if pos == len(children)-1 {
				branch, next = branchLast, indentLast
			}

			visit(indent+branch, child)

			if child == nil {
				continue
			}

			visited++
			if visited > len(dump.Nodes) {
				return
			}

			descend(child, indent+next)
		}
	}

	visit("", root)

	visited++

	descend(root, "")
}

func label(node *rbtree.DumpNode[int64, int64], red, black *color.Color) string {
	if node == nil {
		return nilChild
	}

	text := fmt.Sprintf("%d=%d [%s] %s", node.Key, node.Value, colorTag(node.Color), slotName(node.Index))

	switch {
	case red != nil && node.Color == rbtree.Red.String():
		return red.Sprint(text)
	case black != nil:
		return black.Sprint(text)
	default:
		return text
	}
}

func colorTag(name string) string {
	if name == rbtree.Red.String() {
		return "R"
	}

	return "B"
}

func slotName(idx int) string {
	if idx == rbtree.NullLink {
		return "null"
	}

	return fmt.Sprintf("#%d", idx)
}
