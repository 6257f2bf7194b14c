package treeview

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op classifies a line of a structural diff.
type Op int

const (
	// OpEqual lines appear in both dumps.
	OpEqual Op = iota
	// OpInsert lines appear only in the second dump.
	OpInsert
	// OpDelete lines appear only in the first dump.
	OpDelete
)

// DiffLine is one rendered line of a structural diff.
type DiffLine struct {
	Op   Op
	Text string
}

// Diff compares two rendered dumps line by line.
func Diff(before, after []string) []DiffLine {
	dmp := diffmatchpatch.New()

	src := joinLines(before)
	dst := joinLines(after)

	srcChars, dstChars, lineArray := dmp.DiffLinesToChars(src, dst)
	diffs := dmp.DiffMain(srcChars, dstChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out []DiffLine

	for _, d := range diffs {
		op := OpEqual

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		case diffmatchpatch.DiffEqual:
		}

		for line := range strings.SplitSeq(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out = append(out, DiffLine{Op: op, Text: line})
		}
	}

	return out
}

// Changed reports whether any line differs.
func Changed(lines []DiffLine) bool {
	for _, line := range lines {
		if line.Op != OpEqual {
			return true
		}
	}

	return false
}

// WriteDiff prints lines in unified style: "+" for insertions, "-" for
// deletions and two spaces for context.
func WriteDiff(w io.Writer, lines []DiffLine, colorize bool) error {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)

	if !colorize {
		added.DisableColor()
		removed.DisableColor()
	} else {
		added.EnableColor()
		removed.EnableColor()
	}

	for _, line := range lines {
		var err error

		switch line.Op {
		case OpInsert:
			_, err = added.Fprintln(w, "+ "+line.Text)
		case OpDelete:
			_, err = removed.Fprintln(w, "- "+line.Text)
		case OpEqual:
			_, err = fmt.Fprintln(w, "  "+line.Text)
		}

		if err != nil {
			return fmt.Errorf("write diff: %w", err)
		}
	}

	return nil
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	return strings.Join(lines, "\n") + "\n"
}
