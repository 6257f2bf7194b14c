package commands

import (
	"errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fixedtree/internal/treeview"
	"github.com/Sumatoshi-tech/fixedtree/pkg/observability"
)

// ErrDumpsDiffer is returned by diff --exit-code when the dumps differ.
var ErrDumpsDiffer = errors.New("dumps differ")

func newDiffCommand(a *app) *cobra.Command {
	var (
		noColor  bool
		exitCode bool
	)

	cmd := &cobra.Command{
		Use:   "diff <before.json> <after.json>",
		Short: "Compare the structure of two JSON dumps",
		Long: `Render both dumps as trees and print a line diff: "-" lines exist only
in the first dump, "+" lines only in the second.`,
		Args: cobra.ExactArgs(2),
	}

	cmd.RunE = a.wrap(observability.ModeCLI, func(cmd *cobra.Command, args []string) error {
		limit, err := a.maxSnapshotBytes()
		if err != nil {
			return err
		}

		before, err := treeview.ReadDump(args[0], limit)
		if err != nil {
			return err
		}

		after, err := treeview.ReadDump(args[1], limit)
		if err != nil {
			return err
		}

		lines := treeview.Diff(treeview.Lines(before), treeview.Lines(after))

		err = treeview.WriteDiff(cmd.OutOrStdout(), lines, !noColor && !color.NoColor)
		if err != nil {
			return err
		}

		if exitCode && treeview.Changed(lines) {
			return ErrDumpsDiffer
		}

		return nil
	})

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "fail when the dumps differ")

	return cmd
}
