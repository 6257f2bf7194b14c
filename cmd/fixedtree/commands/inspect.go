package commands

import (
	"cmp"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fixedtree/internal/treeview"
	"github.com/Sumatoshi-tech/fixedtree/pkg/observability"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

func newInspectCommand(a *app) *cobra.Command {
	var (
		showTree bool
		export   string
	)

	cmd := &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "Summarize a binary snapshot",
		Long: `Load a snapshot written by dump --snapshot or replay --snapshot, verify
it and print its shape and memory footprint.`,
		Args: cobra.ExactArgs(1),
	}

	cmd.RunE = a.wrap(observability.ModeCLI, func(cmd *cobra.Command, args []string) error {
		path := args[0]

		limit, err := a.maxSnapshotBytes()
		if err != nil {
			return err
		}

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat snapshot: %w", err)
		}

		tree, err := rbtree.LoadSnapshot[int64, int64, uint32](path, limit, cmp.Compare[int64])
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}

		storage := tree.Storage()
		footprint := uint64(rbtree.NodeBytes[int64, int64, uint32](storage.Layout())) * uint64(tree.Cap())

		tbl := table.NewWriter()
		tbl.SetOutputMirror(cmd.OutOrStdout())
		tbl.SetStyle(table.StyleLight)
		tbl.AppendHeader(table.Row{"Property", "Value"})
		tbl.AppendRows([]table.Row{
			{"File", path},
			{"File size", humanize.IBytes(uint64(info.Size()))}, //nolint:gosec // file sizes are non-negative.
			{"Layout", storage.Layout()},
			{"Pool", storage.PoolKind()},
			{"Capacity", humanize.Comma(int64(tree.Cap()))},
			{"Size", humanize.Comma(int64(tree.Len()))},
			{"Height", tree.Height()},
			{"Node footprint", humanize.IBytes(footprint)},
		})

		if tree.Len() > 0 {
			minKey := tree.Key(tree.MinIndex())
			maxKey := tree.Key(tree.MaxIndex())
			tbl.AppendRow(table.Row{"Key range", fmt.Sprintf("[%d, %d]", minKey, maxKey)})
		}

		tbl.Render()

		if export != "" {
			err = treeview.WriteDump(export, tree.Dump())
			if err != nil {
				return fmt.Errorf("export dump: %w", err)
			}
		}

		if showTree {
			return treeview.Render(cmd.OutOrStdout(), tree.Dump(), false)
		}

		return nil
	})

	cmd.Flags().BoolVar(&showTree, "tree", false, "also print the tree")
	cmd.Flags().StringVar(&export, "export", "", "write the tree as a JSON dump to this file")

	return cmd
}
