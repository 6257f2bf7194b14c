package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fixedtree/internal/bench"
	"github.com/Sumatoshi-tech/fixedtree/internal/treeview"
	"github.com/Sumatoshi-tech/fixedtree/pkg/config"
	"github.com/Sumatoshi-tech/fixedtree/pkg/fixedmap"
	"github.com/Sumatoshi-tech/fixedtree/pkg/observability"
	"github.com/Sumatoshi-tech/fixedtree/pkg/persist"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

type dumpFlags struct {
	keys     []int64
	random   int
	seed     int64
	remove   []int64
	capacity int
	asJSON   bool
	save     string
	snapshot string
	noColor  bool
}

func newDumpCommand(a *app) *cobra.Command {
	flags := &dumpFlags{}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Build a tree and print its structure",
		Long: `Insert keys (each key is also its value), optionally delete some, then
print the tree with node colors and slot indices. The structure can be saved
as a JSON dump for validate and diff, or as a binary snapshot for inspect.`,
		Example: `  fixedtree dump --keys 8,5,15,12,19,9,13,23
  fixedtree dump --random 32 --delete 3,7 --save tree.json`,
		Args: cobra.NoArgs,
	}

	cmd.RunE = a.wrap(observability.ModeCLI, func(cmd *cobra.Command, _ []string) error {
		m, err := flags.build(cmd, a)
		if err != nil {
			return err
		}

		tree := m.Tree()

		err = tree.Validate()
		if err != nil {
			return err
		}

		dump := tree.Dump()

		if flags.save != "" {
			err = treeview.WriteDump(flags.save, dump)
			if err != nil {
				return fmt.Errorf("save dump: %w", err)
			}
		}

		if flags.snapshot != "" {
			err = tree.SaveSnapshot(flags.snapshot)
			if err != nil {
				return fmt.Errorf("save snapshot: %w", err)
			}
		}

		a.tree.RecordStats(cmd.Context(), "dump", tree.Stats(), tree.Len(), tree.Cap())

		if flags.asJSON {
			return persist.NewJSONCodec().Encode(cmd.OutOrStdout(), dump)
		}

		return treeview.Render(cmd.OutOrStdout(), dump, !flags.noColor && !color.NoColor)
	})

	cmd.Flags().Int64SliceVarP(&flags.keys, "keys", "k", nil, "keys to insert, in order")
	cmd.Flags().IntVar(&flags.random, "random", 0, "insert 0..n-1 in a seeded random order")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "seed for --random (default from config)")
	cmd.Flags().Int64SliceVarP(&flags.remove, "delete", "d", nil, "keys to delete after inserting")
	cmd.Flags().IntVar(&flags.capacity, "capacity", 0, "tree capacity (default from config)")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print the JSON dump instead of the tree")
	cmd.Flags().StringVar(&flags.save, "save", "", "write the JSON dump to this file")
	cmd.Flags().StringVar(&flags.snapshot, "snapshot", "", "write a binary snapshot to this file")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	return cmd
}

func (f *dumpFlags) build(cmd *cobra.Command, a *app) (*fixedmap.Map[int64, int64, uint32], error) {
	opts, err := a.cfg.Tree.Options()
	if err != nil {
		return nil, err
	}

	capacity := a.cfg.Tree.Capacity
	if cmd.Flags().Changed("capacity") {
		capacity = f.capacity
	}

	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", config.ErrInvalidCapacity, capacity)
	}

	keys := f.keys

	if f.random > 0 {
		seed := a.cfg.Bench.Seed
		if cmd.Flags().Changed("seed") {
			seed = f.seed
		}

		random, keysErr := bench.Keys(config.OrderRandom, f.random, seed)
		if keysErr != nil {
			return nil, keysErr
		}

		keys = append(keys, random...)
	}

	m := fixedmap.FromTree(rbtree.NewOrdered[int64, int64, uint32](capacity, opts...), a.policy)

	for _, key := range keys {
		err = m.Put(key, key)
		if err != nil {
			return nil, fmt.Errorf("insert %d: %w", key, err)
		}
	}

	for _, key := range f.remove {
		m.Delete(key)
	}

	return m, nil
}
