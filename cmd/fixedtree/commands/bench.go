package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fixedtree/internal/bench"
	"github.com/Sumatoshi-tech/fixedtree/pkg/observability"
)

// Output formats of the bench command.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// ErrUnknownFormat is returned for --format values other than table and json.
var ErrUnknownFormat = errors.New("unknown output format")

type benchFlags struct {
	sizes  []int
	orders []string
	seed   int64
	repeat int
	format string
	output string
}

func (f *benchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(&f.sizes, "sizes", nil, "tree sizes to measure (default from config)")
	cmd.Flags().StringSliceVar(&f.orders, "orders", nil, "insertion orders: ascending, descending, random (default from config)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "seed for the random order (default from config)")
	cmd.Flags().IntVar(&f.repeat, "repeat", 0, "runs per measurement; timings are medians (default from config)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write to this file instead of stdout")
}

// params merges flags over the configured bench settings.
func (f *benchFlags) params(cmd *cobra.Command, a *app) (bench.Params, error) {
	opts, err := a.cfg.Tree.Options()
	if err != nil {
		return bench.Params{}, err
	}

	params := bench.Params{
		Sizes:   a.cfg.Bench.Sizes,
		Orders:  a.cfg.Bench.Orders,
		Seed:    a.cfg.Bench.Seed,
		Repeat:  a.cfg.Bench.Repeat,
		Options: opts,
	}

	if cmd.Flags().Changed("sizes") {
		params.Sizes = f.sizes
	}

	if cmd.Flags().Changed("orders") {
		params.Orders = f.orders
	}

	if cmd.Flags().Changed("seed") {
		params.Seed = f.seed
	}

	if cmd.Flags().Changed("repeat") {
		params.Repeat = f.repeat
	}

	return params, nil
}

func (f *benchFlags) run(cmd *cobra.Command, a *app) ([]bench.Result, error) {
	params, err := f.params(cmd, a)
	if err != nil {
		return nil, err
	}

	a.logger.InfoContext(cmd.Context(), "bench starting",
		"bench.sizes", len(params.Sizes),
		"bench.orders", len(params.Orders),
		"tree.pool", a.cfg.Tree.Pool,
		"tree.layout", a.cfg.Tree.Layout,
	)

	return bench.Run(cmd.Context(), params, a.tree, a.logger)
}

func newBenchCommand(a *app) *cobra.Command {
	flags := &benchFlags{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure tree height and operation cost",
		Long: `Insert, look up and delete every key for each configured size and
insertion order, then report height, rotations and per-operation time.`,
		Args: cobra.NoArgs,
	}

	cmd.RunE = a.wrap(observability.ModeBench, func(cmd *cobra.Command, _ []string) error {
		results, err := flags.run(cmd, a)
		if err != nil {
			return err
		}

		return withOutput(cmd, flags.output, func(w io.Writer) error {
			switch flags.format {
			case FormatTable:
				bench.RenderTable(w, results)

				return nil
			case FormatJSON:
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")

				return enc.Encode(results)
			default:
				return fmt.Errorf("%w: %q", ErrUnknownFormat, flags.format)
			}
		})
	})

	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.format, "format", "f", FormatTable, "output format: table, json")

	return cmd
}

func newPlotCommand(a *app) *cobra.Command {
	flags := &benchFlags{}

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Chart tree height against the theoretical bound",
		Long:  "Run the bench measurements and render tree height per size as an HTML line chart.",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = a.wrap(observability.ModeBench, func(cmd *cobra.Command, _ []string) error {
		results, err := flags.run(cmd, a)
		if err != nil {
			return err
		}

		return withOutput(cmd, flags.output, func(w io.Writer) error {
			return bench.RenderHeightChart(w, results)
		})
	})

	flags.register(cmd)

	return cmd
}

// withOutput hands write the command's stdout, or path when it is set.
func withOutput(cmd *cobra.Command, path string, write func(w io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	err = write(f)

	return errors.Join(err, f.Close())
}
