package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fixedtree/internal/replay"
	"github.com/Sumatoshi-tech/fixedtree/internal/treeview"
	"github.com/Sumatoshi-tech/fixedtree/pkg/observability"
)

type replayFlags struct {
	dump     string
	snapshot string
	quiet    bool
	noColor  bool
}

func newReplayCommand(a *app) *cobra.Command {
	flags := &replayFlags{}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Run a YAML scenario against a fixed-capacity map",
		Long: `Replay insert, put, delete, swap, erase_range, clear and expect steps.
The tree is validated after every step; violations reported by the checking
policy are counted, failed expectations stop the run.`,
		Args: cobra.ExactArgs(1),
	}

	cmd.RunE = a.wrap(observability.ModeBench, func(cmd *cobra.Command, args []string) error {
		sc, err := replay.Load(args[0])
		if err != nil {
			return err
		}

		if sc.Name == "" {
			sc.Name = args[0]
		}

		runner := &replay.Runner{Policy: a.policy, Metrics: a.tree, Logger: a.logger}

		report, runErr := runner.Run(cmd.Context(), sc)
		if report == nil {
			return runErr
		}

		if !flags.quiet {
			renderReport(cmd.OutOrStdout(), report)
		}

		err = flags.save(report)
		if err != nil {
			return err
		}

		status := color.New(color.FgGreen, color.Bold)
		verdict := "PASS"

		if runErr != nil {
			status = color.New(color.FgRed, color.Bold)
			verdict = "FAIL"
		}

		if flags.noColor {
			status.DisableColor()
		}

		status.Fprintf(cmd.OutOrStdout(), "%s %s: %d steps, %d violations\n",
			verdict, report.Scenario, len(report.Steps), report.Violations)

		return runErr
	})

	cmd.Flags().StringVar(&flags.dump, "dump", "", "write the final JSON dump to this file")
	cmd.Flags().StringVar(&flags.snapshot, "snapshot", "", "write the final binary snapshot to this file")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "print only the verdict")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	return cmd
}

func (f *replayFlags) save(report *replay.Report) error {
	tree := report.Map.Tree()

	if f.dump != "" {
		err := treeview.WriteDump(f.dump, tree.Dump())
		if err != nil {
			return fmt.Errorf("save dump: %w", err)
		}
	}

	if f.snapshot != "" {
		err := tree.SaveSnapshot(f.snapshot)
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}

	return nil
}

func renderReport(w io.Writer, report *replay.Report) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Step", "Action", "Size", "Height", "Violation"})

	for _, step := range report.Steps {
		violation := ""
		if step.Violation != nil {
			violation = step.Violation.Error()
		}

		tbl.AppendRow(table.Row{step.Step, step.Action, step.Size, step.Height, violation})
	}

	tbl.Render()
}
