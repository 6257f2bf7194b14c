// Package commands implements CLI command handlers for fixedtree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
	"github.com/Sumatoshi-tech/fixedtree/pkg/config"
	"github.com/Sumatoshi-tech/fixedtree/pkg/observability"
	"github.com/Sumatoshi-tech/fixedtree/pkg/version"
)

type observabilityInit func(observability.Config) (observability.Providers, error)

// runFunc is a command body running with an initialized app.
type runFunc func(cmd *cobra.Command, args []string) error

// app carries the state shared by every subcommand: configuration,
// telemetry and the checking policy. It is filled per invocation.
type app struct {
	configPath string
	metrics    bool
	debugTrace bool
	initFn     observabilityInit

	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
	tree      *observability.TreeMetrics
	prom      *observability.Prometheus
	policy    check.Policy
}

// NewRootCommand creates the fixedtree command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommandWithDeps(observability.Init)
}

func newRootCommandWithDeps(initFn observabilityInit) *cobra.Command {
	a := &app{initFn: initFn}

	root := &cobra.Command{
		Use:   "fixedtree",
		Short: "Fixed-capacity red-black trees: benchmark, inspect and verify",
		Long: `fixedtree drives index-based red-black trees over fixed-capacity pools.

Commands:
  bench     Measure height and operation cost across sizes and orders
  plot      Chart tree height against the 2·log2(n+1) bound
  dump      Build a tree and print or save its structure
  replay    Run a YAML scenario and check the tree after every step
  validate  Check a JSON dump against the schema and the invariants
  diff      Compare the structure of two dumps
  inspect   Summarize a binary snapshot`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: .fixedtree.yaml in . or $HOME)")
	root.PersistentFlags().BoolVar(&a.metrics, "metrics", false, "print Prometheus metrics to stderr when the command ends")
	root.PersistentFlags().BoolVar(&a.debugTrace, "debug-trace", false, "sample every trace and log at debug level")

	root.AddCommand(
		newBenchCommand(a),
		newPlotCommand(a),
		newDumpCommand(a),
		newReplayCommand(a),
		newValidateCommand(a),
		newDiffCommand(a),
		newInspectCommand(a),
		newVersionCommand(),
	)

	return root
}

// wrap initializes the app around fn and always tears it down, so telemetry
// is flushed even when fn fails.
func (a *app) wrap(mode observability.AppMode, fn runFunc) runFunc {
	return func(cmd *cobra.Command, args []string) (err error) {
		err = a.setup(mode)
		if err != nil {
			return err
		}

		ctx, span := a.startSpan(cmd)
		cmd.SetContext(ctx)

		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}

			span.End()

			err = errors.Join(err, a.teardown(cmd))
		}()

		return fn(cmd, args)
	}
}

func (a *app) setup(mode observability.AppMode) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a.cfg = cfg

	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON()

	if a.debugTrace {
		obsCfg.DebugTrace = true
		obsCfg.LogLevel = slog.LevelDebug
	}

	a.providers, err = a.initFn(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	a.logger = a.providers.Logger
	if a.logger == nil {
		a.logger = slog.Default()
	}

	meter := a.providers.Meter

	if a.metrics {
		a.prom, err = observability.NewPrometheus()
		if err != nil {
			return err
		}

		meter = a.prom.Meter()
	}

	if meter != nil {
		a.tree, err = observability.NewTreeMetrics(meter)
		if err != nil {
			return err
		}
	}

	policy, err := cfg.Check.NewPolicy(a.logger)
	if err != nil {
		return err
	}

	a.policy = a.tree.CountingPolicy(policy)

	return nil
}

func (a *app) startSpan(cmd *cobra.Command) (context.Context, trace.Span) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if a.providers.Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return a.providers.Tracer.Start(ctx, "fixedtree."+cmd.Name(),
		trace.WithAttributes(attribute.String("fixedtree.command", cmd.Name())),
	)
}

func (a *app) teardown(cmd *cobra.Command) error {
	var errs []error

	if a.prom != nil {
		errs = append(errs, a.prom.WriteText(cmd.ErrOrStderr()), a.prom.Shutdown(context.Background()))
	}

	if a.providers.Shutdown != nil {
		err := a.providers.Shutdown(context.Background())
		if err != nil {
			a.logger.Warn("observability shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// maxSnapshotBytes returns the configured read limit for snapshot and dump files.
func (a *app) maxSnapshotBytes() (int64, error) {
	limit, err := a.cfg.Snapshot.MaxBytes()
	if err != nil {
		return 0, fmt.Errorf("snapshot max size: %w", err)
	}

	return limit, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
