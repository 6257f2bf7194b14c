package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
	"github.com/Sumatoshi-tech/fixedtree/pkg/fixedmap"
	"github.com/Sumatoshi-tech/fixedtree/pkg/observability"
	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

const container = "replay"

// Map is the container a scenario drives.
type Map = fixedmap.Map[int64, int64, uint32]

// Runner replays scenarios.
type Runner struct {
	// Policy handles violations when the scenario names none.
	Policy  check.Policy
	Metrics *observability.TreeMetrics
	Logger  *slog.Logger
}

// StepResult records the state after one step.
type StepResult struct {
	Step   int
	Action string
	Size   int
	Height int
	// Violation is set when the policy returned a violation for this step.
	Violation error
}

// Report is the outcome of a replay.
type Report struct {
	Scenario   string
	Steps      []StepResult
	Violations int
	Map        *Map
}

// Run replays every step in order. Violations returned by the policy are
// counted and the replay continues; invariant breaks, failed expectations
// and cancellation stop it. The report is returned in every case.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m, err := r.newMap(sc, logger)
	if err != nil {
		return nil, err
	}

	report := &Report{Scenario: sc.Name, Map: m}

	for idx := range sc.Steps {
		err = ctx.Err()
		if err != nil {
			return report, fmt.Errorf("replay interrupted: %w", err)
		}

		step := &sc.Steps[idx]
		action := step.Action()
		start := time.Now()

		count, stepErr := apply(m, step, report.Violations)

		result := StepResult{Step: idx + 1, Action: action, Size: m.Len(), Height: m.Tree().Height()}

		var violation *check.Violation
		if errors.As(stepErr, &violation) {
			result.Violation = stepErr
			report.Violations++
			stepErr = nil

			logger.WarnContext(ctx, "replay step violated a precondition",
				slog.Int("replay.step", idx+1),
				slog.String("replay.action", action),
				slog.String("check.kind", violation.Kind.String()),
			)
		}

		report.Steps = append(report.Steps, result)

		r.Metrics.RecordOp(ctx, action, count, time.Since(start))

		if stepErr != nil {
			return report, fmt.Errorf("step %d (%s): %w", idx+1, action, stepErr)
		}

		err = m.Tree().Validate()
		if err != nil {
			return report, fmt.Errorf("step %d (%s): %w", idx+1, action, err)
		}

		logger.DebugContext(ctx, "replay step done",
			slog.String("replay.scenario", sc.Name),
			slog.Int("replay.step", idx+1),
			slog.String("replay.action", action),
			slog.Int("tree.size", result.Size),
			slog.Int("tree.height", result.Height),
		)
	}

	r.Metrics.RecordStats(ctx, treeName(sc), m.Tree().Stats(), m.Len(), m.Cap())

	return report, nil
}

func (r *Runner) newMap(sc *Scenario, logger *slog.Logger) (*Map, error) {
	policy := r.Policy
	if sc.Policy != "" || policy == nil {
		named, err := check.ByName(sc.Policy, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
		}

		policy = r.Metrics.CountingPolicy(named)
	}

	opts := []fixedmap.Option{fixedmap.WithPolicy(policy)}

	if sc.Pool != "" {
		kind, err := pool.ParseKind(sc.Pool)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
		}

		opts = append(opts, fixedmap.WithPool(kind))
	}

	if sc.Layout != "" {
		layout, err := rbtree.ParseLayout(sc.Layout)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
		}

		opts = append(opts, fixedmap.WithLayout(layout))
	}

	return fixedmap.NewOrdered[int64, int64, uint32](sc.Capacity, opts...), nil
}

// apply runs one step and returns how many element operations it made.
func apply(m *Map, step *Step, violations int) (int, error) {
	switch step.Action() {
	case "insert":
		for _, key := range step.Insert {
			if _, err := m.TryPut(key, key); err != nil {
				return len(step.Insert), err
			}
		}

		return len(step.Insert), nil
	case "put":
		for _, pair := range step.Put {
			if err := m.Put(pair.Key, pair.Value); err != nil {
				return len(step.Put), err
			}
		}

		return len(step.Put), nil
	case "delete":
		for _, key := range step.Delete {
			m.Delete(key)
		}

		return len(step.Delete), nil
	case "swap":
		return 1, swap(m, step.Swap[0], step.Swap[1])
	case "erase_range":
		return eraseRange(m, step.EraseRange), nil
	case "clear":
		n := m.Len()
		m.Clear()

		return n, nil
	case "expect":
		return 0, verify(m, step.Expect, violations)
	default:
		return 0, fmt.Errorf("%w: step without action", ErrInvalidScenario)
	}
}

// swap exchanges the slots of two keys. Keys and values travel with their
// slots, so the ordering invariant holds afterwards.
func swap(m *Map, a, b int64) error {
	tree := m.Tree()

	for _, key := range []int64{a, b} {
		if !tree.Contains(key) {
			return m.Policy().Handle(check.MissingKey(container, m.Cap(), key))
		}
	}

	tree.SwapNodesIncludingKeyAndValue(tree.IndexOf(a), tree.IndexOf(b))

	return nil
}

func eraseRange(m *Map, rng *Range) int {
	tree := m.Tree()
	before := tree.Len()

	to := rbtree.Null[uint32]()
	if rng.To != nil {
		if *rng.To <= rng.From {
			return 0
		}

		to = tree.Ceiling(*rng.To)
	}

	tree.EraseRange(tree.Ceiling(rng.From), to)

	return before - tree.Len()
}

func verify(m *Map, want *Expect, violations int) error {
	tree := m.Tree()

	if want.Size != nil && *want.Size != m.Len() {
		return fmt.Errorf("%w: size %d, want %d", ErrExpectation, m.Len(), *want.Size)
	}

	if want.Height != nil && *want.Height != tree.Height() {
		return fmt.Errorf("%w: height %d, want %d", ErrExpectation, tree.Height(), *want.Height)
	}

	if want.Root != nil {
		root := tree.Root()
		if root == rbtree.Null[uint32]() {
			return fmt.Errorf("%w: empty tree, want root %d", ErrExpectation, *want.Root)
		}

		if got := tree.Key(root); got != *want.Root {
			return fmt.Errorf("%w: root %d, want %d", ErrExpectation, got, *want.Root)
		}
	}

	if want.Keys != nil {
		got := slices.Collect(m.Keys())
		if !slices.Equal(got, want.Keys) {
			return fmt.Errorf("%w: keys %v, want %v", ErrExpectation, got, want.Keys)
		}
	}

	if want.Violations != nil && *want.Violations != violations {
		return fmt.Errorf("%w: %d violations, want %d", ErrExpectation, violations, *want.Violations)
	}

	return nil
}

func treeName(sc *Scenario) string {
	if sc.Name == "" {
		return container
	}

	return sc.Name
}
