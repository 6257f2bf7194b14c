package observability

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

const (
	metricOpsTotal    = "fixedtree.ops.total"
	metricOpDuration  = "fixedtree.op.duration.seconds"
	metricViolations  = "fixedtree.violations.total"
	metricInserts     = "fixedtree.tree.inserts.total"
	metricErases      = "fixedtree.tree.erases.total"
	metricRotations   = "fixedtree.tree.rotations.total"
	metricRepositions = "fixedtree.tree.repositions.total"
	metricSwaps       = "fixedtree.tree.swaps.total"
	metricSize        = "fixedtree.tree.size"
	metricCapacity    = "fixedtree.tree.capacity"

	attrOp        = "op"
	attrTree      = "tree"
	attrKind      = "kind"
	attrContainer = "container"
)

// durationBucketBoundaries covers 1µs to 10s: single lookups up to full
// bench batches on the largest trees.
var durationBucketBoundaries = []float64{
	0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 10,
}

// TreeMetrics holds the OTel instruments fed from tree statistics and
// timed operation batches.
type TreeMetrics struct {
	opsTotal    metric.Int64Counter
	opDuration  metric.Float64Histogram
	violations  metric.Int64Counter
	inserts     metric.Int64Counter
	erases      metric.Int64Counter
	rotations   metric.Int64Counter
	repositions metric.Int64Counter
	swaps       metric.Int64Counter
	size        metric.Int64Gauge
	capacity    metric.Int64Gauge
}

type counterSpec struct {
	dst         *metric.Int64Counter
	name        string
	description string
	unit        string
}

// NewTreeMetrics creates tree metric instruments from the given meter.
func NewTreeMetrics(mt metric.Meter) (*TreeMetrics, error) {
	if mt == nil {
		return nil, errors.New("nil meter")
	}

	tm := &TreeMetrics{}

	counters := []counterSpec{
		{&tm.opsTotal, metricOpsTotal, "Container operations performed", "{op}"},
		{&tm.violations, metricViolations, "Contract violations reported to a policy", "{violation}"},
		{&tm.inserts, metricInserts, "Nodes inserted", "{node}"},
		{&tm.erases, metricErases, "Nodes erased", "{node}"},
		{&tm.rotations, metricRotations, "Rebalancing rotations", "{rotation}"},
		{&tm.repositions, metricRepositions, "Nodes moved by a compacting pool", "{node}"},
		{&tm.swaps, metricSwaps, "Structural node swaps", "{swap}"},
	}

	for _, def := range counters {
		counter, err := mt.Int64Counter(def.name,
			metric.WithDescription(def.description),
			metric.WithUnit(def.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", def.name, err)
		}

		*def.dst = counter
	}

	opDuration, err := mt.Float64Histogram(metricOpDuration,
		metric.WithDescription("Duration of a timed batch of operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOpDuration, err)
	}

	size, err := mt.Int64Gauge(metricSize,
		metric.WithDescription("Live nodes in the tree"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSize, err)
	}

	capacity, err := mt.Int64Gauge(metricCapacity,
		metric.WithDescription("Fixed capacity of the tree"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCapacity, err)
	}

	tm.opDuration = opDuration
	tm.size = size
	tm.capacity = capacity

	return tm, nil
}

// RecordStats adds delta to the structural counters of the named tree and
// records its current size and capacity. Callers pass the work done since
// the previous call, typically by resetting the tree's stats afterwards.
// Safe to call on a nil receiver (no-op).
func (tm *TreeMetrics) RecordStats(ctx context.Context, tree string, delta rbtree.Stats, size, capacity int) {
	if tm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrTree, tree))

	tm.inserts.Add(ctx, clampInt64(delta.Inserts), attrs)
	tm.erases.Add(ctx, clampInt64(delta.Erases), attrs)
	tm.rotations.Add(ctx, clampInt64(delta.Rotations), attrs)
	tm.repositions.Add(ctx, clampInt64(delta.Repositions), attrs)
	tm.swaps.Add(ctx, clampInt64(delta.Swaps), attrs)
	tm.size.Record(ctx, int64(size), attrs)
	tm.capacity.Record(ctx, int64(capacity), attrs)
}

// RecordOp records a batch of count operations of the same kind that took
// duration in total.
func (tm *TreeMetrics) RecordOp(ctx context.Context, op string, count int, duration time.Duration) {
	if tm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrOp, op))

	tm.opsTotal.Add(ctx, int64(count), attrs)
	tm.opDuration.Record(ctx, duration.Seconds(), attrs)
}

// CountingPolicy wraps next so that every violation is counted by kind and
// container before next handles it.
func (tm *TreeMetrics) CountingPolicy(next check.Policy) check.Policy {
	if next == nil {
		next = check.Default()
	}

	if tm == nil {
		return next
	}

	return check.PolicyFunc(func(v *check.Violation) error {
		tm.violations.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String(attrKind, v.Kind.String()),
			attribute.String(attrContainer, v.Container),
		))

		return next.Handle(v)
	})
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(v)
}
