package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
	"github.com/Sumatoshi-tech/fixedtree/pkg/observability"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

func setupTestMeter(t *testing.T) (*observability.TreeMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	tm, err := observability.NewTreeMetrics(meter)
	require.NoError(t, err)

	return tm, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestTreeMetrics_RecordStats(t *testing.T) {
	t.Parallel()

	tm, reader := setupTestMeter(t)
	ctx := context.Background()

	tree := rbtree.NewOrdered[int, int, uint16](64)
	for key := range 40 {
		tree.Insert(key, key)
	}

	for key := range 10 {
		tree.Delete(key)
	}

	tm.RecordStats(ctx, "demo", tree.Stats(), tree.Len(), tree.Cap())
	tree.ResetStats()
	tm.RecordStats(ctx, "demo", tree.Stats(), tree.Len(), tree.Cap())

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(40), sumOf(t, findMetric(rm, "fixedtree.tree.inserts.total")))
	assert.Equal(t, int64(10), sumOf(t, findMetric(rm, "fixedtree.tree.erases.total")))
	assert.Positive(t, sumOf(t, findMetric(rm, "fixedtree.tree.rotations.total")))

	size := findMetric(rm, "fixedtree.tree.size")
	require.NotNil(t, size)

	gauge, ok := size.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(30), gauge.DataPoints[0].Value)
}

func TestTreeMetrics_RecordOp(t *testing.T) {
	t.Parallel()

	tm, reader := setupTestMeter(t)

	tm.RecordOp(context.Background(), "insert", 1000, 3*time.Millisecond)
	tm.RecordOp(context.Background(), "get", 500, time.Millisecond)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(1500), sumOf(t, findMetric(rm, "fixedtree.ops.total")))

	duration := findMetric(rm, "fixedtree.op.duration.seconds")
	require.NotNil(t, duration)

	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}

func TestTreeMetrics_CountingPolicy(t *testing.T) {
	t.Parallel()

	tm, reader := setupTestMeter(t)
	policy := tm.CountingPolicy(check.Return{})

	err := policy.Handle(check.Capacity("fixedmap.Map", 4))
	require.ErrorIs(t, err, check.ErrCapacityExceeded)

	err = policy.Handle(check.Range("bitset.Bitset", 8, 9))
	require.ErrorIs(t, err, check.ErrOutOfRange)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "fixedtree.violations.total")))
}

func TestTreeMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var tm *observability.TreeMetrics

	tm.RecordStats(context.Background(), "x", rbtree.Stats{Inserts: 1}, 1, 2)
	tm.RecordOp(context.Background(), "get", 1, time.Millisecond)

	policy := tm.CountingPolicy(nil)
	require.ErrorIs(t, policy.Handle(check.Capacity("c", 1)), check.ErrCapacityExceeded)

	_, err := observability.NewTreeMetrics(nil)
	require.Error(t, err)
}

func TestNewTreeMetrics_WithNoopMeter(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	tm, err := observability.NewTreeMetrics(providers.Meter)
	require.NoError(t, err)
	assert.NotNil(t, tm)

	tm.RecordOp(context.Background(), "test", 1, time.Millisecond)
}
