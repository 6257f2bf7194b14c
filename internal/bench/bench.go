// Package bench measures red-black tree shape and operation cost across
// tree sizes and insertion orders.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/fixedtree/pkg/config"
	"github.com/Sumatoshi-tech/fixedtree/pkg/observability"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

// ErrUnknownOrder is returned for insertion orders other than ascending,
// descending and random.
var ErrUnknownOrder = errors.New("unknown insertion order")

// Params select what Run measures.
type Params struct {
	Sizes   []int
	Orders  []string
	Seed    int64
	// Repeat runs each measurement this many times and reports median
	// timings. Values below one mean a single run.
	Repeat  int
	Options []rbtree.Option
}

// Result is the measurement of one (order, size) pair.
type Result struct {
	Order       string        `json:"order"`
	Size        int           `json:"size"`
	Height      int           `json:"height"`
	Bound       float64       `json:"bound"`
	Runs        int           `json:"runs"`
	Rotations   uint64        `json:"rotations"`
	Swaps       uint64        `json:"swaps"`
	Repositions uint64        `json:"repositions"`
	Insert      time.Duration `json:"insert_ns_per_op"`
	Get         time.Duration `json:"get_ns_per_op"`
	Delete      time.Duration `json:"delete_ns_per_op"`
	Spread      float64       `json:"spread"`
	Footprint   uint64        `json:"footprint_bytes"`
}

// HeightBound returns the red-black height limit 2*log2(n+1) for n keys.
func HeightBound(n int) float64 {
	return 2 * math.Log2(float64(n)+1)
}

// Keys returns size distinct keys in the given insertion order.
func Keys(order string, size int, seed int64) ([]int64, error) {
	keys := make([]int64, size)
	for idx := range keys {
		keys[idx] = int64(idx)
	}

	switch strings.ToLower(order) {
	case config.OrderAscending:
	case config.OrderDescending:
		slices.Reverse(keys)
	case config.OrderRandom:
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(size))) //nolint:gosec // reproducible key order, not security.
		rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrder, order)
	}

	return keys, nil
}

// Run measures every size for every order. Runs execute one after another so
// timings do not interfere; ctx is checked between runs.
func Run(ctx context.Context, params Params, metrics *observability.TreeMetrics, logger *slog.Logger) ([]Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]Result, 0, len(params.Sizes)*len(params.Orders))

	for _, order := range params.Orders {
		for _, size := range params.Sizes {
			err := ctx.Err()
			if err != nil {
				return results, fmt.Errorf("bench interrupted: %w", err)
			}

			result, err := measure(ctx, params, order, size, metrics)
			if err != nil {
				return results, err
			}

			logger.DebugContext(ctx, "bench run done",
				slog.String("bench.order", order),
				slog.Int("bench.size", size),
				slog.Int("tree.height", result.Height),
				slog.Uint64("tree.rotations", result.Rotations),
			)

			results = append(results, result)
		}
	}

	return results, nil
}

func measure(ctx context.Context, params Params, order string, size int, metrics *observability.TreeMetrics) (Result, error) {
	keys, err := Keys(order, size, params.Seed)
	if err != nil {
		return Result{}, err
	}

	runs := max(params.Repeat, 1)

	var inserts, gets, deletes Sample

	result := Result{Order: order, Size: size, Runs: runs, Bound: HeightBound(size)}

	for range runs {
		err = ctx.Err()
		if err != nil {
			return Result{}, fmt.Errorf("bench interrupted: %w", err)
		}

		timing, runErr := measureOnce(ctx, params, order, keys, metrics, &result)
		if runErr != nil {
			return Result{}, runErr
		}

		inserts = append(inserts, timing.insert)
		gets = append(gets, timing.get)
		deletes = append(deletes, timing.remove)
	}

	result.Insert = perOp(inserts.Median(), size)
	result.Get = perOp(gets.Median(), size)
	result.Delete = perOp(deletes.Median(), size)
	result.Spread = max(inserts.Spread(), gets.Spread(), deletes.Spread())

	return result, nil
}

type timing struct {
	insert, get, remove time.Duration
}

// measureOnce fills the shape fields of result; they are identical across
// runs because the key order is.
func measureOnce(
	ctx context.Context, params Params, order string, keys []int64, metrics *observability.TreeMetrics, result *Result,
) (timing, error) {
	size := len(keys)
	tree := rbtree.NewOrdered[int64, int64, uint32](size, params.Options...)
	result.Footprint = uint64(rbtree.NodeBytes[int64, int64, uint32](tree.Storage().Layout())) * uint64(size)

	var took timing

	start := time.Now()

	for _, key := range keys {
		tree.Insert(key, key)
	}

	took.insert = time.Since(start)
	result.Height = tree.Height()

	start = time.Now()

	for _, key := range keys {
		if _, ok := tree.Get(key); !ok {
			return took, fmt.Errorf("%w: key %d lost after insertion", rbtree.ErrInvariant, key)
		}
	}

	took.get = time.Since(start)

	stats := tree.Stats()
	result.Rotations = stats.Rotations

	metrics.RecordStats(ctx, order, stats, tree.Len(), tree.Cap())
	tree.ResetStats()

	start = time.Now()

	for _, key := range keys {
		tree.Delete(key)
	}

	took.remove = time.Since(start)

	stats = tree.Stats()
	result.Swaps = stats.Swaps
	result.Repositions = stats.Repositions
	result.Rotations += stats.Rotations

	metrics.RecordStats(ctx, order, stats, tree.Len(), tree.Cap())
	metrics.RecordOp(ctx, "insert", size, took.insert)
	metrics.RecordOp(ctx, "get", size, took.get)
	metrics.RecordOp(ctx, "delete", size, took.remove)

	return took, nil
}

func perOp(total time.Duration, count int) time.Duration {
	if count == 0 {
		return 0
	}

	return total / time.Duration(count)
}
