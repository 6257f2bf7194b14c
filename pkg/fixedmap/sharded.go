package fixedmap

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sync"

	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
	"github.com/Sumatoshi-tech/fixedtree/pkg/persist"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

// ErrSaveShards is returned when shard snapshots cannot be written.
var ErrSaveShards = errors.New("failed to save shards")

// ErrLoadShards is returned when shard snapshots cannot be read.
var ErrLoadShards = errors.New("failed to load shards")

// ErrShardLayout is returned when a manifest does not match the sharded map.
var ErrShardLayout = errors.New("shard manifest does not match")

// HashString hashes a string key with FNV-1a for shard routing.
func HashString(key string) uint64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(key))

	return hasher.Sum64()
}

type shard[K, V any, I constraints.Unsigned] struct {
	mu sync.Mutex
	m  *Map[K, V, I]
}

// Sharded spreads keys over independent fixed-capacity maps, each behind
// its own mutex. Each shard has the same capacity, so a skewed hash can fill
// one shard while others have room.
type Sharded[K, V any, I constraints.Unsigned] struct {
	shards  []*shard[K, V, I]
	hash    func(K) uint64
	compare func(a, b K) int
	policy  check.Policy
}

// shardManifest is stored next to the shard snapshots.
type shardManifest struct {
	Shards        int    `json:"shards"`
	ShardCapacity int    `json:"shard_capacity"`
	Lens          []int  `json:"lens"`
	Layout        string `json:"layout"`
	Pool          string `json:"pool"`
}

// shape is the part of a manifest every shard must agree on.
type shape struct {
	capacity int
	layout   string
	pool     string
}

func shapeOf[K, V any, I constraints.Unsigned](m *Map[K, V, I]) shape {
	tree := m.Tree()

	return shape{
		capacity: tree.Cap(),
		layout:   tree.Storage().Layout().String(),
		pool:     tree.Storage().PoolKind().String(),
	}
}

func (m shardManifest) shape() shape {
	return shape{capacity: m.ShardCapacity, layout: m.Layout, pool: m.Pool}
}

// NewSharded creates shardCount maps of shardCapacity entries each.
func NewSharded[K, V any, I constraints.Unsigned](
	shardCount, shardCapacity int, compare func(a, b K) int, hash func(K) uint64, opts ...Option,
) *Sharded[K, V, I] {
	if shardCount <= 0 {
		shardCount = 1
	}

	options := buildOptions(opts)
	shards := make([]*shard[K, V, I], shardCount)

	for idx := range shards {
		shards[idx] = &shard[K, V, I]{m: New[K, V, I](shardCapacity, compare, opts...)}
	}

	return &Sharded[K, V, I]{shards: shards, hash: hash, compare: compare, policy: options.Policy}
}

// ShardCount returns the number of shards.
func (s *Sharded[K, V, I]) ShardCount() int { return len(s.shards) }

// ShardOf returns the shard a key is routed to.
func (s *Sharded[K, V, I]) ShardOf(key K) int {
	return int(s.hash(key) % uint64(len(s.shards)))
}

// Put inserts or overwrites key in its shard.
func (s *Sharded[K, V, I]) Put(key K, value V) error {
	sh := s.shards[s.ShardOf(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	return sh.m.Put(key, value)
}

// Get returns the value stored under key.
func (s *Sharded[K, V, I]) Get(key K) (V, bool) {
	sh := s.shards[s.ShardOf(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	return sh.m.Get(key)
}

// Update applies fn to the value under key while the shard is locked.
// It reports whether key was present.
func (s *Sharded[K, V, I]) Update(key K, fn func(value *V)) bool {
	sh := s.shards[s.ShardOf(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	ref := sh.m.Ref(key)
	if ref == nil {
		return false
	}

	fn(ref)

	return true
}

// Delete removes key and reports whether it was present.
func (s *Sharded[K, V, I]) Delete(key K) bool {
	sh := s.shards[s.ShardOf(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	return sh.m.Delete(key)
}

// Len returns the total number of entries.
func (s *Sharded[K, V, I]) Len() int {
	total := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		total += sh.m.Len()
		sh.mu.Unlock()
	}

	return total
}

// Cap returns the total capacity.
func (s *Sharded[K, V, I]) Cap() int {
	return len(s.shards) * s.shards[0].m.Cap()
}

// Stats sums the tree statistics of all shards.
func (s *Sharded[K, V, I]) Stats() rbtree.Stats {
	var total rbtree.Stats

	for _, sh := range s.shards {
		sh.mu.Lock()
		st := sh.m.Tree().Stats()
		sh.mu.Unlock()

		total.Inserts += st.Inserts
		total.Erases += st.Erases
		total.Rotations += st.Rotations
		total.Repositions += st.Repositions
		total.Swaps += st.Swaps
	}

	return total
}

// Range calls fn for every entry, shard by shard, in key order within a
// shard. The shard is locked while fn runs; fn must not call back into s.
func (s *Sharded[K, V, I]) Range(fn func(key K, value V) bool) {
	for _, sh := range s.shards {
		if !s.rangeShard(sh, fn) {
			return
		}
	}
}

func (s *Sharded[K, V, I]) rangeShard(sh *shard[K, V, I], fn func(key K, value V) bool) bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	for key, value := range sh.m.All() {
		if !fn(key, value) {
			return false
		}
	}

	return true
}

// ShardPath returns the snapshot path of shard idx under basePath.
func ShardPath(basePath string, idx int) string {
	return fmt.Sprintf("%s.shard.%d", basePath, idx)
}

func manifestPersister(basePath string) (*persist.Persister[shardManifest], string) {
	return persist.NewPersister[shardManifest](filepath.Base(basePath)+".manifest", persist.NewJSONCodec()),
		filepath.Dir(basePath)
}

// SaveSnapshots writes every shard to "<basePath>.shard.N" concurrently,
// followed by a JSON manifest. Each shard stays locked while it is written.
func (s *Sharded[K, V, I]) SaveSnapshots(ctx context.Context, basePath string) error {
	group, groupCtx := errgroup.WithContext(ctx)
	manifest := shardManifest{Shards: len(s.shards), Lens: make([]int, len(s.shards))}

	for idx, sh := range s.shards {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			sh.mu.Lock()
			defer sh.mu.Unlock()

			manifest.Lens[idx] = sh.m.Len()

			return sh.m.SaveSnapshot(ShardPath(basePath, idx))
		})
	}

	err := group.Wait()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveShards, err)
	}

	want := shapeOf(s.shards[0].m)
	manifest.ShardCapacity = want.capacity
	manifest.Layout = want.layout
	manifest.Pool = want.pool

	persister, dir := manifestPersister(basePath)

	err = persister.Save(dir, &manifest)
	if err != nil {
		return fmt.Errorf("%w: manifest: %w", ErrSaveShards, err)
	}

	return nil
}

// LoadSnapshots replaces every shard with the snapshot saved under
// basePath. The manifest and every shard file must match the shard count,
// capacity, layout and pool kind. Shards are only replaced once all of them
// loaded.
func (s *Sharded[K, V, I]) LoadSnapshots(ctx context.Context, basePath string, maxShardSize int64) error {
	persister, dir := manifestPersister(basePath)

	manifest, err := persister.Load(dir)
	if err != nil {
		return fmt.Errorf("%w: manifest: %w", ErrLoadShards, err)
	}

	want := shapeOf(s.shards[0].m)

	if manifest.Shards != len(s.shards) || len(manifest.Lens) != manifest.Shards || manifest.shape() != want {
		return fmt.Errorf("%w: %d shards of %+v, want %d of %+v", ErrShardLayout,
			manifest.Shards, manifest.shape(), len(s.shards), want)
	}

	loaded := make([]*Map[K, V, I], len(s.shards))
	group, groupCtx := errgroup.WithContext(ctx)

	for idx := range s.shards {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			m, loadErr := LoadMap[K, V, I](ShardPath(basePath, idx), maxShardSize, s.compare, WithPolicy(s.policy))
			if loadErr != nil {
				return fmt.Errorf("shard %d: %w", idx, loadErr)
			}

			if got := shapeOf(m); got != want {
				return fmt.Errorf("%w: shard %d is %+v, manifest says %+v", ErrShardLayout, idx, got, want)
			}

			if m.Len() != manifest.Lens[idx] {
				return fmt.Errorf("%w: shard %d holds %d entries, manifest says %d",
					ErrShardLayout, idx, m.Len(), manifest.Lens[idx])
			}

			loaded[idx] = m

			return nil
		})
	}

	err = group.Wait()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadShards, err)
	}

	for idx, sh := range s.shards {
		sh.mu.Lock()
		sh.m = loaded[idx]
		sh.mu.Unlock()
	}

	return nil
}
