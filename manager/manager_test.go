package manager

import (
	"context"
	"testing"

	"github.com/mnohosten/chunkmeta/backend"
	"github.com/mnohosten/chunkmeta/shardkey"
)

const shardA backend.ShardID = "shardA"
const shardB backend.ShardID = "shardB"

func newTestManager(t *testing.T, driver *backend.InMemoryDriver) *ChunkManager {
	t.Helper()
	registry := backend.NewInMemoryShardRegistry(
		backend.ShardInfo{ID: shardA, State: backend.ShardStateActive},
		backend.ShardInfo{ID: shardB, State: backend.ShardStateActive},
	)
	m, err := New(context.Background(), Options{
		Namespace: "testdb.coll",
		Pattern:   shardkey.New("k"),
		Primary:   shardA,
		Driver:    driver,
		Store:     backend.NewInMemoryMetadataStore(),
		Locks:     backend.NewInProcLockService(0),
		Registry:  registry,
		Config:    DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestBootstrapCreatesSingleGlobalChunk(t *testing.T) {
	m := newTestManager(t, backend.NewInMemoryDriver())
	chunks := m.Chunks()
	if len(chunks) != 1 {
		t.Fatalf("expected 1 bootstrap chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if !c.MinIsInf() || !c.MaxIsInf() {
		t.Fatalf("bootstrap chunk must span [MinKey, MaxKey)")
	}
	if c.Shard != shardA {
		t.Fatalf("bootstrap chunk should be on primary shard, got %s", c.Shard)
	}
	if err := m.AssertValid(); err != nil {
		t.Fatalf("AssertValid: %v", err)
	}
}

func TestFindChunkRoutesToContainingChunk(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, backend.NewInMemoryDriver())

	c, err := m.FindChunk(ctx, map[string]interface{}{"k": 42})
	if err != nil {
		t.Fatalf("FindChunk: %v", err)
	}
	if !c.ContainsKey(shardkey.NewKey(map[string]interface{}{"k": 42})) {
		t.Fatalf("returned chunk does not contain the looked-up key")
	}
}

func TestSplitProducesTwoDisjointChunks(t *testing.T) {
	ctx := context.Background()
	driver := backend.NewInMemoryDriver()
	for i := 0; i < 10; i++ {
		driver.Insert(shardA, "testdb.coll", map[string]interface{}{"k": i})
	}
	m := newTestManager(t, driver)

	orig := m.Chunks()[0]
	at := shardkey.NewKey(map[string]interface{}{"k": 5})
	newChunk, err := m.Split(ctx, orig, at)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	chunks := m.Chunks()
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks after split, got %d", len(chunks))
	}
	if err := m.AssertValid(); err != nil {
		t.Fatalf("AssertValid after split: %v", err)
	}

	lowKey := shardkey.NewKey(map[string]interface{}{"k": 0})
	highKey := shardkey.NewKey(map[string]interface{}{"k": 9})
	if !orig.ContainsKey(lowKey) {
		t.Fatalf("original chunk should retain low end")
	}
	if !newChunk.ContainsKey(highKey) {
		t.Fatalf("new chunk should hold high end")
	}
	if orig.ContainsKey(highKey) {
		t.Fatalf("original chunk should no longer contain the high end")
	}
}

func TestMigrateIncreasesSourceVersionStrictly(t *testing.T) {
	ctx := context.Background()
	driver := backend.NewInMemoryDriver()
	for i := 0; i < 10; i++ {
		driver.Insert(shardA, "testdb.coll", map[string]interface{}{"k": i})
	}
	m := newTestManager(t, driver)

	orig := m.Chunks()[0]
	at := shardkey.NewKey(map[string]interface{}{"k": 5})
	newChunk, err := m.Split(ctx, orig, at)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	beforeVersion := m.versionForShard(shardA)

	if err := m.Migrate(ctx, newChunk, shardB); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	afterVersion := m.versionForShard(shardA)
	if afterVersion <= beforeVersion {
		t.Fatalf("expected source shard version to strictly increase: before=%d after=%d", beforeVersion, afterVersion)
	}
	if newChunk.Shard != shardB {
		t.Fatalf("expected migrated chunk to be reassigned to destination shard")
	}
	if err := m.AssertValid(); err != nil {
		t.Fatalf("AssertValid after migrate: %v", err)
	}
}

func TestDropClearsAllState(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, backend.NewInMemoryDriver())

	if err := m.Drop(ctx); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if len(m.Chunks()) != 0 {
		t.Fatalf("expected no chunks after drop")
	}
	if !m.Poisoned() {
		t.Fatalf("manager should be poisoned after drop until reload")
	}

	if _, err := m.FindChunk(ctx, map[string]interface{}{"k": 1}); err == nil {
		t.Fatalf("expected operations against a poisoned manager to fail")
	}
}

func TestChunksForQueryEqualityReturnsSingleRange(t *testing.T) {
	ctx := context.Background()
	driver := backend.NewInMemoryDriver()
	for i := 0; i < 10; i++ {
		driver.Insert(shardA, "testdb.coll", map[string]interface{}{"k": i})
	}
	m := newTestManager(t, driver)

	orig := m.Chunks()[0]
	at := shardkey.NewKey(map[string]interface{}{"k": 5})
	if _, err := m.Split(ctx, orig, at); err != nil {
		t.Fatalf("Split: %v", err)
	}

	ranges, err := m.ChunksForQuery(ctx, map[string]interface{}{"k": 7})
	if err != nil {
		t.Fatalf("ChunksForQuery: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("expected equality predicate to resolve to exactly 1 range, got %d", len(ranges))
	}
}

func TestShardsForQueryBoundedPredicateIncludesUpperShard(t *testing.T) {
	ctx := context.Background()
	driver := backend.NewInMemoryDriver()
	for i := 0; i < 10; i++ {
		driver.Insert(shardA, "testdb.coll", map[string]interface{}{"k": i})
	}
	m := newTestManager(t, driver)

	orig := m.Chunks()[0]
	at := shardkey.NewKey(map[string]interface{}{"k": 5})
	newChunk, err := m.Split(ctx, orig, at)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if err := m.Migrate(ctx, newChunk, shardB); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Ranges are now [MinKey,5)@shardA and [5,MaxKey)@shardB. A half-bounded
	// predicate whose upper edge is unbounded must still reach shardB, the
	// range abutting GlobalMax, not just the range containing the lower
	// bound.
	shards, err := m.ShardsForQuery(ctx, map[string]interface{}{"k": map[string]interface{}{"$gt": 0}})
	if err != nil {
		t.Fatalf("ShardsForQuery: %v", err)
	}
	if len(shards) != 2 {
		t.Fatalf("expected {$gt: 0} to reach both shards, got %d: %+v", len(shards), shards)
	}
}

func TestShardsForQueryUnboundedReturnsAllShards(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, backend.NewInMemoryDriver())

	shards, err := m.ShardsForQuery(ctx, map[string]interface{}{})
	if err != nil {
		t.Fatalf("ShardsForQuery: %v", err)
	}
	if len(shards) != 1 {
		t.Fatalf("expected 1 shard (bootstrap chunk's shard) for an unbounded query, got %d", len(shards))
	}
}
