package chunkindex

import (
	"testing"

	"github.com/mnohosten/chunkmeta/auditlog"
	"github.com/mnohosten/chunkmeta/backend"
	"github.com/mnohosten/chunkmeta/chunk"
	"github.com/mnohosten/chunkmeta/shardkey"
)

const shardA backend.ShardID = "a"
const shardB backend.ShardID = "b"

func testDeps() *chunk.Deps {
	pattern := shardkey.New("k")
	return &chunk.Deps{
		Driver:       backend.NewInMemoryDriver(),
		Locks:        backend.NewInProcLockService(0),
		Audit:        auditlog.New(nil),
		Pattern:      pattern,
		MaxChunkSize: 64 << 20,
	}
}

func key(v int) shardkey.Key {
	return shardkey.NewKey(map[string]interface{}{"k": v})
}

func TestCoalesceMergesAdjacentSameShardChunks(t *testing.T) {
	deps := testDeps()
	chunks := []*chunk.Chunk{
		chunk.New(deps, "db.coll", shardkey.MinKey(), key(10), shardA),
		chunk.New(deps, "db.coll", key(10), key(20), shardA),
		chunk.New(deps, "db.coll", key(20), shardkey.MaxKey(), shardB),
	}

	ix := New(deps.Pattern)
	ix.ReloadAll(chunks)

	if ix.Len() != 2 {
		t.Fatalf("expected 2 coalesced ranges (two same-shard chunks merge), got %d", ix.Len())
	}
	ranges := ix.Ranges()
	if ranges[0].Shard != shardA || deps.Pattern.Compare(ranges[0].Max, key(20)) != 0 {
		t.Fatalf("unexpected first range: %+v", ranges[0])
	}
	if ranges[1].Shard != shardB {
		t.Fatalf("unexpected second range: %+v", ranges[1])
	}
}

func TestFindReturnsCoveringRange(t *testing.T) {
	deps := testDeps()
	chunks := []*chunk.Chunk{
		chunk.New(deps, "db.coll", shardkey.MinKey(), key(10), shardA),
		chunk.New(deps, "db.coll", key(10), shardkey.MaxKey(), shardB),
	}
	ix := New(deps.Pattern)
	ix.ReloadAll(chunks)

	r, ok := ix.Find(key(5))
	if !ok || r.Shard != shardA {
		t.Fatalf("expected key 5 in shardA's range, got %+v ok=%v", r, ok)
	}
	r, ok = ix.Find(key(10))
	if !ok || r.Shard != shardB {
		t.Fatalf("expected key 10 (boundary) to fall in shardB's range (half-open), got %+v ok=%v", r, ok)
	}
}

func TestAssertValidAcceptsFullCoverage(t *testing.T) {
	deps := testDeps()
	chunks := []*chunk.Chunk{
		chunk.New(deps, "db.coll", shardkey.MinKey(), key(10), shardA),
		chunk.New(deps, "db.coll", key(10), shardkey.MaxKey(), shardB),
	}
	ix := New(deps.Pattern)
	ix.ReloadAll(chunks)

	if err := ix.AssertValid(chunks); err != nil {
		t.Fatalf("expected a fully covering index to validate, got %v", err)
	}
}

func TestRangesCoveringIncludesRangeContainingExclusiveUpperBound(t *testing.T) {
	deps := testDeps()
	chunks := []*chunk.Chunk{
		chunk.New(deps, "db.coll", shardkey.MinKey(), key(10), shardA),
		chunk.New(deps, "db.coll", key(10), shardkey.MaxKey(), shardB),
	}
	ix := New(deps.Pattern)
	ix.ReloadAll(chunks)

	// {k: {$gt: 5}} compiles to Lo=5 exclusive, hi=GlobalMax exclusive.
	// Every key above 5 is covered, including the whole of shardB's range,
	// which must not be dropped just because GlobalMax sits at its edge.
	ranges := ix.RangesCovering(key(5), shardkey.MaxKey(), false, false)
	if len(ranges) != 2 {
		t.Fatalf("expected both ranges to cover {$gt: 5}, got %d: %+v", len(ranges), ranges)
	}
	if ranges[0].Shard != shardA || ranges[1].Shard != shardB {
		t.Fatalf("expected shardA then shardB, got %+v", ranges)
	}
}

func TestReloadRangeKeepsIndexCoherentAfterSplit(t *testing.T) {
	deps := testDeps()
	chunks := []*chunk.Chunk{
		chunk.New(deps, "db.coll", shardkey.MinKey(), shardkey.MaxKey(), shardA),
	}
	ix := New(deps.Pattern)
	ix.ReloadAll(chunks)

	split := chunk.New(deps, "db.coll", key(5), shardkey.MaxKey(), shardA)
	chunks[0].Max = key(5)
	chunks = append(chunks, split)

	ix.ReloadRange(chunks, shardkey.MinKey(), shardkey.MaxKey())

	if err := ix.AssertValid(chunks); err != nil {
		t.Fatalf("AssertValid after incremental reload: %v", err)
	}
	// Both halves share a shard, so the coalesced view should still be one range.
	if ix.Len() != 1 {
		t.Fatalf("expected same-shard split halves to coalesce into 1 range, got %d", ix.Len())
	}
}
