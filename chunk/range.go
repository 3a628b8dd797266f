package chunk

import (
	"fmt"

	"github.com/mnohosten/chunkmeta/backend"
	"github.com/mnohosten/chunkmeta/shardkey"
)

// Range is an immutable, coalesced run of adjacent same-shard chunks,
// used only for routing. It carries no version and no back-reference to
// any manager — ChunkRangeIndex shares it by value among many readers.
type Range struct {
	Shard    backend.ShardID
	Min, Max shardkey.Key
}

// RangeFromChunks builds a Range spanning a contiguous slice of chunks
// that all share one shard. It panics if chunks is empty or mixes shards —
// callers (the range index) are expected to have already partitioned by
// shard boundary.
func RangeFromChunks(chunks []*Chunk) Range {
	if len(chunks) == 0 {
		panic("chunk: RangeFromChunks called with no chunks")
	}
	shard := chunks[0].Shard
	for _, c := range chunks[1:] {
		if c.Shard != shard {
			panic(fmt.Sprintf("chunk: RangeFromChunks: mixed shards %s and %s", shard, c.Shard))
		}
	}
	return Range{Shard: shard, Min: chunks[0].Min, Max: chunks[len(chunks)-1].Max}
}

// MergeRanges coalesces two adjacent ranges sharing a shard and meeting
// endpoints (a.Max == b.Min) into one. It panics on a mismatched shard or
// a gap/overlap — callers must check CanMerge first.
func MergeRanges(pattern *shardkey.Pattern, a, b Range) Range {
	if a.Shard != b.Shard {
		panic(fmt.Sprintf("chunk: MergeRanges: shard mismatch %s vs %s", a.Shard, b.Shard))
	}
	if pattern.Compare(a.Max, b.Min) != 0 {
		panic("chunk: MergeRanges: ranges are not adjacent")
	}
	return Range{Shard: a.Shard, Min: a.Min, Max: b.Max}
}

// CanMerge reports whether a and b are adjacent, same-shard ranges that
// MergeRanges may combine.
func CanMerge(pattern *shardkey.Pattern, a, b Range) bool {
	return a.Shard == b.Shard && pattern.Compare(a.Max, b.Min) == 0
}

// Contains reports whether key falls in [Min, Max).
func (r Range) Contains(pattern *shardkey.Pattern, key shardkey.Key) bool {
	return pattern.Compare(r.Min, key) <= 0 && pattern.Compare(key, r.Max) < 0
}
