// Package chunkindex maintains the coalesced range view over a chunk map:
// the maximal runs of adjacent same-shard chunks that routing consults
// instead of walking the full chunk list.
package chunkindex

import (
	"fmt"
	"sort"

	"github.com/mnohosten/chunkmeta/chunk"
	"github.com/mnohosten/chunkmeta/shardkey"
)

type entry struct {
	max   shardkey.Key
	value chunk.Range
}

// Index is the ordered max_key -> Range view. The zero value is not
// usable; construct with New.
type Index struct {
	pattern *shardkey.Pattern
	entries []entry
}

// New creates an empty index for the given shard-key pattern.
func New(pattern *shardkey.Pattern) *Index {
	return &Index{pattern: pattern}
}

// Len returns the number of coalesced ranges currently held.
func (ix *Index) Len() int { return len(ix.entries) }

// Ranges returns the coalesced ranges in ascending order. The caller must
// not mutate the result.
func (ix *Index) Ranges() []chunk.Range {
	out := make([]chunk.Range, len(ix.entries))
	for i, e := range ix.entries {
		out[i] = e.value
	}
	return out
}

func (ix *Index) upperBound(key shardkey.Key) int {
	return sort.Search(len(ix.entries), func(i int) bool {
		return ix.pattern.Compare(ix.entries[i].max, key) > 0
	})
}

func (ix *Index) lowerBound(key shardkey.Key) int {
	return sort.Search(len(ix.entries), func(i int) bool {
		return ix.pattern.Compare(ix.entries[i].max, key) >= 0
	})
}

// Find returns the range covering key, or false if key falls outside
// every coalesced range.
func (ix *Index) Find(key shardkey.Key) (chunk.Range, bool) {
	i := ix.upperBound(key)
	if i >= len(ix.entries) {
		return chunk.Range{}, false
	}
	return ix.entries[i].value, true
}

// RangesCovering returns, in ascending order, every range whose [Min,Max)
// intersects [lo,hi) under the given inclusivity flags, deduplicated.
// Half-open interval bounds follow the same upper/lower_bound convention
// as chunk-map lookups: an inclusive bound uses upper_bound, an exclusive
// bound uses lower_bound.
func (ix *Index) RangesCovering(lo, hi shardkey.Key, loInclusive, hiInclusive bool) []chunk.Range {
	var loIdx int
	if loInclusive {
		loIdx = ix.upperBound(lo)
	} else {
		loIdx = ix.lowerBound(lo)
	}
	var hiIdx int
	if hiInclusive {
		hiIdx = ix.upperBound(hi)
	} else {
		hiIdx = ix.lowerBound(hi)
	}
	if loIdx < 0 {
		loIdx = 0
	}
	// hiIdx above is the index of the last overlapping range (or
	// len(entries) if none); the slice below is half-open, so it needs
	// one past that to actually include it.
	hiIdx++
	if hiIdx > len(ix.entries) {
		hiIdx = len(ix.entries)
	}
	if hiIdx <= loIdx {
		return nil
	}
	out := make([]chunk.Range, 0, hiIdx-loIdx)
	for _, e := range ix.entries[loIdx:hiIdx] {
		out = append(out, e.value)
	}
	return out
}

func coalesce(pattern *shardkey.Pattern, chunks []*chunk.Chunk) []entry {
	if len(chunks) == 0 {
		return nil
	}
	var out []entry
	runStart := 0
	for i := 1; i <= len(chunks); i++ {
		if i == len(chunks) || chunks[i].Shard != chunks[runStart].Shard {
			r := chunk.RangeFromChunks(chunks[runStart:i])
			out = append(out, entry{max: r.Max, value: r})
			runStart = i
		}
	}
	return out
}

// ReloadAll clears the index and recoalesces it from scratch. chunks must
// be sorted ascending by Max and span the manager's entire chunk map.
func (ix *Index) ReloadAll(chunks []*chunk.Chunk) {
	ix.entries = coalesce(ix.pattern, chunks)
}

// ReloadRange incrementally recoalesces the slice of the index spanning
// [min, max), then attempts to merge the resulting low boundary with its
// predecessor and the high boundary with its successor when they share a
// shard. chunks must be sorted ascending by Max and span the manager's
// entire chunk map.
func (ix *Index) ReloadRange(chunks []*chunk.Chunk, min, max shardkey.Key) {
	if len(ix.entries) == 0 {
		ix.ReloadAll(chunks)
		return
	}

	low := ix.upperBound(min)
	if low >= len(ix.entries) {
		low = len(ix.entries) - 1
	}
	high := ix.lowerBound(max)
	if high >= len(ix.entries) {
		high = len(ix.entries) - 1
	}
	if high < low {
		high = low
	}

	spanMin := ix.entries[low].value.Min
	spanMax := ix.entries[high].value.Max

	chunkLow := sort.Search(len(chunks), func(i int) bool {
		return ix.pattern.Compare(chunks[i].Max, spanMin) > 0
	})
	chunkHigh := sort.Search(len(chunks), func(i int) bool {
		return ix.pattern.Compare(chunks[i].Max, spanMax) >= 0
	})
	if chunkHigh >= len(chunks) {
		chunkHigh = len(chunks) - 1
	}
	if chunkHigh < chunkLow {
		chunkHigh = chunkLow
	}

	replacement := coalesce(ix.pattern, chunks[chunkLow:chunkHigh+1])

	merged := make([]entry, 0, len(ix.entries)-(high-low+1)+len(replacement))
	merged = append(merged, ix.entries[:low]...)
	merged = append(merged, replacement...)
	merged = append(merged, ix.entries[high+1:]...)
	ix.entries = merged

	ix.mergeAt(low - 1)
	ix.mergeAt(ix.lowerBound(spanMax))
}

// mergeAt merges entries[i] and entries[i+1] if they are adjacent and
// share a shard.
func (ix *Index) mergeAt(i int) {
	if i < 0 || i+1 >= len(ix.entries) {
		return
	}
	a, b := ix.entries[i].value, ix.entries[i+1].value
	if !chunk.CanMerge(ix.pattern, a, b) {
		return
	}
	merged := chunk.MergeRanges(ix.pattern, a, b)
	ix.entries[i] = entry{max: merged.Max, value: merged}
	ix.entries = append(ix.entries[:i+1], ix.entries[i+2:]...)
}

// AssertValid enforces every ChunkRangeIndex invariant: the first range
// starts at global min and the last ends at global max, consecutive
// ranges meet with no gap or overlap, and every chunk is covered by
// exactly one range sharing its shard.
func (ix *Index) AssertValid(chunks []*chunk.Chunk) error {
	if len(ix.entries) == 0 {
		if len(chunks) == 0 {
			return nil
		}
		return fmt.Errorf("chunkindex: empty index but %d chunks present", len(chunks))
	}

	if !ix.entries[0].value.Min.IsMinKey() {
		return fmt.Errorf("chunkindex: first range does not start at global min")
	}
	if !ix.entries[len(ix.entries)-1].value.Max.IsMaxKey() {
		return fmt.Errorf("chunkindex: last range does not end at global max")
	}
	for i := 1; i < len(ix.entries); i++ {
		prev, next := ix.entries[i-1].value, ix.entries[i].value
		if ix.pattern.Compare(prev.Max, next.Min) != 0 {
			return fmt.Errorf("chunkindex: gap or overlap between range ending %s and range starting %s", prev.Max, next.Min)
		}
		if ix.pattern.Compare(ix.entries[i-1].max, prev.Max) != 0 {
			return fmt.Errorf("chunkindex: map key does not equal range max")
		}
	}

	for _, c := range chunks {
		r, ok := ix.Find(c.Min)
		if !ok {
			return fmt.Errorf("chunkindex: chunk %s not covered by any range", c.ID)
		}
		if r.Shard != c.Shard {
			return fmt.Errorf("chunkindex: chunk %s on shard %s covered by range on shard %s", c.ID, c.Shard, r.Shard)
		}
		if ix.pattern.Compare(r.Min, c.Min) > 0 || ix.pattern.Compare(c.Max, r.Max) > 0 {
			return fmt.Errorf("chunkindex: chunk %s not fully contained by its covering range", c.ID)
		}
	}
	return nil
}
