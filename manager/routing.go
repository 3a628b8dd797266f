package manager

import (
	"context"
	"fmt"
	"sort"

	"github.com/mnohosten/chunkmeta/backend"
	"github.com/mnohosten/chunkmeta/chunk"
	"github.com/mnohosten/chunkmeta/shardkey"
)

// FindChunk extracts doc's shard key and returns the owning chunk. A miss
// against the current chunk map triggers exactly one reload-and-retry; a
// second miss poisons the manager.
func (m *ChunkManager) FindChunk(ctx context.Context, doc map[string]interface{}) (*chunk.Chunk, error) {
	if err := m.checkHealthy(); err != nil {
		return nil, err
	}

	key, err := m.pattern.ExtractKey(doc)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	c, ok := m.findChunkLocked(key)
	m.mu.RUnlock()
	if ok && c.ContainsKey(key) {
		return c, nil
	}

	if err := m.Reload(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	c, ok = m.findChunkLocked(key)
	m.mu.RUnlock()
	if !ok || !c.ContainsKey(key) {
		m.poisoned.Store(true)
		return nil, fmt.Errorf("find_chunk: no chunk contains document in %s after reload: %w", m.namespace, ErrConsistency)
	}
	return c, nil
}

// findChunkLocked must be called with m.mu held for at least reading.
func (m *ChunkManager) findChunkLocked(key shardkey.Key) (*chunk.Chunk, bool) {
	i := sort.Search(len(m.chunks), func(i int) bool {
		return m.pattern.Compare(m.chunks[i].Max, key) > 0
	})
	if i >= len(m.chunks) {
		return nil, false
	}
	return m.chunks[i], true
}

// AllShards returns every distinct shard currently holding a chunk.
func (m *ChunkManager) AllShards(ctx context.Context) ([]backend.ShardID, error) {
	if err := m.checkHealthy(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[backend.ShardID]bool)
	var out []backend.ShardID
	for _, c := range m.chunks {
		if !seen[c.Shard] {
			seen[c.Shard] = true
			out = append(out, c.Shard)
		}
	}
	return out, nil
}

// ChunksForQuery compiles predicate's restriction to the shard key's first
// field into the coalesced ranges that could possibly satisfy it. A
// predicate that can never match yields a nil result (zero chunks); one
// that leaves the field unbounded yields every range in the index.
func (m *ChunkManager) ChunksForQuery(ctx context.Context, predicate map[string]interface{}) ([]chunk.Range, error) {
	if err := m.checkHealthy(); err != nil {
		return nil, err
	}

	first := m.pattern.FirstField()
	fr, err := m.pattern.RangeForField(first, predicate)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case fr.Empty:
		return nil, nil
	case fr.Equality:
		key := shardkey.NewKey(map[string]interface{}{first: fr.Value})
		r, ok := m.index.Find(key)
		if !ok {
			return nil, nil
		}
		return []chunk.Range{r}, nil
	case fr.Unbounded:
		return append([]chunk.Range(nil), m.index.Ranges()...), nil
	default:
		return m.rangesForIntervals(first, fr.Intervals), nil
	}
}

func (m *ChunkManager) rangesForIntervals(field string, intervals []shardkey.Interval) []chunk.Range {
	seen := make(map[string]bool)
	var out []chunk.Range
	for _, iv := range intervals {
		lo, hi := m.pattern.GlobalMin(), m.pattern.GlobalMax()
		loInclusive, hiInclusive := true, false
		if iv.HasLo {
			lo = shardkey.NewKey(map[string]interface{}{field: iv.Lo})
			loInclusive = iv.LoInclusive
		}
		if iv.HasHi {
			hi = shardkey.NewKey(map[string]interface{}{field: iv.Hi})
			hiInclusive = iv.HiInclusive
		}
		for _, r := range m.index.RangesCovering(lo, hi, loInclusive, hiInclusive) {
			key := fmt.Sprintf("%s|%s|%s", r.Shard, r.Min, r.Max)
			if !seen[key] {
				seen[key] = true
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.pattern.Compare(out[i].Min, out[j].Min) < 0
	})
	return out
}

// ShardsForQuery projects ChunksForQuery's ranges onto the set of shards
// that must be contacted to satisfy predicate. An unbounded restriction
// (the predicate says nothing useful about the shard key) returns every
// shard currently holding a chunk.
func (m *ChunkManager) ShardsForQuery(ctx context.Context, predicate map[string]interface{}) ([]backend.ShardID, error) {
	if err := m.checkHealthy(); err != nil {
		return nil, err
	}

	first := m.pattern.FirstField()
	fr, err := m.pattern.RangeForField(first, predicate)
	if err != nil {
		return nil, err
	}
	if fr.Unbounded {
		return m.AllShards(ctx)
	}

	ranges, err := m.ChunksForQuery(ctx, predicate)
	if err != nil {
		return nil, err
	}

	seen := make(map[backend.ShardID]bool)
	var out []backend.ShardID
	for _, r := range ranges {
		if !seen[r.Shard] {
			seen[r.Shard] = true
			out = append(out, r.Shard)
		}
	}
	return out, nil
}
