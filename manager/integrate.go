package manager

import (
	"context"
	"fmt"

	"github.com/mnohosten/chunkmeta/backend"
	"github.com/mnohosten/chunkmeta/chunk"
)

// integrateSplit inserts newChunk into the chunk vector immediately after
// original, refreshes the range index over the affected span, and
// persists both chunks, all under the write lock — the manager-side half
// of Chunk.Split, invoked via Deps.IntegrateSplit.
func (m *ChunkManager) integrateSplit(ctx context.Context, original, newChunk *chunk.Chunk) error {
	if err := m.checkHealthy(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, c := range m.chunks {
		if c == original {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.poisoned.Store(true)
		return fmt.Errorf("split target chunk %s missing from manager state: %w", original.ID, ErrConsistency)
	}

	grown := make([]*chunk.Chunk, 0, len(m.chunks)+1)
	grown = append(grown, m.chunks[:idx+1]...)
	grown = append(grown, newChunk)
	grown = append(grown, m.chunks[idx+1:]...)
	m.chunks = grown

	m.index.ReloadRange(m.chunks, original.Min, newChunk.Max)

	if err := m.persist(ctx); err != nil {
		return err
	}

	return m.audit.Split(m.namespace, map[string]interface{}{
		"original": original.ID,
		"new":      newChunk.ID,
		"at":       newChunk.Min.String(),
		"shard":    string(original.Shard),
	})
}

// integrateMigrate refreshes the range index after moved's shard has
// already been reassigned locally, persists, and asserts the source
// shard's version strictly increased — bumping a persisted floor version
// when the source shard was left with zero chunks, per the migrate
// protocol's "bump the old shard's version even with no chunks left"
// requirement.
func (m *ChunkManager) integrateMigrate(ctx context.Context, moved *chunk.Chunk, fromShard backend.ShardID) error {
	if err := m.checkHealthy(); err != nil {
		return err
	}

	m.mu.Lock()

	// moved already carries its new shard, so its lastmod is folded back in
	// to get the source shard's version from before the move.
	oldVersion := m.versionForShardLocked(fromShard)
	if moved.LastMod > oldVersion {
		oldVersion = moved.LastMod
	}

	m.index.ReloadRange(m.chunks, moved.Min, moved.Max)

	if err := m.persist(ctx); err != nil {
		m.mu.Unlock()
		return err
	}

	newVersion := m.versionForShardLocked(fromShard)
	switch {
	case newVersion == 0 && oldVersion > 0:
		newVersion = oldVersion + 1
		m.shardVersionFloor[fromShard] = newVersion
		if err := m.store.SetShardVersion(ctx, m.namespace, fromShard, newVersion); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("persisting floor version for %s: %w", fromShard, err)
		}
	case newVersion <= oldVersion:
		m.poisoned.Store(true)
		m.mu.Unlock()
		return fmt.Errorf("shard %s version did not increase (%d -> %d): %w", fromShard, oldVersion, newVersion, ErrConsistency)
	}
	m.mu.Unlock()

	return m.audit.Migrate(m.namespace, map[string]interface{}{
		"chunk":   moved.ID,
		"from":    string(fromShard),
		"to":      string(moved.Shard),
		"version": newVersion,
	})
}
