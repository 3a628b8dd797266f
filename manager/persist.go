package manager

import (
	"context"
	"fmt"

	"github.com/mnohosten/chunkmeta/backend"
)

// Save persists every modified chunk, assigning each a fresh server-side
// version, then re-ensures the shard-key index on every shard currently
// holding a chunk. Per §5 this is a read-locked operation: it writes
// through chunk-local state (each chunk serializes its own version
// assignment) rather than mutating the manager's chunk list.
func (m *ChunkManager) Save(ctx context.Context) error {
	if err := m.checkHealthy(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.persist(ctx)
}

// persist must be called with m.mu held for reading or writing.
func (m *ChunkManager) persist(ctx context.Context) error {
	distinctShards := make(map[backend.ShardID]bool, len(m.chunks))
	for _, c := range m.chunks {
		if c.Modified() {
			c.AssignVersion(nextSequence())
		}
		distinctShards[c.Shard] = true
	}

	records := make([]backend.ChunkRecord, len(m.chunks))
	for i, c := range m.chunks {
		records[i] = c.ToRecord()
	}
	if err := m.store.Save(ctx, m.namespace, records); err != nil {
		return fmt.Errorf("persisting chunk metadata for %s: %w", m.namespace, err)
	}

	for shard := range distinctShards {
		if err := m.driver.EnsureIndex(ctx, shard, m.namespace, m.pattern.FieldNames()); err != nil {
			return fmt.Errorf("ensuring index on %s: %w", shard, err)
		}
	}

	m.sequenceNumber = nextSequence()
	return nil
}

// EnsureIndex re-ensures the shard-key index on every shard currently
// holding a chunk. Idempotent per shard.
func (m *ChunkManager) EnsureIndex(ctx context.Context) error {
	if err := m.checkHealthy(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[backend.ShardID]bool)
	for _, c := range m.chunks {
		if seen[c.Shard] {
			continue
		}
		seen[c.Shard] = true
		if err := m.driver.EnsureIndex(ctx, c.Shard, m.namespace, m.pattern.FieldNames()); err != nil {
			return fmt.Errorf("ensuring index on %s: %w", c.Shard, err)
		}
	}
	return nil
}

// GetVersion returns max(lastmod) over every chunk this manager owns.
func (m *ChunkManager) GetVersion() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var v uint64
	for _, c := range m.chunks {
		if c.LastMod > v {
			v = c.LastMod
		}
	}
	return v
}

// GetVersionForShard returns max(lastmod) restricted to chunks on shard,
// or the manager's recorded floor version if higher (set when a migration
// leaves a shard with zero chunks).
func (m *ChunkManager) GetVersionForShard(shard backend.ShardID) uint64 {
	return m.versionForShard(shard)
}
