package manager

import (
	"context"
	"fmt"

	"github.com/mnohosten/chunkmeta/backend"
	"github.com/mnohosten/chunkmeta/chunk"
	"github.com/mnohosten/chunkmeta/shardkey"
)

// Split divides c at m. c must be a chunk currently owned by this
// manager. On success the manager's chunk map and range index already
// reflect both halves.
func (m *ChunkManager) Split(ctx context.Context, c *chunk.Chunk, at shardkey.Key) (*chunk.Chunk, error) {
	if err := m.checkHealthy(); err != nil {
		return nil, err
	}
	newChunk, err := c.Split(ctx, at)
	if err != nil {
		return nil, err
	}
	if err := m.integrateSplit(ctx, c, newChunk); err != nil {
		return nil, err
	}
	return newChunk, nil
}

// Migrate moves c to shard to. c must be a chunk currently owned by this
// manager.
func (m *ChunkManager) Migrate(ctx context.Context, c *chunk.Chunk, to backend.ShardID) error {
	if err := m.checkHealthy(); err != nil {
		return err
	}
	return c.MoveAndCommit(ctx, to)
}

// SplitIfShould is the autosplit trigger write paths call after writing
// bytesWritten bytes into c.
func (m *ChunkManager) SplitIfShould(ctx context.Context, c *chunk.Chunk, bytesWritten int64) (bool, error) {
	if err := m.checkHealthy(); err != nil {
		return false, err
	}
	return c.SplitIfShould(ctx, bytesWritten)
}

// ChunkByID looks up a chunk this manager currently owns by its persisted
// id, for callers (tests, the demo) that hold an id rather than a pointer.
func (m *ChunkManager) ChunkByID(id string) (*chunk.Chunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.chunks {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Chunks returns a snapshot of the manager's chunks in ascending Max
// order. Callers must not mutate the result slice itself, though chunk
// methods remain safe to call.
func (m *ChunkManager) Chunks() []*chunk.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*chunk.Chunk, len(m.chunks))
	copy(out, m.chunks)
	return out
}

// AssertValid runs the range index's invariant checks against the current
// chunk map, returning an error describing the first violation found.
func (m *ChunkManager) AssertValid() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.index.AssertValid(m.chunks); err != nil {
		return fmt.Errorf("manager %s: %w", m.namespace, err)
	}
	return nil
}
