package manager

import (
	"context"
	"fmt"

	"github.com/mnohosten/chunkmeta/backend"
	"github.com/mnohosten/chunkmeta/chunkindex"
)

// Drop invalidates the manager: it acquires the cluster namespace lock on
// every distinct shard currently hosting a chunk, drops the collection and
// resets the shard version on each, removes persisted chunk records, then
// discards in-memory state. Each lock wait is bounded by
// Config.SplitLockTimeout; if any lock cannot be acquired the manager is
// poisoned and every lock already acquired is released on return. Shards
// are locked in map iteration order, not a fixed global order.
func (m *ChunkManager) Drop(ctx context.Context) error {
	if err := m.checkHealthy(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	shards := make(map[backend.ShardID]bool)
	for _, c := range m.chunks {
		shards[c.Shard] = true
	}

	var releases []func()
	defer func() {
		for _, release := range releases {
			release()
		}
	}()
	for shard := range shards {
		lockCtx := ctx
		if m.config.SplitLockTimeout > 0 {
			var cancel context.CancelFunc
			lockCtx, cancel = context.WithTimeout(ctx, m.config.SplitLockTimeout)
			defer cancel()
		}
		release, err := m.locks.LockNamespaceOnServer(lockCtx, m.namespace, shard)
		if err != nil {
			m.poisoned.Store(true)
			return fmt.Errorf("acquiring cluster lock for drop of %s on %s (locks already held on other shards are released): %w", m.namespace, shard, err)
		}
		releases = append(releases, release)
	}

	for shard := range shards {
		if err := m.driver.DropCollection(ctx, shard, m.namespace); err != nil {
			return fmt.Errorf("dropping collection %s on %s: %w", m.namespace, shard, err)
		}
		if _, err := m.driver.RunCommand(ctx, shard, m.namespace, map[string]interface{}{
			"setShardVersion": true,
			"ns":              m.namespace,
			"version":         uint64(0),
			"authoritative":   true,
		}); err != nil {
			return fmt.Errorf("resetting shard version for %s on %s: %w", m.namespace, shard, err)
		}
	}

	if err := m.store.Remove(ctx, m.namespace); err != nil {
		return fmt.Errorf("removing chunk metadata for %s: %w", m.namespace, err)
	}

	m.chunks = nil
	m.index = chunkindex.New(m.pattern)
	m.shardVersionFloor = make(map[backend.ShardID]uint64)
	m.poisoned.Store(true)

	return m.audit.Drop(m.namespace, nil)
}
