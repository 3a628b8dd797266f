package backend

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryShardRegistry is a simple in-process ShardRegistry, grounded on
// a config server's shard registry but narrowed to the read-mostly
// subset the manager needs: topology and tags, not persistence.
type InMemoryShardRegistry struct {
	mu     sync.RWMutex
	shards map[ShardID]ShardInfo
}

// NewInMemoryShardRegistry creates a registry seeded with shards.
func NewInMemoryShardRegistry(shards ...ShardInfo) *InMemoryShardRegistry {
	r := &InMemoryShardRegistry{shards: make(map[ShardID]ShardInfo, len(shards))}
	for _, s := range shards {
		if s.State == "" {
			s.State = ShardStateActive
		}
		r.shards[s.ID] = s
	}
	return r
}

// SetState updates a shard's reachability state.
func (r *InMemoryShardRegistry) SetState(id ShardID, state ShardState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.shards[id]; ok {
		s.State = state
		r.shards[id] = s
	}
}

// Shards implements ShardRegistry.
func (r *InMemoryShardRegistry) Shards(ctx context.Context) ([]ShardInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ShardInfo, 0, len(r.shards))
	for _, s := range r.shards {
		out = append(out, s)
	}
	return out, nil
}

// Shard implements ShardRegistry.
func (r *InMemoryShardRegistry) Shard(ctx context.Context, id ShardID) (ShardInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shards[id]
	if !ok {
		return ShardInfo{}, fmt.Errorf("shard not found: %s", id)
	}
	return s, nil
}
