package manager

import "github.com/mnohosten/chunkmeta/backend"

// Stats is a point-in-time introspection snapshot, mirroring
// ConfigServer.Stats()/ShardRouter.Stats() — useful for the demo binary
// and tests, not part of any invariant.
type Stats struct {
	Namespace     string
	ChunkCount    int
	RangeCount    int
	Version       uint64
	ChunksByShard map[backend.ShardID]int
}

// Stats returns a snapshot of the manager's current chunk and range counts.
func (m *ChunkManager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byShard := make(map[backend.ShardID]int)
	var version uint64
	for _, c := range m.chunks {
		byShard[c.Shard]++
		if c.LastMod > version {
			version = c.LastMod
		}
	}

	return Stats{
		Namespace:     m.namespace,
		ChunkCount:    len(m.chunks),
		RangeCount:    m.index.Len(),
		Version:       version,
		ChunksByShard: byShard,
	}
}
