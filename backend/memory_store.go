package backend

import "context"

// InMemoryMetadataStore is a process-local MetadataStore fake, for tests
// and the demo binary, standing in for a networked config database the
// way InMemoryDriver stands in for a networked shard.
type InMemoryMetadataStore struct {
	records  map[string][]ChunkRecord
	versions map[string]map[ShardID]uint64
}

// NewInMemoryMetadataStore creates an empty store.
func NewInMemoryMetadataStore() *InMemoryMetadataStore {
	return &InMemoryMetadataStore{
		records:  make(map[string][]ChunkRecord),
		versions: make(map[string]map[ShardID]uint64),
	}
}

// Load returns the persisted records for namespace, or an empty slice.
func (s *InMemoryMetadataStore) Load(ctx context.Context, namespace string) ([]ChunkRecord, error) {
	out := append([]ChunkRecord(nil), s.records[namespace]...)
	return out, nil
}

// Save replaces the persisted records for namespace.
func (s *InMemoryMetadataStore) Save(ctx context.Context, namespace string, records []ChunkRecord) error {
	s.records[namespace] = append([]ChunkRecord(nil), records...)
	return nil
}

// Remove deletes every persisted record and shard version for namespace.
func (s *InMemoryMetadataStore) Remove(ctx context.Context, namespace string) error {
	delete(s.records, namespace)
	delete(s.versions, namespace)
	return nil
}

// SetShardVersion records the lastmod high-water mark for shard.
func (s *InMemoryMetadataStore) SetShardVersion(ctx context.Context, namespace string, shard ShardID, version uint64) error {
	if s.versions[namespace] == nil {
		s.versions[namespace] = make(map[ShardID]uint64)
	}
	s.versions[namespace][shard] = version
	return nil
}

// ShardVersion returns the last recorded lastmod high-water mark for shard.
func (s *InMemoryMetadataStore) ShardVersion(ctx context.Context, namespace string, shard ShardID) (uint64, error) {
	return s.versions[namespace][shard], nil
}
