package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// FileMetadataStore persists one JSON document per namespace under a data
// directory, the same load/save/atomic-rename shape a config
// server uses for its own metadata file, with the snapshot optionally
// zstd-compressed the way pkg/compression lets collection data be.
type FileMetadataStore struct {
	dataDir  string
	compress bool

	mu  sync.Mutex
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewFileMetadataStore creates a store rooted at dataDir, creating the
// directory if needed. When compress is true, snapshots are zstd-encoded
// before being written to disk.
func NewFileMetadataStore(dataDir string, compress bool) (*FileMetadataStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating metadata store directory: %w", err)
	}
	s := &FileMetadataStore{dataDir: dataDir, compress: compress}
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		s.enc, s.dec = enc, dec
	}
	return s, nil
}

func (s *FileMetadataStore) namespacePath(namespace string) string {
	return filepath.Join(s.dataDir, namespace+".chunks.json")
}

func (s *FileMetadataStore) versionPath(namespace string) string {
	return filepath.Join(s.dataDir, namespace+".versions.json")
}

// Load reads the persisted chunk records for namespace. A namespace with no
// file yet returns an empty, non-nil slice.
func (s *FileMetadataStore) Load(ctx context.Context, namespace string) ([]ChunkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.namespacePath(namespace))
	if os.IsNotExist(err) {
		return []ChunkRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chunk metadata for %s: %w", namespace, err)
	}

	if s.compress {
		raw, err = s.dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing chunk metadata for %s: %w", namespace, err)
		}
	}

	var records []ChunkRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk metadata for %s: %w", namespace, err)
	}
	return records, nil
}

// Save atomically replaces the persisted chunk records for namespace.
func (s *FileMetadataStore) Save(ctx context.Context, namespace string, records []ChunkRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling chunk metadata for %s: %w", namespace, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.compress {
		data = s.enc.EncodeAll(data, nil)
	}

	path := s.namespacePath(namespace)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing chunk metadata for %s: %w", namespace, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming chunk metadata for %s: %w", namespace, err)
	}
	return nil
}

// Remove deletes every persisted record for namespace, used by drop.
func (s *FileMetadataStore) Remove(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.namespacePath(namespace)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing chunk metadata for %s: %w", namespace, err)
	}
	if err := os.Remove(s.versionPath(namespace)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing shard versions for %s: %w", namespace, err)
	}
	return nil
}

type versionFile map[ShardID]uint64

func (s *FileMetadataStore) readVersions(namespace string) (versionFile, error) {
	raw, err := os.ReadFile(s.versionPath(namespace))
	if os.IsNotExist(err) {
		return versionFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	var v versionFile
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// SetShardVersion persists the lastmod high-water mark for shard.
func (s *FileMetadataStore) SetShardVersion(ctx context.Context, namespace string, shard ShardID, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.readVersions(namespace)
	if err != nil {
		return fmt.Errorf("reading shard versions for %s: %w", namespace, err)
	}
	versions[shard] = version

	data, err := json.Marshal(versions)
	if err != nil {
		return fmt.Errorf("marshaling shard versions for %s: %w", namespace, err)
	}
	path := s.versionPath(namespace)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing shard versions for %s: %w", namespace, err)
	}
	return os.Rename(tmp, path)
}

// ShardVersion returns the last recorded lastmod high-water mark for shard.
func (s *FileMetadataStore) ShardVersion(ctx context.Context, namespace string, shard ShardID) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.readVersions(namespace)
	if err != nil {
		return 0, fmt.Errorf("reading shard versions for %s: %w", namespace, err)
	}
	return versions[shard], nil
}
