// Package manager implements ChunkManager: the owner of all chunks for one
// sharded namespace. It serves routing queries, orchestrates split and
// migrate, persists state through a MetadataStore, and holds the
// per-namespace reader/writer lock and version bookkeeping.
package manager

import "time"

// Config holds the tunables a ChunkManager needs, the same
// struct-plus-DefaultConfig shape used for database and
// config-server configuration.
type Config struct {
	// MaxChunkSize is the byte threshold past which split_if_should
	// triggers a split.
	MaxChunkSize int64

	// DataDir roots the file-backed metadata store when none is supplied
	// explicitly.
	DataDir string

	// CompressSnapshots zstd-compresses the persisted chunk snapshot.
	CompressSnapshots bool

	// LockStripes sizes the in-process lock service's stripe count.
	LockStripes int

	// SplitLockTimeout bounds how long Drop waits to acquire the
	// cluster-wide per-shard lock before giving up.
	SplitLockTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable defaults: a 64MB chunk
// size ceiling, snapshot compression on, and 32 lock stripes.
func DefaultConfig() *Config {
	return &Config{
		MaxChunkSize:      64 * 1024 * 1024,
		DataDir:           "./data/chunkmeta",
		CompressSnapshots: true,
		LockStripes:       32,
		SplitLockTimeout:  30 * time.Second,
	}
}
