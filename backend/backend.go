// Package backend defines the external collaborators a chunk manager talks
// to — the wire driver, the cluster metadata store and the cluster lock
// service — and ships small reference implementations of each so the rest
// of the module can be built and tested without a real cluster attached.
package backend

import "context"

// ShardID names one shard/replica-set in the cluster.
type ShardID string

// ShardState mirrors the config server's view of shard reachability,
// consulted by the automove destination filter.
type ShardState string

const (
	ShardStateActive      ShardState = "active"
	ShardStateDraining    ShardState = "draining"
	ShardStateInactive    ShardState = "inactive"
	ShardStateUnreachable ShardState = "unreachable"
)

// ShardInfo is the registry entry for one shard.
type ShardInfo struct {
	ID    ShardID
	Host  string
	Tags  map[string]string
	State ShardState
}

// MatchesTags reports whether this shard satisfies every requested tag.
func (s ShardInfo) MatchesTags(tags map[string]string) bool {
	for k, v := range tags {
		if s.Tags[k] != v {
			return false
		}
	}
	return true
}

// ChunkRecord is the wire/storage shape of one chunk's persisted metadata —
// the payload that crosses the MetadataStore boundary.
type ChunkRecord struct {
	ID       string                 `json:"id"`
	Shard    ShardID                `json:"shard"`
	Min      map[string]interface{} `json:"min"`
	MinIsInf int8                   `json:"min_is_inf"` // -1, 0, 1
	Max      map[string]interface{} `json:"max"`
	MaxIsInf int8                   `json:"max_is_inf"`
	LastMod  uint64                 `json:"last_mod"`
}

// SortDirection is the requested sort order for a backend query.
type SortDirection int

const (
	SortAscending SortDirection = iota
	SortDescending
)

// SortField names one field of a backend query's sort spec.
type SortField struct {
	Name string
	Dir  SortDirection
}

// Driver is the wire connection to one shard's data backend. It stands in
// for the network hop the manager itself never performs directly — the
// manager only ever asks a Driver to run a command, count or find a
// document within a bounded range.
type Driver interface {
	// RunCommand issues an administrative command (e.g. a median-key
	// split-point computation) against shard and returns its raw reply.
	RunCommand(ctx context.Context, shard ShardID, namespace string, cmd map[string]interface{}) (map[string]interface{}, error)

	// Count returns the number of documents in namespace on shard matching
	// filter, or all documents when filter is nil.
	Count(ctx context.Context, shard ShardID, namespace string, filter map[string]interface{}) (int64, error)

	// FindOne returns a single document on shard matching filter, sorted
	// by sort, or nil if none matches.
	FindOne(ctx context.Context, shard ShardID, namespace string, filter map[string]interface{}, sort []SortField) (map[string]interface{}, error)

	// EnsureIndex creates (or confirms) an index on the given fields.
	EnsureIndex(ctx context.Context, shard ShardID, namespace string, fields []string) error

	// DropCollection removes namespace's data on shard entirely.
	DropCollection(ctx context.Context, shard ShardID, namespace string) error
}

// MetadataStore persists the authoritative chunk map for a namespace. It
// plays the role of the cluster config database: chunk documents load from
// and save to it, never to each shard's own storage.
type MetadataStore interface {
	Load(ctx context.Context, namespace string) ([]ChunkRecord, error)
	Save(ctx context.Context, namespace string, records []ChunkRecord) error
	Remove(ctx context.Context, namespace string) error

	// SetShardVersion records the per-shard lastmod high-water mark used
	// to detect a stale routing table after a split/migrate elsewhere.
	SetShardVersion(ctx context.Context, namespace string, shard ShardID, version uint64) error
	ShardVersion(ctx context.Context, namespace string, shard ShardID) (uint64, error)
}

// LockService provides the cluster-wide distributed lock used to make
// split and drop mutually exclusive per (namespace, shard) across the
// whole deployment, not just within one manager process.
type LockService interface {
	// LockNamespaceOnServer blocks until namespace is exclusively locked
	// on shard for the caller, or ctx is done. It returns a release
	// function.
	LockNamespaceOnServer(ctx context.Context, namespace string, shard ShardID) (release func(), err error)

	// AllUp reports whether every shard named is currently reachable —
	// migrate refuses to start if either endpoint is not.
	AllUp(ctx context.Context, shards []ShardID) (bool, error)
}

// ShardRegistry models the config server's view of the shard topology —
// state and tags — used by the automove destination filter. Drop does not
// consult it.
type ShardRegistry interface {
	Shards(ctx context.Context) ([]ShardInfo, error)
	Shard(ctx context.Context, id ShardID) (ShardInfo, error)
}
