// Package chunk implements one half-open shard-key range resident on one
// shard, and the coalesced, manager-free ChunkRange view used for routing.
//
// Chunk deliberately holds no back-pointer to its owning manager: per the
// design note against raw self-referential pointer graphs, every operation
// that needs manager state (locking, versioning, map/index integration)
// reaches it through the small Deps closures supplied at construction.
package chunk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mnohosten/chunkmeta/auditlog"
	"github.com/mnohosten/chunkmeta/backend"
	"github.com/mnohosten/chunkmeta/shardkey"
)

// Deps are the manager-owned collaborators a Chunk needs to carry out
// split, migrate and autosplit without holding a pointer back to its
// manager.
type Deps struct {
	Driver backend.Driver
	Locks  backend.LockService
	Audit  *auditlog.Logger

	Pattern      *shardkey.Pattern
	MaxChunkSize int64

	// ShardVersion returns the manager's currently known lastmod-derived
	// version for shard.
	ShardVersion func(shard backend.ShardID) uint64

	// BumpSiblingOnShard marks one other chunk on shard (not except)
	// modified, to force a version bump on shard when the chunk being
	// migrated was its last. Returns whether a sibling was found.
	BumpSiblingOnShard func(shard backend.ShardID, except *Chunk) bool

	// IntegrateSplit inserts newChunk into the manager's chunk map/list
	// and range index under its write lock, persists both chunks and logs
	// the split event.
	IntegrateSplit func(ctx context.Context, original, newChunk *Chunk) error

	// IntegrateMigrate updates the manager's range index under its write
	// lock after moved's shard has been reassigned locally, persists,
	// asserts the source shard's version strictly increased (returning an
	// error wrapping ErrConsistency otherwise), and logs the migrate
	// event.
	IntegrateMigrate func(ctx context.Context, moved *Chunk, fromShard backend.ShardID) error

	// PickDestination chooses a migration target other than exclude, or
	// reports false if none qualifies.
	PickDestination func(exclude backend.ShardID) (backend.ShardID, bool)
}

// Chunk is one half-open range [Min, Max) resident on Shard.
type Chunk struct {
	ID        string
	Namespace string
	Min, Max  shardkey.Key
	Shard     backend.ShardID
	LastMod   uint64

	dataWritten atomic.Int64
	modified    atomic.Bool
	mu          sync.Mutex

	deps *Deps
}

// New constructs a chunk and derives its persisted id from namespace and min.
func New(deps *Deps, namespace string, min, max shardkey.Key, shard backend.ShardID) *Chunk {
	return &Chunk{
		ID:        GenID(namespace, deps.Pattern, min),
		Namespace: namespace,
		Min:       min,
		Max:       max,
		Shard:     shard,
		deps:      deps,
	}
}

// GenID derives the deterministic, injective-over-(ns,min) chunk id.
func GenID(namespace string, pattern *shardkey.Pattern, min shardkey.Key) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, f := range pattern.Fields {
		b.WriteByte('-')
		b.WriteString(f.Name)
		b.WriteByte('_')
		switch {
		case min.IsMinKey():
			b.WriteString("MinKey")
		case min.IsMaxKey():
			b.WriteString("MaxKey")
		default:
			if v, ok := min.Value(f.Name); ok {
				fmt.Fprintf(&b, "%v", v)
			}
		}
	}
	return b.String()
}

// Modified reports whether this chunk has unpersisted changes.
func (c *Chunk) Modified() bool { return c.modified.Load() }

// MarkModified flags the chunk as having unpersisted changes; used by the
// manager's sibling-bump trick during migrate.
func (c *Chunk) MarkModified() { c.modified.Store(true) }

// ClearModified is called by the manager once a chunk has been persisted.
func (c *Chunk) ClearModified() { c.modified.Store(false) }

// AssignVersion records a server-assigned lastmod and clears the modified
// flag, synchronized by the chunk's own lock so concurrent Save calls
// serialize on one chunk the way the metadata store would.
func (c *Chunk) AssignVersion(v uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastMod = v
	c.modified.Store(false)
}

// SetDeps rebinds a chunk's manager collaborators, used when a manager
// reloads and reconstructs its chunk set from persisted records.
func (c *Chunk) SetDeps(deps *Deps) { c.deps = deps }

// Contains reports whether doc's extracted shard key falls in [Min, Max).
func (c *Chunk) Contains(doc map[string]interface{}) (bool, error) {
	key, err := c.deps.Pattern.ExtractKey(doc)
	if err != nil {
		return false, err
	}
	return c.ContainsKey(key), nil
}

// ContainsKey reports whether key falls in [Min, Max).
func (c *Chunk) ContainsKey(key shardkey.Key) bool {
	p := c.deps.Pattern
	return p.Compare(c.Min, key) <= 0 && p.Compare(key, c.Max) < 0
}

// FilterPredicate returns "Min <= shard_key < Max" as a backend predicate.
func (c *Chunk) FilterPredicate() map[string]interface{} {
	return c.deps.Pattern.Filter(c.Min, c.Max)
}

// MinIsInf reports whether Min is the global-minimum sentinel.
func (c *Chunk) MinIsInf() bool { return c.Min.IsMinKey() }

// MaxIsInf reports whether Max is the global-maximum sentinel.
func (c *Chunk) MaxIsInf() bool { return c.Max.IsMaxKey() }

// CountObjects asks the backend driver how many documents this chunk's
// range currently holds on its shard.
func (c *Chunk) CountObjects(ctx context.Context) (int64, error) {
	n, err := c.deps.Driver.Count(ctx, c.Shard, c.Namespace, c.FilterPredicate())
	if err != nil {
		return 0, fmt.Errorf("counting chunk %s: %w", c.ID, err)
	}
	return n, nil
}

// ToRecord serializes the chunk to its persisted record shape.
func (c *Chunk) ToRecord() backend.ChunkRecord {
	rec := backend.ChunkRecord{ID: c.ID, Shard: c.Shard, LastMod: c.LastMod}
	switch {
	case c.Min.IsMinKey():
		rec.MinIsInf = -1
	case c.Min.IsMaxKey():
		rec.MinIsInf = 1
	default:
		rec.Min = c.Min.Values()
	}
	switch {
	case c.Max.IsMinKey():
		rec.MaxIsInf = -1
	case c.Max.IsMaxKey():
		rec.MaxIsInf = 1
	default:
		rec.Max = c.Max.Values()
	}
	return rec
}

// FromRecord reconstructs a chunk from its persisted record shape.
func FromRecord(deps *Deps, namespace string, rec backend.ChunkRecord) *Chunk {
	return &Chunk{
		ID:        rec.ID,
		Namespace: namespace,
		Min:       keyFromInfFlag(rec.MinIsInf, rec.Min),
		Max:       keyFromInfFlag(rec.MaxIsInf, rec.Max),
		Shard:     rec.Shard,
		LastMod:   rec.LastMod,
		deps:      deps,
	}
}

func keyFromInfFlag(inf int8, values map[string]interface{}) shardkey.Key {
	switch inf {
	case -1:
		return shardkey.MinKey()
	case 1:
		return shardkey.MaxKey()
	default:
		return shardkey.NewKey(values)
	}
}
