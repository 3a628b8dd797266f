package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mnohosten/chunkmeta/auditlog"
	"github.com/mnohosten/chunkmeta/backend"
	"github.com/mnohosten/chunkmeta/chunk"
	"github.com/mnohosten/chunkmeta/chunkindex"
	"github.com/mnohosten/chunkmeta/shardkey"
)

// globalSequence is the process-wide monotonic counter every manager draws
// fresh sequence numbers from on reload and save.
var globalSequence atomic.Uint64

func nextSequence() uint64 { return globalSequence.Add(1) }

// ChunkManager owns every chunk of one sharded namespace: the chunk
// vector, the derived chunk map (the vector kept sorted ascending by Max),
// the coalesced range index, and the reader/writer lock serializing them
// against routing reads.
type ChunkManager struct {
	namespace string
	pattern   *shardkey.Pattern
	unique    bool
	primary   backend.ShardID

	driver   backend.Driver
	store    backend.MetadataStore
	locks    backend.LockService
	registry backend.ShardRegistry
	audit    *auditlog.Logger
	config   *Config

	mu                sync.RWMutex
	chunks            []*chunk.Chunk // sorted ascending by Max
	index             *chunkindex.Index
	shardVersionFloor map[backend.ShardID]uint64
	sequenceNumber    uint64

	poisoned atomic.Bool
}

// Options bundles the collaborators a ChunkManager needs, mirroring the
// external-interface contracts of §6.
type Options struct {
	Namespace string
	Pattern   *shardkey.Pattern
	Unique    bool
	Primary   backend.ShardID

	Driver   backend.Driver
	Store    backend.MetadataStore
	Locks    backend.LockService
	Registry backend.ShardRegistry
	Audit    *auditlog.Logger
	Config   *Config
}

// New loads (or bootstraps) the manager for one namespace. A namespace with
// no persisted chunks yet gets a single chunk spanning [global_min,
// global_max) on the primary shard, marked modified so the first Save
// persists it.
func New(ctx context.Context, opts Options) (*ChunkManager, error) {
	if err := opts.Pattern.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shard key pattern: %w", err)
	}
	config := opts.Config
	if config == nil {
		config = DefaultConfig()
	}
	if opts.Audit == nil {
		opts.Audit = auditlog.New(nil)
	}
	if opts.Store == nil {
		store, err := backend.NewFileMetadataStore(config.DataDir, config.CompressSnapshots)
		if err != nil {
			return nil, err
		}
		opts.Store = store
	}
	if opts.Locks == nil {
		opts.Locks = backend.NewInProcLockService(config.LockStripes)
	}

	m := &ChunkManager{
		namespace:         opts.Namespace,
		pattern:           opts.Pattern,
		unique:            opts.Unique,
		primary:           opts.Primary,
		driver:            opts.Driver,
		store:             opts.Store,
		locks:             opts.Locks,
		registry:          opts.Registry,
		audit:             opts.Audit,
		config:            config,
		index:             chunkindex.New(opts.Pattern),
		shardVersionFloor: make(map[backend.ShardID]uint64),
	}

	if err := m.reload(ctx); err != nil {
		return nil, err
	}

	if len(m.chunks) == 0 {
		bootstrap := chunk.New(m.deps(), m.namespace, m.pattern.GlobalMin(), m.pattern.GlobalMax(), m.primary)
		bootstrap.MarkModified()
		m.chunks = []*chunk.Chunk{bootstrap}
		m.index.ReloadAll(m.chunks)
	}

	return m, nil
}

func (m *ChunkManager) deps() *chunk.Deps {
	return &chunk.Deps{
		Driver:             m.driver,
		Locks:              m.locks,
		Audit:              m.audit,
		Pattern:            m.pattern,
		MaxChunkSize:       m.config.MaxChunkSize,
		ShardVersion:       m.versionForShard,
		BumpSiblingOnShard: m.bumpSiblingOnShard,
		IntegrateSplit:     m.integrateSplit,
		IntegrateMigrate:   m.integrateMigrate,
		PickDestination:    m.pickDestination,
	}
}

// Namespace returns the namespace this manager owns.
func (m *ChunkManager) Namespace() string { return m.namespace }

// Pattern returns the shard-key pattern this manager routes by.
func (m *ChunkManager) Pattern() *shardkey.Pattern { return m.pattern }

// Poisoned reports whether the manager is in the fatal, reload-required state.
func (m *ChunkManager) Poisoned() bool { return m.poisoned.Load() }

func (m *ChunkManager) checkHealthy() error {
	if m.poisoned.Load() {
		return fmt.Errorf("%s: %w", m.namespace, ErrConsistency)
	}
	return nil
}

// Reload discards in-memory state and reloads from the metadata store,
// clearing any poisoned state. It is the _reload/_load operation of §5,
// taken under the write lock.
func (m *ChunkManager) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reload(ctx)
}

func (m *ChunkManager) reload(ctx context.Context) error {
	records, err := m.store.Load(ctx, m.namespace)
	if err != nil {
		return fmt.Errorf("loading chunk metadata for %s: %w", m.namespace, err)
	}

	chunks := make([]*chunk.Chunk, len(records))
	for i, rec := range records {
		chunks[i] = chunk.FromRecord(m.deps(), m.namespace, rec)
	}
	sort.Slice(chunks, func(i, j int) bool {
		return m.pattern.Compare(chunks[i].Max, chunks[j].Max) < 0
	})

	m.chunks = chunks
	m.index.ReloadAll(m.chunks)
	m.sequenceNumber = nextSequence()
	m.poisoned.Store(false)
	return nil
}

// SequenceNumber returns the manager's most recently observed process-local
// sequence number, refreshed on every reload and save.
func (m *ChunkManager) SequenceNumber() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sequenceNumber
}

func (m *ChunkManager) versionForShard(shard backend.ShardID) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versionForShardLocked(shard)
}

func (m *ChunkManager) versionForShardLocked(shard backend.ShardID) uint64 {
	var v uint64
	for _, c := range m.chunks {
		if c.Shard == shard && c.LastMod > v {
			v = c.LastMod
		}
	}
	if floor := m.shardVersionFloor[shard]; floor > v {
		v = floor
	}
	return v
}

func (m *ChunkManager) bumpSiblingOnShard(shard backend.ShardID, except *chunk.Chunk) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.chunks {
		if c != except && c.Shard == shard {
			c.MarkModified()
			return true
		}
	}
	return false
}

func (m *ChunkManager) pickDestination(exclude backend.ShardID) (backend.ShardID, bool) {
	if m.registry == nil {
		return "", false
	}
	shards, err := m.registry.Shards(context.Background())
	if err != nil {
		return "", false
	}
	for _, s := range shards {
		if s.ID != exclude && s.State == backend.ShardStateActive {
			return s.ID, true
		}
	}
	return "", false
}

// PickDestinationWithTags chooses an active migration target matching tags,
// other than exclude, using the shard registry's tag-matching helper. The
// automove path after a split does not call it: it uses pickDestination,
// which takes the first active shard other than the source and ignores tags.
func (m *ChunkManager) PickDestinationWithTags(ctx context.Context, exclude backend.ShardID, tags map[string]string) (backend.ShardID, bool) {
	if m.registry == nil {
		return "", false
	}
	shards, err := m.registry.Shards(ctx)
	if err != nil {
		return "", false
	}
	for _, s := range shards {
		if s.ID != exclude && s.State == backend.ShardStateActive && s.MatchesTags(tags) {
			return s.ID, true
		}
	}
	return "", false
}
