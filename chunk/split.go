package chunk

import (
	"context"
	"fmt"

	"github.com/mnohosten/chunkmeta/backend"
	"github.com/mnohosten/chunkmeta/shardkey"
)

// PickSplitPoint chooses where to divide the chunk.
//
// If exactly one end is a sentinel, it asks the owning shard for the
// extreme document ordered by shard key (biasing the new boundary away
// from the unbounded end). Otherwise it runs the backend's median-key
// command; if the median collapses to Min (a heavily skewed range) it
// falls back to the next document strictly greater than Min's leading
// field.
func (c *Chunk) PickSplitPoint(ctx context.Context) (shardkey.Key, error) {
	pattern := c.deps.Pattern
	first := pattern.FirstField()

	if c.MinIsInf() != c.MaxIsInf() {
		dir := backend.SortAscending
		if c.MaxIsInf() {
			dir = backend.SortDescending
		}
		doc, err := c.deps.Driver.FindOne(ctx, c.Shard, c.Namespace, c.FilterPredicate(), []backend.SortField{{Name: first, Dir: dir}})
		if err != nil {
			return shardkey.Key{}, fmt.Errorf("picking split point for %s: %w", c.ID, err)
		}
		if doc == nil {
			return shardkey.Key{}, nil
		}
		return pattern.ExtractKey(doc)
	}

	cmd := map[string]interface{}{
		"medianKey":  true,
		"ns":         c.Namespace,
		"keyPattern": first,
		"min":        c.Min.Values(),
		"max":        c.Max.Values(),
	}
	reply, err := c.deps.Driver.RunCommand(ctx, c.Shard, c.Namespace, cmd)
	if err != nil {
		return shardkey.Key{}, fmt.Errorf("median_key for %s: %w", c.ID, err)
	}
	medianDoc, _ := reply["median"].(map[string]interface{})
	median := shardkey.NewKey(medianDoc)

	if pattern.Compare(median, c.Min) != 0 {
		return median, nil
	}

	minVal, _ := c.Min.Value(first)
	skewFilter := map[string]interface{}{first: map[string]interface{}{"$gt": minVal}}
	doc, err := c.deps.Driver.FindOne(ctx, c.Shard, c.Namespace, skewFilter, []backend.SortField{{Name: first, Dir: backend.SortAscending}})
	if err != nil {
		return shardkey.Key{}, fmt.Errorf("skew fallback for %s: %w", c.ID, err)
	}
	if doc == nil {
		return shardkey.Key{}, nil
	}
	return pattern.ExtractKey(doc)
}

// Split divides the chunk at m: the receiver narrows to [Min, m) and the
// returned chunk covers [m, Max) on the same shard. The caller (the
// manager) is responsible for inserting the new chunk into its chunk
// map/list and range index under its write lock, then persisting both.
func (c *Chunk) Split(ctx context.Context, m shardkey.Key) (*Chunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pattern := c.deps.Pattern
	if m.IsEmpty() || pattern.Compare(m, c.Min) == 0 || pattern.Compare(m, c.Max) == 0 {
		return nil, &PreconditionError{
			Code:    ErrCodeSplitDegenerate,
			Message: "cannot split chunk: only one distinct value in range",
		}
	}

	release, err := c.deps.Locks.LockNamespaceOnServer(ctx, c.Namespace, c.Shard)
	if err != nil {
		return nil, fmt.Errorf("locking namespace for split of %s: %w", c.ID, err)
	}
	defer release()

	newChunk := New(c.deps, c.Namespace, m, c.Max, c.Shard)
	newChunk.modified.Store(true)

	c.Max = m
	c.modified.Store(true)

	return newChunk, nil
}
