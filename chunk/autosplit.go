package chunk

import (
	"context"
	"fmt"
	"sync"
)

// splitLock is the process-wide, non-blocking split lock of the
// concurrency model: a singleton try-lock guarding entry into
// SplitIfShould across every manager and namespace in the process.
var splitLock sync.Mutex

// tryAcquireSplitLock attempts the non-blocking process-wide split lock.
func tryAcquireSplitLock() (release func(), ok bool) {
	if !splitLock.TryLock() {
		return nil, false
	}
	return splitLock.Unlock, true
}

// AddDataWritten accumulates bytes written to the chunk since its last
// split check, the counter SplitIfShould consults.
func (c *Chunk) AddDataWritten(n int64) int64 {
	return c.dataWritten.Add(n)
}

// DataWritten returns the chunk's accumulated unsplit byte count.
func (c *Chunk) DataWritten() int64 { return c.dataWritten.Load() }

// SplitIfShould accumulates bytesWritten and, once past threshold, tries
// to split the chunk and automove the more appropriate half. It returns
// false (without error) whenever the decision is "not yet" or "couldn't
// get the split lock" — those are expected outcomes, not failures.
func (c *Chunk) SplitIfShould(ctx context.Context, bytesWritten int64) (bool, error) {
	total := c.AddDataWritten(bytesWritten)

	myMax := c.deps.MaxChunkSize
	if c.MinIsInf() || c.MaxIsInf() {
		myMax -= myMax / 10
	}
	if total < myMax/5 {
		return false, nil
	}

	release, ok := tryAcquireSplitLock()
	if !ok {
		return false, nil
	}
	defer release()

	m, err := c.PickSplitPoint(ctx)
	if err != nil {
		return false, fmt.Errorf("autosplit %s: %w", c.ID, err)
	}
	if m.IsEmpty() || c.deps.Pattern.Compare(m, c.Min) == 0 || c.deps.Pattern.Compare(m, c.Max) == 0 {
		c.deps.Audit.Warn(c.Namespace, map[string]interface{}{
			"chunk":  c.ID,
			"reason": "no usable split point",
		})
		return false, nil
	}

	size, err := c.dataSize(ctx, myMax+1)
	if err != nil {
		return false, fmt.Errorf("autosplit datasize for %s: %w", c.ID, err)
	}
	if size < myMax {
		return false, nil
	}

	newChunk, err := c.Split(ctx, m)
	if err != nil {
		return false, err
	}
	if err := c.deps.IntegrateSplit(ctx, c, newChunk); err != nil {
		return false, fmt.Errorf("integrating split of %s: %w", c.ID, err)
	}
	c.dataWritten.Store(0)

	if err := MoveIfShould(ctx, c, newChunk); err != nil {
		return true, fmt.Errorf("automove after split of %s: %w", c.ID, err)
	}
	return true, nil
}

func (c *Chunk) dataSize(ctx context.Context, maxSize int64) (int64, error) {
	reply, err := c.deps.Driver.RunCommand(ctx, c.Shard, c.Namespace, map[string]interface{}{
		"datasize": true,
		"ns":        c.Namespace,
		"min":       c.Min.Values(),
		"max":       c.Max.Values(),
		"maxSize":   maxSize,
	})
	if err != nil {
		return 0, err
	}
	switch v := reply["size"].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, nil
	}
}
