package chunk

import (
	"context"
	"fmt"

	"github.com/mnohosten/chunkmeta/backend"
)

// MoveAndCommit migrates the chunk to shard "to" in two phases: a
// movechunk.start/finish handshake with the source shard, bracketing the
// local shard reassignment and the manager-side version bump.
func (c *Chunk) MoveAndCommit(ctx context.Context, to backend.ShardID) error {
	c.mu.Lock()
	from := c.Shard
	if to == from {
		c.mu.Unlock()
		return &PreconditionError{
			Code:    ErrCodeMoveToSelf,
			Message: fmt.Sprintf("cannot move chunk %s to its current shard %s", c.ID, to),
		}
	}
	c.mu.Unlock()

	up, err := c.deps.Locks.AllUp(ctx, []backend.ShardID{from, to})
	if err != nil {
		return fmt.Errorf("checking shard reachability for move of %s: %w", c.ID, err)
	}
	if !up {
		return &PreconditionError{
			Code:    ErrCodeMoveUnreachable,
			Message: fmt.Sprintf("cannot move chunk %s: source %s or destination %s is unreachable", c.ID, from, to),
		}
	}

	c.mu.Lock()
	if c.Shard != from {
		c.mu.Unlock()
		return fmt.Errorf("chunk %s shard changed to %s while checking reachability", c.ID, c.Shard)
	}

	startReply, err := c.deps.Driver.RunCommand(ctx, from, c.Namespace, map[string]interface{}{
		"movechunk.start": true,
		"ns":              c.Namespace,
		"from":            string(from),
		"to":              string(to),
		"filter":          c.FilterPredicate(),
	})
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("movechunk.start for %s: %w", c.ID, err)
	}
	finishToken := startReply["finishToken"]

	c.Shard = to
	c.modified.Store(true)
	c.deps.BumpSiblingOnShard(from, c)
	c.mu.Unlock()

	if err := c.deps.IntegrateMigrate(ctx, c, from); err != nil {
		return fmt.Errorf("integrating migrate of %s: %w", c.ID, err)
	}

	newVersion := c.deps.ShardVersion(from)

	_, err = c.deps.Driver.RunCommand(ctx, from, c.Namespace, map[string]interface{}{
		"movechunk.finish": true,
		"ns":               c.Namespace,
		"to":               string(to),
		"newVersion":       newVersion,
		"finishToken":      finishToken,
	})
	if err != nil {
		return fmt.Errorf("movechunk.finish for %s: %w", c.ID, err)
	}

	// The migrate event itself is logged once, by the manager's
	// IntegrateMigrate call above, so it carries the post-integration
	// version rather than being duplicated here.
	return nil
}

// MoveIfShould implements the automove heuristic run after a split: if the
// newly created chunk is effectively empty, migrate it; otherwise if the
// chunk that split is effectively empty, migrate that one instead. Neither
// being small enough is left alone — undecidable with this policy.
func MoveIfShould(ctx context.Context, original, created *Chunk) error {
	createdCount, err := created.CountObjects(ctx)
	if err != nil {
		return err
	}
	if createdCount <= 1 {
		return created.migrateToPickedDestination(ctx)
	}

	originalCount, err := original.CountObjects(ctx)
	if err != nil {
		return err
	}
	if originalCount <= 1 {
		return original.migrateToPickedDestination(ctx)
	}
	return nil
}

func (c *Chunk) migrateToPickedDestination(ctx context.Context) error {
	dest, ok := c.deps.PickDestination(c.Shard)
	if !ok || dest == c.Shard {
		return nil
	}
	return c.MoveAndCommit(ctx, dest)
}
