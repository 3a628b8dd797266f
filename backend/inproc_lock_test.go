package backend

import (
	"context"
	"testing"
	"time"
)

func TestLockNamespaceOnServerExcludesConcurrentHolders(t *testing.T) {
	ls := NewInProcLockService(0)
	release, err := ls.LockNamespaceOnServer(context.Background(), "db.coll", "s0")
	if err != nil {
		t.Fatalf("LockNamespaceOnServer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := ls.LockNamespaceOnServer(ctx, "db.coll", "s0"); err == nil {
		t.Fatalf("expected second lock attempt on the same (namespace, shard) to block until timeout")
	}

	release()
	release2, err := ls.LockNamespaceOnServer(context.Background(), "db.coll", "s0")
	if err != nil {
		t.Fatalf("expected lock to be reacquirable after release: %v", err)
	}
	release2()
}

func TestLockNamespaceOnServerDistinctShardsDoNotContend(t *testing.T) {
	ls := NewInProcLockService(0)
	release1, err := ls.LockNamespaceOnServer(context.Background(), "db.coll", "s0")
	if err != nil {
		t.Fatalf("lock s0: %v", err)
	}
	defer release1()

	release2, err := ls.LockNamespaceOnServer(context.Background(), "db.coll", "s1")
	if err != nil {
		t.Fatalf("expected a lock on a distinct shard for the same namespace to succeed immediately: %v", err)
	}
	release2()
}

func TestAllUpReflectsMarkUnreachable(t *testing.T) {
	ls := NewInProcLockService(0)
	up, err := ls.AllUp(context.Background(), []ShardID{"s0", "s1"})
	if err != nil || !up {
		t.Fatalf("expected all shards up initially, got up=%v err=%v", up, err)
	}

	ls.MarkUnreachable("s1", true)
	up, err = ls.AllUp(context.Background(), []ShardID{"s0", "s1"})
	if err != nil || up {
		t.Fatalf("expected AllUp to report false once a shard is marked unreachable")
	}
}
