package chunk

import (
	"context"
	"testing"

	"github.com/mnohosten/chunkmeta/backend"
	"github.com/mnohosten/chunkmeta/shardkey"
)

func TestSplitIfShouldNoOpBelowThreshold(t *testing.T) {
	deps := testDeps(backend.NewInMemoryDriver())
	deps.MaxChunkSize = 1 << 30
	c := New(deps, "db.coll", shardkey.NewKey(map[string]interface{}{"k": 0}), shardkey.NewKey(map[string]interface{}{"k": 10}), testShard)

	did, err := c.SplitIfShould(context.Background(), 10)
	if err != nil {
		t.Fatalf("SplitIfShould: %v", err)
	}
	if did {
		t.Fatalf("expected no split below the size threshold")
	}
}

func TestSplitIfShouldSplitsOnceThresholdAndDatasizeExceeded(t *testing.T) {
	driver := backend.NewInMemoryDriver()
	for i := 0; i < 5; i++ {
		driver.Insert(testShard, "db.coll", map[string]interface{}{"k": i})
	}
	deps := testDeps(driver)
	deps.MaxChunkSize = 3072 // 3 docs worth at 1024 bytes/doc
	c := New(deps, "db.coll", shardkey.NewKey(map[string]interface{}{"k": 0}), shardkey.NewKey(map[string]interface{}{"k": 10}), testShard)

	did, err := c.SplitIfShould(context.Background(), deps.MaxChunkSize)
	if err != nil {
		t.Fatalf("SplitIfShould: %v", err)
	}
	if !did {
		t.Fatalf("expected split once bytes-written and datasize both exceed threshold")
	}
	if c.DataWritten() != 0 {
		t.Fatalf("expected data-written counter reset after split, got %d", c.DataWritten())
	}
}
