package main

import (
	"context"
	"fmt"

	"github.com/mnohosten/chunkmeta/backend"
	"github.com/mnohosten/chunkmeta/manager"
	"github.com/mnohosten/chunkmeta/shardkey"
)

const shardA backend.ShardID = "shard-a"
const shardB backend.ShardID = "shard-b"

func main() {
	fmt.Println("=== chunkmeta demo ===")
	fmt.Println()

	demoBootstrap()
	fmt.Println()
	demoSplitAndRoute()
	fmt.Println()
	demoMigrate()
	fmt.Println()
	demoDrop()

	fmt.Println("\n=== demo complete ===")
}

func newDemoManager(ctx context.Context, driver *backend.InMemoryDriver) *manager.ChunkManager {
	registry := backend.NewInMemoryShardRegistry(
		backend.ShardInfo{ID: shardA, State: backend.ShardStateActive},
		backend.ShardInfo{ID: shardB, State: backend.ShardStateActive},
	)
	m, err := manager.New(ctx, manager.Options{
		Namespace: "app.events",
		Pattern:   shardkey.New("userID"),
		Primary:   shardA,
		Driver:    driver,
		Store:     backend.NewInMemoryMetadataStore(),
		Locks:     backend.NewInProcLockService(0),
		Registry:  registry,
		Config:    manager.DefaultConfig(),
	})
	if err != nil {
		panic(err)
	}
	return m
}

func demoBootstrap() {
	fmt.Println("Demo 1: Bootstrap")
	fmt.Println("-----------------")

	ctx := context.Background()
	m := newDemoManager(ctx, backend.NewInMemoryDriver())
	stats := m.Stats()
	fmt.Printf("namespace %s bootstrapped with %d chunk spanning the full key range on %s\n",
		stats.Namespace, stats.ChunkCount, shardA)
}

func demoSplitAndRoute() {
	fmt.Println("Demo 2: Split and route")
	fmt.Println("-----------------------")

	ctx := context.Background()
	driver := backend.NewInMemoryDriver()
	for i := 0; i < 20; i++ {
		driver.Insert(shardA, "app.events", map[string]interface{}{"userID": i})
	}
	m := newDemoManager(ctx, driver)

	orig := m.Chunks()[0]
	at := shardkey.NewKey(map[string]interface{}{"userID": 10})
	if _, err := m.Split(ctx, orig, at); err != nil {
		panic(err)
	}
	fmt.Printf("split at userID=10, manager now holds %d chunks\n", len(m.Chunks()))

	for _, probe := range []int{3, 15} {
		c, err := m.FindChunk(ctx, map[string]interface{}{"userID": probe})
		if err != nil {
			panic(err)
		}
		fmt.Printf("userID=%d routes to chunk %s on %s\n", probe, c.ID, c.Shard)
	}

	if err := m.AssertValid(); err != nil {
		panic(err)
	}
	fmt.Println("chunk map and range index are consistent")
}

func demoMigrate() {
	fmt.Println("Demo 3: Migrate")
	fmt.Println("---------------")

	ctx := context.Background()
	driver := backend.NewInMemoryDriver()
	for i := 0; i < 20; i++ {
		driver.Insert(shardA, "app.events", map[string]interface{}{"userID": i})
	}
	m := newDemoManager(ctx, driver)

	orig := m.Chunks()[0]
	at := shardkey.NewKey(map[string]interface{}{"userID": 10})
	upper, err := m.Split(ctx, orig, at)
	if err != nil {
		panic(err)
	}

	beforeVersion := m.Stats().Version
	if err := m.Migrate(ctx, upper, shardB); err != nil {
		panic(err)
	}
	afterVersion := m.Stats().Version
	fmt.Printf("migrated chunk %s to %s; observed version %d -> %d\n", upper.ID, shardB, beforeVersion, afterVersion)

	shards, err := m.AllShards(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("namespace now spans %d shards\n", len(shards))
}

func demoDrop() {
	fmt.Println("Demo 4: Drop")
	fmt.Println("------------")

	ctx := context.Background()
	m := newDemoManager(ctx, backend.NewInMemoryDriver())
	if err := m.Drop(ctx); err != nil {
		panic(err)
	}
	fmt.Printf("namespace dropped; poisoned=%v chunks=%d\n", m.Poisoned(), len(m.Chunks()))
}
