package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InMemoryDriver is a simple in-process fake of the wire driver, storing
// documents per (shard, namespace) and supporting the handful of commands
// the chunk manager issues: counting, finding a bounding document, and a
// median-key split-point computation. It exists for tests and the demo
// binary, standing in for the network hop a real Driver would make.
type InMemoryDriver struct {
	mu   sync.RWMutex
	data map[ShardID]map[string][]map[string]interface{}
}

// NewInMemoryDriver creates an empty driver.
func NewInMemoryDriver() *InMemoryDriver {
	return &InMemoryDriver{data: make(map[ShardID]map[string][]map[string]interface{})}
}

// Insert adds a document to shard's copy of namespace, for test setup.
func (d *InMemoryDriver) Insert(shard ShardID, namespace string, doc map[string]interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.data[shard] == nil {
		d.data[shard] = make(map[string][]map[string]interface{})
	}
	d.data[shard][namespace] = append(d.data[shard][namespace], doc)
}

func matches(doc, filter map[string]interface{}) bool {
	for field, want := range filter {
		cond, isOperatorMap := want.(map[string]interface{})
		if !isOperatorMap {
			if fmt.Sprintf("%v", doc[field]) != fmt.Sprintf("%v", want) {
				return false
			}
			continue
		}
		for op, bound := range cond {
			got := doc[field]
			if !compareSatisfies(got, op, bound) {
				return false
			}
		}
	}
	return true
}

func compareSatisfies(got interface{}, op string, bound interface{}) bool {
	gf, gok := toComparableFloat(got)
	bf, bok := toComparableFloat(bound)
	if !gok || !bok {
		return fmt.Sprintf("%v", got) == fmt.Sprintf("%v", bound)
	}
	switch op {
	case "$gte":
		return gf >= bf
	case "$gt":
		return gf > bf
	case "$lte":
		return gf <= bf
	case "$lt":
		return gf < bf
	case "$eq":
		return gf == bf
	default:
		return true
	}
}

func toComparableFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Count implements Driver.
func (d *InMemoryDriver) Count(ctx context.Context, shard ShardID, namespace string, filter map[string]interface{}) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var n int64
	for _, doc := range d.data[shard][namespace] {
		if filter == nil || matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

// FindOne implements Driver, applying filter then sort[0] ascending/descending.
func (d *InMemoryDriver) FindOne(ctx context.Context, shard ShardID, namespace string, filter map[string]interface{}, sortSpec []SortField) (map[string]interface{}, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var candidates []map[string]interface{}
	for _, doc := range d.data[shard][namespace] {
		if filter == nil || matches(doc, filter) {
			candidates = append(candidates, doc)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	if len(sortSpec) > 0 {
		field := sortSpec[0].Name
		desc := sortSpec[0].Dir == SortDescending
		sort.SliceStable(candidates, func(i, j int) bool {
			a, _ := toComparableFloat(candidates[i][field])
			b, _ := toComparableFloat(candidates[j][field])
			if desc {
				return a > b
			}
			return a < b
		})
	}
	return candidates[0], nil
}

// RunCommand implements the administrative commands the chunk manager
// issues: "medianKey", "datasize", "movechunk.start", "movechunk.finish"
// and "setShardVersion". Any other command fails as unsupported.
func (d *InMemoryDriver) RunCommand(ctx context.Context, shard ShardID, namespace string, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch {
	case cmd["setShardVersion"] != nil:
		return map[string]interface{}{"ok": true}, nil
	case cmd["medianKey"] != nil:
		return d.medianKey(shard, namespace, cmd)
	case cmd["datasize"] != nil:
		return d.datasize(shard, namespace, cmd)
	case cmd["movechunk.start"] != nil:
		return map[string]interface{}{"finishToken": fmt.Sprintf("%s:%d", namespace, len(d.data[shard][namespace]))}, nil
	case cmd["movechunk.finish"] != nil:
		return map[string]interface{}{"ok": true}, nil
	default:
		return nil, fmt.Errorf("unsupported command: %v", cmd)
	}
}

func (d *InMemoryDriver) medianKey(shard ShardID, namespace string, cmd map[string]interface{}) (map[string]interface{}, error) {
	field, _ := cmd["keyPattern"].(string)

	d.mu.RLock()
	docs := append([]map[string]interface{}(nil), d.data[shard][namespace]...)
	d.mu.RUnlock()

	if len(docs) == 0 {
		return nil, fmt.Errorf("medianKey: namespace %s empty on shard %s", namespace, shard)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := toComparableFloat(docs[i][field])
		b, _ := toComparableFloat(docs[j][field])
		return a < b
	})
	median := docs[len(docs)/2]
	return map[string]interface{}{"median": map[string]interface{}{field: median[field]}}, nil
}

// datasize estimates range size as a fixed per-document weight, enough to
// drive autosplit decisions in tests without modeling real document bytes.
func (d *InMemoryDriver) datasize(shard ShardID, namespace string, cmd map[string]interface{}) (map[string]interface{}, error) {
	const bytesPerDoc = 1024

	minVal, _ := cmd["min"].(map[string]interface{})
	maxVal, _ := cmd["max"].(map[string]interface{})

	d.mu.RLock()
	defer d.mu.RUnlock()

	var n int64
	for _, doc := range d.data[shard][namespace] {
		if inRange(doc, minVal, maxVal) {
			n++
		}
	}
	return map[string]interface{}{"size": n * bytesPerDoc}, nil
}

func inRange(doc, min, max map[string]interface{}) bool {
	for field, lo := range min {
		v, _ := toComparableFloat(doc[field])
		loF, _ := toComparableFloat(lo)
		if v < loF {
			return false
		}
	}
	for field, hi := range max {
		v, _ := toComparableFloat(doc[field])
		hiF, _ := toComparableFloat(hi)
		if v >= hiF {
			return false
		}
	}
	return true
}

// EnsureIndex is a no-op for the in-memory driver; it has no index structure.
func (d *InMemoryDriver) EnsureIndex(ctx context.Context, shard ShardID, namespace string, fields []string) error {
	return nil
}

// DropCollection removes all documents for namespace on shard.
func (d *InMemoryDriver) DropCollection(ctx context.Context, shard ShardID, namespace string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.data[shard] != nil {
		delete(d.data[shard], namespace)
	}
	return nil
}
