package shardkey

import "fmt"

// GlobalMin returns the sentinel strictly below any real key of this pattern.
func (p *Pattern) GlobalMin() Key { return MinKey() }

// GlobalMax returns the sentinel strictly above any real key of this pattern.
func (p *Pattern) GlobalMax() Key { return MaxKey() }

// HasShardKey reports whether doc carries every field of the pattern.
func (p *Pattern) HasShardKey(doc map[string]interface{}) bool {
	for _, f := range p.Fields {
		if _, ok := doc[f.Name]; !ok {
			return false
		}
	}
	return true
}

// ExtractKey pulls the pattern's fields out of doc into a Key.
func (p *Pattern) ExtractKey(doc map[string]interface{}) (Key, error) {
	values := make(map[string]interface{}, len(p.Fields))
	for _, f := range p.Fields {
		v, ok := doc[f.Name]
		if !ok {
			return Key{}, fmt.Errorf("document missing shard key field: %s", f.Name)
		}
		values[f.Name] = v
	}
	return Key{values: values}, nil
}

// Compare orders two keys under this pattern: sentinels first, then each
// field of the pattern in turn, honoring per-field direction.
func (p *Pattern) Compare(a, b Key) int {
	if a.sentinel != noSentinel || b.sentinel != noSentinel {
		return compareSentinels(a.sentinel, b.sentinel)
	}
	for _, f := range p.Fields {
		cmp := compareValues(a.values[f.Name], b.values[f.Name])
		if f.Dir == Descending {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp
		}
	}
	return 0
}

func compareSentinels(a, b sentinelKind) int {
	rank := func(s sentinelKind) int {
		switch s {
		case minSentinel:
			return -1
		case maxSentinel:
			return 1
		default:
			return 0
		}
	}
	ra, rb := rank(a), rank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// compareValues compares two extracted field values. Mirrors the
// type-dispatch a sharded collection's value comparator uses over strings,
// integers, floats and booleans; nested values are not compared
// recursively and go through the string fallback below.
func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return compareOrdered(va, vb)
		}
	case int:
		if vb, ok := toInt64(b); ok {
			return compareOrdered(int64(va), vb)
		}
	case int64:
		if vb, ok := toInt64(b); ok {
			return compareOrdered(va, vb)
		}
	case float64:
		if vb, ok := toFloat64(b); ok {
			return compareOrdered(va, vb)
		}
	case bool:
		if vb, ok := b.(bool); ok {
			return compareOrdered(boolRank(va), boolRank(vb))
		}
	}

	// Type mismatch or unrecognized type: fall back to a stable string
	// comparison so Compare never panics on heterogeneous data.
	return compareOrdered(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

type ordered interface {
	~string | ~int | ~int64 | ~float64
}

func compareOrdered[T ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
