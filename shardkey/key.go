// Package shardkey implements the shard-key pattern and key comparator used
// to order chunks and compile routing predicates.
package shardkey

import (
	"fmt"
	"sort"
	"strings"
)

// Direction is the sort direction of one field in a shard-key pattern.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Field is one component of a shard-key pattern.
type Field struct {
	Name string
	Dir  Direction
}

// Pattern is the ordered list of fields a sharded collection partitions on.
type Pattern struct {
	Fields []Field
}

// New builds an ascending pattern over the given field names.
func New(fields ...string) *Pattern {
	fs := make([]Field, len(fields))
	for i, f := range fields {
		fs[i] = Field{Name: f, Dir: Ascending}
	}
	return &Pattern{Fields: fs}
}

// NewWithDirections builds a pattern with explicit per-field directions.
func NewWithDirections(fields ...Field) *Pattern {
	return &Pattern{Fields: append([]Field(nil), fields...)}
}

// FirstField returns the name of the pattern's leading field.
func (p *Pattern) FirstField() string {
	return p.Fields[0].Name
}

// FieldNames returns the pattern's field names in order, for index
// creation calls that only need the field list.
func (p *Pattern) FieldNames() []string {
	names := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate rejects empty or duplicate-field patterns.
func (p *Pattern) Validate() error {
	if len(p.Fields) == 0 {
		return fmt.Errorf("shard key must have at least one field")
	}
	seen := make(map[string]bool, len(p.Fields))
	for _, f := range p.Fields {
		if seen[f.Name] {
			return fmt.Errorf("duplicate field in shard key: %s", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

func (p *Pattern) String() string {
	names := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		dir := "1"
		if f.Dir == Descending {
			dir = "-1"
		}
		names[i] = fmt.Sprintf("%s:%s", f.Name, dir)
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// sentinelKind marks a Key as one of the synthetic MinKey/MaxKey bounds that
// sit strictly below/above every real key.
type sentinelKind int8

const (
	noSentinel sentinelKind = iota
	minSentinel
	maxSentinel
)

// Key is an extracted (possibly compound) shard-key value, or one of the
// two sentinel bounds.
type Key struct {
	sentinel sentinelKind
	values   map[string]interface{}
}

// MinKey returns the sentinel strictly less than any real key.
func MinKey() Key { return Key{sentinel: minSentinel} }

// MaxKey returns the sentinel strictly greater than any real key.
func MaxKey() Key { return Key{sentinel: maxSentinel} }

// NewKey wraps an already-extracted field map as a real (non-sentinel) key.
func NewKey(values map[string]interface{}) Key {
	cp := make(map[string]interface{}, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Key{values: cp}
}

func (k Key) IsMinKey() bool { return k.sentinel == minSentinel }
func (k Key) IsMaxKey() bool { return k.sentinel == maxSentinel }
func (k Key) IsSentinel() bool { return k.sentinel != noSentinel }

// IsEmpty reports whether k is the zero Key: neither a sentinel nor
// carrying any extracted field. PickSplitPoint returns this to signal
// "no document found".
func (k Key) IsEmpty() bool { return k.sentinel == noSentinel && len(k.values) == 0 }

// Value returns the extracted value of one field, or false if the key is a
// sentinel or does not carry that field.
func (k Key) Value(field string) (interface{}, bool) {
	if k.values == nil {
		return nil, false
	}
	v, ok := k.values[field]
	return v, ok
}

// Values exposes the raw field map; callers must not mutate the result.
func (k Key) Values() map[string]interface{} { return k.values }

func (k Key) String() string {
	switch k.sentinel {
	case minSentinel:
		return "MinKey"
	case maxSentinel:
		return "MaxKey"
	}
	keys := make([]string, 0, len(k.values))
	for f := range k.values {
		keys = append(keys, f)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, f := range keys {
		parts[i] = fmt.Sprintf("%s:%v", f, k.values[f])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Equal reports field-for-field equality (sentinels compare by kind only).
func (k Key) Equal(pattern *Pattern, other Key) bool {
	return pattern.Compare(k, other) == 0
}
