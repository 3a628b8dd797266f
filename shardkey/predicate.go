package shardkey

import "fmt"

// disallowedOperators are predicate operators this shard-key layer cannot
// compile into a range, matching spec's "$near, text, etc. are rejected
// with an explicit no-support failure".
var disallowedOperators = map[string]bool{
	"$near":       true,
	"$nearSphere": true,
	"$text":       true,
	"$geoWithin":  true,
	"$geoIntersects": true,
}

// ErrUnsupportedPredicate is returned by RangeForField when the predicate
// uses an operator this router cannot plan around.
type ErrUnsupportedPredicate struct {
	Field    string
	Operator string
}

func (e *ErrUnsupportedPredicate) Error() string {
	return fmt.Sprintf("no support for operator %q on field %q", e.Operator, e.Field)
}

// Interval is a single-field half-open-or-closed range.
type Interval struct {
	Lo, Hi                 interface{}
	HasLo, HasHi           bool
	LoInclusive, HiInclusive bool
}

// FieldRange is the compiled shape of a predicate restricted to one field.
type FieldRange struct {
	// Unbounded is true when the predicate says nothing about this field:
	// the caller must treat the whole chunk range index as matching.
	Unbounded bool
	// Empty is true when the predicate can never match (e.g. an empty $in).
	Empty bool
	// Equality holds for a direct value or a single-element $in/$eq.
	Equality bool
	Value    interface{}
	// Intervals holds one or more non-trivial bounded/half-bounded ranges,
	// used when Equality and Unbounded are both false.
	Intervals []Interval
}

// RangeForField compiles the portion of predicate touching field into a
// FieldRange. Operators in disallowedOperators fail with
// ErrUnsupportedPredicate; any other operator map it cannot turn into a
// range (e.g. $ne, $exists) yields an Unbounded FieldRange.
func (p *Pattern) RangeForField(field string, predicate map[string]interface{}) (*FieldRange, error) {
	raw, present := predicate[field]
	if !present {
		return &FieldRange{Unbounded: true}, nil
	}

	cond, isOperatorMap := raw.(map[string]interface{})
	if !isOperatorMap {
		// Direct value: equality.
		return &FieldRange{Equality: true, Value: raw}, nil
	}

	for op := range cond {
		if disallowedOperators[op] {
			return nil, &ErrUnsupportedPredicate{Field: field, Operator: op}
		}
	}

	if eq, ok := cond["$eq"]; ok {
		return &FieldRange{Equality: true, Value: eq}, nil
	}

	if in, ok := cond["$in"]; ok {
		values, ok := in.([]interface{})
		if !ok {
			return nil, fmt.Errorf("$in on field %q requires an array", field)
		}
		if len(values) == 0 {
			return &FieldRange{Empty: true}, nil
		}
		if len(values) == 1 {
			return &FieldRange{Equality: true, Value: values[0]}, nil
		}
		intervals := make([]Interval, len(values))
		for i, v := range values {
			intervals[i] = Interval{Lo: v, HasLo: true, LoInclusive: true, Hi: v, HasHi: true, HiInclusive: true}
		}
		return &FieldRange{Intervals: intervals}, nil
	}

	iv := Interval{}
	touched := false
	if gte, ok := cond["$gte"]; ok {
		iv.Lo, iv.HasLo, iv.LoInclusive = gte, true, true
		touched = true
	}
	if gt, ok := cond["$gt"]; ok {
		iv.Lo, iv.HasLo, iv.LoInclusive = gt, true, false
		touched = true
	}
	if lte, ok := cond["$lte"]; ok {
		iv.Hi, iv.HasHi, iv.HiInclusive = lte, true, true
		touched = true
	}
	if lt, ok := cond["$lt"]; ok {
		iv.Hi, iv.HasHi, iv.HiInclusive = lt, true, false
		touched = true
	}

	if !touched {
		// Operator map with only operators we don't special-case (e.g.
		// $ne, $exists) — we cannot turn this into a range; treat as
		// matching every chunk rather than silently mis-routing.
		return &FieldRange{Unbounded: true}, nil
	}

	if iv.HasLo && iv.HasHi && compareValues(iv.Lo, iv.Hi) > 0 {
		return &FieldRange{Empty: true}, nil
	}
	if iv.HasLo && iv.HasHi && compareValues(iv.Lo, iv.Hi) == 0 && (!iv.LoInclusive || !iv.HiInclusive) {
		return &FieldRange{Empty: true}, nil
	}

	// A range bounded on both sides with no real span left and both
	// inclusive collapses to equality.
	if iv.HasLo && iv.HasHi && iv.LoInclusive && iv.HiInclusive && compareValues(iv.Lo, iv.Hi) == 0 {
		return &FieldRange{Equality: true, Value: iv.Lo}, nil
	}

	return &FieldRange{Intervals: []Interval{iv}}, nil
}

// Filter returns the predicate "min <= shard_key < max" for this pattern,
// suitable for a backend query/median_key/datasize call. For a single-field
// pattern this is a direct range on that field; for a compound pattern it
// is the standard prefix decomposition: equality on each leading field with
// the previous field's bound, then a half-open range on the final field —
// the same shape mongos historically emitted for chunk-bounded queries.
// Compound-key query PLANNING (chunks_for_query) stays restricted to the
// first field per spec; Filter still needs every field so the backend
// median_key/datasize calls stay scoped to exactly this chunk's range.
func (p *Pattern) Filter(min, max Key) map[string]interface{} {
	if len(p.Fields) == 1 {
		return p.singleFieldFilter(p.Fields[0].Name, min, max)
	}

	clauses := make([]interface{}, 0, len(p.Fields))
	for i := range p.Fields {
		clause := make(map[string]interface{}, i+1)
		for j := 0; j < i; j++ {
			name := p.Fields[j].Name
			if v, ok := min.Value(name); ok {
				clause[name] = v
			}
		}
		name := p.Fields[i].Name
		minVal, hasMin := min.Value(name)
		maxVal, hasMax := max.Value(name)
		switch {
		case hasMin && hasMax:
			clause[name] = map[string]interface{}{"$gte": minVal, "$lt": maxVal}
		case hasMin:
			clause[name] = map[string]interface{}{"$gte": minVal}
		case hasMax:
			clause[name] = map[string]interface{}{"$lt": maxVal}
		default:
			continue
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 1 {
		return clauses[0].(map[string]interface{})
	}
	return map[string]interface{}{"$or": clauses}
}

func (p *Pattern) singleFieldFilter(field string, min, max Key) map[string]interface{} {
	cond := map[string]interface{}{}
	if v, ok := min.Value(field); ok {
		cond["$gte"] = v
	}
	if v, ok := max.Value(field); ok {
		cond["$lt"] = v
	}
	if len(cond) == 0 {
		return map[string]interface{}{}
	}
	return map[string]interface{}{field: cond}
}
