package shardkey

import "testing"

func TestRangeForFieldEquality(t *testing.T) {
	p := New("a")
	fr, err := p.RangeForField("a", map[string]interface{}{"a": 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fr.Equality || fr.Value != 5 {
		t.Fatalf("expected equality range on 5, got %+v", fr)
	}
}

func TestRangeForFieldUnboundedWhenFieldAbsent(t *testing.T) {
	p := New("a")
	fr, err := p.RangeForField("a", map[string]interface{}{"b": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fr.Unbounded {
		t.Fatalf("expected unbounded range when field absent from predicate")
	}
}

func TestRangeForFieldRejectsUnsupportedOperator(t *testing.T) {
	p := New("a")
	_, err := p.RangeForField("a", map[string]interface{}{"a": map[string]interface{}{"$near": []float64{1, 2}}})
	if err == nil {
		t.Fatalf("expected error for $near")
	}
	var unsupported *ErrUnsupportedPredicate
	if !asUnsupported(err, &unsupported) {
		t.Fatalf("expected ErrUnsupportedPredicate, got %T: %v", err, err)
	}
}

func asUnsupported(err error, target **ErrUnsupportedPredicate) bool {
	e, ok := err.(*ErrUnsupportedPredicate)
	if ok {
		*target = e
	}
	return ok
}

func TestRangeForFieldEmptyIn(t *testing.T) {
	p := New("a")
	fr, err := p.RangeForField("a", map[string]interface{}{"a": map[string]interface{}{"$in": []interface{}{}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fr.Empty {
		t.Fatalf("expected empty range for empty $in")
	}
}

func TestRangeForFieldDegenerateIntervalCollapsesToEquality(t *testing.T) {
	p := New("a")
	fr, err := p.RangeForField("a", map[string]interface{}{
		"a": map[string]interface{}{"$gte": 5, "$lte": 5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fr.Equality || fr.Value != 5 {
		t.Fatalf("expected [5,5] to collapse to equality, got %+v", fr)
	}
}

func TestRangeForFieldInvertedIntervalIsEmpty(t *testing.T) {
	p := New("a")
	fr, err := p.RangeForField("a", map[string]interface{}{
		"a": map[string]interface{}{"$gt": 5, "$lt": 5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fr.Empty {
		t.Fatalf("expected exclusive [5,5) to be empty, got %+v", fr)
	}
}

func TestFilterSingleField(t *testing.T) {
	p := New("a")
	min := NewKey(map[string]interface{}{"a": 1})
	max := NewKey(map[string]interface{}{"a": 10})
	filter := p.Filter(min, max)
	cond, ok := filter["a"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected a field clause, got %+v", filter)
	}
	if cond["$gte"] != 1 || cond["$lt"] != 10 {
		t.Fatalf("unexpected clause: %+v", cond)
	}
}

func TestFilterCompoundPrefixDecomposition(t *testing.T) {
	p := New("a", "b")
	min := NewKey(map[string]interface{}{"a": 1, "b": 5})
	max := NewKey(map[string]interface{}{"a": 1, "b": 10})
	filter := p.Filter(min, max)
	if _, ok := filter["$or"]; !ok {
		t.Fatalf("expected $or decomposition for compound filter, got %+v", filter)
	}
}
