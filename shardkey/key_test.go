package shardkey

import "testing"

func TestPatternCompareOrdering(t *testing.T) {
	p := New("a", "b")

	lo := NewKey(map[string]interface{}{"a": 1, "b": "x"})
	hi := NewKey(map[string]interface{}{"a": 1, "b": "y"})

	if p.Compare(lo, hi) >= 0 {
		t.Fatalf("expected lo < hi")
	}
	if p.Compare(hi, lo) <= 0 {
		t.Fatalf("expected hi > lo")
	}
	if p.Compare(lo, lo) != 0 {
		t.Fatalf("expected equal keys to compare 0")
	}
}

func TestSentinelsBoundAllRealKeys(t *testing.T) {
	p := New("a")
	real := NewKey(map[string]interface{}{"a": 42})

	if p.Compare(MinKey(), real) >= 0 {
		t.Fatalf("MinKey must sort below any real key")
	}
	if p.Compare(MaxKey(), real) <= 0 {
		t.Fatalf("MaxKey must sort above any real key")
	}
	if p.Compare(MinKey(), MaxKey()) >= 0 {
		t.Fatalf("MinKey must sort below MaxKey")
	}
}

func TestDescendingDirectionReversesComparison(t *testing.T) {
	p := NewWithDirections(Field{Name: "a", Dir: Descending})
	lo := NewKey(map[string]interface{}{"a": 1})
	hi := NewKey(map[string]interface{}{"a": 2})

	if p.Compare(lo, hi) <= 0 {
		t.Fatalf("descending pattern should order 1 after 2")
	}
}

func TestValidateRejectsEmptyAndDuplicateFields(t *testing.T) {
	if err := (&Pattern{}).Validate(); err == nil {
		t.Fatalf("expected error for empty pattern")
	}
	dup := NewWithDirections(Field{Name: "a"}, Field{Name: "a"})
	if err := dup.Validate(); err == nil {
		t.Fatalf("expected error for duplicate field")
	}
}

func TestExtractKeyRequiresAllFields(t *testing.T) {
	p := New("a", "b")
	if _, err := p.ExtractKey(map[string]interface{}{"a": 1}); err == nil {
		t.Fatalf("expected error when shard key field missing")
	}
	k, err := p.ExtractKey(map[string]interface{}{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := k.Value("b"); !ok || v != 2 {
		t.Fatalf("expected extracted field b=2, got %v %v", v, ok)
	}
}

func TestIsEmptyOnlyForZeroValue(t *testing.T) {
	if !(Key{}).IsEmpty() {
		t.Fatalf("zero Key should be empty")
	}
	if MinKey().IsEmpty() {
		t.Fatalf("MinKey must not be empty")
	}
	if NewKey(map[string]interface{}{"a": 1}).IsEmpty() {
		t.Fatalf("a key with values must not be empty")
	}
}
