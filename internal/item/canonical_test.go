package item

import "testing"

func TestCanonical_MapKeySorting(t *testing.T) {
	a := Canonical(map[string]any{"b": 1, "a": 2})
	b := Canonical(map[string]any{"a": 2, "b": 1})
	if string(a) != string(b) {
		t.Fatalf("map encodings differ by key order: %q vs %q", a, b)
	}
	want := `{"a":2,"b":1}`
	if string(a) != want {
		t.Fatalf("got %q, want %q", a, want)
	}
}

func TestCanonical_AbsentDiffersFromEmptySequence(t *testing.T) {
	absent := Canonical(nil)
	empty := Canonical([]any{})
	if string(absent) == string(empty) {
		t.Fatal("absent value must not encode the same as an empty sequence")
	}
}

func TestCanonical_Deterministic(t *testing.T) {
	v := map[string]any{
		"tags":  []any{"a", "b", "c"},
		"count": 3,
		"nested": map[string]any{
			"z": true,
			"y": "hello\nworld",
		},
	}
	first := Canonical(v)
	for i := 0; i < 10; i++ {
		if got := Canonical(v); string(got) != string(first) {
			t.Fatalf("iteration %d: non-deterministic encoding: %q vs %q", i, got, first)
		}
	}
}

func TestCanonical_LineEndingsNormalized(t *testing.T) {
	crlf := Canonical("a\r\nb")
	lf := Canonical("a\nb")
	if string(crlf) != string(lf) {
		t.Fatalf("CRLF and LF strings should canonicalize the same: %q vs %q", crlf, lf)
	}
}

func TestCanonical_IntegerFloatEquivalence(t *testing.T) {
	// Values arriving from different decode paths (TOML int64 vs a
	// JSON-round-tripped float64) must hash identically.
	asInt := Canonical(int64(42))
	asFloat := Canonical(float64(42))
	if string(asInt) != string(asFloat) {
		t.Fatalf("int64(42) and float64(42) should canonicalize identically: %q vs %q", asInt, asFloat)
	}
}
