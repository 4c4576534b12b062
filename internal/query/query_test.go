package query

import "testing"

func TestParseFoldsAndSplits(t *testing.T) {
	got := Parse("SKÅDIS -ikea skadis")
	if len(got.Include) != 1 || got.Include[0] != "skadis" {
		t.Fatalf("include = %v, want [skadis]", got.Include)
	}
	if len(got.Exclude) != 1 || got.Exclude[0] != "ikea" {
		t.Fatalf("exclude = %v, want [ikea]", got.Exclude)
	}
	if got.Unparse() != "skadis -ikea" {
		t.Fatalf("unparse = %q, want %q", got.Unparse(), "skadis -ikea")
	}
}

func TestParseUnparseIdempotent(t *testing.T) {
	inputs := []string{
		"-samsung smartphone",
		"foldable smartphone -samsung",
		"  Foo   Bar -Baz  ",
		"",
	}
	for _, in := range inputs {
		q1 := Parse(in)
		q2 := Parse(q1.Unparse())
		if q1.Unparse() != q2.Unparse() {
			t.Fatalf("not idempotent for %q: %q vs %q", in, q1.Unparse(), q2.Unparse())
		}
	}
}

func TestToSearchText(t *testing.T) {
	q := Parse("-samsung smartphone")
	if q.ToSearchText() != "smartphone" {
		t.Fatalf("to_search_text = %q, want %q", q.ToSearchText(), "smartphone")
	}
}

func TestMatches(t *testing.T) {
	q := Parse("-samsung foldable smartphone")

	if !q.Matches([]string{"Xiaomi", "Foldable", "Smartphone"}) {
		t.Fatal("expected match: contains all positives and no negatives")
	}
	if q.Matches([]string{"Samsung", "Foldable", "Smartphone"}) {
		t.Fatal("expected no match: contains the negative")
	}
	if q.Matches([]string{"xiaomi", "smartphone"}) {
		t.Fatal("expected no match: missing a positive")
	}
}

func TestFingerprintDeterministicAndCaseInsensitive(t *testing.T) {
	a := Parse("SKÅDIS -ikea")
	b := Parse("skadis -IKEA")
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("fingerprints differ: %d vs %d", Fingerprint(a), Fingerprint(b))
	}

	again := Fingerprint(Parse("SKÅDIS -ikea"))
	if again != Fingerprint(a) {
		t.Fatal("fingerprint is not deterministic across calls")
	}
}

func TestFingerprintDependsOnlyOnUnparse(t *testing.T) {
	// Two different in-memory constructions that unparse identically must
	// hash identically.
	a := Normalized{Include: []string{"a", "b"}, Exclude: nil}
	b := Parse("a b")
	if a.Unparse() != b.Unparse() {
		t.Skip("constructed fixture no longer matches Parse's output shape")
	}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("fingerprint must depend only on Unparse(q)")
	}
}
