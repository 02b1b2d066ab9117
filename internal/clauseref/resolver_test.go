package clauseref

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	r := NewResolver()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "6A.1", "6A.1"},
		{"surrounding whitespace", " Clause-6A.1 ", "6A.1"},
		{"internal whitespace", "Clause 6A.1", "6A.1"},
		{"parentheses", "(6a.1)", "6A.1"},
		{"brackets", "[22.3]", "22.3"},
		{"fused keyword", "clause6a.1", "6A.1"},
		{"sub-clause keyword", "Sub-Clause 22.3", "22.3"},
		{"subclause keyword", "subclause 4", "4"},
		{"keyword only", "Clause", ""},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"paren suffix", "22.3(b)", "22.3B"},
		{"lowercase", "6b.3.2", "6B.3.2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Normalize(tc.in)
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	r := NewResolver()
	inputs := []string{
		"6A.1", " Clause 6A.1 ", "(6a.1)", "clause-22.3", "Sub-Clause 14",
		"", "   ", "clauseclause6", "CLAUSE-6A", "3.14", "5.2.2026", "[6.A]",
	}
	for _, in := range inputs {
		once := r.Normalize(in)
		twice := r.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestNormalizeCaseAndSpacingInsensitive(t *testing.T) {
	r := NewResolver()
	want := r.Normalize("Clause 6A.1")
	for _, in := range []string{"clause6a.1", "(6A.1)", " 6a.1 ", "Clause-6a.1"} {
		if got := r.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestVariants(t *testing.T) {
	r := NewResolver()
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "letter suffix",
			in:   "6A",
			want: []string{"6A", "6a", "6", "6.A", "6.a"},
		},
		{
			name: "dotted with embedded letter",
			in:   "6A.1",
			want: []string{"6A.1", "6a.1", "6.1"},
		},
		{
			name: "numeric only",
			in:   "22.3",
			want: []string{"22.3"},
		},
		{
			name: "dotted letter suffix",
			in:   "6.A",
			want: []string{"6.A", "6.a", "6", "6A", "6a"},
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Variants(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Variants(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestVariantsNormalizeFirst(t *testing.T) {
	r := NewResolver()
	// Raw citations and their normalized form expand identically.
	raw := r.Variants("Clause 6A")
	norm := r.Variants("6A")
	if !reflect.DeepEqual(raw, norm) {
		t.Fatalf("Variants(raw) = %v, Variants(normalized) = %v", raw, norm)
	}
}

func TestStripLetters(t *testing.T) {
	cases := map[string]string{
		"6A.1":   "6.1",
		"6.A":    "6",
		"22A.3":  "22.3",
		"6B.3.2": "6.3.2",
		"22.3":   "22.3",
	}
	for in, want := range cases {
		if got := stripLetters(in); got != want {
			t.Errorf("stripLetters(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildIndex(t *testing.T) {
	r := NewResolver()
	idx := r.BuildIndex([]string{"6A", "6A.1", "22.3", "", "  "})

	if idx.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (empty numbers skipped)", idx.Len())
	}
	for _, id := range []string{"6A.1", "6a.1", "6.1", "6A", "6a", "6.A", "22.3"} {
		if !idx.Contains(id) {
			t.Errorf("index missing spelling %q", id)
		}
	}
	if idx.Contains("99.9") {
		t.Error("index should not contain 99.9")
	}

	want := []string{"22.3", "6A", "6A.1"}
	if got := idx.Canonical(); !reflect.DeepEqual(got, want) {
		t.Errorf("Canonical() = %v, want %v", got, want)
	}
}

func TestBuildIndexIdempotent(t *testing.T) {
	r := NewResolver()
	numbers := []string{"6A", "6A.1", "22.3", "1.1"}
	a := r.BuildIndex(numbers)
	b := r.BuildIndex(numbers)
	if !reflect.DeepEqual(a.targets, b.targets) {
		t.Error("rebuilding the index changed its membership")
	}
	if !reflect.DeepEqual(a.Canonical(), b.Canonical()) {
		t.Error("rebuilding the index changed its canonical ids")
	}
}

func TestBuildIndexRealClauseBeatsAncestor(t *testing.T) {
	r := NewResolver()
	idx := r.BuildIndex([]string{"6A", "6A.1"})
	target, ok := r.resolveNumber("6.A", idx)
	if !ok {
		t.Fatal("6.A did not resolve")
	}
	if target != "6A" {
		t.Fatalf("6.A resolved to %q, want the real clause 6A", target)
	}
}

func TestResolveNumberVariantCoverage(t *testing.T) {
	r := NewResolver()
	// Only 6A.1 exists; the dotted ancestor spelling still lands on it.
	idx := r.BuildIndex([]string{"6A.1"})
	target, ok := r.resolveNumber("6.A", idx)
	if !ok {
		t.Fatal("6.A did not resolve against {6A.1}")
	}
	if target != "6A.1" {
		t.Fatalf("6.A resolved to %q, want 6A.1", target)
	}
}

func TestResolveNumberNilIndex(t *testing.T) {
	r := NewResolver()
	if _, ok := r.resolveNumber("6A.1", nil); ok {
		t.Error("nil index should never resolve")
	}
	if (*Index)(nil).Contains("6A.1") {
		t.Error("nil index Contains should be false")
	}
	if (*Index)(nil).Len() != 0 {
		t.Error("nil index Len should be 0")
	}
}
