package clauseref

import (
	"strings"
	"testing"
)

func joinValues(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Value)
	}
	return b.String()
}

func TestTokenizeRoundTrip(t *testing.T) {
	r := NewResolver()
	inputs := []string{
		"",
		"no citations here",
		"See Clause 6A.1 for details.",
		"Refer to Clause 6A.1 and also (22.3).",
		"Sub-Clause 22.3(b) applies, see also Clause 14.1.",
		"pi is 3.14 and the deadline is 5.2.2026",
		"Clause 1.1 and Clause 1.1 again",
		"(Clause 6) [6A.1] 6B.3.2 trailing",
		"unicode — Clause 6A.1 — preserved",
	}
	for _, in := range inputs {
		tokens := r.Tokenize(in)
		if got := joinValues(tokens); got != in {
			t.Errorf("round trip failed:\n in: %q\nout: %q", in, got)
		}
	}
}

func TestTokenizeEmpty(t *testing.T) {
	r := NewResolver()
	if tokens := r.Tokenize(""); len(tokens) != 0 {
		t.Fatalf("Tokenize(\"\") = %v, want empty sequence", tokens)
	}
}

func TestTokenizeKeywordStaysInTextToken(t *testing.T) {
	r := NewResolver()
	tokens := r.Tokenize("See Clause 6A.1 now")
	want := []Token{
		{Kind: TokenText, Value: "See Clause "},
		{Kind: TokenRef, Value: "6A.1", Target: "6A.1"},
		{Kind: TokenText, Value: " now"},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(tokens), tokens, len(want))
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d = %+v, want %+v", i, tokens[i], want[i])
		}
	}
}

func TestTokenizeParensStayOutsideRef(t *testing.T) {
	r := NewResolver()
	tokens := r.Tokenize("and also (22.3).")
	want := []Token{
		{Kind: TokenText, Value: "and also ("},
		{Kind: TokenRef, Value: "22.3", Target: "22.3"},
		{Kind: TokenText, Value: ")."},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d = %+v, want %+v", i, tokens[i], want[i])
		}
	}
}

func TestTokenizeSubItemSuffixInsideRef(t *testing.T) {
	r := NewResolver()
	tokens := r.Tokenize("per Sub-Clause 22.3(b) above")
	var ref *Token
	for i := range tokens {
		if tokens[i].Kind == TokenRef {
			ref = &tokens[i]
		}
	}
	if ref == nil {
		t.Fatal("no ref token found")
	}
	if ref.Value != "22.3(b)" {
		t.Errorf("ref value = %q, want the sub-item suffix kept inside", ref.Value)
	}
	if ref.Target != "22.3B" {
		t.Errorf("ref target = %q, want 22.3B", ref.Target)
	}
}

func TestTokenizeExclusions(t *testing.T) {
	r := NewResolver()
	cases := []struct {
		name string
		in   string
	}{
		{"bare decimal", "pi is roughly 3.14 here"},
		{"date", "Delivered by 5.2.2026"},
		{"date with keyword", "per Clause 5.2.2026 oddity"},
		{"bare integer", "within 14 days"},
		{"bare integer year", "in 2026 alone"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, tok := range r.Tokenize(tc.in) {
				if tok.Kind == TokenRef {
					t.Fatalf("input %q produced ref token %+v", tc.in, tok)
				}
			}
		})
	}
}

func TestResolveTokens(t *testing.T) {
	r := NewResolver()
	idx := r.BuildIndex([]string{"6A.1", "22.3"})
	tokens := r.ResolveTokens(r.Tokenize("Clause 6a.1, Clause 99.9, and (22.3)"), idx)

	var refs []Token
	for _, tok := range tokens {
		if tok.Kind == TokenRef {
			refs = append(refs, tok)
		}
	}
	if len(refs) != 2 {
		t.Fatalf("got %d ref tokens %v, want 2", len(refs), refs)
	}
	if refs[0].Value != "6a.1" || refs[0].Target != "6A.1" {
		t.Errorf("first ref = %+v, want verbatim value 6a.1 targeting 6A.1", refs[0])
	}
	if refs[1].Value != "22.3" || refs[1].Target != "22.3" {
		t.Errorf("second ref = %+v", refs[1])
	}

	// The unresolved citation degrades to text but keeps its characters.
	if got := joinValues(tokens); got != "Clause 6a.1, Clause 99.9, and (22.3)" {
		t.Errorf("resolution altered the text: %q", got)
	}
}

func TestLinkifyVariantCoverage(t *testing.T) {
	r := NewResolver()
	idx := r.BuildIndex([]string{"6A.1"})
	got := r.Linkify("See Clause 6.A for details", idx)
	want := `See <a href="#clause-6A.1" class="clause-ref" data-clause="6A.1">Clause 6.A</a> for details`
	if got != want {
		t.Fatalf("Linkify = %q, want %q", got, want)
	}
}

func TestLinkifyMissLeavesTextUnchanged(t *testing.T) {
	r := NewResolver()
	idx := r.BuildIndex([]string{"6A.1"})
	in := "See Clause 99.9 for details"
	if got := r.Linkify(in, idx); got != in {
		t.Fatalf("Linkify changed unresolved text: %q", got)
	}
}

func TestLinkifyYearExclusion(t *testing.T) {
	r := NewResolver()
	idx := r.BuildIndex([]string{"5.2", "2.2026"})
	in := "Delivered by 5.2.2026"
	if got := r.Linkify(in, idx); got != in {
		t.Fatalf("year-like number was linked: %q", got)
	}
}

func TestLinkifyMultipleCitations(t *testing.T) {
	r := NewResolver()
	idx := r.BuildIndex([]string{"1.1"})
	got := r.Linkify("Clause 1.1 and Clause 1.1 again", idx)
	if n := strings.Count(got, `href="#clause-1.1"`); n != 2 {
		t.Fatalf("want both occurrences linked independently, got %d in %q", n, got)
	}
	if !strings.HasSuffix(got, " again") {
		t.Errorf("surrounding text not preserved: %q", got)
	}
}

func TestLinkifyEmptyAndNilIndex(t *testing.T) {
	r := NewResolver()
	if got := r.Linkify("", r.BuildIndex([]string{"1.1"})); got != "" {
		t.Errorf("Linkify(\"\") = %q", got)
	}
	in := "Clause 1.1 stays plain"
	if got := r.Linkify(in, nil); got != in {
		t.Errorf("nil index should leave text unchanged, got %q", got)
	}
}

func TestLinkifyEndToEnd(t *testing.T) {
	r := NewResolver()
	idx := r.BuildIndex([]string{"6A", "6A.1", "22.3"})
	got := r.Linkify("Refer to Clause 6A.1 and also (22.3).", idx)
	want := `Refer to <a href="#clause-6A.1" class="clause-ref" data-clause="6A.1">Clause 6A.1</a> and also (<a href="#clause-22.3" class="clause-ref" data-clause="22.3">22.3</a>).`
	if got != want {
		t.Fatalf("end to end:\n got %q\nwant %q", got, want)
	}
}

func TestLinkifyKeywordRequiredForSingleSegments(t *testing.T) {
	r := NewResolver()
	idx := r.BuildIndex([]string{"6", "14"})
	in := "within 14 days of notice"
	if got := r.Linkify(in, idx); got != in {
		t.Fatalf("bare integer was linked: %q", got)
	}
	got := r.Linkify("per Clause 14 hereof", idx)
	if !strings.Contains(got, `href="#clause-14"`) {
		t.Fatalf("keyword-prefixed single segment not linked: %q", got)
	}
}
