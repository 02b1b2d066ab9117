package clauseref

import (
	"fmt"
	"strings"
)

// TokenKind distinguishes verbatim text from resolved citations.
type TokenKind string

const (
	TokenText TokenKind = "text"
	TokenRef  TokenKind = "ref"
)

// Token classifies one span of clause body text. Concatenating the Value
// fields of a token sequence reproduces the input byte-for-byte; tokens only
// classify ranges, they never alter characters. Ref tokens additionally
// carry the normalized clause id in Target.
type Token struct {
	Kind   TokenKind `json:"kind"`
	Value  string    `json:"value"`
	Target string    `json:"target,omitempty"`
}

// AnchorTarget is the navigation target convention for a resolved clause:
// collaborating UI code exposes a scroll target with this identifier.
func AnchorTarget(id string) string {
	return "#clause-" + id
}

// Tokenize splits text into a flat token sequence. Keyword prefixes
// ("Clause "), trailing punctuation, and parentheses around a number stay in
// text tokens; only the number itself (including a "(b)"-style sub-item
// suffix, which the grammar treats as part of the number) becomes a ref
// token. Ref targets are normalized but unresolved; apply ResolveTokens to
// check them against a contract's index.
func (r *Resolver) Tokenize(text string) []Token {
	if text == "" {
		return nil
	}
	cands := r.scan(text)
	tokens := make([]Token, 0, len(cands)*2+1)
	last := 0
	for _, c := range cands {
		if c.numStart > last {
			tokens = append(tokens, Token{Kind: TokenText, Value: text[last:c.numStart]})
		}
		tokens = append(tokens, Token{
			Kind:   TokenRef,
			Value:  text[c.numStart:c.numEnd],
			Target: r.Normalize(c.number),
		})
		last = c.numEnd
	}
	if last < len(text) {
		tokens = append(tokens, Token{Kind: TokenText, Value: text[last:]})
	}
	return tokens
}

// ResolveTokens checks ref tokens against the index, rewriting targets to
// the canonical clause id. Refs with no target in the index degrade to text
// tokens; the citation is preserved verbatim, never altered or dropped.
func (r *Resolver) ResolveTokens(tokens []Token, idx *Index) []Token {
	if len(tokens) == 0 {
		return tokens
	}
	out := make([]Token, len(tokens))
	for i, t := range tokens {
		if t.Kind == TokenRef {
			if target, ok := r.resolveNumber(t.Value, idx); ok {
				t.Target = target
			} else {
				t = Token{Kind: TokenText, Value: t.Value}
			}
		}
		out[i] = t
	}
	return out
}

// Linkify wraps every citation that resolves against the index in an anchor
// element pointing at the clause's scroll target. The visible text is the
// matched substring exactly as written, keyword included; everything else
// passes through verbatim, so unresolved input comes back unchanged. The
// input is emitted as-is: escape clause bodies before linkifying when they
// may contain markup.
func (r *Resolver) Linkify(text string, idx *Index) string {
	if text == "" {
		return ""
	}
	cands := r.scan(text)
	var b strings.Builder
	last := 0
	for _, c := range cands {
		target, ok := r.resolveNumber(c.number, idx)
		if !ok {
			continue
		}
		b.WriteString(text[last:c.start])
		fmt.Fprintf(&b, `<a href="%s" class="clause-ref" data-clause="%s">%s</a>`,
			AnchorTarget(target), target, text[c.start:c.end])
		last = c.end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}
