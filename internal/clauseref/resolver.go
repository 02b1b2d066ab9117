// Package clauseref resolves free-text clause citations ("Clause 6A.1",
// "Sub-Clause 22.3(b)") against the set of clauses known for one contract,
// turning them into navigable cross-links or a token stream.
//
// A Resolver holds only compiled patterns and is safe for concurrent use; an
// Index is read-only after construction and may be shared across callers.
package clauseref

import (
	"regexp"
	"strings"
	"unicode"
)

// Resolver matches and normalizes clause citations. All state is immutable
// configuration; construct once and reuse.
type Resolver struct {
	// citation captures an optional keyword prefix (group 1) followed by a
	// clause number (group 2): digits, an optional letter suffix with or
	// without a separating dot, further dotted segments of the same shape,
	// and an optional parenthesized lowercase sub-item suffix.
	citation *regexp.Regexp

	// letterSuffix recognizes ids of the shape <dotted-digits><letter>
	// ("6A", "22A", "6.A") for variant expansion.
	letterSuffix *regexp.Regexp

	// yearSegment recognizes a trailing calendar-year segment ("2026").
	yearSegment *regexp.Regexp
}

// NewResolver compiles the citation patterns.
func NewResolver() *Resolver {
	return &Resolver{
		citation:     regexp.MustCompile(`(?i)(\bsub[\s-]?clauses?[\s-]+|\bclauses?[\s-]+)?\b(\d+(?:\.?[a-z])?(?:\.\d+(?:\.?[a-z])?)*(?:\((?-i:[a-z0-9]{1,3})\))?)`),
		letterSuffix: regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?([A-Za-z])$`),
		yearSegment:  regexp.MustCompile(`^(?:19|20)\d\d$`),
	}
}

// Normalize canonicalizes a raw clause citation into a stable lookup key:
// surrounding and internal whitespace removed, parentheses and brackets
// removed, a leading "clause"/"sub-clause" keyword stripped, and the result
// uppercased. Empty input yields the empty string. Normalize is idempotent.
func (r *Resolver) Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.Map(func(c rune) rune {
		if unicode.IsSpace(c) || c == '(' || c == ')' || c == '[' || c == ']' {
			return -1
		}
		return c
	}, s)
	s = strings.ToLower(s)
	for {
		stripped := false
		for _, prefix := range []string{"sub-clause", "subclause", "clause"} {
			if strings.HasPrefix(s, prefix) {
				s = strings.TrimPrefix(strings.TrimPrefix(s, prefix), "-")
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.ToUpper(s)
}

// Variants returns the acceptable spellings of one clause id in a fixed
// order: the normalized form, its lower and upper case spellings, a
// digits-only spelling with letters stripped, and for <digits><letter>
// shapes the dot-inserted and dot-omitted spellings in both letter cases.
// Source documents disagree about dot placement and case around sub-clause
// letters ("Clause 6A" vs "Clause 6.A"), so lookups must accept any of them.
//
// The enumeration is deliberately a small fixed list, not a fuzzy matcher:
// over-matching silently creates wrong cross-references in legal text.
func (r *Resolver) Variants(raw string) []string {
	norm := r.Normalize(raw)
	if norm == "" {
		return nil
	}
	out := make([]string, 0, 8)
	seen := make(map[string]struct{}, 8)
	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	add(norm)
	add(strings.ToLower(norm))
	add(strings.ToUpper(norm))
	if digits := stripLetters(norm); digits != norm {
		add(digits)
	}
	if m := r.letterSuffix.FindStringSubmatch(norm); m != nil {
		prefix := m[1]
		upper := strings.ToUpper(m[2])
		lower := strings.ToLower(m[2])
		add(prefix + upper)
		add(prefix + lower)
		add(prefix + "." + upper)
		add(prefix + "." + lower)
	}
	return out
}

// stripLetters removes letters from an id and tidies leftover dots, turning
// "6A.1" into "6.1" and "6.A" into "6".
func stripLetters(id string) string {
	var b strings.Builder
	for _, c := range id {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		b.WriteRune(c)
	}
	s := b.String()
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	return strings.Trim(s, ".")
}

// isYearLike reports whether a dotted number ends in a calendar-year
// segment ("5.2.2026"). Such matches are dates, not citations.
func (r *Resolver) isYearLike(number string) bool {
	if i := strings.IndexByte(number, '('); i >= 0 {
		number = number[:i]
	}
	parts := strings.Split(number, ".")
	if len(parts) < 2 {
		return false
	}
	return r.yearSegment.MatchString(parts[len(parts)-1])
}

// accepts decides whether a pattern match is a genuine citation. Bare
// single-segment numbers need the keyword prefix; bare dotted numbers are
// accepted only when a letter sub-part or parenthesized context marks them
// as citations rather than plain decimals ("3.14"). Year-tailed numbers are
// never citations, keyword or not.
func (r *Resolver) accepts(hasKeyword bool, number string, parenthesized bool) bool {
	if r.isYearLike(number) {
		return false
	}
	if hasKeyword {
		return true
	}
	base := number
	hasSubItem := false
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = base[:i]
		hasSubItem = true
	}
	if !strings.Contains(base, ".") {
		return false
	}
	return hasSubItem || parenthesized || containsLetter(base)
}

func containsLetter(s string) bool {
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return true
		}
	}
	return false
}

// candidate is one grammar match inside a text scan. start/end span the full
// match including any keyword; numStart/numEnd span the number alone.
type candidate struct {
	start, end       int
	numStart, numEnd int
	number           string
}

// scan finds accepted citation candidates in order of appearance.
func (r *Resolver) scan(text string) []candidate {
	matches := r.citation.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	cands := make([]candidate, 0, len(matches))
	for _, m := range matches {
		hasKeyword := m[2] != -1
		number := text[m[4]:m[5]]
		parenthesized := m[0] > 0 && text[m[0]-1] == '(' &&
			m[1] < len(text) && text[m[1]] == ')'
		if !r.accepts(hasKeyword, number, parenthesized) {
			continue
		}
		cands = append(cands, candidate{
			start:    m[0],
			end:      m[1],
			numStart: m[4],
			numEnd:   m[5],
			number:   number,
		})
	}
	return cands
}
