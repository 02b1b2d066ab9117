package clauseref

import (
	"sort"
	"strings"
)

// Index is the set of clause ids linkable within one contract, with every
// acceptable spelling mapped to its canonical id. It is built from the
// contract's current clause list (GENERAL and PARTICULAR sections), held in
// memory only, and must be rebuilt whenever the clause list changes. Once
// built it is read-only and safe to share across concurrent linking passes.
type Index struct {
	targets   map[string]string
	canonical []string
}

// BuildIndex constructs the lookup index from raw clause numbers. Empty
// numbers are skipped; those rows are paragraphs or fields, not clauses.
// Building is idempotent: the same list always yields the same index.
func (r *Resolver) BuildIndex(numbers []string) *Index {
	idx := &Index{targets: make(map[string]string, len(numbers)*4)}

	// Canonical ids first so no variant spelling can shadow a real clause.
	for _, number := range numbers {
		norm := r.Normalize(number)
		if norm == "" {
			continue
		}
		if _, ok := idx.targets[norm]; !ok {
			idx.targets[norm] = norm
			idx.canonical = append(idx.canonical, norm)
		}
	}
	sort.Strings(idx.canonical)

	for _, norm := range idx.canonical {
		for _, v := range r.Variants(norm) {
			idx.putIfAbsent(v, norm)
		}
	}

	// Dotted ancestors answer for their nearest numbered descendant, so
	// "Clause 6.A" still lands on 6A.1 when 6A itself carries no text row.
	for _, norm := range idx.canonical {
		parts := strings.Split(norm, ".")
		for i := len(parts) - 1; i >= 1; i-- {
			ancestor := strings.Join(parts[:i], ".")
			for _, v := range r.Variants(ancestor) {
				idx.putIfAbsent(v, norm)
			}
		}
	}
	return idx
}

func (idx *Index) putIfAbsent(spelling, canonical string) {
	if spelling == "" {
		return
	}
	if _, ok := idx.targets[spelling]; !ok {
		idx.targets[spelling] = canonical
	}
}

// Contains reports whether a spelling is an acceptable clause id.
func (idx *Index) Contains(id string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.targets[id]
	return ok
}

// Canonical returns the sorted canonical clause ids in the index.
func (idx *Index) Canonical() []string {
	if idx == nil {
		return nil
	}
	out := make([]string, len(idx.canonical))
	copy(out, idx.canonical)
	return out
}

// Len reports the number of canonical clause ids.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.canonical)
}

// resolveNumber maps a cited number to a canonical clause id: the normalized
// form first, then each variant in the fixed order Variants produces. A miss
// is not an error; the citation simply stays plain text.
func (r *Resolver) resolveNumber(number string, idx *Index) (string, bool) {
	if idx == nil {
		return "", false
	}
	if target, ok := idx.targets[r.Normalize(number)]; ok {
		return target, true
	}
	for _, v := range r.Variants(number) {
		if target, ok := idx.targets[v]; ok {
			return target, true
		}
	}
	return "", false
}
