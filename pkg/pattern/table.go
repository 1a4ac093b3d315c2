package pattern

import (
	"fmt"
	"strings"
)

// Entry pairs a pattern with the value it resolves to.
type Entry[T any] struct {
	Pattern Pattern
	Value   T
}

// Shadow describes a wildcard entry that can never match because an earlier
// wildcard entry matches everything it would.
type Shadow struct {
	Pattern    string
	ShadowedBy string
}

// Table is an immutable, ordered pattern table. It is safe for concurrent use
// because it is never mutated after construction.
type Table[T any] struct {
	exact    map[string]int
	wildcard []int
	entries  []Entry[T]
}

// NewTable builds a table from entries in priority order. Duplicate exact
// literals are rejected.
func NewTable[T any](entries []Entry[T]) (*Table[T], error) {
	t := &Table[T]{
		exact:   make(map[string]int),
		entries: append([]Entry[T](nil), entries...),
	}
	for i, e := range t.entries {
		if e.Pattern.kind == Exact {
			if prev, ok := t.exact[e.Pattern.literal]; ok {
				return nil, fmt.Errorf("duplicate pattern %q (entries %d and %d)", e.Pattern.raw, prev, i)
			}
			t.exact[e.Pattern.literal] = i
			continue
		}
		t.wildcard = append(t.wildcard, i)
	}
	return t, nil
}

// Lookup returns the value of the first entry matching name along with the
// pattern that matched.
func (t *Table[T]) Lookup(name string) (T, Pattern, bool) {
	if i, ok := t.exact[strings.ToLower(name)]; ok {
		return t.entries[i].Value, t.entries[i].Pattern, true
	}
	for _, i := range t.wildcard {
		if t.entries[i].Pattern.Match(name) {
			return t.entries[i].Value, t.entries[i].Pattern, true
		}
	}
	var zero T
	return zero, Pattern{}, false
}

// Len returns the number of entries.
func (t *Table[T]) Len() int { return len(t.entries) }

// Shadowed lists wildcard entries made unreachable by an earlier wildcard.
// Exact entries are always tried first and are never shadowed.
func (t *Table[T]) Shadowed() []Shadow {
	var out []Shadow
	for j, qi := range t.wildcard {
		q := t.entries[qi].Pattern
		for _, pi := range t.wildcard[:j] {
			p := t.entries[pi].Pattern
			if p.covers(q) {
				out = append(out, Shadow{Pattern: q.raw, ShadowedBy: p.raw})
				break
			}
		}
	}
	return out
}
