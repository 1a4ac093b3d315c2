// Package pattern implements the ordered model-name matching used by both the
// provider router and the pricing table.
//
// A pattern is one of:
//
//	gpt-4o-mini     exact literal
//	gpt-*           prefix
//	*-preview       suffix
//	*claude-opus*   substring
//	*               catch-all
//
// Matching is case-insensitive. A Table tries every exact literal first and
// then the wildcard patterns in declaration order; the first match wins.
package pattern

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pattern.
type Kind int

const (
	// Exact matches one literal name.
	Exact Kind = iota
	// Prefix matches names starting with the literal.
	Prefix
	// Suffix matches names ending with the literal.
	Suffix
	// Contains matches names containing the literal.
	Contains
	// Any matches every name.
	Any
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Prefix:
		return "prefix"
	case Suffix:
		return "suffix"
	case Contains:
		return "contains"
	case Any:
		return "any"
	default:
		return "unknown"
	}
}

// ErrEmptyPattern is returned when parsing an empty pattern.
var ErrEmptyPattern = errors.New("pattern cannot be empty")

// Pattern is a parsed model-name pattern.
type Pattern struct {
	raw     string
	kind    Kind
	literal string
}

// Parse parses a pattern string. A '*' is only allowed as the first and/or
// last character.
func Parse(s string) (Pattern, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Pattern{}, ErrEmptyPattern
	}
	if s == "*" || s == "**" {
		return Pattern{raw: s, kind: Any}, nil
	}

	lead := strings.HasPrefix(s, "*")
	trail := strings.HasSuffix(s, "*")
	literal := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(s, "*"), "*"))
	if strings.Contains(literal, "*") {
		return Pattern{}, fmt.Errorf("pattern %q: wildcard only allowed at the start or end", s)
	}

	p := Pattern{raw: s, literal: literal}
	switch {
	case lead && trail:
		p.kind = Contains
	case lead:
		p.kind = Suffix
	case trail:
		p.kind = Prefix
	default:
		p.kind = Exact
	}
	return p, nil
}

// MustParse is like Parse but panics on error. Intended for static tables.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Kind returns the pattern's kind.
func (p Pattern) Kind() Kind { return p.kind }

// String returns the pattern as written.
func (p Pattern) String() string { return p.raw }

// Match reports whether name matches the pattern.
func (p Pattern) Match(name string) bool {
	name = strings.ToLower(name)
	switch p.kind {
	case Exact:
		return name == p.literal
	case Prefix:
		return strings.HasPrefix(name, p.literal)
	case Suffix:
		return strings.HasSuffix(name, p.literal)
	case Contains:
		return strings.Contains(name, p.literal)
	case Any:
		return true
	default:
		return false
	}
}

// covers reports whether every name matched by q is also matched by p.
func (p Pattern) covers(q Pattern) bool {
	switch p.kind {
	case Any:
		return true
	case Prefix:
		return (q.kind == Prefix || q.kind == Exact) && strings.HasPrefix(q.literal, p.literal)
	case Suffix:
		return (q.kind == Suffix || q.kind == Exact) && strings.HasSuffix(q.literal, p.literal)
	case Contains:
		return q.kind != Any && strings.Contains(q.literal, p.literal)
	case Exact:
		return q.kind == Exact && q.literal == p.literal
	}
	return false
}
