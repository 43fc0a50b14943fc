// Package query parses the search expression language, matches predicates
// against occurrences, and projects matched results into output records.
package query

import (
	"fmt"
	"strings"

	"github.com/starford/dagaz/internal/apperr"
)

// Field identifies which event field a term compares against. The kind is
// fixed once at parse time; the matcher never re-dispatches on field names.
type Field int

const (
	FieldDescription Field = iota
	FieldUID
	FieldAlias
	FieldCalendar
	FieldLocation
	FieldNotes
	FieldTags
	FieldStart
	FieldEnd
)

var fieldNames = map[string]Field{
	"uid":         FieldUID,
	"alias":       FieldAlias,
	"calendar":    FieldCalendar,
	"description": FieldDescription,
	"location":    FieldLocation,
	"notes":       FieldNotes,
	"tags":        FieldTags,
	"start":       FieldStart,
	"end":         FieldEnd,
}

// Term is one field/value predicate. Tag terms carry an OR-set: the term is
// satisfied when the record has any listed tag. Start/end terms keep the raw
// literal; the matcher resolves it against its reference time.
type Term struct {
	Field Field
	Value string
	Tags  []string
}

// Filter is a parsed search expression: an AND-conjunction of include terms
// and an optional AND-conjunction of exclude terms. An empty include set
// matches unconditionally.
type Filter struct {
	Include []Term
	Exclude []Term
}

// HasExclude reports whether an exclusion tree is present.
func (f Filter) HasExclude() bool { return f.Exclude != nil }

// Parse parses a raw search expression of the form
// "term,term,...[%term,term,...]". Unqualified values and unrecognized field
// names fall back to a description search rather than failing; only
// structurally broken input is rejected with apperr.ErrMalformedExpression.
func Parse(raw string) (Filter, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))

	includeRaw := raw
	excludeRaw := ""
	if idx := strings.IndexByte(raw, '%'); idx >= 0 {
		includeRaw = strings.TrimSpace(raw[:idx])
		excludeRaw = strings.TrimSpace(raw[idx+1:])
		if strings.ContainsRune(excludeRaw, '%') {
			return Filter{}, fmt.Errorf("%w: more than one %q separator", apperr.ErrMalformedExpression, "%")
		}
		if excludeRaw == "" {
			return Filter{}, fmt.Errorf("%w: dangling %q", apperr.ErrMalformedExpression, "%")
		}
	}

	var f Filter
	// The literal "any" on the include side matches unconditionally; it
	// exists to pair with an exclude-only filter.
	if includeRaw != "" && includeRaw != "any" {
		terms, err := parseTerms(includeRaw)
		if err != nil {
			return Filter{}, err
		}
		f.Include = terms
	}
	if excludeRaw != "" {
		terms, err := parseTerms(excludeRaw)
		if err != nil {
			return Filter{}, err
		}
		f.Exclude = terms
	}
	return f, nil
}

func parseTerms(s string) ([]Term, error) {
	var out []Term
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, fmt.Errorf("%w: empty term", apperr.ErrMalformedExpression)
		}
		term, err := parseTerm(item)
		if err != nil {
			return nil, err
		}
		out = append(out, term)
	}
	return out, nil
}

func parseTerm(item string) (Term, error) {
	field := FieldDescription
	value := item

	if key, v, found := strings.Cut(item, "="); found {
		v = strings.TrimSpace(v)
		if v == "" {
			return Term{}, fmt.Errorf("%w: empty value in %q", apperr.ErrMalformedExpression, item)
		}
		value = v
		if known, ok := fieldNames[strings.TrimSpace(key)]; ok {
			field = known
		}
		// An unrecognized field name degrades to a description search.
	}

	t := Term{Field: field, Value: value}

	switch field {
	case FieldTags:
		for _, tag := range strings.Split(value, "+") {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				return Term{}, fmt.Errorf("%w: empty tag in %q", apperr.ErrMalformedExpression, item)
			}
			t.Tags = append(t.Tags, tag)
		}
	case FieldStart, FieldEnd:
		if strings.Count(value, "~") > 1 {
			return Term{}, fmt.Errorf("%w: unterminated range in %q", apperr.ErrMalformedExpression, item)
		}
	}
	return t, nil
}
