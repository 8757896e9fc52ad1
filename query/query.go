// Package query defines the data model shared by the predicate compiler, the
// clause assembler and the executor: criteria, descriptors, call options,
// compiled statements and result rows.
package query

import (
	"fmt"
	"strings"
)

// Statement is a compiled SQL statement and its positional arguments.
// Placeholders are numbered $1..$n in the order the arguments appear.
type Statement struct {
	SQL  string
	Args []any
}

func (s Statement) String() string {
	return fmt.Sprintf("%s %v", s.SQL, s.Args)
}

// Row is one result record keyed by column name.
type Row map[string]any

// Criteria selects rows of a relation. The implementations are Descriptor,
// Key, Raw and Search. A nil Criteria matches every row.
type Criteria interface {
	criteria()
}

func (Descriptor) criteria() {}
func (Key) criteria()        {}
func (Raw) criteria()        {}
func (Search) criteria()     {}

// Key matches the single row whose primary key equals Value.
type Key struct {
	Value any
}

// PK is shorthand for Key{Value: v}.
func PK(v any) Key {
	return Key{Value: v}
}

// Raw is a caller-written boolean SQL condition using $1..$n placeholders.
type Raw struct {
	SQL    string
	Params []any
}

// Cond builds a Raw condition. params may be nil, a single scalar or a
// sequence; a scalar becomes a one-element parameter list.
func Cond(sql string, params any) Raw {
	return Raw{SQL: sql, Params: Params(params)}
}

// Params coerces a parameter argument into a positional list.
func Params(v any) []any {
	if v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		return list
	}
	shape, items := Classify(v)
	switch shape {
	case ShapeNull:
		return []any{nil}
	case ShapeList:
		return items
	default:
		return []any{v}
	}
}

// SearchMode names the tsquery constructor used for the search term.
type SearchMode string

const (
	// SearchQuery parses the term with to_tsquery operator syntax.
	SearchQuery SearchMode = "to_tsquery"
	// SearchPlain treats the term as plain text.
	SearchPlain SearchMode = "plainto_tsquery"
	// SearchPhrase matches the term as a phrase.
	SearchPhrase SearchMode = "phraseto_tsquery"
	// SearchWeb accepts web-search syntax (PostgreSQL 11+).
	SearchWeb SearchMode = "websearch_to_tsquery"
)

// ParseSearchMode accepts a mode's function name or its short form
// ("to", "plain", "phrase", "web").
func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "to", string(SearchQuery):
		return SearchQuery, nil
	case "plain", "plainto", string(SearchPlain):
		return SearchPlain, nil
	case "phrase", "phraseto", string(SearchPhrase):
		return SearchPhrase, nil
	case "web", "websearch", string(SearchWeb):
		return SearchWeb, nil
	}
	return "", &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown search mode %q", s)}
}

// Search is a full-text search over the concatenation of Columns.
type Search struct {
	Columns []string
	Term    string
	// Mode defaults to SearchQuery.
	Mode SearchMode
	// Language is an optional text search configuration such as "english".
	Language string
}
