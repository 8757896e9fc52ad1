// Package ident renders PostgreSQL identifiers.
//
// Names that are already valid bare identifiers are emitted unchanged so the
// generated SQL stays readable. Anything else (mixed case, reserved words,
// punctuation) is double-quoted with embedded quotes doubled. Names the
// caller already delimited are passed through.
package ident

import (
	"strings"

	"github.com/lib/pq"
)

// Quote returns name as a safe SQL identifier.
func Quote(name string) string {
	if IsDelimited(name) {
		return name
	}
	if !NeedsQuoting(name) {
		return name
	}
	return pq.QuoteIdentifier(name)
}

// QuoteAll quotes every name.
func QuoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Quote(n)
	}
	return out
}

// Qualified renders schema.name, omitting an empty schema.
func Qualified(schema, name string) string {
	if schema == "" {
		return Quote(name)
	}
	return Quote(schema) + "." + Quote(name)
}

// NeedsQuoting reports whether name cannot appear bare.
func NeedsQuoting(name string) bool {
	if name == "" {
		return true
	}
	if name[0] >= '0' && name[0] <= '9' {
		return true
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' {
			return true
		}
	}
	return IsReserved(name)
}

// IsDelimited reports whether name is a complete quoted identifier such as
// "Users" or "a""b".
func IsDelimited(name string) bool {
	if len(name) < 2 || name[0] != '"' || name[len(name)-1] != '"' {
		return false
	}
	inner := name[1 : len(name)-1]
	if inner == "" {
		return false
	}
	for i := 0; i < len(inner); i++ {
		if inner[i] != '"' {
			continue
		}
		if i+1 >= len(inner) || inner[i+1] != '"' {
			return false
		}
		i++
	}
	return true
}

// Unquote strips delimiters from a quoted identifier. Other names are
// returned as-is.
func Unquote(name string) string {
	if !IsDelimited(name) {
		return name
	}
	return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
}

// IsReserved reports whether word is a PostgreSQL reserved key word.
func IsReserved(word string) bool {
	_, ok := reserved[strings.ToLower(word)]
	return ok
}

var reserved = map[string]struct{}{
	"all": {}, "analyse": {}, "analyze": {}, "and": {}, "any": {}, "array": {},
	"as": {}, "asc": {}, "asymmetric": {}, "authorization": {}, "binary": {},
	"both": {}, "case": {}, "cast": {}, "check": {}, "collate": {},
	"collation": {}, "column": {}, "concurrently": {}, "constraint": {},
	"create": {}, "cross": {}, "current_catalog": {}, "current_date": {},
	"current_role": {}, "current_schema": {}, "current_time": {},
	"current_timestamp": {}, "current_user": {}, "default": {},
	"deferrable": {}, "desc": {}, "distinct": {}, "do": {}, "else": {},
	"end": {}, "except": {}, "false": {}, "fetch": {}, "for": {},
	"foreign": {}, "freeze": {}, "from": {}, "full": {}, "grant": {},
	"group": {}, "having": {}, "ilike": {}, "in": {}, "initially": {},
	"inner": {}, "intersect": {}, "into": {}, "is": {}, "isnull": {},
	"join": {}, "lateral": {}, "leading": {}, "left": {}, "like": {},
	"limit": {}, "localtime": {}, "localtimestamp": {}, "natural": {},
	"not": {}, "notnull": {}, "null": {}, "offset": {}, "on": {}, "only": {},
	"or": {}, "order": {}, "outer": {}, "overlaps": {}, "placing": {},
	"primary": {}, "references": {}, "returning": {}, "right": {},
	"select": {}, "session_user": {}, "similar": {}, "some": {},
	"symmetric": {}, "system_user": {}, "table": {}, "tablesample": {},
	"then": {}, "to": {}, "trailing": {}, "true": {}, "union": {},
	"unique": {}, "user": {}, "using": {}, "variadic": {}, "verbose": {},
	"when": {}, "where": {}, "window": {}, "with": {},
}
