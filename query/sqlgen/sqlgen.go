// Package sqlgen assembles complete PostgreSQL statements from a compiled
// predicate and call options.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/query/compiler"
	"github.com/kzar79/massive-go/query/ident"
)

// Table names the relation a statement reads from.
type Table struct {
	Schema string
	Name   string
}

// SQL renders the table reference. The public schema is left implicit.
func (t Table) SQL() string {
	if t.Schema == "public" {
		return ident.Quote(t.Name)
	}
	return ident.Qualified(t.Schema, t.Name)
}

// PostgresGenerator generates PostgreSQL SQL
type PostgresGenerator struct{}

// NewGenerator creates a PostgreSQL generator.
func NewGenerator() *PostgresGenerator {
	return &PostgresGenerator{}
}

// GenerateSelect renders SELECT ... FROM ... [WHERE] [ORDER BY] [LIMIT]
// [OFFSET]. Paging values are bound after the predicate's arguments.
func (g *PostgresGenerator) GenerateSelect(table Table, where compiler.Predicate, opts query.Options) (query.Statement, error) {
	if err := opts.Validate(); err != nil {
		return query.Statement{}, err
	}

	var parts []string
	args := append([]any(nil), where.Args...)
	argIndex := where.Next
	if argIndex < 1 {
		argIndex = len(args) + 1
	}

	parts = append(parts, "SELECT "+Projection(opts.Columns))
	parts = append(parts, "FROM "+table.SQL())

	if !where.Empty() {
		parts = append(parts, "WHERE "+where.SQL())
	}

	if order := strings.TrimSpace(opts.Order); order != "" {
		parts = append(parts, "ORDER BY "+order)
	}

	if opts.Limit != nil {
		parts = append(parts, fmt.Sprintf("LIMIT $%d", argIndex))
		args = append(args, *opts.Limit)
		argIndex++
	}

	if opts.Offset != nil && *opts.Offset > 0 {
		parts = append(parts, fmt.Sprintf("OFFSET $%d", argIndex))
		args = append(args, *opts.Offset)
	}

	return query.Statement{
		SQL:  strings.Join(parts, " "),
		Args: args,
	}, nil
}

// GenerateCount renders SELECT COUNT(*) with the predicate. Counting never
// orders or pages.
func (g *PostgresGenerator) GenerateCount(table Table, where compiler.Predicate) query.Statement {
	sql := "SELECT COUNT(*) FROM " + table.SQL()
	if !where.Empty() {
		sql += " WHERE " + where.SQL()
	}
	return query.Statement{
		SQL:  sql,
		Args: append([]any(nil), where.Args...),
	}
}

// Projection renders the select list. Every entry is an identifier:
// delimited names are kept and the rest are quoted as needed.
func Projection(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	return strings.Join(ident.QuoteAll(columns), ", ")
}
