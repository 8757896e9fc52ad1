package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/query/compiler"
)

func TestCompileSearch(t *testing.T) {
	tests := []struct {
		name string
		in   query.Search
		sql  string
		args []any
	}{
		{
			"single column",
			query.Search{Columns: []string{"name"}, Term: "toy"},
			"to_tsvector(name) @@ to_tsquery($1)",
			[]any{"toy"},
		},
		{
			"concatenated columns",
			query.Search{Columns: []string{"name", "Description"}, Term: "toy & red"},
			`to_tsvector(concat_ws(' ', name, "Description")) @@ to_tsquery($1)`,
			[]any{"toy & red"},
		},
		{
			"plain mode",
			query.Search{Columns: []string{"name"}, Term: "red toy", Mode: query.SearchPlain},
			"to_tsvector(name) @@ plainto_tsquery($1)",
			[]any{"red toy"},
		},
		{
			"web mode short name",
			query.Search{Columns: []string{"name"}, Term: `"red toy" -blue`, Mode: "web"},
			"to_tsvector(name) @@ websearch_to_tsquery($1)",
			[]any{`"red toy" -blue`},
		},
		{
			"language",
			query.Search{Columns: []string{"name", "notes"}, Term: "toys", Language: "english"},
			`to_tsvector($1::regconfig, concat_ws(' ', name, notes)) @@ to_tsquery($1::regconfig, $2)`,
			[]any{"english", "toys"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := compiler.Compile(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, p.SQL())
			assert.Equal(t, tt.args, p.Args)
		})
	}
}

func TestCompileSearchValidation(t *testing.T) {
	for _, s := range []query.Search{
		{Term: "x"},
		{Columns: []string{"name"}},
		{Columns: []string{"name"}, Term: "   "},
		{Columns: []string{""}, Term: "x"},
		{Columns: []string{"name"}, Term: "x", Mode: "fuzzy"},
	} {
		_, err := compiler.Compile(s)
		assert.ErrorIs(t, err, query.ErrValidation)
	}
}
