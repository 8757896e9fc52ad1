package compiler

import (
	"fmt"
	"strings"

	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/query/ident"
)

// Search appends a full-text match of s.Term against the concatenated
// s.Columns.
func (b *Builder) Search(s query.Search) error {
	if len(s.Columns) == 0 {
		return &query.ValidationError{Field: "columns", Reason: "search needs at least one column"}
	}
	if strings.TrimSpace(s.Term) == "" {
		return &query.ValidationError{Field: "term", Reason: "search term must not be empty"}
	}
	mode, err := query.ParseSearchMode(string(s.Mode))
	if err != nil {
		return err
	}

	vector, err := searchVector(s.Columns)
	if err != nil {
		return err
	}

	var sql string
	if s.Language != "" {
		lang := b.Bind(s.Language)
		sql = fmt.Sprintf("to_tsvector(%s::regconfig, %s) @@ %s(%s::regconfig, %s)", lang, vector, mode, lang, b.Bind(s.Term))
	} else {
		sql = fmt.Sprintf("to_tsvector(%s) @@ %s(%s)", vector, mode, b.Bind(s.Term))
	}
	b.conds = append(b.conds, condition{sql: sql})
	return nil
}

func searchVector(columns []string) (string, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		if strings.TrimSpace(c) == "" {
			return "", &query.ValidationError{Field: "columns", Reason: "column name must not be blank"}
		}
		quoted[i] = ident.Quote(c)
	}
	if len(quoted) == 1 {
		return quoted[0], nil
	}
	return "concat_ws(' ', " + strings.Join(quoted, ", ") + ")", nil
}
