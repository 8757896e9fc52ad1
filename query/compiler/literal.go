package compiler

import (
	"fmt"
	"strings"

	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/query/operator"
)

var arrayEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`'`, `\'`,
	`,`, `\,`,
	`{`, `\{`,
	`}`, `\}`,
)

// ArrayLiteral renders values as a PostgreSQL array literal. Every element
// is double-quoted with backslash escapes so that quotes, commas and braces
// survive the round trip; nil becomes NULL. The literal is meant to be
// bound as a parameter, not spliced into SQL.
func ArrayLiteral(values []any) (string, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		shape, _ := query.Classify(v)
		switch shape {
		case query.ShapeNull:
			b.WriteString("NULL")
			continue
		case query.ShapeList, query.ShapeObject:
			return "", fmt.Errorf("array element %d: nested %s values are not supported", i, shape)
		}
		text, err := operator.Text(v)
		if err != nil {
			return "", fmt.Errorf("array element %d: %w", i, err)
		}
		b.WriteByte('"')
		b.WriteString(arrayEscaper.Replace(text))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String(), nil
}
