package executor

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/kzar79/massive-go/query"
)

type converter func(src any) (any, error)

// decoder turns scanned driver values into row values: json and jsonb
// become Go values, PostgreSQL arrays become slices and remaining byte
// slices become strings.
type decoder struct {
	columns []string
	convert []converter
}

func newDecoder(rows *sql.Rows) (*decoder, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	d := &decoder{columns: columns, convert: make([]converter, len(columns))}
	for i := range columns {
		name := ""
		if i < len(types) && types[i] != nil {
			name = types[i].DatabaseTypeName()
		}
		d.convert[i] = converterFor(name)
	}
	return d, nil
}

func (d *decoder) scan(rows *sql.Rows) (query.Row, error) {
	values := make([]any, len(d.columns))
	ptrs := make([]any, len(d.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	row := make(query.Row, len(d.columns))
	for i, col := range d.columns {
		v, err := d.convert[i](values[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decode column %s: %w", col, err)
		}
		row[col] = v
	}
	return row, nil
}

func converterFor(typeName string) converter {
	switch strings.ToUpper(typeName) {
	case "JSON", "JSONB":
		return decodeJSON
	case "_INT2", "_INT4", "_INT8", "_OID":
		return decodeArray(func(n *sql.NullInt64) any {
			if n.Valid {
				return n.Int64
			}
			return nil
		})
	case "_FLOAT4", "_FLOAT8":
		return decodeArray(func(f *sql.NullFloat64) any {
			if f.Valid {
				return f.Float64
			}
			return nil
		})
	case "_BOOL":
		return decodeArray(func(b *sql.NullBool) any {
			if b.Valid {
				return b.Bool
			}
			return nil
		})
	case "_BYTEA":
		return decodeBytea
	}
	if strings.HasPrefix(typeName, "_") {
		return decodeArray(func(s *sql.NullString) any {
			if s.Valid {
				return s.String
			}
			return nil
		})
	}
	return decodePlain
}

func decodePlain(src any) (any, error) {
	if b, ok := src.([]byte); ok {
		return string(b), nil
	}
	return src, nil
}

func decodeJSON(src any) (any, error) {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		// Drivers that decode json themselves.
		return v, nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeArray parses a one-dimensional array literal into []any, keeping
// NULL elements as nil.
func decodeArray[T any, P interface {
	*T
	sql.Scanner
}](value func(P) any) converter {
	return func(src any) (any, error) {
		switch src.(type) {
		case nil:
			return nil, nil
		case []byte, string:
		default:
			return src, nil
		}

		var cells []T
		if err := (pq.GenericArray{A: &cells}).Scan(src); err != nil {
			return nil, err
		}
		out := make([]any, len(cells))
		for i := range cells {
			out[i] = value(P(&cells[i]))
		}
		return out, nil
	}
}

func decodeBytea(src any) (any, error) {
	switch src.(type) {
	case []byte, string:
	default:
		return src, nil
	}
	var arr pq.ByteaArray
	if err := arr.Scan(src); err != nil {
		return nil, err
	}
	return [][]byte(arr), nil
}
