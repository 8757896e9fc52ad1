package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kzar79/massive-go/cli/internal/ui"
	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/query/executor"
	"github.com/kzar79/massive-go/schema"
)

// printValue writes v as JSON or YAML. Table output falls back to YAML,
// which reads well for nested values.
func printValue(w io.Writer, format string, v any) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}

// printRows writes rows in format. Table columns follow the relation's
// column order.
func printRows(w io.Writer, format string, rows []query.Row, rel *schema.Relation) error {
	switch format {
	case OutputJSON, OutputYAML:
		return printValue(w, format, rows)
	}

	if len(rows) == 0 {
		ui.PrintInfo(w, "no rows")
		return nil
	}
	headers := columnsOf(rows, rel)
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(headers))
		for j, h := range headers {
			if v, ok := row[h]; ok && v == nil {
				cells[i][j] = ui.NullCell()
				continue
			}
			cells[i][j] = formatValue(row[h])
		}
	}
	if err := ui.PrintTable(w, headers, cells); err != nil {
		return err
	}
	ui.PrintInfo(w, "%d row(s)", len(rows))
	return nil
}

// printStream writes rows as they arrive: one JSON document per line or
// one YAML document each. Tables need every row first, so the stream is
// collected.
func printStream(w io.Writer, format string, s *executor.Stream, rel *schema.Relation) error {
	defer s.Close()

	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		for row, err := range s.All() {
			if err != nil {
				return err
			}
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		for row, err := range s.All() {
			if err != nil {
				return err
			}
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return enc.Close()
	}

	rows, err := s.Collect()
	if err != nil {
		return err
	}
	return printRows(w, format, rows, rel)
}

// columnsOf returns the relation's columns present in rows, then any
// other keys (expressions, aliases) sorted.
func columnsOf(rows []query.Row, rel *schema.Relation) []string {
	present := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			present[k] = true
		}
	}

	var out []string
	if rel != nil {
		for _, c := range rel.ColumnNames() {
			if present[c] {
				out = append(out, c)
				delete(present, c)
			}
		}
	}
	var rest []string
	for k := range present {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ui.Null
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
