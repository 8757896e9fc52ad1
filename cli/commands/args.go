package commands

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kzar79/massive-go/query"
)

// queryFlags are the find-style options shared by find, where and search.
type queryFlags struct {
	limit   int
	offset  int
	order   string
	columns []string
	stream  bool
}

func (f *queryFlags) register(cmd *cobra.Command, paging, stream bool) {
	flags := cmd.Flags()
	if paging {
		flags.IntVar(&f.limit, "limit", 0, "maximum number of rows")
		flags.IntVar(&f.offset, "offset", 0, "rows to skip")
	}
	flags.StringVar(&f.order, "order", "", `ORDER BY text, e.g. "price desc, id" (default: primary key)`)
	flags.StringSliceVar(&f.columns, "columns", nil, "columns to return (default all)")
	if stream {
		flags.BoolVar(&f.stream, "stream", false, "stream rows instead of loading them all first")
	}
}

func (f *queryFlags) options(cmd *cobra.Command) []query.Option {
	var opts []query.Option
	flags := cmd.Flags()
	if flags.Changed("limit") {
		opts = append(opts, query.Limit(f.limit))
	}
	if flags.Changed("offset") {
		opts = append(opts, query.Offset(f.offset))
	}
	if f.order != "" {
		opts = append(opts, query.Order(f.order))
	}
	if flags.Changed("columns") {
		cols := make([]string, len(f.columns))
		for i, c := range f.columns {
			cols[i] = strings.TrimSpace(c)
		}
		opts = append(opts, query.Columns(cols...))
	}
	if f.stream {
		opts = append(opts, query.Stream())
	}
	return opts
}

// criteriaHelp documents the criteria argument of find, findone and sql.
const criteriaHelp = `The optional criteria argument is one of:
  a JSON object      a descriptor, e.g. '{"price >": 20}'
  a JSON array       a list of primary keys, e.g. '[1, 2]' or '["a,b", "c"]'
  a comma list       a list of primary keys, e.g. 1,2,3 (each part is a key,
                     so a key containing a comma must use the JSON array form)
  anything else      a single primary key`

// parseCriteria reads an optional descriptor or primary key argument. A
// JSON object is a descriptor and a JSON array is a key list. Otherwise
// the text is a key, or a key list when it contains commas.
func parseCriteria(args []string) (query.Criteria, error) {
	if len(args) == 0 {
		return nil, nil
	}
	s := strings.TrimSpace(args[0])
	if s == "" {
		return nil, nil
	}
	switch {
	case strings.HasPrefix(s, "{"):
		var d query.Descriptor
		if err := json.Unmarshal([]byte(s), &d); err != nil {
			return nil, err
		}
		return d, nil
	case strings.HasPrefix(s, "["):
		keys, err := parseKeyList(s)
		if err != nil {
			return nil, err
		}
		return query.PK(keys), nil
	case strings.Contains(s, ","):
		var keys []any
		for _, part := range strings.Split(s, ",") {
			keys = append(keys, parseParam(strings.TrimSpace(part)))
		}
		return query.PK(keys), nil
	}
	return query.PK(parseParam(s)), nil
}

// parseKeyList decodes a JSON array of scalar keys. Integers become int64.
func parseKeyList(s string) ([]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid key list: %w", err)
	}
	keys := make([]any, len(raw))
	for i, v := range raw {
		switch x := v.(type) {
		case json.Number:
			keys[i] = parseParam(x.String())
		case string, bool:
			keys[i] = x
		default:
			return nil, &query.ValidationError{Field: "key", Reason: fmt.Sprintf("key list entry %d must be a string, number or boolean", i)}
		}
	}
	return keys, nil
}

func isJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// parseParams converts positional parameters for a raw condition.
func parseParams(args []string) []any {
	params := make([]any, len(args))
	for i, a := range args {
		params[i] = parseParam(a)
	}
	return params
}

var numeric = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

// parseParam maps null, true and false and numbers to Go values. Anything
// else stays a string.
func parseParam(s string) any {
	switch s {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if numeric.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
