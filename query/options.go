package query

import (
	"fmt"
	"strings"
)

// Options shape a find-like call. Columns are identifiers and are quoted
// like any other name. Order is raw SQL text interpolated as-is; it must
// come from trusted code, never from end users.
type Options struct {
	Limit   *int
	Offset  *int
	Order   string
	Columns []string
	// Stream asks for a forward-only cursor instead of a materialized list.
	Stream bool

	columnsSet bool
}

// Option mutates Options.
type Option func(*Options)

// Limit caps the number of rows returned. Zero is allowed.
func Limit(n int) Option {
	return func(o *Options) { o.Limit = &n }
}

// Offset skips the first n rows.
func Offset(n int) Option {
	return func(o *Options) { o.Offset = &n }
}

// Order sets the ORDER BY text, e.g. `price DESC, id`.
func Order(spec string) Option {
	return func(o *Options) { o.Order = spec }
}

// Columns restricts the projection to the named columns. Names are quoted
// unless already delimited, so expressions and aliases are not accepted.
func Columns(cols ...string) Option {
	return func(o *Options) {
		o.Columns = cols
		o.columnsSet = true
	}
}

// Stream requests a row stream.
func Stream() Option {
	return func(o *Options) { o.Stream = true }
}

// Apply folds opts over the zero Options.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Validate rejects negative paging values and an explicitly empty projection.
func (o Options) Validate() error {
	if o.Limit != nil && *o.Limit < 0 {
		return &ValidationError{Field: "limit", Reason: fmt.Sprintf("must be >= 0, got %d", *o.Limit)}
	}
	if o.Offset != nil && *o.Offset < 0 {
		return &ValidationError{Field: "offset", Reason: fmt.Sprintf("must be >= 0, got %d", *o.Offset)}
	}
	if o.columnsSet && len(o.Columns) == 0 {
		return &ValidationError{Field: "columns", Reason: "projection must name at least one column"}
	}
	for _, c := range o.Columns {
		if strings.TrimSpace(c) == "" {
			return &ValidationError{Field: "columns", Reason: "column name must not be blank"}
		}
	}
	return nil
}
