// Package compiler turns criteria into a parameterized WHERE predicate.
//
// A Builder owns the placeholder counter for one statement. Every value is
// bound as a $n argument, numbered in the order fragments are appended, so
// the clause assembler can keep counting from Predicate.Next.
package compiler

import (
	"fmt"
	"strings"

	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/query/ident"
	"github.com/kzar79/massive-go/query/operator"
	"github.com/kzar79/massive-go/schema"
)

type condition struct {
	sql string
	// grouped conditions are parenthesized when combined with others.
	grouped bool
}

// Predicate is a compiled WHERE condition.
type Predicate struct {
	conds []condition
	Args  []any
	// Next is the first placeholder number not used by the predicate.
	Next int
}

// SQL joins the conditions with AND. It returns "" for an empty predicate.
func (p Predicate) SQL() string {
	if len(p.conds) == 1 {
		return p.conds[0].sql
	}
	parts := make([]string, len(p.conds))
	for i, c := range p.conds {
		if c.grouped {
			parts[i] = "(" + c.sql + ")"
		} else {
			parts[i] = c.sql
		}
	}
	return strings.Join(parts, " AND ")
}

// Empty reports whether the predicate matches every row.
func (p Predicate) Empty() bool {
	return len(p.conds) == 0
}

// Len returns the number of conditions.
func (p Predicate) Len() int {
	return len(p.conds)
}

// Builder accumulates conditions and arguments.
type Builder struct {
	relation *schema.Relation
	parser   *operator.Parser
	conds    []condition
	args     []any
	next     int
}

// Option configures a Builder.
type Option func(*Builder)

// WithRelation enables primary-key shorthand and column type checks.
func WithRelation(r *schema.Relation) Option {
	return func(b *Builder) { b.relation = r }
}

// WithParser replaces the shared key parser.
func WithParser(p *operator.Parser) Option {
	return func(b *Builder) { b.parser = p }
}

// StartAt sets the first placeholder number.
func StartAt(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.next = n
		}
	}
}

// New returns a Builder whose first placeholder is $1.
func New(opts ...Option) *Builder {
	b := &Builder{next: 1}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Compile is New(opts...).Criteria(c) followed by Predicate.
func Compile(c query.Criteria, opts ...Option) (Predicate, error) {
	b := New(opts...)
	if err := b.Criteria(c); err != nil {
		return Predicate{}, err
	}
	return b.Predicate(), nil
}

// Bind appends v as an argument and returns its placeholder.
func (b *Builder) Bind(v any) string {
	p := fmt.Sprintf("$%d", b.next)
	b.next++
	b.args = append(b.args, v)
	return p
}

// Next returns the next placeholder number.
func (b *Builder) Next() int {
	return b.next
}

// Predicate returns a snapshot of the conditions appended so far.
func (b *Builder) Predicate() Predicate {
	return Predicate{
		conds: append([]condition(nil), b.conds...),
		Args:  append([]any(nil), b.args...),
		Next:  b.next,
	}
}

// Criteria appends the condition for c. A nil criteria appends nothing.
func (b *Builder) Criteria(c query.Criteria) error {
	switch v := c.(type) {
	case nil:
		return nil
	case query.Descriptor:
		return b.Descriptor(v)
	case query.Key:
		return b.PrimaryKey(v.Value)
	case query.Raw:
		return b.Raw(v.SQL, v.Params)
	case query.Search:
		return b.Search(v)
	}
	return &query.ValidationError{Field: "criteria", Reason: fmt.Sprintf("unsupported criteria %T", c)}
}

// Descriptor appends one condition per entry, in order.
func (b *Builder) Descriptor(d query.Descriptor) error {
	for _, e := range d {
		key := b.parse(e.Key)
		res, err := operator.Resolve(key, e.Value)
		if err != nil {
			return err
		}
		if err := b.check(res); err != nil {
			return err
		}
		if err := b.resolution(res); err != nil {
			return err
		}
	}
	return nil
}

// PrimaryKey appends pk = value, or pk IN (...) for a list.
func (b *Builder) PrimaryKey(value any) error {
	pk := ""
	if b.relation != nil {
		pk = b.relation.PrimaryKey()
	}
	if pk == "" {
		name := "relation"
		if b.relation != nil {
			name = b.relation.QualifiedName()
		}
		return &query.ValidationError{Field: "key", Reason: fmt.Sprintf("%s has no single-column primary key", name)}
	}
	if shape, _ := query.Classify(value); shape == query.ShapeNull || shape == query.ShapeObject {
		return &query.ValidationError{Field: "key", Reason: fmt.Sprintf("primary key value must be a scalar or list, got %s", shape)}
	}

	key := operator.Key{Raw: pk, Column: ident.Quote(pk)}
	res, err := operator.Resolve(key, value)
	if err != nil {
		return err
	}
	return b.resolution(res)
}

// Raw appends a caller-written condition, shifting its placeholders past
// the ones already allocated.
func (b *Builder) Raw(sql string, params []any) error {
	if strings.TrimSpace(sql) == "" {
		return &query.ValidationError{Field: "condition", Reason: "must not be empty"}
	}
	offset := b.next - 1
	shifted, highest := Renumber(sql, offset)
	if highest != len(params) {
		return &query.ValidationError{
			Field:  "condition",
			Reason: fmt.Sprintf("references %d placeholder(s) but %d parameter(s) were given", highest, len(params)),
		}
	}
	b.conds = append(b.conds, condition{sql: shifted, grouped: true})
	b.args = append(b.args, params...)
	b.next += highest
	return nil
}

func (b *Builder) parse(raw string) operator.Key {
	if b.parser != nil {
		return b.parser.Parse(raw)
	}
	return operator.Parse(raw)
}

// check validates JSON and array operators against known column types.
func (b *Builder) check(res operator.Resolution) error {
	if b.relation == nil || res.Key.Literal {
		return nil
	}
	col, ok := b.relation.Column(ident.Unquote(res.Key.Column))
	if !ok {
		return nil
	}
	kind := col.Kind()
	if kind == schema.ColumnOther {
		return nil
	}

	switch {
	case res.Key.IsJSON() && kind != schema.ColumnJSON:
		return &query.PredicateShapeError{Key: res.Key.Raw, Reason: fmt.Sprintf("column %s is %s, not json", col.Name, col.DataType)}
	case res.Kind.IsArray() && res.Form == operator.FormJSON && kind != schema.ColumnJSON:
		return &query.PredicateShapeError{Key: res.Key.Raw, Reason: fmt.Sprintf("column %s is %s, not json", col.Name, col.DataType)}
	case res.Kind.IsArray() && res.Form != operator.FormJSON && kind != schema.ColumnArray && kind != schema.ColumnJSON:
		return &query.PredicateShapeError{Key: res.Key.Raw, Reason: fmt.Sprintf("column %s is %s, not an array", col.Name, col.DataType)}
	}
	return nil
}

func (b *Builder) resolution(res operator.Resolution) error {
	switch res.Kind {
	case operator.MatchNone, operator.MatchAll:
		b.conds = append(b.conds, condition{sql: res.Kind.SQL()})
		return nil
	}

	lhs, err := b.operand(res.Key)
	if err != nil {
		return err
	}

	var sql string
	switch res.Kind {
	case operator.IsNull, operator.IsNotNull:
		sql = lhs + " " + res.Kind.SQL()
	case operator.In, operator.NotIn:
		placeholders := make([]string, len(res.Values))
		for i, v := range res.Values {
			placeholders[i] = b.Bind(v)
		}
		sql = fmt.Sprintf("%s %s (%s)", lhs, res.Kind.SQL(), strings.Join(placeholders, ", "))
	case operator.Contains, operator.ContainedBy, operator.Overlaps:
		rhs, err := b.arrayOperand(res)
		if err != nil {
			return err
		}
		sql = fmt.Sprintf("%s %s %s", lhs, res.Kind.SQL(), rhs)
	default:
		sql = fmt.Sprintf("%s %s %s", lhs, res.Kind.SQL(), b.Bind(res.Value))
	}
	b.conds = append(b.conds, condition{sql: sql})
	return nil
}

// operand renders the left-hand side: the quoted column or a parenthesized
// JSON text extraction.
func (b *Builder) operand(k operator.Key) (string, error) {
	col := ident.Quote(k.Column)
	switch k.Extraction {
	case operator.ExtractField:
		field := k.Path[0]
		if isIndex(field) {
			return fmt.Sprintf("(%s ->> %s)", col, field), nil
		}
		return fmt.Sprintf("(%s ->> %s)", col, b.Bind(field)), nil
	case operator.ExtractPath:
		segments := make([]any, len(k.Path))
		for i, s := range k.Path {
			segments[i] = s
		}
		path, err := ArrayLiteral(segments)
		if err != nil {
			return "", &query.PredicateShapeError{Key: k.Raw, Reason: err.Error()}
		}
		return fmt.Sprintf("(%s #>> %s)", col, b.Bind(path)), nil
	}
	return col, nil
}

func (b *Builder) arrayOperand(res operator.Resolution) (string, error) {
	switch res.Form {
	case operator.FormList:
		lit, err := ArrayLiteral(res.Values)
		if err != nil {
			return "", &query.PredicateShapeError{Key: res.Key.Raw, Reason: err.Error()}
		}
		return b.Bind(lit), nil
	default:
		return b.Bind(res.Value), nil
	}
}

func isIndex(s string) bool {
	if s == "" || len(s) > 9 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
