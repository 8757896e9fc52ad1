package client

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-version"

	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/query/compiler"
	"github.com/kzar79/massive-go/query/executor"
	"github.com/kzar79/massive-go/query/ident"
	"github.com/kzar79/massive-go/query/operator"
	"github.com/kzar79/massive-go/query/sqlgen"
	"github.com/kzar79/massive-go/schema"
)

// Operation names used in logs, metrics and errors.
const (
	OpFind    = "find"
	OpFindOne = "findOne"
	OpWhere   = "where"
	OpCount   = "count"
	OpSearch  = "search"
)

// Queryable reads one table or view. It holds no per-call state and is
// safe for concurrent use.
type Queryable struct {
	relation *schema.Relation
	exec     *executor.Executor
	parser   *operator.Parser
	config   *Config
	version  *version.Version
}

// Relation returns the relation metadata.
func (q *Queryable) Relation() *schema.Relation {
	return q.relation
}

// Name returns the qualified relation name.
func (q *Queryable) Name() string {
	return q.relation.QualifiedName()
}

func (q *Queryable) table() sqlgen.Table {
	return sqlgen.Table{Schema: q.relation.Schema, Name: q.relation.Name}
}

func (q *Queryable) predicate(c query.Criteria) (compiler.Predicate, error) {
	return compiler.Compile(c, compiler.WithRelation(q.relation), compiler.WithParser(q.parser))
}

// Compile renders the SELECT statement a find with c and opts would run,
// without executing it.
func (q *Queryable) Compile(c query.Criteria, opts ...query.Option) (query.Statement, error) {
	return q.selectStatement(c, query.Apply(opts...))
}

// CompileCount renders the COUNT statement for c.
func (q *Queryable) CompileCount(c query.Criteria) (query.Statement, error) {
	where, err := q.predicate(c)
	if err != nil {
		return query.Statement{}, err
	}
	return sqlgen.NewGenerator().GenerateCount(q.table(), where), nil
}

func (q *Queryable) selectStatement(c query.Criteria, opts query.Options) (query.Statement, error) {
	if s, ok := c.(query.Search); ok {
		var err error
		if c, err = q.search(s); err != nil {
			return query.Statement{}, err
		}
	}
	where, err := q.predicate(c)
	if err != nil {
		return query.Statement{}, err
	}
	if opts.Order == "" {
		if pk := q.relation.PrimaryKey(); pk != "" {
			opts.Order = ident.Quote(pk)
		}
	}
	return sqlgen.NewGenerator().GenerateSelect(q.table(), where, opts)
}

// search fills the default mode and rejects modes the server cannot run.
// searchModeVersions lists the first server release shipping each tsquery
// constructor newer than 9.4.
var searchModeVersions = map[query.SearchMode]string{
	query.SearchPhrase: "9.6",
	query.SearchWeb:    "11",
}

func (q *Queryable) search(s query.Search) (query.Search, error) {
	if s.Mode == "" {
		s.Mode = q.config.SearchMode
	}
	mode, err := query.ParseSearchMode(string(s.Mode))
	if err != nil {
		return s, err
	}
	if minimum, ok := searchModeVersions[mode]; ok && q.version != nil && !schema.Supports(q.version, minimum) {
		return s, &query.ValidationError{
			Field:  "mode",
			Reason: fmt.Sprintf("%s needs PostgreSQL %s or later, server is %s", mode, minimum, q.version.Original()),
		}
	}
	s.Mode = mode
	return s, nil
}

func (q *Queryable) request(op string, stmt query.Statement) executor.Request {
	return executor.Request{Op: op, Relation: q.Name(), Statement: stmt}
}

func (q *Queryable) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.config.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, q.config.QueryTimeout)
}

func (q *Queryable) all(ctx context.Context, op string, c query.Criteria, opts query.Options) ([]query.Row, error) {
	stmt, err := q.selectStatement(c, opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	return q.exec.All(ctx, q.request(op, stmt))
}

func (q *Queryable) stream(ctx context.Context, op string, c query.Criteria, opts query.Options) (*executor.Stream, error) {
	stmt, err := q.selectStatement(c, opts)
	if err != nil {
		return nil, err
	}
	return q.exec.Stream(ctx, q.request(op, stmt))
}

// Find returns every row matching c. A nil c matches all rows. Without an
// Order option rows are ordered by the primary key when there is one.
func (q *Queryable) Find(ctx context.Context, c query.Criteria, opts ...query.Option) ([]query.Row, error) {
	return q.all(ctx, OpFind, c, query.Apply(opts...))
}

// FindStream is Find returning a stream. The caller must drain or Close it.
func (q *Queryable) FindStream(ctx context.Context, c query.Criteria, opts ...query.Option) (*executor.Stream, error) {
	return q.stream(ctx, OpFind, c, query.Apply(opts...))
}

// Query is Find honoring the Stream option: it returns a *executor.Stream
// when Stream is set and a materialized *executor.Buffer otherwise.
func (q *Queryable) Query(ctx context.Context, c query.Criteria, opts ...query.Option) (executor.Rows, error) {
	o := query.Apply(opts...)
	if o.Stream {
		return q.stream(ctx, OpFind, c, o)
	}
	rows, err := q.all(ctx, OpFind, c, o)
	if err != nil {
		return nil, err
	}
	return executor.NewBuffer(rows), nil
}

// FindOne returns the first row Find would return, or nil when nothing
// matches.
func (q *Queryable) FindOne(ctx context.Context, c query.Criteria, opts ...query.Option) (query.Row, error) {
	o := query.Apply(opts...)
	one := 1
	o.Limit = &one
	o.Stream = false

	rows, err := q.all(ctx, OpFindOne, c, o)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FindOneOrThrow is FindOne returning query.ErrNotFound when nothing matches.
func (q *Queryable) FindOneOrThrow(ctx context.Context, c query.Criteria, opts ...query.Option) (query.Row, error) {
	row, err := q.FindOne(ctx, c, opts...)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s", query.ErrNotFound, q.Name())
	}
	return row, nil
}

// Where runs a raw condition. params may be nil, a scalar or a slice.
func (q *Queryable) Where(ctx context.Context, cond string, params any, opts ...query.Option) ([]query.Row, error) {
	return q.all(ctx, OpWhere, query.Cond(cond, params), query.Apply(opts...))
}

// WhereStream is Where returning a stream.
func (q *Queryable) WhereStream(ctx context.Context, cond string, params any, opts ...query.Option) (*executor.Stream, error) {
	return q.stream(ctx, OpWhere, query.Cond(cond, params), query.Apply(opts...))
}

// Count returns the number of rows matching c.
func (q *Queryable) Count(ctx context.Context, c query.Criteria) (int64, error) {
	if s, ok := c.(query.Search); ok {
		var err error
		if c, err = q.search(s); err != nil {
			return 0, err
		}
	}
	stmt, err := q.CompileCount(c)
	if err != nil {
		return 0, err
	}
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	return q.exec.Count(ctx, q.request(OpCount, stmt))
}

// Search runs a full-text search.
func (q *Queryable) Search(ctx context.Context, s query.Search, opts ...query.Option) ([]query.Row, error) {
	return q.all(ctx, OpSearch, s, query.Apply(opts...))
}

// SearchStream is Search returning a stream.
func (q *Queryable) SearchStream(ctx context.Context, s query.Search, opts ...query.Option) (*executor.Stream, error) {
	return q.stream(ctx, OpSearch, s, query.Apply(opts...))
}
