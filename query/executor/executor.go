// Package executor runs compiled statements and hands rows back either as
// a materialized list or as a forward-only stream.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/kzar79/massive-go/internal/debug"
	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/telemetry"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Request is a statement plus the labels used for logs, metrics and errors.
type Request struct {
	Op        string
	Relation  string
	Statement query.Statement
}

// Executor executes statements against a Queryer.
type Executor struct {
	db          Queryer
	middlewares []Middleware
	metrics     *telemetry.Metrics
	logger      *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithMiddleware appends middlewares; they run in the order given.
func WithMiddleware(m ...Middleware) Option {
	return func(e *Executor) { e.middlewares = append(e.middlewares, m...) }
}

// WithMetrics records statement metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger replaces the package debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an executor over db.
func New(db Queryer, opts ...Option) *Executor {
	e := &Executor{db: db}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// On returns a copy of e that runs statements on db, for example a
// transaction, keeping middleware and metrics.
func (e *Executor) On(db Queryer) *Executor {
	c := *e
	c.db = db
	c.middlewares = append([]Middleware(nil), e.middlewares...)
	return &c
}

func (e *Executor) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return debug.Logger()
}

// All runs the statement and returns every row. No rows is an empty,
// non-nil slice.
func (e *Executor) All(ctx context.Context, req Request) ([]query.Row, error) {
	out := []query.Row{}
	err := e.run(ctx, req, false, func(event *QueryEvent) error {
		rows, err := e.db.QueryContext(ctx, req.Statement.SQL, req.Statement.Args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		dec, err := newDecoder(rows)
		if err != nil {
			return err
		}
		for rows.Next() {
			row, err := dec.scan(rows)
			if err != nil {
				return err
			}
			out = append(out, row)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		event.Rows = len(out)
		return nil
	})
	if err != nil {
		return nil, wrap(req, err)
	}
	e.metrics.AddRows(req.Op, req.Relation, len(out))
	return out, nil
}

// Stream runs the statement and returns a cursor over its rows. The
// caller must drain or Close it to release the connection. A middleware
// that returns nil without calling next yields an empty stream, matching
// All.
func (e *Executor) Stream(ctx context.Context, req Request) (*Stream, error) {
	var rows *sql.Rows
	err := e.run(ctx, req, true, func(event *QueryEvent) error {
		r, err := e.db.QueryContext(ctx, req.Statement.SQL, req.Statement.Args...)
		if err != nil {
			return err
		}
		rows = r
		return nil
	})
	if err != nil {
		if rows != nil {
			rows.Close()
		}
		return nil, wrap(req, err)
	}
	if rows == nil {
		return emptyStream(req), nil
	}

	dec, err := newDecoder(rows)
	if err != nil {
		rows.Close()
		return nil, wrap(req, err)
	}
	return newStream(req, rows, dec, e.metrics), nil
}

// Execute returns a materialized Buffer, or a Stream when stream is set.
func (e *Executor) Execute(ctx context.Context, req Request, stream bool) (Rows, error) {
	if stream {
		return e.Stream(ctx, req)
	}
	rows, err := e.All(ctx, req)
	if err != nil {
		return nil, err
	}
	return NewBuffer(rows), nil
}

// Count runs a single-value statement such as SELECT COUNT(*).
func (e *Executor) Count(ctx context.Context, req Request) (int64, error) {
	var n int64
	err := e.run(ctx, req, false, func(event *QueryEvent) error {
		rows, err := e.db.QueryContext(ctx, req.Statement.SQL, req.Statement.Args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return sql.ErrNoRows
		}
		if err := rows.Scan(&n); err != nil {
			return err
		}
		event.Rows = 1
		return rows.Err()
	})
	if err != nil {
		return 0, wrap(req, err)
	}
	return n, nil
}

func wrap(req Request, err error) error {
	if err == nil {
		return nil
	}
	var execErr *query.ExecutionError
	if errors.As(err, &execErr) || query.IsValidation(err) {
		return err
	}
	return &query.ExecutionError{
		Op:       req.Op,
		Relation: req.Relation,
		SQL:      req.Statement.SQL,
		Cause:    err,
	}
}
