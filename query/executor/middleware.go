package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QueryEvent describes one statement as it passes through the middleware
// chain. Rows is filled for materialized results and counts once the
// statement completes; for streams it stays zero.
type QueryEvent struct {
	ID       uuid.UUID
	Op       string
	Relation string
	Query    string
	Args     []any
	Rows     int
	Stream   bool
	Duration time.Duration
	Error    error
	Start    time.Time
	End      time.Time
}

// Middleware intercepts a statement. It must call next to run the
// statement and return its error, or return early to short-circuit.
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

func (e *Executor) run(ctx context.Context, req Request, stream bool, exec func(event *QueryEvent) error) error {
	event := &QueryEvent{
		ID:       uuid.New(),
		Op:       req.Op,
		Relation: req.Relation,
		Query:    req.Statement.SQL,
		Args:     req.Statement.Args,
		Stream:   stream,
		Start:    time.Now(),
	}

	var next func() error
	index := 0

	next = func() error {
		if index >= len(e.middlewares) {
			err := exec(event)
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Error = err
			return err
		}

		middleware := e.middlewares[index]
		index++
		return middleware(ctx, event, next)
	}

	err := next()
	if event.End.IsZero() {
		event.End = time.Now()
		event.Duration = event.End.Sub(event.Start)
		event.Error = err
	}

	e.metrics.ObserveStatement(req.Op, req.Relation, event.Duration, err)
	e.log().Debug("statement",
		"id", event.ID,
		"op", req.Op,
		"relation", req.Relation,
		"sql", req.Statement.SQL,
		"args", len(req.Statement.Args),
		"rows", event.Rows,
		"stream", stream,
		"duration", event.Duration,
		"error", err,
	)
	return err
}
