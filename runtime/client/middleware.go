package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/query/executor"
)

// QueryEvent represents a statement execution event.
type QueryEvent = executor.QueryEvent

// Middleware is a function that intercepts statements.
type Middleware = executor.Middleware

// LoggingMiddleware creates a middleware that logs statements. Argument
// values are never logged.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		l := logger.With("id", event.ID, "op", event.Op, "relation", event.Relation)
		l.DebugContext(ctx, "executing statement", "sql", event.Query, "args", len(event.Args))
		err := next()
		if err != nil {
			attrs := []any{"error", err}
			if code := sqlState(err); code != "" {
				attrs = append(attrs, "sqlstate", code)
			}
			l.ErrorContext(ctx, "statement failed", attrs...)
		} else {
			l.DebugContext(ctx, "statement completed", "duration", event.Duration, "rows", event.Rows)
		}
		return err
	}
}

// TimingMiddleware creates a middleware that measures statement execution time.
func TimingMiddleware(onTiming func(event *QueryEvent, duration time.Duration)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware creates a middleware that handles errors
func ErrorMiddleware(onError func(event *QueryEvent, err error)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event, err)
		}
		return err
	}
}

func sqlState(err error) string {
	e := &query.ExecutionError{Cause: err}
	return e.Code()
}
