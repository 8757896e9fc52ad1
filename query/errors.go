package query

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var (
	// ErrPredicateShape marks a descriptor entry whose operator and value
	// cannot be combined.
	ErrPredicateShape = errors.New("massive: invalid predicate")

	// ErrValidation marks caller input rejected before any SQL is sent.
	ErrValidation = errors.New("massive: invalid input")

	// ErrExecution marks a failure reported by the database.
	ErrExecution = errors.New("massive: execution failed")

	// ErrNotFound is returned by FindOneOrThrow when nothing matches.
	ErrNotFound = errors.New("massive: record not found")

	// ErrStreamConsumed is returned when a stream is iterated twice.
	ErrStreamConsumed = errors.New("massive: stream already consumed")

	// ErrUnknownRelation is returned when a relation is not in the schema snapshot.
	ErrUnknownRelation = errors.New("massive: unknown relation")
)

// PredicateShapeError reports an operator/value combination that cannot be compiled.
type PredicateShapeError struct {
	Key    string
	Reason string
}

func (e *PredicateShapeError) Error() string {
	return fmt.Sprintf("massive: invalid predicate %q: %s", e.Key, e.Reason)
}

func (e *PredicateShapeError) Is(target error) bool {
	return target == ErrPredicateShape
}

// ValidationError reports a rejected argument.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "massive: " + e.Reason
	}
	return fmt.Sprintf("massive: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ExecutionError wraps a database failure with the statement that caused it.
type ExecutionError struct {
	Op       string
	Relation string
	SQL      string
	Cause    error
}

func (e *ExecutionError) Error() string {
	if e.Relation != "" {
		return fmt.Sprintf("massive: %s %s: %v", e.Op, e.Relation, e.Cause)
	}
	return fmt.Sprintf("massive: %s: %v", e.Op, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// Code returns the SQLSTATE reported by lib/pq or pgx, if any.
func (e *ExecutionError) Code() string {
	var pqErr *pq.Error
	if errors.As(e.Cause, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(e.Cause, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Detail returns the server's detail message, if any.
func (e *ExecutionError) Detail() string {
	var pqErr *pq.Error
	if errors.As(e.Cause, &pqErr) {
		return pqErr.Detail
	}
	var pgErr *pgconn.PgError
	if errors.As(e.Cause, &pgErr) {
		return pgErr.Detail
	}
	return ""
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err was raised before execution.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrPredicateShape)
}
