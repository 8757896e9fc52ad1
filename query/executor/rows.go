package executor

import (
	"database/sql"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/telemetry"
)

// Rows is the common cursor over a materialized or streamed result.
type Rows interface {
	Next() bool
	Row() query.Row
	Err() error
	Close() error
	// All ranges over the remaining rows, closing the cursor at the end.
	All() iter.Seq2[query.Row, error]
}

var (
	_ Rows = (*Buffer)(nil)
	_ Rows = (*Stream)(nil)
)

// Buffer is a fully materialized result.
type Buffer struct {
	rows []query.Row
	pos  int
}

// NewBuffer wraps rows.
func NewBuffer(rows []query.Row) *Buffer {
	return &Buffer{rows: rows}
}

func (b *Buffer) Next() bool {
	if b.pos >= len(b.rows) {
		return false
	}
	b.pos++
	return true
}

func (b *Buffer) Row() query.Row {
	if b.pos == 0 || b.pos > len(b.rows) {
		return nil
	}
	return b.rows[b.pos-1]
}

func (b *Buffer) Err() error   { return nil }
func (b *Buffer) Close() error { return nil }

// Rows returns the whole result.
func (b *Buffer) Rows() []query.Row {
	return b.rows
}

// Len returns the number of rows.
func (b *Buffer) Len() int {
	return len(b.rows)
}

func (b *Buffer) All() iter.Seq2[query.Row, error] {
	return func(yield func(query.Row, error) bool) {
		for b.Next() {
			if !yield(b.Row(), nil) {
				return
			}
		}
	}
}

// Stream is a single-pass cursor backed by an open *sql.Rows. It holds a
// connection until it is drained, closed, or its context is cancelled.
// Close may be called from any goroutine; iteration is single-consumer.
type Stream struct {
	req     Request
	rows    *sql.Rows
	dec     *decoder
	metrics *telemetry.Metrics

	current query.Row
	err     error
	count   int

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newStream(req Request, rows *sql.Rows, dec *decoder, metrics *telemetry.Metrics) *Stream {
	metrics.StreamOpened()
	return &Stream{req: req, rows: rows, dec: dec, metrics: metrics}
}

// emptyStream is an already closed Stream with no rows, returned when a
// middleware skips the statement.
func emptyStream(req Request) *Stream {
	s := &Stream{req: req}
	s.closed.Store(true)
	s.closeOnce.Do(func() {})
	return s
}

// Next advances to the next row. It closes the stream on exhaustion or error.
func (s *Stream) Next() bool {
	s.started.Store(true)
	if s.closed.Load() {
		return false
	}
	if !s.rows.Next() {
		s.err = s.rows.Err()
		s.Close()
		return false
	}
	row, err := s.dec.scan(s.rows)
	if err != nil {
		s.err = err
		s.Close()
		return false
	}
	s.current = row
	s.count++
	return true
}

// Row returns the current row.
func (s *Stream) Row() query.Row {
	return s.current
}

// Err returns the error that ended iteration, if any.
func (s *Stream) Err() error {
	return wrap(s.req, s.err)
}

// Count returns the number of rows read so far.
func (s *Stream) Count() int {
	return s.count
}

// Close releases the underlying rows. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.rows.Close()
		s.metrics.StreamClosed()
		s.metrics.AddRows(s.req.Op, s.req.Relation, s.count)
	})
	return s.closeErr
}

// All ranges over the stream. A stream can be ranged over once; a second
// attempt, or ranging after Next was called, yields ErrStreamConsumed.
func (s *Stream) All() iter.Seq2[query.Row, error] {
	return func(yield func(query.Row, error) bool) {
		if !s.started.CompareAndSwap(false, true) {
			yield(nil, query.ErrStreamConsumed)
			return
		}
		defer s.Close()
		for s.Next() {
			if !yield(s.Row(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Collect drains the stream into a slice.
func (s *Stream) Collect() ([]query.Row, error) {
	out := []query.Row{}
	for row, err := range s.All() {
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
	return out, nil
}
