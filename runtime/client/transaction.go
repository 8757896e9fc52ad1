package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kzar79/massive-go/internal/debug"
)

// IsolationLevel represents transaction isolation levels
type IsolationLevel int

const (
	// DefaultIsolation uses the server default.
	DefaultIsolation IsolationLevel = iota
	// ReadCommitted sees rows committed before each statement.
	ReadCommitted
	// RepeatableRead sees one snapshot for the whole transaction.
	RepeatableRead
	// Serializable is RepeatableRead plus serialization checks.
	Serializable
)

// ToSQLIsolationLevel converts IsolationLevel to sql.IsolationLevel
func (level IsolationLevel) ToSQLIsolationLevel() sql.IsolationLevel {
	switch level {
	case ReadCommitted:
		return sql.LevelReadCommitted
	case RepeatableRead:
		return sql.LevelRepeatableRead
	case Serializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

// NewTxOptions creates read-only sql.TxOptions for an isolation level.
func NewTxOptions(isolation IsolationLevel) *sql.TxOptions {
	return &sql.TxOptions{
		Isolation: isolation.ToSQLIsolationLevel(),
		ReadOnly:  true,
	}
}

// Tx is a read-only transaction scope. Queryables obtained from it run on
// the transaction's connection.
type Tx struct {
	client *Client
	tx     *sql.Tx
}

// Relation returns the Queryable for name bound to the transaction.
func (t *Tx) Relation(name string) (*Queryable, error) {
	rel, err := t.client.snapshot.Relation(name)
	if err != nil {
		return nil, err
	}
	return t.client.queryable(rel, t.client.exec.On(t.tx)), nil
}

// TxFunc is a function that runs within a transaction.
type TxFunc func(tx *Tx) error

// ReadTx runs fn in a read-only transaction so that every read sees the
// same data. The transaction is committed when fn returns nil and rolled
// back otherwise. Streams opened inside fn must be closed before it returns.
func (c *Client) ReadTx(ctx context.Context, fn TxFunc) error {
	return c.ReadTxWithIsolation(ctx, DefaultIsolation, fn)
}

// ReadTxWithIsolation is ReadTx with an explicit isolation level.
func (c *Client) ReadTxWithIsolation(ctx context.Context, isolation IsolationLevel, fn TxFunc) error {
	sqlTx, err := c.db.BeginTx(ctx, NewTxOptions(isolation))
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx := &Tx{client: c, tx: sqlTx}

	// Defer rollback in case of panic
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		debug.Debug("read transaction rolled back", "error", err)
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
