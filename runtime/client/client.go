// Package client owns the database connection and exposes each table and
// view as a Queryable.
package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hashicorp/go-version"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/kzar79/massive-go/internal/debug"
	"github.com/kzar79/massive-go/query/executor"
	"github.com/kzar79/massive-go/query/operator"
	"github.com/kzar79/massive-go/schema"
)

// ErrUnsupportedDriver is returned for an unknown driver name.
var ErrUnsupportedDriver = errors.New("massive: unsupported driver")

// Client is the main database client. It is safe for concurrent use.
type Client struct {
	db       *sql.DB
	driver   string
	config   *Config
	snapshot *schema.Snapshot
	exec     *executor.Executor
	parser   *operator.Parser
	version  *version.Version
	owned    bool
}

// Open connects using cfg.DatabaseURL, verifies the connection and loads
// the schema snapshot.
func Open(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	ApplyOptions(cfg, opts...)

	driverName := getDriverName(cfg.Driver)
	if driverName == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("massive: database URL is required")
	}

	db, err := sql.Open(driverName, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	c := newClient(db, driverName, cfg)
	c.owned = true

	if cfg.Snapshot == nil {
		if driverName == "sqlite3" {
			db.Close()
			return nil, fmt.Errorf("massive: %s needs WithSnapshot", driverName)
		}
		snap, err := schema.NewPostgresLoader(db).Load(ctx, cfg.Schemas...)
		if err != nil {
			db.Close()
			return nil, err
		}
		c.snapshot = snap
		c.version = snap.Version
	}

	debug.Info("client connected", "driver", driverName, "relations", c.snapshot.Len())
	return c, nil
}

// New wraps an existing connection. The caller keeps ownership of db;
// Close does not close it.
func New(db *sql.DB, snapshot *schema.Snapshot, opts ...Option) *Client {
	cfg := DefaultConfig()
	ApplyOptions(cfg, opts...)
	if snapshot != nil {
		cfg.Snapshot = snapshot
	}
	return newClient(db, getDriverName(cfg.Driver), cfg)
}

func newClient(db *sql.DB, driverName string, cfg *Config) *Client {
	var middlewares []Middleware
	if cfg.LogQueries {
		logger := cfg.Logger
		if logger == nil {
			logger = debug.Logger()
		}
		middlewares = append(middlewares, LoggingMiddleware(logger))
	}
	middlewares = append(middlewares, cfg.Middlewares...)

	execOpts := []executor.Option{
		executor.WithMiddleware(middlewares...),
		executor.WithMetrics(cfg.Metrics),
	}
	if cfg.Logger != nil {
		execOpts = append(execOpts, executor.WithLogger(cfg.Logger))
	}

	snap := cfg.Snapshot
	if snap == nil {
		snap = schema.NewSnapshot(nil)
	}

	return &Client{
		db:       db,
		driver:   driverName,
		config:   cfg,
		snapshot: snap,
		exec:     executor.New(db, execOpts...),
		parser:   operator.NewParser(1024),
		version:  snap.Version,
	}
}

// getDriverName maps provider names to Go database driver names
func getDriverName(provider string) string {
	switch provider {
	case "postgresql", "postgres", "":
		return "postgres"
	case "pgx":
		return "pgx"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return ""
	}
}

// Close closes the database connection if Open created it.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.db.Close()
}

// Ping verifies the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Driver returns the database/sql driver name in use.
func (c *Client) Driver() string {
	return c.driver
}

// Snapshot returns the schema snapshot the client resolves relations against.
func (c *Client) Snapshot() *schema.Snapshot {
	return c.snapshot
}

// ServerVersion returns the server version recorded at load time, or nil.
func (c *Client) ServerVersion() *version.Version {
	return c.version
}

// Relation returns the Queryable for a table or view. name may be
// schema-qualified.
func (c *Client) Relation(name string) (*Queryable, error) {
	rel, err := c.snapshot.Relation(name)
	if err != nil {
		return nil, err
	}
	return c.queryable(rel, c.exec), nil
}

// MustRelation is like Relation but panics on an unknown name.
func (c *Client) MustRelation(name string) *Queryable {
	q, err := c.Relation(name)
	if err != nil {
		panic(err)
	}
	return q
}

// Relations lists every relation in the snapshot.
func (c *Client) Relations() []*schema.Relation {
	return c.snapshot.Relations()
}

func (c *Client) queryable(rel *schema.Relation, exec *executor.Executor) *Queryable {
	return &Queryable{
		relation: rel,
		exec:     exec,
		parser:   c.parser,
		config:   c.config,
		version:  c.version,
	}
}
