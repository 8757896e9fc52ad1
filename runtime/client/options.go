package client

import (
	"log/slog"
	"time"

	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/schema"
	"github.com/kzar79/massive-go/telemetry"
)

// Config contains all client configuration options.
type Config struct {
	// Driver selects the database/sql driver: postgres, pgx or sqlite3.
	// Default: postgres
	Driver string

	// DatabaseURL is the database connection string.
	DatabaseURL string

	// MaxOpenConnections is the maximum number of open connections.
	// Default: 25
	MaxOpenConnections int

	// MaxIdleConnections is the maximum number of idle connections.
	// Default: 5
	MaxIdleConnections int

	// ConnMaxLifetime is the maximum lifetime of a connection.
	// Default: 1 hour
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime is the maximum idle time of a connection.
	// Default: 10 minutes
	ConnMaxIdleTime time.Duration

	// QueryTimeout bounds materialized calls. Streams are bounded by the
	// caller's context only.
	// Default: 30 seconds
	QueryTimeout time.Duration

	// Schemas are introspected on Open, in search-path order.
	// Default: public
	Schemas []string

	// SearchMode is used when a Search leaves Mode empty.
	SearchMode query.SearchMode

	// Snapshot skips introspection. Required for drivers other than
	// PostgreSQL.
	Snapshot *schema.Snapshot

	Metrics     *telemetry.Metrics
	Middlewares []Middleware
	Logger      *slog.Logger

	// LogQueries installs LoggingMiddleware at the front of the chain.
	LogQueries bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Driver:             "postgres",
		MaxOpenConnections: 25,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    time.Hour,
		ConnMaxIdleTime:    10 * time.Minute,
		QueryTimeout:       30 * time.Second,
		Schemas:            []string{"public"},
		SearchMode:         query.SearchQuery,
	}
}

// Option is a function that configures the client.
type Option func(*Config)

// WithDriver sets the driver name.
func WithDriver(driver string) Option {
	return func(c *Config) {
		c.Driver = driver
	}
}

// WithDatabaseURL sets the database URL.
func WithDatabaseURL(url string) Option {
	return func(c *Config) {
		c.DatabaseURL = url
	}
}

// WithMaxOpenConnections sets the maximum open connections.
func WithMaxOpenConnections(n int) Option {
	return func(c *Config) {
		c.MaxOpenConnections = n
	}
}

// WithMaxIdleConnections sets the maximum idle connections.
func WithMaxIdleConnections(n int) Option {
	return func(c *Config) {
		c.MaxIdleConnections = n
	}
}

// WithConnMaxLifetime sets the connection maximum lifetime.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(c *Config) {
		c.ConnMaxLifetime = d
	}
}

// WithConnMaxIdleTime sets the connection maximum idle time.
func WithConnMaxIdleTime(d time.Duration) Option {
	return func(c *Config) {
		c.ConnMaxIdleTime = d
	}
}

// WithQueryTimeout sets the query timeout. Zero disables it.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.QueryTimeout = d
	}
}

// WithSchemas sets the schemas to introspect.
func WithSchemas(schemas ...string) Option {
	return func(c *Config) {
		c.Schemas = schemas
	}
}

// WithSearchMode sets the default full-text search mode.
func WithSearchMode(mode query.SearchMode) Option {
	return func(c *Config) {
		c.SearchMode = mode
	}
}

// WithSnapshot uses s instead of introspecting the database.
func WithSnapshot(s *schema.Snapshot) Option {
	return func(c *Config) {
		c.Snapshot = s
	}
}

// WithMetrics records statement metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithMiddleware appends statement middleware.
func WithMiddleware(m ...Middleware) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, m...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithLogQueries enables or disables query logging.
func WithLogQueries(enabled bool) Option {
	return func(c *Config) {
		c.LogQueries = enabled
	}
}

// ApplyOptions applies options to a config.
func ApplyOptions(config *Config, opts ...Option) {
	for _, opt := range opts {
		if opt != nil {
			opt(config)
		}
	}
}
