package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/lib/pq"

	"github.com/kzar79/massive-go/internal/debug"
)

var (
	ErrIntrospectionFailed = errors.New("schema introspection failed")
	ErrUnsupportedVersion  = errors.New("unsupported server version")
)

// MinimumVersion is the oldest PostgreSQL release the compiler targets
// (jsonb and the array operators on it).
var MinimumVersion = version.Must(version.NewVersion("9.4"))

// Queryer is the subset of *sql.DB and *sql.Tx the loader needs.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresLoader reads relation metadata from information_schema.
type PostgresLoader struct {
	db Queryer
}

// NewPostgresLoader creates a loader over db.
func NewPostgresLoader(db Queryer) *PostgresLoader {
	return &PostgresLoader{db: db}
}

// Load reads every table and view in schemas (default "public").
func (l *PostgresLoader) Load(ctx context.Context, schemas ...string) (*Snapshot, error) {
	if len(schemas) == 0 {
		schemas = []string{"public"}
	}

	v, err := ServerVersion(ctx, l.db)
	if err != nil {
		return nil, err
	}
	if v.LessThan(MinimumVersion) {
		return nil, fmt.Errorf("%w: %s (need %s or later)", ErrUnsupportedVersion, v, MinimumVersion)
	}

	relations, err := l.loadRelations(ctx, schemas)
	if err != nil {
		return nil, fmt.Errorf("%w: relations: %v", ErrIntrospectionFailed, err)
	}
	if err := l.loadColumns(ctx, schemas, relations); err != nil {
		return nil, fmt.Errorf("%w: columns: %v", ErrIntrospectionFailed, err)
	}
	if err := l.loadPrimaryKeys(ctx, schemas, relations); err != nil {
		return nil, fmt.Errorf("%w: primary keys: %v", ErrIntrospectionFailed, err)
	}

	list := make([]Relation, 0, len(relations))
	for _, r := range relations {
		if len(r.KeyColumns) > 1 {
			debug.Debug("composite primary key; key shorthand disabled", "relation", r.QualifiedName(), "columns", r.KeyColumns)
		}
		list = append(list, *r)
	}

	snap := NewSnapshot(list, schemas...)
	snap.Version = v
	debug.Debug("schema loaded", "relations", snap.Len(), "schemas", schemas, "server_version", v.String())
	return snap, nil
}

func (l *PostgresLoader) loadRelations(ctx context.Context, schemas []string) (map[string]*Relation, error) {
	query := `
		SELECT
			table_schema,
			table_name,
			table_type,
			is_insertable_into
		FROM information_schema.tables
		WHERE table_schema = ANY($1)
		  AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_schema, table_name
	`

	rows, err := l.db.QueryContext(ctx, query, pq.Array(schemas))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	relations := map[string]*Relation{}
	for rows.Next() {
		var r Relation
		var tableType, insertable string
		if err := rows.Scan(&r.Schema, &r.Name, &tableType, &insertable); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		r.Kind = KindTable
		if tableType == "VIEW" {
			r.Kind = KindView
		}
		r.Updatable = strings.EqualFold(insertable, "YES")
		relations[r.QualifiedName()] = &r
	}
	return relations, rows.Err()
}

func (l *PostgresLoader) loadColumns(ctx context.Context, schemas []string, relations map[string]*Relation) error {
	query := `
		SELECT
			table_schema,
			table_name,
			column_name,
			data_type,
			udt_name,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ANY($1)
		ORDER BY table_schema, table_name, ordinal_position
	`

	rows, err := l.db.QueryContext(ctx, query, pq.Array(schemas))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var schema, table, nullable string
		var c Column
		if err := rows.Scan(&schema, &table, &c.Name, &c.DataType, &c.UDTName, &nullable, &c.Position); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}
		c.Nullable = nullable == "YES"
		if r, ok := relations[schema+"."+table]; ok {
			r.Columns = append(r.Columns, c)
		}
	}
	return rows.Err()
}

func (l *PostgresLoader) loadPrimaryKeys(ctx context.Context, schemas []string, relations map[string]*Relation) error {
	query := `
		SELECT
			tc.table_schema,
			tc.table_name,
			kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		 AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = ANY($1)
		ORDER BY tc.table_schema, tc.table_name, kcu.ordinal_position
	`

	rows, err := l.db.QueryContext(ctx, query, pq.Array(schemas))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var schema, table, column string
		if err := rows.Scan(&schema, &table, &column); err != nil {
			return fmt.Errorf("failed to scan primary key: %w", err)
		}
		if r, ok := relations[schema+"."+table]; ok {
			r.KeyColumns = append(r.KeyColumns, column)
		}
	}
	return rows.Err()
}

// ServerVersion asks the server for its version.
func ServerVersion(ctx context.Context, db Queryer) (*version.Version, error) {
	var raw string
	if err := db.QueryRowContext(ctx, "SHOW server_version").Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to read server version: %w", err)
	}
	return ParseServerVersion(raw)
}

// ParseServerVersion parses server_version output such as
// "16.2 (Debian 16.2-1.pgdg120+2)" or "11beta3".
func ParseServerVersion(raw string) (*version.Version, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty server version", ErrUnsupportedVersion)
	}
	v, err := version.NewVersion(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedVersion, raw, err)
	}
	return v, nil
}

// Supports reports whether v is at least minimum, e.g. Supports(v, "11") for
// websearch_to_tsquery.
func Supports(v *version.Version, minimum string) bool {
	if v == nil {
		return false
	}
	want, err := version.NewVersion(minimum)
	if err != nil {
		return false
	}
	return v.GreaterThanOrEqual(want)
}
