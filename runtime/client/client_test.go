package client_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/query/executor"
	"github.com/kzar79/massive-go/runtime/client"
	"github.com/kzar79/massive-go/schema"
	"github.com/kzar79/massive-go/telemetry"
)

const fixture = `
CREATE TABLE products (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	price REAL,
	specs JSON
);
INSERT INTO products (id, name, description, price, specs) VALUES
	(1, 'Product 1', 'Product 1 description', 12.0, '{"weight": 10}'),
	(2, 'Product 2', 'Product 2 description', 24.0, NULL),
	(3, 'Product 3', 'Product 3 description', 35.0, '{"weight": 30}'),
	(4, 'Product 4', NULL, 40.0, '[1, 2, "array"]');

CREATE TABLE "Users" (
	"Id" INTEGER PRIMARY KEY,
	"Email" TEXT NOT NULL
);
INSERT INTO "Users" ("Id", "Email") VALUES
	(1, 'alice@example.com'),
	(2, 'bob@example.com'),
	(3, 'carol@example.com');

CREATE VIEW popular_products AS
	SELECT id, name, price FROM products WHERE price > 30;
`

func snapshot() *schema.Snapshot {
	return schema.NewSnapshot([]schema.Relation{
		{
			Schema: "public",
			Name:   "products",
			Kind:   schema.KindTable,
			Columns: []schema.Column{
				{Name: "id", DataType: "integer", UDTName: "int4", Position: 1},
				{Name: "name", DataType: "text", UDTName: "text", Position: 2},
				{Name: "description", DataType: "text", UDTName: "text", Nullable: true, Position: 3},
				{Name: "price", DataType: "numeric", UDTName: "numeric", Nullable: true, Position: 4},
				{Name: "specs", DataType: "jsonb", UDTName: "jsonb", Nullable: true, Position: 5},
			},
			KeyColumns: []string{"id"},
			Updatable:  true,
		},
		{
			Schema: "public",
			Name:   "Users",
			Kind:   schema.KindTable,
			Columns: []schema.Column{
				{Name: "Id", DataType: "integer", UDTName: "int4", Position: 1},
				{Name: "Email", DataType: "text", UDTName: "text", Position: 2},
			},
			KeyColumns: []string{"Id"},
			Updatable:  true,
		},
		{
			Schema: "public",
			Name:   "popular_products",
			Kind:   schema.KindView,
			Columns: []schema.Column{
				{Name: "id", DataType: "integer", UDTName: "int4", Position: 1},
				{Name: "name", DataType: "text", UDTName: "text", Position: 2},
				{Name: "price", DataType: "numeric", UDTName: "numeric", Position: 3},
			},
		},
	})
}

func openDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "massive.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(fixture)
	require.NoError(t, err)
	return db, path
}

func newClient(t *testing.T, opts ...client.Option) *client.Client {
	t.Helper()
	db, _ := openDB(t)
	opts = append([]client.Option{client.WithDriver("sqlite3")}, opts...)
	return client.New(db, snapshot(), opts...)
}

func products(t *testing.T, c *client.Client) *client.Queryable {
	t.Helper()
	q, err := c.Relation("products")
	require.NoError(t, err)
	return q
}

func ids(rows []query.Row) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r["id"].(int64)
	}
	return out
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	_, path := openDB(t)

	c, err := client.Open(ctx,
		client.WithDriver("sqlite3"),
		client.WithDatabaseURL(path),
		client.WithSnapshot(snapshot()),
	)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "sqlite3", c.Driver())
	assert.Equal(t, 3, c.Snapshot().Len())
	assert.Nil(t, c.ServerVersion())
	require.NoError(t, c.Ping(ctx))

	n, err := products(t, c).Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	_, path := openDB(t)

	_, err := client.Open(ctx, client.WithDriver("oracle"), client.WithDatabaseURL(path))
	assert.ErrorIs(t, err, client.ErrUnsupportedDriver)

	_, err = client.Open(ctx, client.WithDriver("sqlite3"))
	assert.ErrorContains(t, err, "database URL is required")

	_, err = client.Open(ctx, client.WithDriver("sqlite3"), client.WithDatabaseURL(path))
	assert.ErrorContains(t, err, "needs WithSnapshot")
}

func TestDefaultConfig(t *testing.T) {
	cfg := client.DefaultConfig()
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, 25, cfg.MaxOpenConnections)
	assert.Equal(t, 5, cfg.MaxIdleConnections)
	assert.Equal(t, []string{"public"}, cfg.Schemas)
	assert.Equal(t, query.SearchQuery, cfg.SearchMode)

	client.ApplyOptions(cfg, client.WithSchemas("public", "store"), client.WithQueryTimeout(0), nil)
	assert.Equal(t, []string{"public", "store"}, cfg.Schemas)
	assert.Zero(t, cfg.QueryTimeout)
}

func TestRelation(t *testing.T) {
	c := newClient(t)

	q, err := c.Relation("public.products")
	require.NoError(t, err)
	assert.Equal(t, "public.products", q.Name())
	assert.Equal(t, "id", q.Relation().PrimaryKey())

	_, err = c.Relation("missing")
	assert.ErrorIs(t, err, query.ErrUnknownRelation)
	assert.Panics(t, func() { c.MustRelation("missing") })
	assert.Len(t, c.Relations(), 3)
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	q := products(t, newClient(t))

	t.Run("all rows ordered by key", func(t *testing.T) {
		rows, err := q.Find(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3, 4}, ids(rows))
	})

	t.Run("empty descriptor", func(t *testing.T) {
		rows, err := q.Find(ctx, query.D())
		require.NoError(t, err)
		assert.Len(t, rows, 4)
	})

	t.Run("not in", func(t *testing.T) {
		rows, err := q.Find(ctx, query.D("id <>", []any{1, 2}))
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 4}, ids(rows))
	})

	t.Run("in", func(t *testing.T) {
		rows, err := q.Find(ctx, query.D("id", []int{4, 2}))
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 4}, ids(rows))
	})

	t.Run("empty in matches nothing", func(t *testing.T) {
		rows, err := q.Find(ctx, query.D("id", []int{}))
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("comparisons combine with AND", func(t *testing.T) {
		rows, err := q.Find(ctx, query.D("price >=", 24, "price <", 40))
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 3}, ids(rows))
	})

	t.Run("null checks", func(t *testing.T) {
		rows, err := q.Find(ctx, query.D("specs", nil))
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, ids(rows))

		rows, err = q.Find(ctx, query.D("description !=", nil))
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, ids(rows))
	})

	t.Run("primary key", func(t *testing.T) {
		rows, err := q.Find(ctx, query.PK(3))
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, ids(rows))

		rows, err = q.Find(ctx, query.PK([]int{1, 3}))
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 3}, ids(rows))
	})

	t.Run("pagination", func(t *testing.T) {
		rows, err := q.Find(ctx, nil, query.Order("id"), query.Limit(1), query.Offset(1))
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, ids(rows))
	})

	t.Run("order", func(t *testing.T) {
		rows, err := q.Find(ctx, nil, query.Order("price DESC"))
		require.NoError(t, err)
		assert.Equal(t, []int64{4, 3, 2, 1}, ids(rows))
	})

	t.Run("projection", func(t *testing.T) {
		rows, err := q.Find(ctx, query.PK(1), query.Columns("id", "name"))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, query.Row{"id": int64(1), "name": "Product 1"}, rows[0])
	})

	t.Run("json column decoded", func(t *testing.T) {
		rows, err := q.Find(ctx, query.PK(1), query.Columns("specs"))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 10.0, rows[0]["specs"].(map[string]any)["weight"])
	})
}

func TestFindOne(t *testing.T) {
	ctx := context.Background()
	q := products(t, newClient(t))

	row, err := q.FindOne(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["id"])

	row, err = q.FindOne(ctx, query.D("price >", 30), query.Order("price DESC"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), row["id"])

	row, err = q.FindOne(ctx, query.PK(99))
	require.NoError(t, err)
	assert.Nil(t, row)

	_, err = q.FindOneOrThrow(ctx, query.PK(99))
	assert.ErrorIs(t, err, query.ErrNotFound)
	assert.True(t, query.IsNotFound(err))

	row, err = q.FindOneOrThrow(ctx, query.PK(2))
	require.NoError(t, err)
	assert.Equal(t, "Product 2", row["name"])
}

func TestWhere(t *testing.T) {
	ctx := context.Background()
	q := products(t, newClient(t))

	rows, err := q.Where(ctx, "id = $1", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(rows))

	rows, err = q.Where(ctx, "price > $1 AND name <> $2", []any{20, "Product 4"})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids(rows))

	rows, err = q.Where(ctx, "description IS NULL", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids(rows))

	_, err = q.Where(ctx, "id = $1 OR id = $2", 1)
	assert.ErrorIs(t, err, query.ErrValidation)

	_, err = q.Where(ctx, "no_such_column = $1", 1)
	assert.ErrorIs(t, err, query.ErrExecution)
	var execErr *query.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, client.OpWhere, execErr.Op)
	assert.Equal(t, "public.products", execErr.Relation)
}

func TestWhereStream(t *testing.T) {
	ctx := context.Background()
	q := products(t, newClient(t))

	s, err := q.WhereStream(ctx, "price > $1", 20)
	require.NoError(t, err)
	rows, err := s.Collect()
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, ids(rows))
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	q := products(t, newClient(t))

	tests := []struct {
		name     string
		criteria query.Criteria
		want     int64
	}{
		{"all", nil, 4},
		{"empty descriptor", query.D(), 4},
		{"in list", query.D("id", []int{1, 2}), 2},
		{"not in list", query.D("id <>", []int{1, 2}), 2},
		{"raw condition", query.Cond("price > $1", 30), 2},
		{"primary key", query.PK(3), 1},
		{"no match", query.D("name", "nothing"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := q.Count(ctx, tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestMixedCaseRelation(t *testing.T) {
	ctx := context.Background()
	users, err := newClient(t).Relation("Users")
	require.NoError(t, err)

	rows, err := users.Find(ctx, query.D("Email", "bob@example.com"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["Id"])

	rows, err = users.Find(ctx, nil, query.Columns(`"Email"`), query.Order(`"Email" desc, "Id" desc`))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, query.Row{"Email": "carol@example.com"}, rows[0])

	row, err := users.FindOne(ctx, query.PK(1))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", row["Email"])

	stmt, err := users.Compile(query.D("Email", "a"))
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "Users" WHERE "Email" = $1 ORDER BY "Id"`, stmt.SQL)
}

func TestView(t *testing.T) {
	ctx := context.Background()
	view, err := newClient(t).Relation("popular_products")
	require.NoError(t, err)
	assert.Equal(t, schema.KindView, view.Relation().Kind)

	stmt, err := view.Compile(nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM popular_products", stmt.SQL)

	rows, err := view.Find(ctx, nil, query.Order("id"))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids(rows))

	_, err = view.Find(ctx, query.PK(3))
	assert.ErrorIs(t, err, query.ErrValidation)
}

func TestStream(t *testing.T) {
	ctx := context.Background()
	q := products(t, newClient(t))

	s, err := q.FindStream(ctx, nil)
	require.NoError(t, err)
	var got []int64
	for row, err := range s.All() {
		require.NoError(t, err)
		got = append(got, row["id"].(int64))
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, got)

	for _, err := range s.All() {
		assert.ErrorIs(t, err, query.ErrStreamConsumed)
	}

	t.Run("early exit releases the connection", func(t *testing.T) {
		s, err := q.FindStream(ctx, nil)
		require.NoError(t, err)
		for range s.All() {
			break
		}
		n, err := q.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	q := products(t, newClient(t))

	rows, err := q.Query(ctx, query.D("id >", 2))
	require.NoError(t, err)
	buf, ok := rows.(*executor.Buffer)
	require.True(t, ok)
	assert.Equal(t, []int64{3, 4}, ids(buf.Rows()))

	rows, err = q.Query(ctx, query.D("id >", 2), query.Stream())
	require.NoError(t, err)
	s, ok := rows.(*executor.Stream)
	require.True(t, ok)
	all, err := s.Collect()
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids(all))
}

func TestValidationFailsBeforeExecution(t *testing.T) {
	ctx := context.Background()
	calls := 0
	counter := func(ctx context.Context, event *client.QueryEvent, next func() error) error {
		calls++
		return next()
	}
	q := products(t, newClient(t, client.WithMiddleware(counter)))

	_, err := q.Find(ctx, nil, query.Limit(-1))
	assert.ErrorIs(t, err, query.ErrValidation)

	_, err = q.Find(ctx, nil, query.Columns())
	assert.ErrorIs(t, err, query.ErrValidation)

	_, err = q.Find(ctx, query.D("price >", nil))
	assert.ErrorIs(t, err, query.ErrPredicateShape)

	_, err = q.Count(ctx, query.D("name->>first", "x"))
	assert.ErrorIs(t, err, query.ErrPredicateShape)

	_, err = q.FindStream(ctx, query.D("price @>", 1))
	assert.ErrorIs(t, err, query.ErrPredicateShape)

	assert.Zero(t, calls)

	_, err = q.Find(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCompile(t *testing.T) {
	q := products(t, newClient(t))

	tests := []struct {
		name     string
		criteria query.Criteria
		opts     []query.Option
		want     string
		args     []any
	}{
		{
			name: "defaults",
			want: "SELECT * FROM products ORDER BY id",
		},
		{
			name:     "descriptor and paging",
			criteria: query.D("id >", 2),
			opts:     []query.Option{query.Limit(10), query.Offset(5)},
			want:     "SELECT * FROM products WHERE id > $1 ORDER BY id LIMIT $2 OFFSET $3",
			args:     []any{2, 10, 5},
		},
		{
			name:     "json field",
			criteria: query.D("specs->>weight", 10),
			want:     "SELECT * FROM products WHERE (specs ->> $1) = $2 ORDER BY id",
			args:     []any{"weight", "10"},
		},
		{
			name:     "search",
			criteria: query.Search{Columns: []string{"name", "description"}, Term: "product"},
			want:     "SELECT * FROM products WHERE to_tsvector(concat_ws(' ', name, description)) @@ to_tsquery($1) ORDER BY id",
			args:     []any{"product"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := q.Compile(tt.criteria, tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.SQL)
			assert.Equal(t, tt.args, stmt.Args)
		})
	}

	stmt, err := q.CompileCount(query.D("id", []int{1, 2}))
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM products WHERE id IN ($1, $2)", stmt.SQL)
	assert.Equal(t, []any{1, 2}, stmt.Args)
}

func TestSearchModes(t *testing.T) {
	search := query.Search{Columns: []string{"name"}, Term: "product"}

	t.Run("configured default mode", func(t *testing.T) {
		q := products(t, newClient(t, client.WithSearchMode(query.SearchPlain)))
		stmt, err := q.Compile(search)
		require.NoError(t, err)
		assert.True(t, strings.Contains(stmt.SQL, "plainto_tsquery($1)"), stmt.SQL)
	})

	t.Run("websearch needs PostgreSQL 11", func(t *testing.T) {
		snap := snapshot()
		snap.Version = version.Must(version.NewVersion("10.5"))
		c := client.New(openTestDB(t), snap, client.WithDriver("sqlite3"))
		q := products(t, c)

		web := search
		web.Mode = query.SearchWeb
		_, err := q.Compile(web)
		assert.ErrorIs(t, err, query.ErrValidation)

		_, err = q.Count(context.Background(), web)
		assert.ErrorIs(t, err, query.ErrValidation)

		web.Mode = "phrase"
		stmt, err := q.Compile(web)
		require.NoError(t, err)
		assert.Contains(t, stmt.SQL, "phraseto_tsquery($1)")
	})

	t.Run("phrase search needs PostgreSQL 9.6", func(t *testing.T) {
		snap := snapshot()
		snap.Version = version.Must(version.NewVersion("9.5.25"))
		q := products(t, client.New(openTestDB(t), snap))

		phrase := search
		phrase.Mode = query.SearchPhrase
		_, err := q.Compile(phrase)
		assert.ErrorIs(t, err, query.ErrValidation)

		phrase.Mode = query.SearchPlain
		_, err = q.Compile(phrase)
		assert.NoError(t, err)
	})

	t.Run("websearch on a newer server", func(t *testing.T) {
		snap := snapshot()
		snap.Version = version.Must(version.NewVersion("16.2"))
		q := products(t, client.New(openTestDB(t), snap))

		stmt, err := q.Compile(query.Search{Columns: []string{"name"}, Term: "a -b", Mode: "web", Language: "english"})
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM products WHERE to_tsvector($1::regconfig, name) @@ websearch_to_tsquery($1::regconfig, $2) ORDER BY id", stmt.SQL)
		assert.Equal(t, []any{"english", "a -b"}, stmt.Args)
	})

	t.Run("unknown mode", func(t *testing.T) {
		q := products(t, newClient(t))
		_, err := q.Compile(query.Search{Columns: []string{"name"}, Term: "x", Mode: "fuzzy"})
		assert.ErrorIs(t, err, query.ErrValidation)
	})
}

func openTestDB(t *testing.T) *sql.DB {
	db, _ := openDB(t)
	return db
}

func TestReadTx(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	var count int64
	var first query.Row
	err := c.ReadTx(ctx, func(tx *client.Tx) error {
		q, err := tx.Relation("products")
		if err != nil {
			return err
		}
		if count, err = q.Count(ctx, nil); err != nil {
			return err
		}
		first, err = q.FindOne(ctx, nil)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.Equal(t, int64(1), first["id"])

	boom := errors.New("boom")
	err = c.ReadTx(ctx, func(tx *client.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = c.ReadTx(ctx, func(tx *client.Tx) error {
		_, err := tx.Relation("missing")
		return err
	})
	assert.ErrorIs(t, err, query.ErrUnknownRelation)

	// The connection is free again once the scope ends.
	n, err := products(t, c).Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()

	var ops []string
	var failed []string
	c := newClient(t,
		client.WithMiddleware(client.TimingMiddleware(func(event *client.QueryEvent, _ time.Duration) {
			ops = append(ops, event.Op)
		})),
		client.WithMiddleware(client.ErrorMiddleware(func(event *client.QueryEvent, err error) {
			failed = append(failed, event.Query)
		})),
	)
	q := products(t, c)

	_, err := q.Find(ctx, nil)
	require.NoError(t, err)
	_, err = q.FindOne(ctx, nil)
	require.NoError(t, err)
	_, err = q.Count(ctx, nil)
	require.NoError(t, err)
	_, err = q.Where(ctx, "bogus(", nil)
	require.Error(t, err)

	assert.Equal(t, []string{client.OpFind, client.OpFindOne, client.OpCount, client.OpWhere}, ops)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "bogus(")
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := telemetry.NewMetrics(reg, "client")
	require.NoError(t, err)

	q := products(t, newClient(t, client.WithMetrics(m)))
	_, err = q.Find(ctx, query.D("id >", 1))
	require.NoError(t, err)
	_, err = q.Where(ctx, "nope = $1", 1)
	require.Error(t, err)

	rows := `
# HELP client_rows_returned_total Rows materialized or streamed, by operation and relation.
# TYPE client_rows_returned_total counter
client_rows_returned_total{op="find",relation="public.products"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(rows), "client_rows_returned_total"))

	errs := `
# HELP client_statement_errors_total Statements that failed, by operation and relation.
# TYPE client_statement_errors_total counter
client_statement_errors_total{op="where",relation="public.products"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(errs), "client_statement_errors_total"))
}
