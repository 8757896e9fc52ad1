package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/schema"
)

func fixture() *schema.Snapshot {
	return schema.NewSnapshot([]schema.Relation{
		{
			Schema: "public", Name: "products", Kind: schema.KindTable, KeyColumns: []string{"id"},
			Columns: []schema.Column{
				{Name: "specs", DataType: "jsonb", UDTName: "jsonb", Position: 3},
				{Name: "id", DataType: "integer", UDTName: "int4", Position: 1},
				{Name: "tags", DataType: "ARRAY", UDTName: "_text", Position: 2},
			},
		},
		{Schema: "public", Name: "popular_products", Kind: schema.KindView},
		{Schema: "sales", Name: "products", Kind: schema.KindTable, KeyColumns: []string{"region", "id"}},
		{Schema: "sales", Name: "Orders", Kind: schema.KindTable, KeyColumns: []string{"id"}},
	})
}

func TestSnapshotLookup(t *testing.T) {
	s := fixture()
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, []string{"public", "sales"}, s.SearchPath)

	r, err := s.Relation("products")
	require.NoError(t, err)
	assert.Equal(t, "public", r.Schema)
	assert.Equal(t, "id", r.PrimaryKey())
	assert.Equal(t, []string{"id", "tags", "specs"}, r.ColumnNames())

	r, err = s.Relation("sales.products")
	require.NoError(t, err)
	assert.Empty(t, r.PrimaryKey(), "composite keys have no shorthand")

	r, err = s.Relation("Orders")
	require.NoError(t, err)
	assert.Equal(t, "sales.Orders", r.QualifiedName())

	view, err := s.Relation("popular_products")
	require.NoError(t, err)
	assert.Equal(t, schema.KindView, view.Kind)
	assert.Empty(t, view.PrimaryKey())

	_, err = s.Relation("missing")
	assert.ErrorIs(t, err, query.ErrUnknownRelation)
}

func TestSnapshotSearchPath(t *testing.T) {
	s := schema.NewSnapshot([]schema.Relation{
		{Schema: "public", Name: "products"},
		{Schema: "sales", Name: "products"},
	}, "sales", "public")

	r, err := s.Relation("products")
	require.NoError(t, err)
	assert.Equal(t, "sales", r.Schema)
}

func TestRelationsSorted(t *testing.T) {
	var names []string
	for _, r := range fixture().Relations() {
		names = append(names, r.QualifiedName())
	}
	assert.Equal(t, []string{"public.popular_products", "public.products", "sales.Orders", "sales.products"}, names)
}

func TestColumnKind(t *testing.T) {
	tests := []struct {
		col  schema.Column
		want schema.ColumnKind
	}{
		{schema.Column{DataType: "jsonb"}, schema.ColumnJSON},
		{schema.Column{DataType: "json"}, schema.ColumnJSON},
		{schema.Column{DataType: "ARRAY", UDTName: "_int4"}, schema.ColumnArray},
		{schema.Column{DataType: "character varying"}, schema.ColumnText},
		{schema.Column{DataType: "bigint"}, schema.ColumnNumeric},
		{schema.Column{DataType: "numeric"}, schema.ColumnNumeric},
		{schema.Column{DataType: "boolean"}, schema.ColumnBool},
		{schema.Column{DataType: "timestamp with time zone"}, schema.ColumnTemporal},
		{schema.Column{DataType: "uuid"}, schema.ColumnUUID},
		{schema.Column{DataType: "tsvector"}, schema.ColumnOther},
	}
	for _, tt := range tests {
		t.Run(tt.col.DataType, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.col.Kind())
		})
	}
}

func TestParseServerVersion(t *testing.T) {
	v, err := schema.ParseServerVersion("16.2 (Debian 16.2-1.pgdg120+2)")
	require.NoError(t, err)
	assert.Equal(t, "16.2", v.Original())
	assert.True(t, schema.Supports(v, "11"))
	assert.False(t, schema.Supports(v, "17"))
	assert.False(t, schema.Supports(nil, "11"))

	v, err = schema.ParseServerVersion("10.23")
	require.NoError(t, err)
	assert.False(t, schema.Supports(v, "11"))

	_, err = schema.ParseServerVersion("")
	assert.ErrorIs(t, err, schema.ErrUnsupportedVersion)
	_, err = schema.ParseServerVersion("banana")
	assert.ErrorIs(t, err, schema.ErrUnsupportedVersion)
}
