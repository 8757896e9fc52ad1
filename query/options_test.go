package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzar79/massive-go/query"
)

func TestApply(t *testing.T) {
	o := query.Apply(query.Limit(0), query.Offset(5), query.Order("price DESC"), query.Columns("id", "name"), query.Stream(), nil)

	require.NotNil(t, o.Limit)
	assert.Equal(t, 0, *o.Limit)
	assert.Equal(t, 5, *o.Offset)
	assert.Equal(t, "price DESC", o.Order)
	assert.Equal(t, []string{"id", "name"}, o.Columns)
	assert.True(t, o.Stream)
	assert.NoError(t, o.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		opts  []query.Option
		field string
	}{
		{"negative limit", []query.Option{query.Limit(-1)}, "limit"},
		{"negative offset", []query.Option{query.Offset(-3)}, "offset"},
		{"empty projection", []query.Option{query.Columns()}, "columns"},
		{"blank column", []query.Option{query.Columns("id", " ")}, "columns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := query.Apply(tt.opts...).Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, query.ErrValidation)

			var verr *query.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.NoError(t, query.Options{}.Validate())
}
