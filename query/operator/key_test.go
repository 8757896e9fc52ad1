package operator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kzar79/massive-go/query/operator"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want operator.Key
	}{
		{"id", operator.Key{Column: "id"}},
		{"  id  ", operator.Key{Column: "id"}},
		{"id >", operator.Key{Column: "id", Token: operator.TokenGreater}},
		{"id>=", operator.Key{Column: "id", Token: operator.TokenGreaterEq}},
		{"price <= ", operator.Key{Column: "price", Token: operator.TokenLessEq}},
		{"id <>", operator.Key{Column: "id", Token: operator.TokenNotEqual}},
		{"id !=", operator.Key{Column: "id", Token: operator.TokenBangEqual}},
		{"tags @>", operator.Key{Column: "tags", Token: operator.TokenContains}},
		{"tags <@", operator.Key{Column: "tags", Token: operator.TokenContainedBy}},
		{"tags &&", operator.Key{Column: "tags", Token: operator.TokenOverlaps}},
		{`"Email" <>`, operator.Key{Column: `"Email"`, Token: operator.TokenNotEqual}},
		{"specs->>weight", operator.Key{Column: "specs", Extraction: operator.ExtractField, Path: []string{"weight"}}},
		{"specs->>4", operator.Key{Column: "specs", Extraction: operator.ExtractField, Path: []string{"4"}}},
		{"specs ->> weight >", operator.Key{Column: "specs", Extraction: operator.ExtractField, Path: []string{"weight"}, Token: operator.TokenGreater}},
		{"specs#>>{dimensions,length}", operator.Key{Column: "specs", Extraction: operator.ExtractPath, Path: []string{"dimensions", "length"}}},
		{`specs#>>{ "a b" , c }`, operator.Key{Column: "specs", Extraction: operator.ExtractPath, Path: []string{"a b", "c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := operator.Parse(tt.raw)
			tt.want.Raw = tt.raw
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFallsBackToLiteral(t *testing.T) {
	for _, raw := range []string{"id ~~", "my-col", "id > extra", "specs->>", "id = "} {
		t.Run(raw, func(t *testing.T) {
			k := operator.Parse(raw)
			assert.True(t, k.Literal)
			assert.Equal(t, operator.TokenNone, k.Token)
			assert.False(t, k.IsJSON())
		})
	}
	assert.Equal(t, "id ~~", operator.Parse(" id ~~ ").Column)
}

func TestParserCachesKeys(t *testing.T) {
	p := operator.NewParser(8)
	first := p.Parse("price >")
	second := p.Parse("price >")
	assert.Equal(t, first, second)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}
