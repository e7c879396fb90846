package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestKey_Format(t *testing.T) {
	key := NewKey(FamilyKPIs).Arg(int64(3)).String()

	assert.True(t, strings.HasPrefix(key, "cache:kpis:"), key)
	assert.Len(t, strings.TrimPrefix(key, "cache:kpis:"), 64)
}

func TestKey_NamedOrderIrrelevant(t *testing.T) {
	a := NewKey(FamilyKPIs).Named("cartera_id", int64(1)).Named("gestor_id", int64(2)).String()
	b := NewKey(FamilyKPIs).Named("gestor_id", int64(2)).Named("cartera_id", int64(1)).String()

	assert.Equal(t, a, b)
}

func TestKey_PositionalOrderMatters(t *testing.T) {
	a := NewKey(FamilyKPIs).Arg(int64(1)).Arg(int64(2)).String()
	b := NewKey(FamilyKPIs).Arg(int64(2)).Arg(int64(1)).String()

	assert.NotEqual(t, a, b)
}

func TestKey_PointerAndValueHashAlike(t *testing.T) {
	id := int64(42)
	assert.Equal(t,
		NewKey(FamilyMultipleDebts).Named("cartera_id", &id).String(),
		NewKey(FamilyMultipleDebts).Named("cartera_id", int64(42)).String())
}

func TestKey_NilPointersHashAlike(t *testing.T) {
	var noCartera *int64
	var noStart *time.Time

	assert.Equal(t,
		NewKey(FamilyKPIs).Named("cartera_id", noCartera).Named("start", noStart).String(),
		NewKey(FamilyKPIs).Named("cartera_id", nil).Named("start", nil).String())
}

func TestKey_TimeZonesNormalized(t *testing.T) {
	utc := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("ART", -3*60*60))

	assert.Equal(t,
		NewKey(FamilyPerformance).Named("start", utc).String(),
		NewKey(FamilyPerformance).Named("start", local).String())
}

func TestKey_DecimalRepresentationStable(t *testing.T) {
	assert.Equal(t,
		NewKey(FamilyKPIs).Arg(decimal.RequireFromString("10.50")).String(),
		NewKey(FamilyKPIs).Arg(decimal.RequireFromString("10.5")).String())
}

func TestKey_FamiliesDiffer(t *testing.T) {
	assert.NotEqual(t,
		NewKey(FamilyKPIs).Arg(10).String(),
		NewKey(FamilyGestoresRanking).Arg(10).String())
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"nil", nil, "<nil>"},
		{"string is quoted", "a,b", `"a,b"`},
		{"float shortest", 0.1, "0.1"},
		{"bool", true, "true"},
		{"int", 10, "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, canonical(tt.input))
		})
	}
}
