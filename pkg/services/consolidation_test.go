package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
)

func strPtr(s string) *string { return &s }

func day(d int) time.Time {
	return time.Date(2024, 5, d, 12, 0, 0, 0, time.UTC)
}

func groupKeys(groups []*models.PersonGroup) []string {
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	return keys
}

func TestBuildPersonGroups_MergesByTrimmedDNI(t *testing.T) {
	monto := dec("80")
	cases := []*models.Case{
		{ID: 1, Name: "Ana", Telefono: "111-old", DNI: strPtr("30111222"), CarteraID: 10, Total: dec("100.10"), MontoInicial: &monto, CreatedAt: day(1)},
		{ID: 2, Name: "Ana María", Telefono: "111-new", DNI: strPtr(" 30111222 "), CarteraID: 20, Total: dec("50.20"), CreatedAt: day(3)},
		{ID: 3, Name: "Bruno", DNI: strPtr("40999888"), CarteraID: 10, Total: dec("10"), CreatedAt: day(2)},
	}

	groups := BuildPersonGroups(cases, nil, nil)

	require.Equal(t, []string{"30111222", "40999888"}, groupKeys(groups))

	ana := groups[0]
	assert.Equal(t, "30111222", *ana.DNI)
	assert.Equal(t, int64(2), ana.TotalDeudas)
	assert.Equal(t, 150.3, ana.DeudaConsolidada)
	assert.Equal(t, 80.0, ana.MontoInicialTotal)
	assert.Equal(t, "Ana María", ana.Cliente.Name, "cliente comes from the most recent case")
	assert.Equal(t, "111-new", ana.Cliente.Telefono)
	assert.Equal(t, int64(2), ana.Deudas[0].ID)
	assert.Equal(t, int64(1), ana.Deudas[1].ID)
}

func TestBuildPersonGroups_CasesWithoutDNI(t *testing.T) {
	cases := []*models.Case{
		{ID: 7, Name: "Sin", CarteraID: 10, Total: dec("1"), CreatedAt: day(1)},
		{ID: 8, Name: "Blank", DNI: strPtr("   "), CarteraID: 10, Total: dec("2"), CreatedAt: day(1)},
	}

	groups := BuildPersonGroups(cases, nil, nil)

	assert.Equal(t, []string{"SIN-DNI-8", "SIN-DNI-7"}, groupKeys(groups), "equal timestamps order by higher id")
	for _, g := range groups {
		assert.Nil(t, g.DNI)
		assert.Equal(t, int64(1), g.TotalDeudas)
	}
}

func TestBuildPersonGroups_LiteralPlaceholderDNIStaysSeparate(t *testing.T) {
	cases := []*models.Case{
		{ID: 7, Name: "Sin", CarteraID: 10, Total: dec("1"), CreatedAt: day(1)},
		{ID: 9, Name: "Literal", DNI: strPtr("SIN-DNI-7"), CarteraID: 10, Total: dec("5"), CreatedAt: day(2)},
	}

	groups := BuildPersonGroups(cases, nil, nil)

	require.Len(t, groups, 2)
	assert.Equal(t, []string{"SIN-DNI-7", "SIN-DNI-7"}, groupKeys(groups))
	require.NotNil(t, groups[0].DNI)
	assert.Equal(t, "SIN-DNI-7", *groups[0].DNI)
	assert.Equal(t, int64(1), groups[0].TotalDeudas)
	assert.Nil(t, groups[1].DNI)
	assert.Equal(t, int64(1), groups[1].TotalDeudas)
}

func TestBuildPersonGroups_FilterKeepsWholeGroup(t *testing.T) {
	gestor := int64(5)
	other := int64(6)
	cases := []*models.Case{
		{ID: 1, DNI: strPtr("111"), CarteraID: 10, AssignedToID: &gestor, Total: dec("100"), CreatedAt: day(1)},
		{ID: 2, DNI: strPtr("111"), CarteraID: 20, AssignedToID: &other, Total: dec("200"), CreatedAt: day(2)},
		{ID: 3, DNI: strPtr("222"), CarteraID: 20, Total: dec("300"), CreatedAt: day(3)},
	}

	tests := []struct {
		name      string
		carteraID *int64
		gestorID  *int64
		want      []string
		debts     int
	}{
		{name: "no filter", want: []string{"222", "111"}},
		{name: "cartera keeps every debt of a matching person", carteraID: int64Ptr(10), want: []string{"111"}, debts: 2},
		{name: "cartera matching both", carteraID: int64Ptr(20), want: []string{"222", "111"}},
		{name: "gestor", gestorID: &gestor, want: []string{"111"}, debts: 2},
		{name: "cartera and gestor from different debts", carteraID: int64Ptr(20), gestorID: &gestor, want: []string{"111"}, debts: 2},
		{name: "no match", carteraID: int64Ptr(99), want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := BuildPersonGroups(cases, tt.carteraID, tt.gestorID)

			assert.Equal(t, tt.want, groupKeys(groups))
			if tt.debts > 0 {
				assert.Len(t, groups[0].Deudas, tt.debts)
				assert.Equal(t, 300.0, groups[0].DeudaConsolidada)
			}
		})
	}
}

func TestBuildPersonGroups_DoesNotReorderInput(t *testing.T) {
	cases := []*models.Case{
		{ID: 1, DNI: strPtr("1"), Total: dec("1"), CreatedAt: day(1)},
		{ID: 2, DNI: strPtr("2"), Total: dec("1"), CreatedAt: day(2)},
	}

	BuildPersonGroups(cases, nil, nil)

	assert.Equal(t, int64(1), cases[0].ID)
}

func TestBuildPersonGroups_Empty(t *testing.T) {
	groups := BuildPersonGroups(nil, nil, nil)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}
