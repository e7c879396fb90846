package services

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
)

// noDNIKeyPrefix labels groups for cases without a national ID, one group per case.
const noDNIKeyPrefix = "SIN-DNI-"

// noDNIGroupPrefix keeps no-DNI groups apart from real IDs; stored text cannot contain NUL.
const noDNIGroupPrefix = "\x00"

type personAccumulator struct {
	group        *models.PersonGroup
	total        decimal.Decimal
	montoInicial decimal.Decimal
	carteras     map[int64]bool
	gestores     map[int64]bool
}

// BuildPersonGroups folds cases into one group per person.
//
// Cases are ordered newest first (ties by higher id) and grouped by trimmed DNI;
// groups keep the order in which their most recent case appears. The cliente
// block comes from that most recent case. A group is kept when some debt
// belongs to carteraID and some debt is assigned to gestorID (nil filters
// always match); kept groups carry all of their debts.
func BuildPersonGroups(cases []*models.Case, carteraID, gestorID *int64) []*models.PersonGroup {
	sorted := make([]*models.Case, len(cases))
	copy(sorted, cases)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	var order []string
	groups := make(map[string]*personAccumulator)

	for _, c := range sorted {
		key := c.PersonKey()
		label := key
		if key == "" {
			id := strconv.FormatInt(c.ID, 10)
			key, label = noDNIGroupPrefix+id, noDNIKeyPrefix+id
		}

		acc, ok := groups[key]
		if !ok {
			var dni *string
			if pk := c.PersonKey(); pk != "" {
				dni = &pk
			}
			acc = &personAccumulator{
				group: &models.PersonGroup{
					Key:     label,
					DNI:     dni,
					Cliente: clienteFrom(c),
					Deudas:  []*models.CaseView{},
				},
				carteras: map[int64]bool{},
				gestores: map[int64]bool{},
			}
			groups[key] = acc
			order = append(order, key)
		}

		acc.group.Deudas = append(acc.group.Deudas, c.View())
		acc.total = acc.total.Add(c.Total)
		if c.MontoInicial != nil {
			acc.montoInicial = acc.montoInicial.Add(*c.MontoInicial)
		}
		acc.carteras[c.CarteraID] = true
		if c.AssignedToID != nil {
			acc.gestores[*c.AssignedToID] = true
		}
	}

	result := make([]*models.PersonGroup, 0, len(order))
	for _, key := range order {
		acc := groups[key]
		if carteraID != nil && !acc.carteras[*carteraID] {
			continue
		}
		if gestorID != nil && !acc.gestores[*gestorID] {
			continue
		}
		acc.group.TotalDeudas = int64(len(acc.group.Deudas))
		acc.group.DeudaConsolidada = models.Money(acc.total)
		acc.group.MontoInicialTotal = models.Money(acc.montoInicial)
		result = append(result, acc.group)
	}
	return result
}

func clienteFrom(c *models.Case) models.Cliente {
	return models.Cliente{
		Name:        c.Name,
		Lastname:    c.Lastname,
		DNI:         c.DNI,
		Telefono:    c.Telefono,
		CalleNombre: c.CalleNombre,
		CalleNro:    c.CalleNro,
		Localidad:   c.Localidad,
		Provincia:   c.Provincia,
		CP:          c.CP,
	}
}
