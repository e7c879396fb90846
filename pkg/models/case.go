package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Case is a single debt record owed by one person to one cartera.
// StatusName, CarteraName and AssignedToName are filled by joins on read.
type Case struct {
	ID              int64
	NroCliente      string
	Name            string
	Lastname        string
	DNI             *string
	Telefono        string
	CalleNombre     string
	CalleNro        string
	Localidad       string
	Provincia       string
	CP              string
	Total           decimal.Decimal
	MontoInicial    *decimal.Decimal
	FechaUltimoPago *Date
	StatusID        int64
	StatusName      string
	CarteraID       int64
	CarteraName     string
	AssignedToID    *int64
	AssignedToName  string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PersonKey returns the trimmed national ID, or "" when the case has none.
func (c *Case) PersonKey() string {
	if c.DNI == nil {
		return ""
	}
	return strings.TrimSpace(*c.DNI)
}

// IsAssignedTo reports whether the case is assigned to the given user.
func (c *Case) IsAssignedTo(userID int64) bool {
	return c.AssignedToID != nil && *c.AssignedToID == userID
}

// CaseView is the JSON projection of a Case, with amounts as plain numbers.
type CaseView struct {
	ID              int64       `json:"id"`
	NroCliente      string      `json:"nro_cliente"`
	Name            string      `json:"name"`
	Lastname        string      `json:"lastname"`
	DNI             *string     `json:"dni"`
	Telefono        string      `json:"telefono"`
	CalleNombre     string      `json:"calle_nombre"`
	CalleNro        string      `json:"calle_nro"`
	Localidad       string      `json:"localidad"`
	Provincia       string      `json:"provincia"`
	CP              string      `json:"cp"`
	Total           float64     `json:"total"`
	MontoInicial    *float64    `json:"monto_inicial"`
	FechaUltimoPago *Date       `json:"fecha_ultimo_pago"`
	StatusID        int64       `json:"status_id"`
	Status          string      `json:"status"`
	CarteraID       int64       `json:"cartera_id"`
	Cartera         string      `json:"cartera"`
	AssignedToID    *int64      `json:"assigned_to_id"`
	AssignedTo      string      `json:"assigned_to,omitempty"`
	Notes           string      `json:"notes"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Promises        []*Promise  `json:"promises,omitempty"`
	Activities      []*Activity `json:"activities,omitempty"`
}

// View projects the case for output.
func (c *Case) View() *CaseView {
	v := &CaseView{
		ID:              c.ID,
		NroCliente:      c.NroCliente,
		Name:            c.Name,
		Lastname:        c.Lastname,
		DNI:             c.DNI,
		Telefono:        c.Telefono,
		CalleNombre:     c.CalleNombre,
		CalleNro:        c.CalleNro,
		Localidad:       c.Localidad,
		Provincia:       c.Provincia,
		CP:              c.CP,
		Total:           Money(c.Total),
		FechaUltimoPago: c.FechaUltimoPago,
		StatusID:        c.StatusID,
		Status:          c.StatusName,
		CarteraID:       c.CarteraID,
		Cartera:         c.CarteraName,
		AssignedToID:    c.AssignedToID,
		AssignedTo:      c.AssignedToName,
		Notes:           c.Notes,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	if c.MontoInicial != nil {
		m := Money(*c.MontoInicial)
		v.MontoInicial = &m
	}
	return v
}

// CaseListFilter narrows the paginated case listing.
type CaseListFilter struct {
	StatusID  *int64
	CarteraID *int64
	GestorID  *int64
	Search    string
	Page      int
	PerPage   int
}

// CasePage is one page of the case listing.
type CasePage struct {
	Items   []*CaseView `json:"items"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
	Pages   int         `json:"pages"`
}
