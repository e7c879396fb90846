package models

import "time"

// Status names the engine resolves by name. Catalog ids differ per deployment.
const (
	StatusArranged      = "Con Arreglo"
	StatusNoArrangement = "Sin Arreglo"
)

// CaseStatus is a row of the case_statuses catalog.
type CaseStatus struct {
	ID        int64     `json:"id"`
	Nombre    string    `json:"nombre"`
	Activo    bool      `json:"activo"`
	CreatedAt time.Time `json:"created_at"`
}

// Cartera is a portfolio of debts, usually one per originating lender.
type Cartera struct {
	ID        int64     `json:"id"`
	Nombre    string    `json:"nombre"`
	Activo    bool      `json:"activo"`
	CreatedAt time.Time `json:"created_at"`
}
