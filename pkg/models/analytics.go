package models

import "time"

// DashboardFilter restricts KPI queries. Nil fields mean no restriction.
// Start and End are both inclusive on the case creation timestamp.
type DashboardFilter struct {
	Start     *time.Time
	End       *time.Time
	CarteraID *int64
	GestorID  *int64
}

// KPIs is the dashboard headline summary.
type KPIs struct {
	MontoRecuperado     float64 `json:"monto_recuperado"`
	TasaRecupero        float64 `json:"tasa_recupero"`
	PromesasCumplidas   float64 `json:"promesas_cumplidas"`
	GestionesRealizadas int64   `json:"gestiones_realizadas"`
	TotalCasos          int64   `json:"total_casos"`
	CasosPagados        int64   `json:"casos_pagados"`
	TotalDeuda          float64 `json:"total_deuda"`
}

// Period is one half-open [Start, End) bucket of a performance series.
type Period struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Series holds recovered amounts per period for one cartera.
type Series struct {
	CarteraID int64     `json:"cartera_id"`
	Label     string    `json:"label"`
	Values    []float64 `json:"values"`
}

// PerformanceSeries is the weekly recovered-amount chart.
type PerformanceSeries struct {
	Periods []Period `json:"periods"`
	Series  []Series `json:"series"`
}

// CarteraSlice is one cartera's share of the case book.
type CarteraSlice struct {
	CarteraID int64   `json:"cartera_id"`
	Nombre    string  `json:"nombre"`
	Total     float64 `json:"total"`
	Casos     int64   `json:"casos"`
}

// GestorRank is one row of the agent ranking.
type GestorRank struct {
	GestorID          int64   `json:"gestor_id"`
	GestorName        string  `json:"gestor_name"`
	MontoRecuperado   float64 `json:"monto_recuperado"`
	TotalCasos        int64   `json:"total_casos"`
	CasosPagados      int64   `json:"casos_pagados"`
	PromesasCumplidas float64 `json:"promesas_cumplidas"`
}

// StatusCount is the number of cases in one active status.
type StatusCount struct {
	StatusID int64  `json:"status_id"`
	Nombre   string `json:"nombre"`
	Count    int64  `json:"count"`
}

// PeriodSnapshot is the subset of KPIs compared month over month.
type PeriodSnapshot struct {
	MontoRecuperado     float64 `json:"monto_recuperado"`
	PromesasCumplidas   float64 `json:"promesas_cumplidas"`
	GestionesRealizadas int64   `json:"gestiones_realizadas"`
}

// PeriodComparison compares the current month-to-date with the previous month.
type PeriodComparison struct {
	Current  PeriodSnapshot `json:"current"`
	Previous PeriodSnapshot `json:"previous"`
}

// MultiDebtClient is a person (by DNI) holding more than one case.
type MultiDebtClient struct {
	DNI               string     `json:"dni"`
	TotalDeudas       int64      `json:"total_deudas"`
	DeudaConsolidada  float64    `json:"deuda_consolidada"`
	MontoInicialTotal float64    `json:"monto_inicial_total"`
	FechaMasReciente  *Date      `json:"fecha_mas_reciente"`
	PrimeraDeuda      *time.Time `json:"primera_deuda"`
	UltimaDeuda       *time.Time `json:"ultima_deuda"`
}

// Cliente is the debtor's contact block shown once per person group.
type Cliente struct {
	Name        string  `json:"name"`
	Lastname    string  `json:"lastname"`
	DNI         *string `json:"dni"`
	Telefono    string  `json:"telefono"`
	CalleNombre string  `json:"calle_nombre"`
	CalleNro    string  `json:"calle_nro"`
	Localidad   string  `json:"localidad"`
	Provincia   string  `json:"provincia"`
	CP          string  `json:"cp"`
}

// PersonGroup is every case sharing one national ID, with rolled-up totals.
// Key is the DNI, or SIN-DNI-<case id> for cases without one.
type PersonGroup struct {
	Key               string      `json:"key"`
	DNI               *string     `json:"dni"`
	Cliente           Cliente     `json:"cliente"`
	Deudas            []*CaseView `json:"deudas"`
	TotalDeudas       int64       `json:"total_deudas"`
	DeudaConsolidada  float64     `json:"deuda_consolidada"`
	MontoInicialTotal float64     `json:"monto_inicial_total"`
}
