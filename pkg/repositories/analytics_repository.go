package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/database"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
)

// CaseTotals is a count and amount sum over a set of cases.
type CaseTotals struct {
	Count int64
	Sum   decimal.Decimal
}

// PromiseStats counts promises and how many of them were fulfilled.
type PromiseStats struct {
	Total     int64
	Fulfilled int64
}

// PromiseFilter restricts promises by creation time and owning case.
type PromiseFilter struct {
	Created DateRange
	Cases   CaseSubset
}

// ActivityFilter restricts activities by creation time, author and owning case.
type ActivityFilter struct {
	Created     DateRange
	CreatedByID *int64
	Cases       CaseSubset
}

// BucketTotal is the amount of cases of one cartera created in one bucket.
type BucketTotal struct {
	CarteraID int64
	Bucket    int
	Sum       decimal.Decimal
}

// CarteraTotal is the amount and case count held by one cartera.
type CarteraTotal struct {
	CarteraID int64
	Nombre    string
	Total     decimal.Decimal
	Casos     int64
}

// GestorCaseStats summarizes the caseload of one active gestor.
type GestorCaseStats struct {
	GestorID     int64
	Username     string
	TotalCasos   int64
	CasosPagados int64
	Recovered    decimal.Decimal
}

// MultiDebtRow aggregates every case sharing one national ID.
type MultiDebtRow struct {
	DNI               string
	TotalDeudas       int64
	DeudaConsolidada  decimal.Decimal
	MontoInicialTotal decimal.Decimal
	FechaMasReciente  *time.Time
	PrimeraDeuda      time.Time
	UltimaDeuda       time.Time
}

// AnalyticsRepository runs the aggregate queries behind the dashboards.
type AnalyticsRepository interface {
	SumCases(ctx context.Context, filter CaseFilter) (*CaseTotals, error)
	CaseIDs(ctx context.Context, filter CaseFilter) ([]int64, error)
	PromiseStats(ctx context.Context, filter PromiseFilter) (*PromiseStats, error)
	CountActivities(ctx context.Context, filter ActivityFilter) (int64, error)
	// RecoveredByBucket sums case totals with statusID created in [start, end),
	// grouped by cartera and by bucket index floor((created_at - start) / width).
	RecoveredByBucket(ctx context.Context, statusID int64, carteraIDs []int64, start, end time.Time, width time.Duration) ([]BucketTotal, error)
	// CarteraDistribution returns carteras holding at least one case, ordered by nombre.
	CarteraDistribution(ctx context.Context) ([]CarteraTotal, error)
	// GestorCaseStats returns every active gestor ordered by id. Cases with
	// arrangedStatusID count as paid; a nil id counts none.
	GestorCaseStats(ctx context.Context, arrangedStatusID *int64) ([]GestorCaseStats, error)
	// PromiseStatsByGestor counts promises of cases assigned to each gestor.
	PromiseStatsByGestor(ctx context.Context, gestorIDs []int64) (map[int64]PromiseStats, error)
	// StatusDistribution counts cases per active status, ordered by status id.
	StatusDistribution(ctx context.Context) ([]models.StatusCount, error)
	// MultiDebtClients groups cases by trimmed DNI and returns the groups with
	// more than one case, largest consolidated debt first.
	MultiDebtClients(ctx context.Context, carteraID, gestorID *int64) ([]MultiDebtRow, error)
}

type analyticsRepository struct{}

// NewAnalyticsRepository creates a new analytics repository.
func NewAnalyticsRepository() AnalyticsRepository {
	return &analyticsRepository{}
}

var _ AnalyticsRepository = (*analyticsRepository)(nil)

func (r *analyticsRepository) SumCases(ctx context.Context, filter CaseFilter) (*CaseTotals, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var w whereBuilder
	filter.apply(&w)
	query := `SELECT COUNT(*), COALESCE(SUM(c.total), 0) FROM cases c ` + w.clause()

	var totals CaseTotals
	if err := scope.Conn.QueryRow(ctx, query, w.args...).Scan(&totals.Count, &totals.Sum); err != nil {
		return nil, fmt.Errorf("failed to sum cases: %w", err)
	}
	return &totals, nil
}

func (r *analyticsRepository) CaseIDs(ctx context.Context, filter CaseFilter) ([]int64, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var w whereBuilder
	filter.apply(&w)
	query := `SELECT c.id FROM cases c ` + w.clause() + ` ORDER BY c.id`

	rows, err := scope.Conn.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list case ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan case id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating case ids: %w", err)
	}
	return ids, nil
}

func (r *analyticsRepository) PromiseStats(ctx context.Context, filter PromiseFilter) (*PromiseStats, error) {
	if filter.Cases.Empty() {
		return &PromiseStats{}, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var w whereBuilder
	filter.Created.apply(&w, "p.created_at")
	filter.Cases.apply(&w, "p.case_id")
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE p.status = 'fulfilled')
		FROM promises p ` + w.clause()

	var stats PromiseStats
	if err := scope.Conn.QueryRow(ctx, query, w.args...).Scan(&stats.Total, &stats.Fulfilled); err != nil {
		return nil, fmt.Errorf("failed to count promises: %w", err)
	}
	return &stats, nil
}

func (r *analyticsRepository) CountActivities(ctx context.Context, filter ActivityFilter) (int64, error) {
	if filter.Cases.Empty() {
		return 0, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	var w whereBuilder
	filter.Created.apply(&w, "a.created_at")
	if filter.CreatedByID != nil {
		w.add("a.created_by_id = ?", *filter.CreatedByID)
	}
	filter.Cases.apply(&w, "a.case_id")
	query := `SELECT COUNT(*) FROM activities a ` + w.clause()

	var count int64
	if err := scope.Conn.QueryRow(ctx, query, w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return count, nil
}

func (r *analyticsRepository) RecoveredByBucket(ctx context.Context, statusID int64, carteraIDs []int64, start, end time.Time, width time.Duration) ([]BucketTotal, error) {
	if len(carteraIDs) == 0 {
		return nil, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT c.cartera_id,
		       FLOOR(EXTRACT(EPOCH FROM (c.created_at - $2::timestamptz)) / $4::float8)::int AS bucket,
		       COALESCE(SUM(c.total), 0)
		FROM cases c
		WHERE c.status_id = $1
		  AND c.created_at >= $2
		  AND c.created_at < $3
		  AND c.cartera_id = ANY($5)
		GROUP BY 1, 2
		ORDER BY 1, 2`

	rows, err := scope.Conn.Query(ctx, query, statusID, start, end, width.Seconds(), carteraIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to sum recovered amounts by bucket: %w", err)
	}
	defer rows.Close()

	var totals []BucketTotal
	for rows.Next() {
		var bt BucketTotal
		if err := rows.Scan(&bt.CarteraID, &bt.Bucket, &bt.Sum); err != nil {
			return nil, fmt.Errorf("failed to scan bucket total: %w", err)
		}
		totals = append(totals, bt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bucket totals: %w", err)
	}
	return totals, nil
}

func (r *analyticsRepository) CarteraDistribution(ctx context.Context) ([]CarteraTotal, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT ca.id, ca.nombre, COALESCE(SUM(c.total), 0), COUNT(c.id)
		FROM carteras ca
		JOIN cases c ON c.cartera_id = ca.id
		GROUP BY ca.id, ca.nombre
		ORDER BY ca.nombre, ca.id`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cartera distribution: %w", err)
	}
	defer rows.Close()

	var totals []CarteraTotal
	for rows.Next() {
		var ct CarteraTotal
		if err := rows.Scan(&ct.CarteraID, &ct.Nombre, &ct.Total, &ct.Casos); err != nil {
			return nil, fmt.Errorf("failed to scan cartera total: %w", err)
		}
		totals = append(totals, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cartera totals: %w", err)
	}
	return totals, nil
}

func (r *analyticsRepository) GestorCaseStats(ctx context.Context, arrangedStatusID *int64) ([]GestorCaseStats, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT u.id, u.username,
		       COUNT(c.id),
		       COUNT(c.id) FILTER (WHERE c.status_id = $1),
		       COALESCE(SUM(c.total) FILTER (WHERE c.status_id = $1), 0)
		FROM users u
		LEFT JOIN cases c ON c.assigned_to_id = u.id
		WHERE u.role = 'gestor' AND u.active
		GROUP BY u.id, u.username
		ORDER BY u.id`

	rows, err := scope.Conn.Query(ctx, query, arrangedStatusID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute gestor stats: %w", err)
	}
	defer rows.Close()

	var stats []GestorCaseStats
	for rows.Next() {
		var gs GestorCaseStats
		if err := rows.Scan(&gs.GestorID, &gs.Username, &gs.TotalCasos, &gs.CasosPagados, &gs.Recovered); err != nil {
			return nil, fmt.Errorf("failed to scan gestor stats: %w", err)
		}
		stats = append(stats, gs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gestor stats: %w", err)
	}
	return stats, nil
}

func (r *analyticsRepository) PromiseStatsByGestor(ctx context.Context, gestorIDs []int64) (map[int64]PromiseStats, error) {
	result := make(map[int64]PromiseStats, len(gestorIDs))
	if len(gestorIDs) == 0 {
		return result, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT c.assigned_to_id, COUNT(p.id), COUNT(p.id) FILTER (WHERE p.status = 'fulfilled')
		FROM promises p
		JOIN cases c ON c.id = p.case_id
		WHERE c.assigned_to_id = ANY($1)
		GROUP BY c.assigned_to_id`

	rows, err := scope.Conn.Query(ctx, query, gestorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count promises by gestor: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			gestorID int64
			stats    PromiseStats
		)
		if err := rows.Scan(&gestorID, &stats.Total, &stats.Fulfilled); err != nil {
			return nil, fmt.Errorf("failed to scan promise stats: %w", err)
		}
		result[gestorID] = stats
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating promise stats: %w", err)
	}
	return result, nil
}

func (r *analyticsRepository) StatusDistribution(ctx context.Context) ([]models.StatusCount, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT s.id, s.nombre, COUNT(c.id)
		FROM case_statuses s
		LEFT JOIN cases c ON c.status_id = s.id
		WHERE s.activo
		GROUP BY s.id, s.nombre
		ORDER BY s.id`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to compute status distribution: %w", err)
	}
	defer rows.Close()

	counts := []models.StatusCount{}
	for rows.Next() {
		var sc models.StatusCount
		if err := rows.Scan(&sc.StatusID, &sc.Nombre, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts = append(counts, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}
	return counts, nil
}

func (r *analyticsRepository) MultiDebtClients(ctx context.Context, carteraID, gestorID *int64) ([]MultiDebtRow, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var w whereBuilder
	w.add("c.dni IS NOT NULL")
	w.add("BTRIM(c.dni) <> ''")
	CaseFilter{CarteraID: carteraID, GestorID: gestorID}.apply(&w)

	query := `
		SELECT BTRIM(c.dni),
		       COUNT(c.id),
		       COALESCE(SUM(c.total), 0),
		       COALESCE(SUM(c.monto_inicial), 0),
		       MAX(c.fecha_ultimo_pago),
		       MIN(c.created_at),
		       MAX(c.created_at)
		FROM cases c ` + w.clause() + `
		GROUP BY BTRIM(c.dni)
		HAVING COUNT(c.id) > 1
		ORDER BY SUM(c.total) DESC, BTRIM(c.dni)`

	rows, err := scope.Conn.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find multi-debt clients: %w", err)
	}
	defer rows.Close()

	var result []MultiDebtRow
	for rows.Next() {
		var row MultiDebtRow
		if err := rows.Scan(&row.DNI, &row.TotalDeudas, &row.DeudaConsolidada, &row.MontoInicialTotal,
			&row.FechaMasReciente, &row.PrimeraDeuda, &row.UltimaDeuda); err != nil {
			return nil, fmt.Errorf("failed to scan multi-debt client: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating multi-debt clients: %w", err)
	}
	return result, nil
}
