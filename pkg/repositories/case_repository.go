package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/apperrors"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/database"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
)

// CaseRepository defines data access for the case book.
type CaseRepository interface {
	Create(ctx context.Context, c *models.Case) error
	Update(ctx context.Context, c *models.Case) error
	UpdateStatus(ctx context.Context, id, statusID int64) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*models.Case, error)
	// List returns one page of cases, newest first, and the total number of matches.
	List(ctx context.Context, filter models.CaseListFilter) ([]*models.Case, int64, error)
	// ListAll returns every case ordered by created_at desc, id desc.
	ListAll(ctx context.Context) ([]*models.Case, error)
}

type caseRepository struct{}

// NewCaseRepository creates a new case repository.
func NewCaseRepository() CaseRepository {
	return &caseRepository{}
}

var _ CaseRepository = (*caseRepository)(nil)

const caseColumns = `
	c.id, COALESCE(c.nro_cliente, ''), c.name, c.lastname, c.dni,
	COALESCE(c.telefono, ''), COALESCE(c.calle_nombre, ''), COALESCE(c.calle_nro, ''),
	COALESCE(c.localidad, ''), COALESCE(c.provincia, ''), COALESCE(c.cp, ''),
	c.total, c.monto_inicial, c.fecha_ultimo_pago,
	c.status_id, s.nombre, c.cartera_id, ca.nombre,
	c.assigned_to_id, COALESCE(u.username, ''), COALESCE(c.notes, ''),
	c.created_at, c.updated_at`

const caseJoins = `
	FROM cases c
	JOIN case_statuses s ON s.id = c.status_id
	JOIN carteras ca ON ca.id = c.cartera_id
	LEFT JOIN users u ON u.id = c.assigned_to_id`

func scanCase(row pgx.Row) (*models.Case, error) {
	var (
		c            models.Case
		montoInicial decimal.NullDecimal
		fechaPago    *time.Time
	)
	err := row.Scan(
		&c.ID, &c.NroCliente, &c.Name, &c.Lastname, &c.DNI,
		&c.Telefono, &c.CalleNombre, &c.CalleNro,
		&c.Localidad, &c.Provincia, &c.CP,
		&c.Total, &montoInicial, &fechaPago,
		&c.StatusID, &c.StatusName, &c.CarteraID, &c.CarteraName,
		&c.AssignedToID, &c.AssignedToName, &c.Notes,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if montoInicial.Valid {
		c.MontoInicial = &montoInicial.Decimal
	}
	if fechaPago != nil {
		d := models.NewDate(*fechaPago)
		c.FechaUltimoPago = &d
	}
	return &c, nil
}

func collectCases(rows pgx.Rows) ([]*models.Case, error) {
	defer rows.Close()

	var cases []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cases: %w", err)
	}
	return cases, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func dateArg(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.Time
}

func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

// Create inserts the case and fills ID and timestamps. Join names are not populated.
func (r *caseRepository) Create(ctx context.Context, c *models.Case) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO cases (
			nro_cliente, name, lastname, dni, telefono, calle_nombre, calle_nro,
			localidad, provincia, cp, total, monto_inicial, fecha_ultimo_pago,
			status_id, cartera_id, assigned_to_id, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		nullIfEmpty(c.NroCliente), c.Name, c.Lastname, c.DNI,
		nullIfEmpty(c.Telefono), nullIfEmpty(c.CalleNombre), nullIfEmpty(c.CalleNro),
		nullIfEmpty(c.Localidad), nullIfEmpty(c.Provincia), nullIfEmpty(c.CP),
		c.Total, decimalArg(c.MontoInicial), dateArg(c.FechaUltimoPago),
		c.StatusID, c.CarteraID, c.AssignedToID, nullIfEmpty(c.Notes),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapWriteError("create case", err)
	}
	return nil
}

// Update overwrites every editable column of the case.
func (r *caseRepository) Update(ctx context.Context, c *models.Case) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE cases SET
			nro_cliente = $1, name = $2, lastname = $3, dni = $4, telefono = $5,
			calle_nombre = $6, calle_nro = $7, localidad = $8, provincia = $9, cp = $10,
			total = $11, monto_inicial = $12, fecha_ultimo_pago = $13,
			status_id = $14, cartera_id = $15, assigned_to_id = $16, notes = $17,
			updated_at = NOW()
		WHERE id = $18
		RETURNING updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		nullIfEmpty(c.NroCliente), c.Name, c.Lastname, c.DNI, nullIfEmpty(c.Telefono),
		nullIfEmpty(c.CalleNombre), nullIfEmpty(c.CalleNro), nullIfEmpty(c.Localidad),
		nullIfEmpty(c.Provincia), nullIfEmpty(c.CP),
		c.Total, decimalArg(c.MontoInicial), dateArg(c.FechaUltimoPago),
		c.StatusID, c.CarteraID, c.AssignedToID, nullIfEmpty(c.Notes),
		c.ID,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return mapWriteError("update case", err)
	}
	return nil
}

func (r *caseRepository) UpdateStatus(ctx context.Context, id, statusID int64) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	tag, err := scope.Conn.Exec(ctx,
		`UPDATE cases SET status_id = $1, updated_at = NOW() WHERE id = $2`, statusID, id)
	if err != nil {
		return mapWriteError("update case status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes the case; promises and activities cascade.
func (r *caseRepository) Delete(ctx context.Context, id int64) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *caseRepository) GetByID(ctx context.Context, id int64) (*models.Case, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + caseColumns + caseJoins + ` WHERE c.id = $1`

	c, err := scanCase(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

func (r *caseRepository) List(ctx context.Context, filter models.CaseListFilter) ([]*models.Case, int64, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no database scope in context")
	}

	var w whereBuilder
	CaseFilter{
		CarteraID: filter.CarteraID,
		GestorID:  filter.GestorID,
		StatusID:  filter.StatusID,
	}.apply(&w)
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		w.add(`(c.name ILIKE ? OR c.lastname ILIKE ? OR c.dni ILIKE ? OR c.nro_cliente ILIKE ?)`,
			pattern, pattern, pattern, pattern)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM cases c ` + w.clause()
	if err := scope.Conn.QueryRow(ctx, countQuery, w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cases: %w", err)
	}

	limit := w.arg(filter.PerPage)
	offset := w.arg((filter.Page - 1) * filter.PerPage)
	query := `SELECT ` + caseColumns + caseJoins + ` ` + w.clause() +
		` ORDER BY c.created_at DESC, c.id DESC LIMIT ` + limit + ` OFFSET ` + offset

	rows, err := scope.Conn.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cases: %w", err)
	}
	cases, err := collectCases(rows)
	if err != nil {
		return nil, 0, err
	}
	return cases, total, nil
}

func (r *caseRepository) ListAll(ctx context.Context) ([]*models.Case, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + caseColumns + caseJoins + ` ORDER BY c.created_at DESC, c.id DESC`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return collectCases(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
