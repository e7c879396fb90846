package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/apperrors"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/database"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
)

// CatalogRepository defines data access for the case status and cartera catalogs.
type CatalogRepository interface {
	// GetActiveStatusByName returns apperrors.ErrNotFound when no active status has that name.
	GetActiveStatusByName(ctx context.Context, nombre string) (*models.CaseStatus, error)
	GetStatusByID(ctx context.Context, id int64) (*models.CaseStatus, error)
	ListStatuses(ctx context.Context, activeOnly bool) ([]*models.CaseStatus, error)
	GetCarteraByID(ctx context.Context, id int64) (*models.Cartera, error)
	// ListCarteras returns carteras ordered by nombre.
	ListCarteras(ctx context.Context, activeOnly bool) ([]*models.Cartera, error)
	// EnsureStatus inserts the status when no row with that name exists.
	EnsureStatus(ctx context.Context, nombre string, activo bool) (bool, error)
	// EnsureCartera inserts the cartera when no row with that name exists.
	EnsureCartera(ctx context.Context, nombre string, activo bool) (bool, error)
}

type catalogRepository struct{}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository() CatalogRepository {
	return &catalogRepository{}
}

var _ CatalogRepository = (*catalogRepository)(nil)

func (r *catalogRepository) GetActiveStatusByName(ctx context.Context, nombre string) (*models.CaseStatus, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, nombre, activo, created_at
		FROM case_statuses
		WHERE nombre = $1 AND activo`

	var s models.CaseStatus
	err := scope.Conn.QueryRow(ctx, query, nombre).Scan(&s.ID, &s.Nombre, &s.Activo, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get status %q: %w", nombre, err)
	}
	return &s, nil
}

func (r *catalogRepository) GetStatusByID(ctx context.Context, id int64) (*models.CaseStatus, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT id, nombre, activo, created_at FROM case_statuses WHERE id = $1`

	var s models.CaseStatus
	err := scope.Conn.QueryRow(ctx, query, id).Scan(&s.ID, &s.Nombre, &s.Activo, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &s, nil
}

func (r *catalogRepository) ListStatuses(ctx context.Context, activeOnly bool) ([]*models.CaseStatus, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, nombre, activo, created_at
		FROM case_statuses
		WHERE activo OR NOT $1
		ORDER BY id`

	rows, err := scope.Conn.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*models.CaseStatus
	for rows.Next() {
		var s models.CaseStatus
		if err := rows.Scan(&s.ID, &s.Nombre, &s.Activo, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		statuses = append(statuses, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statuses: %w", err)
	}
	return statuses, nil
}

func (r *catalogRepository) GetCarteraByID(ctx context.Context, id int64) (*models.Cartera, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT id, nombre, activo, created_at FROM carteras WHERE id = $1`

	var c models.Cartera
	err := scope.Conn.QueryRow(ctx, query, id).Scan(&c.ID, &c.Nombre, &c.Activo, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cartera: %w", err)
	}
	return &c, nil
}

func (r *catalogRepository) ListCarteras(ctx context.Context, activeOnly bool) ([]*models.Cartera, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, nombre, activo, created_at
		FROM carteras
		WHERE activo OR NOT $1
		ORDER BY nombre, id`

	rows, err := scope.Conn.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list carteras: %w", err)
	}
	defer rows.Close()

	var carteras []*models.Cartera
	for rows.Next() {
		var c models.Cartera
		if err := rows.Scan(&c.ID, &c.Nombre, &c.Activo, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cartera: %w", err)
		}
		carteras = append(carteras, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating carteras: %w", err)
	}
	return carteras, nil
}

func (r *catalogRepository) EnsureStatus(ctx context.Context, nombre string, activo bool) (bool, error) {
	return r.ensure(ctx, "case_statuses", nombre, activo)
}

func (r *catalogRepository) EnsureCartera(ctx context.Context, nombre string, activo bool) (bool, error) {
	return r.ensure(ctx, "carteras", nombre, activo)
}

// ensure inserts by unique nombre; table is one of the two catalog tables, never user input.
func (r *catalogRepository) ensure(ctx context.Context, table, nombre string, activo bool) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	query := `INSERT INTO ` + table + ` (nombre, activo) VALUES ($1, $2) ON CONFLICT (nombre) DO NOTHING`

	tag, err := scope.Conn.Exec(ctx, query, nombre, activo)
	if err != nil {
		return false, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return tag.RowsAffected() == 1, nil
}
