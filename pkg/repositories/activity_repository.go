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

// ActivityRepository defines data access for the activity log.
type ActivityRepository interface {
	Create(ctx context.Context, a *models.Activity) error
	GetByID(ctx context.Context, id int64) (*models.Activity, error)
	Delete(ctx context.Context, id int64) error
	// ListByCase returns the case's activities, newest first. limit <= 0 means all.
	ListByCase(ctx context.Context, caseID int64, limit int) ([]*models.Activity, error)
	// ListRecentByCaseIDs returns at most perCase newest activities for each case, keyed by case id.
	ListRecentByCaseIDs(ctx context.Context, caseIDs []int64, perCase int) (map[int64][]*models.Activity, error)
}

type activityRepository struct{}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository() ActivityRepository {
	return &activityRepository{}
}

var _ ActivityRepository = (*activityRepository)(nil)

const activityColumns = `a.id, a.case_id, a.type, COALESCE(a.notes, ''), a.created_by_id,
	COALESCE(u.username, ''), a.created_at`

func scanActivity(row pgx.Row) (*models.Activity, error) {
	var a models.Activity
	err := row.Scan(&a.ID, &a.CaseID, &a.Type, &a.Notes, &a.CreatedByID, &a.CreatedByName, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *activityRepository) Create(ctx context.Context, a *models.Activity) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO activities (case_id, type, notes, created_by_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := scope.Conn.QueryRow(ctx, query, a.CaseID, a.Type, nullIfEmpty(a.Notes), a.CreatedByID).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return mapWriteError("create activity", err)
	}
	return nil
}

func (r *activityRepository) GetByID(ctx context.Context, id int64) (*models.Activity, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT ` + activityColumns + `
		FROM activities a
		LEFT JOIN users u ON u.id = a.created_by_id
		WHERE a.id = $1`

	a, err := scanActivity(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return a, nil
}

func (r *activityRepository) Delete(ctx context.Context, id int64) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *activityRepository) ListByCase(ctx context.Context, caseID int64, limit int) ([]*models.Activity, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT ` + activityColumns + `
		FROM activities a
		LEFT JOIN users u ON u.id = a.created_by_id
		WHERE a.case_id = $1
		ORDER BY a.created_at DESC, a.id DESC`
	args := []any{caseID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}
	return activities, nil
}

func (r *activityRepository) ListRecentByCaseIDs(ctx context.Context, caseIDs []int64, perCase int) (map[int64][]*models.Activity, error) {
	result := make(map[int64][]*models.Activity, len(caseIDs))
	if len(caseIDs) == 0 || perCase <= 0 {
		return result, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, case_id, type, notes, created_by_id, created_by, created_at
		FROM (
			SELECT a.id, a.case_id, a.type, COALESCE(a.notes, '') AS notes, a.created_by_id,
				COALESCE(u.username, '') AS created_by, a.created_at,
				ROW_NUMBER() OVER (PARTITION BY a.case_id ORDER BY a.created_at DESC, a.id DESC) AS rn
			FROM activities a
			LEFT JOIN users u ON u.id = a.created_by_id
			WHERE a.case_id = ANY($1)
		) ranked
		WHERE rn <= $2
		ORDER BY case_id, rn`

	rows, err := scope.Conn.Query(ctx, query, caseIDs, perCase)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent activities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		result[a.CaseID] = append(result[a.CaseID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}
	return result, nil
}
