package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/database"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
)

// PromiseRepository defines data access for payment promises.
type PromiseRepository interface {
	Create(ctx context.Context, p *models.Promise) error
	ListByCase(ctx context.Context, caseID int64) ([]*models.Promise, error)
	// ListByCaseIDs loads the promises of many cases in one query, keyed by case id.
	ListByCaseIDs(ctx context.Context, caseIDs []int64) (map[int64][]*models.Promise, error)
}

type promiseRepository struct{}

// NewPromiseRepository creates a new promise repository.
func NewPromiseRepository() PromiseRepository {
	return &promiseRepository{}
}

var _ PromiseRepository = (*promiseRepository)(nil)

const promiseColumns = `p.id, p.case_id, p.amount, p.promise_date, p.status, p.fulfilled_date,
	COALESCE(p.notes, ''), p.created_at, p.updated_at`

func scanPromise(row pgx.Row) (*models.Promise, error) {
	var (
		p             models.Promise
		promiseDate   time.Time
		fulfilledDate *time.Time
	)
	err := row.Scan(&p.ID, &p.CaseID, &p.Amount, &promiseDate, &p.Status, &fulfilledDate,
		&p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.PromiseDate = models.NewDate(promiseDate)
	if fulfilledDate != nil {
		d := models.NewDate(*fulfilledDate)
		p.FulfilledDate = &d
	}
	return &p, nil
}

func (r *promiseRepository) Create(ctx context.Context, p *models.Promise) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO promises (case_id, amount, promise_date, status, fulfilled_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		p.CaseID, p.Amount, p.PromiseDate.Time, p.Status, dateArg(p.FulfilledDate), nullIfEmpty(p.Notes),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapWriteError("create promise", err)
	}
	return nil
}

func (r *promiseRepository) ListByCase(ctx context.Context, caseID int64) ([]*models.Promise, error) {
	byCase, err := r.ListByCaseIDs(ctx, []int64{caseID})
	if err != nil {
		return nil, err
	}
	return byCase[caseID], nil
}

func (r *promiseRepository) ListByCaseIDs(ctx context.Context, caseIDs []int64) (map[int64][]*models.Promise, error) {
	result := make(map[int64][]*models.Promise, len(caseIDs))
	if len(caseIDs) == 0 {
		return result, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT ` + promiseColumns + `
		FROM promises p
		WHERE p.case_id = ANY($1)
		ORDER BY p.case_id, p.promise_date DESC, p.id DESC`

	rows, err := scope.Conn.Query(ctx, query, caseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list promises: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPromise(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promise: %w", err)
		}
		result[p.CaseID] = append(result[p.CaseID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating promises: %w", err)
	}
	return result, nil
}
