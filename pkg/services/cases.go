package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/apperrors"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/audit"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/auth"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/cache"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/jsonutil"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/repositories"
)

// Listing page sizes.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// CaseInput is the editable content of a case.
type CaseInput struct {
	NroCliente      jsonutil.FlexibleString  `json:"nro_cliente"`
	Name            string                   `json:"name"`
	Lastname        string                   `json:"lastname"`
	DNI             *jsonutil.FlexibleString `json:"dni"`
	Telefono        jsonutil.FlexibleString  `json:"telefono"`
	CalleNombre     string                   `json:"calle_nombre"`
	CalleNro        jsonutil.FlexibleString  `json:"calle_nro"`
	Localidad       string                   `json:"localidad"`
	Provincia       string                   `json:"provincia"`
	CP              jsonutil.FlexibleString  `json:"cp"`
	Total           *decimal.Decimal         `json:"total"`
	MontoInicial    *decimal.Decimal         `json:"monto_inicial"`
	FechaUltimoPago *models.Date             `json:"fecha_ultimo_pago"`
	StatusID        *int64                   `json:"status_id"`
	CarteraID       *int64                   `json:"cartera_id"`
	AssignedToID    *int64                   `json:"assigned_to_id"`
	Notes           string                   `json:"notes"`
}

// StatusUpdate selects the new status by id or by name; the id wins when both are set.
type StatusUpdate struct {
	StatusID *int64 `json:"status_id"`
	Status   string `json:"status"`
}

// PromiseInput is a new payment promise.
type PromiseInput struct {
	Amount        decimal.Decimal `json:"amount"`
	PromiseDate   *models.Date    `json:"promise_date"`
	Status        string          `json:"status"`
	FulfilledDate *models.Date    `json:"fulfilled_date"`
	Notes         string          `json:"notes"`
}

// ActivityInput is a new activity log entry.
type ActivityInput struct {
	Type  string `json:"type"`
	Notes string `json:"notes"`
}

// CaseService manages the case book. Every successful write invalidates the
// dashboard cache and is recorded in the audit log.
//
// Admins may act on any case; gestors only on cases assigned to them.
type CaseService interface {
	List(ctx context.Context, filter models.CaseListFilter) (*models.CasePage, error)
	Get(ctx context.Context, id int64) (*models.CaseView, error)
	Create(ctx context.Context, input *CaseInput) (*models.CaseView, error)
	Update(ctx context.Context, id int64, input *CaseInput) (*models.CaseView, error)
	Delete(ctx context.Context, id int64) error
	UpdateStatus(ctx context.Context, id int64, update StatusUpdate) (*models.CaseView, error)
	AddPromise(ctx context.Context, caseID int64, input *PromiseInput) (*models.Promise, error)
	ListActivities(ctx context.Context, caseID int64) ([]*models.Activity, error)
	AddActivity(ctx context.Context, caseID int64, input *ActivityInput) (*models.Activity, error)
	// DeleteActivity removes an activity; gestors may only remove their own.
	DeleteActivity(ctx context.Context, id int64) error
}

type caseService struct {
	cases      repositories.CaseRepository
	catalog    repositories.CatalogRepository
	users      repositories.UserRepository
	promises   repositories.PromiseRepository
	activities repositories.ActivityRepository
	cache      cache.Cache
	auditor    *audit.SecurityAuditor
	logger     *zap.Logger
	now        func() time.Time
}

// NewCaseService creates a CaseService.
func NewCaseService(
	cases repositories.CaseRepository,
	catalog repositories.CatalogRepository,
	users repositories.UserRepository,
	promises repositories.PromiseRepository,
	activities repositories.ActivityRepository,
	resultCache cache.Cache,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) CaseService {
	return &caseService{
		cases:      cases,
		catalog:    catalog,
		users:      users,
		promises:   promises,
		activities: activities,
		cache:      resultCache,
		auditor:    auditor,
		logger:     logger.Named("cases"),
		now:        time.Now,
	}
}

var _ CaseService = (*caseService)(nil)

// afterWrite sweeps cached dashboards and records the change.
func (s *caseService) afterWrite(ctx context.Context, change audit.RecordChangeDetails) {
	cache.InvalidateDashboards(ctx, s.cache, s.logger)
	s.auditor.LogRecordChange(ctx, change)
}

// authorizeCase checks the caller may act on the case.
func (s *caseService) authorizeCase(ctx context.Context, c *models.Case) error {
	claims, err := auth.RequireClaimsFromContext(ctx)
	if err != nil {
		return apperrors.ErrForbidden
	}
	if claims.IsAdmin() {
		return nil
	}
	if claims.IsGestor() {
		userID, err := claims.UserID()
		if err == nil && c.IsAssignedTo(userID) {
			return nil
		}
	}
	return apperrors.ErrForbidden
}

// loadAuthorized fetches the case and checks the caller may act on it.
func (s *caseService) loadAuthorized(ctx context.Context, id int64) (*models.Case, error) {
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCase(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *caseService) List(ctx context.Context, filter models.CaseListFilter) (*models.CasePage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = DefaultPerPage
	}
	if filter.PerPage > MaxPerPage {
		filter.PerPage = MaxPerPage
	}

	cases, total, err := s.cases.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}

	items := make([]*models.CaseView, 0, len(cases))
	for _, c := range cases {
		items = append(items, c.View())
	}
	pages := int((total + int64(filter.PerPage) - 1) / int64(filter.PerPage))

	return &models.CasePage{
		Items:   items,
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
		Pages:   pages,
	}, nil
}

func (s *caseService) Get(ctx context.Context, id int64) (*models.CaseView, error) {
	c, err := s.loadAuthorized(ctx, id)
	if err != nil {
		return nil, err
	}

	view := c.View()
	if view.Promises, err = s.promises.ListByCase(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to load promises: %w", err)
	}
	if view.Activities, err = s.activities.ListByCase(ctx, id, 0); err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}
	return view, nil
}

func (s *caseService) Create(ctx context.Context, input *CaseInput) (*models.CaseView, error) {
	c := &models.Case{}
	if err := s.apply(ctx, c, input); err != nil {
		return nil, err
	}

	if err := s.cases.Create(ctx, c); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, audit.RecordChangeDetails{Action: audit.ActionCaseCreated, CaseID: c.ID, DNI: c.PersonKey()})

	return s.reload(ctx, c.ID)
}

func (s *caseService) Update(ctx context.Context, id int64, input *CaseInput) (*models.CaseView, error) {
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, c, input); err != nil {
		return nil, err
	}

	if err := s.cases.Update(ctx, c); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, audit.RecordChangeDetails{Action: audit.ActionCaseUpdated, CaseID: c.ID, DNI: c.PersonKey()})

	return s.reload(ctx, c.ID)
}

func (s *caseService) Delete(ctx context.Context, id int64) error {
	if err := s.cases.Delete(ctx, id); err != nil {
		return err
	}
	s.afterWrite(ctx, audit.RecordChangeDetails{Action: audit.ActionCaseDeleted, CaseID: id})
	return nil
}

func (s *caseService) UpdateStatus(ctx context.Context, id int64, update StatusUpdate) (*models.CaseView, error) {
	if _, err := s.loadAuthorized(ctx, id); err != nil {
		return nil, err
	}

	var statusID int64
	switch {
	case update.StatusID != nil:
		status, err := s.catalog.GetStatusByID(ctx, *update.StatusID)
		if err != nil || !status.Activo {
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("failed to load status: %w", err)
			}
			return nil, apperrors.NewValidationError("status_id", "unknown or inactive status")
		}
		statusID = status.ID
	case strings.TrimSpace(update.Status) != "":
		status, err := s.catalog.GetActiveStatusByName(ctx, strings.TrimSpace(update.Status))
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NewValidationError("status", "unknown status %q", update.Status)
			}
			return nil, fmt.Errorf("failed to load status: %w", err)
		}
		statusID = status.ID
	default:
		return nil, apperrors.NewValidationError("status_id", "status_id or status is required")
	}

	if err := s.cases.UpdateStatus(ctx, id, statusID); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, audit.RecordChangeDetails{Action: audit.ActionStatusChanged, CaseID: id})

	return s.reload(ctx, id)
}

func (s *caseService) AddPromise(ctx context.Context, caseID int64, input *PromiseInput) (*models.Promise, error) {
	if _, err := s.loadAuthorized(ctx, caseID); err != nil {
		return nil, err
	}

	if !input.Amount.IsPositive() {
		return nil, apperrors.NewValidationError("amount", "must be greater than zero")
	}
	if input.PromiseDate == nil {
		return nil, apperrors.NewValidationError("promise_date", "is required")
	}
	status := input.Status
	if status == "" {
		status = models.PromisePending
	}
	if !models.IsValidPromiseStatus(status) {
		return nil, apperrors.NewValidationError("status", "must be one of pending, fulfilled, broken")
	}

	p := &models.Promise{
		CaseID:      caseID,
		Amount:      input.Amount,
		PromiseDate: *input.PromiseDate,
		Status:      status,
		Notes:       strings.TrimSpace(input.Notes),
	}
	if status == models.PromiseFulfilled {
		fulfilled := models.NewDate(s.now())
		if input.FulfilledDate != nil {
			fulfilled = *input.FulfilledDate
		}
		p.FulfilledDate = &fulfilled
	}

	if err := s.promises.Create(ctx, p); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, audit.RecordChangeDetails{Action: audit.ActionPromiseCreated, CaseID: caseID, RecordID: p.ID})
	return p, nil
}

func (s *caseService) ListActivities(ctx context.Context, caseID int64) ([]*models.Activity, error) {
	if _, err := s.loadAuthorized(ctx, caseID); err != nil {
		return nil, err
	}

	activities, err := s.activities.ListByCase(ctx, caseID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	if activities == nil {
		activities = []*models.Activity{}
	}
	return activities, nil
}

func (s *caseService) AddActivity(ctx context.Context, caseID int64, input *ActivityInput) (*models.Activity, error) {
	if _, err := s.loadAuthorized(ctx, caseID); err != nil {
		return nil, err
	}
	if !models.IsValidActivityType(input.Type) {
		return nil, apperrors.NewValidationError("type", "must be one of %s", strings.Join(models.ValidActivityTypes, ", "))
	}

	claims, err := auth.RequireClaimsFromContext(ctx)
	if err != nil {
		return nil, apperrors.ErrForbidden
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, apperrors.ErrForbidden
	}

	a := &models.Activity{
		CaseID:        caseID,
		Type:          input.Type,
		Notes:         strings.TrimSpace(input.Notes),
		CreatedByID:   userID,
		CreatedByName: claims.Username,
	}
	if err := s.activities.Create(ctx, a); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, audit.RecordChangeDetails{Action: audit.ActionActivityCreated, CaseID: caseID, RecordID: a.ID})
	return a, nil
}

func (s *caseService) DeleteActivity(ctx context.Context, id int64) error {
	a, err := s.activities.GetByID(ctx, id)
	if err != nil {
		return err
	}

	claims, err := auth.RequireClaimsFromContext(ctx)
	if err != nil {
		return apperrors.ErrForbidden
	}
	if !claims.IsAdmin() {
		userID, err := claims.UserID()
		if err != nil || !claims.IsGestor() || a.CreatedByID != userID {
			return apperrors.ErrForbidden
		}
	}

	if err := s.activities.Delete(ctx, id); err != nil {
		return err
	}
	s.afterWrite(ctx, audit.RecordChangeDetails{Action: audit.ActionActivityDeleted, CaseID: a.CaseID, RecordID: id})
	return nil
}

func (s *caseService) reload(ctx context.Context, id int64) (*models.CaseView, error) {
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload case: %w", err)
	}
	return c.View(), nil
}

// apply validates input and copies it onto c. A nil StatusID keeps the
// case's current status, or defaults new cases to "Sin Arreglo".
func (s *caseService) apply(ctx context.Context, c *models.Case, input *CaseInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return apperrors.NewValidationError("name", "is required")
	}
	lastname := strings.TrimSpace(input.Lastname)
	if lastname == "" {
		return apperrors.NewValidationError("lastname", "is required")
	}
	if input.Total == nil {
		return apperrors.NewValidationError("total", "is required")
	}
	if input.Total.IsNegative() {
		return apperrors.NewValidationError("total", "must not be negative")
	}
	if input.MontoInicial != nil && input.MontoInicial.IsNegative() {
		return apperrors.NewValidationError("monto_inicial", "must not be negative")
	}
	if input.CarteraID == nil {
		return apperrors.NewValidationError("cartera_id", "is required")
	}

	cartera, err := s.catalog.GetCarteraByID(ctx, *input.CarteraID)
	if err != nil || !cartera.Activo {
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("failed to load cartera: %w", err)
		}
		return apperrors.NewValidationError("cartera_id", "unknown or inactive cartera")
	}

	statusID := c.StatusID
	switch {
	case input.StatusID != nil:
		status, err := s.catalog.GetStatusByID(ctx, *input.StatusID)
		if err != nil || !status.Activo {
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("failed to load status: %w", err)
			}
			return apperrors.NewValidationError("status_id", "unknown or inactive status")
		}
		statusID = status.ID
	case c.ID == 0:
		status, err := s.catalog.GetActiveStatusByName(ctx, models.StatusNoArrangement)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NewValidationError("status_id", "is required")
			}
			return fmt.Errorf("failed to resolve default status: %w", err)
		}
		statusID = status.ID
	}

	if input.AssignedToID != nil {
		user, err := s.users.GetByID(ctx, *input.AssignedToID)
		if err != nil || user.Role != models.RoleGestor || !user.Active {
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("failed to load gestor: %w", err)
			}
			return apperrors.NewValidationError("assigned_to_id", "must be an active gestor")
		}
	}

	var dni *string
	if input.DNI != nil {
		if trimmed := strings.TrimSpace(input.DNI.String()); trimmed != "" {
			dni = &trimmed
		}
	}

	c.NroCliente = strings.TrimSpace(input.NroCliente.String())
	c.Name = name
	c.Lastname = lastname
	c.DNI = dni
	c.Telefono = strings.TrimSpace(input.Telefono.String())
	c.CalleNombre = strings.TrimSpace(input.CalleNombre)
	c.CalleNro = strings.TrimSpace(input.CalleNro.String())
	c.Localidad = strings.TrimSpace(input.Localidad)
	c.Provincia = strings.TrimSpace(input.Provincia)
	c.CP = strings.TrimSpace(input.CP.String())
	c.Total = *input.Total
	c.MontoInicial = input.MontoInicial
	c.FechaUltimoPago = input.FechaUltimoPago
	c.StatusID = statusID
	c.CarteraID = cartera.ID
	c.AssignedToID = input.AssignedToID
	c.Notes = strings.TrimSpace(input.Notes)
	return nil
}
