package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/repositories"
)

// CatalogService exposes the active case statuses and carteras.
type CatalogService interface {
	ListStatuses(ctx context.Context) ([]*models.CaseStatus, error)
	ListCarteras(ctx context.Context) ([]*models.Cartera, error)
}

type catalogService struct {
	catalog repositories.CatalogRepository
	logger  *zap.Logger
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(catalog repositories.CatalogRepository, logger *zap.Logger) CatalogService {
	return &catalogService{catalog: catalog, logger: logger}
}

var _ CatalogService = (*catalogService)(nil)

func (s *catalogService) ListStatuses(ctx context.Context) ([]*models.CaseStatus, error) {
	statuses, err := s.catalog.ListStatuses(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	if statuses == nil {
		statuses = []*models.CaseStatus{}
	}
	return statuses, nil
}

func (s *catalogService) ListCarteras(ctx context.Context) ([]*models.Cartera, error) {
	carteras, err := s.catalog.ListCarteras(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list carteras: %w", err)
	}
	if carteras == nil {
		carteras = []*models.Cartera{}
	}
	return carteras, nil
}
