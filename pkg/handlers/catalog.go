package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/auth"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/services"
)

// CatalogHandler lists the active case statuses and carteras.
type CatalogHandler struct {
	catalog services.CatalogService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalog services.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// RegisterRoutes registers the catalog routes; any authenticated user may read them.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/case-statuses", authMiddleware.RequireAuth(scope(h.ListStatuses)))
	mux.HandleFunc("GET /api/carteras", authMiddleware.RequireAuth(scope(h.ListCarteras)))
}

// ListStatuses handles GET /api/case-statuses
func (h *CatalogHandler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.catalog.ListStatuses(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list_statuses", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, statuses)
}

// ListCarteras handles GET /api/carteras
func (h *CatalogHandler) ListCarteras(w http.ResponseWriter, r *http.Request) {
	carteras, err := h.catalog.ListCarteras(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list_carteras", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, carteras)
}
