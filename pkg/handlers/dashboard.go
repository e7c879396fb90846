package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/auth"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/services"
)

// DashboardHandler serves the administrator dashboard aggregates.
type DashboardHandler struct {
	analytics services.AnalyticsService
	logger    *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(analytics services.AnalyticsService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		analytics: analytics,
		logger:    logger,
	}
}

// RegisterRoutes registers the dashboard routes on the given mux. All of them are admin only.
func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	base := "/api/dashboard"

	mux.HandleFunc("GET "+base+"/kpis", adminOnly(authMiddleware, scope, h.KPIs))
	mux.HandleFunc("GET "+base+"/charts/performance", adminOnly(authMiddleware, scope, h.Performance))
	mux.HandleFunc("GET "+base+"/charts/cartera", adminOnly(authMiddleware, scope, h.CarteraDistribution))
	mux.HandleFunc("GET "+base+"/gestores/ranking", adminOnly(authMiddleware, scope, h.GestorRanking))
	mux.HandleFunc("GET "+base+"/stats/comparison", adminOnly(authMiddleware, scope, h.PeriodComparison))
	mux.HandleFunc("GET "+base+"/cases/status", adminOnly(authMiddleware, scope, h.StatusDistribution))
	mux.HandleFunc("GET "+base+"/clientes/multiples-deudas", adminOnly(authMiddleware, scope, h.MultiDebtClients))
}

// KPIs handles GET /api/dashboard/kpis?start_date&end_date&cartera_id&gestor_id
func (h *DashboardHandler) KPIs(w http.ResponseWriter, r *http.Request) {
	var filter models.DashboardFilter
	var err error

	if filter.Start, err = queryDate(r, "start_date", false); err != nil {
		writeServiceError(w, h.logger, "kpis", err)
		return
	}
	if filter.End, err = queryDate(r, "end_date", true); err != nil {
		writeServiceError(w, h.logger, "kpis", err)
		return
	}
	if filter.CarteraID, err = queryID(r, "cartera_id"); err != nil {
		writeServiceError(w, h.logger, "kpis", err)
		return
	}
	if filter.GestorID, err = queryID(r, "gestor_id"); err != nil {
		writeServiceError(w, h.logger, "kpis", err)
		return
	}

	kpis, err := h.analytics.KPIs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "kpis", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, kpis)
}

// Performance handles GET /api/dashboard/charts/performance?start_date&end_date&cartera_id
func (h *DashboardHandler) Performance(w http.ResponseWriter, r *http.Request) {
	start, err := queryDate(r, "start_date", false)
	if err != nil {
		writeServiceError(w, h.logger, "performance", err)
		return
	}
	// Buckets are half-open, so a date-only end stays at midnight.
	end, err := queryDate(r, "end_date", false)
	if err != nil {
		writeServiceError(w, h.logger, "performance", err)
		return
	}
	carteraID, err := queryID(r, "cartera_id")
	if err != nil {
		writeServiceError(w, h.logger, "performance", err)
		return
	}

	series, err := h.analytics.PerformanceSeries(r.Context(), start, end, carteraID)
	if err != nil {
		writeServiceError(w, h.logger, "performance", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, series)
}

// CarteraDistribution handles GET /api/dashboard/charts/cartera
func (h *DashboardHandler) CarteraDistribution(w http.ResponseWriter, r *http.Request) {
	slices, err := h.analytics.CarteraDistribution(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "cartera_distribution", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, slices)
}

// GestorRanking handles GET /api/dashboard/gestores/ranking?limit
func (h *DashboardHandler) GestorRanking(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", services.DefaultRankingLimit)
	if err != nil {
		writeServiceError(w, h.logger, "gestor_ranking", err)
		return
	}

	ranking, err := h.analytics.GestorRanking(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, "gestor_ranking", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, ranking)
}

// PeriodComparison handles GET /api/dashboard/stats/comparison
func (h *DashboardHandler) PeriodComparison(w http.ResponseWriter, r *http.Request) {
	comparison, err := h.analytics.PeriodComparison(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "period_comparison", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, comparison)
}

// StatusDistribution handles GET /api/dashboard/cases/status
func (h *DashboardHandler) StatusDistribution(w http.ResponseWriter, r *http.Request) {
	counts, err := h.analytics.StatusDistribution(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "status_distribution", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, counts)
}

// MultiDebtClients handles GET /api/dashboard/clientes/multiples-deudas?cartera_id&gestor_id
func (h *DashboardHandler) MultiDebtClients(w http.ResponseWriter, r *http.Request) {
	carteraID, err := queryID(r, "cartera_id")
	if err != nil {
		writeServiceError(w, h.logger, "multiple_debts", err)
		return
	}
	gestorID, err := queryID(r, "gestor_id")
	if err != nil {
		writeServiceError(w, h.logger, "multiple_debts", err)
		return
	}

	clients, err := h.analytics.MultiDebtClients(r.Context(), carteraID, gestorID)
	if err != nil {
		writeServiceError(w, h.logger, "multiple_debts", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, clients)
}
