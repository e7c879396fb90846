package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/audit"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/auth"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/services"
	sqlcheck "github.com/gestion-cobranzas/cobranzas-engine/pkg/sql"
)

// DeleteResponse is returned by the delete endpoints.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// CaseHandler serves the case book, its promises and activities, and the
// per-person grouping.
type CaseHandler struct {
	cases     services.CaseService
	analytics services.AnalyticsService
	auditor   *audit.SecurityAuditor
	logger    *zap.Logger
}

// NewCaseHandler creates a new case handler.
func NewCaseHandler(
	cases services.CaseService,
	analytics services.AnalyticsService,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) *CaseHandler {
	return &CaseHandler{
		cases:     cases,
		analytics: analytics,
		auditor:   auditor,
		logger:    logger,
	}
}

// RegisterRoutes registers the case routes on the given mux.
// Per-case authorization for gestors is enforced by the CaseService.
func (h *CaseHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	base := "/api/cases"

	mux.HandleFunc("GET "+base+"/agrupados", staff(authMiddleware, scope, h.Grouped))
	mux.HandleFunc("GET "+base+"/gestor", authMiddleware.RequireRole(models.RoleGestor)(scope(h.ListOwn)))

	mux.HandleFunc("GET "+base, adminOnly(authMiddleware, scope, h.List))
	mux.HandleFunc("POST "+base, adminOnly(authMiddleware, scope, h.Create))
	mux.HandleFunc("GET "+base+"/{id}", staff(authMiddleware, scope, h.Get))
	mux.HandleFunc("PUT "+base+"/{id}", adminOnly(authMiddleware, scope, h.Update))
	mux.HandleFunc("DELETE "+base+"/{id}", adminOnly(authMiddleware, scope, h.Delete))

	mux.HandleFunc("PUT "+base+"/{id}/status", staff(authMiddleware, scope, h.UpdateStatus))
	mux.HandleFunc("POST "+base+"/{id}/promises", staff(authMiddleware, scope, h.AddPromise))
	mux.HandleFunc("GET "+base+"/{id}/activities", staff(authMiddleware, scope, h.ListActivities))
	mux.HandleFunc("POST "+base+"/{id}/activities", staff(authMiddleware, scope, h.AddActivity))
	mux.HandleFunc("DELETE /api/activities/{id}", staff(authMiddleware, scope, h.DeleteActivity))
}

// screenQuery reports query values that look like SQL injection to the audit log.
// Queries are parameterized, so flagged requests still proceed.
func (h *CaseHandler) screenQuery(r *http.Request) {
	params := make(map[string]string)
	for name, values := range r.URL.Query() {
		params[name] = strings.Join(values, " ")
	}

	for _, result := range sqlcheck.CheckAllParameters(params) {
		h.auditor.LogInjectionAttempt(r.Context(), audit.SQLInjectionDetails{
			ParamName:   result.ParamName,
			ParamValue:  result.ParamValue,
			Fingerprint: result.Fingerprint,
			Endpoint:    r.Method + " " + r.URL.Path,
		}, r.RemoteAddr)
	}
}

// parseListFilter reads the listing query parameters.
func parseListFilter(r *http.Request) (models.CaseListFilter, error) {
	var filter models.CaseListFilter
	var err error

	if filter.Page, err = queryInt(r, "page", 1); err != nil {
		return filter, err
	}
	if filter.PerPage, err = queryInt(r, "per_page", services.DefaultPerPage); err != nil {
		return filter, err
	}
	if filter.StatusID, err = queryID(r, "status_id"); err != nil {
		return filter, err
	}
	if filter.CarteraID, err = queryID(r, "cartera_id"); err != nil {
		return filter, err
	}
	if filter.GestorID, err = queryID(r, "gestor_id"); err != nil {
		return filter, err
	}
	filter.Search = strings.TrimSpace(r.URL.Query().Get("search"))
	return filter, nil
}

// List handles GET /api/cases?page&per_page&status_id&cartera_id&gestor_id&search
func (h *CaseHandler) List(w http.ResponseWriter, r *http.Request) {
	h.screenQuery(r)

	filter, err := parseListFilter(r)
	if err != nil {
		writeServiceError(w, h.logger, "list_cases", err)
		return
	}

	page, err := h.cases.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "list_cases", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, page)
}

// ListOwn handles GET /api/cases/gestor. The gestor filter is always the caller.
func (h *CaseHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	h.screenQuery(r)

	filter, err := parseListFilter(r)
	if err != nil {
		writeServiceError(w, h.logger, "list_cases", err)
		return
	}

	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list_cases", err)
		return
	}
	filter.GestorID = &userID

	page, err := h.cases.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "list_cases", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, page)
}

// Grouped handles GET /api/cases/agrupados?cartera_id&gestor_id&include_relations
// Gestors always see their own groups, whatever gestor_id says.
func (h *CaseHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	carteraID, err := queryID(r, "cartera_id")
	if err != nil {
		writeServiceError(w, h.logger, "grouped_cases", err)
		return
	}
	gestorID, err := queryID(r, "gestor_id")
	if err != nil {
		writeServiceError(w, h.logger, "grouped_cases", err)
		return
	}
	includeRelations, err := queryBool(r, "include_relations")
	if err != nil {
		writeServiceError(w, h.logger, "grouped_cases", err)
		return
	}

	claims, err := auth.RequireClaimsFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "grouped_cases", err)
		return
	}
	if !claims.IsAdmin() {
		userID, err := claims.UserID()
		if err != nil {
			writeServiceError(w, h.logger, "grouped_cases", err)
			return
		}
		gestorID = &userID
	}

	groups, err := h.analytics.GroupedByPerson(r.Context(), carteraID, gestorID, includeRelations)
	if err != nil {
		writeServiceError(w, h.logger, "grouped_cases", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, groups)
}

// Get handles GET /api/cases/{id}
func (h *CaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	view, err := h.cases.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "get_case", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, view)
}

// Create handles POST /api/cases
func (h *CaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CaseInput
	if !decodeJSON(w, r, &input, h.logger) {
		return
	}

	view, err := h.cases.Create(r.Context(), &input)
	if err != nil {
		writeServiceError(w, h.logger, "create_case", err)
		return
	}
	writeResponse(w, h.logger, http.StatusCreated, view)
}

// Update handles PUT /api/cases/{id}
func (h *CaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var input services.CaseInput
	if !decodeJSON(w, r, &input, h.logger) {
		return
	}

	view, err := h.cases.Update(r.Context(), id, &input)
	if err != nil {
		writeServiceError(w, h.logger, "update_case", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, view)
}

// Delete handles DELETE /api/cases/{id}
func (h *CaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	if err := h.cases.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "delete_case", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, DeleteResponse{Success: true})
}

// UpdateStatus handles PUT /api/cases/{id}/status
func (h *CaseHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var update services.StatusUpdate
	if !decodeJSON(w, r, &update, h.logger) {
		return
	}

	view, err := h.cases.UpdateStatus(r.Context(), id, update)
	if err != nil {
		writeServiceError(w, h.logger, "update_status", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, view)
}

// AddPromise handles POST /api/cases/{id}/promises
func (h *CaseHandler) AddPromise(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var input services.PromiseInput
	if !decodeJSON(w, r, &input, h.logger) {
		return
	}

	promise, err := h.cases.AddPromise(r.Context(), id, &input)
	if err != nil {
		writeServiceError(w, h.logger, "create_promise", err)
		return
	}
	writeResponse(w, h.logger, http.StatusCreated, promise)
}

// ListActivities handles GET /api/cases/{id}/activities
func (h *CaseHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	activities, err := h.cases.ListActivities(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "list_activities", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, activities)
}

// AddActivity handles POST /api/cases/{id}/activities
func (h *CaseHandler) AddActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var input services.ActivityInput
	if !decodeJSON(w, r, &input, h.logger) {
		return
	}

	activity, err := h.cases.AddActivity(r.Context(), id, &input)
	if err != nil {
		writeServiceError(w, h.logger, "create_activity", err)
		return
	}
	writeResponse(w, h.logger, http.StatusCreated, activity)
}

// DeleteActivity handles DELETE /api/activities/{id}
func (h *CaseHandler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	if err := h.cases.DeleteActivity(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "delete_activity", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, DeleteResponse{Success: true})
}
