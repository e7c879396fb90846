package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/audit"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/auth"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/config"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/services"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/testhelpers"
)

// ============================================================================
// Mock Implementations
// ============================================================================

type mockAnalyticsService struct {
	kpis       *models.KPIs
	series     *models.PerformanceSeries
	ranking    []models.GestorRank
	groups     []*models.PersonGroup
	multiDebt  []models.MultiDebtClient
	comparison *models.PeriodComparison
	err        error

	kpiFilter        models.DashboardFilter
	seriesStart      *time.Time
	seriesEnd        *time.Time
	seriesCartera    *int64
	rankingLimit     int
	groupedCartera   *int64
	groupedGestor    *int64
	groupedRelations bool
	called           bool
}

func (m *mockAnalyticsService) KPIs(ctx context.Context, filter models.DashboardFilter) (*models.KPIs, error) {
	m.called = true
	m.kpiFilter = filter
	return m.kpis, m.err
}

func (m *mockAnalyticsService) PerformanceSeries(ctx context.Context, start, end *time.Time, carteraID *int64) (*models.PerformanceSeries, error) {
	m.called = true
	m.seriesStart, m.seriesEnd, m.seriesCartera = start, end, carteraID
	return m.series, m.err
}

func (m *mockAnalyticsService) CarteraDistribution(ctx context.Context) ([]models.CarteraSlice, error) {
	m.called = true
	return []models.CarteraSlice{}, m.err
}

func (m *mockAnalyticsService) GestorRanking(ctx context.Context, limit int) ([]models.GestorRank, error) {
	m.called = true
	m.rankingLimit = limit
	return m.ranking, m.err
}

func (m *mockAnalyticsService) StatusDistribution(ctx context.Context) ([]models.StatusCount, error) {
	m.called = true
	return []models.StatusCount{}, m.err
}

func (m *mockAnalyticsService) PeriodComparison(ctx context.Context) (*models.PeriodComparison, error) {
	m.called = true
	return m.comparison, m.err
}

func (m *mockAnalyticsService) MultiDebtClients(ctx context.Context, carteraID, gestorID *int64) ([]models.MultiDebtClient, error) {
	m.called = true
	return m.multiDebt, m.err
}

func (m *mockAnalyticsService) GroupedByPerson(ctx context.Context, carteraID, gestorID *int64, includeRelations bool) ([]*models.PersonGroup, error) {
	m.called = true
	m.groupedCartera, m.groupedGestor, m.groupedRelations = carteraID, gestorID, includeRelations
	return m.groups, m.err
}

type mockCaseService struct {
	view     *models.CaseView
	page     *models.CasePage
	promise  *models.Promise
	activity *models.Activity
	err      error

	listFilter models.CaseListFilter
	input      *services.CaseInput
	status     services.StatusUpdate
	id         int64
}

func (m *mockCaseService) List(ctx context.Context, filter models.CaseListFilter) (*models.CasePage, error) {
	m.listFilter = filter
	return m.page, m.err
}

func (m *mockCaseService) Get(ctx context.Context, id int64) (*models.CaseView, error) {
	m.id = id
	return m.view, m.err
}

func (m *mockCaseService) Create(ctx context.Context, input *services.CaseInput) (*models.CaseView, error) {
	m.input = input
	return m.view, m.err
}

func (m *mockCaseService) Update(ctx context.Context, id int64, input *services.CaseInput) (*models.CaseView, error) {
	m.id, m.input = id, input
	return m.view, m.err
}

func (m *mockCaseService) Delete(ctx context.Context, id int64) error {
	m.id = id
	return m.err
}

func (m *mockCaseService) UpdateStatus(ctx context.Context, id int64, update services.StatusUpdate) (*models.CaseView, error) {
	m.id, m.status = id, update
	return m.view, m.err
}

func (m *mockCaseService) AddPromise(ctx context.Context, caseID int64, input *services.PromiseInput) (*models.Promise, error) {
	m.id = caseID
	return m.promise, m.err
}

func (m *mockCaseService) ListActivities(ctx context.Context, caseID int64) ([]*models.Activity, error) {
	m.id = caseID
	return []*models.Activity{}, m.err
}

func (m *mockCaseService) AddActivity(ctx context.Context, caseID int64, input *services.ActivityInput) (*models.Activity, error) {
	m.id = caseID
	return m.activity, m.err
}

func (m *mockCaseService) DeleteActivity(ctx context.Context, id int64) error {
	m.id = id
	return m.err
}

type mockSessionService struct {
	result *services.LoginResult
	user   *models.User
	err    error

	username string
	clientIP string
}

func (m *mockSessionService) Login(ctx context.Context, username, password, clientIP string) (*services.LoginResult, error) {
	m.username, m.clientIP = username, clientIP
	return m.result, m.err
}

func (m *mockSessionService) CurrentUser(ctx context.Context) (*models.User, error) {
	return m.user, m.err
}

type mockCatalogService struct {
	statuses []*models.CaseStatus
	carteras []*models.Cartera
	err      error
}

func (m *mockCatalogService) ListStatuses(ctx context.Context) ([]*models.CaseStatus, error) {
	return m.statuses, m.err
}

func (m *mockCatalogService) ListCarteras(ctx context.Context) ([]*models.Cartera, error) {
	return m.carteras, m.err
}

var (
	_ services.AnalyticsService = (*mockAnalyticsService)(nil)
	_ services.CaseService      = (*mockCaseService)(nil)
	_ services.SessionService   = (*mockSessionService)(nil)
	_ services.CatalogService   = (*mockCatalogService)(nil)
)

// ============================================================================
// Router Helpers
// ============================================================================

func passThroughScope(next http.HandlerFunc) http.HandlerFunc { return next }

func testAuthMiddleware() *auth.Middleware {
	tokens := auth.NewTokenManager(testhelpers.TestJWTSecret, time.Hour)
	return auth.NewMiddleware(auth.NewAuthService(tokens, zap.NewNop()), zap.NewNop())
}

type testRouter struct {
	mux       *http.ServeMux
	analytics *mockAnalyticsService
	cases     *mockCaseService
	sessions  *mockSessionService
	catalog   *mockCatalogService
}

func newTestRouter(t *testing.T) *testRouter {
	t.Helper()

	tr := &testRouter{
		mux:       http.NewServeMux(),
		analytics: &mockAnalyticsService{},
		cases:     &mockCaseService{},
		sessions:  &mockSessionService{},
		catalog:   &mockCatalogService{},
	}
	authMiddleware := testAuthMiddleware()
	logger := zap.NewNop()
	cfg := &config.Config{Version: "test", Env: "test"}

	NewAuthHandler(tr.sessions, cfg, logger).RegisterRoutes(tr.mux, authMiddleware, passThroughScope)
	NewDashboardHandler(tr.analytics, logger).RegisterRoutes(tr.mux, authMiddleware, passThroughScope)
	NewCaseHandler(tr.cases, tr.analytics, audit.NewSecurityAuditor(logger), logger).RegisterRoutes(tr.mux, authMiddleware, passThroughScope)
	NewCatalogHandler(tr.catalog, logger).RegisterRoutes(tr.mux, authMiddleware, passThroughScope)
	return tr
}

// do sends a request as the given role; an empty role sends no token.
func (tr *testRouter) do(method, target, role, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	switch role {
	case models.RoleAdmin:
		req.Header.Set("Authorization", testhelpers.GenerateTestJWTWithBearer(1, "admin", models.RoleAdmin))
	case models.RoleGestor:
		req.Header.Set("Authorization", testhelpers.GenerateTestJWTWithBearer(5, "gabi", models.RoleGestor))
	case models.RoleUser:
		req.Header.Set("Authorization", testhelpers.GenerateTestJWTWithBearer(8, "viewer", models.RoleUser))
	}

	rec := httptest.NewRecorder()
	tr.mux.ServeHTTP(rec, req)
	return rec
}
