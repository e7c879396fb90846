package services

import (
	"context"
	"sort"
	"time"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/apperrors"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/repositories"
)

// mockCatalogRepository serves an in-memory catalog.
type mockCatalogRepository struct {
	statuses []*models.CaseStatus
	carteras []*models.Cartera
	err      error
}

func newMockCatalog() *mockCatalogRepository {
	return &mockCatalogRepository{
		statuses: []*models.CaseStatus{
			{ID: 1, Nombre: models.StatusNoArrangement, Activo: true},
			{ID: 2, Nombre: models.StatusArranged, Activo: true},
			{ID: 3, Nombre: "Incobrable", Activo: false},
		},
		carteras: []*models.Cartera{
			{ID: 10, Nombre: "Alpha", Activo: true},
			{ID: 20, Nombre: "Beta", Activo: true},
			{ID: 30, Nombre: "Cerrada", Activo: false},
		},
	}
}

func (m *mockCatalogRepository) GetActiveStatusByName(ctx context.Context, nombre string) (*models.CaseStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, s := range m.statuses {
		if s.Nombre == nombre && s.Activo {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockCatalogRepository) GetStatusByID(ctx context.Context, id int64) (*models.CaseStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, s := range m.statuses {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockCatalogRepository) ListStatuses(ctx context.Context, activeOnly bool) ([]*models.CaseStatus, error) {
	var out []*models.CaseStatus
	for _, s := range m.statuses {
		if s.Activo || !activeOnly {
			out = append(out, s)
		}
	}
	return out, m.err
}

func (m *mockCatalogRepository) GetCarteraByID(ctx context.Context, id int64) (*models.Cartera, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, c := range m.carteras {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockCatalogRepository) ListCarteras(ctx context.Context, activeOnly bool) ([]*models.Cartera, error) {
	var out []*models.Cartera
	for _, c := range m.carteras {
		if c.Activo || !activeOnly {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, m.err
}

func (m *mockCatalogRepository) EnsureStatus(ctx context.Context, nombre string, activo bool) (bool, error) {
	return false, nil
}

func (m *mockCatalogRepository) EnsureCartera(ctx context.Context, nombre string, activo bool) (bool, error) {
	return false, nil
}

// mockAnalyticsRepository records the filters it receives and answers from function fields.
type mockAnalyticsRepository struct {
	sumCasesFn   func(repositories.CaseFilter) *repositories.CaseTotals
	caseIDs      []int64
	promiseStats repositories.PromiseStats
	activities   int64
	buckets      []repositories.BucketTotal
	carteras     []repositories.CarteraTotal
	gestors      []repositories.GestorCaseStats
	gestorProms  map[int64]repositories.PromiseStats
	statusCounts []models.StatusCount
	multiDebt    []repositories.MultiDebtRow
	err          error

	sumCalls         []repositories.CaseFilter
	caseIDCalls      int
	promiseFilters   []repositories.PromiseFilter
	activityFilters  []repositories.ActivityFilter
	bucketCarteraIDs []int64
	bucketStart      time.Time
	bucketEnd        time.Time
	gestorStatusID   *int64
	calls            int
}

func (m *mockAnalyticsRepository) SumCases(ctx context.Context, filter repositories.CaseFilter) (*repositories.CaseTotals, error) {
	m.calls++
	m.sumCalls = append(m.sumCalls, filter)
	if m.err != nil {
		return nil, m.err
	}
	if m.sumCasesFn == nil {
		return &repositories.CaseTotals{}, nil
	}
	return m.sumCasesFn(filter), nil
}

func (m *mockAnalyticsRepository) CaseIDs(ctx context.Context, filter repositories.CaseFilter) ([]int64, error) {
	m.calls++
	m.caseIDCalls++
	return m.caseIDs, m.err
}

func (m *mockAnalyticsRepository) PromiseStats(ctx context.Context, filter repositories.PromiseFilter) (*repositories.PromiseStats, error) {
	m.calls++
	m.promiseFilters = append(m.promiseFilters, filter)
	if filter.Cases.Empty() {
		return &repositories.PromiseStats{}, nil
	}
	stats := m.promiseStats
	return &stats, m.err
}

func (m *mockAnalyticsRepository) CountActivities(ctx context.Context, filter repositories.ActivityFilter) (int64, error) {
	m.calls++
	m.activityFilters = append(m.activityFilters, filter)
	if filter.Cases.Empty() {
		return 0, nil
	}
	return m.activities, m.err
}

func (m *mockAnalyticsRepository) RecoveredByBucket(ctx context.Context, statusID int64, carteraIDs []int64, start, end time.Time, width time.Duration) ([]repositories.BucketTotal, error) {
	m.calls++
	m.bucketCarteraIDs = carteraIDs
	m.bucketStart, m.bucketEnd = start, end
	return m.buckets, m.err
}

func (m *mockAnalyticsRepository) CarteraDistribution(ctx context.Context) ([]repositories.CarteraTotal, error) {
	m.calls++
	return m.carteras, m.err
}

func (m *mockAnalyticsRepository) GestorCaseStats(ctx context.Context, arrangedStatusID *int64) ([]repositories.GestorCaseStats, error) {
	m.calls++
	m.gestorStatusID = arrangedStatusID
	return m.gestors, m.err
}

func (m *mockAnalyticsRepository) PromiseStatsByGestor(ctx context.Context, gestorIDs []int64) (map[int64]repositories.PromiseStats, error) {
	m.calls++
	if m.gestorProms == nil {
		return map[int64]repositories.PromiseStats{}, m.err
	}
	return m.gestorProms, m.err
}

func (m *mockAnalyticsRepository) StatusDistribution(ctx context.Context) ([]models.StatusCount, error) {
	m.calls++
	return m.statusCounts, m.err
}

func (m *mockAnalyticsRepository) MultiDebtClients(ctx context.Context, carteraID, gestorID *int64) ([]repositories.MultiDebtRow, error) {
	m.calls++
	return m.multiDebt, m.err
}

// mockCaseRepository keeps cases in a map keyed by id.
type mockCaseRepository struct {
	cases     map[int64]*models.Case
	nextID    int64
	listCalls []models.CaseListFilter
	createErr error
	updated   []*models.Case
	statusSet map[int64]int64
}

func newMockCases(cases ...*models.Case) *mockCaseRepository {
	m := &mockCaseRepository{cases: map[int64]*models.Case{}, nextID: 100, statusSet: map[int64]int64{}}
	for _, c := range cases {
		m.cases[c.ID] = c
	}
	return m
}

func (m *mockCaseRepository) Create(ctx context.Context, c *models.Case) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	copied := *c
	m.cases[c.ID] = &copied
	return nil
}

func (m *mockCaseRepository) Update(ctx context.Context, c *models.Case) error {
	if _, ok := m.cases[c.ID]; !ok {
		return apperrors.ErrNotFound
	}
	m.updated = append(m.updated, c)
	copied := *c
	m.cases[c.ID] = &copied
	return nil
}

func (m *mockCaseRepository) UpdateStatus(ctx context.Context, id, statusID int64) error {
	c, ok := m.cases[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.StatusID = statusID
	m.statusSet[id] = statusID
	return nil
}

func (m *mockCaseRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.cases[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.cases, id)
	return nil
}

func (m *mockCaseRepository) GetByID(ctx context.Context, id int64) (*models.Case, error) {
	c, ok := m.cases[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *mockCaseRepository) List(ctx context.Context, filter models.CaseListFilter) ([]*models.Case, int64, error) {
	m.listCalls = append(m.listCalls, filter)
	all, _ := m.ListAll(ctx)
	return all, int64(len(all)), nil
}

func (m *mockCaseRepository) ListAll(ctx context.Context) ([]*models.Case, error) {
	out := make([]*models.Case, 0, len(m.cases))
	for _, c := range m.cases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type mockUserRepository struct {
	users map[int64]*models.User
}

func newMockUsers(users ...*models.User) *mockUserRepository {
	m := &mockUserRepository{users: map[int64]*models.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = int64(len(m.users) + 1)
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepository) ListByRole(ctx context.Context, role string) ([]*models.User, error) {
	var out []*models.User
	for _, u := range m.users {
		if u.Role == role && u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	users, _ := m.ListByRole(ctx, role)
	return int64(len(users)), nil
}

type mockPromiseRepository struct {
	byCase  map[int64][]*models.Promise
	created []*models.Promise
	idCalls [][]int64
}

func (m *mockPromiseRepository) Create(ctx context.Context, p *models.Promise) error {
	p.ID = int64(len(m.created) + 1)
	m.created = append(m.created, p)
	return nil
}

func (m *mockPromiseRepository) ListByCase(ctx context.Context, caseID int64) ([]*models.Promise, error) {
	return m.byCase[caseID], nil
}

func (m *mockPromiseRepository) ListByCaseIDs(ctx context.Context, caseIDs []int64) (map[int64][]*models.Promise, error) {
	m.idCalls = append(m.idCalls, caseIDs)
	out := map[int64][]*models.Promise{}
	for _, id := range caseIDs {
		if ps, ok := m.byCase[id]; ok {
			out[id] = ps
		}
	}
	return out, nil
}

type mockActivityRepository struct {
	activities map[int64]*models.Activity
	created    []*models.Activity
	deleted    []int64
	perCase    int
}

func (m *mockActivityRepository) Create(ctx context.Context, a *models.Activity) error {
	a.ID = int64(len(m.created) + 1)
	m.created = append(m.created, a)
	return nil
}

func (m *mockActivityRepository) GetByID(ctx context.Context, id int64) (*models.Activity, error) {
	a, ok := m.activities[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (m *mockActivityRepository) Delete(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockActivityRepository) ListByCase(ctx context.Context, caseID int64, limit int) ([]*models.Activity, error) {
	var out []*models.Activity
	for _, a := range m.activities {
		if a.CaseID == caseID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockActivityRepository) ListRecentByCaseIDs(ctx context.Context, caseIDs []int64, perCase int) (map[int64][]*models.Activity, error) {
	m.perCase = perCase
	out := map[int64][]*models.Activity{}
	for _, id := range caseIDs {
		acts, _ := m.ListByCase(ctx, id, perCase)
		if len(acts) > 0 {
			out[id] = acts
		}
	}
	return out, nil
}

var (
	_ repositories.CatalogRepository   = (*mockCatalogRepository)(nil)
	_ repositories.AnalyticsRepository = (*mockAnalyticsRepository)(nil)
	_ repositories.CaseRepository      = (*mockCaseRepository)(nil)
	_ repositories.UserRepository      = (*mockUserRepository)(nil)
	_ repositories.PromiseRepository   = (*mockPromiseRepository)(nil)
	_ repositories.ActivityRepository  = (*mockActivityRepository)(nil)
)
