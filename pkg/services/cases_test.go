package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/apperrors"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/audit"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/auth"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/cache"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/jsonutil"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
)

const (
	adminID  = int64(1)
	gestorID = int64(5)
)

type caseFixture struct {
	svc        *caseService
	cases      *mockCaseRepository
	promises   *mockPromiseRepository
	activities *mockActivityRepository
	cache      cache.Cache
	audit      *observer.ObservedLogs
}

func newCaseFixture(t *testing.T, cases ...*models.Case) *caseFixture {
	t.Helper()

	core, logs := observer.New(zap.InfoLevel)
	f := &caseFixture{
		cases:      newMockCases(cases...),
		promises:   &mockPromiseRepository{},
		activities: &mockActivityRepository{activities: map[int64]*models.Activity{}},
		cache:      cache.NewMemoryCache(),
		audit:      logs,
	}
	users := newMockUsers(
		&models.User{ID: adminID, Username: "admin", Role: models.RoleAdmin, Active: true},
		&models.User{ID: gestorID, Username: "gabi", Role: models.RoleGestor, Active: true},
		&models.User{ID: 6, Username: "old", Role: models.RoleGestor, Active: false},
	)
	f.svc = NewCaseService(f.cases, newMockCatalog(), users, f.promises, f.activities, f.cache,
		audit.NewSecurityAuditor(zap.New(core)), zap.NewNop()).(*caseService)
	f.svc.now = func() time.Time { return time.Date(2024, 4, 2, 15, 0, 0, 0, time.UTC) }
	return f
}

// seedCache stores one dashboard entry so tests can observe invalidation.
func (f *caseFixture) seedCache(t *testing.T) string {
	t.Helper()
	key := cache.NewKey(cache.FamilyKPIs).String()
	require.NoError(t, f.cache.Set(context.Background(), key, []byte(`{}`), time.Minute))
	return key
}

func (f *caseFixture) assertInvalidated(t *testing.T, key string) {
	t.Helper()
	_, hit, err := f.cache.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, hit, "writes must sweep cached dashboards")
}

func (f *caseFixture) assertNotInvalidated(t *testing.T, key string) {
	t.Helper()
	_, hit, err := f.cache.Get(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, hit, "failed writes must leave the cache alone")
}

func withUser(id int64, username, role string) context.Context {
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(id, 10)},
		Username:         username,
		Role:             role,
	}
	return auth.WithClaims(context.Background(), claims)
}

func adminCtx() context.Context  { return withUser(adminID, "admin", models.RoleAdmin) }
func gestorCtx() context.Context { return withUser(gestorID, "gabi", models.RoleGestor) }

func flexPtr(s string) *jsonutil.FlexibleString {
	f := jsonutil.FlexibleString(s)
	return &f
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func validInput() *CaseInput {
	return &CaseInput{
		Name:      " Ana ",
		Lastname:  "Pérez",
		DNI:       flexPtr(" 30111222 "),
		Total:     decPtr("1500.50"),
		CarteraID: int64Ptr(10),
	}
}

func assignedCase(id int64) *models.Case {
	g := gestorID
	return &models.Case{ID: id, Name: "Ana", Lastname: "Pérez", CarteraID: 10, StatusID: 1, AssignedToID: &g, Total: dec("100")}
}

func TestCaseService_Create(t *testing.T) {
	f := newCaseFixture(t)
	key := f.seedCache(t)

	view, err := f.svc.Create(adminCtx(), validInput())
	require.NoError(t, err)

	assert.Equal(t, "Ana", view.Name)
	assert.Equal(t, "30111222", *view.DNI)
	assert.Equal(t, 1500.5, view.Total)
	assert.Equal(t, int64(1), view.StatusID, "new cases default to Sin Arreglo")
	f.assertInvalidated(t, key)
	changes := f.audit.FilterMessage("Record changed").All()
	require.Len(t, changes, 1)
	assert.Equal(t, "*****222", changes[0].ContextMap()["dni"])
	assert.NotContains(t, changes[0].ContextMap()["event_json"], "30111222")
}

func TestCaseService_Create_BlankDNIStoredAsNull(t *testing.T) {
	f := newCaseFixture(t)
	input := validInput()
	input.DNI = flexPtr("  ")

	view, err := f.svc.Create(adminCtx(), input)
	require.NoError(t, err)
	assert.Nil(t, view.DNI)
}

func TestCaseService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CaseInput)
		field  string
	}{
		{name: "missing name", mutate: func(in *CaseInput) { in.Name = "  " }, field: "name"},
		{name: "missing lastname", mutate: func(in *CaseInput) { in.Lastname = "" }, field: "lastname"},
		{name: "missing total", mutate: func(in *CaseInput) { in.Total = nil }, field: "total"},
		{name: "negative total", mutate: func(in *CaseInput) { in.Total = decPtr("-1") }, field: "total"},
		{name: "negative monto inicial", mutate: func(in *CaseInput) { in.MontoInicial = decPtr("-0.01") }, field: "monto_inicial"},
		{name: "missing cartera", mutate: func(in *CaseInput) { in.CarteraID = nil }, field: "cartera_id"},
		{name: "unknown cartera", mutate: func(in *CaseInput) { in.CarteraID = int64Ptr(999) }, field: "cartera_id"},
		{name: "inactive cartera", mutate: func(in *CaseInput) { in.CarteraID = int64Ptr(30) }, field: "cartera_id"},
		{name: "inactive status", mutate: func(in *CaseInput) { in.StatusID = int64Ptr(3) }, field: "status_id"},
		{name: "assignee is not a gestor", mutate: func(in *CaseInput) { in.AssignedToID = int64Ptr(adminID) }, field: "assigned_to_id"},
		{name: "assignee inactive", mutate: func(in *CaseInput) { in.AssignedToID = int64Ptr(6) }, field: "assigned_to_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCaseFixture(t)
			key := f.seedCache(t)
			input := validInput()
			tt.mutate(input)

			_, err := f.svc.Create(adminCtx(), input)

			ve, ok := apperrors.AsValidationError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.Empty(t, f.cases.cases)
			f.assertNotInvalidated(t, key)
		})
	}
}

func TestCaseService_Update_KeepsStatus(t *testing.T) {
	existing := assignedCase(42)
	existing.StatusID = 2
	f := newCaseFixture(t, existing)
	key := f.seedCache(t)

	input := validInput()
	input.Total = decPtr("0")
	view, err := f.svc.Update(adminCtx(), 42, input)
	require.NoError(t, err)

	assert.Equal(t, int64(2), view.StatusID)
	assert.Equal(t, 0.0, view.Total)
	f.assertInvalidated(t, key)
}

func TestCaseService_Update_NotFound(t *testing.T) {
	f := newCaseFixture(t)
	_, err := f.svc.Update(adminCtx(), 42, validInput())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCaseService_Delete(t *testing.T) {
	f := newCaseFixture(t, assignedCase(42))
	key := f.seedCache(t)

	require.NoError(t, f.svc.Delete(adminCtx(), 42))
	f.assertInvalidated(t, key)

	key = f.seedCache(t)
	assert.ErrorIs(t, f.svc.Delete(adminCtx(), 42), apperrors.ErrNotFound)
	f.assertNotInvalidated(t, key)
}

func TestCaseService_Get_Authorization(t *testing.T) {
	other := assignedCase(43)
	other.AssignedToID = int64Ptr(99)
	unassigned := assignedCase(44)
	unassigned.AssignedToID = nil

	f := newCaseFixture(t, assignedCase(42), other, unassigned)

	tests := []struct {
		name    string
		ctx     context.Context
		id      int64
		wantErr error
	}{
		{name: "admin any case", ctx: adminCtx(), id: 43},
		{name: "gestor own case", ctx: gestorCtx(), id: 42},
		{name: "gestor other case", ctx: gestorCtx(), id: 43, wantErr: apperrors.ErrForbidden},
		{name: "gestor unassigned case", ctx: gestorCtx(), id: 44, wantErr: apperrors.ErrForbidden},
		{name: "read-only user", ctx: withUser(8, "ro", models.RoleUser), id: 42, wantErr: apperrors.ErrForbidden},
		{name: "no claims", ctx: context.Background(), id: 42, wantErr: apperrors.ErrForbidden},
		{name: "missing case", ctx: adminCtx(), id: 1000, wantErr: apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := f.svc.Get(tt.ctx, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, view.ID)
		})
	}
}

func TestCaseService_List_ClampsPaging(t *testing.T) {
	f := newCaseFixture(t, assignedCase(1), assignedCase(2), assignedCase(3))

	page, err := f.svc.List(adminCtx(), models.CaseListFilter{Page: -3, PerPage: 500})
	require.NoError(t, err)

	require.Len(t, f.cases.listCalls, 1)
	assert.Equal(t, 1, f.cases.listCalls[0].Page)
	assert.Equal(t, MaxPerPage, f.cases.listCalls[0].PerPage)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 1, page.Pages)

	_, err = f.svc.List(adminCtx(), models.CaseListFilter{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPerPage, f.cases.listCalls[1].PerPage)
}

func TestCaseService_UpdateStatus(t *testing.T) {
	tests := []struct {
		name   string
		update StatusUpdate
		want   int64
		field  string
	}{
		{name: "by id", update: StatusUpdate{StatusID: int64Ptr(2)}, want: 2},
		{name: "by name", update: StatusUpdate{Status: " Con Arreglo "}, want: 2},
		{name: "id wins over name", update: StatusUpdate{StatusID: int64Ptr(1), Status: "Con Arreglo"}, want: 1},
		{name: "inactive id", update: StatusUpdate{StatusID: int64Ptr(3)}, field: "status_id"},
		{name: "unknown name", update: StatusUpdate{Status: "Pagado"}, field: "status"},
		{name: "nothing", update: StatusUpdate{}, field: "status_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCaseFixture(t, assignedCase(42))
			key := f.seedCache(t)

			view, err := f.svc.UpdateStatus(gestorCtx(), 42, tt.update)
			if tt.field != "" {
				ve, ok := apperrors.AsValidationError(err)
				require.True(t, ok)
				assert.Equal(t, tt.field, ve.Field)
				f.assertNotInvalidated(t, key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, view.StatusID)
			assert.Equal(t, tt.want, f.cases.statusSet[42])
			f.assertInvalidated(t, key)
		})
	}
}

func TestCaseService_AddPromise(t *testing.T) {
	promiseDate := models.NewDate(time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC))

	t.Run("pending by default", func(t *testing.T) {
		f := newCaseFixture(t, assignedCase(42))
		key := f.seedCache(t)

		p, err := f.svc.AddPromise(gestorCtx(), 42, &PromiseInput{Amount: dec("250"), PromiseDate: &promiseDate})
		require.NoError(t, err)

		assert.Equal(t, models.PromisePending, p.Status)
		assert.Nil(t, p.FulfilledDate)
		assert.Equal(t, int64(42), p.CaseID)
		f.assertInvalidated(t, key)
	})

	t.Run("fulfilled defaults to today", func(t *testing.T) {
		f := newCaseFixture(t, assignedCase(42))

		p, err := f.svc.AddPromise(gestorCtx(), 42, &PromiseInput{Amount: dec("250"), PromiseDate: &promiseDate, Status: models.PromiseFulfilled})
		require.NoError(t, err)

		require.NotNil(t, p.FulfilledDate)
		assert.Equal(t, "2024-04-02", p.FulfilledDate.String())
	})

	invalid := []struct {
		name  string
		input PromiseInput
		field string
	}{
		{name: "zero amount", input: PromiseInput{Amount: decimal.Zero, PromiseDate: &promiseDate}, field: "amount"},
		{name: "missing date", input: PromiseInput{Amount: dec("1")}, field: "promise_date"},
		{name: "unknown status", input: PromiseInput{Amount: dec("1"), PromiseDate: &promiseDate, Status: "late"}, field: "status"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			f := newCaseFixture(t, assignedCase(42))

			_, err := f.svc.AddPromise(gestorCtx(), 42, &tt.input)

			ve, ok := apperrors.AsValidationError(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, ve.Field)
			assert.Empty(t, f.promises.created)
		})
	}
}

func TestCaseService_AddActivity(t *testing.T) {
	f := newCaseFixture(t, assignedCase(42))
	key := f.seedCache(t)

	a, err := f.svc.AddActivity(gestorCtx(), 42, &ActivityInput{Type: models.ActivityCall, Notes: " left message "})
	require.NoError(t, err)

	assert.Equal(t, gestorID, a.CreatedByID)
	assert.Equal(t, "gabi", a.CreatedByName)
	assert.Equal(t, "left message", a.Notes)
	f.assertInvalidated(t, key)

	_, err = f.svc.AddActivity(gestorCtx(), 42, &ActivityInput{Type: "fax"})
	ve, ok := apperrors.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "type", ve.Field)
}

func TestCaseService_DeleteActivity(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		creator int64
		wantErr error
	}{
		{name: "gestor own activity", ctx: gestorCtx(), creator: gestorID},
		{name: "gestor someone else's", ctx: gestorCtx(), creator: adminID, wantErr: apperrors.ErrForbidden},
		{name: "admin any activity", ctx: adminCtx(), creator: gestorID},
		{name: "read-only user", ctx: withUser(gestorID, "ro", models.RoleUser), creator: gestorID, wantErr: apperrors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCaseFixture(t, assignedCase(42))
			f.activities.activities[9] = &models.Activity{ID: 9, CaseID: 42, CreatedByID: tt.creator}

			err := f.svc.DeleteActivity(tt.ctx, 9)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.activities.deleted)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []int64{9}, f.activities.deleted)
		})
	}
}

func TestCaseService_ListActivities_EmptyIsNotNil(t *testing.T) {
	f := newCaseFixture(t, assignedCase(42))

	activities, err := f.svc.ListActivities(gestorCtx(), 42)
	require.NoError(t, err)
	assert.NotNil(t, activities)
	assert.Empty(t, activities)
}
