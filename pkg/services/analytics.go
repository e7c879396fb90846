package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/apperrors"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/cache"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/repositories"
)

const (
	// DefaultRankingLimit applies when GestorRanking is called with limit 0.
	DefaultRankingLimit = 10
	// relatedActivitiesPerCase caps the activities attached to each grouped debt.
	relatedActivitiesPerCase = 10
)

// AnalyticsService computes the dashboard aggregates over the case book.
type AnalyticsService interface {
	// KPIs returns the headline figures for cases matching the filter.
	KPIs(ctx context.Context, filter models.DashboardFilter) (*models.KPIs, error)

	// PerformanceSeries returns weekly recovered amounts per cartera.
	// Nil bounds default to a 28-day window ending now.
	PerformanceSeries(ctx context.Context, start, end *time.Time, carteraID *int64) (*models.PerformanceSeries, error)

	// CarteraDistribution returns amount and case count per cartera with cases.
	CarteraDistribution(ctx context.Context) ([]models.CarteraSlice, error)

	// GestorRanking ranks active gestors by recovered amount.
	// limit 0 uses DefaultRankingLimit; a negative limit returns every gestor.
	GestorRanking(ctx context.Context, limit int) ([]models.GestorRank, error)

	// StatusDistribution counts cases per active status.
	StatusDistribution(ctx context.Context) ([]models.StatusCount, error)

	// PeriodComparison compares this calendar month with the previous one.
	PeriodComparison(ctx context.Context) (*models.PeriodComparison, error)

	// MultiDebtClients lists people holding more than one case.
	MultiDebtClients(ctx context.Context, carteraID, gestorID *int64) ([]models.MultiDebtClient, error)

	// GroupedByPerson returns the consolidated per-person view of every case.
	GroupedByPerson(ctx context.Context, carteraID, gestorID *int64, includeRelations bool) ([]*models.PersonGroup, error)
}

type analyticsService struct {
	catalog    repositories.CatalogRepository
	analytics  repositories.AnalyticsRepository
	cases      repositories.CaseRepository
	promises   repositories.PromiseRepository
	activities repositories.ActivityRepository
	cache      cache.Cache
	policies   cache.Policies
	logger     *zap.Logger
	now        func() time.Time
}

// NewAnalyticsService creates an AnalyticsService. A nil cache computes every call.
func NewAnalyticsService(
	catalog repositories.CatalogRepository,
	analytics repositories.AnalyticsRepository,
	cases repositories.CaseRepository,
	promises repositories.PromiseRepository,
	activities repositories.ActivityRepository,
	resultCache cache.Cache,
	policies cache.Policies,
	logger *zap.Logger,
) AnalyticsService {
	return &analyticsService{
		catalog:    catalog,
		analytics:  analytics,
		cases:      cases,
		promises:   promises,
		activities: activities,
		cache:      resultCache,
		policies:   policies,
		logger:     logger.Named("analytics"),
		now:        time.Now,
	}
}

var _ AnalyticsService = (*analyticsService)(nil)

// arrangedStatusID resolves the "Con Arreglo" status by name.
// Returns nil when the catalog has no such active status.
func (s *analyticsService) arrangedStatusID(ctx context.Context) (*int64, error) {
	status, err := s.catalog.GetActiveStatusByName(ctx, models.StatusArranged)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Arranged status missing from catalog, recovered amounts will be zero",
				zap.String("status", models.StatusArranged))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve arranged status: %w", err)
	}
	return &status.ID, nil
}

func (s *analyticsService) KPIs(ctx context.Context, filter models.DashboardFilter) (*models.KPIs, error) {
	key := cache.NewKey(s.policies.KPIs.Family).
		Named("start_date", filter.Start).
		Named("end_date", filter.End).
		Named("cartera_id", filter.CarteraID).
		Named("gestor_id", filter.GestorID).
		String()

	return cache.Fetch(ctx, s.cache, s.logger, s.policies.KPIs, key, func(ctx context.Context) (*models.KPIs, error) {
		created := repositories.DateRange{From: filter.Start, To: filter.End}
		return s.computeKPIs(ctx, created, filter.CarteraID, filter.GestorID)
	})
}

func (s *analyticsService) computeKPIs(ctx context.Context, created repositories.DateRange, carteraID, gestorID *int64) (*models.KPIs, error) {
	arranged, err := s.arrangedStatusID(ctx)
	if err != nil {
		return nil, err
	}

	base := repositories.CaseFilter{Created: created, CarteraID: carteraID, GestorID: gestorID}

	all, err := s.analytics.SumCases(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("failed to compute case totals: %w", err)
	}

	paid := &repositories.CaseTotals{}
	if arranged != nil {
		paidFilter := base
		paidFilter.StatusID = arranged
		paid, err = s.analytics.SumCases(ctx, paidFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to compute recovered totals: %w", err)
		}
	}

	var subset *repositories.CaseSubset
	caseSubset := func() (repositories.CaseSubset, error) {
		if subset != nil {
			return *subset, nil
		}
		ids, err := s.analytics.CaseIDs(ctx, base)
		if err != nil {
			return repositories.CaseSubset{}, fmt.Errorf("failed to list filtered cases: %w", err)
		}
		subset = &repositories.CaseSubset{Restrict: true, IDs: ids}
		return *subset, nil
	}

	promiseFilter := repositories.PromiseFilter{Created: created}
	if gestorID != nil {
		if promiseFilter.Cases, err = caseSubset(); err != nil {
			return nil, err
		}
	}
	promises, err := s.analytics.PromiseStats(ctx, promiseFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to compute promise stats: %w", err)
	}

	activityFilter := repositories.ActivityFilter{Created: created, CreatedByID: gestorID}
	if carteraID != nil || gestorID != nil {
		if activityFilter.Cases, err = caseSubset(); err != nil {
			return nil, err
		}
	}
	activities, err := s.analytics.CountActivities(ctx, activityFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}

	return &models.KPIs{
		MontoRecuperado:     models.Money(paid.Sum),
		TasaRecupero:        models.Percent(paid.Sum, all.Sum),
		PromesasCumplidas:   models.CountPercent(promises.Fulfilled, promises.Total),
		GestionesRealizadas: activities,
		TotalCasos:          all.Count,
		CasosPagados:        paid.Count,
		TotalDeuda:          models.Money(all.Sum),
	}, nil
}

func (s *analyticsService) PerformanceSeries(ctx context.Context, start, end *time.Time, carteraID *int64) (*models.PerformanceSeries, error) {
	from, to, err := resolveSeriesWindow(start, end, s.now())
	if err != nil {
		return nil, err
	}

	key := cache.NewKey(s.policies.Performance.Family).
		Named("start_date", start).
		Named("end_date", end).
		Named("cartera_id", carteraID).
		String()

	return cache.Fetch(ctx, s.cache, s.logger, s.policies.Performance, key, func(ctx context.Context) (*models.PerformanceSeries, error) {
		return s.computeSeries(ctx, from, to, carteraID)
	})
}

func (s *analyticsService) computeSeries(ctx context.Context, from, to time.Time, carteraID *int64) (*models.PerformanceSeries, error) {
	periods := weekBuckets(from, to)

	carteras, err := s.seriesCarteras(ctx, carteraID)
	if err != nil {
		return nil, err
	}

	result := &models.PerformanceSeries{
		Periods: periods,
		Series:  make([]models.Series, 0, len(carteras)),
	}
	if len(carteras) == 0 {
		return result, nil
	}

	ids := make([]int64, len(carteras))
	for i, c := range carteras {
		ids[i] = c.ID
	}

	sums := map[int64]map[int]decimal.Decimal{}
	arranged, err := s.arrangedStatusID(ctx)
	if err != nil {
		return nil, err
	}
	if arranged != nil {
		totals, err := s.analytics.RecoveredByBucket(ctx, *arranged, ids, from, to, bucketWidth)
		if err != nil {
			return nil, fmt.Errorf("failed to compute performance series: %w", err)
		}
		for _, t := range totals {
			if sums[t.CarteraID] == nil {
				sums[t.CarteraID] = map[int]decimal.Decimal{}
			}
			sums[t.CarteraID][t.Bucket] = t.Sum
		}
	}

	for _, c := range carteras {
		values := make([]float64, len(periods))
		for bucket, sum := range sums[c.ID] {
			if bucket >= 0 && bucket < len(values) {
				values[bucket] = models.Money(sum)
			}
		}
		result.Series = append(result.Series, models.Series{
			CarteraID: c.ID,
			Label:     c.Nombre,
			Values:    values,
		})
	}
	return result, nil
}

// seriesCarteras picks the charted carteras: the selected one if it exists,
// otherwise the first active carteras by name.
func (s *analyticsService) seriesCarteras(ctx context.Context, carteraID *int64) ([]*models.Cartera, error) {
	if carteraID != nil {
		cartera, err := s.catalog.GetCarteraByID(ctx, *carteraID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to load cartera: %w", err)
		}
		return []*models.Cartera{cartera}, nil
	}

	carteras, err := s.catalog.ListCarteras(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list carteras: %w", err)
	}
	if len(carteras) > defaultSeriesCarteras {
		carteras = carteras[:defaultSeriesCarteras]
	}
	return carteras, nil
}

func (s *analyticsService) CarteraDistribution(ctx context.Context) ([]models.CarteraSlice, error) {
	key := cache.NewKey(s.policies.CarteraDistribution.Family).String()

	return cache.Fetch(ctx, s.cache, s.logger, s.policies.CarteraDistribution, key, func(ctx context.Context) ([]models.CarteraSlice, error) {
		totals, err := s.analytics.CarteraDistribution(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to compute cartera distribution: %w", err)
		}

		slices := make([]models.CarteraSlice, 0, len(totals))
		for _, t := range totals {
			slices = append(slices, models.CarteraSlice{
				CarteraID: t.CarteraID,
				Nombre:    t.Nombre,
				Total:     models.Money(t.Total),
				Casos:     t.Casos,
			})
		}
		return slices, nil
	})
}

func (s *analyticsService) GestorRanking(ctx context.Context, limit int) ([]models.GestorRank, error) {
	if limit == 0 {
		limit = DefaultRankingLimit
	}

	key := cache.NewKey(s.policies.GestoresRanking.Family).Named("limit", limit).String()

	return cache.Fetch(ctx, s.cache, s.logger, s.policies.GestoresRanking, key, func(ctx context.Context) ([]models.GestorRank, error) {
		return s.computeRanking(ctx, limit)
	})
}

func (s *analyticsService) computeRanking(ctx context.Context, limit int) ([]models.GestorRank, error) {
	arranged, err := s.arrangedStatusID(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := s.analytics.GestorCaseStats(ctx, arranged)
	if err != nil {
		return nil, fmt.Errorf("failed to compute gestor stats: %w", err)
	}

	ids := make([]int64, len(stats))
	for i, gs := range stats {
		ids[i] = gs.GestorID
	}
	promises, err := s.analytics.PromiseStatsByGestor(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to compute gestor promise stats: %w", err)
	}

	ranked := make([]repositories.GestorCaseStats, len(stats))
	copy(ranked, stats)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Recovered.GreaterThan(ranked[j].Recovered)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	result := make([]models.GestorRank, 0, len(ranked))
	for _, gs := range ranked {
		ps := promises[gs.GestorID]
		result = append(result, models.GestorRank{
			GestorID:          gs.GestorID,
			GestorName:        gs.Username,
			MontoRecuperado:   models.Money(gs.Recovered),
			TotalCasos:        gs.TotalCasos,
			CasosPagados:      gs.CasosPagados,
			PromesasCumplidas: models.CountPercent(ps.Fulfilled, ps.Total),
		})
	}
	return result, nil
}

func (s *analyticsService) StatusDistribution(ctx context.Context) ([]models.StatusCount, error) {
	counts, err := s.analytics.StatusDistribution(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute status distribution: %w", err)
	}
	if counts == nil {
		counts = []models.StatusCount{}
	}
	return counts, nil
}

func (s *analyticsService) PeriodComparison(ctx context.Context) (*models.PeriodComparison, error) {
	current, previous := monthWindows(s.now().UTC())

	cur, err := s.snapshot(ctx, current)
	if err != nil {
		return nil, err
	}
	prev, err := s.snapshot(ctx, previous)
	if err != nil {
		return nil, err
	}
	return &models.PeriodComparison{Current: *cur, Previous: *prev}, nil
}

func (s *analyticsService) snapshot(ctx context.Context, window monthWindow) (*models.PeriodSnapshot, error) {
	created := repositories.DateRange{From: &window.Start, To: &window.End, ToExclusive: true}
	kpis, err := s.computeKPIs(ctx, created, nil, nil)
	if err != nil {
		return nil, err
	}
	return &models.PeriodSnapshot{
		MontoRecuperado:     kpis.MontoRecuperado,
		PromesasCumplidas:   kpis.PromesasCumplidas,
		GestionesRealizadas: kpis.GestionesRealizadas,
	}, nil
}

func (s *analyticsService) MultiDebtClients(ctx context.Context, carteraID, gestorID *int64) ([]models.MultiDebtClient, error) {
	key := cache.NewKey(s.policies.MultipleDebts.Family).
		Named("cartera_id", carteraID).
		Named("gestor_id", gestorID).
		String()

	return cache.Fetch(ctx, s.cache, s.logger, s.policies.MultipleDebts, key, func(ctx context.Context) ([]models.MultiDebtClient, error) {
		rows, err := s.analytics.MultiDebtClients(ctx, carteraID, gestorID)
		if err != nil {
			return nil, fmt.Errorf("failed to find multi-debt clients: %w", err)
		}

		clients := make([]models.MultiDebtClient, 0, len(rows))
		for _, row := range rows {
			client := models.MultiDebtClient{
				DNI:               row.DNI,
				TotalDeudas:       row.TotalDeudas,
				DeudaConsolidada:  models.Money(row.DeudaConsolidada),
				MontoInicialTotal: models.Money(row.MontoInicialTotal),
				PrimeraDeuda:      &row.PrimeraDeuda,
				UltimaDeuda:       &row.UltimaDeuda,
			}
			if row.FechaMasReciente != nil {
				d := models.NewDate(*row.FechaMasReciente)
				client.FechaMasReciente = &d
			}
			clients = append(clients, client)
		}
		return clients, nil
	})
}

func (s *analyticsService) GroupedByPerson(ctx context.Context, carteraID, gestorID *int64, includeRelations bool) ([]*models.PersonGroup, error) {
	cases, err := s.cases.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cases: %w", err)
	}

	groups := BuildPersonGroups(cases, carteraID, gestorID)
	if !includeRelations || len(groups) == 0 {
		return groups, nil
	}

	var ids []int64
	for _, g := range groups {
		for _, d := range g.Deudas {
			ids = append(ids, d.ID)
		}
	}

	promises, err := s.promises.ListByCaseIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load promises: %w", err)
	}
	activities, err := s.activities.ListRecentByCaseIDs(ctx, ids, relatedActivitiesPerCase)
	if err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}

	for _, g := range groups {
		for _, d := range g.Deudas {
			d.Promises = promises[d.ID]
			d.Activities = activities[d.ID]
		}
	}
	return groups, nil
}
