// Package cache is the result cache in front of the dashboard aggregations.
//
// Entries are JSON blobs keyed by cache:<family>:<hash>. Writers sweep whole
// families with InvalidateDashboards. Every backend failure is absorbed:
// callers always get a computed value, never a cache error.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with TTLs and glob invalidation.
type Cache interface {
	// Get returns the stored value and true on hit, or nil and false on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate deletes every key matching a glob pattern such as "cache:kpis:*".
	Invalidate(ctx context.Context, pattern string) error
}

// Policy names a function family and how long its results live.
type Policy struct {
	Family string
	TTL    time.Duration
}

// Family prefixes. Every dashboard family lives under "dashboard:" so one sweep clears them.
const (
	FamilyKPIs                = "kpis"
	FamilyPerformance         = "dashboard:performance"
	FamilyGestoresRanking     = "dashboard:gestores_ranking"
	FamilyCarteraDistribution = "dashboard:cartera_distribution"
	FamilyMultipleDebts       = "dashboard:multiple_debts"
)

// InvalidationPatterns are swept after every case, promise or activity write.
var InvalidationPatterns = []string{
	"cache:kpis:*",
	"cache:dashboard:*",
}

// Policies holds the TTL for each family.
type Policies struct {
	KPIs                Policy
	Performance         Policy
	GestoresRanking     Policy
	CarteraDistribution Policy
	MultipleDebts       Policy
}

// DefaultPolicies returns the policy set for the given TTLs: fast-moving
// aggregates (KPIs, series, ranking) use kpiTTL; structural ones use structuralTTL.
func DefaultPolicies(kpiTTL, structuralTTL time.Duration) Policies {
	return Policies{
		KPIs:                Policy{Family: FamilyKPIs, TTL: kpiTTL},
		Performance:         Policy{Family: FamilyPerformance, TTL: kpiTTL},
		GestoresRanking:     Policy{Family: FamilyGestoresRanking, TTL: kpiTTL},
		CarteraDistribution: Policy{Family: FamilyCarteraDistribution, TTL: structuralTTL},
		MultipleDebts:       Policy{Family: FamilyMultipleDebts, TTL: structuralTTL},
	}
}

// noopCache never stores anything.
type noopCache struct{}

var _ Cache = noopCache{}

// NewNoopCache returns a cache that always misses.
func NewNoopCache() Cache {
	return noopCache{}
}

func (noopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (noopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noopCache) Invalidate(context.Context, string) error { return nil }
