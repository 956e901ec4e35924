package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erp/analytics/internal/domain/analytics"
)

// MemoryAggregateRepository is an in-process AggregateRepository used by the
// application and handler tests. Records are keyed by day like the Mongo store.
type MemoryAggregateRepository struct {
	mu   sync.RWMutex
	days map[time.Time]analytics.DailyAggregate
}

// NewMemoryAggregateRepository creates an empty repository
func NewMemoryAggregateRepository() *MemoryAggregateRepository {
	return &MemoryAggregateRepository{days: make(map[time.Time]analytics.DailyAggregate)}
}

// UpsertMany implements analytics.AggregateRepository
func (r *MemoryAggregateRepository) UpsertMany(_ context.Context, aggs []analytics.DailyAggregate) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range aggs {
		a.Date = analytics.TruncateDay(a.Date)
		r.days[a.Date] = a
	}
	return len(aggs), nil
}

// FindRange implements analytics.AggregateRepository
func (r *MemoryAggregateRepository) FindRange(_ context.Context, dr analytics.DateRange) ([]analytics.DailyAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]analytics.DailyAggregate, 0)
	for d, a := range r.days {
		if dr.Contains(d) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Len returns the number of stored days
func (r *MemoryAggregateRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.days)
}

var _ analytics.AggregateRepository = (*MemoryAggregateRepository)(nil)
