package pricing

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo holds the rate schedule in process. The API seeds it from
// BILLING_DEFAULT_COST_PER_MINUTE_MINOR at startup.
type MemoryRepo struct {
	mu    sync.RWMutex
	rates []Rate
}

func NewMemoryRepo(rates ...Rate) *MemoryRepo {
	return &MemoryRepo{rates: rates}
}

func (r *MemoryRepo) Add(rate Rate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates = append(r.rates, rate)
}

func (r *MemoryRepo) FindActiveRate(ctx context.Context, currency string, at time.Time) (Rate, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Prefer the most recent effective rate.
	var best Rate
	found := false

	for _, p := range r.rates {
		if p.Currency != currency {
			continue
		}
		if p.Status != RateStatusActive {
			continue
		}
		if at.Before(p.EffectiveFrom) {
			continue
		}
		if p.EffectiveTo != nil && !at.Before(*p.EffectiveTo) {
			continue
		}

		if !found || p.EffectiveFrom.After(best.EffectiveFrom) {
			best = p
			found = true
		}
	}

	return best, found, nil
}
