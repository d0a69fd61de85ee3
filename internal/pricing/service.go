package pricing

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	ErrPricingNotFound   = errors.New("pricing not found")
	ErrInvalidPricingReq = errors.New("invalid pricing request")
)

// RateRepository abstracts the default rate schedule.
type RateRepository interface {
	FindActiveRate(ctx context.Context, currency string, at time.Time) (Rate, bool, error)
}

// Service resolves per-minute rates and prices calls.
// Pure calculation + repository lookups; no ledger access.
type Service struct {
	repo     RateRepository
	plan     Plan
	currency string
	clock    func() time.Time
}

func NewService(repo RateRepository, plan Plan, currency string) *Service {
	return &Service{repo: repo, plan: plan, currency: currency, clock: time.Now}
}

func (s *Service) Plan() Plan { return s.plan }

// ResolveRate returns requested when positive, else the active default rate.
func (s *Service) ResolveRate(ctx context.Context, requested int64) (int64, error) {
	if requested > 0 {
		return requested, nil
	}
	if requested < 0 {
		return 0, ErrInvalidPricingReq
	}
	r, ok, err := s.repo.FindActiveRate(ctx, s.currency, s.clock().UTC())
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrPricingNotFound
	}
	return r.RatePerMinuteMinor, nil
}

// Quote prices elapsed time at ratePerMinute. Seconds are rounded up, then to the
// plan increment and minimum, then to whole minutes; at least one minute is billed.
func (p Plan) Quote(elapsed time.Duration, ratePerMinute int64) (CallCost, error) {
	if ratePerMinute <= 0 {
		return CallCost{}, ErrInvalidPricingReq
	}
	if elapsed < 0 {
		// clock skew between nodes; bill the minimum
		elapsed = 0
	}

	secs := int(elapsed / time.Second)
	if elapsed%time.Second != 0 {
		secs++
	}

	billableSec := billableSeconds(secs, p.MinimumBillableSeconds, p.BillingIncrementSeconds)
	billableMin := int64(billableMinutesFromSeconds(billableSec))
	if billableMin < 1 {
		billableMin = 1
	}

	if billableMin > math.MaxInt64/ratePerMinute {
		return CallCost{}, ErrInvalidPricingReq
	}

	return CallCost{
		BillableSeconds: billableSec,
		BillableMinutes: billableMin,
		RatePerMinute:   ratePerMinute,
		Total:           billableMin * ratePerMinute,
	}, nil
}

func billableSeconds(actualSec int, minSec int, incrementSec int) int {
	if actualSec < 0 {
		return 0
	}
	if minSec <= 0 {
		minSec = 0
	}
	if incrementSec <= 0 {
		incrementSec = 60
	}

	sec := actualSec
	if sec < minSec {
		sec = minSec
	}

	// round up to nearest increment
	q := sec / incrementSec
	r := sec % incrementSec
	if r != 0 {
		q++
	}
	return q * incrementSec
}

func billableMinutesFromSeconds(sec int) int {
	if sec <= 0 {
		return 0
	}
	m := sec / 60
	if sec%60 != 0 {
		m++
	}
	return m
}
