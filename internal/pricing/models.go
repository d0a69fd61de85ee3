package pricing

import "time"

// Amounts are expressed in minor units (e.g., kobo) using int64.

// Plan describes how elapsed call time is rounded before it is priced.
type Plan struct {
	// MinimumBillableSeconds enforces a minimum charge duration.
	MinimumBillableSeconds int `json:"minimum_billable_seconds"`

	// BillingIncrementSeconds (e.g., 60 for per-minute, 1 for per-second billing).
	BillingIncrementSeconds int `json:"billing_increment_seconds"`
}

// DefaultPlan bills every started minute, with a one minute minimum.
func DefaultPlan() Plan {
	return Plan{MinimumBillableSeconds: 60, BillingIncrementSeconds: 60}
}

// Rate is a default per-minute price used when a call does not carry its own.
type Rate struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`

	// RatePerMinuteMinor is the price per started minute.
	RatePerMinuteMinor int64 `json:"rate_per_minute_minor"`

	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`

	Status RateStatus `json:"status"`
}

type RateStatus string

const (
	RateStatusActive   RateStatus = "active"
	RateStatusInactive RateStatus = "inactive"
)

// CallCost is the priced outcome of one call.
type CallCost struct {
	BillableSeconds int   `json:"billable_seconds"`
	BillableMinutes int64 `json:"billable_minutes"`
	RatePerMinute   int64 `json:"rate_per_minute"`
	Total           int64 `json:"total"`
}
