package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains is half-open: From <= t < To.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Summary is an owner's activity over a time range.
type Summary struct {
	OwnerID string       `json:"owner_id"`
	Range   TimeRange    `json:"range"`
	Spend   SpendSummary `json:"spend"`
	Calls   CallsSummary `json:"calls"`

	// Truncated is set when the scan limit was hit and older records were not read.
	Truncated bool `json:"truncated,omitempty"`
}

// SpendSummary is derived from successful ledger transactions only.
type SpendSummary struct {
	Currency string `json:"currency"`

	TotalCreditMinor int64 `json:"total_credit_minor"`
	TotalDebitMinor  int64 `json:"total_debit_minor"`
	NetDeltaMinor    int64 `json:"net_delta_minor"`

	CallDebitMinor int64 `json:"call_debit_minor"`
	// AdminAdjustMinor is signed: credits add, debits subtract.
	AdminAdjustMinor int64 `json:"admin_adjust_minor"`

	PendingFundingMinor int64 `json:"pending_funding_minor"`
}

type CallsSummary struct {
	TotalCalls    int `json:"total_calls"`
	OutgoingCalls int `json:"outgoing_calls"`
	IncomingCalls int `json:"incoming_calls"`
	EndedCalls    int `json:"ended_calls"`
	FailedCalls   int `json:"failed_calls"`
	OpenCalls     int `json:"open_calls"`

	// Billed figures cover outgoing ended calls, the ones this owner paid for.
	BilledMinutes        int64 `json:"billed_minutes"`
	AverageBilledMinutes int64 `json:"average_billed_minutes"`
	TotalCallCostMinor   int64 `json:"total_call_cost_minor"`
}
