package reporting

import (
	"context"
	"errors"
	"strings"
	"time"

	"payment-call-system/internal/calls"
	"payment-call-system/internal/wallet"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// ScanLimit bounds how many recent records of each kind a summary reads.
const ScanLimit = 500

// Ledger and CallHistory are read-only views of the engines. Both return newest first.
type Ledger interface {
	Currency() string
	ListTransactions(ctx context.Context, ownerID string, limit int) ([]wallet.Transaction, error)
}

type CallHistory interface {
	History(ctx context.Context, ownerID string, limit int) ([]calls.Session, error)
}

type Service struct {
	ledger Ledger
	calls  CallHistory
	limit  int
}

func NewService(ledger Ledger, history CallHistory) *Service {
	return &Service{ledger: ledger, calls: history, limit: ScanLimit}
}

func (s *Service) Summary(ctx context.Context, ownerID string, r TimeRange) (Summary, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Summary{}, ErrInvalidRequest
	}
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.ledger == nil || s.calls == nil {
		return Summary{}, errors.New("reporting: sources not configured")
	}

	txs, err := s.ledger.ListTransactions(ctx, ownerID, s.limit)
	if err != nil {
		return Summary{}, err
	}
	sessions, err := s.calls.History(ctx, ownerID, s.limit)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{
		OwnerID:   ownerID,
		Range:     r,
		Spend:     spend(txs, r, s.ledger.Currency()),
		Calls:     callStats(ownerID, sessions, r),
		Truncated: truncated(len(txs), s.limit, oldestTx(txs), r) || truncated(len(sessions), s.limit, oldestCall(sessions), r),
	}
	return out, nil
}

func spend(txs []wallet.Transaction, r TimeRange, currency string) SpendSummary {
	out := SpendSummary{Currency: currency}
	for _, t := range txs {
		if !r.Contains(t.CreatedAt) {
			continue
		}
		if t.Status == wallet.TransactionStatusPending && t.Type == wallet.TransactionTypeCredit {
			out.PendingFundingMinor += t.Amount
			continue
		}
		if t.Status != wallet.TransactionStatusSuccess {
			continue
		}

		adjustment := strings.HasPrefix(t.Reference, wallet.AdjustmentReferencePrefix)
		switch t.Type {
		case wallet.TransactionTypeCredit:
			out.TotalCreditMinor += t.Amount
			if adjustment {
				out.AdminAdjustMinor += t.Amount
			}
		case wallet.TransactionTypeDebit:
			out.TotalDebitMinor += t.Amount
			if adjustment {
				out.AdminAdjustMinor -= t.Amount
			}
			if strings.HasPrefix(t.Reference, calls.DebitReferencePrefix) {
				out.CallDebitMinor += t.Amount
			}
		}
	}
	out.NetDeltaMinor = out.TotalCreditMinor - out.TotalDebitMinor
	return out
}

func callStats(ownerID string, sessions []calls.Session, r TimeRange) CallsSummary {
	var out CallsSummary
	billed := 0
	for _, c := range sessions {
		if !r.Contains(c.StartedAt) {
			continue
		}
		out.TotalCalls++
		outgoing := c.CallerID == ownerID
		if outgoing {
			out.OutgoingCalls++
		} else {
			out.IncomingCalls++
		}
		switch c.Status {
		case calls.StatusEnded:
			out.EndedCalls++
			if outgoing {
				billed++
				out.BilledMinutes += c.DurationMinutes
				out.TotalCallCostMinor += c.TotalCost
			}
		case calls.StatusFailed:
			out.FailedCalls++
		default:
			out.OpenCalls++
		}
	}
	if billed > 0 {
		out.AverageBilledMinutes = out.BilledMinutes / int64(billed)
	}
	return out
}

// truncated reports whether a full page may have cut off records still inside r.
func truncated(n, limit int, oldest time.Time, r TimeRange) bool {
	return n >= limit && !oldest.Before(r.From)
}

func oldestTx(txs []wallet.Transaction) time.Time {
	if len(txs) == 0 {
		return time.Time{}
	}
	return txs[len(txs)-1].CreatedAt
}

func oldestCall(sessions []calls.Session) time.Time {
	if len(sessions) == 0 {
		return time.Time{}
	}
	return sessions[len(sessions)-1].StartedAt
}
