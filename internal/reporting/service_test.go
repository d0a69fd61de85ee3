package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-call-system/internal/calls"
	"payment-call-system/internal/wallet"
)

type fakeLedger struct {
	txs []wallet.Transaction
	err error
}

func (f fakeLedger) Currency() string { return "NGN" }

func (f fakeLedger) ListTransactions(ctx context.Context, ownerID string, limit int) ([]wallet.Transaction, error) {
	if len(f.txs) > limit {
		return f.txs[:limit], f.err
	}
	return f.txs, f.err
}

type fakeHistory struct {
	sessions []calls.Session
}

func (f fakeHistory) History(ctx context.Context, ownerID string, limit int) ([]calls.Session, error) {
	return f.sessions, nil
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func tx(ref string, typ wallet.TransactionType, status wallet.TransactionStatus, amount int64, at time.Time) wallet.Transaction {
	return wallet.Transaction{OwnerID: "u1", Reference: ref, Type: typ, Status: status, Amount: amount, CreatedAt: at}
}

func dayRange() TimeRange {
	return TimeRange{From: base.Add(-12 * time.Hour), To: base.Add(12 * time.Hour)}
}

func TestSummary_Spend(t *testing.T) {
	ledger := fakeLedger{txs: []wallet.Transaction{
		tx("CALL_c2_1", wallet.TransactionTypeDebit, wallet.TransactionStatusSuccess, 150, base.Add(3*time.Hour)),
		tx("ADJ_2", wallet.TransactionTypeDebit, wallet.TransactionStatusSuccess, 100, base.Add(2*time.Hour)),
		tx("ADJ_1", wallet.TransactionTypeCredit, wallet.TransactionStatusSuccess, 300, base.Add(time.Hour)),
		tx("REF_3", wallet.TransactionTypeCredit, wallet.TransactionStatusPending, 999, base),
		tx("REF_2", wallet.TransactionTypeCredit, wallet.TransactionStatusFailed, 777, base),
		tx("REF_1", wallet.TransactionTypeCredit, wallet.TransactionStatusSuccess, 1000, base.Add(-time.Hour)),
		tx("REF_0", wallet.TransactionTypeCredit, wallet.TransactionStatusSuccess, 5000, base.Add(-48*time.Hour)),
	}}
	svc := NewService(ledger, fakeHistory{})

	out, err := svc.Summary(context.Background(), "u1", dayRange())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	s := out.Spend
	if s.TotalCreditMinor != 1300 || s.TotalDebitMinor != 250 || s.NetDeltaMinor != 1050 {
		t.Fatalf("unexpected totals %+v", s)
	}
	if s.CallDebitMinor != 150 || s.AdminAdjustMinor != 200 || s.PendingFundingMinor != 999 {
		t.Fatalf("unexpected breakdown %+v", s)
	}
	if s.Currency != "NGN" || out.Truncated {
		t.Fatalf("unexpected summary %+v", out)
	}
}

func TestSummary_Calls(t *testing.T) {
	ended := func(id, caller string, minutes, cost int64) calls.Session {
		return calls.Session{ID: id, CallerID: caller, ReceiverID: "x", Status: calls.StatusEnded, StartedAt: base, DurationMinutes: minutes, TotalCost: cost}
	}
	history := fakeHistory{sessions: []calls.Session{
		ended("c1", "u1", 3, 150),
		ended("c2", "u1", 1, 50),
		ended("c3", "other", 10, 500),
		{ID: "c4", CallerID: "u1", Status: calls.StatusFailed, StartedAt: base},
		{ID: "c5", CallerID: "u1", Status: calls.StatusInitiated, StartedAt: base},
		{ID: "c6", CallerID: "u1", Status: calls.StatusEnded, StartedAt: base.Add(-72 * time.Hour), DurationMinutes: 99},
	}}
	svc := NewService(fakeLedger{}, history)

	out, err := svc.Summary(context.Background(), "u1", dayRange())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	c := out.Calls
	if c.TotalCalls != 5 || c.OutgoingCalls != 4 || c.IncomingCalls != 1 {
		t.Fatalf("unexpected counts %+v", c)
	}
	if c.EndedCalls != 3 || c.FailedCalls != 1 || c.OpenCalls != 1 {
		t.Fatalf("unexpected statuses %+v", c)
	}
	if c.BilledMinutes != 4 || c.AverageBilledMinutes != 2 || c.TotalCallCostMinor != 200 {
		t.Fatalf("unexpected billing %+v", c)
	}
}

func TestSummary_InvalidRequest(t *testing.T) {
	svc := NewService(fakeLedger{}, fakeHistory{})
	ctx := context.Background()
	cases := []struct {
		owner string
		r     TimeRange
	}{
		{"", dayRange()},
		{"u1", TimeRange{}},
		{"u1", TimeRange{From: base, To: base}},
		{"u1", TimeRange{From: base, To: base.Add(-time.Hour)}},
	}
	for _, tc := range cases {
		if _, err := svc.Summary(ctx, tc.owner, tc.r); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%+v: expected ErrInvalidRequest, got %v", tc, err)
		}
	}
}

func TestSummary_PropagatesLedgerError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(fakeLedger{err: boom}, fakeHistory{})
	if _, err := svc.Summary(context.Background(), "u1", dayRange()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestSummary_TruncatedWhenScanLimitHitInsideRange(t *testing.T) {
	svc := NewService(fakeLedger{txs: []wallet.Transaction{
		tx("R2", wallet.TransactionTypeCredit, wallet.TransactionStatusSuccess, 1, base),
		tx("R1", wallet.TransactionTypeCredit, wallet.TransactionStatusSuccess, 1, base),
		tx("R0", wallet.TransactionTypeCredit, wallet.TransactionStatusSuccess, 1, base),
	}}, fakeHistory{})
	svc.limit = 2

	out, err := svc.Summary(context.Background(), "u1", dayRange())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out.Truncated || out.Spend.TotalCreditMinor != 2 {
		t.Fatalf("expected truncated summary over 2 records, got %+v", out)
	}
}

func TestTimeRange_ContainsIsHalfOpen(t *testing.T) {
	r := TimeRange{From: base, To: base.Add(time.Hour)}
	if !r.Contains(base) || r.Contains(base.Add(time.Hour)) || r.Contains(base.Add(-time.Nanosecond)) {
		t.Fatalf("unexpected Contains semantics")
	}
}
