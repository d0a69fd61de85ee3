package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"payment-call-system/internal/payments"
	"payment-call-system/internal/wallet"

	"github.com/google/uuid"
)

// Ledger is the part of the wallet engine funding needs.
type Ledger interface {
	Currency() string
	RegisterPending(ctx context.Context, ownerID string, amount int64, reference string, meta wallet.Metadata) (wallet.Transaction, error)
	Credit(ctx context.Context, reference string, amount int64) (wallet.Transaction, error)
	GetTransaction(ctx context.Context, reference string) (wallet.Transaction, error)
	ExpirePending(ctx context.Context, ttl time.Duration) ([]wallet.Transaction, error)
}

type Auditor interface {
	LogSignatureRejected(ctx context.Context, ip string, bodySize int) error
	LogLatePayment(ctx context.Context, ownerID, reference string, amount int64, paidOn string) error
}

// Orchestrator turns provider payments into ledger credits.
// It never changes balances itself; every mutation goes through Ledger.
type Orchestrator struct {
	ledger    Ledger
	provider  payments.Provider
	verifier  payments.Verifier
	intentTTL time.Duration
	auditor   Auditor

	// minorExponent converts provider major-unit amounts.
	minorExponent int32

	clock        func() time.Time
	newReference func(now time.Time) string
}

func NewOrchestrator(ledger Ledger, provider payments.Provider, verifier payments.Verifier, intentTTL time.Duration) *Orchestrator {
	return &Orchestrator{
		ledger:        ledger,
		provider:      provider,
		verifier:      verifier,
		intentTTL:     intentTTL,
		minorExponent: 2,
		clock:         time.Now,
		newReference:  NewReference,
	}
}

func (o *Orchestrator) SetAuditor(a Auditor) { o.auditor = a }

// NewReference returns REF_<unix-ms>_<random hex>.
func NewReference(now time.Time) string {
	return fmt.Sprintf("REF_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// InitiateFunding registers a pending credit and returns payment instructions.
func (o *Orchestrator) InitiateFunding(ctx context.Context, ownerID string, amountMinor int64, email string) (Intent, error) {
	if amountMinor <= 0 {
		return Intent{}, wallet.ErrInvalidAmount
	}
	if strings.TrimSpace(ownerID) == "" {
		return Intent{}, wallet.ErrInvalidArgument
	}

	ref := o.newReference(o.clock().UTC())
	tx, err := o.ledger.RegisterPending(ctx, ownerID, amountMinor, ref, wallet.Metadata{
		"email":    email,
		"provider": o.provider.Name(),
	})
	if err != nil {
		return Intent{}, err
	}

	expires := tx.CreatedAt.Add(o.intentTTL)
	instr, err := o.provider.Instructions(ctx, payments.InstructionsRequest{
		Reference:   tx.Reference,
		AmountMinor: tx.Amount,
		Currency:    o.ledger.Currency(),
		Email:       email,
		ExpiresAt:   expires,
	})
	if err != nil {
		return Intent{}, err
	}

	return Intent{
		Reference:    tx.Reference,
		OwnerID:      tx.OwnerID,
		AmountMinor:  tx.Amount,
		Currency:     o.ledger.Currency(),
		Status:       tx.Status,
		ExpiresAt:    expires,
		Instructions: instr,
	}, nil
}

// ConfirmFunding verifies and applies a provider callback.
//
// The signature is checked before the body is even parsed. Only PAID moves
// money; any other status is reported back verbatim with no mutation.
// Redelivered callbacks are safe because Credit is idempotent by reference.
func (o *Orchestrator) ConfirmFunding(ctx context.Context, cb Callback) (Confirmation, error) {
	if err := o.verifier.Verify(cb.RawBody, cb.Signature); err != nil {
		if o.auditor != nil {
			_ = o.auditor.LogSignatureRejected(ctx, cb.RemoteIP, len(cb.RawBody))
		}
		return Confirmation{}, payments.ErrInvalidSignature
	}

	n, err := payments.ParseNotification(cb.RawBody)
	if err != nil {
		return Confirmation{}, err
	}
	out := Confirmation{Reference: n.PaymentReference, Status: n.PaymentStatus}
	if !n.Paid() {
		return out, nil
	}

	amount, err := payments.ToMinorUnits(n.AmountPaid, o.minorExponent)
	if err != nil {
		return Confirmation{}, errors.Join(wallet.ErrInvalidAmount, err)
	}

	tx, err := o.ledger.Credit(ctx, n.PaymentReference, amount)
	if errors.Is(err, wallet.ErrIntentExpired) {
		out.Expired = true
		if o.auditor != nil {
			owner := ""
			if t, lerr := o.ledger.GetTransaction(ctx, n.PaymentReference); lerr == nil {
				owner = t.OwnerID
			}
			_ = o.auditor.LogLatePayment(ctx, owner, n.PaymentReference, amount, n.PaidOn)
		}
		return out, nil
	}
	if err != nil {
		return Confirmation{}, err
	}
	out.Credited = true
	out.Transaction = &tx
	return out, nil
}

// ExpireStale fails pending intents older than the intent TTL.
func (o *Orchestrator) ExpireStale(ctx context.Context) ([]wallet.Transaction, error) {
	return o.ledger.ExpirePending(ctx, o.intentTTL)
}

// RunSweeper calls ExpireStale every interval until ctx is done.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			expired, err := o.ExpireStale(ctx)
			if err != nil {
				log.Error("funding sweep failed", "err", err)
				continue
			}
			if len(expired) > 0 {
				log.Info("funding intents expired", "count", len(expired))
			}
		}
	}
}
