package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment-call-system/internal/pricing"
	"payment-call-system/internal/wallet"

	"github.com/google/uuid"
)

// Ledger is the part of the wallet engine the billing engine needs.
type Ledger interface {
	GetBalance(ctx context.Context, ownerID string) (wallet.Balance, error)
	Debit(ctx context.Context, ownerID string, amount int64, reference string, meta wallet.Metadata) (wallet.Transaction, error)
}

// Auditor records calls that could not be paid for.
type Auditor interface {
	LogCallSettlementFailed(ctx context.Context, callerID, callID, reference string, owed int64) error
}

// Service is the call billing engine. It converts elapsed time into exactly one
// debit per session and finalizes the session only after the debit committed.
type Service struct {
	store   Store
	ledger  Ledger
	plan    pricing.Plan
	limiter Limiter
	auditor Auditor

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

const DefaultHistoryLimit = 20

func NewService(store Store, ledger Ledger, plan pricing.Plan) *Service {
	return &Service{
		store:   store,
		ledger:  ledger,
		plan:    plan,
		limiter: NoopLimiter{},
		clock:   time.Now,
	}
}

func (s *Service) SetLimiter(l Limiter) {
	if l == nil {
		l = NoopLimiter{}
	}
	s.limiter = l
}

func (s *Service) SetAuditor(a Auditor) { s.auditor = a }

// InitiateCall admits a call when the caller can pay for at least one minute.
// Nothing is reserved; the balance is only checked.
func (s *Service) InitiateCall(ctx context.Context, callerID, receiverID string, costPerMinute int64) (Session, error) {
	callerID = strings.TrimSpace(callerID)
	receiverID = strings.TrimSpace(receiverID)
	if callerID == "" || receiverID == "" {
		return Session{}, ErrInvalidArgument
	}
	if callerID == receiverID {
		return Session{}, ErrInvalidOperand
	}
	if costPerMinute <= 0 {
		return Session{}, wallet.ErrInvalidAmount
	}

	bal, err := s.ledger.GetBalance(ctx, callerID)
	if err != nil {
		return Session{}, err
	}
	if bal.Balance < costPerMinute {
		return Session{}, wallet.ErrInsufficientFunds
	}

	if err := s.limiter.Acquire(ctx, callerID); err != nil {
		return Session{}, err
	}

	// Postgres keeps microseconds; truncate so the debit reference survives a round trip.
	now := s.clock().UTC().Truncate(time.Microsecond)
	sess := Session{
		ID:            uuid.NewString(),
		CallerID:      callerID,
		ReceiverID:    receiverID,
		Status:        StatusInitiated,
		StartedAt:     now,
		CostPerMinute: costPerMinute,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, sess); err != nil {
		_ = s.limiter.Release(ctx, callerID)
		return Session{}, err
	}
	return sess, nil
}

// DebitReferencePrefix marks ledger debits made by call settlement.
const DebitReferencePrefix = "CALL_"

// DebitReference is the ledger reference of a session's single debit.
// It depends only on stored fields, so a retried EndCall replays the same debit.
func DebitReference(sess Session) string {
	return fmt.Sprintf("%s%s_%d", DebitReferencePrefix, sess.ID, sess.StartedAt.UnixMilli())
}

// EndCall settles a session. Ending an ended session returns it unchanged.
//
// When the debit fails for lack of funds the session is moved to failed with
// zero cost, the unpaid amount is audited, and wallet.ErrInsufficientFunds is
// returned. Later EndCall calls on that session return ErrCallFailed.
func (s *Service) EndCall(ctx context.Context, sessionID, requesterID string) (Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.CallerID != requesterID {
		return Session{}, ErrUnauthorized
	}
	switch sess.Status {
	case StatusEnded:
		return sess, nil
	case StatusFailed:
		return Session{}, ErrCallFailed
	}

	now := s.clock().UTC()
	cost, err := s.plan.Quote(now.Sub(sess.StartedAt), sess.CostPerMinute)
	if err != nil {
		return Session{}, err
	}

	ref := DebitReference(sess)
	debit, err := s.ledger.Debit(ctx, sess.CallerID, cost.Total, ref, wallet.Metadata{
		"callId":          sess.ID,
		"durationMinutes": cost.BillableMinutes,
		"costPerMinute":   sess.CostPerMinute,
	})
	if errors.Is(err, wallet.ErrInsufficientFunds) {
		return Session{}, s.failUnpaid(ctx, sess, ref, cost, now, err)
	}
	if err != nil {
		return Session{}, err
	}

	// A replayed debit (crash after debit, before finalize) carries the
	// originally charged figures; settle from those.
	minutes, endedAt := cost.BillableMinutes, now
	if m, ok := debit.Metadata.Int64("durationMinutes"); ok && (m != minutes || debit.Amount != cost.Total) {
		minutes = m
		if !debit.CreatedAt.IsZero() {
			endedAt = debit.CreatedAt.UTC()
		}
	}

	ended := sess
	ended.Status = StatusEnded
	ended.EndedAt = &endedAt
	ended.DurationMinutes = minutes
	ended.TotalCost = debit.Amount
	ended.UpdatedAt = now

	out, err := s.store.Finalize(ctx, ended)
	if errors.Is(err, errAlreadyTerminal) {
		// A concurrent EndCall settled first with the same debit reference.
		return s.terminalState(ctx, sess.ID)
	}
	if err != nil {
		return Session{}, err
	}
	_ = s.limiter.Release(ctx, sess.CallerID)
	return out, nil
}

func (s *Service) failUnpaid(ctx context.Context, sess Session, ref string, cost pricing.CallCost, now time.Time, cause error) error {
	failed := sess
	failed.Status = StatusFailed
	failed.EndedAt = &now
	failed.DurationMinutes = cost.BillableMinutes
	failed.TotalCost = 0
	failed.UpdatedAt = now

	_, err := s.store.Finalize(ctx, failed)
	if errors.Is(err, errAlreadyTerminal) {
		// The concurrent winner released the slot and audited.
		return cause
	}
	if err != nil {
		return errors.Join(cause, err)
	}
	_ = s.limiter.Release(ctx, sess.CallerID)
	if s.auditor != nil {
		// best-effort
		_ = s.auditor.LogCallSettlementFailed(ctx, sess.CallerID, sess.ID, ref, cost.Total)
	}
	return cause
}

func (s *Service) terminalState(ctx context.Context, id string) (Session, error) {
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if cur.Status == StatusFailed {
		return Session{}, ErrCallFailed
	}
	return cur, nil
}

// History returns sessions where ownerID is caller or receiver, newest first.
func (s *Service) History(ctx context.Context, ownerID string, limit int) ([]Session, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.store.ListByParticipant(ctx, ownerID, limit)
}

func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return s.store.Get(ctx, id)
}

// GetForParticipant is Get restricted to the two parties of the call.
func (s *Service) GetForParticipant(ctx context.Context, id, requesterID string) (Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !sess.IsParticipant(requesterID) {
		return Session{}, ErrUnauthorized
	}
	return sess, nil
}
