package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// Audit is internal-only and callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAdjustment records a manual credit or debit made by an admin.
func (s *Service) LogAdminAdjustment(ctx context.Context, actorUserID, actorRole, ip, ownerID, reference string, amount int64, direction, reason string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAdminAdjustment,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		OwnerID:     ownerID,
		Reference:   reference,
		Amount:      amount,
		Message:     "manual " + direction,
		Metadata:    encode(map[string]any{"direction": direction, "reason": reason}),
	})
}

// LogSignatureRejected records a payment callback that failed verification.
func (s *Service) LogSignatureRejected(ctx context.Context, ip string, bodySize int) error {
	return s.Append(ctx, Event{
		Type:      EventTypeSignatureRejected,
		IPAddress: ip,
		Message:   "webhook signature rejected",
		Metadata:  encode(map[string]any{"bodySize": bodySize}),
	})
}

// LogLatePayment records a PAID callback for an intent that had already expired.
// These need manual reconciliation.
func (s *Service) LogLatePayment(ctx context.Context, ownerID, reference string, amount int64, paidOn string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeLatePayment,
		OwnerID:   ownerID,
		Reference: reference,
		Amount:    amount,
		Message:   "payment received for expired intent",
		Metadata:  encode(map[string]any{"paidOn": paidOn}),
	})
}

// LogCallSettlementFailed records a call that ended without being paid for.
func (s *Service) LogCallSettlementFailed(ctx context.Context, callerID, callID, reference string, owed int64) error {
	return s.Append(ctx, Event{
		Type:      EventTypeSettlementFailed,
		OwnerID:   callerID,
		CallID:    callID,
		Reference: reference,
		Amount:    owed,
		Message:   "call debit failed: insufficient funds",
	})
}

func encode(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
