package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted (a trigger enforces this in Postgres).
// - actor and ip capture are best-effort; money flows never wait on audit failures.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event, empty for provider callbacks.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers, filled depending on the event type.
	OwnerID   string `json:"owner_id,omitempty" db:"owner_id"`
	Reference string `json:"reference,omitempty" db:"reference"`
	CallID    string `json:"call_id,omitempty" db:"call_id"`

	// Amount in minor units.
	Amount int64 `json:"amount,omitempty" db:"amount"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON text.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAdminAdjustment   EventType = "admin_adjustment"
	EventTypeSignatureRejected EventType = "funding_signature_rejected"
	EventTypeLatePayment       EventType = "funding_late_payment"
	EventTypeSettlementFailed  EventType = "call_settlement_failed"
)
