package calls

import (
	"errors"
	"time"
)

// Session is one call attempt between two users.
//
// Invariants:
//   - CallerID != ReceiverID
//   - EndedAt, DurationMinutes and TotalCost are written once, by the terminal transition
//   - an ended session has exactly one debit in the wallet ledger, referenced by DebitReference
//
// Money is never stored here beyond the settled TotalCost; the ledger is the
// source of truth for what was charged.
type Session struct {
	ID         string `json:"id" db:"id"`
	CallerID   string `json:"caller_id" db:"caller_id"`
	ReceiverID string `json:"receiver_id" db:"receiver_id"`

	Status Status `json:"status" db:"status"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	DurationMinutes int64 `json:"duration_minutes" db:"duration_minutes"`
	CostPerMinute   int64 `json:"cost_per_minute" db:"cost_per_minute"`
	TotalCost       int64 `json:"total_cost" db:"total_cost"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Status follows initiated -> ringing -> active -> ended, with failed reachable
// from any non-terminal state. ringing and active are set by signaling, which
// lives outside this service.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusRinging   Status = "ringing"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusFailed    Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusEnded || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal step of the state machine.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case StatusFailed, StatusEnded:
		return true
	case StatusRinging:
		return from == StatusInitiated
	case StatusActive:
		return from == StatusInitiated || from == StatusRinging
	default:
		return false
	}
}

func (s Session) IsParticipant(userID string) bool {
	return userID != "" && (s.CallerID == userID || s.ReceiverID == userID)
}

var (
	ErrNotFound         = errors.New("call session not found")
	ErrUnauthorized     = errors.New("not allowed to act on this call")
	ErrInvalidOperand   = errors.New("cannot call yourself")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrCallFailed       = errors.New("call settlement failed")
	ErrCallLimitReached = errors.New("too many open calls")

	// errAlreadyTerminal is returned by stores when another writer finalized first.
	errAlreadyTerminal = errors.New("call session already terminal")
)
