package calls

import "context"

// Store persists call sessions.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)

	// Finalize writes the terminal fields of s if the stored row is not yet
	// terminal, and returns errAlreadyTerminal otherwise.
	Finalize(ctx context.Context, s Session) (Session, error)

	// ListByParticipant returns sessions where ownerID is caller or receiver, newest first.
	ListByParticipant(ctx context.Context, ownerID string, limit int) ([]Session, error)
}
