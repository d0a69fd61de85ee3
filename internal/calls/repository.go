package calls

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps sessions in call_sessions. The terminal update is
// conditional on the row still being open, so two concurrent EndCall
// requests cannot both finalize.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `id, caller_id, receiver_id, status, started_at, ended_at, duration_minutes, cost_per_minute, total_cost, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, s Session) error {
	const q = `
INSERT INTO call_sessions (` + sessionColumns + `)
VALUES (:id, :caller_id, :receiver_id, :status, :started_at, :ended_at, :duration_minutes, :cost_per_minute, :total_cost, :created_at, :updated_at)
`
	_, err := p.db.NamedExecContext(ctx, q, s)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM call_sessions WHERE id = $1`
	var s Session
	if err := p.db.GetContext(ctx, &s, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

func (p *PostgresStore) Finalize(ctx context.Context, s Session) (Session, error) {
	const q = `
UPDATE call_sessions
SET status = $2, ended_at = $3, duration_minutes = $4, total_cost = $5, updated_at = $6
WHERE id = $1 AND status NOT IN ('ended', 'failed')
RETURNING ` + sessionColumns

	var out Session
	err := p.db.GetContext(ctx, &out, q, s.ID, s.Status, s.EndedAt, s.DurationMinutes, s.TotalCost, s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, errAlreadyTerminal
	}
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

func (p *PostgresStore) ListByParticipant(ctx context.Context, ownerID string, limit int) ([]Session, error) {
	const q = `
SELECT ` + sessionColumns + `
FROM call_sessions
WHERE caller_id = $1 OR receiver_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`
	out := []Session{}
	if err := p.db.SelectContext(ctx, &out, q, ownerID, limit); err != nil {
		return nil, err
	}
	return out, nil
}
