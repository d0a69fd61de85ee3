package audit

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type PostgresRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
		INSERT INTO audit_events (
			id, type, actor_user_id, actor_role, ip_address,
			owner_id, reference, call_id, amount, message, metadata, created_at
		) VALUES (
			:id, :type, :actor_user_id, :actor_role, :ip_address,
			:owner_id, :reference, :call_id, :amount, :message, :metadata, :created_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, q, e)
	return err
}
