package users

import (
	"context"
	"database/sql"
	"errors"

	"payment-call-system/pkg/utils"

	"github.com/jmoiron/sqlx"
)

type PostgresRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, u User) error {
	const q = `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (:id, :email, :password_hash, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, q, u)
	if utils.IsUniqueViolation(err, "users_email_key") {
		return ErrEmailTaken
	}
	return err
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	const q = `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`
	var u User
	err := r.db.GetContext(ctx, &u, q, email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}
