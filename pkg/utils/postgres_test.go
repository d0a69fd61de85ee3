package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "pgx"), mock
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE wallets SET version = version + 1")
		return err
	})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	want := errors.New("boom")
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "wallet_transactions_reference_key"})
	if !IsUniqueViolation(unique, "") {
		t.Fatalf("expected unique violation")
	}
	if !IsUniqueViolation(unique, "wallet_transactions_reference_key") {
		t.Fatalf("expected constraint match")
	}
	if IsUniqueViolation(unique, "wallets_owner_id_key") {
		t.Fatalf("expected constraint mismatch")
	}
	if !IsRetryable(&pgconn.PgError{Code: "40001"}) || !IsRetryable(&pgconn.PgError{Code: "40P01"}) {
		t.Fatalf("expected retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain errors are not retryable")
	}
	if !IsCheckViolation(&pgconn.PgError{Code: "23514"}) {
		t.Fatalf("expected check violation")
	}
}
