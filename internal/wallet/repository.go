package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"payment-call-system/pkg/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresStore implements Store on the tables created by internal/migrations:
//   - wallets (UNIQUE owner_id, CHECK balance >= 0)
//   - wallet_transactions (UNIQUE reference)
//
// Balance changes never read-then-write from Go. Each one is a single
// conditional UPDATE inside the same transaction as its wallet_transactions
// row, so concurrent writers are ordered by the wallet row lock.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	walletColumns      = `id, owner_id, balance, currency, version, created_at, updated_at`
	transactionColumns = `id, wallet_id, owner_id, type, amount, reference, status, metadata, created_at, updated_at`

	referenceConstraint = "wallet_transactions_reference_key"
)

func (s *PostgresStore) EnsureWallet(ctx context.Context, ownerID, currency string, now time.Time) (Wallet, error) {
	// The loser of a first-access race hits the owner_id constraint, does nothing,
	// and reads the winner's row below.
	const insert = `
INSERT INTO wallets (id, owner_id, balance, currency, version, created_at, updated_at)
VALUES ($1, $2, 0, $3, 0, $4, $4)
ON CONFLICT (owner_id) DO NOTHING
`
	if _, err := s.db.ExecContext(ctx, insert, uuid.NewString(), ownerID, currency, now); err != nil {
		return Wallet{}, mapPgErr(err)
	}
	return s.WalletByOwner(ctx, ownerID)
}

func (s *PostgresStore) WalletByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	const q = `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1`
	var w Wallet
	if err := s.db.GetContext(ctx, &w, q, ownerID); err != nil {
		return Wallet{}, mapPgErr(err)
	}
	return w, nil
}

func (s *PostgresStore) TransactionByReference(ctx context.Context, reference string) (Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE reference = $1`
	var t Transaction
	if err := s.db.GetContext(ctx, &t, q, reference); err != nil {
		return Transaction{}, mapPgErr(err)
	}
	return t, nil
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, t Transaction) error {
	_, err := s.db.NamedExecContext(ctx, insertTransactionSQL, t)
	return mapPgErr(err)
}

const insertTransactionSQL = `
INSERT INTO wallet_transactions (
  id, wallet_id, owner_id, type, amount, reference, status, metadata, created_at, updated_at
) VALUES (
  :id, :wallet_id, :owner_id, :type, :amount, :reference, :status, :metadata, :created_at, :updated_at
)
`

func (s *PostgresStore) SettleCredit(ctx context.Context, reference string, amount int64, now time.Time) (Transaction, Wallet, error) {
	// The row lock taken by this UPDATE makes a concurrent settlement of the same
	// reference wait, then re-check status and match nothing.
	const settle = `
UPDATE wallet_transactions
SET status = 'success',
    amount = $2,
    updated_at = $3,
    metadata = metadata || jsonb_build_object('paidOn', $3::timestamptz, 'requestedAmount', amount)
WHERE reference = $1 AND type = 'credit' AND status = 'pending'
RETURNING ` + transactionColumns

	const increment = `
UPDATE wallets
SET balance = balance + $2, version = version + 1, updated_at = $3
WHERE id = $1
RETURNING ` + walletColumns

	var (
		outTx Transaction
		outW  Wallet
	)
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &outTx, settle, reference, amount, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errNotPending
			}
			return err
		}
		if err := tx.GetContext(ctx, &outW, increment, outTx.WalletID, amount, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return Transaction{}, Wallet{}, mapPgErr(err)
	}
	return outTx, outW, nil
}

func (s *PostgresStore) ApplyDebit(ctx context.Context, t Transaction, now time.Time) (Wallet, error) {
	// balance >= $2 is the admission condition; zero rows means it failed.
	const decrement = `
UPDATE wallets
SET balance = balance - $2, version = version + 1, updated_at = $3
WHERE id = $1 AND balance >= $2
RETURNING ` + walletColumns

	var outW Wallet
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		// Insert first so a replayed reference fails before touching the balance.
		if _, err := tx.NamedExecContext(ctx, insertTransactionSQL, t); err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &outW, decrement, t.WalletID, t.Amount, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInsufficientFunds
			}
			return err
		}
		return nil
	})
	if err != nil {
		return Wallet{}, mapPgErr(err)
	}
	return outW, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, ownerID string, limit int) ([]Transaction, error) {
	const q = `
SELECT ` + transactionColumns + `
FROM wallet_transactions
WHERE owner_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`
	out := []Transaction{}
	if err := s.db.SelectContext(ctx, &out, q, ownerID, limit); err != nil {
		return nil, mapPgErr(err)
	}
	return out, nil
}

func (s *PostgresStore) ExpirePending(ctx context.Context, before, now time.Time) ([]Transaction, error) {
	const q = `
UPDATE wallet_transactions
SET status = 'failed',
    updated_at = $2,
    metadata = metadata || jsonb_build_object('expiredAt', $2::timestamptz)
WHERE type = 'credit' AND status = 'pending' AND created_at < $1
RETURNING ` + transactionColumns

	out := []Transaction{}
	if err := s.db.SelectContext(ctx, &out, q, before, now); err != nil {
		return nil, mapPgErr(err)
	}
	return out, nil
}

// mapPgErr turns driver errors into ledger errors; others pass through.
func mapPgErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case utils.IsUniqueViolation(err, referenceConstraint):
		return ErrDuplicateReference
	case utils.IsCheckViolation(err):
		// wallets_balance_check; the conditional UPDATE should have prevented it.
		return ErrInsufficientFunds
	case utils.IsRetryable(err):
		return ErrConflict
	default:
		return err
	}
}
