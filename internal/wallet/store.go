package wallet

import (
	"context"
	"time"
)

// Store is the persistence contract of the ledger.
//
// Every method that changes a balance does so in one unit of work together with
// the transaction row it belongs to. Implementations report:
//   - ErrDuplicateReference when a reference already exists,
//   - ErrInsufficientFunds when a conditional decrement finds balance < amount,
//   - ErrConflict when the backend aborted the unit of work on contention,
//   - ErrNotFound for missing wallets or transactions.
type Store interface {
	// EnsureWallet returns the owner's wallet, creating it with zero balance.
	// Concurrent first calls for one owner must all observe the same row.
	EnsureWallet(ctx context.Context, ownerID, currency string, now time.Time) (Wallet, error)
	WalletByOwner(ctx context.Context, ownerID string) (Wallet, error)

	TransactionByReference(ctx context.Context, reference string) (Transaction, error)
	// CreateTransaction inserts a row as-is; used for pending credits.
	CreateTransaction(ctx context.Context, t Transaction) error

	// SettleCredit moves a pending credit to success with the paid amount and
	// increments the wallet balance by it. Returns errNotPending when the row is
	// no longer pending.
	SettleCredit(ctx context.Context, reference string, amount int64, now time.Time) (Transaction, Wallet, error)

	// ApplyDebit inserts a success debit and decrements the wallet by t.Amount
	// if and only if the balance covers it.
	ApplyDebit(ctx context.Context, t Transaction, now time.Time) (Wallet, error)

	// ListTransactions returns newest first.
	ListTransactions(ctx context.Context, ownerID string, limit int) ([]Transaction, error)

	// ExpirePending fails pending credits created before the cutoff.
	ExpirePending(ctx context.Context, before, now time.Time) ([]Transaction, error)
}
