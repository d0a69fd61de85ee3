package wallet

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is the ledger engine. It is the only code allowed to change balances.
//
// Money invariants:
//   - balance >= 0 before and after every operation
//   - balance == sum(success credits) - sum(success debits)
//   - a reference is applied at most once
//
// The service does not log. Callers at the boundary do.
type Service struct {
	store      Store
	currency   string
	maxRetries int
	publisher  Publisher

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

// Publisher receives committed balance changes. It must not block for long and
// its failures never undo the money operation.
type Publisher interface {
	PublishTransaction(ctx context.Context, t Transaction, w Wallet)
}

const (
	DefaultListLimit  = 20
	defaultMaxRetries = 3
)

func NewService(store Store, currency string, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Service{
		store:      store,
		currency:   strings.ToUpper(currency),
		maxRetries: maxRetries,
		clock:      time.Now,
	}
}

// SetPublisher attaches an event sink. nil disables publishing.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

func (s *Service) Currency() string { return s.currency }

// GetOrCreate returns the owner's wallet, creating an empty one on first access.
func (s *Service) GetOrCreate(ctx context.Context, ownerID string) (Wallet, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Wallet{}, ErrInvalidArgument
	}
	var w Wallet
	err := s.retry(ctx, func() error {
		var err error
		w, err = s.store.EnsureWallet(ctx, ownerID, s.currency, s.clock().UTC())
		return err
	})
	return w, err
}

// GetBalance always reads the store. An owner without a wallet has a zero balance.
func (s *Service) GetBalance(ctx context.Context, ownerID string) (Balance, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Balance{}, ErrInvalidArgument
	}
	w, err := s.store.WalletByOwner(ctx, ownerID)
	if errors.Is(err, ErrNotFound) {
		return Balance{OwnerID: ownerID, Balance: 0, Currency: s.currency}, nil
	}
	if err != nil {
		return Balance{}, err
	}
	return Balance{OwnerID: w.OwnerID, Balance: w.Balance, Currency: w.Currency}, nil
}

// RegisterPending records a pending credit for a funding intent.
// The same reference for the same owner returns the existing record unchanged;
// a reference held by anything else is ErrDuplicateReference.
func (s *Service) RegisterPending(ctx context.Context, ownerID string, amount int64, reference string, meta Metadata) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(reference) == "" {
		return Transaction{}, ErrInvalidArgument
	}

	if existing, err := s.store.TransactionByReference(ctx, reference); err == nil {
		return sameOwnerCredit(existing, ownerID)
	} else if !errors.Is(err, ErrNotFound) {
		return Transaction{}, err
	}

	w, err := s.GetOrCreate(ctx, ownerID)
	if err != nil {
		return Transaction{}, err
	}

	now := s.clock().UTC()
	t := Transaction{
		ID:        uuid.NewString(),
		WalletID:  w.ID,
		OwnerID:   ownerID,
		Type:      TransactionTypeCredit,
		Amount:    amount,
		Reference: reference,
		Status:    TransactionStatusPending,
		Metadata:  meta.clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.retry(ctx, func() error { return s.store.CreateTransaction(ctx, t) })
	if errors.Is(err, ErrDuplicateReference) {
		// Lost a race on the same reference; decide on the winner's row.
		existing, rerr := s.store.TransactionByReference(ctx, reference)
		if rerr != nil {
			return Transaction{}, rerr
		}
		return sameOwnerCredit(existing, ownerID)
	}
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func sameOwnerCredit(t Transaction, ownerID string) (Transaction, error) {
	if t.OwnerID != ownerID || t.Type != TransactionTypeCredit {
		return Transaction{}, ErrDuplicateReference
	}
	return t, nil
}

// Credit settles the pending credit registered under reference.
//
// Idempotent by reference: an already successful credit is returned unchanged
// and the balance is not touched again. A credit whose intent expired returns
// ErrIntentExpired and is never applied.
func (s *Service) Credit(ctx context.Context, reference string, amount int64) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if strings.TrimSpace(reference) == "" {
		return Transaction{}, ErrInvalidArgument
	}

	// Two passes at most: the second one observes the outcome of a concurrent
	// settlement of the same reference.
	for pass := 0; pass < 2; pass++ {
		t, err := s.store.TransactionByReference(ctx, reference)
		if err != nil {
			return Transaction{}, err
		}
		if t.Type != TransactionTypeCredit {
			return Transaction{}, ErrNotFound
		}
		switch t.Status {
		case TransactionStatusSuccess:
			return t, nil
		case TransactionStatusFailed:
			return Transaction{}, ErrIntentExpired
		}

		var (
			settled Transaction
			w       Wallet
		)
		err = s.retry(ctx, func() error {
			var err error
			settled, w, err = s.store.SettleCredit(ctx, reference, amount, s.clock().UTC())
			return err
		})
		if errors.Is(err, errNotPending) {
			continue
		}
		if err != nil {
			return Transaction{}, err
		}
		s.publish(ctx, settled, w)
		return settled, nil
	}
	return Transaction{}, ErrConflict
}

// Debit takes amount from the owner's wallet and records a success debit in the
// same unit of work. Replaying a reference for the same owner returns the
// original debit without a second effect.
func (s *Service) Debit(ctx context.Context, ownerID string, amount int64, reference string, meta Metadata) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(reference) == "" {
		return Transaction{}, ErrInvalidArgument
	}

	if existing, err := s.store.TransactionByReference(ctx, reference); err == nil {
		return sameOwnerDebit(existing, ownerID)
	} else if !errors.Is(err, ErrNotFound) {
		return Transaction{}, err
	}

	w, err := s.GetOrCreate(ctx, ownerID)
	if err != nil {
		return Transaction{}, err
	}

	now := s.clock().UTC()
	t := Transaction{
		ID:        uuid.NewString(),
		WalletID:  w.ID,
		OwnerID:   ownerID,
		Type:      TransactionTypeDebit,
		Amount:    amount,
		Reference: reference,
		Status:    TransactionStatusSuccess,
		Metadata:  meta.clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	var after Wallet
	err = s.retry(ctx, func() error {
		var err error
		after, err = s.store.ApplyDebit(ctx, t, s.clock().UTC())
		return err
	})
	if errors.Is(err, ErrDuplicateReference) {
		existing, rerr := s.store.TransactionByReference(ctx, reference)
		if rerr != nil {
			return Transaction{}, rerr
		}
		return sameOwnerDebit(existing, ownerID)
	}
	if err != nil {
		return Transaction{}, err
	}
	s.publish(ctx, t, after)
	return t, nil
}

func sameOwnerDebit(t Transaction, ownerID string) (Transaction, error) {
	if t.OwnerID != ownerID || t.Type != TransactionTypeDebit {
		return Transaction{}, ErrDuplicateReference
	}
	return t, nil
}

// GetTransaction looks a transaction up by its reference.
func (s *Service) GetTransaction(ctx context.Context, reference string) (Transaction, error) {
	if strings.TrimSpace(reference) == "" {
		return Transaction{}, ErrInvalidArgument
	}
	return s.store.TransactionByReference(ctx, reference)
}

// ListTransactions returns up to limit records, newest first.
func (s *Service) ListTransactions(ctx context.Context, ownerID string, limit int) ([]Transaction, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.store.ListTransactions(ctx, ownerID, limit)
}

// ExpirePending fails pending credits older than ttl and returns them.
func (s *Service) ExpirePending(ctx context.Context, ttl time.Duration) ([]Transaction, error) {
	if ttl <= 0 {
		return nil, ErrInvalidArgument
	}
	now := s.clock().UTC()
	var out []Transaction
	err := s.retry(ctx, func() error {
		var err error
		out, err = s.store.ExpirePending(ctx, now.Add(-ttl), now)
		return err
	})
	return out, err
}

// retry re-runs fn while the store reports ErrConflict, up to maxRetries times.
func (s *Service) retry(ctx context.Context, fn func() error) error {
	err := fn()
	for attempt := 1; attempt <= s.maxRetries && errors.Is(err, ErrConflict); attempt++ {
		t := time.NewTimer(time.Duration(attempt) * 10 * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		err = fn()
	}
	return err
}

func (s *Service) publish(ctx context.Context, t Transaction, w Wallet) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishTransaction(ctx, t, w)
}
