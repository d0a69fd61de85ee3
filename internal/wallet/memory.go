package wallet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and APP_STORE=memory.
// One mutex guards everything, which trivially linearizes all mutations.
type MemoryStore struct {
	mu      sync.Mutex
	wallets map[string]*Wallet // by owner id
	byRef   map[string]*Transaction
	txs     []*Transaction // insertion order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets: make(map[string]*Wallet),
		byRef:   make(map[string]*Transaction),
	}
}

func (s *MemoryStore) EnsureWallet(ctx context.Context, ownerID, currency string, now time.Time) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wallets[ownerID]; ok {
		return *w, nil
	}
	w := &Wallet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.wallets[ownerID] = w
	return *w, nil
}

func (s *MemoryStore) WalletByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[ownerID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return *w, nil
}

func (s *MemoryStore) TransactionByReference(ctx context.Context, reference string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byRef[reference]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return copyTx(t), nil
}

func (s *MemoryStore) CreateTransaction(ctx context.Context, t Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(t)
}

func (s *MemoryStore) SettleCredit(ctx context.Context, reference string, amount int64, now time.Time) (Transaction, Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byRef[reference]
	if !ok || t.Type != TransactionTypeCredit || t.Status != TransactionStatusPending {
		return Transaction{}, Wallet{}, errNotPending
	}
	w := s.walletByIDLocked(t.WalletID)
	if w == nil {
		return Transaction{}, Wallet{}, ErrNotFound
	}

	meta := t.Metadata.clone()
	if meta == nil {
		meta = Metadata{}
	}
	meta["paidOn"] = now
	meta["requestedAmount"] = t.Amount

	t.Status = TransactionStatusSuccess
	t.Amount = amount
	t.Metadata = meta
	t.UpdatedAt = now

	w.Balance += amount
	w.Version++
	w.UpdatedAt = now
	return copyTx(t), *w, nil
}

func (s *MemoryStore) ApplyDebit(ctx context.Context, t Transaction, now time.Time) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byRef[t.Reference]; ok {
		return Wallet{}, ErrDuplicateReference
	}
	w := s.walletByIDLocked(t.WalletID)
	if w == nil {
		return Wallet{}, ErrNotFound
	}
	if w.Balance < t.Amount {
		return Wallet{}, ErrInsufficientFunds
	}
	if err := s.insertLocked(t); err != nil {
		return Wallet{}, err
	}
	w.Balance -= t.Amount
	w.Version++
	w.UpdatedAt = now
	return *w, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, ownerID string, limit int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Transaction{}
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].OwnerID == ownerID {
			out = append(out, copyTx(s.txs[i]))
		}
	}
	// Insertion order already approximates recency; sort keeps injected clocks honest.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ExpirePending(ctx context.Context, before, now time.Time) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Transaction{}
	for _, t := range s.txs {
		if t.Type != TransactionTypeCredit || t.Status != TransactionStatusPending || !t.CreatedAt.Before(before) {
			continue
		}
		meta := t.Metadata.clone()
		if meta == nil {
			meta = Metadata{}
		}
		meta["expiredAt"] = now
		t.Status = TransactionStatusFailed
		t.Metadata = meta
		t.UpdatedAt = now
		out = append(out, copyTx(t))
	}
	return out, nil
}

func (s *MemoryStore) insertLocked(t Transaction) error {
	if _, ok := s.byRef[t.Reference]; ok {
		return ErrDuplicateReference
	}
	c := copyTx(&t)
	s.byRef[t.Reference] = &c
	s.txs = append(s.txs, &c)
	return nil
}

func (s *MemoryStore) walletByIDLocked(id string) *Wallet {
	for _, w := range s.wallets {
		if w.ID == id {
			return w
		}
	}
	return nil
}

func copyTx(t *Transaction) Transaction {
	out := *t
	out.Metadata = t.Metadata.clone()
	return out
}
