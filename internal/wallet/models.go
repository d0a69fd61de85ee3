package wallet

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Wallet is the single balance of one owner.
// Invariant: Balance >= 0 and changes only together with a Transaction row.
// Version increases by one on every balance mutation.
type Wallet struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Balance   int64     `json:"balance" db:"balance"`
	Currency  string    `json:"currency" db:"currency"`
	Version   int64     `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Transaction is the audit record of one balance change.
// Reference is globally unique; Amount is always positive, in minor units.
type Transaction struct {
	ID        string            `json:"id" db:"id"`
	WalletID  string            `json:"wallet_id" db:"wallet_id"`
	OwnerID   string            `json:"owner_id" db:"owner_id"`
	Type      TransactionType   `json:"type" db:"type"`
	Amount    int64             `json:"amount" db:"amount"`
	Reference string            `json:"reference" db:"reference"`
	Status    TransactionStatus `json:"status" db:"status"`
	Metadata  Metadata          `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// TransactionStatus moves pending -> success or pending -> failed, once.
// Debits are written as success.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// AdjustmentReferencePrefix marks manual admin credits and debits.
const AdjustmentReferencePrefix = "ADJ_"

// Balance is the read model returned to callers.
type Balance struct {
	OwnerID  string `json:"owner_id"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// Metadata is an opaque attachment stored as JSONB.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("wallet: cannot scan %T into Metadata", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Int64 reads a numeric metadata value; JSON round trips turn ints into float64.
func (m Metadata) Int64(key string) (int64, bool) {
	switch v := m[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

func (m Metadata) clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("concurrent modification, retry later")
	ErrDuplicateReference = errors.New("duplicate reference")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrIntentExpired      = errors.New("funding intent expired")

	// errNotPending is returned by stores when a credit settlement finds the
	// transaction already moved out of pending by a concurrent call.
	errNotPending = errors.New("transaction not pending")
)
