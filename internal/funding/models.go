package funding

import (
	"time"

	"payment-call-system/internal/payments"
	"payment-call-system/internal/wallet"
)

// Intent is a registered, not yet paid, funding request.
type Intent struct {
	Reference    string                   `json:"reference"`
	OwnerID      string                   `json:"owner_id"`
	AmountMinor  int64                    `json:"amount_minor"`
	Currency     string                   `json:"currency"`
	Status       wallet.TransactionStatus `json:"status"`
	ExpiresAt    time.Time                `json:"expires_at"`
	Instructions payments.Instructions    `json:"instructions"`
}

// Callback is an unverified provider notification exactly as received.
type Callback struct {
	RawBody   []byte
	Signature string
	RemoteIP  string
}

// Confirmation reports what a callback did.
//
// Credited is true when the reference is settled (now or by an earlier delivery).
// Expired is true when the payment arrived for an intent that was already failed;
// nothing is credited and the event is audited for reconciliation.
type Confirmation struct {
	Reference   string              `json:"reference"`
	Status      string              `json:"status"`
	Credited    bool                `json:"credited"`
	Expired     bool                `json:"expired,omitempty"`
	Transaction *wallet.Transaction `json:"transaction,omitempty"`
}
