package payments

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// StatusPaid is the only payment status that moves money. Comparison is case-sensitive.
const StatusPaid = "PAID"

var (
	ErrMalformedNotification = errors.New("malformed payment notification")
	ErrSubMinorAmount        = errors.New("amount has a fraction smaller than the minor unit")
	ErrNonPositiveAmount     = errors.New("amount must be positive")
	ErrAmountOverflow        = errors.New("amount overflows minor units")
)

// Notification is the provider's payment callback, parsed from the raw body.
// AmountPaid is in major units (e.g. naira), as the provider sends it.
type Notification struct {
	TransactionReference string          `json:"transactionReference"`
	PaymentReference     string          `json:"paymentReference"`
	AmountPaid           decimal.Decimal `json:"amountPaid"`
	PaymentStatus        string          `json:"paymentStatus"`
	PaymentMethod        string          `json:"paymentMethod,omitempty"`
	PaidOn               string          `json:"paidOn,omitempty"`
}

// envelope is the wrapped form the provider uses for event webhooks.
type envelope struct {
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData"`
}

// ParseNotification accepts both the flat payload and the
// {"eventType": ..., "eventData": {...}} envelope.
func ParseNotification(raw []byte) (Notification, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Notification{}, errors.Join(ErrMalformedNotification, err)
	}
	body := raw
	if len(env.EventData) > 0 && string(env.EventData) != "null" {
		body = env.EventData
	}

	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, errors.Join(ErrMalformedNotification, err)
	}
	n.PaymentReference = strings.TrimSpace(n.PaymentReference)
	n.TransactionReference = strings.TrimSpace(n.TransactionReference)
	if n.PaymentReference == "" || n.PaymentStatus == "" {
		return Notification{}, ErrMalformedNotification
	}
	return n, nil
}

func (n Notification) Paid() bool { return n.PaymentStatus == StatusPaid }

// ToMinorUnits converts a major-unit amount to integer minor units exactly.
// exponent is the currency's minor-unit exponent (2 for NGN).
func ToMinorUnits(d decimal.Decimal, exponent int32) (int64, error) {
	m := d.Shift(exponent)
	if !m.Equal(m.Truncate(0)) {
		return 0, ErrSubMinorAmount
	}
	if !m.IsPositive() {
		return 0, ErrNonPositiveAmount
	}
	if m.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrAmountOverflow
	}
	return m.IntPart(), nil
}

// FormatMinor renders minor units as a fixed-point major-unit string ("1500.00").
func FormatMinor(amount int64, exponent int32) string {
	return decimal.New(amount, -exponent).StringFixed(exponent)
}
