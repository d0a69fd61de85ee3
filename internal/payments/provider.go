package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"payment-call-system/internal/config"
)

// Instructions tell the payer where and how much to pay.
type Instructions struct {
	Provider             string    `json:"provider"`
	TransactionReference string    `json:"transactionReference"`
	PaymentReference     string    `json:"paymentReference"`
	Amount               string    `json:"amount"`
	AmountMinor          int64     `json:"amountMinor"`
	Currency             string    `json:"currency"`
	AccountNumber        string    `json:"accountNumber"`
	AccountName          string    `json:"accountName"`
	BankName             string    `json:"bankName"`
	CheckoutURL          string    `json:"checkoutUrl"`
	ExpiresAt            time.Time `json:"expiresAt"`
}

type InstructionsRequest struct {
	Reference   string
	AmountMinor int64
	Currency    string
	Email       string
	ExpiresAt   time.Time
}

// Provider is the payment-provider boundary. No provider specifics leak past it.
type Provider interface {
	Name() string
	Instructions(ctx context.Context, req InstructionsRequest) (Instructions, error)
}

// MonnifyProvider builds bank-transfer and checkout instructions from static
// account configuration. It makes no outbound call.
type MonnifyProvider struct {
	cfg config.MonnifyConfig

	// MinorExponent is the currency's minor-unit exponent.
	MinorExponent int32
}

func NewMonnifyProvider(cfg config.MonnifyConfig) *MonnifyProvider {
	return &MonnifyProvider{cfg: cfg, MinorExponent: 2}
}

func (p *MonnifyProvider) Name() string { return "monnify" }

func (p *MonnifyProvider) Instructions(ctx context.Context, req InstructionsRequest) (Instructions, error) {
	if err := ctx.Err(); err != nil {
		return Instructions{}, err
	}
	if strings.TrimSpace(req.Reference) == "" {
		return Instructions{}, errors.New("reference is required")
	}
	if req.AmountMinor <= 0 {
		return Instructions{}, ErrNonPositiveAmount
	}
	return Instructions{
		Provider:             p.Name(),
		TransactionReference: req.Reference,
		PaymentReference:     req.Reference,
		Amount:               FormatMinor(req.AmountMinor, p.MinorExponent),
		AmountMinor:          req.AmountMinor,
		Currency:             req.Currency,
		AccountNumber:        p.cfg.AccountNumber,
		AccountName:          p.cfg.AccountName,
		BankName:             p.cfg.BankName,
		CheckoutURL:          strings.TrimRight(p.cfg.CheckoutBaseURL, "/") + "/" + req.Reference,
		ExpiresAt:            req.ExpiresAt.UTC(),
	}, nil
}
