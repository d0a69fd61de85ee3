package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"payment-call-system/internal/wallet"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TransactionEvent is the message body for every committed balance change.
type TransactionEvent struct {
	TransactionID string          `json:"transaction_id"`
	WalletID      string          `json:"wallet_id"`
	OwnerID       string          `json:"owner_id"`
	Type          string          `json:"type"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency"`
	Reference     string          `json:"reference"`
	Status        string          `json:"status"`
	BalanceAfter  int64           `json:"balance_after"`
	WalletVersion int64           `json:"wallet_version"`
	Metadata      wallet.Metadata `json:"metadata,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// KafkaPublisher implements wallet.Publisher. Messages are keyed by owner so
// one wallet's events stay ordered on a single partition.
// Publishing is best-effort: failures are logged and never reach the caller.
type KafkaPublisher struct {
	w       Writer
	log     *slog.Logger
	timeout time.Duration
}

func NewKafkaPublisher(w Writer, log *slog.Logger) *KafkaPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaPublisher{w: w, log: log, timeout: 5 * time.Second}
}

func NewEvent(t wallet.Transaction, w wallet.Wallet) TransactionEvent {
	return TransactionEvent{
		TransactionID: t.ID,
		WalletID:      t.WalletID,
		OwnerID:       t.OwnerID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		Currency:      w.Currency,
		Reference:     t.Reference,
		Status:        string(t.Status),
		BalanceAfter:  w.Balance,
		WalletVersion: w.Version,
		Metadata:      t.Metadata,
		OccurredAt:    t.UpdatedAt,
	}
}

func (p *KafkaPublisher) PublishTransaction(ctx context.Context, t wallet.Transaction, w wallet.Wallet) {
	ev := NewEvent(t, w)
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("ledger event marshal failed", "reference", t.Reference, "err", err)
		return
	}

	// The money operation already committed; a canceled request must not drop the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(t.OwnerID),
		Value: data,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "reference", Value: []byte(t.Reference)},
			{Key: "type", Value: []byte(t.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.log.Error("ledger event publish failed", "reference", t.Reference, "err", err)
		return
	}
	p.log.Debug("ledger event published", "reference", t.Reference, "type", t.Type)
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
