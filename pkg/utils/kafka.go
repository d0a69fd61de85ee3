package utils

import (
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig controls the ledger event writer.
type KafkaConfig struct {
	Brokers []string
	Topic   string

	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

func (c KafkaConfig) withDefaults() KafkaConfig {
	out := c
	if out.BatchTimeout <= 0 {
		out.BatchTimeout = 50 * time.Millisecond
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 5 * time.Second
	}
	return out
}

// OpenKafkaWriter builds a writer keyed-hash balanced so every event for the
// same key lands on the same partition.
// kafka-go dials lazily; connectivity problems surface on the first write.
func OpenKafkaWriter(cfg KafkaConfig) (*kafka.Writer, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: false,
	}, nil
}
