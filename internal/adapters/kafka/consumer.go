package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

// Consumer reads one topic as part of a consumer group. Offsets are
// committed explicitly, so a message is redelivered if the process dies
// between Fetch and Commit.
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string
	// MaxWait bounds how long a fetch waits for a batch to fill; report
	// events are small and rare, so the default favours latency
	MaxWait time.Duration
}

// NewConsumer creates a group reader starting from the earliest uncommitted offset
func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        cfg.MaxWait,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})

	log := logger.Get().With("component", "kafka_consumer", "topic", cfg.Topic)
	log.Infow("Kafka consumer created", "brokers", cfg.Brokers, "group_id", cfg.GroupID)
	return &Consumer{reader: reader, log: log}
}

// Fetch blocks for the next message without committing it. It returns
// ctx.Err() once the context is done.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return kafka.Message{}, ctx.Err()
		}
		return kafka.Message{}, errors.Wrap(err, "fetch message")
	}
	return msg, nil
}

// Commit marks msg as processed for the group
func (c *Consumer) Commit(ctx context.Context, msg kafka.Message) error {
	return errors.Wrap(c.reader.CommitMessages(ctx, msg), "commit offset")
}

// Close leaves the group and closes the reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
