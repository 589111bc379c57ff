package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/embedding"
	"github.com/kaleem-ai/vectorsearch/internal/indexer"
	"github.com/kaleem-ai/vectorsearch/internal/logger"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

// Config selects the topic and consumer group.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds Kafka messages to a Handler. A message is committed only
// after it was applied or found to be invalid; failures are retried with
// backoff until the context ends.
type Consumer struct {
	reader     MessageReader
	handler    *Handler
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

// NewConsumer creates a consumer group reader for cfg.
func NewConsumer(cfg Config, handler *Handler, log *zap.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer needs brokers, topic and group id")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	return newConsumer(reader, handler, log), nil
}

func newConsumer(reader MessageReader, handler *Handler, log *zap.Logger) *Consumer {
	return &Consumer{
		reader:  reader,
		handler: handler,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		logger: logger.OrNop(log),
	}
}

// Run consumes until ctx is cancelled. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Starting event consumer")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

// process applies one message, retrying transient failures. Invalid
// messages and entities that can never be indexed are logged and reported
// as done.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	log := c.logger.With(
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	var e Event
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		log.Warn("Skipping undecodable event", zap.Error(err))
		return nil
	}
	log = log.With(zap.String("action", e.Action), zap.String("entity", e.Entity))

	operation := func() error {
		err := c.handler.Handle(ctx, e)
		if permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("Event handling failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(c.newBackOff(), ctx), notify)
	if permanent(err) {
		log.Warn("Skipping invalid event", zap.Error(err))
		return nil
	}
	return err
}

// permanent reports whether err will recur on every redelivery.
func permanent(err error) bool {
	return errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, indexer.ErrInvalidInput) ||
		errors.Is(err, embedding.ErrInvalidInput) ||
		errors.Is(err, storage.ErrInvalidInput)
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
