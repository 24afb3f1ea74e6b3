// Package consumer wraps a franz-go consumer group behind a small handler
// interface so feature packages never touch Kafka types directly.
//
// Delivery is at-least-once: records are committed only after the handler
// returns nil. A handler that wants a message redelivered after process
// restart returns an error; a handler that has fully resolved a message
// (including routing it to a dead-letter topic) returns nil.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-agnostic view of a consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
}

// Handler processes one message. Returning nil commits the record.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer polls a consumer group and dispatches records to a Handler.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New creates a consumer group client over the given topics.
func New(brokers []string, group string, topics []string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until the context is cancelled or a handler demands redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, fetchErr := range fetches.Errors() {
			c.logger.Error("kafka fetch error",
				"topic", fetchErr.Topic,
				"partition", fetchErr.Partition,
				"error", fetchErr.Err,
			)
		}

		var handleErr error
		var handled []*kgo.Record
		fetches.EachRecord(func(record *kgo.Record) {
			if handleErr != nil {
				return
			}
			msg := toMessage(record)
			if err := c.handler.Handle(ctx, msg); err != nil {
				handleErr = fmt.Errorf("handle %s@%d: %w", msg.Topic, msg.Offset, err)
				return
			}
			handled = append(handled, record)
		})

		if len(handled) > 0 {
			if err := c.client.CommitRecords(ctx, handled...); err != nil {
				return fmt.Errorf("commit records: %w", err)
			}
		}
		if handleErr != nil {
			// Uncommitted records are redelivered once the group rebalances.
			return handleErr
		}
	}
}

// Close tears down the underlying client, leaving uncommitted offsets intact.
func (c *Consumer) Close() {
	c.client.Close()
}

func toMessage(record *kgo.Record) *Message {
	headers := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
		Key:       record.Key,
		Value:     record.Value,
		Headers:   headers,
	}
}
