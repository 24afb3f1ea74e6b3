// Package dispatch consumes pipeline tasks from the process topic, drives the
// orchestrator, and routes unprocessable tasks to the dead-letter topic.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"verity/internal/platform/kafka/consumer"
	dErrors "verity/pkg/domain-errors"
)

const (
	maxAttempts    = 3
	initialBackoff = time.Second
	maxBackoff     = 4 * time.Second
)

// Processor runs the pipeline for one application.
type Processor interface {
	Process(ctx context.Context, applicationID uuid.UUID) error
}

// Dispatcher is the consumer.Handler for the process topic.
//
// Outcome policy per task:
//   - success or a skipped no-op commits the record;
//   - downstream_unavailable retries with backoff, then dead-letters;
//   - not_found logs and commits (the row was deleted under the task);
//   - every other failure dead-letters immediately, it would fail the
//     same way on redelivery.
//
// Dead-lettering counts as handling: the Handle contract returns nil so the
// source record commits and the group keeps moving.
type Dispatcher struct {
	processor Processor
	producer  RecordProducer
	dlqTopic  string
	logger    *slog.Logger
	metrics   *Metrics
	backoff   time.Duration
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics sets the dispatcher metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithBackoff overrides the initial retry backoff. Tests set it to zero.
func WithBackoff(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.backoff = d }
}

// New wires a dispatcher.
func New(processor Processor, producer RecordProducer, dlqTopic string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		processor: processor,
		producer:  producer,
		dlqTopic:  dlqTopic,
		logger:    slog.Default(),
		backoff:   initialBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle processes one task record.
func (d *Dispatcher) Handle(ctx context.Context, msg *consumer.Message) error {
	var task Task
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		d.logger.Error("dead-lettering undecodable task",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return d.deadLetter(ctx, msg, 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "undecodable task envelope"))
	}
	if task.ApplicationID == uuid.Nil {
		return d.deadLetter(ctx, msg, 0, dErrors.New(dErrors.CodeInvalidInput, "task has no application_id"))
	}

	backoff := d.backoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := d.processor.Process(ctx, task.ApplicationID)
		if err == nil {
			if d.metrics != nil {
				d.metrics.ObserveTask("processed")
			}
			return nil
		}
		lastErr = err

		switch dErrors.CodeOf(err) {
		case dErrors.CodeNotFound:
			// The application vanished under the task. Nothing to redo.
			d.logger.Warn("skipping task for missing application",
				"application_id", task.ApplicationID,
				"offset", msg.Offset,
			)
			if d.metrics != nil {
				d.metrics.ObserveTask("skipped")
			}
			return nil
		case dErrors.CodeUnavailable:
			if attempt == maxAttempts {
				break
			}
			d.logger.Warn("retrying task after transient failure",
				"application_id", task.ApplicationID,
				"attempt", attempt,
				"backoff", backoff,
				"error", err,
			)
			if d.metrics != nil {
				d.metrics.ObserveRetry()
			}
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		default:
			return d.deadLetter(ctx, msg, attempt, err)
		}
		break
	}
	return d.deadLetter(ctx, msg, maxAttempts, lastErr)
}

// deadLetter forwards the record to the dead-letter topic with failure
// context in headers. A DLQ produce failure is the one case where Handle
// returns an error: losing the task silently is worse than redelivery.
func (d *Dispatcher) deadLetter(ctx context.Context, msg *consumer.Message, attempts int, cause error) error {
	headers := map[string]string{
		"source_topic": msg.Topic,
		"error_code":   string(dErrors.CodeOf(cause)),
		"error":        cause.Error(),
		"attempts":     strconv.Itoa(attempts),
		"failed_at":    time.Now().UTC().Format(time.RFC3339),
	}
	if err := d.producer.Produce(ctx, d.dlqTopic, msg.Key, msg.Value, headers); err != nil {
		return fmt.Errorf("dead-letter produce: %w", err)
	}
	d.logger.Error("task dead-lettered",
		"dlq_topic", d.dlqTopic,
		"offset", msg.Offset,
		"attempts", attempts,
		"error", cause,
	)
	if d.metrics != nil {
		d.metrics.ObserveTask("dead_lettered")
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
