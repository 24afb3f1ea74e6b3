package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task is the queue envelope for one pipeline run.
type Task struct {
	ApplicationID uuid.UUID `json:"application_id"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// RecordProducer publishes one durable record.
type RecordProducer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Enqueuer publishes pipeline tasks to the process topic. The application ID
// is the record key so one application's tasks stay ordered on a partition.
type Enqueuer struct {
	producer RecordProducer
	topic    string
}

// NewEnqueuer creates an enqueuer over the given topic.
func NewEnqueuer(producer RecordProducer, topic string) *Enqueuer {
	return &Enqueuer{producer: producer, topic: topic}
}

// EnqueueProcess publishes a task for the application.
func (e *Enqueuer) EnqueueProcess(ctx context.Context, applicationID uuid.UUID) error {
	value, err := json.Marshal(Task{
		ApplicationID: applicationID,
		EnqueuedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return e.producer.Produce(ctx, e.topic, []byte(applicationID.String()), value, nil)
}
