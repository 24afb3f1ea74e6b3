package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"verity/internal/platform/kafka/consumer"
	"verity/internal/platform/logger"
	dErrors "verity/pkg/domain-errors"
)

type fakeProcessor struct {
	calls int
	errs  []error // consumed per call; nil entry means success
}

func (p *fakeProcessor) Process(_ context.Context, _ uuid.UUID) error {
	var err error
	if p.calls < len(p.errs) {
		err = p.errs[p.calls]
	}
	p.calls++
	return err
}

type producedRecord struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
}

type recordingProducer struct {
	records []producedRecord
	err     error
}

func (p *recordingProducer) Produce(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, producedRecord{topic: topic, key: key, value: value, headers: headers})
	return nil
}

type DispatcherSuite struct {
	suite.Suite
	ctx       context.Context
	processor *fakeProcessor
	producer  *recordingProducer
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.processor = &fakeProcessor{}
	s.producer = &recordingProducer{}
}

func (s *DispatcherSuite) newDispatcher() *Dispatcher {
	return New(s.processor, s.producer, "kyc.process.dlq",
		WithLogger(logger.Discard()),
		WithBackoff(0),
	)
}

func (s *DispatcherSuite) taskMessage(applicationID uuid.UUID) *consumer.Message {
	value, err := json.Marshal(Task{ApplicationID: applicationID})
	s.Require().NoError(err)
	return &consumer.Message{
		Topic: "kyc.process",
		Key:   []byte(applicationID.String()),
		Value: value,
	}
}

// TestSuccessAndRetry verifies the transient retry policy.
func (s *DispatcherSuite) TestSuccessAndRetry() {
	s.Run("success commits without retries", func() {
		d := s.newDispatcher()
		s.Require().NoError(d.Handle(s.ctx, s.taskMessage(uuid.New())))
		s.Equal(1, s.processor.calls)
		s.Empty(s.producer.records)
	})

	s.Run("transient failure retries then succeeds", func() {
		s.SetupTest()
		s.processor.errs = []error{
			dErrors.New(dErrors.CodeUnavailable, "ocr unavailable after retries"),
			dErrors.New(dErrors.CodeUnavailable, "ocr unavailable after retries"),
			nil,
		}
		d := s.newDispatcher()

		s.Require().NoError(d.Handle(s.ctx, s.taskMessage(uuid.New())))
		s.Equal(3, s.processor.calls)
		s.Empty(s.producer.records)
	})

	s.Run("transient exhaustion dead-letters", func() {
		s.SetupTest()
		s.processor.errs = []error{
			dErrors.New(dErrors.CodeUnavailable, "risk unavailable after retries"),
			dErrors.New(dErrors.CodeUnavailable, "risk unavailable after retries"),
			dErrors.New(dErrors.CodeUnavailable, "risk unavailable after retries"),
		}
		d := s.newDispatcher()
		appID := uuid.New()

		s.Require().NoError(d.Handle(s.ctx, s.taskMessage(appID)))
		s.Equal(3, s.processor.calls)
		s.Require().Len(s.producer.records, 1)

		record := s.producer.records[0]
		s.Equal("kyc.process.dlq", record.topic)
		s.Equal([]byte(appID.String()), record.key)
		s.Equal("downstream_unavailable", record.headers["error_code"])
		s.Equal("3", record.headers["attempts"])
		s.Equal("kyc.process", record.headers["source_topic"])
	})
}

// TestNonRetryableOutcomes verifies immediate dead-lettering and the skip
// path.
func (s *DispatcherSuite) TestNonRetryableOutcomes() {
	s.Run("precondition failure dead-letters without retry", func() {
		s.processor.errs = []error{
			dErrors.New(dErrors.CodePreconditionFailed, "application has no primary ID document"),
		}
		d := s.newDispatcher()

		s.Require().NoError(d.Handle(s.ctx, s.taskMessage(uuid.New())))
		s.Equal(1, s.processor.calls)
		s.Require().Len(s.producer.records, 1)
		s.Equal("precondition_failed", s.producer.records[0].headers["error_code"])
	})

	s.Run("malformed response dead-letters without retry", func() {
		s.SetupTest()
		s.processor.errs = []error{
			dErrors.New(dErrors.CodeMalformedResponse, "risk returned an unknown level"),
		}
		d := s.newDispatcher()

		s.Require().NoError(d.Handle(s.ctx, s.taskMessage(uuid.New())))
		s.Equal(1, s.processor.calls)
		s.Require().Len(s.producer.records, 1)
		s.Equal("malformed_response", s.producer.records[0].headers["error_code"])
	})

	s.Run("missing application commits without dead-lettering", func() {
		s.SetupTest()
		s.processor.errs = []error{
			dErrors.New(dErrors.CodeNotFound, "application not found"),
		}
		d := s.newDispatcher()

		s.Require().NoError(d.Handle(s.ctx, s.taskMessage(uuid.New())))
		s.Equal(1, s.processor.calls)
		s.Empty(s.producer.records)
	})
}

// TestEnvelopeValidation covers undecodable and incomplete task payloads.
func (s *DispatcherSuite) TestEnvelopeValidation() {
	s.Run("undecodable payload dead-letters", func() {
		d := s.newDispatcher()
		msg := &consumer.Message{Topic: "kyc.process", Value: []byte("not json")}

		s.Require().NoError(d.Handle(s.ctx, msg))
		s.Equal(0, s.processor.calls)
		s.Require().Len(s.producer.records, 1)
		s.Equal("invalid_input", s.producer.records[0].headers["error_code"])
	})

	s.Run("missing application_id dead-letters", func() {
		s.SetupTest()
		d := s.newDispatcher()
		msg := &consumer.Message{Topic: "kyc.process", Value: []byte(`{}`)}

		s.Require().NoError(d.Handle(s.ctx, msg))
		s.Equal(0, s.processor.calls)
		s.Require().Len(s.producer.records, 1)
	})

	s.Run("dlq produce failure surfaces for redelivery", func() {
		s.SetupTest()
		s.processor.errs = []error{
			dErrors.New(dErrors.CodePreconditionFailed, "no selfie"),
		}
		s.producer.err = dErrors.New(dErrors.CodeInternal, "broker down")
		d := s.newDispatcher()

		err := d.Handle(s.ctx, s.taskMessage(uuid.New()))
		s.Require().Error(err)
	})
}

func TestEnqueuer(t *testing.T) {
	producer := &recordingProducer{}
	enqueuer := NewEnqueuer(producer, "kyc.process")
	appID := uuid.New()

	if err := enqueuer.EnqueueProcess(context.Background(), appID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(producer.records) != 1 {
		t.Fatalf("expected one record, got %d", len(producer.records))
	}
	record := producer.records[0]
	if record.topic != "kyc.process" {
		t.Fatalf("unexpected topic %q", record.topic)
	}
	if string(record.key) != appID.String() {
		t.Fatalf("expected key %q, got %q", appID, record.key)
	}

	var task Task
	if err := json.Unmarshal(record.value, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.ApplicationID != appID {
		t.Fatalf("expected application %s, got %s", appID, task.ApplicationID)
	}
	if task.EnqueuedAt.IsZero() {
		t.Fatal("expected enqueued_at to be set")
	}
}
