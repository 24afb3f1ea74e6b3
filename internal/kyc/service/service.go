// Package service drives the verification pipeline: a durable state machine
// from submitted documents to a terminal decision, with an audit append at
// every milestone.
package service

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"verity/internal/audit"
	"verity/internal/clients"
	"verity/internal/kyc/metrics"
)

// Service is the pipeline orchestrator. It exclusively mutates Application
// state after creation.
type Service struct {
	applications ApplicationStore
	documents    DocumentStore
	faceMatches  FaceMatchStore
	clients      *clients.Set
	auditor      *audit.Writer
	queue        TaskQueue
	notifier     Notifier
	metrics      *metrics.Metrics
	logger       *slog.Logger
	tracer       trace.Tracer

	// approveThreshold: scores strictly below it approve; everything else,
	// including a missing score, flags for review.
	approveThreshold int
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the pipeline metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNotifier sets the best-effort completion notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithTaskQueue sets the queue used to hand uploads to the worker.
func WithTaskQueue(q TaskQueue) Option {
	return func(s *Service) { s.queue = q }
}

// New wires the orchestrator. Stores, clients, and the audit writer are
// required; notifier and queue are optional (nil disables them).
func New(
	applications ApplicationStore,
	documents DocumentStore,
	faceMatches FaceMatchStore,
	clientSet *clients.Set,
	auditor *audit.Writer,
	approveThreshold int,
	opts ...Option,
) (*Service, error) {
	if applications == nil || documents == nil || faceMatches == nil {
		return nil, fmt.Errorf("all stores are required")
	}
	if clientSet == nil {
		return nil, fmt.Errorf("client set is required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit writer is required")
	}

	svc := &Service{
		applications:     applications,
		documents:        documents,
		faceMatches:      faceMatches,
		clients:          clientSet,
		auditor:          auditor,
		logger:           slog.Default(),
		tracer:           otel.Tracer("verity/kyc"),
		approveThreshold: approveThreshold,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}
