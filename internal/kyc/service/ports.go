package service

import (
	"context"

	"github.com/google/uuid"

	"verity/internal/kyc/models"
)

// Store interfaces are defined here, next to their consumer. Implementations
// live under internal/kyc/store and return sentinel errors for infra facts.

// ApplicationStore persists Application rows.
type ApplicationStore interface {
	Create(ctx context.Context, app models.Application) error
	FindByID(ctx context.Context, id uuid.UUID) (models.Application, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error
	// UpdateDecision commits status, score, and level as one write.
	UpdateDecision(ctx context.Context, id uuid.UUID, status models.Status, score *int, level *models.RiskLevel) error
	ListByStatus(ctx context.Context, status models.Status) ([]models.Application, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DocumentStore persists uploaded document metadata and OCR results.
type DocumentStore interface {
	Create(ctx context.Context, doc models.Document) error
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]models.Document, error)
	UpdateOCR(ctx context.Context, id uuid.UUID, fields map[string]any, confidence float64, docHash string) error
}

// FaceMatchStore persists the single face-match result per application.
type FaceMatchStore interface {
	Upsert(ctx context.Context, match models.FaceMatch) (models.FaceMatch, error)
	FindByApplication(ctx context.Context, applicationID uuid.UUID) (models.FaceMatch, error)
}

// TaskQueue hands an application to the asynchronous pipeline.
type TaskQueue interface {
	EnqueueProcess(ctx context.Context, applicationID uuid.UUID) error
}

// Notifier publishes best-effort completion events. Callers log and swallow
// its errors; a notification failure never fails the pipeline.
type Notifier interface {
	RiskScored(ctx context.Context, applicationID uuid.UUID, score *int) error
}
