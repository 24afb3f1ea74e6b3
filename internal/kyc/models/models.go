// Package models defines the verification domain entities. The pipeline holds
// only transient in-memory views of these; the stores own persistence.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Application is one identity-verification attempt by a user.
//
// Invariant: risk score and risk level are set together, exactly once, by the
// risk step. The orchestrator is the only mutator after creation.
type Application struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Method    string
	Status    Status
	RiskScore *int
	RiskLevel *RiskLevel
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is one uploaded artifact tied to an application. OCRResult and
// OCRConfidence stay nil until the OCR step fills them.
type Document struct {
	ID            uuid.UUID
	ApplicationID uuid.UUID
	Kind          DocumentKind
	StoragePath   string
	ContentHash   string
	OCRResult     map[string]any
	OCRConfidence *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FaceMatch holds the single face-match result for an application
// (created lazily on the first processing attempt, updated on retry).
type FaceMatch struct {
	ID            uuid.UUID
	ApplicationID uuid.UUID
	Similarity    float64
	Liveness      LivenessVerdict
	EmbeddingHash string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
