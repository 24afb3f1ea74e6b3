// Package clients holds typed request/response wrappers around each
// downstream collaborator: object storage, document OCR, face matching,
// risk scoring, and the external append-only audit ledger.
//
// Every client performs classified retries internally (see retry.go). Callers
// receive either a decoded response or a coded error and must not retry
// further within the same orchestration attempt; task-level retry belongs to
// the dispatcher.
package clients

import (
	"context"
	"errors"
	"fmt"
)

// Service names used in errors, logs, and metrics.
const (
	ServiceStorage   = "storage"
	ServiceOCR       = "ocr"
	ServiceFaceMatch = "facematch"
	ServiceRisk      = "risk"
	ServiceAudit     = "audit"
)

// UploadResult is returned by the storage upload call.
type UploadResult struct {
	StoragePath string `json:"storage_path"`
	Hash        string `json:"hash"`
}

// OCRRequest asks the OCR service to read one document image.
type OCRRequest struct {
	ApplicationID string
	DocumentKind  string
	Image         []byte
	Meta          map[string]string
}

// OCRResult carries the structured fields the OCR service extracted.
type OCRResult struct {
	Fields     map[string]any `json:"ocr_json"`
	Confidence float64        `json:"doc_confidence"`
	DocHash    string         `json:"doc_hash"`
}

// FaceMatchRequest compares the ID front photo against the selfie.
type FaceMatchRequest struct {
	ApplicationID   string
	IDPhoto         []byte
	Selfie          []byte
	RequireLiveness bool
}

// FaceMatchResult is the similarity verdict for one application.
type FaceMatchResult struct {
	Similarity    float64 `json:"similarity"`
	Liveness      string  `json:"liveness_result"`
	EmbeddingHash string  `json:"embedding_hash"`
}

// RiskRequest submits the aggregated feature vector for scoring.
type RiskRequest struct {
	ApplicationID string
	Features      map[string]float64
	Meta          map[string]string
}

// RiskResult is the scoring response. Score may be absent; the decision
// policy treats a missing score as not approvable.
type RiskResult struct {
	Score        *int             `json:"risk_score"`
	Level        string           `json:"drpa_level"`
	Explanations []map[string]any `json:"explanations"`
	AuditID      string           `json:"audit_id"`
}

// AuditAppendRequest appends one record to the external tamper-evident ledger.
type AuditAppendRequest struct {
	AuditID  string
	Actor    string
	Action   string
	Payload  map[string]any
	PrevHash string
}

// AuditAppendResult carries the ledger's authoritative hash and identifier.
type AuditAppendResult struct {
	LogHash string `json:"log_hash"`
	AuditID string `json:"audit_id"`
}

// Storage uploads document bytes and returns a storage reference.
type Storage interface {
	Upload(ctx context.Context, filename string, data []byte) (UploadResult, error)
}

// OCR runs document inference. Calls are side-effect-free downstream and safe
// to repeat on task retry.
type OCR interface {
	Infer(ctx context.Context, req OCRRequest) (OCRResult, error)
}

// FaceMatch runs the face/liveness comparison.
type FaceMatch interface {
	Match(ctx context.Context, req FaceMatchRequest) (FaceMatchResult, error)
}

// Risk scores a feature vector.
type Risk interface {
	Score(ctx context.Context, req RiskRequest) (RiskResult, error)
}

// Audit appends to the external append-only ledger.
type Audit interface {
	Append(ctx context.Context, req AuditAppendRequest) (AuditAppendResult, error)
}

// Set bundles one client per downstream capability.
type Set struct {
	Storage   Storage
	OCR       OCR
	FaceMatch FaceMatch
	Risk      Risk
	Audit     Audit
}

// DownstreamError normalizes a single failed call. Transient marks responses
// worth retrying (connection errors, 502/503/504); everything else fails the
// call immediately.
type DownstreamError struct {
	Service   string
	Status    int
	Transient bool
	Err       error
}

func (e *DownstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Service, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *DownstreamError) Unwrap() error { return e.Err }

// IsTransient reports whether the error chain contains a retryable
// downstream failure.
func IsTransient(err error) bool {
	var de *DownstreamError
	if errors.As(err, &de) {
		return de.Transient
	}
	return false
}
