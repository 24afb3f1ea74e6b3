package clients

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Stub implementations return deterministic fixture responses through the
// same signatures and shapes as the live clients. They keep the orchestrator
// testable (and demo-able) without live network dependencies. Fields are
// exported so tests can steer specific scenarios.

// NewStubs builds a fixture client set with the default fixture values.
func NewStubs() *Set {
	return &Set{
		Storage:   &StubStorage{},
		OCR:       &StubOCR{Confidence: 0.93},
		FaceMatch: &StubFaceMatch{Similarity: 0.91, Liveness: "PASS"},
		Risk:      &StubRisk{ScoreValue: 30, Level: "LOW"},
		Audit:     &StubAudit{},
	}
}

// StubStorage derives the storage path and hash from the upload itself.
type StubStorage struct {
	Latency time.Duration
	Err     error
}

func (s *StubStorage) Upload(_ context.Context, filename string, data []byte) (UploadResult, error) {
	time.Sleep(s.Latency)
	if s.Err != nil {
		return UploadResult{}, s.Err
	}
	sum := sha256.Sum256(data)
	return UploadResult{
		StoragePath: "stub://documents/" + filename,
		Hash:        hex.EncodeToString(sum[:]),
	}, nil
}

// StubOCR returns a fixed structured payload with a configurable confidence.
type StubOCR struct {
	Confidence float64
	Err        error
}

func (s *StubOCR) Infer(_ context.Context, req OCRRequest) (OCRResult, error) {
	if s.Err != nil {
		return OCRResult{}, s.Err
	}
	return OCRResult{
		Fields: map[string]any{
			"document_type": req.DocumentKind,
			"full_name":     "Sample Citizen",
			"date_of_birth": "1990-02-03",
			"id_number":     "A1234567",
		},
		Confidence: s.Confidence,
		DocHash:    "stub-doc-hash",
	}, nil
}

// StubFaceMatch returns a fixed similarity verdict.
type StubFaceMatch struct {
	Similarity float64
	Liveness   string
	Err        error
}

func (s *StubFaceMatch) Match(context.Context, FaceMatchRequest) (FaceMatchResult, error) {
	if s.Err != nil {
		return FaceMatchResult{}, s.Err
	}
	return FaceMatchResult{
		Similarity:    s.Similarity,
		Liveness:      s.Liveness,
		EmbeddingHash: "stub-embedding-hash",
	}, nil
}

// StubRisk scores every application with the configured value.
type StubRisk struct {
	ScoreValue int
	Level      string
	ScoreNil   bool
	Err        error
}

func (s *StubRisk) Score(_ context.Context, req RiskRequest) (RiskResult, error) {
	if s.Err != nil {
		return RiskResult{}, s.Err
	}
	result := RiskResult{
		Level:   s.Level,
		AuditID: "stub-risk-audit-id",
		Explanations: []map[string]any{
			{"signal": "doc_confidence", "value": req.Features["doc_confidence"]},
			{"signal": "face_similarity", "value": req.Features["face_similarity"]},
		},
	}
	if !s.ScoreNil {
		score := s.ScoreValue
		result.Score = &score
	}
	return result, nil
}

// StubAudit hashes the request locally the way the real ledger does, so chain
// verification works identically in fixture mode.
type StubAudit struct {
	Err error

	appends int
}

func (s *StubAudit) Append(_ context.Context, req AuditAppendRequest) (AuditAppendResult, error) {
	if s.Err != nil {
		return AuditAppendResult{}, s.Err
	}
	s.appends++
	sum := sha256.Sum256([]byte(req.PrevHash + "|" + req.Actor + "|" + req.Action))
	return AuditAppendResult{
		LogHash: "sha256:" + hex.EncodeToString(sum[:]),
		AuditID: req.AuditID,
	}, nil
}
