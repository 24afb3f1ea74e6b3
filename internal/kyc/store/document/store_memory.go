// Package document persists uploaded document metadata and OCR results.
package document

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"verity/internal/kyc/models"
	"verity/pkg/platform/sentinel"
)

// MemoryStore is a mutex-guarded in-process document store.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]models.Document
}

// NewMemory creates an empty memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]models.Document)}
}

// Create inserts a new document.
func (s *MemoryStore) Create(_ context.Context, doc models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	s.rows[doc.ID] = doc
	return nil
}

// ListByApplication returns the application's documents in upload order.
func (s *MemoryStore) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []models.Document
	for _, doc := range s.rows {
		if doc.ApplicationID == applicationID {
			docs = append(docs, doc)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

// UpdateOCR overwrites the document's OCR result. Retried pipeline attempts
// redo OCR wholesale, so last write wins.
func (s *MemoryStore) UpdateOCR(_ context.Context, id uuid.UUID, fields map[string]any, confidence float64, docHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.rows[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	doc.OCRResult = fields
	doc.OCRConfidence = &confidence
	if docHash != "" {
		doc.ContentHash = docHash
	}
	doc.UpdatedAt = time.Now()
	s.rows[id] = doc
	return nil
}
