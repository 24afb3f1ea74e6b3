// Package facematch persists the 1:1 face-match result per application.
package facematch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"verity/internal/kyc/models"
	"verity/pkg/platform/sentinel"
)

// MemoryStore is a mutex-guarded in-process face-match store.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]models.FaceMatch // keyed by application ID
}

// NewMemory creates an empty memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]models.FaceMatch)}
}

// Upsert creates the application's result on first write and overwrites it on
// retry, preserving the original ID and creation time.
func (s *MemoryStore) Upsert(_ context.Context, match models.FaceMatch) (models.FaceMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rows[match.ApplicationID]
	if ok {
		match.ID = existing.ID
		match.CreatedAt = existing.CreatedAt
	} else {
		if match.ID == uuid.Nil {
			match.ID = uuid.New()
		}
		if match.CreatedAt.IsZero() {
			match.CreatedAt = time.Now()
		}
	}
	match.UpdatedAt = time.Now()
	s.rows[match.ApplicationID] = match
	return match, nil
}

// FindByApplication returns the result or sentinel.ErrNotFound.
func (s *MemoryStore) FindByApplication(_ context.Context, applicationID uuid.UUID) (models.FaceMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	match, ok := s.rows[applicationID]
	if !ok {
		return models.FaceMatch{}, sentinel.ErrNotFound
	}
	return match, nil
}
