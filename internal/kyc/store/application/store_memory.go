// Package application persists Application rows. The memory store backs unit
// tests and dev mode; the Postgres store is production.
package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"verity/internal/kyc/models"
	"verity/pkg/platform/sentinel"
)

// MemoryStore is a mutex-guarded in-process application store.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]models.Application
}

// NewMemory creates an empty memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]models.Application)}
}

// Create inserts a new application.
func (s *MemoryStore) Create(_ context.Context, app models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[app.ID]; exists {
		return sentinel.ErrConflict
	}
	s.rows[app.ID] = app
	return nil
}

// FindByID returns the application or sentinel.ErrNotFound.
func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.rows[id]
	if !ok {
		return models.Application{}, sentinel.ErrNotFound
	}
	return app, nil
}

// UpdateStatus sets only the lifecycle status.
func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.rows[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	app.Status = status
	app.UpdatedAt = time.Now()
	s.rows[id] = app
	return nil
}

// UpdateDecision commits status, score, and level in one write. This is the
// pipeline's single decision commit point.
func (s *MemoryStore) UpdateDecision(_ context.Context, id uuid.UUID, status models.Status, score *int, level *models.RiskLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.rows[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	app.Status = status
	app.RiskScore = score
	app.RiskLevel = level
	app.UpdatedAt = time.Now()
	s.rows[id] = app
	return nil
}

// ListByStatus returns applications in the given status.
func (s *MemoryStore) ListByStatus(_ context.Context, status models.Status) ([]models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var apps []models.Application
	for _, app := range s.rows {
		if app.Status == status {
			apps = append(apps, app)
		}
	}
	return apps, nil
}

// Delete removes the application row. Owned documents, face-match, and audit
// rows cascade in the persistence layer, not here.
func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}
