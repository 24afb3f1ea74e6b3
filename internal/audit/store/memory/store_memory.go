// Package memory holds audit records in process. It is the unit-test double
// and the dev-mode store; ordering and immutability match the Postgres store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"verity/internal/audit"
	"verity/pkg/platform/sentinel"
)

// Store keeps records grouped by chain, append-only.
type Store struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]audit.Record
	chains map[uuid.UUID][]uuid.UUID
}

// New creates an empty in-memory audit store.
func New() *Store {
	return &Store{
		byID:   make(map[uuid.UUID]audit.Record),
		chains: make(map[uuid.UUID][]uuid.UUID),
	}
}

func chainOf(record audit.Record) uuid.UUID {
	if record.ApplicationID != nil {
		return *record.ApplicationID
	}
	return uuid.Nil
}

// Append stores a copy of the record. Duplicate IDs conflict.
func (s *Store) Append(_ context.Context, record audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[record.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[record.ID] = record
	chain := chainOf(record)
	s.chains[chain] = append(s.chains[chain], record.ID)
	return nil
}

// ListByApplication returns records ordered by creation time ascending.
func (s *Store) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.chains[applicationID]
	records := make([]audit.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, s.byID[id])
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// LastHash returns the newest record's content hash, or "" for a new chain.
func (s *Store) LastHash(_ context.Context, chainID uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.chains[chainID]
	if len(ids) == 0 {
		return "", nil
	}
	return s.byID[ids[len(ids)-1]].ContentHash, nil
}
