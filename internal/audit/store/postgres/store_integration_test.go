//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"verity/internal/audit"
	"verity/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	ctx   context.Context
	pg    *containers.PostgresContainer
	store *Store
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	suite.Run(t, &PostgresAuditSuite{pg: containers.NewPostgresContainer(t, "../../../../migrations")})
}

func (s *PostgresAuditSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = New(s.pg.DB)
	s.pg.Truncate(s.T(), "audit_logs", "kyc_applications")
}

func (s *PostgresAuditSuite) newRecord(applicationID *uuid.UUID, action, prevHash, contentHash string, at time.Time) audit.Record {
	return audit.Record{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		Actor:         "user-1",
		Action:        action,
		Payload:       map[string]any{"k": "v"},
		PrevHash:      prevHash,
		ContentHash:   contentHash,
		LogHash:       "sha256:ledger-" + contentHash,
		CreatedAt:     at,
	}
}

func (s *PostgresAuditSuite) seedApplication() uuid.UUID {
	id := uuid.New()
	_, err := s.pg.DB.ExecContext(s.ctx, `
		INSERT INTO kyc_applications (id, user_id, method, status)
		VALUES ($1, $2, 'document_face', 'PROCESSING')
	`, id, uuid.New())
	s.Require().NoError(err)
	return id
}

// TestAppendAndList verifies round-tripping and ordering against a real
// database.
func (s *PostgresAuditSuite) TestAppendAndList() {
	appID := s.seedApplication()
	base := time.Now().UTC().Truncate(time.Microsecond)

	first := s.newRecord(&appID, "kyc_start", "", "c1", base)
	second := s.newRecord(&appID, "kyc_upload", "c1", "c2", base.Add(time.Second))
	s.Require().NoError(s.store.Append(s.ctx, first))
	s.Require().NoError(s.store.Append(s.ctx, second))

	records, err := s.store.ListByApplication(s.ctx, appID)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("kyc_start", records[0].Action)
	s.Equal("kyc_upload", records[1].Action)
	s.Equal("c1", records[1].PrevHash)
	s.Equal(map[string]any{"k": "v"}, records[0].Payload)
	s.Equal("sha256:ledger-c1", records[0].LogHash)
}

// TestLastHash verifies chain-head lookup for application and system chains.
func (s *PostgresAuditSuite) TestLastHash() {
	s.Run("empty chain returns empty hash", func() {
		hash, err := s.store.LastHash(s.ctx, uuid.New())
		s.Require().NoError(err)
		s.Empty(hash)
	})

	s.Run("returns the newest content hash", func() {
		appID := s.seedApplication()
		base := time.Now().UTC().Truncate(time.Microsecond)
		s.Require().NoError(s.store.Append(s.ctx, s.newRecord(&appID, "kyc_start", "", "c1", base)))
		s.Require().NoError(s.store.Append(s.ctx, s.newRecord(&appID, "kyc_upload", "c1", "c2", base.Add(time.Second))))

		hash, err := s.store.LastHash(s.ctx, appID)
		s.Require().NoError(err)
		s.Equal("c2", hash)
	})

	s.Run("system chain uses the nil chain ID", func() {
		base := time.Now().UTC().Truncate(time.Microsecond)
		s.Require().NoError(s.store.Append(s.ctx, s.newRecord(nil, "worker_started", "", "s1", base)))

		hash, err := s.store.LastHash(s.ctx, uuid.Nil)
		s.Require().NoError(err)
		s.Equal("s1", hash)
	})
}
