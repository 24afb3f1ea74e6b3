package facematch

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"verity/internal/kyc/models"
	"verity/pkg/platform/sentinel"
)

type FaceMatchStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
}

func TestFaceMatchStoreSuite(t *testing.T) {
	suite.Run(t, new(FaceMatchStoreSuite))
}

func (s *FaceMatchStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

// TestUpsert verifies the 1:1 overwrite semantics per application.
func (s *FaceMatchStoreSuite) TestUpsert() {
	s.Run("creates on first write", func() {
		appID := uuid.New()
		match, err := s.store.Upsert(s.ctx, models.FaceMatch{
			ApplicationID: appID,
			Similarity:    0.9,
			Liveness:      models.LivenessPass,
		})
		s.Require().NoError(err)
		s.NotEqual(uuid.Nil, match.ID)
		s.False(match.CreatedAt.IsZero())

		found, err := s.store.FindByApplication(s.ctx, appID)
		s.Require().NoError(err)
		s.InDelta(0.9, found.Similarity, 1e-9)
	})

	s.Run("overwrite preserves identity and creation time", func() {
		appID := uuid.New()
		first, err := s.store.Upsert(s.ctx, models.FaceMatch{
			ApplicationID: appID,
			Similarity:    0.9,
			Liveness:      models.LivenessPass,
		})
		s.Require().NoError(err)

		second, err := s.store.Upsert(s.ctx, models.FaceMatch{
			ApplicationID: appID,
			Similarity:    0.4,
			Liveness:      models.LivenessFail,
		})
		s.Require().NoError(err)

		s.Equal(first.ID, second.ID)
		s.Equal(first.CreatedAt, second.CreatedAt)
		s.InDelta(0.4, second.Similarity, 1e-9)
		s.Equal(models.LivenessFail, second.Liveness)
	})

	s.Run("unknown application returns ErrNotFound", func() {
		_, err := s.store.FindByApplication(s.ctx, uuid.New())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
