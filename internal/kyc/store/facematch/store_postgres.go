package facematch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"verity/internal/kyc/models"
	"verity/pkg/platform/sentinel"
)

// PostgresStore persists face-match results in the face_match table, which
// carries a unique constraint on application_id.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed face-match store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert relies on the application_id unique constraint for the 1:1 shape.
func (s *PostgresStore) Upsert(ctx context.Context, match models.FaceMatch) (models.FaceMatch, error) {
	if match.ID == uuid.Nil {
		match.ID = uuid.New()
	}
	query := `
		INSERT INTO face_match (id, application_id, similarity_score, liveness_result, embedding_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (application_id) DO UPDATE
		SET similarity_score = EXCLUDED.similarity_score,
		    liveness_result = EXCLUDED.liveness_result,
		    embedding_hash = EXCLUDED.embedding_hash,
		    updated_at = now()
		RETURNING id, application_id, similarity_score, liveness_result, embedding_hash, created_at, updated_at
	`
	row := s.db.QueryRowContext(ctx, query,
		match.ID, match.ApplicationID, match.Similarity, string(match.Liveness), match.EmbeddingHash,
	)
	return scanMatch(row)
}

// FindByApplication returns the result or sentinel.ErrNotFound.
func (s *PostgresStore) FindByApplication(ctx context.Context, applicationID uuid.UUID) (models.FaceMatch, error) {
	query := `
		SELECT id, application_id, similarity_score, liveness_result, embedding_hash, created_at, updated_at
		FROM face_match
		WHERE application_id = $1
	`
	match, err := scanMatch(s.db.QueryRowContext(ctx, query, applicationID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.FaceMatch{}, sentinel.ErrNotFound
	}
	return match, err
}

func scanMatch(row *sql.Row) (models.FaceMatch, error) {
	var (
		match    models.FaceMatch
		liveness string
	)
	err := row.Scan(&match.ID, &match.ApplicationID, &match.Similarity, &liveness,
		&match.EmbeddingHash, &match.CreatedAt, &match.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FaceMatch{}, err
		}
		return models.FaceMatch{}, fmt.Errorf("scan face match: %w", err)
	}
	match.Liveness = models.LivenessVerdict(liveness)
	return match, nil
}
