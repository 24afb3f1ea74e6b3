package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"verity/internal/kyc/models"
	"verity/pkg/platform/sentinel"
)

// PostgresStore persists documents in the documents table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed document store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, doc models.Document) error {
	query := `
		INSERT INTO documents (id, application_id, doc_type, storage_path, doc_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.ApplicationID, doc.Kind.String(), doc.StoragePath, doc.ContentHash,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]models.Document, error) {
	query := `
		SELECT id, application_id, doc_type, storage_path, doc_hash, ocr_json, doc_confidence, created_at, updated_at
		FROM documents
		WHERE application_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var (
			doc        models.Document
			kind       string
			ocrJSON    []byte
			confidence sql.NullFloat64
		)
		err := rows.Scan(&doc.ID, &doc.ApplicationID, &kind, &doc.StoragePath, &doc.ContentHash,
			&ocrJSON, &confidence, &doc.CreatedAt, &doc.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		parsed, err := models.ParseDocumentKind(kind)
		if err != nil {
			return nil, err
		}
		doc.Kind = parsed
		if len(ocrJSON) > 0 {
			if err := json.Unmarshal(ocrJSON, &doc.OCRResult); err != nil {
				return nil, fmt.Errorf("unmarshal ocr result: %w", err)
			}
		}
		if confidence.Valid {
			v := confidence.Float64
			doc.OCRConfidence = &v
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// UpdateOCR overwrites the OCR columns; retried attempts redo OCR wholesale.
func (s *PostgresStore) UpdateOCR(ctx context.Context, id uuid.UUID, fields map[string]any, confidence float64, docHash string) error {
	ocrJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal ocr result: %w", err)
	}
	query := `
		UPDATE documents
		SET ocr_json = $2, doc_confidence = $3, doc_hash = COALESCE(NULLIF($4, ''), doc_hash), updated_at = now()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, ocrJSON, confidence, docHash)
	if err != nil {
		return fmt.Errorf("update document ocr: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
