// Package postgres persists audit records in the audit_logs table. Records
// are insert-only; there is no update or delete path.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"verity/internal/audit"
)

// Store is the Postgres-backed audit store.
type Store struct {
	db *sql.DB
}

// New creates a Postgres audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one record. The primary key rejects duplicate IDs.
func (s *Store) Append(ctx context.Context, record audit.Record) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	var applicationID any
	if record.ApplicationID != nil {
		applicationID = *record.ApplicationID
	}

	query := `
		INSERT INTO audit_logs (id, application_id, actor, action, payload, prev_hash, content_hash, log_hash, external_audit_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		applicationID,
		record.Actor,
		record.Action,
		payload,
		record.PrevHash,
		record.ContentHash,
		record.LogHash,
		nullable(record.ExternalAuditID),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// ListByApplication returns the application's records ordered by creation
// time ascending.
func (s *Store) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]audit.Record, error) {
	query := `
		SELECT id, application_id, actor, action, payload, prev_hash, content_hash, log_hash, external_audit_id, created_at
		FROM audit_logs
		WHERE application_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

// LastHash returns the content hash of the chain's newest record.
func (s *Store) LastHash(ctx context.Context, chainID uuid.UUID) (string, error) {
	query := `
		SELECT content_hash
		FROM audit_logs
		WHERE COALESCE(application_id, $2) = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var hash string
	err := s.db.QueryRowContext(ctx, query, chainID, uuid.Nil).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query audit chain head: %w", err)
	}
	return hash, nil
}

func scanRecord(rows *sql.Rows) (audit.Record, error) {
	var (
		record        audit.Record
		applicationID sql.Null[uuid.UUID]
		payload       []byte
		externalID    sql.NullString
	)
	err := rows.Scan(
		&record.ID,
		&applicationID,
		&record.Actor,
		&record.Action,
		&payload,
		&record.PrevHash,
		&record.ContentHash,
		&record.LogHash,
		&externalID,
		&record.CreatedAt,
	)
	if err != nil {
		return audit.Record{}, fmt.Errorf("scan audit record: %w", err)
	}
	if applicationID.Valid {
		id := applicationID.V
		record.ApplicationID = &id
	}
	if externalID.Valid {
		record.ExternalAuditID = externalID.String
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &record.Payload); err != nil {
			return audit.Record{}, fmt.Errorf("unmarshal audit payload: %w", err)
		}
	}
	return record, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
