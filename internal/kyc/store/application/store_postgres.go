package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"verity/internal/kyc/models"
	"verity/pkg/platform/sentinel"
)

// PostgresStore persists applications in kyc_applications.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed application store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, app models.Application) error {
	query := `
		INSERT INTO kyc_applications (id, user_id, method, status, risk_score, drpa_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		app.ID, app.UserID, app.Method, app.Status.String(),
		app.RiskScore, riskLevelValue(app.RiskLevel), app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (models.Application, error) {
	query := `
		SELECT id, user_id, method, status, risk_score, drpa_level, created_at, updated_at
		FROM kyc_applications
		WHERE id = $1
	`
	app, err := scanApplication(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Application{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Application{}, fmt.Errorf("find application: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	query := `
		UPDATE kyc_applications
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, status.String())
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return requireRow(result)
}

// UpdateDecision commits status, score, and level in one statement so the
// decision transition is atomic from the caller's perspective.
func (s *PostgresStore) UpdateDecision(ctx context.Context, id uuid.UUID, status models.Status, score *int, level *models.RiskLevel) error {
	query := `
		UPDATE kyc_applications
		SET status = $2, risk_score = $3, drpa_level = $4, updated_at = now()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, status.String(), score, riskLevelValue(level))
	if err != nil {
		return fmt.Errorf("update application decision: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]models.Application, error) {
	query := `
		SELECT id, user_id, method, status, risk_score, drpa_level, created_at, updated_at
		FROM kyc_applications
		WHERE status = $1
		ORDER BY updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, status.String())
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return apps, nil
}

// Delete removes the application and everything it owns. Cascade rules are
// explicit deletes inside one transaction.
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM audit_logs WHERE application_id = $1`,
		`DELETE FROM face_match WHERE application_id = $1`,
		`DELETE FROM documents WHERE application_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("cascade delete: %w", err)
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM kyc_applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (models.Application, error) {
	var (
		app    models.Application
		status string
		score  sql.NullInt64
		level  sql.NullString
	)
	err := row.Scan(&app.ID, &app.UserID, &app.Method, &status, &score, &level, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return models.Application{}, err
	}
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return models.Application{}, err
	}
	app.Status = parsed
	if score.Valid {
		v := int(score.Int64)
		app.RiskScore = &v
	}
	if level.Valid {
		l := models.RiskLevel(level.String)
		app.RiskLevel = &l
	}
	return app, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func riskLevelValue(level *models.RiskLevel) any {
	if level == nil {
		return nil
	}
	return level.String()
}
