package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"verity/internal/audit"
	"verity/internal/kyc/models"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/platform/sentinel"
)

// Upload is one file attached to an application.
type Upload struct {
	Kind     models.DocumentKind
	Filename string
	Data     []byte
}

// Start creates a new PENDING application for the user.
func (s *Service) Start(ctx context.Context, userID uuid.UUID, method string) (models.Application, error) {
	if method == "" {
		return models.Application{}, dErrors.New(dErrors.CodeInvalidInput, "verification method is required")
	}
	now := time.Now()
	app := models.Application{
		ID:        uuid.New(),
		UserID:    userID,
		Method:    method,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.applications.Create(ctx, app); err != nil {
		return models.Application{}, dErrors.Wrap(err, dErrors.CodeInternal, "create application")
	}
	if _, err := s.auditor.Append(ctx, &app.ID, userID.String(), audit.ActionStart, map[string]any{
		"method": method,
	}); err != nil {
		return models.Application{}, err
	}
	return app, nil
}

// AttachDocuments uploads each file to storage, records the documents, marks
// the application PROCESSING, and enqueues the pipeline task.
func (s *Service) AttachDocuments(ctx context.Context, applicationID, userID uuid.UUID, uploads []Upload, deviceInfo map[string]any) (models.Application, error) {
	app, err := s.loadOwned(ctx, applicationID, userID)
	if err != nil {
		return models.Application{}, err
	}
	if app.Status != models.StatusPending && app.Status != models.StatusProcessing {
		return models.Application{}, dErrors.New(dErrors.CodeConflict, "application already processed")
	}
	if len(uploads) == 0 {
		return models.Application{}, dErrors.New(dErrors.CodeInvalidInput, "at least one document is required")
	}

	for _, upload := range uploads {
		if !upload.Kind.IsValid() {
			return models.Application{}, dErrors.New(dErrors.CodeInvalidInput, "unknown document kind")
		}
		stored, err := s.clients.Storage.Upload(ctx, upload.Filename, upload.Data)
		if err != nil {
			return models.Application{}, err
		}
		now := time.Now()
		doc := models.Document{
			ID:            uuid.New(),
			ApplicationID: app.ID,
			Kind:          upload.Kind,
			StoragePath:   stored.StoragePath,
			ContentHash:   stored.Hash,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.documents.Create(ctx, doc); err != nil {
			return models.Application{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist document")
		}
		s.logger.Info("document stored",
			"application_id", app.ID,
			"kind", upload.Kind,
			"storage_path", stored.StoragePath,
		)
	}

	if err := s.applications.UpdateStatus(ctx, app.ID, models.StatusProcessing); err != nil {
		return models.Application{}, dErrors.Wrap(err, dErrors.CodeInternal, "mark application processing")
	}
	app.Status = models.StatusProcessing

	if _, err := s.auditor.Append(ctx, &app.ID, userID.String(), audit.ActionUpload, map[string]any{
		"device_info": deviceInfo,
	}); err != nil {
		return models.Application{}, err
	}

	if s.queue != nil {
		if err := s.queue.EnqueueProcess(ctx, app.ID); err != nil {
			return models.Application{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "enqueue processing task")
		}
		s.logger.Info("enqueued processing task", "application_id", app.ID)
	}
	return app, nil
}

// Status returns the application for its owner.
func (s *Service) Status(ctx context.Context, applicationID, userID uuid.UUID) (models.Application, error) {
	return s.loadOwned(ctx, applicationID, userID)
}

// Result returns the decided application with its face-match detail, if any.
func (s *Service) Result(ctx context.Context, applicationID, userID uuid.UUID) (models.Application, *models.FaceMatch, error) {
	app, err := s.loadOwned(ctx, applicationID, userID)
	if err != nil {
		return models.Application{}, nil, err
	}
	match, err := s.faceMatches.FindByApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return app, nil, nil
		}
		return models.Application{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "load face match")
	}
	return app, &match, nil
}

// ListFlagged returns the reviewer queue.
func (s *Service) ListFlagged(ctx context.Context) ([]models.Application, error) {
	apps, err := s.applications.ListByStatus(ctx, models.StatusFlagged)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list flagged applications")
	}
	return apps, nil
}

// AuditTrail returns the application's audit records in creation order.
func (s *Service) AuditTrail(ctx context.Context, applicationID uuid.UUID) ([]audit.Record, error) {
	return s.auditor.ListByApplication(ctx, applicationID)
}

func (s *Service) loadOwned(ctx context.Context, applicationID, userID uuid.UUID) (models.Application, error) {
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Application{}, dErrors.Wrap(err, dErrors.CodeNotFound, "application not found")
		}
		return models.Application{}, dErrors.Wrap(err, dErrors.CodeInternal, "load application")
	}
	if userID != uuid.Nil && app.UserID != userID {
		return models.Application{}, dErrors.New(dErrors.CodeUnauthorized, "application belongs to another user")
	}
	return app, nil
}
