package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"verity/internal/audit"
	"verity/internal/clients"
	"verity/internal/kyc/models"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/platform/sentinel"
)

// Process runs the pipeline for one application: OCR per document, face
// match, feature aggregation, risk scoring, decision, one status commit, and
// a risk_scored audit append.
//
// The status guard makes redelivered or duplicated triggers safe: anything
// not in PROCESSING is a no-op. Transient downstream failures propagate as
// downstream_unavailable; the dispatcher owns task-level retry.
func (s *Service) Process(ctx context.Context, applicationID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "kyc.Process")
	defer span.End()

	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "application not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load application")
	}

	if app.Status != models.StatusProcessing {
		s.logger.Info("skipping application not in PROCESSING",
			"application_id", applicationID,
			"status", app.Status,
		)
		return nil
	}

	docs, err := s.documents.ListByApplication(ctx, applicationID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load documents")
	}
	if err := checkPreconditions(docs); err != nil {
		// The application stays in PROCESSING: regressing the status would
		// mask a data-entry bug instead of surfacing it.
		return err
	}

	if err := s.runOCR(ctx, app, docs); err != nil {
		return err
	}

	face, err := s.runFaceMatch(ctx, app, docs)
	if err != nil {
		return err
	}

	// Reload so the features see the OCR confidences written above.
	docs, err = s.documents.ListByApplication(ctx, applicationID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "reload documents")
	}
	features := BuildFeatures(docs, &face, FeatureMeta{})

	risk, err := s.clients.Risk.Score(ctx, clients.RiskRequest{
		ApplicationID: app.ID.String(),
		Features:      features,
		Meta:          map[string]string{"actor": audit.ActorSystem},
	})
	if err != nil {
		return err
	}

	status := s.decide(risk.Score)
	var level *models.RiskLevel
	if risk.Level != "" {
		parsed, err := models.ParseRiskLevel(risk.Level)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeMalformedResponse, "risk returned an unknown level")
		}
		level = &parsed
	}

	// Single commit: status, score, and level move together.
	if err := s.applications.UpdateDecision(ctx, app.ID, status, risk.Score, level); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit decision")
	}

	if s.metrics != nil {
		s.metrics.ObserveProcessed(status.String())
	}
	s.logger.Info("application decided",
		"application_id", app.ID,
		"status", status,
		"risk_score", risk.Score,
	)

	if _, err := s.auditor.Append(ctx, &app.ID, audit.ActorSystem, audit.ActionRiskScored, map[string]any{
		"features": features,
		"risk_response": map[string]any{
			"risk_score":   risk.Score,
			"drpa_level":   risk.Level,
			"explanations": risk.Explanations,
			"audit_id":     risk.AuditID,
		},
	}); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.RiskScored(ctx, app.ID, risk.Score); err != nil {
			// Best-effort: never fails the pipeline.
			s.logger.Warn("failed to publish completion event",
				"application_id", app.ID,
				"error", err,
			)
		}
	}
	return nil
}

// checkPreconditions requires at least one primary-ID document and exactly
// one selfie. Missing either is fatal and non-retryable.
func checkPreconditions(docs []models.Document) error {
	var idCards, selfies int
	for _, doc := range docs {
		switch doc.Kind {
		case models.DocumentKindIDCard:
			idCards++
		case models.DocumentKindSelfie:
			selfies++
		}
	}
	if idCards < 1 {
		return dErrors.New(dErrors.CodePreconditionFailed, "application has no primary ID document")
	}
	if selfies != 1 {
		return dErrors.New(dErrors.CodePreconditionFailed, "application must have exactly one selfie document")
	}
	return nil
}

// runOCR calls OCR for every document and persists each result. OCR calls are
// side-effect-free downstream, so a retried attempt redoing all documents is
// safe; prior results are simply overwritten.
func (s *Service) runOCR(ctx context.Context, app models.Application, docs []models.Document) error {
	ctx, span := s.tracer.Start(ctx, "kyc.ocr")
	defer span.End()
	start := time.Now()

	for _, doc := range docs {
		result, err := s.clients.OCR.Infer(ctx, clients.OCRRequest{
			ApplicationID: app.ID.String(),
			DocumentKind:  doc.Kind.String(),
			Image:         []byte(doc.StoragePath),
			Meta: map[string]string{
				"doc_type":     doc.Kind.String(),
				"storage_path": doc.StoragePath,
			},
		})
		if err != nil {
			return err
		}
		if err := s.documents.UpdateOCR(ctx, doc.ID, result.Fields, result.Confidence, result.DocHash); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "persist ocr result")
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveStage("ocr", time.Since(start))
	}
	return nil
}

// runFaceMatch compares the ID front against the selfie and upserts the
// application's single face-match row.
//
// TODO: fetch document bytes from the storage service once it exposes a
// download endpoint; until then the storage reference stands in for the
// image payload, matching what the downstream fixture services expect.
func (s *Service) runFaceMatch(ctx context.Context, app models.Application, docs []models.Document) (models.FaceMatch, error) {
	ctx, span := s.tracer.Start(ctx, "kyc.facematch")
	defer span.End()
	start := time.Now()

	var idDoc, selfieDoc *models.Document
	for i := range docs {
		switch docs[i].Kind {
		case models.DocumentKindIDCard:
			if idDoc == nil {
				idDoc = &docs[i]
			}
		case models.DocumentKindSelfie:
			selfieDoc = &docs[i]
		}
	}

	result, err := s.clients.FaceMatch.Match(ctx, clients.FaceMatchRequest{
		ApplicationID:   app.ID.String(),
		IDPhoto:         []byte(idDoc.StoragePath),
		Selfie:          []byte(selfieDoc.StoragePath),
		RequireLiveness: true,
	})
	if err != nil {
		return models.FaceMatch{}, err
	}

	liveness := models.LivenessVerdict(result.Liveness)
	if liveness == "" {
		liveness = models.LivenessUnknown
	}
	match, err := s.faceMatches.Upsert(ctx, models.FaceMatch{
		ApplicationID: app.ID,
		Similarity:    result.Similarity,
		Liveness:      liveness,
		EmbeddingHash: result.EmbeddingHash,
	})
	if err != nil {
		return models.FaceMatch{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist face match")
	}

	if s.metrics != nil {
		s.metrics.ObserveStage("facematch", time.Since(start))
	}
	return match, nil
}

// decide applies the approval policy: a present score strictly below the
// threshold approves; anything else flags for review.
func (s *Service) decide(score *int) models.Status {
	if score != nil && *score < s.approveThreshold {
		return models.StatusApproved
	}
	return models.StatusFlagged
}
