package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"verity/internal/audit"
	"verity/internal/kyc/models"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/platform/sentinel"
)

// ReviewAction is a reviewer's verdict on a flagged application.
type ReviewAction string

const (
	ReviewApprove     ReviewAction = "approve"
	ReviewReject      ReviewAction = "reject"
	ReviewRequestInfo ReviewAction = "request_info"
)

// reviewStatus maps each action to the resulting status. request_info keeps
// the application flagged while more information is collected.
var reviewStatus = map[ReviewAction]models.Status{
	ReviewApprove:     models.StatusApproved,
	ReviewReject:      models.StatusRejected,
	ReviewRequestInfo: models.StatusFlagged,
}

// ParseReviewAction constructs a ReviewAction from external input.
func ParseReviewAction(s string) (ReviewAction, error) {
	a := ReviewAction(s)
	if _, ok := reviewStatus[a]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown review action")
	}
	return a, nil
}

// ApplyDecision records a reviewer's verdict. Reviewers may act on any
// existing application regardless of its current status; overriding an
// earlier decision is allowed deliberately.
func (s *Service) ApplyDecision(ctx context.Context, applicationID uuid.UUID, reviewer string, action ReviewAction, notes string) (models.Application, error) {
	status, ok := reviewStatus[action]
	if !ok {
		return models.Application{}, dErrors.New(dErrors.CodeInvalidInput, "unknown review action")
	}
	if reviewer == "" {
		return models.Application{}, dErrors.New(dErrors.CodeInvalidInput, "reviewer is required")
	}

	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Application{}, dErrors.Wrap(err, dErrors.CodeNotFound, "application not found")
		}
		return models.Application{}, dErrors.Wrap(err, dErrors.CodeInternal, "load application")
	}

	if err := s.applications.UpdateStatus(ctx, app.ID, status); err != nil {
		return models.Application{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist review decision")
	}
	app.Status = status

	if _, err := s.auditor.Append(ctx, &app.ID, reviewer, audit.ActionReviewBase+string(action), map[string]any{
		"notes": notes,
	}); err != nil {
		return models.Application{}, err
	}

	if s.metrics != nil {
		s.metrics.ObserveReview(string(action))
	}
	s.logger.Info("review decision applied",
		"application_id", app.ID,
		"reviewer", reviewer,
		"action", action,
		"status", status,
	)
	return app, nil
}
