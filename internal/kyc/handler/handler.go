// Package handler exposes the verification pipeline over HTTP. It decodes,
// authorizes, and delegates; business rules live in the service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"verity/internal/audit"
	"verity/internal/jwttoken"
	"verity/internal/kyc/models"
	"verity/internal/kyc/service"
	"verity/internal/platform/middleware"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/platform/httputil"
	"verity/pkg/requestcontext"
)

// Service defines the pipeline operations the handler needs.
type Service interface {
	Start(ctx context.Context, userID uuid.UUID, method string) (models.Application, error)
	AttachDocuments(ctx context.Context, applicationID, userID uuid.UUID, uploads []service.Upload, deviceInfo map[string]any) (models.Application, error)
	Status(ctx context.Context, applicationID, userID uuid.UUID) (models.Application, error)
	Result(ctx context.Context, applicationID, userID uuid.UUID) (models.Application, *models.FaceMatch, error)
	ListFlagged(ctx context.Context) ([]models.Application, error)
	ApplyDecision(ctx context.Context, applicationID uuid.UUID, reviewer string, action service.ReviewAction, notes string) (models.Application, error)
	AuditTrail(ctx context.Context, applicationID uuid.UUID) ([]audit.Record, error)
}

// Handler wires verification endpoints to the pipeline service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the applicant and reviewer routes. Everything requires a
// valid token; reviewer routes additionally require the reviewer role.
func (h *Handler) Register(r chi.Router, validator middleware.TokenValidator) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, h.logger))

		r.Post("/kyc/start", h.HandleStart)
		r.Post("/kyc/{id}/documents", h.HandleUpload)
		r.Get("/kyc/{id}/status", h.HandleStatus)
		r.Get("/kyc/{id}/result", h.HandleResult)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(jwttoken.RoleReviewer, h.logger))
			r.Get("/review/queue", h.HandleReviewQueue)
			r.Post("/review/{id}/decision", h.HandleDecision)
			r.Get("/audit/{id}", h.HandleAuditTrail)
		})
	})
}

// HandleStart handles POST /kyc/start.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.Decode[StartRequest](w, r, h.logger)
	if !ok {
		return
	}

	app, err := h.service.Start(ctx, userID, req.Method)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start application",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromApplication(app))
}

// HandleUpload handles POST /kyc/{id}/documents.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	applicationID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[UploadRequest](w, r, h.logger)
	if !ok {
		return
	}
	uploads, err := req.Uploads()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	app, err := h.service.AttachDocuments(ctx, applicationID, userID, uploads, req.DeviceInfo)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to attach documents",
			"request_id", requestcontext.RequestID(ctx),
			"application_id", applicationID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, fromApplication(app))
}

// HandleStatus handles GET /kyc/{id}/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	applicationID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	app, err := h.service.Status(ctx, applicationID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromApplication(app))
}

// HandleResult handles GET /kyc/{id}/result.
func (h *Handler) HandleResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	applicationID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	app, match, err := h.service.Result(ctx, applicationID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromResult(app, match))
}

// HandleReviewQueue handles GET /review/queue.
func (h *Handler) HandleReviewQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	apps, err := h.service.ListFlagged(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, fromApplication(app))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"applications": out})
}

// HandleDecision handles POST /review/{id}/decision.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[DecisionRequest](w, r, h.logger)
	if !ok {
		return
	}
	action, err := service.ParseReviewAction(req.Action)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reviewer := requestcontext.Subject(ctx)
	app, err := h.service.ApplyDecision(ctx, applicationID, reviewer, action, req.Notes)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to apply review decision",
			"request_id", requestcontext.RequestID(ctx),
			"application_id", applicationID,
			"reviewer", reviewer,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromApplication(app))
}

// HandleAuditTrail handles GET /audit/{id}.
func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	records, err := h.service.AuditTrail(ctx, applicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": fromAuditRecords(records)})
}

func (h *Handler) requireUser(w http.ResponseWriter, ctx context.Context) (uuid.UUID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID == uuid.Nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return uuid.Nil, false
	}
	return userID, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
