package handler

import (
	"encoding/base64"
	"time"

	"verity/internal/audit"
	"verity/internal/kyc/models"
	"verity/internal/kyc/service"
	dErrors "verity/pkg/domain-errors"
)

// StartRequest opens a new verification application.
type StartRequest struct {
	Method string `json:"method"`
}

// DocumentUpload is one base64-encoded file in an upload request.
type DocumentUpload struct {
	Kind       string `json:"kind"`
	Filename   string `json:"filename"`
	DataBase64 string `json:"data_base64"`
}

// UploadRequest attaches documents to an application and starts the pipeline.
type UploadRequest struct {
	Documents  []DocumentUpload `json:"documents"`
	DeviceInfo map[string]any   `json:"device_info,omitempty"`
}

// Uploads decodes the request into service uploads.
func (r UploadRequest) Uploads() ([]service.Upload, error) {
	uploads := make([]service.Upload, 0, len(r.Documents))
	for _, doc := range r.Documents {
		kind, err := models.ParseDocumentKind(doc.Kind)
		if err != nil {
			return nil, err
		}
		data, err := base64.StdEncoding.DecodeString(doc.DataBase64)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "data_base64 is not valid base64")
		}
		uploads = append(uploads, service.Upload{
			Kind:     kind,
			Filename: doc.Filename,
			Data:     data,
		})
	}
	return uploads, nil
}

// DecisionRequest records a reviewer verdict.
type DecisionRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes,omitempty"`
}

// ApplicationResponse is the wire shape of an application.
type ApplicationResponse struct {
	ApplicationID string  `json:"application_id"`
	UserID        string  `json:"user_id"`
	Method        string  `json:"method"`
	Status        string  `json:"status"`
	RiskScore     *int    `json:"risk_score,omitempty"`
	RiskLevel     *string `json:"risk_level,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func fromApplication(app models.Application) ApplicationResponse {
	resp := ApplicationResponse{
		ApplicationID: app.ID.String(),
		UserID:        app.UserID.String(),
		Method:        app.Method,
		Status:        app.Status.String(),
		RiskScore:     app.RiskScore,
		CreatedAt:     app.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     app.UpdatedAt.Format(time.RFC3339),
	}
	if app.RiskLevel != nil {
		level := app.RiskLevel.String()
		resp.RiskLevel = &level
	}
	return resp
}

// FaceMatchResponse is the face-match detail on a result.
type FaceMatchResponse struct {
	Similarity    float64 `json:"similarity"`
	Liveness      string  `json:"liveness"`
	EmbeddingHash string  `json:"embedding_hash,omitempty"`
}

// ResultResponse is an application with its face-match detail.
type ResultResponse struct {
	ApplicationResponse
	FaceMatch *FaceMatchResponse `json:"face_match,omitempty"`
}

func fromResult(app models.Application, match *models.FaceMatch) ResultResponse {
	resp := ResultResponse{ApplicationResponse: fromApplication(app)}
	if match != nil {
		resp.FaceMatch = &FaceMatchResponse{
			Similarity:    match.Similarity,
			Liveness:      string(match.Liveness),
			EmbeddingHash: match.EmbeddingHash,
		}
	}
	return resp
}

// AuditRecordResponse is one audit chain entry.
type AuditRecordResponse struct {
	ID              string         `json:"id"`
	Actor           string         `json:"actor"`
	Action          string         `json:"action"`
	Payload         map[string]any `json:"payload,omitempty"`
	PrevHash        string         `json:"prev_hash"`
	LogHash         string         `json:"log_hash"`
	ExternalAuditID string         `json:"external_audit_id,omitempty"`
	CreatedAt       string         `json:"created_at"`
}

func fromAuditRecords(records []audit.Record) []AuditRecordResponse {
	out := make([]AuditRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, AuditRecordResponse{
			ID:              rec.ID.String(),
			Actor:           rec.Actor,
			Action:          rec.Action,
			Payload:         rec.Payload,
			PrevHash:        rec.PrevHash,
			LogHash:         rec.LogHash,
			ExternalAuditID: rec.ExternalAuditID,
			CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
