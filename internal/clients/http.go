package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"verity/internal/platform/config"
	dErrors "verity/pkg/domain-errors"
)

const (
	maxAttempts    = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 4 * time.Second
)

// core owns the shared HTTP machinery: one configured http.Client, retry with
// exponential backoff on transient classifications, and response decoding.
type core struct {
	http    *http.Client
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	backoff time.Duration
}

// Option configures the HTTP client set.
type Option func(*core)

// WithLogger sets a logger for retry visibility.
func WithLogger(logger *slog.Logger) Option {
	return func(c *core) { c.logger = logger }
}

// WithMetrics sets the call/retry metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(c *core) { c.metrics = m }
}

// WithBackoff overrides the initial backoff. Tests set this to zero.
func WithBackoff(d time.Duration) Option {
	return func(c *core) { c.backoff = d }
}

// NewHTTP builds the live client set against the configured base URLs.
func NewHTTP(urls config.ServiceURLs, timeout time.Duration, opts ...Option) *Set {
	c := &core{
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default(),
		tracer:  otel.Tracer("verity/clients"),
		backoff: initialBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return &Set{
		Storage:   &storageHTTP{core: c, base: urls.Storage},
		OCR:       &ocrHTTP{core: c, base: urls.OCR},
		FaceMatch: &faceMatchHTTP{core: c, base: urls.FaceMatch},
		Risk:      &riskHTTP{core: c, base: urls.Risk},
		Audit:     &auditHTTP{core: c, base: urls.Audit},
	}
}

func transientStatus(status int) bool {
	return status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

// postJSON performs one POST per attempt, retrying only transient failures.
// Exhaustion surfaces as a downstream_unavailable coded error naming the
// service; non-transient failures propagate from the failing attempt.
func (c *core) postJSON(ctx context.Context, service, url string, body any, out any) error {
	ctx, span := c.tracer.Start(ctx, "clients."+service)
	defer span.End()

	payload, err := json.Marshal(body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode "+service+" request")
	}

	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := c.once(ctx, service, url, payload, out)
		if err == nil {
			if c.metrics != nil {
				c.metrics.ObserveCall(service, "ok")
			}
			return nil
		}
		lastErr = err

		var de *DownstreamError
		if !errors.As(err, &de) || !de.Transient {
			if c.metrics != nil {
				c.metrics.ObserveCall(service, "failed")
			}
			return err
		}
		if attempt == maxAttempts {
			break
		}

		c.logger.Warn("retrying downstream call",
			"service", service,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.ObserveRetry(service)
		}
		select {
		case <-ctx.Done():
			return dErrors.Wrap(ctx.Err(), dErrors.CodeUnavailable, service+" call cancelled")
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	if c.metrics != nil {
		c.metrics.ObserveCall(service, "exhausted")
	}
	return dErrors.Wrap(lastErr, dErrors.CodeUnavailable, service+" unavailable after retries")
}

func (c *core) once(ctx context.Context, service, url string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build "+service+" request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Connection-level failures are retryable by policy.
		return &DownstreamError{Service: service, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if transientStatus(resp.StatusCode) {
		return &DownstreamError{Service: service, Status: resp.StatusCode, Transient: true,
			Err: fmt.Errorf("retryable status %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		de := &DownstreamError{Service: service, Status: resp.StatusCode,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
		return dErrors.Wrap(de, dErrors.CodeInternal, service+" rejected request")
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &DownstreamError{Service: service, Transient: true, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		de := &DownstreamError{Service: service, Err: err}
		return dErrors.Wrap(de, dErrors.CodeMalformedResponse, service+" returned an unexpected shape")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Per-service wrappers
// -----------------------------------------------------------------------------

type storageHTTP struct {
	core *core
	base string
}

func (s *storageHTTP) Upload(ctx context.Context, filename string, data []byte) (UploadResult, error) {
	req := map[string]any{
		"filename":    filename,
		"file_base64": base64.StdEncoding.EncodeToString(data),
	}
	var out UploadResult
	if err := s.core.postJSON(ctx, ServiceStorage, s.base+"/store/upload", req, &out); err != nil {
		return UploadResult{}, err
	}
	if out.StoragePath == "" {
		de := &DownstreamError{Service: ServiceStorage, Err: errors.New("missing storage_path")}
		return UploadResult{}, dErrors.Wrap(de, dErrors.CodeMalformedResponse, "storage returned an unexpected shape")
	}
	return out, nil
}

type ocrHTTP struct {
	core *core
	base string
}

func (o *ocrHTTP) Infer(ctx context.Context, req OCRRequest) (OCRResult, error) {
	body := map[string]any{
		"application_id": req.ApplicationID,
		"document_type":  req.DocumentKind,
		"image_base64":   base64.StdEncoding.EncodeToString(req.Image),
		"meta":           req.Meta,
	}
	var out OCRResult
	if err := o.core.postJSON(ctx, ServiceOCR, o.base+"/infer/document", body, &out); err != nil {
		return OCRResult{}, err
	}
	return out, nil
}

type faceMatchHTTP struct {
	core *core
	base string
}

func (f *faceMatchHTTP) Match(ctx context.Context, req FaceMatchRequest) (FaceMatchResult, error) {
	body := map[string]any{
		"application_id":   req.ApplicationID,
		"id_photo_base64":  base64.StdEncoding.EncodeToString(req.IDPhoto),
		"selfie_base64":    base64.StdEncoding.EncodeToString(req.Selfie),
		"require_liveness": req.RequireLiveness,
	}
	var out FaceMatchResult
	if err := f.core.postJSON(ctx, ServiceFaceMatch, f.base+"/face/match", body, &out); err != nil {
		return FaceMatchResult{}, err
	}
	return out, nil
}

type riskHTTP struct {
	core *core
	base string
}

func (r *riskHTTP) Score(ctx context.Context, req RiskRequest) (RiskResult, error) {
	body := map[string]any{
		"application_id": req.ApplicationID,
		"features":       req.Features,
		"meta":           req.Meta,
	}
	var out RiskResult
	if err := r.core.postJSON(ctx, ServiceRisk, r.base+"/score", body, &out); err != nil {
		return RiskResult{}, err
	}
	return out, nil
}

type auditHTTP struct {
	core *core
	base string
}

func (a *auditHTTP) Append(ctx context.Context, req AuditAppendRequest) (AuditAppendResult, error) {
	body := map[string]any{
		"audit_id":  req.AuditID,
		"actor":     req.Actor,
		"action":    req.Action,
		"payload":   req.Payload,
		"prev_hash": req.PrevHash,
	}
	var out AuditAppendResult
	if err := a.core.postJSON(ctx, ServiceAudit, a.base+"/audit/append", body, &out); err != nil {
		return AuditAppendResult{}, err
	}
	if out.LogHash == "" {
		de := &DownstreamError{Service: ServiceAudit, Err: errors.New("missing log_hash")}
		return AuditAppendResult{}, dErrors.Wrap(de, dErrors.CodeMalformedResponse, "audit returned an unexpected shape")
	}
	return out, nil
}
