package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"verity/internal/platform/config"
	"verity/internal/platform/logger"
	dErrors "verity/pkg/domain-errors"
)

type HTTPClientSuite struct {
	suite.Suite
	ctx context.Context
}

func TestHTTPClientSuite(t *testing.T) {
	suite.Run(t, new(HTTPClientSuite))
}

func (s *HTTPClientSuite) SetupTest() {
	s.ctx = context.Background()
}

// newSet points every client at the same test server with retries enabled
// and zero backoff.
func (s *HTTPClientSuite) newSet(server *httptest.Server) *Set {
	urls := config.ServiceURLs{
		OCR:       server.URL,
		FaceMatch: server.URL,
		Risk:      server.URL,
		Storage:   server.URL,
		Audit:     server.URL,
	}
	return NewHTTP(urls, 0, WithLogger(logger.Discard()), WithBackoff(0))
}

// TestRetryPolicy verifies transient failures retry and permanent ones do not.
func (s *HTTPClientSuite) TestRetryPolicy() {
	s.Run("retries 503 and succeeds", func() {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ocr_json":       map[string]any{"full_name": "Sample Citizen"},
				"doc_confidence": 0.9,
				"doc_hash":       "abc",
			})
		}))
		defer server.Close()

		set := s.newSet(server)
		result, err := set.OCR.Infer(s.ctx, OCRRequest{ApplicationID: "app-1", DocumentKind: "id_card"})
		s.Require().NoError(err)
		s.Equal(int32(3), calls.Load())
		s.InDelta(0.9, result.Confidence, 1e-9)
	})

	s.Run("exhausts retries and names the service", func() {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		set := s.newSet(server)
		_, err := set.Risk.Score(s.ctx, RiskRequest{ApplicationID: "app-1"})
		s.Require().Error(err)
		s.Equal(int32(3), calls.Load())
		s.Equal(dErrors.CodeUnavailable, dErrors.CodeOf(err))
		s.Contains(err.Error(), "risk")
		s.True(IsTransient(err))
	})

	s.Run("does not retry 400", func() {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		set := s.newSet(server)
		_, err := set.FaceMatch.Match(s.ctx, FaceMatchRequest{ApplicationID: "app-1"})
		s.Require().Error(err)
		s.Equal(int32(1), calls.Load())
		s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
		s.False(IsTransient(err))
	})

	s.Run("retries connection errors", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // nothing is listening

		set := s.newSet(server)
		_, err := set.Storage.Upload(s.ctx, "id.jpg", []byte("bytes"))
		s.Require().Error(err)
		s.Equal(dErrors.CodeUnavailable, dErrors.CodeOf(err))
	})
}

// TestResponseValidation verifies malformed and incomplete bodies are
// rejected without retries.
func (s *HTTPClientSuite) TestResponseValidation() {
	s.Run("rejects non-JSON body", func() {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte("not json"))
		}))
		defer server.Close()

		set := s.newSet(server)
		_, err := set.OCR.Infer(s.ctx, OCRRequest{ApplicationID: "app-1"})
		s.Require().Error(err)
		s.Equal(int32(1), calls.Load())
		s.Equal(dErrors.CodeMalformedResponse, dErrors.CodeOf(err))
	})

	s.Run("rejects upload response without storage_path", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"hash": "abc"})
		}))
		defer server.Close()

		set := s.newSet(server)
		_, err := set.Storage.Upload(s.ctx, "id.jpg", []byte("bytes"))
		s.Require().Error(err)
		s.Equal(dErrors.CodeMalformedResponse, dErrors.CodeOf(err))
	})

	s.Run("rejects ledger response without log_hash", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"audit_id": "a-1"})
		}))
		defer server.Close()

		set := s.newSet(server)
		_, err := set.Audit.Append(s.ctx, AuditAppendRequest{AuditID: "a-1", Actor: "x", Action: "y"})
		s.Require().Error(err)
		s.Equal(dErrors.CodeMalformedResponse, dErrors.CodeOf(err))
	})
}

// TestWireShapes verifies the request bodies carry the fields the downstream
// contracts expect.
func (s *HTTPClientSuite) TestWireShapes() {
	s.Run("ocr request encodes image and meta", func() {
		var got map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.Require().NoError(json.NewDecoder(r.Body).Decode(&got))
			s.Equal("/infer/document", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]any{"doc_confidence": 0.5})
		}))
		defer server.Close()

		set := s.newSet(server)
		_, err := set.OCR.Infer(s.ctx, OCRRequest{
			ApplicationID: "app-1",
			DocumentKind:  "id_card",
			Image:         []byte("img"),
			Meta:          map[string]string{"storage_path": "s3://x"},
		})
		s.Require().NoError(err)
		s.Equal("app-1", got["application_id"])
		s.Equal("id_card", got["document_type"])
		s.NotEmpty(got["image_base64"])
	})

	s.Run("audit request carries the chain link", func() {
		var got map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.Require().NoError(json.NewDecoder(r.Body).Decode(&got))
			s.Equal("/audit/append", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]any{"log_hash": "sha256:x", "audit_id": "a-1"})
		}))
		defer server.Close()

		set := s.newSet(server)
		result, err := set.Audit.Append(s.ctx, AuditAppendRequest{
			AuditID:  "a-1",
			Actor:    "orchestrator",
			Action:   "risk_scored",
			PrevHash: "sha256:prev",
		})
		s.Require().NoError(err)
		s.Equal("sha256:prev", got["prev_hash"])
		s.Equal("sha256:x", result.LogHash)
	})
}
