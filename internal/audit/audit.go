// Package audit implements the hash-linked audit trail. Each append first
// obtains an authoritative hash from the external ledger, then persists a
// local record carrying both the local content hash and the ledger hash.
// Records are immutable once written.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"verity/internal/clients"
	dErrors "verity/pkg/domain-errors"
)

// Actions recorded by the pipeline and the review flow.
const (
	ActionStart      = "kyc_start"
	ActionUpload     = "kyc_upload"
	ActionRiskScored = "risk_scored"
	ActionReviewBase = "review_" // suffixed with the reviewer action
)

// ActorSystem marks records created by the pipeline itself.
const ActorSystem = "orchestrator"

// Record is one append-only audit entry. PrevHash links it to the previous
// record in the same application chain; LogHash is the external ledger's
// authoritative hash.
type Record struct {
	ID              uuid.UUID
	ApplicationID   *uuid.UUID
	Actor           string
	Action          string
	Payload         map[string]any
	PrevHash        string
	ContentHash     string
	LogHash         string
	ExternalAuditID string
	CreatedAt       time.Time
}

// Store persists audit records. Append must reject duplicates by ID and
// implementations never mutate stored records.
type Store interface {
	Append(ctx context.Context, record Record) error
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Record, error)
	// LastHash returns the content hash of the newest record in the chain,
	// or "" for an empty chain.
	LastHash(ctx context.Context, chainID uuid.UUID) (string, error)
}

// Writer appends chained records locally and mirrors them to the external
// ledger. The external append happens first; if it ultimately fails after the
// client's retries, no local record is written.
type Writer struct {
	store  Store
	ledger clients.Audit
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Writer.
type Option func(*Writer)

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) { w.logger = logger }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter builds a Writer over a local store and the external ledger client.
func NewWriter(store Store, ledger clients.Audit, opts ...Option) (*Writer, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("audit ledger client is required")
	}
	w := &Writer{
		store:  store,
		ledger: ledger,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Append creates exactly one local record and one external append per call.
// applicationID may be nil for records outside any application chain; those
// link into a shared system chain instead.
func (w *Writer) Append(ctx context.Context, applicationID *uuid.UUID, actor, action string, payload map[string]any) (Record, error) {
	if actor == "" || action == "" {
		return Record{}, dErrors.New(dErrors.CodeInvalidInput, "audit append requires actor and action")
	}
	if payload == nil {
		payload = map[string]any{}
	}

	chainID := uuid.Nil
	if applicationID != nil {
		chainID = *applicationID
	}
	prevHash, err := w.store.LastHash(ctx, chainID)
	if err != nil {
		return Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "load audit chain head")
	}

	contentHash, err := chainHash(prevHash, applicationID, actor, action, payload)
	if err != nil {
		return Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "hash audit payload")
	}

	external, err := w.ledger.Append(ctx, clients.AuditAppendRequest{
		AuditID:  chainID.String(),
		Actor:    actor,
		Action:   action,
		Payload:  payload,
		PrevHash: prevHash,
	})
	if err != nil {
		// All-or-nothing: no local record without a ledger ack.
		return Record{}, err
	}

	record := Record{
		ID:              uuid.New(),
		ApplicationID:   applicationID,
		Actor:           actor,
		Action:          action,
		Payload:         payload,
		PrevHash:        prevHash,
		ContentHash:     contentHash,
		LogHash:         external.LogHash,
		ExternalAuditID: external.AuditID,
		CreatedAt:       w.now(),
	}
	if err := w.store.Append(ctx, record); err != nil {
		return Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist audit record")
	}

	w.logger.Info("audit record appended",
		"action", action,
		"actor", actor,
		"application_id", applicationID,
		"log_hash", record.LogHash,
	)
	return record, nil
}

// ListByApplication returns the application's records ordered by creation
// time ascending.
func (w *Writer) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Record, error) {
	records, err := w.store.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit records")
	}
	return records, nil
}

// chainHash computes sha256 over the previous hash and the canonical JSON of
// the record body. encoding/json emits map keys in sorted order, so marshaling
// the map form is deterministic.
func chainHash(prevHash string, applicationID *uuid.UUID, actor, action string, payload map[string]any) (string, error) {
	body := map[string]any{
		"actor":   actor,
		"action":  action,
		"payload": payload,
	}
	if applicationID != nil {
		body["application_id"] = applicationID.String()
	} else {
		body["application_id"] = nil
	}
	canonical, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(prevHash + "|" + string(canonical)))
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
