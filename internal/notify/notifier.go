// Package notify publishes best-effort pipeline completion events over Redis
// pub/sub. Downstream consumers (webhooks, dashboards) subscribe to the
// risk_scored channel; a missed event is visible via the status endpoint, so
// delivery is not guaranteed and callers never fail on publish errors.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	platformredis "verity/internal/platform/redis"
)

// ChannelRiskScored carries one event per decided application.
const ChannelRiskScored = "risk_scored"

type riskScoredEvent struct {
	ApplicationID string `json:"application_id"`
	RiskScore     *int   `json:"risk_score"`
}

// Notifier publishes pipeline events.
type Notifier struct {
	redis  *platformredis.Client
	logger *slog.Logger
}

// New creates a notifier over the shared Redis client.
func New(redis *platformredis.Client, logger *slog.Logger) *Notifier {
	return &Notifier{redis: redis, logger: logger}
}

// RiskScored announces that an application has been scored and decided.
func (n *Notifier) RiskScored(ctx context.Context, applicationID uuid.UUID, score *int) error {
	payload, err := json.Marshal(riskScoredEvent{
		ApplicationID: applicationID.String(),
		RiskScore:     score,
	})
	if err != nil {
		return err
	}
	if err := n.redis.Publish(ctx, ChannelRiskScored, payload).Err(); err != nil {
		return err
	}
	n.logger.Debug("published risk_scored event", "application_id", applicationID)
	return nil
}
