package publishevent

import (
	"context"
	"time"

	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/common/metrics"

	"github.com/google/uuid"
)

// Emitter sends analytics and domain events on a best-effort basis: failures
// are logged and counted, never returned. A nil Emitter or nil backends are
// valid and drop events.
type Emitter struct {
	sink      AnalyticsSink
	publisher *SNSPublisher
	logger    logger.Logger
	timeout   time.Duration
}

func NewEmitter(sink AnalyticsSink, publisher *SNSPublisher, log logger.Logger, timeout time.Duration) *Emitter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Emitter{sink: sink, publisher: publisher, logger: log, timeout: timeout}
}

// Emit records an analytics event of eventType.
func (e *Emitter) Emit(ctx context.Context, eventType, conversationID string, tenantID int64, payload map[string]interface{}) {
	if e == nil || e.sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	event := Event{
		ID:             uuid.New().String(),
		Type:           eventType,
		ConversationID: conversationID,
		TenantID:       tenantID,
		Payload:        payload,
		OccurredAt:     time.Now().UTC(),
	}
	if err := e.sink.Record(ctx, event); err != nil {
		metrics.BestEffortFailures.WithLabelValues("analytics").Inc()
		e.logger.Warn("analytics event dropped", map[string]interface{}{
			"eventType":      eventType,
			"conversationId": conversationID,
			"error":          err.Error(),
		})
	}
}

// TenantProvisioned publishes the domain event for a created tenant.
func (e *Emitter) TenantProvisioned(ctx context.Context, msg TenantProvisioned) {
	if e == nil || e.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if msg.ProvisionedAt.IsZero() {
		msg.ProvisionedAt = time.Now().UTC()
	}
	messageID, err := e.publisher.PublishTenantProvisioned(ctx, msg)
	if err != nil {
		metrics.BestEffortFailures.WithLabelValues("domain_event").Inc()
		e.logger.Warn("domain event not published", map[string]interface{}{
			"conversationId": msg.ConversationID,
			"tenantId":       msg.TenantID,
			"error":          err.Error(),
		})
		return
	}
	e.logger.Debug("domain event published", map[string]interface{}{
		"conversationId": msg.ConversationID,
		"messageId":      messageID,
	})
}
