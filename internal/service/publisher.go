package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/events"
)

// publisher emits notification events after a durable write. Failures are
// logged and never reach the caller.
type publisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func (p publisher) publish(ctx context.Context, c *domain.Case, eventType events.EventType, audience events.Audience, recipient string, at time.Time, payload map[string]any) {
	if p.dispatcher == nil {
		return
	}
	event := events.NewEvent(eventType, c.ID, c.CaseNumber, audience, recipient, at, payload)
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("notification not queued",
			zap.String("case_id", c.ID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

func complainantRecipient(c *domain.Case) string {
	if c.ComplainantContact != "" {
		return c.ComplainantContact
	}
	return c.ComplainantID
}
