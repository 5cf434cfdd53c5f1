package event

import (
	"context"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LoggingHandler writes every domain event to the structured log as an
// audit trail
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger.Named("events")}
}

// EventTypes subscribes to all events
func (h *LoggingHandler) EventTypes() []string { return nil }

// Handle logs the event with its correlation fields
func (h *LoggingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}
	if id := logger.GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if job := logger.GetJob(ctx); job != "" {
		fields = append(fields, zap.String("job", job))
	}
	h.logger.Info("domain event", fields...)
	return nil
}
