package events

import (
	"context"
	"log/slog"
)

// RegisterAuditLogger writes one structured line per domain event.
func RegisterAuditLogger(bus *EventBus, logger *slog.Logger) {
	audit := logger.With("component", "audit")
	bus.Subscribe(Wildcard, func(ctx context.Context, event Event) error {
		audit.Info("domain event",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	})
}
