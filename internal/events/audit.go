package events

import (
	"context"

	"leadrouter_backend/platform/logger"
)

// auditedEvents is every domain event the audit trail records.
var auditedEvents = []string{
	LeadCreated{}.EventName(),
	StageChanged{}.EventName(),
	ConsultationRequested{}.EventName(),
	DealClosed{}.EventName(),
	NudgeSent{}.EventName(),
	LeadGhosted{}.EventName(),
}

// RegisterAuditLog subscribes a structured-log audit trail to every domain
// event. Wired in the composition roots so both binaries get the same trail.
func RegisterAuditLog(bus Bus, log *logger.Logger) {
	handler := HandlerFunc(func(_ context.Context, event Event) error {
		log.Info("domain event", "event", event.EventName(), "occurred_at", event.OccurredAt())
		return nil
	})

	for _, name := range auditedEvents {
		bus.Subscribe(name, handler)
	}
}
