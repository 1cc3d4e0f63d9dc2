package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadrouter_backend/internal/ghost"
	"leadrouter_backend/platform/config"
)

// Sender dispatches an outbound message to the transport.
type Sender interface {
	SendMessage(ctx context.Context, contactID, message string) error
}

// NudgeScheduler is the engine's view of the ghost protocol: cancel on
// genuine inbound activity, schedule explicit follow-ups. Satisfied by
// *ghost.Service.
type NudgeScheduler interface {
	CancelPending(ctx context.Context, leadID uuid.UUID) (int64, error)
	Schedule(ctx context.Context, params ghost.ScheduleParams) error
}

// EngineConfig is the configuration slice the engine consumes.
type EngineConfig interface {
	config.ScoringConfig
	GetDispatchRetries() int
	GetDispatchBackoffBase() time.Duration
	// GetConsultationFollowupDelay is how long after a consultation request
	// the follow-up nudge fires when no contact details arrive.
	GetConsultationFollowupDelay() time.Duration
	// GetAppointmentReminderDelay is how long after a closed deal the
	// appointment reminder fires.
	GetAppointmentReminderDelay() time.Duration
}
