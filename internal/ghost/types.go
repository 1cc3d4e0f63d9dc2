package ghost

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes why a nudge exists.
type Kind string

const (
	// KindInactivity is a re-engagement nudge created by the idle sweep.
	KindInactivity Kind = "INACTIVITY_NUDGE"
	// KindAppointmentReminder is scheduled explicitly when a viewing is booked.
	KindAppointmentReminder Kind = "APPOINTMENT_REMINDER"
	// KindConsultationFollowup chases a consultation request that stalled.
	KindConsultationFollowup Kind = "CONSULTATION_FOLLOWUP"
)

// Status is a nudge's disposition. PENDING is the only non-terminal state;
// every nudge reaches exactly one terminal state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusSent       Status = "SENT"
	StatusCancelled  Status = "CANCELLED"
	StatusSentFailed Status = "SENT_FAILED"
)

// Nudge is one scheduled outbound re-engagement action for a lead.
type Nudge struct {
	ID           uuid.UUID  `db:"id"`
	LeadID       uuid.UUID  `db:"lead_id"`
	TenantID     uuid.UUID  `db:"tenant_id"`
	ContactID    string     `db:"contact_id"`
	Kind         Kind       `db:"kind"`
	Status       Status     `db:"status"`
	DueAt        time.Time  `db:"due_at"`
	AttemptCount int        `db:"attempt_count"`
	LastSentAt   *time.Time `db:"last_sent_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

// ScheduleParams describes an explicitly scheduled nudge (reminders and
// follow-ups; inactivity nudges come from the sweep, not from callers).
type ScheduleParams struct {
	LeadID    uuid.UUID
	TenantID  uuid.UUID
	ContactID string
	Kind      Kind
	DueAt     time.Time
}
