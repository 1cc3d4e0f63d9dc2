// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadrouter_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Conversation Domain Events
// =============================================================================

// LeadCreated is published when a first inbound message creates a new lead.
type LeadCreated struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	TenantID  uuid.UUID `json:"tenantId"`
	ContactID string    `json:"contactId"`
	Vertical  string    `json:"vertical"`
}

func (e LeadCreated) EventName() string { return "conversation.lead.created" }

// StageChanged is published when a lead moves to a new conversation stage.
type StageChanged struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Signal   string    `json:"signal"`
}

func (e StageChanged) EventName() string { return "conversation.stage.changed" }

// ConsultationRequested is published when a lead asks for a consultation.
type ConsultationRequested struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
}

func (e ConsultationRequested) EventName() string { return "conversation.consultation.requested" }

// DealClosed is published when a lead reaches the CLOSED stage.
type DealClosed struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
}

func (e DealClosed) EventName() string { return "conversation.deal.closed" }

// =============================================================================
// Ghost Protocol Events
// =============================================================================

// NudgeSent is published after a re-engagement nudge was dispatched.
type NudgeSent struct {
	BaseEvent
	NudgeID    uuid.UUID `json:"nudgeId"`
	LeadID     uuid.UUID `json:"leadId"`
	TenantID   uuid.UUID `json:"tenantId"`
	Kind       string    `json:"kind"`
	NudgeCount int       `json:"nudgeCount"`
}

func (e NudgeSent) EventName() string { return "ghost.nudge.sent" }

// LeadGhosted is published when a lead exhausts its nudge budget and is
// marked GHOSTED.
type LeadGhosted struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	TenantID   uuid.UUID `json:"tenantId"`
	NudgeCount int       `json:"nudgeCount"`
}

func (e LeadGhosted) EventName() string { return "ghost.lead.ghosted" }
