package transport

import (
	"time"

	"github.com/google/uuid"

	"leadrouter_backend/internal/leads/repository"
)

// LeadResponse represents a lead in the dashboard read API.
type LeadResponse struct {
	ID                uuid.UUID  `json:"id"`
	ContactID         string     `json:"contactId"`
	Name              *string    `json:"name,omitempty"`
	Email             *string    `json:"email,omitempty"`
	BudgetMin         *int       `json:"budgetMin,omitempty"`
	BudgetMax         *int       `json:"budgetMax,omitempty"`
	Vertical          string     `json:"vertical"`
	Temperature       string     `json:"temperature"`
	LeadScore         int        `json:"lead_score"`
	ConversationStage string     `json:"conversation_stage"`
	LastInboundAt     *time.Time `json:"lastInboundAt,omitempty"`
	LastOutboundAt    *time.Time `json:"lastOutboundAt,omitempty"`
	NudgeCount        int        `json:"nudgeCount"`
	Ghosted           bool       `json:"ghosted"`
}

// LeadListResponse wraps the lead list.
type LeadListResponse struct {
	Leads []LeadResponse `json:"leads"`
	Total int            `json:"total"`
}

// FromLead maps a repository lead to its API shape.
func FromLead(l repository.Lead) LeadResponse {
	return LeadResponse{
		ID:                l.ID,
		ContactID:         l.ContactID,
		Name:              l.Name,
		Email:             l.Email,
		BudgetMin:         l.BudgetMin,
		BudgetMax:         l.BudgetMax,
		Vertical:          string(l.Vertical),
		Temperature:       string(l.Temperature),
		LeadScore:         l.LeadScore,
		ConversationStage: string(l.ConversationStage),
		LastInboundAt:     l.LastInboundAt,
		LastOutboundAt:    l.LastOutboundAt,
		NudgeCount:        l.NudgeCount,
		Ghosted:           l.Ghosted,
	}
}
