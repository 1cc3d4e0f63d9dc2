package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadrouter_backend/internal/leads/domain"
	"leadrouter_backend/internal/tenants"
)

// Lead is the tenant-scoped identity of a contact. A lead outlives its
// routing session; only the session is ephemeral.
type Lead struct {
	ID                    uuid.UUID          `db:"id"`
	TenantID              uuid.UUID          `db:"tenant_id"`
	ContactID             string             `db:"contact_id"`
	Name                  *string            `db:"name"`
	Email                 *string            `db:"email"`
	BudgetMin             *int               `db:"budget_min"`
	BudgetMax             *int               `db:"budget_max"`
	Vertical              tenants.Vertical   `db:"vertical"`
	Temperature           domain.Temperature `db:"temperature"`
	LeadScore             int                `db:"lead_score"`
	ConversationStage     domain.Stage       `db:"conversation_stage"`
	PriorStage            domain.Stage       `db:"prior_stage"`
	QualifyingAnswers     int                `db:"qualifying_answers"`
	ConsultationRequested bool               `db:"consultation_requested"`
	PitchSent             bool               `db:"pitch_sent"`
	LastInboundAt         *time.Time         `db:"last_inbound_at"`
	LastOutboundAt        *time.Time         `db:"last_outbound_at"`
	NudgeCount            int                `db:"nudge_count"`
	Ghosted               bool               `db:"ghosted"`
	CreatedAt             time.Time          `db:"created_at"`
	UpdatedAt             time.Time          `db:"updated_at"`
}

// Reader provides read operations for leads.
type Reader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	GetByContact(ctx context.Context, tenantID uuid.UUID, contactID string) (Lead, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Lead, error)
	// ListIdleCandidates returns non-terminal leads whose last inbound
	// activity predates idleBefore. The sweep decides per lead whether the
	// nudge budget allows another nudge or the lead flips to GHOSTED.
	ListIdleCandidates(ctx context.Context, idleBefore time.Time) ([]Lead, error)
}

// Writer provides write operations for leads.
type Writer interface {
	// GetOrCreate returns the lead for (tenant, contact), creating it in
	// stage NEW when absent. The second result reports creation.
	GetOrCreate(ctx context.Context, tenantID uuid.UUID, contactID string, vertical tenants.Vertical) (Lead, bool, error)
	// Save persists every mutable field of the lead. Callers hold the
	// per-lead lock, so last-write-wins is safe here.
	Save(ctx context.Context, lead Lead) error
	// RecordDispatch stamps a nudge dispatch on the lead: last_outbound_at,
	// rescore, plus the budget increment for inactivity nudges. Targeted
	// update only; the dispatcher runs outside the per-lead lock and must
	// not overwrite concurrent engine writes.
	RecordDispatch(ctx context.Context, leadID uuid.UUID, spendBudget bool, score int, temperature domain.Temperature) error
	// MarkGhosted moves a lead to GHOSTED when it is still idle at the time
	// of the UPDATE itself. Returns the updated lead and false when an
	// intervening inbound message disqualified it.
	MarkGhosted(ctx context.Context, leadID uuid.UUID, idleBefore time.Time) (Lead, bool, error)
}

// Repository combines all lead persistence operations.
type Repository interface {
	Reader
	Writer
}
