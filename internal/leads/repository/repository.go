package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadrouter_backend/internal/leads/domain"
	"leadrouter_backend/internal/tenants"
	"leadrouter_backend/platform/apperr"
)

const leadNotFoundMessage = "lead not found"

const leadColumns = `
	id, tenant_id, contact_id, name, email, budget_min, budget_max, vertical,
	temperature, lead_score, conversation_stage, prior_stage, qualifying_answers,
	consultation_requested, pitch_sent, last_inbound_at, last_outbound_at,
	nudge_count, ghosted, created_at, updated_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new lead repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// GetByID retrieves a lead by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByContact retrieves the lead for a (tenant, contact) pair.
func (r *Repo) GetByContact(ctx context.Context, tenantID uuid.UUID, contactID string) (Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1 AND contact_id = $2`
	return r.scanOne(r.pool.QueryRow(ctx, query, tenantID, contactID))
}

// GetOrCreate returns the lead for (tenant, contact), creating it when absent.
func (r *Repo) GetOrCreate(ctx context.Context, tenantID uuid.UUID, contactID string, vertical tenants.Vertical) (Lead, bool, error) {
	existing, err := r.GetByContact(ctx, tenantID, contactID)
	if err == nil {
		return existing, false, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return Lead{}, false, err
	}

	query := `
		INSERT INTO leads (
			id, tenant_id, contact_id, vertical, temperature, lead_score,
			conversation_stage, prior_stage, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6, now(), now())
		ON CONFLICT (tenant_id, contact_id) DO NOTHING
		RETURNING ` + leadColumns

	lead, err := r.scanOne(r.pool.QueryRow(ctx, query,
		uuid.New(), tenantID, contactID, vertical, domain.TemperatureCold, domain.StageNew))
	if err == nil {
		return lead, true, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return Lead{}, false, err
	}

	// A concurrent insert won the conflict; read theirs.
	lead, err = r.GetByContact(ctx, tenantID, contactID)
	return lead, false, err
}

// Save persists every mutable field of the lead.
func (r *Repo) Save(ctx context.Context, lead Lead) error {
	query := `
		UPDATE leads SET
			name = $2, email = $3, budget_min = $4, budget_max = $5,
			temperature = $6, lead_score = $7, conversation_stage = $8,
			prior_stage = $9, qualifying_answers = $10, consultation_requested = $11,
			pitch_sent = $12, last_inbound_at = $13, last_outbound_at = $14,
			nudge_count = $15, ghosted = $16, updated_at = now()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		lead.ID, lead.Name, lead.Email, lead.BudgetMin, lead.BudgetMax,
		lead.Temperature, lead.LeadScore, lead.ConversationStage,
		lead.PriorStage, lead.QualifyingAnswers, lead.ConsultationRequested,
		lead.PitchSent, lead.LastInboundAt, lead.LastOutboundAt,
		lead.NudgeCount, lead.Ghosted,
	)
	if err != nil {
		return fmt.Errorf("save lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return nil
}

// RecordDispatch applies the nudge-dispatch side effects as a targeted
// update. The dispatcher runs in another process than the engine, so it must
// never rewrite stage or inbound fields from its own snapshot of the row.
func (r *Repo) RecordDispatch(ctx context.Context, leadID uuid.UUID, spendBudget bool, score int, temperature domain.Temperature) error {
	query := `
		UPDATE leads SET
			nudge_count = nudge_count + CASE WHEN $2 THEN 1 ELSE 0 END,
			last_outbound_at = now(),
			lead_score = $3,
			temperature = $4,
			updated_at = now()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, leadID, spendBudget, score, temperature)
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return nil
}

// MarkGhosted flips a still-idle lead to GHOSTED, preserving the stage it
// came from. The idle guard re-checks inside the UPDATE, so an inbound
// message that landed after the sweep's scan wins: the statement matches no
// row and the lead stays active.
func (r *Repo) MarkGhosted(ctx context.Context, leadID uuid.UUID, idleBefore time.Time) (Lead, bool, error) {
	query := `
		UPDATE leads SET
			prior_stage = conversation_stage,
			conversation_stage = $2,
			ghosted = TRUE,
			updated_at = now()
		WHERE id = $1
		  AND NOT ghosted
		  AND conversation_stage NOT IN ($3, $2)
		  AND last_inbound_at IS NOT NULL
		  AND last_inbound_at < $4
		RETURNING ` + leadColumns

	lead, err := r.scanOne(r.pool.QueryRow(ctx, query, leadID, domain.StageGhosted, domain.StageClosed, idleBefore))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Lead{}, false, nil
		}
		return Lead{}, false, err
	}
	return lead, true, nil
}

// ListByTenant retrieves all leads for a tenant, hottest first.
func (r *Repo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1 ORDER BY lead_score DESC, updated_at DESC`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

// ListIdleCandidates returns idle, non-terminal leads for the sweep.
func (r *Repo) ListIdleCandidates(ctx context.Context, idleBefore time.Time) ([]Lead, error) {
	query := `SELECT ` + leadColumns + `
		FROM leads
		WHERE NOT ghosted
		  AND conversation_stage NOT IN ($1, $2)
		  AND last_inbound_at IS NOT NULL
		  AND last_inbound_at < $3
		ORDER BY last_inbound_at ASC`

	rows, err := r.pool.Query(ctx, query, domain.StageClosed, domain.StageGhosted, idleBefore)
	if err != nil {
		return nil, fmt.Errorf("list idle candidates: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

func (r *Repo) scanOne(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.TenantID, &l.ContactID, &l.Name, &l.Email, &l.BudgetMin, &l.BudgetMax,
		&l.Vertical, &l.Temperature, &l.LeadScore, &l.ConversationStage, &l.PriorStage,
		&l.QualifyingAnswers, &l.ConsultationRequested, &l.PitchSent,
		&l.LastInboundAt, &l.LastOutboundAt, &l.NudgeCount, &l.Ghosted,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("scan lead: %w", err)
	}
	return l, nil
}

func (r *Repo) scanMany(rows pgx.Rows) ([]Lead, error) {
	var out []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(
			&l.ID, &l.TenantID, &l.ContactID, &l.Name, &l.Email, &l.BudgetMin, &l.BudgetMax,
			&l.Vertical, &l.Temperature, &l.LeadScore, &l.ConversationStage, &l.PriorStage,
			&l.QualifyingAnswers, &l.ConsultationRequested, &l.PitchSent,
			&l.LastInboundAt, &l.LastOutboundAt, &l.NudgeCount, &l.Ghosted,
			&l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead row: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
