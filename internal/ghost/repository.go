package ghost

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadrouter_backend/platform/apperr"
)

const nudgeColumns = `
	id, lead_id, tenant_id, contact_id, kind, status, due_at,
	attempt_count, last_sent_at, created_at`

// Repository persists scheduled nudges. All status flips are guarded
// UPDATEs conditioned on the current status, so a cancel racing a dispatch
// resolves deterministically at the row: whichever lands first wins and the
// loser observes zero affected rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates the nudge repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending nudge. At most one pending nudge of a given kind
// may exist per lead; a second insert is swallowed and reported as false.
func (r *Repository) Create(ctx context.Context, params ScheduleParams) (Nudge, bool, error) {
	query := `
		INSERT INTO scheduled_nudges (id, lead_id, tenant_id, contact_id, kind, status, due_at, attempt_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, now())
		ON CONFLICT (lead_id, kind) WHERE status = 'PENDING' DO NOTHING
		RETURNING ` + nudgeColumns

	nudge, err := r.scanOne(r.pool.QueryRow(ctx, query,
		uuid.New(), params.LeadID, params.TenantID, params.ContactID, params.Kind, StatusPending, params.DueAt))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Nudge{}, false, nil
		}
		return Nudge{}, false, err
	}
	return nudge, true, nil
}

// GetByID retrieves a nudge.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Nudge, error) {
	query := `SELECT ` + nudgeColumns + ` FROM scheduled_nudges WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// ClaimForSend flips PENDING to SENT and stamps the attempt, returning false
// when the nudge was already cancelled or dispatched by someone else.
func (r *Repository) ClaimForSend(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE scheduled_nudges
		SET status = $2, attempt_count = attempt_count + 1, last_sent_at = now()
		WHERE id = $1 AND status = $3`,
		id, StatusSent, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim nudge: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed records terminal dispatch failure for an already-claimed nudge.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scheduled_nudges SET status = $2 WHERE id = $1 AND status = $3`,
		id, StatusSentFailed, StatusSent,
	)
	if err != nil {
		return fmt.Errorf("mark nudge failed: %w", err)
	}
	return nil
}

// CancelPending cancels every pending nudge for a lead and returns how many
// were flipped. Inbound activity is the only caller.
func (r *Repository) CancelPending(ctx context.Context, leadID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE scheduled_nudges SET status = $2 WHERE lead_id = $1 AND status = $3`,
		leadID, StatusCancelled, StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel pending nudges: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HasPending reports whether the lead has a pending nudge of the given kind.
func (r *Repository) HasPending(ctx context.Context, leadID uuid.UUID, kind Kind) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM scheduled_nudges WHERE lead_id = $1 AND kind = $2 AND status = $3)`,
		leadID, kind, StatusPending,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has pending nudge: %w", err)
	}
	return exists, nil
}

// ListOverduePending returns pending nudges whose due time has passed.
// The sweep drains these as a safety net for lost queue deliveries, keeping
// the invariant that nothing stays pending past due_at plus one interval.
func (r *Repository) ListOverduePending(ctx context.Context, dueBefore time.Time) ([]Nudge, error) {
	query := `SELECT ` + nudgeColumns + `
		FROM scheduled_nudges
		WHERE status = $1 AND due_at < $2
		ORDER BY due_at ASC`

	rows, err := r.pool.Query(ctx, query, StatusPending, dueBefore)
	if err != nil {
		return nil, fmt.Errorf("list overdue nudges: %w", err)
	}
	defer rows.Close()

	var out []Nudge
	for rows.Next() {
		var n Nudge
		if err := rows.Scan(
			&n.ID, &n.LeadID, &n.TenantID, &n.ContactID, &n.Kind, &n.Status,
			&n.DueAt, &n.AttemptCount, &n.LastSentAt, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan nudge row: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repository) scanOne(row pgx.Row) (Nudge, error) {
	var n Nudge
	err := row.Scan(
		&n.ID, &n.LeadID, &n.TenantID, &n.ContactID, &n.Kind, &n.Status,
		&n.DueAt, &n.AttemptCount, &n.LastSentAt, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Nudge{}, apperr.NotFound("nudge not found")
		}
		return Nudge{}, fmt.Errorf("scan nudge: %w", err)
	}
	return n, nil
}
