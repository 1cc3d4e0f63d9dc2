package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// processedRetention is how long a message ID stays on record. Transports
// redeliver within minutes; a day of history is generous.
const processedRetention = 24 * time.Hour

// ProcessedMessages records inbound message IDs so duplicate webhook
// deliveries never advance the state machine twice.
type ProcessedMessages interface {
	// MarkProcessed records the message ID. Returns false when the ID was
	// already on record, i.e. this delivery is a duplicate.
	MarkProcessed(ctx context.Context, messageID, contactID string) (bool, error)
	// Forget drops the record for a message whose processing failed, so the
	// transport's redelivery gets a fresh attempt instead of a silent no-op.
	Forget(ctx context.Context, messageID string) error
	// Prune removes expired records. Called by the scheduler sweep.
	Prune(ctx context.Context) (int64, error)
}

// ProcessedMessagesRepo implements ProcessedMessages with PostgreSQL.
type ProcessedMessagesRepo struct {
	pool *pgxpool.Pool
}

// NewProcessedMessagesRepo creates the processed-messages repository.
func NewProcessedMessagesRepo(pool *pgxpool.Pool) *ProcessedMessagesRepo {
	return &ProcessedMessagesRepo{pool: pool}
}

var _ ProcessedMessages = (*ProcessedMessagesRepo)(nil)

// MarkProcessed inserts the message ID; a conflict means a duplicate delivery.
func (r *ProcessedMessagesRepo) MarkProcessed(ctx context.Context, messageID, contactID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO processed_messages (message_id, contact_id, processed_at, expires_at)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (message_id) DO NOTHING`,
		messageID, contactID, time.Now().Add(processedRetention),
	)
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Forget deletes the record for one message ID.
func (r *ProcessedMessagesRepo) Forget(ctx context.Context, messageID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM processed_messages WHERE message_id = $1`, messageID); err != nil {
		return fmt.Errorf("forget processed message: %w", err)
	}
	return nil
}

// Prune deletes records past their retention window.
func (r *ProcessedMessagesRepo) Prune(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM processed_messages WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("prune processed messages: %w", err)
	}
	return tag.RowsAffected(), nil
}
