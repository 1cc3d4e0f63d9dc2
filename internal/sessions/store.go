// Package sessions implements the routing session store: the boundary between
// raw inbound transport identity and tenant-scoped conversation state.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"leadrouter_backend/internal/tenants"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/config"
)

const sessionKeyPrefix = "session:"

// ErrConflict is returned when a contact already holds an active session
// bound to a different tenant. The caller decides what to do with the
// message; sessions are never reassigned automatically.
var ErrConflict = apperr.Conflict("contact is bound to another tenant's session")

// Store persists sessions in Redis under a single contact-keyed keyspace.
// Key TTL enforces expiry lazily; the scheduler's sweep never has to touch
// expired sessions because Redis already dropped them.
type Store struct {
	rdb     *redis.Client
	ttl     time.Duration
	sliding bool
}

// NewStore creates a session store with the configured TTL policy.
func NewStore(rdb *redis.Client, cfg config.SessionConfig) *Store {
	return &Store{
		rdb:     rdb,
		ttl:     cfg.GetSessionTTL(),
		sliding: cfg.GetSessionSliding(),
	}
}

// OpenOrRefresh creates a session for the contact, or refreshes the existing
// one when it belongs to the same tenant. A live session bound to a different
// tenant yields ErrConflict.
func (s *Store) OpenOrRefresh(ctx context.Context, contactID string, tenantID uuid.UUID, vertical tenants.Vertical) (Session, error) {
	existing, err := s.Get(ctx, contactID)
	switch {
	case err == nil:
		if existing.TenantID != tenantID {
			return Session{}, ErrConflict
		}
		return s.refresh(ctx, existing)
	case apperr.Is(err, apperr.KindNotFound) || apperr.Is(err, apperr.KindGone):
		// An expired session is as good as none; the contact starts fresh.
		return s.create(ctx, contactID, tenantID, vertical)
	default:
		return Session{}, err
	}
}

// Get retrieves the active session for a contact. An absent session is
// not-found; a session past its expires_at is gone (the explicit check guards
// the fixed-window policy, where the Redis TTL outlives the window).
func (s *Store) Get(ctx context.Context, contactID string) (Session, error) {
	data, err := s.rdb.Get(ctx, sessionKeyPrefix+contactID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, apperr.NotFound("no active session")
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		_ = s.rdb.Del(ctx, sessionKeyPrefix+contactID).Err()
		return Session{}, apperr.New(apperr.KindGone, "session expired")
	}

	return session, nil
}

// Close terminates the contact's session. Idempotent.
func (s *Store) Close(ctx context.Context, contactID string) error {
	if err := s.rdb.Del(ctx, sessionKeyPrefix+contactID).Err(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

func (s *Store) create(ctx context.Context, contactID string, tenantID uuid.UUID, vertical tenants.Vertical) (Session, error) {
	now := time.Now()
	session := Session{
		ContactID:      contactID,
		TenantID:       tenantID,
		Vertical:       vertical,
		Status:         StatusActive,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.ttl),
	}

	if err := s.put(ctx, session, s.ttl); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *Store) refresh(ctx context.Context, session Session) (Session, error) {
	now := time.Now()
	session.LastActivityAt = now

	ttl := time.Until(session.ExpiresAt)
	if s.sliding {
		session.ExpiresAt = now.Add(s.ttl)
		ttl = s.ttl
	}

	if err := s.put(ctx, session, ttl); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *Store) put(ctx context.Context, session Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if ttl <= 0 {
		ttl = time.Second
	}

	if err := s.rdb.Set(ctx, sessionKeyPrefix+session.ContactID, data, ttl).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}
