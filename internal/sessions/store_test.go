package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"leadrouter_backend/internal/tenants"
	"leadrouter_backend/platform/apperr"
)

type sessionConfig struct {
	ttl     time.Duration
	sliding bool
}

func (c sessionConfig) GetSessionTTL() time.Duration { return c.ttl }
func (c sessionConfig) GetSessionSliding() bool      { return c.sliding }

func newTestStore(t *testing.T, cfg sessionConfig) *Store {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, cfg)
}

func TestOpenOrRefresh_CreatesThenRefreshesSameTenant(t *testing.T) {
	store := newTestStore(t, sessionConfig{ttl: time.Hour, sliding: true})
	ctx := context.Background()
	tenantID := uuid.New()

	created, err := store.OpenOrRefresh(ctx, "+971501234567", tenantID, tenants.VerticalRealty)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if created.Status != StatusActive {
		t.Fatalf("expected ACTIVE session, got %s", created.Status)
	}

	refreshed, err := store.OpenOrRefresh(ctx, "+971501234567", tenantID, tenants.VerticalRealty)
	if err != nil {
		t.Fatalf("refresh session: %v", err)
	}
	if !refreshed.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("refresh must not create a second session")
	}
	if refreshed.LastActivityAt.Before(created.LastActivityAt) {
		t.Fatal("refresh must advance last activity")
	}
}

func TestOpenOrRefresh_DifferentTenantConflicts(t *testing.T) {
	store := newTestStore(t, sessionConfig{ttl: time.Hour, sliding: true})
	ctx := context.Background()

	if _, err := store.OpenOrRefresh(ctx, "+971501234567", uuid.New(), tenants.VerticalRealty); err != nil {
		t.Fatalf("create session: %v", err)
	}

	_, err := store.OpenOrRefresh(ctx, "+971501234567", uuid.New(), tenants.VerticalExpo)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestOpenOrRefresh_OneActiveSessionPerContact(t *testing.T) {
	store := newTestStore(t, sessionConfig{ttl: time.Hour, sliding: true})
	ctx := context.Background()
	tenantID := uuid.New()

	for i := 0; i < 5; i++ {
		if _, err := store.OpenOrRefresh(ctx, "+971501234567", tenantID, tenants.VerticalRealty); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}

	session, err := store.Get(ctx, "+971501234567")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.TenantID != tenantID {
		t.Fatal("session bound to the wrong tenant")
	}
}

func TestGet_ExpiresLazily(t *testing.T) {
	store := newTestStore(t, sessionConfig{ttl: 30 * time.Millisecond, sliding: false})
	ctx := context.Background()

	if _, err := store.OpenOrRefresh(ctx, "+971501234567", uuid.New(), tenants.VerticalRealty); err != nil {
		t.Fatalf("create session: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	_, err := store.Get(ctx, "+971501234567")
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone after expiry, got %v", err)
	}
}

func TestOpenOrRefresh_FixedWindowKeepsExpiry(t *testing.T) {
	store := newTestStore(t, sessionConfig{ttl: time.Hour, sliding: false})
	ctx := context.Background()
	tenantID := uuid.New()

	created, err := store.OpenOrRefresh(ctx, "+971501234567", tenantID, tenants.VerticalRealty)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	refreshed, err := store.OpenOrRefresh(ctx, "+971501234567", tenantID, tenants.VerticalRealty)
	if err != nil {
		t.Fatalf("refresh session: %v", err)
	}
	if !refreshed.ExpiresAt.Equal(created.ExpiresAt) {
		t.Fatal("fixed-window refresh must not extend expiry")
	}
}

func TestOpenOrRefresh_SlidingWindowExtendsExpiry(t *testing.T) {
	store := newTestStore(t, sessionConfig{ttl: time.Hour, sliding: true})
	ctx := context.Background()
	tenantID := uuid.New()

	created, err := store.OpenOrRefresh(ctx, "+971501234567", tenantID, tenants.VerticalRealty)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	refreshed, err := store.OpenOrRefresh(ctx, "+971501234567", tenantID, tenants.VerticalRealty)
	if err != nil {
		t.Fatalf("refresh session: %v", err)
	}
	if !refreshed.ExpiresAt.After(created.ExpiresAt) {
		t.Fatal("sliding refresh must extend expiry")
	}
}

func TestClose_Idempotent(t *testing.T) {
	store := newTestStore(t, sessionConfig{ttl: time.Hour, sliding: true})
	ctx := context.Background()

	if _, err := store.OpenOrRefresh(ctx, "+971501234567", uuid.New(), tenants.VerticalSupport); err != nil {
		t.Fatalf("create session: %v", err)
	}

	if err := store.Close(ctx, "+971501234567"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Close(ctx, "+971501234567"); err != nil {
		t.Fatalf("second close must be a no-op: %v", err)
	}

	if _, err := store.Get(ctx, "+971501234567"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found after close, got %v", err)
	}
}
