// Package webhook receives inbound transport deliveries and routes them to
// the right tenant's conversation: token first, live session second,
// configured fallback last.
package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"leadrouter_backend/internal/conversation"
	"leadrouter_backend/internal/sessions"
	"leadrouter_backend/internal/tenants"
	"leadrouter_backend/internal/tokens"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
)

// Disposition reports what the router did with a delivery.
type Disposition string

const (
	DispositionAccepted Disposition = "accepted"
	DispositionIgnored  Disposition = "ignored"
)

// Delivery is one inbound transport message as the gateway posts it.
type Delivery struct {
	MessageID string
	ContactID string
	Text      string
	Token     string
	Timestamp time.Time
}

// TokenResolver is the slice of the tokens module the router needs.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (tokens.RoutingTuple, error)
}

// TenantReader looks up the fallback tenant's default vertical.
type TenantReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (tenants.Tenant, error)
}

// Router resolves the tenant binding for each delivery and hands the message
// to the conversation engine. It never escalates routing misses into errors:
// an unroutable message is dropped, logged, and acknowledged.
type Router struct {
	engine   *conversation.Engine
	sessions *sessions.Store
	tokens   TokenResolver
	tenants  TenantReader
	cfg      config.WebhookConfig
	log      *logger.Logger
}

// NewRouter creates the inbound router.
func NewRouter(engine *conversation.Engine, sessionStore *sessions.Store, tokenResolver TokenResolver, tenantReader TenantReader, cfg config.WebhookConfig, log *logger.Logger) *Router {
	return &Router{
		engine:   engine,
		sessions: sessionStore,
		tokens:   tokenResolver,
		tenants:  tenantReader,
		cfg:      cfg,
		log:      log,
	}
}

// Route processes one delivery. The returned error is only for genuine
// processing failures; routing misses resolve to DispositionIgnored.
func (r *Router) Route(ctx context.Context, d Delivery) (Disposition, error) {
	tenantID, vertical, ok, err := r.resolveBinding(ctx, d)
	if err != nil {
		return DispositionIgnored, err
	}
	if !ok {
		return DispositionIgnored, nil
	}

	if _, err := r.sessions.OpenOrRefresh(ctx, d.ContactID, tenantID, vertical); err != nil {
		if errors.Is(err, sessions.ErrConflict) {
			// The contact is mid-conversation with another tenant; stealing
			// the binding is never automatic.
			r.log.Warn("session conflict, delivery ignored",
				"contact_id", d.ContactID, "tenant_id", tenantID)
			return DispositionIgnored, nil
		}
		return DispositionIgnored, err
	}

	if err := r.engine.HandleInbound(ctx, conversation.InboundMessage{
		MessageID: d.MessageID,
		TenantID:  tenantID,
		ContactID: d.ContactID,
		Vertical:  vertical,
		Text:      d.Text,
		Timestamp: d.Timestamp,
	}); err != nil {
		return DispositionIgnored, err
	}

	return DispositionAccepted, nil
}

// resolveBinding finds the tenant a delivery belongs to: explicit or embedded
// token, then the contact's live session, then the configured fallback
// tenant. ok=false means unrouted-and-dropped.
func (r *Router) resolveBinding(ctx context.Context, d Delivery) (uuid.UUID, tenants.Vertical, bool, error) {
	token := d.Token
	if token == "" {
		token = tokens.ExtractToken(d.Text)
	}

	if token != "" {
		tuple, err := r.tokens.Resolve(ctx, token)
		switch {
		case err == nil:
			return tuple.TenantID, tuple.Vertical, true, nil
		case apperr.Is(err, apperr.KindNotFound):
			// Stale link; fall through to session/fallback routing.
			r.log.Debug("unknown token on delivery", "token", token, "contact_id", d.ContactID)
		default:
			return uuid.Nil, "", false, err
		}
	}

	session, err := r.sessions.Get(ctx, d.ContactID)
	switch {
	case err == nil:
		return session.TenantID, session.Vertical, true, nil
	case apperr.Is(err, apperr.KindNotFound), apperr.Is(err, apperr.KindGone):
		// No live session; the fallback decides.
	default:
		return uuid.Nil, "", false, err
	}

	return r.fallback(ctx, d)
}

func (r *Router) fallback(ctx context.Context, d Delivery) (uuid.UUID, tenants.Vertical, bool, error) {
	raw := r.cfg.GetFallbackTenantID()
	if raw == "" {
		r.log.Info("unrouted delivery dropped", "contact_id", d.ContactID, "message_id", d.MessageID)
		return uuid.Nil, "", false, nil
	}

	tenantID, err := uuid.Parse(raw)
	if err != nil {
		r.log.Error("fallback tenant id is not a uuid", "value", raw)
		return uuid.Nil, "", false, nil
	}

	tenant, err := r.tenants.GetByID(ctx, tenantID)
	if err != nil || !tenant.Active {
		r.log.Error("fallback tenant unavailable", "tenant_id", tenantID, "error", err)
		return uuid.Nil, "", false, nil
	}

	return tenant.ID, tenant.DefaultVertical, true, nil
}
