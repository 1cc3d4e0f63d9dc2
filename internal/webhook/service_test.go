package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"leadrouter_backend/internal/conversation"
	"leadrouter_backend/internal/ghost"
	"leadrouter_backend/internal/leads/domain"
	leadrepo "leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/sessions"
	"leadrouter_backend/internal/tenants"
	"leadrouter_backend/internal/tokens"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/events"
	"leadrouter_backend/platform/logger"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type stubLeadRepo struct {
	mu    sync.Mutex
	leads map[uuid.UUID]leadrepo.Lead
}

func newStubLeadRepo() *stubLeadRepo {
	return &stubLeadRepo{leads: make(map[uuid.UUID]leadrepo.Lead)}
}

func (f *stubLeadRepo) GetByID(_ context.Context, id uuid.UUID) (leadrepo.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return leadrepo.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (f *stubLeadRepo) GetByContact(_ context.Context, tenantID uuid.UUID, contactID string) (leadrepo.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, lead := range f.leads {
		if lead.TenantID == tenantID && lead.ContactID == contactID {
			return lead, nil
		}
	}
	return leadrepo.Lead{}, apperr.NotFound("lead not found")
}

func (f *stubLeadRepo) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]leadrepo.Lead, error) {
	return nil, nil
}

func (f *stubLeadRepo) ListIdleCandidates(_ context.Context, _ time.Time) ([]leadrepo.Lead, error) {
	return nil, nil
}

func (f *stubLeadRepo) GetOrCreate(ctx context.Context, tenantID uuid.UUID, contactID string, vertical tenants.Vertical) (leadrepo.Lead, bool, error) {
	if existing, err := f.GetByContact(ctx, tenantID, contactID); err == nil {
		return existing, false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := leadrepo.Lead{
		ID:                uuid.New(),
		TenantID:          tenantID,
		ContactID:         contactID,
		Vertical:          vertical,
		Temperature:       domain.TemperatureCold,
		ConversationStage: domain.StageNew,
		PriorStage:        domain.StageNew,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	f.leads[lead.ID] = lead
	return lead, true, nil
}

func (f *stubLeadRepo) Save(_ context.Context, lead leadrepo.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads[lead.ID] = lead
	return nil
}

func (f *stubLeadRepo) RecordDispatch(_ context.Context, leadID uuid.UUID, spendBudget bool, score int, temperature domain.Temperature) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok {
		return apperr.NotFound("lead not found")
	}
	if spendBudget {
		lead.NudgeCount++
	}
	now := time.Now()
	lead.LastOutboundAt = &now
	lead.LeadScore = score
	lead.Temperature = temperature
	f.leads[leadID] = lead
	return nil
}

func (f *stubLeadRepo) MarkGhosted(_ context.Context, leadID uuid.UUID, idleBefore time.Time) (leadrepo.Lead, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok {
		return leadrepo.Lead{}, false, apperr.NotFound("lead not found")
	}
	if lead.Ghosted || lead.ConversationStage.IsTerminal() ||
		lead.LastInboundAt == nil || !lead.LastInboundAt.Before(idleBefore) {
		return leadrepo.Lead{}, false, nil
	}
	lead.Ghosted = true
	lead.PriorStage = lead.ConversationStage
	lead.ConversationStage = domain.StageGhosted
	f.leads[leadID] = lead
	return lead, true, nil
}

func (f *stubLeadRepo) all() []leadrepo.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []leadrepo.Lead
	for _, lead := range f.leads {
		out = append(out, lead)
	}
	return out
}

type stubProcessed struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *stubProcessed) MarkProcessed(_ context.Context, messageID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[messageID] {
		return false, nil
	}
	f.seen[messageID] = true
	return true, nil
}

func (f *stubProcessed) Forget(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, messageID)
	return nil
}

func (f *stubProcessed) Prune(context.Context) (int64, error) { return 0, nil }

type stubSender struct{}

func (stubSender) SendMessage(context.Context, string, string) error { return nil }

type stubNudges struct{}

func (stubNudges) CancelPending(context.Context, uuid.UUID) (int64, error) { return 0, nil }
func (stubNudges) Schedule(context.Context, ghost.ScheduleParams) error    { return nil }

type stubEngineConfig struct{}

func (stubEngineConfig) GetScoreWarm() int                           { return 30 }
func (stubEngineConfig) GetScoreHot() int                            { return 60 }
func (stubEngineConfig) GetScoreBurning() int                        { return 85 }
func (stubEngineConfig) GetDispatchRetries() int                     { return 1 }
func (stubEngineConfig) GetDispatchBackoffBase() time.Duration       { return time.Millisecond }
func (stubEngineConfig) GetConsultationFollowupDelay() time.Duration { return time.Hour }
func (stubEngineConfig) GetAppointmentReminderDelay() time.Duration  { return 24 * time.Hour }

type stubTokenResolver struct {
	tuples map[string]tokens.RoutingTuple
}

func (f *stubTokenResolver) Resolve(_ context.Context, token string) (tokens.RoutingTuple, error) {
	tuple, ok := f.tuples[token]
	if !ok {
		return tokens.RoutingTuple{}, apperr.NotFound("unknown token")
	}
	return tuple, nil
}

type stubTenantReader struct {
	byID map[uuid.UUID]tenants.Tenant
}

func (f *stubTenantReader) GetByID(_ context.Context, id uuid.UUID) (tenants.Tenant, error) {
	tenant, ok := f.byID[id]
	if !ok {
		return tenants.Tenant{}, apperr.NotFound("tenant not found")
	}
	return tenant, nil
}

type webhookConfig struct {
	fallback string
}

func (c webhookConfig) GetFallbackTenantID() string { return c.fallback }

type routerSessionConfig struct{}

func (routerSessionConfig) GetSessionTTL() time.Duration { return time.Hour }
func (routerSessionConfig) GetSessionSliding() bool      { return true }

// ---------------------------------------------------------------------------
// harness
// ---------------------------------------------------------------------------

type routerHarness struct {
	router   *Router
	repo     *stubLeadRepo
	sessions *sessions.Store
	resolver *stubTokenResolver
	tenants  *stubTenantReader
}

func newRouterHarness(t *testing.T, cfg webhookConfig) *routerHarness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logger.New("test")
	repo := newStubLeadRepo()
	engine := conversation.NewEngine(
		repo, &stubProcessed{}, conversation.NewKeywordClassifier(),
		stubSender{}, stubNudges{}, events.NewInMemoryBus(log), stubEngineConfig{}, log,
	)

	sessionStore := sessions.NewStore(rdb, routerSessionConfig{})
	resolver := &stubTokenResolver{tuples: make(map[string]tokens.RoutingTuple)}
	reader := &stubTenantReader{byID: make(map[uuid.UUID]tenants.Tenant)}

	return &routerHarness{
		router:   NewRouter(engine, sessionStore, resolver, reader, cfg, log),
		repo:     repo,
		sessions: sessionStore,
		resolver: resolver,
		tenants:  reader,
	}
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestRoute_TokenBindsDeliveryToTenant(t *testing.T) {
	h := newRouterHarness(t, webhookConfig{})
	tenantID := uuid.New()
	h.resolver.tuples["ABCDEFGH"] = tokens.RoutingTuple{TenantID: tenantID, Vertical: tenants.VerticalExpo}

	disposition, err := h.router.Route(context.Background(), Delivery{
		MessageID: "m1",
		ContactID: "+971501234567",
		Text:      "Hi, I saw your listing (ref: ABCDEFGH)",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if disposition != DispositionAccepted {
		t.Fatalf("expected accepted, got %s", disposition)
	}

	leads := h.repo.all()
	if len(leads) != 1 {
		t.Fatalf("expected one lead, got %d", len(leads))
	}
	if leads[0].TenantID != tenantID {
		t.Fatalf("lead bound to wrong tenant: %s", leads[0].TenantID)
	}
	if leads[0].Vertical != tenants.VerticalExpo {
		t.Fatalf("lead bound to wrong vertical: %s", leads[0].Vertical)
	}

	session, err := h.sessions.Get(context.Background(), "+971501234567")
	if err != nil {
		t.Fatalf("expected a session to open: %v", err)
	}
	if session.TenantID != tenantID {
		t.Fatalf("session bound to wrong tenant: %s", session.TenantID)
	}
}

func TestRoute_LiveSessionRoutesTokenlessDelivery(t *testing.T) {
	h := newRouterHarness(t, webhookConfig{})
	tenantID := uuid.New()

	if _, err := h.sessions.OpenOrRefresh(context.Background(), "+971501234567", tenantID, tenants.VerticalRealty); err != nil {
		t.Fatalf("open session: %v", err)
	}

	disposition, err := h.router.Route(context.Background(), Delivery{
		MessageID: "m1",
		ContactID: "+971501234567",
		Text:      "hello again",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if disposition != DispositionAccepted {
		t.Fatalf("expected accepted, got %s", disposition)
	}

	leads := h.repo.all()
	if len(leads) != 1 || leads[0].TenantID != tenantID {
		t.Fatalf("expected the session tenant to own the lead, got %+v", leads)
	}
}

func TestRoute_StaleTokenFallsThroughToSession(t *testing.T) {
	h := newRouterHarness(t, webhookConfig{})
	tenantID := uuid.New()

	if _, err := h.sessions.OpenOrRefresh(context.Background(), "+971501234567", tenantID, tenants.VerticalRealty); err != nil {
		t.Fatalf("open session: %v", err)
	}

	disposition, err := h.router.Route(context.Background(), Delivery{
		MessageID: "m1",
		ContactID: "+971501234567",
		Text:      "following up (ref: ZZZZZZZZ)",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if disposition != DispositionAccepted {
		t.Fatalf("a stale token must not block routing, got %s", disposition)
	}

	leads := h.repo.all()
	if len(leads) != 1 || leads[0].TenantID != tenantID {
		t.Fatalf("expected session routing after the stale token, got %+v", leads)
	}
}

func TestRoute_FallbackTenantCatchesUnroutedDelivery(t *testing.T) {
	fallbackID := uuid.New()
	h := newRouterHarness(t, webhookConfig{fallback: fallbackID.String()})
	h.tenants.byID[fallbackID] = tenants.Tenant{
		ID:              fallbackID,
		Active:          true,
		DefaultVertical: tenants.VerticalSupport,
	}

	disposition, err := h.router.Route(context.Background(), Delivery{
		MessageID: "m1",
		ContactID: "+971509999999",
		Text:      "hi, who is this?",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if disposition != DispositionAccepted {
		t.Fatalf("expected fallback to accept, got %s", disposition)
	}

	leads := h.repo.all()
	if len(leads) != 1 || leads[0].TenantID != fallbackID {
		t.Fatalf("expected the fallback tenant to own the lead, got %+v", leads)
	}
	if leads[0].Vertical != tenants.VerticalSupport {
		t.Fatalf("expected the fallback tenant's default vertical, got %s", leads[0].Vertical)
	}
}

func TestRoute_UnroutedDeliveryIsDroppedWithoutFallback(t *testing.T) {
	h := newRouterHarness(t, webhookConfig{})

	disposition, err := h.router.Route(context.Background(), Delivery{
		MessageID: "m1",
		ContactID: "+971509999999",
		Text:      "hi",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if disposition != DispositionIgnored {
		t.Fatalf("expected ignored, got %s", disposition)
	}
	if len(h.repo.all()) != 0 {
		t.Fatal("a dropped delivery must not create a lead")
	}
}

func TestRoute_InactiveFallbackTenantDropsDelivery(t *testing.T) {
	fallbackID := uuid.New()
	h := newRouterHarness(t, webhookConfig{fallback: fallbackID.String()})
	h.tenants.byID[fallbackID] = tenants.Tenant{ID: fallbackID, Active: false}

	disposition, err := h.router.Route(context.Background(), Delivery{
		MessageID: "m1",
		ContactID: "+971509999999",
		Text:      "hi",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if disposition != DispositionIgnored {
		t.Fatalf("an inactive fallback tenant must not receive leads, got %s", disposition)
	}
}

func TestRoute_SessionConflictIsIgnoredNotStolen(t *testing.T) {
	h := newRouterHarness(t, webhookConfig{})
	firstTenant := uuid.New()
	secondTenant := uuid.New()

	if _, err := h.sessions.OpenOrRefresh(context.Background(), "+971501234567", firstTenant, tenants.VerticalRealty); err != nil {
		t.Fatalf("open session: %v", err)
	}

	// A token for another tenant arrives while the first session is live.
	h.resolver.tuples["ABCDEFGH"] = tokens.RoutingTuple{TenantID: secondTenant, Vertical: tenants.VerticalExpo}

	disposition, err := h.router.Route(context.Background(), Delivery{
		MessageID: "m1",
		ContactID: "+971501234567",
		Text:      "(ref: ABCDEFGH)",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if disposition != DispositionIgnored {
		t.Fatalf("a conflicting binding must be ignored, got %s", disposition)
	}

	if len(h.repo.all()) != 0 {
		t.Fatal("a conflicting delivery must not create a lead")
	}

	session, err := h.sessions.Get(context.Background(), "+971501234567")
	if err != nil {
		t.Fatalf("original session must survive: %v", err)
	}
	if session.TenantID != firstTenant {
		t.Fatalf("session must stay with the first tenant, got %s", session.TenantID)
	}
}
