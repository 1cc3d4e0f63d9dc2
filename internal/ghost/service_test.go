package ghost

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/leads/domain"
	leadrepo "leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/tenants"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type memNudgeStore struct {
	mu     sync.Mutex
	nudges map[uuid.UUID]Nudge
}

func newMemNudgeStore() *memNudgeStore {
	return &memNudgeStore{nudges: make(map[uuid.UUID]Nudge)}
}

func (m *memNudgeStore) Create(_ context.Context, params ScheduleParams) (Nudge, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.nudges {
		if n.LeadID == params.LeadID && n.Kind == params.Kind && n.Status == StatusPending {
			return n, false, nil
		}
	}
	nudge := Nudge{
		ID:        uuid.New(),
		LeadID:    params.LeadID,
		TenantID:  params.TenantID,
		ContactID: params.ContactID,
		Kind:      params.Kind,
		Status:    StatusPending,
		DueAt:     params.DueAt,
		CreatedAt: time.Now(),
	}
	m.nudges[nudge.ID] = nudge
	return nudge, true, nil
}

func (m *memNudgeStore) GetByID(_ context.Context, id uuid.UUID) (Nudge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nudge, ok := m.nudges[id]
	if !ok {
		return Nudge{}, apperr.NotFound("nudge not found")
	}
	return nudge, nil
}

func (m *memNudgeStore) ClaimForSend(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nudge, ok := m.nudges[id]
	if !ok || nudge.Status != StatusPending {
		return false, nil
	}
	now := time.Now()
	nudge.Status = StatusSent
	nudge.AttemptCount++
	nudge.LastSentAt = &now
	m.nudges[id] = nudge
	return true, nil
}

func (m *memNudgeStore) MarkFailed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	nudge, ok := m.nudges[id]
	if !ok {
		return apperr.NotFound("nudge not found")
	}
	nudge.Status = StatusSentFailed
	m.nudges[id] = nudge
	return nil
}

func (m *memNudgeStore) CancelPending(_ context.Context, leadID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cancelled int64
	for id, n := range m.nudges {
		if n.LeadID == leadID && n.Status == StatusPending {
			n.Status = StatusCancelled
			m.nudges[id] = n
			cancelled++
		}
	}
	return cancelled, nil
}

func (m *memNudgeStore) HasPending(_ context.Context, leadID uuid.UUID, kind Kind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.nudges {
		if n.LeadID == leadID && n.Kind == kind && n.Status == StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *memNudgeStore) ListOverduePending(_ context.Context, dueBefore time.Time) ([]Nudge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Nudge
	for _, n := range m.nudges {
		if n.Status == StatusPending && n.DueAt.Before(dueBefore) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNudgeStore) byStatus(status Status) []Nudge {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Nudge
	for _, n := range m.nudges {
		if n.Status == status {
			out = append(out, n)
		}
	}
	return out
}

type memLeadStore struct {
	mu    sync.Mutex
	leads map[uuid.UUID]leadrepo.Lead
}

func newMemLeadStore(leads ...leadrepo.Lead) *memLeadStore {
	store := &memLeadStore{leads: make(map[uuid.UUID]leadrepo.Lead)}
	for _, lead := range leads {
		store.leads[lead.ID] = lead
	}
	return store
}

func (m *memLeadStore) GetByID(_ context.Context, id uuid.UUID) (leadrepo.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok {
		return leadrepo.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (m *memLeadStore) GetByContact(_ context.Context, tenantID uuid.UUID, contactID string) (leadrepo.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lead := range m.leads {
		if lead.TenantID == tenantID && lead.ContactID == contactID {
			return lead, nil
		}
	}
	return leadrepo.Lead{}, apperr.NotFound("lead not found")
}

func (m *memLeadStore) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]leadrepo.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []leadrepo.Lead
	for _, lead := range m.leads {
		if lead.TenantID == tenantID {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (m *memLeadStore) ListIdleCandidates(_ context.Context, idleBefore time.Time) ([]leadrepo.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []leadrepo.Lead
	for _, lead := range m.leads {
		if lead.Ghosted || lead.ConversationStage.IsTerminal() {
			continue
		}
		if lead.LastInboundAt != nil && lead.LastInboundAt.Before(idleBefore) {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (m *memLeadStore) GetOrCreate(_ context.Context, tenantID uuid.UUID, contactID string, vertical tenants.Vertical) (leadrepo.Lead, bool, error) {
	return leadrepo.Lead{}, false, errors.New("not used in these tests")
}

func (m *memLeadStore) Save(_ context.Context, lead leadrepo.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[lead.ID] = lead
	return nil
}

func (m *memLeadStore) RecordDispatch(_ context.Context, leadID uuid.UUID, spendBudget bool, score int, temperature domain.Temperature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[leadID]
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
	m.leads[leadID] = lead
	return nil
}

func (m *memLeadStore) MarkGhosted(_ context.Context, leadID uuid.UUID, idleBefore time.Time) (leadrepo.Lead, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[leadID]
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
	m.leads[leadID] = lead
	return lead, true, nil
}

type memSender struct {
	mu       sync.Mutex
	messages []string
	fail     bool
	onSend   func() // runs before the message is recorded
}

func (m *memSender) SendMessage(_ context.Context, _ string, message string) error {
	m.mu.Lock()
	hook := m.onSend
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("gateway down")
	}
	m.messages = append(m.messages, message)
	return nil
}

func (m *memSender) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

type memEnqueuer struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
}

func (m *memEnqueuer) EnqueueNudgeDue(_ context.Context, nudgeID, _ uuid.UUID, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, nudgeID)
	return nil
}

type memBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *memBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *memBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *memBus) Subscribe(string, events.Handler) {}

func (b *memBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}

type ghostConfig struct {
	maxNudges int
}

func (c ghostConfig) GetRedisURL() string                   { return "redis://localhost:6379" }
func (c ghostConfig) GetRedisTLSInsecure() bool             { return false }
func (c ghostConfig) GetSweepInterval() time.Duration       { return time.Minute }
func (c ghostConfig) GetIdleThreshold() time.Duration       { return time.Hour }
func (c ghostConfig) GetMaxNudges() int                     { return c.maxNudges }
func (c ghostConfig) GetDispatchRetries() int               { return 2 }
func (c ghostConfig) GetDispatchBackoffBase() time.Duration { return time.Millisecond }
func (c ghostConfig) GetAsynqQueueName() string             { return "default" }
func (c ghostConfig) GetAsynqConcurrency() int              { return 1 }
func (c ghostConfig) GetScoreWarm() int                     { return 30 }
func (c ghostConfig) GetScoreHot() int                      { return 60 }
func (c ghostConfig) GetScoreBurning() int                  { return 85 }

func testLead() leadrepo.Lead {
	inbound := time.Now().Add(-2 * time.Hour)
	return leadrepo.Lead{
		ID:                uuid.New(),
		TenantID:          uuid.New(),
		ContactID:         "+971501234567",
		Vertical:          tenants.VerticalRealty,
		Temperature:       domain.TemperatureWarm,
		ConversationStage: domain.StageValueProposition,
		PriorStage:        domain.StageQualification,
		LastInboundAt:     &inbound,
		CreatedAt:         time.Now().Add(-24 * time.Hour),
		UpdatedAt:         time.Now().Add(-2 * time.Hour),
	}
}

// ---------------------------------------------------------------------------
// service tests
// ---------------------------------------------------------------------------

func TestSchedule_CoalescesDuplicatePendingNudges(t *testing.T) {
	store := newMemNudgeStore()
	enqueuer := &memEnqueuer{}
	lead := testLead()
	service := NewService(store, newMemLeadStore(lead), &memSender{}, enqueuer, &memBus{}, ghostConfig{maxNudges: 3}, logger.New("test"))

	params := ScheduleParams{
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
		ContactID: lead.ContactID,
		Kind:      KindConsultationFollowup,
		DueAt:     time.Now().Add(time.Hour),
	}
	if err := service.Schedule(context.Background(), params); err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	if err := service.Schedule(context.Background(), params); err != nil {
		t.Fatalf("second schedule: %v", err)
	}

	if pending := store.byStatus(StatusPending); len(pending) != 1 {
		t.Fatalf("expected one pending nudge, got %d", len(pending))
	}
	if len(enqueuer.enqueued) != 1 {
		t.Fatalf("expected one queue delivery, got %d", len(enqueuer.enqueued))
	}
}

func TestDispatchDue_SendsAndMarksSent(t *testing.T) {
	store := newMemNudgeStore()
	lead := testLead()
	leads := newMemLeadStore(lead)
	sender := &memSender{}
	bus := &memBus{}
	service := NewService(store, leads, sender, nil, bus, ghostConfig{maxNudges: 3}, logger.New("test"))

	nudge, _, err := store.Create(context.Background(), ScheduleParams{
		LeadID: lead.ID, TenantID: lead.TenantID, ContactID: lead.ContactID,
		Kind: KindInactivity, DueAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed nudge: %v", err)
	}

	if err := service.DispatchDue(context.Background(), nudge.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(sender.sent()) != 1 {
		t.Fatalf("expected one outbound message, got %d", len(sender.sent()))
	}
	if sent := store.byStatus(StatusSent); len(sent) != 1 {
		t.Fatalf("expected the nudge to be SENT, got %d", len(sent))
	}

	updated, err := leads.GetByID(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("reload lead: %v", err)
	}
	if updated.NudgeCount != 1 {
		t.Fatalf("inactivity nudge must increment the count, got %d", updated.NudgeCount)
	}
	if updated.LastOutboundAt == nil {
		t.Fatal("dispatch must stamp last outbound activity")
	}

	names := bus.names()
	if len(names) != 1 || names[0] != "ghost.nudge.sent" {
		t.Fatalf("expected a nudge sent event, got %v", names)
	}
}

func TestDispatchDue_FollowupDoesNotSpendNudgeBudget(t *testing.T) {
	store := newMemNudgeStore()
	lead := testLead()
	leads := newMemLeadStore(lead)
	service := NewService(store, leads, &memSender{}, nil, &memBus{}, ghostConfig{maxNudges: 3}, logger.New("test"))

	nudge, _, _ := store.Create(context.Background(), ScheduleParams{
		LeadID: lead.ID, TenantID: lead.TenantID, ContactID: lead.ContactID,
		Kind: KindConsultationFollowup, DueAt: time.Now(),
	})

	if err := service.DispatchDue(context.Background(), nudge.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	updated, _ := leads.GetByID(context.Background(), lead.ID)
	if updated.NudgeCount != 0 {
		t.Fatalf("follow-up must not spend the inactivity budget, got %d", updated.NudgeCount)
	}
}

func TestDispatchDue_CancelledNudgeIsANoOp(t *testing.T) {
	store := newMemNudgeStore()
	lead := testLead()
	sender := &memSender{}
	bus := &memBus{}
	service := NewService(store, newMemLeadStore(lead), sender, nil, bus, ghostConfig{maxNudges: 3}, logger.New("test"))

	nudge, _, _ := store.Create(context.Background(), ScheduleParams{
		LeadID: lead.ID, TenantID: lead.TenantID, ContactID: lead.ContactID,
		Kind: KindInactivity, DueAt: time.Now(),
	})

	// Inbound activity cancels first; the due-time delivery then loses.
	if _, err := service.CancelPending(context.Background(), lead.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := service.DispatchDue(context.Background(), nudge.ID); err != nil {
		t.Fatalf("dispatch after cancel: %v", err)
	}

	if len(sender.sent()) != 0 {
		t.Fatalf("cancelled nudge must never send, got %d messages", len(sender.sent()))
	}
	if len(bus.names()) != 0 {
		t.Fatalf("cancelled nudge must publish nothing, got %v", bus.names())
	}
}

func TestDispatch_ExhaustedRetriesMarkTheNudgeFailed(t *testing.T) {
	store := newMemNudgeStore()
	lead := testLead()
	leads := newMemLeadStore(lead)
	bus := &memBus{}
	service := NewService(store, leads, &memSender{fail: true}, nil, bus, ghostConfig{maxNudges: 3}, logger.New("test"))

	nudge, _, _ := store.Create(context.Background(), ScheduleParams{
		LeadID: lead.ID, TenantID: lead.TenantID, ContactID: lead.ContactID,
		Kind: KindInactivity, DueAt: time.Now(),
	})

	if err := service.DispatchDue(context.Background(), nudge.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if failed := store.byStatus(StatusSentFailed); len(failed) != 1 {
		t.Fatalf("expected the nudge to be SENT_FAILED, got %d", len(failed))
	}
	if len(bus.names()) != 0 {
		t.Fatalf("a failed dispatch must not publish nudge sent, got %v", bus.names())
	}

	updated, _ := leads.GetByID(context.Background(), lead.ID)
	if updated.NudgeCount != 0 {
		t.Fatalf("a failed dispatch must not spend the budget, got %d", updated.NudgeCount)
	}
}

func TestDispatchDue_DoesNotOverwriteConcurrentEngineProgress(t *testing.T) {
	store := newMemNudgeStore()
	lead := testLead()
	leads := newMemLeadStore(lead)
	sender := &memSender{}
	service := NewService(store, leads, sender, nil, &memBus{}, ghostConfig{maxNudges: 3}, logger.New("test"))

	// While the gateway call is in flight, the engine closes in on a
	// consultation in the API process. The dispatcher's snapshot predates it.
	sender.onSend = func() {
		current, err := leads.GetByID(context.Background(), lead.ID)
		if err != nil {
			t.Errorf("reload mid-send: %v", err)
			return
		}
		current.PriorStage = current.ConversationStage
		current.ConversationStage = domain.StageConsultationRequested
		current.ConsultationRequested = true
		if err := leads.Save(context.Background(), current); err != nil {
			t.Errorf("save mid-send: %v", err)
		}
	}

	nudge, _, _ := store.Create(context.Background(), ScheduleParams{
		LeadID: lead.ID, TenantID: lead.TenantID, ContactID: lead.ContactID,
		Kind: KindInactivity, DueAt: time.Now(),
	})
	if err := service.DispatchDue(context.Background(), nudge.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	updated, _ := leads.GetByID(context.Background(), lead.ID)
	if updated.ConversationStage != domain.StageConsultationRequested {
		t.Fatalf("dispatch must not rewind the stage, got %s", updated.ConversationStage)
	}
	if !updated.ConsultationRequested {
		t.Fatal("dispatch must not clear the consultation flag")
	}
	if updated.NudgeCount != 1 {
		t.Fatalf("expected nudge count 1, got %d", updated.NudgeCount)
	}
	if updated.LastOutboundAt == nil {
		t.Fatal("dispatch must still stamp last outbound activity")
	}
}

func TestNudgeIdleLead_SkipsLeadThatRepliedAfterTheScan(t *testing.T) {
	store := newMemNudgeStore()
	lead := testLead()
	leads := newMemLeadStore(lead)
	sender := &memSender{}
	service := NewService(store, leads, sender, nil, &memBus{}, ghostConfig{maxNudges: 3}, logger.New("test"))

	// The scan selected this lead from a stale snapshot; a reply has since
	// landed in the API process.
	fresh := time.Now().Add(-time.Minute)
	replied := lead
	replied.LastInboundAt = &fresh
	if err := leads.Save(context.Background(), replied); err != nil {
		t.Fatalf("save: %v", err)
	}

	sent, err := service.NudgeIdleLead(context.Background(), lead)
	if err != nil {
		t.Fatalf("nudge idle lead: %v", err)
	}
	if sent {
		t.Fatal("a lead that replied must not be nudged")
	}
	if len(sender.sent()) != 0 {
		t.Fatalf("expected no outbound messages, got %d", len(sender.sent()))
	}
	if cancelled := store.byStatus(StatusCancelled); len(cancelled) != 1 {
		t.Fatalf("expected the stale nudge to be cancelled, got %d", len(cancelled))
	}

	updated, _ := leads.GetByID(context.Background(), lead.ID)
	if updated.NudgeCount != 0 {
		t.Fatalf("a skipped nudge must not spend the budget, got %d", updated.NudgeCount)
	}
}
