package ghost

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadrouter_backend/internal/events"
	leadrepo "leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/scoring"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
)

// NudgeStore is the persistence surface the service needs.
type NudgeStore interface {
	Create(ctx context.Context, params ScheduleParams) (Nudge, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (Nudge, error)
	ClaimForSend(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) error
	CancelPending(ctx context.Context, leadID uuid.UUID) (int64, error)
	HasPending(ctx context.Context, leadID uuid.UUID, kind Kind) (bool, error)
	ListOverduePending(ctx context.Context, dueBefore time.Time) ([]Nudge, error)
}

// Sender dispatches an outbound message to the transport.
type Sender interface {
	SendMessage(ctx context.Context, contactID, message string) error
}

// Enqueuer schedules due-time queue deliveries.
type Enqueuer interface {
	EnqueueNudgeDue(ctx context.Context, nudgeID, tenantID uuid.UUID, runAt time.Time) error
}

// Config is the configuration slice the service consumes.
type Config interface {
	config.GhostConfig
	config.ScoringConfig
}

// Service owns nudge lifecycle: creation, due-time dispatch, cancellation.
type Service struct {
	nudges   NudgeStore
	leads    leadrepo.Repository
	sender   Sender
	enqueuer Enqueuer
	bus      events.Bus
	cfg      Config
	log      *logger.Logger
}

// NewService creates the ghost protocol service.
func NewService(nudges NudgeStore, leads leadrepo.Repository, sender Sender, enqueuer Enqueuer, bus events.Bus, cfg Config, log *logger.Logger) *Service {
	return &Service{
		nudges:   nudges,
		leads:    leads,
		sender:   sender,
		enqueuer: enqueuer,
		bus:      bus,
		cfg:      cfg,
		log:      log,
	}
}

// CancelPending cancels every pending nudge for a lead. Called on each
// genuine inbound message; this is the invariant that stops nudge loops.
func (s *Service) CancelPending(ctx context.Context, leadID uuid.UUID) (int64, error) {
	return s.nudges.CancelPending(ctx, leadID)
}

// Schedule creates a pending nudge and books its due-time delivery.
// Duplicate pending nudges of the same kind are silently coalesced.
func (s *Service) Schedule(ctx context.Context, params ScheduleParams) error {
	nudge, created, err := s.nudges.Create(ctx, params)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueNudgeDue(ctx, nudge.ID, nudge.TenantID, nudge.DueAt); err != nil {
			// The sweep's overdue scan will pick the row up; log and move on.
			s.log.Warn("enqueue nudge due failed", "nudge_id", nudge.ID, "error", err)
		}
	}
	return nil
}

// DispatchDue claims and sends a nudge that reached its due time. A nudge
// that was cancelled in the meantime is a silent no-op: the inbound event
// always wins the race.
func (s *Service) DispatchDue(ctx context.Context, nudgeID uuid.UUID) error {
	nudge, err := s.nudges.GetByID(ctx, nudgeID)
	if err != nil {
		return err
	}
	_, err = s.dispatch(ctx, nudge)
	return err
}

// NudgeIdleLead creates and immediately dispatches an inactivity nudge for a
// lead the sweep found idle. Returns false when no nudge was sent (a pending
// one already existed, or the claim lost a race).
func (s *Service) NudgeIdleLead(ctx context.Context, lead leadrepo.Lead) (bool, error) {
	nudge, created, err := s.nudges.Create(ctx, ScheduleParams{
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
		ContactID: lead.ContactID,
		Kind:      KindInactivity,
		DueAt:     time.Now(),
	})
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	return s.dispatch(ctx, nudge)
}

func (s *Service) dispatch(ctx context.Context, nudge Nudge) (bool, error) {
	lead, err := s.leads.GetByID(ctx, nudge.LeadID)
	if err != nil {
		return false, err
	}

	// Re-check idleness against the live row. A reply that landed between
	// the idle scan and this dispatch had no pending nudge to cancel, so
	// the cancel-on-inbound rule alone cannot cover this window.
	if nudge.Kind == KindInactivity {
		idleBefore := time.Now().Add(-s.cfg.GetIdleThreshold())
		if lead.LastInboundAt != nil && lead.LastInboundAt.After(idleBefore) {
			if _, err := s.nudges.CancelPending(ctx, lead.ID); err != nil {
				return false, err
			}
			s.log.Debug("nudge skipped, lead no longer idle", "lead_id", lead.ID, "nudge_id", nudge.ID)
			return false, nil
		}
	}

	claimed, err := s.nudges.ClaimForSend(ctx, nudge.ID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	message := nudgeMessage(nudge.Kind, lead)
	if err := s.sendWithRetry(ctx, nudge, message); err != nil {
		s.log.DispatchError(lead.ID.String(), string(nudge.Kind), s.cfg.GetDispatchRetries(), err)
		return false, s.nudges.MarkFailed(ctx, nudge.ID)
	}

	now := time.Now()
	spend := nudge.Kind == KindInactivity
	nudgeCount := lead.NudgeCount
	if spend {
		nudgeCount++
	}
	score, temperature := scoring.Score(scoring.Snapshot{
		Now:                   now,
		LastInboundAt:         lead.LastInboundAt,
		HasBudget:             lead.BudgetMax != nil,
		QualifyingAnswers:     lead.QualifyingAnswers,
		ConsultationRequested: lead.ConsultationRequested,
		NudgeCount:            nudgeCount,
	}, scoring.Thresholds{
		Warm:    s.cfg.GetScoreWarm(),
		Hot:     s.cfg.GetScoreHot(),
		Burning: s.cfg.GetScoreBurning(),
	})

	// Targeted update only. The engine may be mutating the same lead in the
	// API process; the dispatcher's snapshot is stale by the time the send
	// finishes and must never rewrite stage or inbound fields.
	if err := s.leads.RecordDispatch(ctx, lead.ID, spend, score, temperature); err != nil {
		return true, err
	}

	s.bus.Publish(ctx, events.NudgeSent{
		BaseEvent:  events.NewBaseEvent(),
		NudgeID:    nudge.ID,
		LeadID:     lead.ID,
		TenantID:   lead.TenantID,
		Kind:       string(nudge.Kind),
		NudgeCount: nudgeCount,
	})

	return true, nil
}

// sendWithRetry attempts dispatch with exponential back-off. Exhaustion is
// terminal: the nudge flips to SENT_FAILED and is never retried again.
func (s *Service) sendWithRetry(ctx context.Context, nudge Nudge, message string) error {
	retries := s.cfg.GetDispatchRetries()
	if retries < 1 {
		retries = 1
	}
	backoff := s.cfg.GetDispatchBackoffBase()

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		lastErr = s.sender.SendMessage(ctx, nudge.ContactID, message)
		if lastErr == nil {
			return nil
		}

		s.log.DispatchError(nudge.LeadID.String(), string(nudge.Kind), attempt, lastErr)

		if attempt < retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff * time.Duration(1<<(attempt-1))):
			}
		}
	}

	return fmt.Errorf("dispatch exhausted after %d attempts: %w", retries, lastErr)
}

func nudgeMessage(kind Kind, lead leadrepo.Lead) string {
	name := "there"
	if lead.Name != nil && *lead.Name != "" {
		name = *lead.Name
	}

	switch kind {
	case KindAppointmentReminder:
		return fmt.Sprintf("Hi %s, a quick reminder about your upcoming appointment. Reply here if anything changed.", name)
	case KindConsultationFollowup:
		return fmt.Sprintf("Hi %s, following up on your consultation request. What time works best for a call?", name)
	default:
		switch {
		case lead.NudgeCount <= 0:
			return fmt.Sprintf("Hi %s, just checking in. Still interested? Happy to answer any questions.", name)
		case lead.NudgeCount == 1:
			return fmt.Sprintf("Hi %s, we still have options matching what you were looking for. Want me to send the latest?", name)
		default:
			return fmt.Sprintf("Hi %s, this is my last check-in. Reply anytime and we'll pick up right where we left off.", name)
		}
	}
}
