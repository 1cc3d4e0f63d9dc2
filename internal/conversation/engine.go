package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/ghost"
	"leadrouter_backend/internal/leads/domain"
	leadrepo "leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/scoring"
	"leadrouter_backend/internal/tenants"
	"leadrouter_backend/platform/logger"
)

// InboundMessage is one routed inbound delivery: the webhook resolved the
// tenant and vertical before it reaches the engine.
type InboundMessage struct {
	MessageID string
	TenantID  uuid.UUID
	ContactID string
	Vertical  tenants.Vertical
	Text      string
	Timestamp time.Time
}

// Engine advances the per-lead conversation state machine. All mutation for
// a lead happens under that lead's mutex, so each inbound message observes
// and produces a consistent snapshot.
type Engine struct {
	leads      leadrepo.Repository
	processed  ProcessedMessages
	classifier Classifier
	sender     Sender
	nudges     NudgeScheduler
	bus        events.Bus
	cfg        EngineConfig
	locks      *leadLocks
	log        *logger.Logger
}

// NewEngine creates the conversation engine.
func NewEngine(leads leadrepo.Repository, processed ProcessedMessages, classifier Classifier, sender Sender, nudges NudgeScheduler, bus events.Bus, cfg EngineConfig, log *logger.Logger) *Engine {
	return &Engine{
		leads:      leads,
		processed:  processed,
		classifier: classifier,
		sender:     sender,
		nudges:     nudges,
		bus:        bus,
		cfg:        cfg,
		locks:      newLeadLocks(),
		log:        log,
	}
}

// HandleInbound processes one inbound message end to end: idempotency guard,
// universal inbound rule, classification, stage transition, rescore, persist,
// then outbound replies. Reprocessing a message ID already seen is a no-op;
// a failed attempt releases its idempotency record so the transport's
// redelivery is a genuine retry, not a silent drop.
func (e *Engine) HandleInbound(ctx context.Context, msg InboundMessage) error {
	fresh, err := e.processed.MarkProcessed(ctx, msg.MessageID, msg.ContactID)
	if err != nil {
		return err
	}
	if !fresh {
		e.log.Debug("duplicate delivery ignored", "message_id", msg.MessageID, "contact_id", msg.ContactID)
		return nil
	}

	if err := e.process(ctx, msg); err != nil {
		if forgetErr := e.processed.Forget(ctx, msg.MessageID); forgetErr != nil {
			e.log.Warn("release idempotency record failed", "message_id", msg.MessageID, "error", forgetErr)
		}
		return err
	}
	return nil
}

func (e *Engine) process(ctx context.Context, msg InboundMessage) error {
	unlock := e.locks.lock(msg.TenantID.String() + ":" + msg.ContactID)
	defer unlock()

	lead, created, err := e.leads.GetOrCreate(ctx, msg.TenantID, msg.ContactID, msg.Vertical)
	if err != nil {
		return err
	}
	if created {
		e.bus.Publish(ctx, events.LeadCreated{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			TenantID:  lead.TenantID,
			ContactID: lead.ContactID,
			Vertical:  string(lead.Vertical),
		})
	}

	replies := e.applyInboundRule(ctx, &lead)

	classification := e.classify(ctx, msg.Text)
	signal := Normalize(classification.Signal)

	replies = append(replies, e.transition(ctx, &lead, signal, classification)...)

	now := time.Now()
	lead.LeadScore, lead.Temperature = scoring.Score(scoring.Snapshot{
		Now:                   now,
		LastInboundAt:         lead.LastInboundAt,
		HasBudget:             lead.BudgetMax != nil,
		QualifyingAnswers:     lead.QualifyingAnswers,
		ConsultationRequested: lead.ConsultationRequested,
		NudgeCount:            lead.NudgeCount,
	}, scoring.Thresholds{
		Warm:    e.cfg.GetScoreWarm(),
		Hot:     e.cfg.GetScoreHot(),
		Burning: e.cfg.GetScoreBurning(),
	})

	if len(replies) > 0 {
		lead.LastOutboundAt = &now
	}

	if err := e.leads.Save(ctx, lead); err != nil {
		return err
	}

	// State is durable before anything goes out the door: a send failure
	// must never roll the state machine back.
	for _, reply := range replies {
		if err := e.sendWithRetry(ctx, lead, reply); err != nil {
			e.log.DispatchError(lead.ID.String(), "reply", e.cfg.GetDispatchRetries(), err)
			break
		}
	}

	return nil
}

// applyInboundRule is the universal rule that runs before any transition:
// every genuine inbound message cancels pending nudges, stamps activity, and
// reopens a GHOSTED lead at the stage it left.
func (e *Engine) applyInboundRule(ctx context.Context, lead *leadrepo.Lead) []string {
	if cancelled, err := e.nudges.CancelPending(ctx, lead.ID); err != nil {
		e.log.Warn("cancel pending nudges failed", "lead_id", lead.ID, "error", err)
	} else if cancelled > 0 {
		e.log.Debug("pending nudges cancelled", "lead_id", lead.ID, "count", cancelled)
	}

	now := time.Now()
	lead.LastInboundAt = &now
	// New inbound gap: the pitch guard resets so the next stage entry may
	// send it again, exactly once.
	lead.PitchSent = false

	if !lead.Ghosted && lead.ConversationStage != domain.StageGhosted {
		return nil
	}

	reopened := lead.PriorStage
	if !reopened.IsKnown() || reopened.IsTerminal() {
		reopened = domain.StageNew
	}
	e.setStage(ctx, lead, reopened, "reopen")
	lead.Ghosted = false
	// The nudge budget starts over for the reopened engagement.
	lead.NudgeCount = 0

	return []string{welcomeBack(lead.Name)}
}

func (e *Engine) classify(ctx context.Context, text string) Classification {
	classification, err := e.classifier.Classify(ctx, text)
	if err != nil {
		e.log.Warn("classifier unavailable, treating as generic", "error", err)
		return Classification{Signal: SignalGeneric}
	}
	return classification
}

// transition applies the stage/signal table and returns the replies to send.
func (e *Engine) transition(ctx context.Context, lead *leadrepo.Lead, signal Signal, c Classification) []string {
	if signal == SignalQualifyingAnswer {
		e.absorbQualifiers(lead, c)
	}

	// A consultation request short-circuits the table from any active stage.
	if signal == SignalConsultationRequest && !lead.ConversationStage.IsTerminal() {
		return e.requestConsultation(ctx, lead)
	}

	switch lead.ConversationStage {
	case domain.StageNew:
		e.setStage(ctx, lead, domain.StageQualification, string(signal))
		return []string{greeting(lead.Vertical), qualifyingPrompt(lead.Vertical)}

	case domain.StageQualification:
		switch signal {
		case SignalQualifyingAnswer:
			if lead.BudgetMax != nil {
				e.setStage(ctx, lead, domain.StageValueProposition, string(signal))
				return []string{e.sendPitch(lead)}
			}
			return []string{qualifyingPrompt(lead.Vertical)}
		case SignalQuestion:
			return []string{questionAnswer(lead.Vertical), qualifyingPrompt(lead.Vertical)}
		default:
			return []string{qualifyingPrompt(lead.Vertical)}
		}

	case domain.StageValueProposition:
		switch signal {
		case SignalQuestion:
			// Answer, never repeat the pitch.
			return []string{questionAnswer(lead.Vertical)}
		case SignalPhotoRequest:
			return []string{photosReply(lead.Vertical)}
		case SignalQualifyingAnswer:
			e.setStage(ctx, lead, domain.StageNegotiation, string(signal))
			return []string{negotiationReply(lead.Vertical)}
		default:
			return []string{holdingReply()}
		}

	case domain.StageNegotiation:
		switch signal {
		case SignalQuestion:
			return []string{questionAnswer(lead.Vertical)}
		case SignalPhotoRequest:
			return []string{photosReply(lead.Vertical)}
		default:
			return []string{negotiationReply(lead.Vertical)}
		}

	case domain.StageConsultationRequested:
		switch signal {
		case SignalQualifyingAnswer:
			// Contact details landed; hand over and close.
			e.setStage(ctx, lead, domain.StageClosed, string(signal))
			e.bus.Publish(ctx, events.DealClosed{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    lead.ID,
				TenantID:  lead.TenantID,
			})
			if err := e.nudges.Schedule(ctx, ghost.ScheduleParams{
				LeadID:    lead.ID,
				TenantID:  lead.TenantID,
				ContactID: lead.ContactID,
				Kind:      ghost.KindAppointmentReminder,
				DueAt:     time.Now().Add(e.cfg.GetAppointmentReminderDelay()),
			}); err != nil {
				e.log.Warn("schedule appointment reminder failed", "lead_id", lead.ID, "error", err)
			}
			return []string{closingConfirmation(lead.Vertical)}
		case SignalQuestion:
			return []string{questionAnswer(lead.Vertical)}
		default:
			return []string{holdingReply()}
		}

	case domain.StageClosed:
		return []string{closedAck()}

	default:
		return nil
	}
}

// requestConsultation moves the lead into CONSULTATION_REQUESTED and books
// the explicit follow-up nudge for when contact details never arrive.
func (e *Engine) requestConsultation(ctx context.Context, lead *leadrepo.Lead) []string {
	lead.ConsultationRequested = true
	e.setStage(ctx, lead, domain.StageConsultationRequested, string(SignalConsultationRequest))

	e.bus.Publish(ctx, events.ConsultationRequested{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
	})

	if err := e.nudges.Schedule(ctx, ghost.ScheduleParams{
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
		ContactID: lead.ContactID,
		Kind:      ghost.KindConsultationFollowup,
		DueAt:     time.Now().Add(e.cfg.GetConsultationFollowupDelay()),
	}); err != nil {
		e.log.Warn("schedule consultation follow-up failed", "lead_id", lead.ID, "error", err)
	}

	return []string{consultationAck(lead.Vertical)}
}

// sendPitch returns the pitch exactly once per inbound gap.
func (e *Engine) sendPitch(lead *leadrepo.Lead) string {
	if lead.PitchSent {
		return holdingReply()
	}
	lead.PitchSent = true
	return pitch(lead.Vertical)
}

// setStage applies a legal transition and publishes StageChanged; an illegal
// one is logged and ignored.
func (e *Engine) setStage(ctx context.Context, lead *leadrepo.Lead, next domain.Stage, signal string) {
	from := lead.ConversationStage
	if from == next {
		return
	}
	if !from.CanAdvanceTo(next) {
		e.log.Warn("illegal stage transition ignored", "lead_id", lead.ID, "from", string(from), "to", string(next))
		return
	}

	lead.PriorStage = from
	lead.ConversationStage = next

	e.log.StageTransition(lead.ID.String(), string(from), string(next), signal)
	e.bus.Publish(ctx, events.StageChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
		From:      string(from),
		To:        string(next),
		Signal:    signal,
	})
}

func (e *Engine) absorbQualifiers(lead *leadrepo.Lead, c Classification) {
	answered := false

	if c.Name != "" && lead.Name == nil {
		name := c.Name
		lead.Name = &name
		answered = true
	}
	if c.Email != "" && lead.Email == nil {
		email := c.Email
		lead.Email = &email
		answered = true
	}
	if c.BudgetMin != nil && lead.BudgetMin == nil {
		lead.BudgetMin = c.BudgetMin
		answered = true
	}
	if c.BudgetMax != nil && lead.BudgetMax == nil {
		lead.BudgetMax = c.BudgetMax
		answered = true
	}

	// A qualifying signal that carries no new fields still counts as an
	// answer; a repeat of known fields does not.
	if answered || (c.Name == "" && c.Email == "" && c.BudgetMin == nil && c.BudgetMax == nil) {
		lead.QualifyingAnswers++
	}
}

func (e *Engine) sendWithRetry(ctx context.Context, lead leadrepo.Lead, message string) error {
	retries := e.cfg.GetDispatchRetries()
	if retries < 1 {
		retries = 1
	}
	backoff := e.cfg.GetDispatchBackoffBase()

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		lastErr = e.sender.SendMessage(ctx, lead.ContactID, message)
		if lastErr == nil {
			return nil
		}
		if attempt < retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff * time.Duration(1<<(attempt-1))):
			}
		}
	}
	return lastErr
}
