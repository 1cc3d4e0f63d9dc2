package ghost

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/leads/domain"
	leadrepo "leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/platform/logger"
)

// sweepConcurrency bounds parallel nudge dispatches per sweep so a large
// idle cohort cannot flood the gateway.
const sweepConcurrency = 8

// Pruner cleans up expired idempotency records. Satisfied by the
// conversation module's processed-message store.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

// Sweeper periodically scans for idle leads and either nudges them or, once
// the nudge budget is spent, flips them to GHOSTED. It also drains nudges
// whose queue delivery was lost.
type Sweeper struct {
	service *Service
	leads   leadrepo.Repository
	nudges  NudgeStore
	bus     events.Bus
	pruner  Pruner
	cfg     Config
	log     *logger.Logger
}

// NewSweeper creates the idle-lead sweeper. pruner may be nil.
func NewSweeper(service *Service, leads leadrepo.Repository, nudges NudgeStore, bus events.Bus, pruner Pruner, cfg Config, log *logger.Logger) *Sweeper {
	return &Sweeper{
		service: service,
		leads:   leads,
		nudges:  nudges,
		bus:     bus,
		pruner:  pruner,
		cfg:     cfg,
		log:     log,
	}
}

// Run blocks, sweeping on a fixed interval until ctx is cancelled. Ticks are
// serialized: a slow sweep delays the next one rather than overlapping it.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.cfg.GetSweepInterval()
	s.log.Info("sweeper started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass: idle candidates, overdue pending nudges, and
// idempotency-record pruning.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := time.Now()

	if err := s.sweepIdle(ctx, now); err != nil {
		return err
	}
	if err := s.drainOverdue(ctx, now); err != nil {
		return err
	}
	if s.pruner != nil {
		if pruned, err := s.pruner.Prune(ctx); err != nil {
			s.log.Warn("prune processed messages failed", "error", err)
		} else if pruned > 0 {
			s.log.Debug("pruned processed messages", "count", pruned)
		}
	}
	return nil
}

func (s *Sweeper) sweepIdle(ctx context.Context, now time.Time) error {
	idleBefore := now.Add(-s.cfg.GetIdleThreshold())

	candidates, err := s.leads.ListIdleCandidates(ctx, idleBefore)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	maxNudges := s.cfg.GetMaxNudges()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	var ghosted int
	var nudged atomic.Int64
	for _, lead := range candidates {
		// A recent outbound nudge resets the clock; the threshold spaces
		// consecutive nudges just like it spaces the first one.
		if lead.LastOutboundAt != nil && lead.LastOutboundAt.After(idleBefore) {
			continue
		}

		if lead.NudgeCount >= maxNudges {
			didGhost, err := s.ghostLead(ctx, lead, idleBefore)
			if err != nil {
				s.log.Error("ghost lead failed", "lead_id", lead.ID, "error", err)
				continue
			}
			if didGhost {
				ghosted++
			}
			continue
		}

		lead := lead
		g.Go(func() error {
			sent, err := s.service.NudgeIdleLead(gctx, lead)
			if err != nil {
				s.log.Error("nudge idle lead failed", "lead_id", lead.ID, "error", err)
				return nil
			}
			if sent {
				nudged.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if ghosted > 0 || nudged.Load() > 0 {
		s.log.Info("idle sweep complete", "candidates", len(candidates), "nudged", nudged.Load(), "ghosted", ghosted)
	}
	return nil
}

// ghostLead marks a budget-exhausted lead GHOSTED, preserving the stage it
// came from so a later inbound message can reopen it there. The guarded
// UPDATE re-checks idleness, so a reply that landed after the scan keeps the
// lead active and its freshly scheduled nudges intact.
func (s *Sweeper) ghostLead(ctx context.Context, lead leadrepo.Lead, idleBefore time.Time) (bool, error) {
	ghosted, ok, err := s.leads.MarkGhosted(ctx, lead.ID, idleBefore)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if _, err := s.nudges.CancelPending(ctx, ghosted.ID); err != nil {
		return true, err
	}

	s.log.StageTransition(ghosted.ID.String(), string(ghosted.PriorStage), string(domain.StageGhosted), "nudge_budget_exhausted")
	s.bus.Publish(ctx, events.LeadGhosted{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     ghosted.ID,
		TenantID:   ghosted.TenantID,
		NudgeCount: ghosted.NudgeCount,
	})
	return true, nil
}

// drainOverdue is the safety net for queue deliveries that never arrived:
// any nudge still PENDING past its due time gets dispatched here.
func (s *Sweeper) drainOverdue(ctx context.Context, now time.Time) error {
	overdue, err := s.nudges.ListOverduePending(ctx, now)
	if err != nil {
		return err
	}

	for _, nudge := range overdue {
		if err := s.service.DispatchDue(ctx, nudge.ID); err != nil {
			s.log.Error("overdue nudge dispatch failed", "nudge_id", nudge.ID, "error", err)
		}
	}
	return nil
}
