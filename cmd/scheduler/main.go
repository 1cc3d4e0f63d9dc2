package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadrouter_backend/internal/conversation"
	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/ghost"
	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/whatsapp"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/db"
	"leadrouter_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	events.RegisterAuditLog(eventBus, log)

	whatsappClient := whatsapp.NewClient(cfg, log)
	if whatsappClient == nil {
		log.Warn("WHATSAPP_URL not configured; nudge dispatch is a no-op")
	}

	leadRepo := repository.New(pool)
	nudgeRepo := ghost.NewRepository(pool)

	// The sweep dispatches its own inactivity nudges; it never enqueues, so
	// no queue client is wired here.
	ghostService := ghost.NewService(nudgeRepo, leadRepo, whatsappClient, nil, eventBus, cfg, log)

	sweeper := ghost.NewSweeper(
		ghostService,
		leadRepo,
		nudgeRepo,
		eventBus,
		conversation.NewProcessedMessagesRepo(pool),
		cfg,
		log,
	)
	go sweeper.Run(ctx)

	worker, err := ghost.NewWorker(cfg, ghostService, log)
	if err != nil {
		log.Error("failed to initialize nudge worker", "error", err)
		panic("failed to initialize nudge worker: " + err.Error())
	}

	worker.Run(ctx)
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
