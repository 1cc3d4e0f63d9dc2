package ghost

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"
)

// Worker consumes due-time nudge tasks from the queue and hands them to the
// service for dispatch.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	service *Service
	log     *logger.Logger
}

// NewWorker builds the queue consumer for due nudges.
func NewWorker(cfg Config, service *Service, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		service: service,
		log:     log,
	}

	mux.HandleFunc(TaskNudgeDue, w.handleNudgeDue)

	return w, nil
}

func (w *Worker) handleNudgeDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNudgeDuePayload(task)
	if err != nil {
		return err
	}

	nudgeID, err := uuid.Parse(payload.NudgeID)
	if err != nil {
		return err
	}

	if err := w.service.DispatchDue(ctx, nudgeID); err != nil {
		// A row deleted out from under us is not retryable.
		if apperr.Is(err, apperr.KindNotFound) {
			w.log.Warn("due nudge no longer exists", "nudge_id", nudgeID)
			return nil
		}
		return err
	}
	return nil
}

// Run blocks serving queue tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("nudge worker stopped", "error", err)
	}
}
