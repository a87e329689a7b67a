package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"zapleads_backend/platform/logger"
)

// SummaryRefresher is implemented by the summary service.
type SummaryRefresher interface {
	Refresh(ctx context.Context, leadID uuid.UUID) error
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	refresher SummaryRefresher
	log       *logger.Logger
}

type WorkerConfig struct {
	RedisURL    string
	Queue       string
	Concurrency int
}

func NewWorker(cfg WorkerConfig, refresher SummaryRefresher, log *logger.Logger) (*Worker, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.Queue
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.Concurrency
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
		server:    server,
		mux:       mux,
		refresher: refresher,
		log:       log,
	}

	mux.HandleFunc(TaskSummaryRefresh, w.handleSummaryRefresh)

	return w, nil
}

func (w *Worker) handleSummaryRefresh(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSummaryRefreshPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	if err := w.refresher.Refresh(ctx, leadID); err != nil {
		w.log.Error("summary refresh failed", "lead_id", leadID, "error", err)
		return err
	}
	return nil
}

func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}
