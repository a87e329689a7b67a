// The worker process runs background jobs that must not block webhook
// handling, currently the conversation summary refresh.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"zapleads_backend/internal/ai"
	"zapleads_backend/internal/config"
	"zapleads_backend/internal/db"
	"zapleads_backend/internal/leads/repository"
	"zapleads_backend/internal/scheduler"
	"zapleads_backend/internal/summary"
	"zapleads_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RedisURL == "" {
		panic("REDIS_URL is required for the worker")
	}
	if cfg.GenAIAPIKey == "" {
		panic("GENAI_API_KEY is required for the worker")
	}

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

	aiClient, err := ai.NewClient(ctx, ai.Config{
		APIKey:  cfg.GenAIAPIKey,
		Model:   cfg.CompletionModel,
		Timeout: cfg.CompletionTimeout,
	}, log)
	if err != nil {
		log.Error("failed to initialize ai client", "error", err)
		panic("failed to initialize ai client: " + err.Error())
	}

	summarySvc := summary.NewService(repository.New(pool), aiClient, log)

	worker, err := scheduler.NewWorker(scheduler.WorkerConfig{
		RedisURL:    cfg.RedisURL,
		Queue:       cfg.AsynqQueue,
		Concurrency: 5,
	}, summarySvc, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	workerErr := make(chan error, 1)
	go func() {
		workerErr <- worker.Run()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping worker")
		worker.Shutdown()
	case err := <-workerErr:
		if err != nil {
			log.Error("worker error", "error", err)
			panic("worker error: " + err.Error())
		}
	}
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
	return fmt.Errorf("%s: %w", name, lastErr)
}
