package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"zapleads_backend/internal/ai"
	"zapleads_backend/internal/config"
	"zapleads_backend/internal/db"
	"zapleads_backend/internal/delivery"
	"zapleads_backend/internal/events"
	"zapleads_backend/internal/gateway"
	"zapleads_backend/internal/handoff"
	apphttp "zapleads_backend/internal/http"
	"zapleads_backend/internal/http/router"
	"zapleads_backend/internal/knowledge"
	"zapleads_backend/internal/leads/repository"
	"zapleads_backend/internal/reconciler"
	"zapleads_backend/internal/scheduler"
	"zapleads_backend/internal/storage"
	"zapleads_backend/internal/tenants"
	"zapleads_backend/internal/webhook"
	"zapleads_backend/platform/logger"
	"zapleads_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting api", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	registerEventAudit(eventBus, log)
	val := validator.New()

	tenantRepo := tenants.New(pool)
	leadRepo := repository.New(pool)
	knowledgeRepo := knowledge.New(pool)

	if cfg.DefaultInstance != "" {
		if _, err := tenantRepo.EnsureTenant(ctx, "default", cfg.DefaultInstance); err != nil {
			log.Error("failed to ensure default tenant", "error", err)
			panic("failed to ensure default tenant: " + err.Error())
		}
	}

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:  cfg.GatewayURL,
		APIKey:   cfg.GatewayAPIKey,
		Instance: cfg.DefaultInstance,
		RateRPS:  cfg.GatewayRateRPS,
		Timeout:  cfg.GatewayTimeout,
	}, log)
	if gatewayClient == nil {
		log.Warn("GATEWAY_URL not configured; outbound messaging disabled")
	}

	var aiClient *ai.Client
	if cfg.GenAIAPIKey != "" {
		aiClient, err = ai.NewClient(ctx, ai.Config{
			APIKey:  cfg.GenAIAPIKey,
			Model:   cfg.CompletionModel,
			Timeout: cfg.CompletionTimeout,
		}, log)
		if err != nil {
			log.Error("failed to initialize ai client", "error", err)
			panic("failed to initialize ai client: " + err.Error())
		}
	} else {
		log.Warn("GENAI_API_KEY not configured; replies fall back to canned responses")
	}

	archiver, err := storage.NewArchiver(storage.Config{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
	}, log)
	if err != nil {
		log.Error("failed to initialize media archiver", "error", err)
		panic("failed to initialize media archiver: " + err.Error())
	}
	if archiver != nil {
		if err := withRetry(ctx, log, "ensure media bucket", 5, 2*time.Second, func() error {
			return archiver.EnsureBucket(ctx)
		}); err != nil {
			log.Error("failed to ensure media bucket", "error", err)
			panic("failed to ensure media bucket: " + err.Error())
		}
	}

	notifier := handoff.NewNotifier(handoff.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUser,
		Password:   cfg.SMTPPassword,
		FromEmail:  cfg.EmailFromAddress,
		FromName:   "Lead Engine",
		Recipients: cfg.HandoffRecipients,
	}, log)
	if notifier == nil {
		log.Warn("SMTP not configured; handoff emails disabled")
	}

	summaryClient, closeSummaries := initSummaryScheduler(cfg, log)
	if closeSummaries != nil {
		defer closeSummaries()
	}

	deliverer := delivery.NewScheduler(gatewayClient, delivery.Options{
		ChunkLimit: cfg.ChunkLimit,
		MinDelay:   cfg.ChunkMinDelay,
		MaxDelay:   cfg.ChunkMaxDelay,
		ChunkGap:   cfg.ChunkGap,
	}, log)

	reconcilerSvc := reconciler.NewService(
		leadRepo,
		tenantRepo,
		knowledgeRepo,
		completerOrNil(aiClient),
		mediaOrNil(aiClient),
		fetcherOrNil(gatewayClient),
		deliverer,
		archiverOrNil(archiver),
		notifierOrNil(notifier),
		summaryClient,
		eventBus,
		reconciler.Options{
			DefaultInstanceTag: cfg.DefaultInstance,
			Persona:            cfg.PersonaPrompt,
			KnowledgeTopN:      cfg.KnowledgeTopN,
			HistoryTurns:       cfg.HistoryTurns,
		},
		log,
	)

	webhookModule := webhook.NewModule(reconcilerSvc, cfg.WebhookToken, val, log)

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  pool,
		Modules: []apphttp.Module{webhookModule},
	}

	engine := router.New(app)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: engine}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

// registerEventAudit logs lifecycle events so funnel movement is visible
// without querying the database.
func registerEventAudit(bus events.Bus, log *logger.Logger) {
	bus.Subscribe(events.StageChanged{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		if evt, ok := e.(events.StageChanged); ok {
			log.Info("lead stage changed", "lead_id", evt.LeadID, "from", evt.From, "to", evt.To, "score", evt.Score)
		}
		return nil
	}))
	bus.Subscribe(events.OwnershipChanged{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		if evt, ok := e.(events.OwnershipChanged); ok {
			log.Info("lead ownership changed", "lead_id", evt.LeadID, "from", evt.From, "to", evt.To, "action", evt.Action)
		}
		return nil
	}))
	bus.Subscribe(events.HandoffCreated{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		if evt, ok := e.(events.HandoffCreated); ok {
			log.Info("handoff created", "lead_id", evt.LeadID, "handoff_id", evt.HandoffID, "requester", evt.Requester)
		}
		return nil
	}))
}

func initSummaryScheduler(cfg *config.Config, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not configured; summary refreshes disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg.RedisURL, cfg.AsynqQueue)
	if err != nil {
		log.Error("failed to initialize summary scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// The *Client types are nil-able; converting a typed nil into a non-nil
// interface would defeat the reconciler's nil checks.
func completerOrNil(client *ai.Client) reconciler.Completer {
	if client == nil {
		return nil
	}
	return client
}

func mediaOrNil(client *ai.Client) reconciler.MediaUnderstander {
	if client == nil {
		return nil
	}
	return client
}

func fetcherOrNil(client *gateway.Client) reconciler.MediaFetcher {
	if client == nil {
		return nil
	}
	return client
}

func archiverOrNil(archiver *storage.Archiver) reconciler.MediaArchiver {
	if archiver == nil {
		return nil
	}
	return archiver
}

func notifierOrNil(notifier *handoff.Notifier) reconciler.HandoffNotifier {
	if notifier == nil {
		return nil
	}
	return handoffAdapter{notifier}
}

// handoffAdapter maps the reconciler's notification port onto the email
// notifier.
type handoffAdapter struct {
	notifier *handoff.Notifier
}

func (a handoffAdapter) NotifyHandoff(ctx context.Context, note reconciler.HandoffNotification) error {
	return a.notifier.Notify(ctx, handoff.Notification{
		LeadName:  note.LeadName,
		LeadPhone: note.LeadPhone,
		Stage:     note.Stage,
		Score:     note.Score,
		Reason:    note.Reason,
		Message:   note.Message,
	})
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
