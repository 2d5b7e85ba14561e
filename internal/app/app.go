package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"NewsRadar/internal/canonical"
	"NewsRadar/internal/config"
	"NewsRadar/internal/configsvc"
	"NewsRadar/internal/dedup"
	"NewsRadar/internal/dispatch"
	"NewsRadar/internal/domain"
	"NewsRadar/internal/infrastructure/fetcher"
	"NewsRadar/internal/infrastructure/portfolio"
	"NewsRadar/internal/infrastructure/queue"
	"NewsRadar/internal/infrastructure/scheduler"
	"NewsRadar/internal/infrastructure/storage"
	"NewsRadar/internal/infrastructure/telegram"
	"NewsRadar/internal/ingest"
	"NewsRadar/internal/ledger"
	"NewsRadar/internal/logging"
	"NewsRadar/internal/planner"
	"NewsRadar/internal/ports"
	"NewsRadar/internal/quota"
	"NewsRadar/internal/scanner"
)

// Application wires stores, pipeline services, workers, and the scheduler.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sql.DB
	queue      *queue.Queue
	runner     *fetcher.Runner
	dispatcher *dispatch.Dispatcher
	ingestor   *ingest.Ingestor
	configSvc  *configsvc.Service
	scheduler  ports.Scheduler
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	shared := storage.NewPostgresSharedStore(db)
	articles := storage.NewPostgresArticleStore(db)
	settings := storage.NewPostgresSettingsStore(db)

	recognized := make([]domain.ProviderConfig, 0, len(cfg.Providers))
	for _, site := range cfg.Providers {
		recognized = append(recognized, site.ProviderConfig())
	}

	configSvc := configsvc.New(settings, shared, recognized, baseLogger.With("component", "configsvc"))

	canon := canonical.New(canonical.DefaultStrategy)
	deduplicator := dedup.New(canon, baseLogger.With("component", "dedup"))
	ingestor := ingest.New(articles, canon, deduplicator, baseLogger.With("component", "ingest"))

	limits := func(provider string) domain.QuotaLimits {
		for _, p := range recognized {
			if p.Name == provider {
				return domain.QuotaLimits{Daily: p.DailyLimit, Minute: p.MinuteLimit}
			}
		}
		return domain.QuotaLimits{}
	}
	tracker := quota.New(shared, limits, cfg.Scheduler.Location(), baseLogger.With("component", "quota"))

	weights := portfolio.NewClient(cfg.Portfolio.FeedURL, cfg.Portfolio.APIKey)
	plan := planner.New(weights, articles, configSvc, cfg.Planner.DroughtSaturationDays,
		baseLogger.With("component", "planner"))

	taskQueue := queue.New(cfg.Queue.BufferSize, baseLogger.With("component", "queue"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	dispatcher := dispatch.New(dispatch.Deps{
		Planner:  plan,
		Ledger:   ledger.New(shared),
		Quota:    tracker,
		Config:   configSvc,
		Queue:    taskQueue,
		Shared:   shared,
		Notifier: notifier,
		Logger:   baseLogger.With("component", "dispatch"),
	})

	registry := scanner.NewRegistry()
	registry.Register(fetcher.NewRSSScanner(nil))
	registry.Register(fetcher.NewHTMLScanner(nil))

	sites := make([]fetcher.Site, 0, len(cfg.Providers))
	for _, site := range cfg.Providers {
		sites = append(sites, fetcher.Site{
			Provider: site.Name,
			Kind:     site.Kind,
			FeedURL:  site.FeedURL,
			Options:  site.Options,
		})
	}
	runner := fetcher.NewRunner(registry, sites, ingestor, baseLogger.With("component", "fetcher"))

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		db:         db,
		queue:      taskQueue,
		runner:     runner,
		dispatcher: dispatcher,
		ingestor:   ingestor,
		configSvc:  configSvc,
		scheduler:  scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location()),
	}, nil
}

// Dispatcher exposes planning for manual triggers and status queries.
func (a *Application) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// Ingestor exposes the ingestion endpoint service.
func (a *Application) Ingestor() *ingest.Ingestor {
	return a.ingestor
}

// ConfigService exposes flag and provider-mode operations.
func (a *Application) ConfigService() *configsvc.Service {
	return a.configSvc
}

// Run starts workers and the planning schedule, then blocks until ctx ends.
func (a *Application) Run(ctx context.Context) error {
	a.queue.StartWorkers(ctx, a.cfg.Queue.Workers, a.runner.Handle)

	job := func(trigger time.Time) {
		report, err := a.dispatcher.RunDaily(ctx, trigger)
		if err != nil {
			a.logger.Error("planning run failed", "error", err)
			return
		}
		a.logger.Info("planning run complete",
			"date", report.Date,
			"planned", report.PlannedQueries,
			"enqueued", report.EnqueuedTasks,
			"skipped", report.SkippedTasks)
	}

	if err := a.scheduler.Start(ctx, job); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.scheduler.Stop(stopCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	a.queue.Close()

	if err := a.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
