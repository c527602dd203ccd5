// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/analytics"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/api"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/broker"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/cache"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/config"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/ingest"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/ops"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/pipeline"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository/memory"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository/postgres"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/service"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/snapshot"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/storage"
	"github.com/udaykumar0515/intellistock-ai-for-good/pkg/logger"
)

// eventPublisher is satisfied by the kafka publisher and its noop fallback.
type eventPublisher interface {
	PublishAlerts(ctx context.Context, alerts []domain.AlertRecord) error
	PublishOrderPlaced(ctx context.Context, order domain.OrderEvent) error
	Close() error
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.LogLevel)
	logger.SetJSON(cfg.Server.LogJSON)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	criticality, err := config.LoadCriticality(cfg.Criticality.File)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load criticality config")
	}

	checks := make(map[string]ops.Check)

	// Initialize repositories
	repos, closeDB := initRepositories(ctx, cfg, checks)
	defer closeDB()

	// Initialize redis-backed query cache and task locks
	var (
		queryCache = cache.NewNoopQueryCache()
		locker     pipeline.Locker
	)
	if cfg.Cache.Enabled {
		rdb, err := cache.NewRedisClient(cfg.Cache)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Redis unavailable, query cache disabled")
		} else {
			defer rdb.Close()
			queryCache = cache.NewQueryCache(rdb, cfg.Cache.QueryTTLSeconds)
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
			if cfg.Scheduler.DistributedLock {
				locker = pipeline.NewRedisLocker(rdb, cfg.Scheduler.LockTTL)
			}
		}
	}

	// Initialize event publisher
	var publisher eventPublisher = broker.NoopPublisher{}
	if cfg.Broker.Enabled {
		publisher = broker.NewEventPublisher(broker.NewProducer(cfg.Broker.Brokers, cfg.Broker.AlertsTopic))
		logger.Log.Info().Strs("brokers", cfg.Broker.Brokers).Str("topic", cfg.Broker.AlertsTopic).Msg("Alert publishing enabled")
	}
	defer publisher.Close()

	// Initialize object storage: minio when enabled, the data dir otherwise
	objects, archiver := initStorage(ctx, cfg)

	// Initialize refresh pipeline
	snapshots := snapshot.NewStore()
	logs := pipeline.NewChangeLogs()
	env := &pipeline.Env{
		Repos:     repos,
		Snapshots: snapshots,
		Logs:      logs,
		Cache:     queryCache,
		Publisher: publisher,
		Workers:   cfg.Scheduler.WorkerCount,
	}
	if archiver != nil {
		env.Archiver = archiver
	}

	opts := []pipeline.Option{pipeline.WithTick(cfg.Scheduler.Tick)}
	if locker != nil {
		opts = append(opts, pipeline.WithLocker(locker))
	}
	sched := pipeline.NewScheduler(env, opts...)
	for _, spec := range pipeline.DefaultNodes(cfg, logs) {
		if err := sched.Register(spec); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to register task")
		}
	}
	if err := sched.Build(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to build refresh graph")
	}
	for _, name := range cfg.Scheduler.SuspendedTasks {
		if err := sched.Suspend(name); err != nil {
			logger.Log.Warn().Err(err).Str("task", name).Msg("Ignoring unknown suspended task")
		}
	}

	if err := pipeline.Prime(ctx, env); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to prime snapshots, serving empty views until first refresh")
	}

	// Seed ledger
	ingestor := ingest.NewIngestor(repos.Ledger, logs.Ledger)
	if cfg.App.SeedLedger != "" {
		res, err := ingestor.IngestFile(ctx, cfg.App.SeedLedger)
		if err != nil {
			logger.Log.Error().Err(err).Str("path", cfg.App.SeedLedger).Msg("Failed to seed ledger")
		} else {
			logger.Log.Info().Str("path", cfg.App.SeedLedger).Int("inserted", res.Inserted).Int("duplicates", res.Duplicates).Msg("Ledger seeded")
		}
	}

	if cfg.Scheduler.RefreshOnStartup {
		for _, name := range []string{pipeline.TaskStockAnalytics, pipeline.TaskUsageStats} {
			if err := sched.Trigger(name); err != nil {
				logger.Log.Warn().Err(err).Str("task", name).Msg("Failed to queue startup refresh")
			}
		}
	}

	schedDone := make(chan struct{})
	if cfg.Scheduler.Enabled {
		go func() {
			defer close(schedDone)
			if err := sched.Start(ctx); err != nil {
				logger.Log.Error().Err(err).Msg("Refresh scheduler exited")
			}
		}()
	} else {
		close(schedDone)
		logger.Log.Warn().Msg("Refresh scheduler disabled; tasks run only when triggered from the CLI")
	}

	// Initialize services
	scorer := analytics.NewCriticalityScorer(criticality)
	actions := service.NewActionService(repos, snapshots, publisher, queryCache)
	services := &api.Services{
		Query:       service.NewQueryService(snapshots, repos, scorer, queryCache),
		Actions:     actions,
		Tasks:       service.NewTaskService(sched, repos.TaskLogs, logs, actions),
		Ingest:      service.NewIngestService(ingestor, ingest.NewObjectLoader(objects, ingestor, ""), cfg.App.IngestPrefix),
		ExportLimit: cfg.App.ExportLimit,
	}

	// Initialize HTTP servers
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(services, cfg.Server.AllowedOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	opsSrv := &http.Server{
		Addr:        ":" + cfg.Server.OpsPort,
		Handler:     ops.NewRouter(checks),
		ReadTimeout: 5 * time.Second,
	}

	go serve(srv, "api")
	go serve(opsSrv, "ops")

	// Wait for interrupt signal to gracefully shut down
	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down server...")

	grace := time.Duration(cfg.Scheduler.ShutdownGraceSecs) * time.Second
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Ops server forced to shutdown")
	}

	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Log.Warn().Msg("Refresh tasks still running at shutdown deadline")
	}

	logger.Log.Info().Msg("Server exiting")
}

func serve(srv *http.Server, name string) {
	logger.Log.Info().Str("listener", name).Str("addr", srv.Addr).Msg("Starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatal().Err(err).Str("listener", name).Msg("Failed to start server")
	}
}

func initRepositories(ctx context.Context, cfg *config.Config, checks map[string]ops.Check) (*repository.Repositories, func()) {
	if !cfg.Database.Enabled {
		logger.Log.Warn().Msg("Database disabled, using in-memory repositories")
		return memory.NewRepositories(), func() {}
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	checks["database"] = db.PingContext
	return postgres.NewRepositories(db), func() { db.Close() }
}

func initStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, *storage.Archiver) {
	if !cfg.Storage.Enabled {
		dir, err := storage.NewDirStorage(filepath.Join(cfg.App.DataDir, "objects"))
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to prepare local object directory")
		}
		return dir, nil
	}

	client, err := storage.NewMinioClient(ctx, cfg.Storage)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize object storage")
	}
	return client, storage.NewArchiver(client, cfg.Storage.Prefix)
}
