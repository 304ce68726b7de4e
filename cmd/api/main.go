package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plansync/internal/api"
	"plansync/internal/calendar"
	"plansync/internal/config"
	"plansync/internal/database"
	"plansync/internal/domain"
	"plansync/internal/events"
	"plansync/internal/jobs"
	"plansync/internal/logging"
	"plansync/internal/metrics"
	"plansync/internal/outlook"
	"plansync/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting sync server. Check your config.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	tracker := jobs.NewTracker(newJobStore(cfg, redisClient, &logger))

	client := outlook.NewClient(cfg.Outlook, &logger)
	engine := calendar.NewEngine(db, calendar.NewOutlookProvider(client), tracker,
		cfg.Outlook.CalendarName, cfg.Sync.BatchSize, &logger)

	syncWorker := worker.NewSyncWorker(engine, cfg.Sync.WorkerQueueSize,
		time.Duration(cfg.Sync.TaskTimeoutSeconds)*time.Second, &logger)
	go syncWorker.Start(ctx)

	bus := events.NewEventBus()
	subscribeSyncEvents(bus, engine, syncWorker, &logger)

	httpServer := api.NewHTTPServer(cfg.API, db, syncWorker, tracker, bus, &logger)

	startMetrics(ctx, cfg, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Run(ctx)
	}

	return serveHTTP(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "sync-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := jobs.NewRedisClient(cfg.Redis)
	if err := jobs.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// newJobStore keeps job state in redis when it is reachable and falls back
// to process memory otherwise, so polling keeps working either way.
func newJobStore(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.JobStore {
	retention := time.Duration(cfg.Sync.JobRetentionMinutes) * time.Minute
	memory := jobs.NewMemoryJobStore(retention)
	if redisClient == nil {
		return memory
	}
	return jobs.NewFailoverJobStore(jobs.NewRedisJobStore(redisClient, retention), memory, logger)
}

func subscribeSyncEvents(bus *events.EventBus, engine *calendar.Engine, trigger *worker.SyncWorker, logger *zerolog.Logger) {
	syncTask := func(event *events.Event) error {
		payload, err := events.TaskPayloadFrom(event)
		if err != nil {
			return err
		}
		_, err = trigger.SyncTaskNow(context.Background(), payload.TaskID, payload.UserID)
		return err
	}
	bus.Subscribe(events.EventTaskCreated, syncTask)
	bus.Subscribe(events.EventTaskUpdated, syncTask)

	bus.Subscribe(events.EventTaskDeleted, func(event *events.Event) error {
		payload, err := events.TaskPayloadFrom(event)
		if err != nil {
			return err
		}
		trigger.RemoveEventAsync(payload.UserID, payload.EventID)
		return nil
	})

	bus.Subscribe(events.EventCalendarLinked, func(event *events.Event) error {
		payload, err := events.AccountPayloadFrom(event)
		if err != nil {
			return err
		}
		jobID, err := trigger.StartBulkSync(context.Background(), payload.UserID)
		if err != nil {
			logger.Error().Err(err).Int64("user_id", payload.UserID).Msg("initial bulk sync failed to start")
			return err
		}
		logger.Info().Int64("user_id", payload.UserID).Str("job_id", jobID).Msg("initial bulk sync started")
		return nil
	})

	bus.Subscribe(events.EventCalendarUnlinked, func(event *events.Event) error {
		payload, err := events.AccountPayloadFrom(event)
		if err != nil {
			return err
		}
		return engine.HandleUnlink(context.Background(), payload.UserID)
	})
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serveHTTP(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("sync server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("sync server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
