package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldservice_backend/internal/adapters/storage"
	"fieldservice_backend/internal/dayplans"
	"fieldservice_backend/internal/events"
	apphttp "fieldservice_backend/internal/http"
	"fieldservice_backend/internal/http/router"
	"fieldservice_backend/internal/jobs"
	"fieldservice_backend/internal/kits"
	kitsrepo "fieldservice_backend/internal/kits/repository"
	"fieldservice_backend/internal/routing"
	"fieldservice_backend/internal/scheduler"
	"fieldservice_backend/internal/verification"
	"fieldservice_backend/platform/config"
	"fieldservice_backend/platform/db"
	"fieldservice_backend/platform/logger"
	"fieldservice_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
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

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Storage service for verification photo evidence (MinIO)
	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	photoBucket := cfg.GetMinioBucketVerificationPhotos()
	if err := withRetry(ctx, log, "ensure verification-photos bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, photoBucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", photoBucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "verificationPhotosBucket", photoBucket)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	jobsRepo := jobs.New(pool)
	kitsRepo := kitsrepo.New(pool)
	routeOptimizer := routing.NewService(cfg, log)
	if routeOptimizer.Enabled() {
		log.Info("remote route optimizer configured", "url", cfg.GetRouteOptimizerURL())
	} else {
		log.Info("remote route optimizer not configured; using offline heuristic")
	}

	dayPlansModule := dayplans.NewModule(pool, val, jobsRepo, routeOptimizer, eventBus, log)
	kitsModule := kits.NewModule(pool, val, jobsRepo, eventBus)
	verificationModule := verification.NewModule(ctx, pool, val, cfg, storageSvc, photoBucket, kitsRepo, eventBus, log)

	// Background re-optimization rides the asynq queue when Redis is up;
	// without it, completed stops simply wait for a manual optimize call.
	reoptimizeClient, closeScheduler := initReoptimizeScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
		dayPlansModule.Service.SetReoptimizer(reoptimizeClient)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			dayPlansModule,
			kitsModule,
			verificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initReoptimizeScheduler(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; automatic route re-optimization disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
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

	return errors.New(name + ": " + lastErr.Error())
}
