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

	"arealead_backend/internal/billing"
	"arealead_backend/internal/events"
	"arealead_backend/internal/geo"
	apphttp "arealead_backend/internal/http"
	"arealead_backend/internal/http/router"
	"arealead_backend/internal/leads"
	"arealead_backend/internal/notification"
	"arealead_backend/internal/scheduler"
	"arealead_backend/migrations"
	"arealead_backend/platform/config"
	"arealead_backend/platform/db"
	"arealead_backend/platform/logger"
	"arealead_backend/platform/validator"

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
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
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

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	billingModule := billing.NewModule(pool)

	leadsModule := leads.NewModule(pool, eventBus, billingModule.Repository(), val, cfg, log)

	// Notification module subscribes to the lead lifecycle events
	notificationModule := notification.New(pool, log)
	notificationModule.Subscribe(eventBus)
	defer notificationModule.Close()

	geoModule := geo.NewModule(cfg, log)

	// Startup sweep hook: stale claims left over from downtime are released
	// before traffic arrives. When redis is configured the sweep goes through
	// the queue so only one instance runs it; otherwise it runs inline.
	if cfg.GetRedisURL() != "" {
		sweepClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize sweep client", "error", err)
		} else {
			defer func() { _ = sweepClient.Close() }()
			if err := sweepClient.EnqueueSweep(ctx, "api-startup"); err != nil {
				log.Warn("failed to enqueue startup sweep", "error", err)
			}
		}
	} else {
		released, err := leadsModule.Sweeper().Sweep(ctx)
		if err != nil {
			log.Warn("startup sweep failed", "error", err)
		} else {
			log.Info("startup sweep complete", "released", released)
		}
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
			leadsModule,
			notificationModule,
			billingModule,
			geoModule,
		},
	}

	engine := router.New(app)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
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

	return errors.New(name + ": " + lastErr.Error())
}
