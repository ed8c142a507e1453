package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridemeter/internal/app"
	"ridemeter/internal/clock"
	"ridemeter/internal/config"
	"ridemeter/internal/handler"
	"ridemeter/internal/logger"
	"ridemeter/internal/money"
	ridemeterredis "ridemeter/internal/redis"
	"ridemeter/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	log := logger.New("ridemeter", cfg.Log.Level)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warn("failed to initialize New Relic", "error", err)
		} else {
			log.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
			defer nrApp.Shutdown(5 * time.Second)
		}
	}

	var db *sql.DB
	if app.NeedsDatabase(cfg) {
		var err error
		db, err = app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			return err
		}
		defer db.Close()
		log.Info("connected to PostgreSQL")
	}

	// Redis backs the session store by default and always provides the
	// sync lock and idempotency cache when reachable.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		if cfg.Store.Backend == config.StoreRedis {
			return err
		}
		log.Warn("redis unavailable; sync lock and idempotency disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Info("connected to Redis")
	}

	store, err := app.NewDurableStore(cfg.Store, db, redisClient)
	if err != nil {
		return err
	}

	transport, closeTransport, err := app.NewSyncTransport(cfg, db, log)
	if err != nil {
		return err
	}
	defer closeTransport()

	rate, err := money.ParseRate(cfg.Billing.PricePerSecond)
	if err != nil {
		return err
	}

	clk := clock.System{}
	registry, err := service.NewSessionRegistry(service.RegistryDeps{
		Store:     store,
		Transport: transport,
		Clock:     clk,
		Billing: service.BillingConfig{
			FreeWaitingSeconds: cfg.Billing.FreeWaitingSeconds,
			PricePerSecond:     rate,
			Currency:           cfg.Billing.Currency,
		},
		Presentation: service.Presentation{ButtonsSwapped: cfg.View.ButtonsSwapped},
		Notifier:     service.NewNotificationService(clk, log),
		Logger:       log,
	})
	if err != nil {
		return err
	}

	server := wireServer(cfg, registry, redisClient, nrApp, log)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if transport != nil {
		var locker ridemeterredis.SyncLocker
		if redisClient != nil {
			locker = ridemeterredis.NewLockStore(redisClient)
		}
		scheduler := service.NewSyncScheduler(registry, locker, cfg.Sync.Interval, cfg.Sync.LockTTL, nrApp, log)
		go scheduler.RunScheduler(runCtx)
		log.Info("backend sync scheduled", "transport", cfg.Sync.Transport, "interval", cfg.Sync.Interval)
	}

	// Start server in goroutine.
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Server.Port, "store", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown.
	select {
	case err := <-serveErr:
		return err
	case <-runCtx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info("server exited")
	return nil
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	cfg *config.Config,
	registry *service.SessionRegistry,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	log *slog.Logger,
) *http.Server {
	receiptService := service.NewReceiptService(clock.System{})

	deps := app.RouterDeps{
		SessionHandler: handler.NewSessionHandler(registry, cfg.View.TickInterval, log),
		BillingHandler: handler.NewBillingHandler(registry, receiptService),
		NewRelicApp:    nrApp,
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		Logger:         log,
	}
	if redisClient != nil {
		deps.RedisClient = redisClient
	}
	if len(deps.JWTSecret) == 0 {
		log.Warn("AUTH_JWT_SECRET is empty; driver routes are unauthenticated")
	}

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
