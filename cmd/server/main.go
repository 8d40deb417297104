/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ACTUS contract engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize logger
  3. Initialize SQLite store
  4. Build the engine, ledger and scheduler; restore live contracts
  5. Start the cron tick driver
  6. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port         HTTP server port (default: 8080, env PORT)
  -db           SQLite database path (default: actus.db, env DB_PATH)
                Use ":memory:" for in-memory database
  -env          development or production (env APP_ENV)
  -log-level    debug, info, warn or error (env LOG_LEVEL)
  -tick         cron schedule for ticks, "" disables (env TICK_SCHEDULE)
  -parallelism  contracts per tick in parallel (env TICK_PARALLELISM)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the tick driver, waiting for a running tick
  2. Stop accepting new connections
  3. Wait for active requests to complete (SHUTDOWN_TIMEOUT, 30s)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/actus.db"

  # Run with in-memory database, ticking every 10 seconds
  ./server -db=":memory:" -tick="@every 10s"

  # Manual ticks only
  ./server -tick=""

SEE ALSO:
  - config/config.go: Settings and environment variables
  - api/server.go: Router configuration
  - api/driver.go: Cron tick driver
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"go.uber.org/zap"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/api"
	"github.com/warp/actus-engine/config"
	"github.com/warp/actus-engine/factory"
	"github.com/warp/actus-engine/logger"
	"github.com/warp/actus-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(2)
	}

	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	log := logger.Get()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Engine, ledger and scheduler
	metrics := api.NewMetrics()
	scheduler := actus.NewScheduler(factory.NewEngine(), store, store, actus.NewLedger(store), log.Named("scheduler"))
	scheduler.Metrics = metrics
	scheduler.Parallelism = cfg.TickParallelism

	// Load existing contracts into the heap
	if err := scheduler.Restore(context.Background()); err != nil {
		return fmt.Errorf("failed to restore contracts: %w", err)
	}

	driver := api.NewTickDriver(scheduler, cfg.TickSchedule, log.Named("driver"))
	driver.Timeout = cfg.TickTimeout
	if err := driver.Start(); err != nil {
		return err
	}
	defer driver.Stop()

	handler := api.NewHandler(scheduler, store, driver, log.Named("api"))
	router := api.NewRouter(handler, api.RouterOptions{CORSOrigins: cfg.CORSOrigins, Metrics: metrics})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath),
			zap.String("tick_schedule", cfg.TickSchedule),
			zap.Int("live_contracts", scheduler.Live()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	driver.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
