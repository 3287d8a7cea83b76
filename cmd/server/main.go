/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the lease settlement server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the zap logger
  3. Initialize SQLite store
  4. Create API handler and router
  5. Start the settlement scheduler (when enabled)
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config     YAML configuration file (optional)
  -port       HTTP server port, overrides server.port
  -db         SQLite database path, overrides database.path
              Use ":memory:" for in-memory database
  -log-level  debug, info, warn or error, overrides logging.level
  -scheduler  Enable the settlement scheduler, overrides scheduler.enabled

ENVIRONMENT:
  LEASE_* variables, see config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler, letting a running pass finish
  2. Stop accepting new connections
  3. Wait for active requests to complete (server.shutdown_timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/lease.db"
  ./server -config=lease.yml -log-level=debug
  LEASE_SCHEDULER_ENABLED=true ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Periodic settlement
  - config/config.go: Configuration keys and defaults
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/warp/lease-settlement/api"
	"github.com/warp/lease-settlement/config"
	"github.com/warp/lease-settlement/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	scheduler := flag.Bool("scheduler", false, "Enable the settlement scheduler (overrides config)")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		conf.Server.Port = *port
	}
	if *dbPath != "" {
		conf.Database.Path = *dbPath
	}
	if *scheduler {
		conf.Scheduler.Enabled = true
	}
	if err := conf.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(conf, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(conf *config.Configuration, logger *zap.Logger) error {
	// Initialize store
	store, err := sqlite.New(conf.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	loc, err := conf.Billing.Location()
	if err != nil {
		return err
	}
	logger.Info("billing clock", zap.String("timezone", loc.String()))

	handler := api.NewHandler(store, logger, conf.Billing.DefaultCurrency(), loc)
	router := api.NewRouter(handler, conf.CORS.AllowedOrigins)

	if conf.Scheduler.Enabled {
		rs, err := api.NewSettlementScheduler(handler.Settlement, conf.Scheduler.Spec, logger)
		if err != nil {
			return err
		}
		rs.Start()
		defer rs.Stop()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", conf.Server.Port),
		Handler:      router,
		ReadTimeout:  conf.Server.ReadTimeout,
		WriteTimeout: conf.Server.WriteTimeout,
		IdleTimeout:  conf.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", conf.Server.Port),
			zap.String("database", conf.Database.Path),
			zap.Bool("scheduler", conf.Scheduler.Enabled))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
