/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the reward engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load the TOML config file, then apply command-line overrides
  2. Initialize SQLite store
  3. Load the rule catalog (file, stored copy, or built-in defaults)
  4. Create API handler and router
  5. Start the statement scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config   TOML config file (default: rewards.toml, optional)
  -port     HTTP server port, overrides ListenAddress
  -db       SQLite database path, overrides DatabasePath
            Use ":memory:" for in-memory database
  -catalog  Catalog file (.json, .yaml, .yml), overrides CatalogPath

CATALOG RESOLUTION:
  1. CatalogPath, when set
  2. The catalog stored under "default" in the database
  3. The built-in catalog (rules 1-7), which is then stored

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -config=./rewards.toml
  ./server -db=":memory:" -port=3000
  ./server -catalog=./catalogs/coffee.yaml

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/rewards-engine/api"
	"github.com/warp/rewards-engine/config"
	"github.com/warp/rewards-engine/factory"
	"github.com/warp/rewards-engine/metrics"
	"github.com/warp/rewards-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "rewards.toml", "TOML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides ListenAddress)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DatabasePath)")
	catalogPath := flag.String("catalog", "", "Catalog file (overrides CatalogPath)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.ListenAddress = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	catalog, err := factory.NewCatalogFactory().Resolve(context.Background(), cfg.CatalogPath, store)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	log.Printf("Catalog %q: %d rules, programs %v", catalog.Name, catalog.Catalog.Len(), catalog.Programs.Names())

	opts := api.Options{
		DefaultStrategy: cfg.Strategy(),
		DefaultProgram:  cfg.DefaultProgram,
		SolverNodeLimit: cfg.SolverNodeLimit,
	}
	if cfg.MetricsEnabled {
		opts.Metrics = metrics.Engine()
	}
	handler := api.NewHandler(store, catalog, opts)

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	scheduler := api.NewStatementScheduler(handler)
	scheduler.Start()

	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
