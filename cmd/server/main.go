package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/driftbyte/snapharbor/internal/api"
	"github.com/driftbyte/snapharbor/internal/api/handlers"
	"github.com/driftbyte/snapharbor/internal/config"
	"github.com/driftbyte/snapharbor/internal/database"
	"github.com/driftbyte/snapharbor/internal/holds"
	"github.com/driftbyte/snapharbor/internal/logging"
	"github.com/driftbyte/snapharbor/internal/maintenance"
	"github.com/driftbyte/snapharbor/internal/preflight"
	"github.com/driftbyte/snapharbor/internal/restore"
	"github.com/driftbyte/snapharbor/internal/upstream"
	"github.com/driftbyte/snapharbor/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	if err := setupLogging(cfg); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Close()

	// Check if running migrations
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrations(cfg)
		return
	}

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations automatically
	log.Println("Running database migrations...")
	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed successfully")

	store := database.NewStore(db)
	activityLogger := logging.NewActivityLogger(db.DB)

	// Initialize the backup-server client
	upstreamTimeout, err := cfg.UpstreamTimeout()
	if err != nil {
		log.Fatalf("Invalid upstream timeout: %v", err)
	}
	backupAPI := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIToken, upstreamTimeout)

	// Initialize WebSocket hub
	log.Println("Initializing WebSocket hub...")
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Warm the legal-hold cache; a cold start is tolerable, the maintenance
	// runner refreshes it periodically.
	gate := holds.NewGate(backupAPI)
	warmCtx, warmCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := gate.Refresh(warmCtx); err != nil {
		log.Printf("Legal hold cache warm-up failed: %v", err)
	}
	warmCancel()

	// Initialize the restore workflow service
	pollInterval, err := cfg.PollInterval()
	if err != nil {
		log.Fatalf("Invalid poll interval: %v", err)
	}
	dispatcher := restore.NewDispatcher(backupAPI, hub, store, pollInterval)
	dispatcher.ResumeActive()
	defer dispatcher.StopAll()

	manager := restore.NewManager()
	compare := restore.NewCompareRegistry()

	var targetPreflight handlers.TargetPreflight
	if cfg.Restore.PreflightEnabled {
		targetPreflight = preflight.NewChecker(upstreamTimeout)
	}

	// Start the maintenance scheduler
	sessionTTL, err := cfg.SessionTTL()
	if err != nil {
		log.Fatalf("Invalid session TTL: %v", err)
	}
	chores := maintenance.NewRunner(maintenance.Options{
		Sessions:   manager,
		SessionTTL: sessionTTL,
		Holds:      gate,
		Activity:   activityLogger,
	})
	if err := chores.Start(); err != nil {
		log.Fatalf("Failed to start maintenance scheduler: %v", err)
	}
	defer chores.Stop()

	log.Println("All console components initialized successfully")

	// Set up HTTP server
	router := api.SetupRouter(cfg, store, backupAPI, gate, manager, dispatcher, compare, activityLogger, hub, targetPreflight)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", server.Addr)

		if cfg.Server.TLS.Enabled {
			if err := server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start HTTPS server: %v", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start HTTP server: %v", err)
			}
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Stop progress pollers; journaled jobs resume on next start
	dispatcher.StopAll()
	chores.Stop()

	log.Println("Server exited")
}

func setupLogging(cfg *config.Config) error {
	if cfg != nil && strings.TrimSpace(cfg.Logging.File) != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return err
		}
	}
	_, err := logging.Init(cfg.Logging)
	return err
}

func runMigrations(cfg *config.Config) {
	log.Println("Running database migrations...")

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully")
}
