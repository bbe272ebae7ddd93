// StatusPulse server — turns streamed reasoning text into short
// user-facing status lines, delivered over SSE.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/statuspulse/statuspulse/pkg/api"
	"github.com/statuspulse/statuspulse/pkg/config"
	"github.com/statuspulse/statuspulse/pkg/events"
	"github.com/statuspulse/statuspulse/pkg/llm"
	"github.com/statuspulse/statuspulse/pkg/reasoning"
	"github.com/statuspulse/statuspulse/pkg/session"
	"github.com/statuspulse/statuspulse/pkg/store"
	"github.com/statuspulse/statuspulse/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	dbPath := flag.String("db-path",
		getEnv("DB_PATH", "./statuspulse.db"),
		"Path to the event database")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting StatusPulse",
		"version", version.Full(), "config_dir", *configDir, "db_path", *dbPath)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Event store
	eventStore, err := store.NewStore(ctx, *dbPath)
	if err != nil {
		slog.Error("Failed to open event store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := eventStore.Close(); err != nil {
			slog.Error("Error closing event store", "error", err)
		}
	}()
	slog.Info("Event store ready", "path", *dbPath)

	// 3. LLM client (optional; nil runs every stream fallback-only)
	var statusClient reasoning.StatusClient
	if cfg.LLM != nil {
		client, err := llm.NewClient(llm.ClientConfig{
			Provider:    cfg.LLM.Provider,
			Model:       cfg.LLM.Model,
			APIKey:      os.Getenv(cfg.LLM.APIKeyEnv),
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		if err != nil {
			slog.Error("Failed to initialize LLM client", "error", err)
			os.Exit(1)
		}
		statusClient = client
		slog.Info("LLM client initialized",
			"provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}

	// 4. Stream infrastructure
	manager := session.NewManager()
	broadcaster := events.NewBroadcaster()
	httpServer := api.NewServer(cfg, manager, broadcaster, eventStore, statusClient)

	reaper := session.NewReaper(manager,
		cfg.Server.StreamTTL, cfg.Server.ReapInterval, httpServer.HandleReap)
	reaper.Start(ctx)
	defer reaper.Stop()

	// 5. Retention pruning loop
	pruneCtx, prunesCancel := context.WithCancel(ctx)
	defer prunesCancel()
	go runRetention(pruneCtx, eventStore,
		cfg.Server.EventRetention, cfg.Server.CleanupInterval)

	// 6. Run the HTTP server until a shutdown signal arrives
	serveCtx, serveCancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		slog.Info("Shutdown signal received", "signal", sig)
		serveCancel()
	}()

	if err := httpServer.Start(serveCtx); err != nil {
		slog.Error("HTTP server error", "error", err)
		os.Exit(1)
	}

	slog.Info("StatusPulse stopped")
}

// runRetention prunes expired events on an interval until ctx is done.
func runRetention(ctx context.Context, eventStore *store.Store, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := eventStore.PruneBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				slog.Error("Retention: event pruning failed", "error", err)
				continue
			}
			if count > 0 {
				slog.Info("Retention: pruned expired events", "count", count)
			}
		}
	}
}
