// CrisisCore coordination server. Ingests multi-source disaster signals,
// maintains the live situation graph, and serves the operator dashboard over
// HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/crisiscore-hq/crisiscore/pkg/analyzer"
	"github.com/crisiscore-hq/crisiscore/pkg/api"
	"github.com/crisiscore-hq/crisiscore/pkg/broadcast"
	"github.com/crisiscore-hq/crisiscore/pkg/config"
	"github.com/crisiscore-hq/crisiscore/pkg/coordinator"
	"github.com/crisiscore-hq/crisiscore/pkg/copilot"
	"github.com/crisiscore-hq/crisiscore/pkg/oracle"
	"github.com/crisiscore-hq/crisiscore/pkg/voice"
)

func main() {
	// Load .env when present; containerized deploys set real env vars.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting CrisisCore", "http_port", cfg.HTTPPort)

	ctx := context.Background()

	// 1. Gemini oracle. Without a key every analyzer runs on its
	// deterministic fallback, which is enough for the scripted demo.
	var llm analyzer.Oracle
	if cfg.GeminiAPIKey != "" {
		gemini, err := oracle.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := gemini.Close(); err != nil {
				slog.Error("Error closing Gemini client", "error", err)
			}
		}()
		llm = gemini
	} else {
		slog.Warn("GEMINI_API_KEY not set, analyzers run on deterministic fallbacks")
	}

	// 2. Broadcast hub and coordinator.
	hub := broadcast.NewHub()
	coord := coordinator.New(cfg, llm, hub, nil)
	defer coord.Shutdown()

	// 3. Operator co-pilot and voice briefings.
	cop := copilot.New(llm, coord.Graph())
	synth := voice.NewSynthesizer(cfg.ElevenLabsAPIKey)
	if !synth.Configured() {
		slog.Warn("ELEVENLABS_API_KEY not set, speech synthesis disabled")
	}
	reporter := voice.NewReporter(llm, coord.Graph())

	// 4. HTTP server.
	server := api.NewServer(cfg, coord, cop, synth, reporter, hub)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("CrisisCore started successfully")

	// 5. Wait for shutdown signal or server error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 6. Graceful shutdown: stop the replay driver, then drain HTTP.
	coord.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
