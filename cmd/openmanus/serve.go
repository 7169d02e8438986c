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

	"github.com/LedMarketing/OpenManus/api"
	"github.com/LedMarketing/OpenManus/cache"
	"github.com/LedMarketing/OpenManus/config"
	"github.com/LedMarketing/OpenManus/history"
	"github.com/LedMarketing/OpenManus/llm"
	"github.com/LedMarketing/OpenManus/ratelimit"
	"github.com/LedMarketing/OpenManus/scraper"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log, os.Stdout)
	slog.Info("openmanus starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"model", cfg.LLM.Model,
	)

	// ── 3. Scraping stack ───────────────────────────────────────────
	// The browser launches on the first advanced scrape, not here.
	session := scraper.NewSession(cfg.Browser, cfg.Fetch.UserAgent)
	defer session.Close()

	ai := llm.NewClient(cfg.LLM)
	if !ai.Configured() {
		slog.Warn("no LLM API key configured; chat and generation endpoints will fail")
	}

	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Close()

	dispatcher := scraper.NewDispatcher(scraper.NewFetcher(cfg.Fetch), session, ai, cc)

	// ── 4. Request gate and chat history ────────────────────────────
	gate := ratelimit.NewFixedWindow(cfg.RateLimit.Points, cfg.RateLimit.Window)
	defer gate.Close()

	store := history.NewStore(cfg.History.MaxSessions, history.DefaultCapacity)

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(api.Services{
		Assistant:  ai,
		Dispatcher: dispatcher,
		Browser:    session,
		History:    store,
		Gate:       gate,
		StartTime:  time.Now(),
	}, cfg)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Deferred closes stop the browser and the sweeper goroutines.
	slog.Info("openmanus stopped")
	return nil
}
