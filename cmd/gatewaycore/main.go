// Command gatewaycore runs the query orchestration core behind a thin HTTP
// front door. It wires every component (C1–C12) from internal/ and exposes
// a single POST /api/chat endpoint plus /healthz and /metrics.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	_ "github.com/lib/pq" // postgres driver

	"github.com/nlanalytics/gatewaycore/internal/api"
	"github.com/nlanalytics/gatewaycore/internal/clock"
	"github.com/nlanalytics/gatewaycore/internal/config"
	"github.com/nlanalytics/gatewaycore/internal/datasource"
	"github.com/nlanalytics/gatewaycore/internal/dedup"
	"github.com/nlanalytics/gatewaycore/internal/domain"
	"github.com/nlanalytics/gatewaycore/internal/executor"
	"github.com/nlanalytics/gatewaycore/internal/multistep"
	"github.com/nlanalytics/gatewaycore/internal/orchestrator"
	"github.com/nlanalytics/gatewaycore/internal/pool"
	"github.com/nlanalytics/gatewaycore/internal/prompt"
	"github.com/nlanalytics/gatewaycore/internal/quality"
	"github.com/nlanalytics/gatewaycore/internal/ratelimit"
	"github.com/nlanalytics/gatewaycore/internal/responsevalidate"
	"github.com/nlanalytics/gatewaycore/internal/store"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// ── Database ──────────────────────────────────────────────────────────────
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	logger.Info("database connected")

	convStore := store.New(db)
	sourceStore := store.NewDataSourceStore(db)

	// ── Connection pool registry (C1) ────────────────────────────────────────
	pools := pool.New(logger)
	defer pools.CloseAll()

	// ── Prompt service (C5) ───────────────────────────────────────────────────
	// Anthropic is primary. DeepSeek is the fallback when DEEPSEEK_API_KEY is
	// also set.
	var promptSvc domain.PromptService = prompt.NewAnthropicService(cfg.AnthropicAPIKey, anthropic.Model(cfg.AnthropicModel))
	if cfg.DeepSeekAPIKey != "" {
		secondary := prompt.NewDeepSeekService(cfg.DeepSeekAPIKey, cfg.DeepSeekModel)
		promptSvc = prompt.NewFallbackService(promptSvc, secondary, logger)
		logger.Info("prompt: using Anthropic with DeepSeek fallback")
	} else {
		logger.Info("prompt: using Anthropic only")
	}

	// ── Remaining components (C2, C4, C6–C11) ────────────────────────────────
	resolver := datasource.New(sourceStore, pools)
	exec := executor.New(sourceStore, pools)
	qualityAnalyzer := quality.New()
	responseValidator := responsevalidate.New()
	planner := multistep.New(promptSvc)

	realClock := clock.Real{}
	dedupCache := dedup.New(realClock)
	limiter := ratelimit.New(realClock)

	// ── Orchestrator (C12) ────────────────────────────────────────────────────
	orc := orchestrator.New(
		limiter,
		resolver,
		promptSvc,
		exec,
		qualityAnalyzer,
		responseValidator,
		planner,
		dedupCache,
		convStore,
		realClock,
		logger,
	)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(orc, api.Config{Env: cfg.Env}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool backing the conversation transcript and
// data-source stores, and verifies it is reachable before proceeding.
func openDB(dsn string) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}
