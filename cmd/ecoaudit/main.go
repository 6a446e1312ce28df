package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecoaudit/scanner/api"
	"github.com/ecoaudit/scanner/api/handler"
	"github.com/ecoaudit/scanner/cache"
	"github.com/ecoaudit/scanner/config"
	"github.com/ecoaudit/scanner/interceptor"
	"github.com/ecoaudit/scanner/scraper"
	"github.com/ecoaudit/scanner/store"
	"github.com/ecoaudit/scanner/webhook"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	closeLog := initLogger(cfg.Log)
	defer closeLog()
	slog.Info("ecoaudit starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Launch the browser pool ──────────────────────────────────
	engine := interceptor.New(slog.Default().With("component", "interceptor"))
	sc, err := scraper.New(cfg.Browser, cfg.Scan, engine)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}
	defer sc.Close()

	// ── 4. Open scan history (optional) ─────────────────────────────
	var history handler.History
	if cfg.Store.DSN != "" {
		st, err := store.Open(cfg.Store.DSN)
		if err != nil {
			slog.Error("failed to open scan history", "dsn", cfg.Store.DSN, "error", err)
			os.Exit(1)
		}
		defer st.Close()
		history = st
	} else {
		slog.Info("scan history disabled")
	}

	// ── 5. Cache, batches, router ───────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Close()

	notifier := webhook.NewNotifier()
	batches := handler.NewBatches(ctx, sc, history, notifier)

	router := api.NewRouter(ctx, cfg, api.Deps{
		Scanner: sc,
		History: history,
		Cache:   cc,
		Batches: batches,
	}, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		slog.Error("HTTP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	batches.Wait()
	notifier.Wait()
	slog.Info("ecoaudit stopped")
}

// initLogger configures slog from cfg. The returned func closes the log file.
func initLogger(cfg config.LogConfig) func() {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	closer := func() {}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closer = func() { _ = rotator.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}

	slog.SetDefault(slog.New(h))
	return closer
}
