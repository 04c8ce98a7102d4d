// Live translate server - captures a window, recognizes and translates its text, and serves the overlay
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/live-translate/internal/capture"
	"github.com/GriffinCanCode/live-translate/internal/config"
	"github.com/GriffinCanCode/live-translate/internal/grpcclient"
	"github.com/GriffinCanCode/live-translate/internal/hook"
	"github.com/GriffinCanCode/live-translate/internal/logging"
	"github.com/GriffinCanCode/live-translate/internal/orchestrator"
	"github.com/GriffinCanCode/live-translate/internal/overlay"
	"github.com/GriffinCanCode/live-translate/internal/recognition"
	"github.com/GriffinCanCode/live-translate/internal/results"
	"github.com/GriffinCanCode/live-translate/internal/server"
	"github.com/GriffinCanCode/live-translate/internal/translation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	logger.SetDefault()
	defer func() { _ = logger.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to recognition engine
	engine, err := grpcclient.New(cfg.EngineAddr)
	if err != nil {
		slog.Error("failed to connect to recognition engine", "addr", cfg.EngineAddr, "error", err)
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	healthCtx, healthCancel := context.WithTimeout(ctx, grpcclient.HealthCheckTimeout)
	if err := engine.Healthy(healthCtx); err != nil {
		slog.Warn("recognition engine not ready, continuing", "addr", cfg.EngineAddr, "error", err)
	}
	healthCancel()

	// Translation cache, optionally backed by Redis
	cacheOpts := []translation.Option{}
	if cfg.RedisAddr != "" {
		store, err := translation.NewRedisStore(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Warn("redis unavailable, using in-process cache only", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer func() { _ = store.Close() }()
			cacheOpts = append(cacheOpts, translation.WithStore(store))
		}
	}
	translator := translation.NewCache(translation.NewGoogleWeb(cfg.TranslateURL), cacheOpts...)

	platform := capture.Native()
	defer func() { _ = platform.Close() }()

	var overlayOpts []overlay.Option
	if textColor, err := overlay.ParseColor(cfg.TextColor); err == nil {
		overlayOpts = append(overlayOpts, overlay.WithTextColor(textColor))
	}
	compositor, err := overlay.NewCompositor(overlayOpts...)
	if err != nil {
		slog.Error("failed to load overlay font", "error", err)
		os.Exit(1)
	}

	var hookWorker *hook.Worker
	if cfg.HookCommand != "" {
		hookWorker = hook.NewWorker(hook.ExecInstrumenter{Command: cfg.HookCommand}, translator)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Lister:   platform,
		Capturer: capture.NewCapturer(platform.Strategies()...),
		Recognizer: recognition.NewAdapter(engine,
			recognition.WithDebugDir(cfg.DebugDir),
			recognition.WithSimilaritySkip(cfg.SkipSimilarFrames)),
		Translator: translator,
		Hook:       hookWorker,
		Results:    results.NewStore(orchestrator.ResultsMaxEntries),
		Compositor: compositor,
	}, orchestrator.NewSettings(cfg), cfg.ExportPath)

	go orch.Run(ctx)

	// Create HTTP/WebSocket server
	srv := server.New(orch)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("live translate server starting", "http", cfg.HTTPAddr, "engine", cfg.EngineAddr,
			"src", cfg.SourceLang, "dst", cfg.DestLang, "hook", cfg.HookCommand != "")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	if err := orch.Close(); err != nil {
		slog.Warn("session close", "error", err)
	}
	cancel()
	slog.Info("shutdown complete", "cached_translations", translator.Len())
}
