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

	"sparkboard/internal/api"
	"sparkboard/internal/config"
	"sparkboard/internal/discovery"
	"sparkboard/internal/logging"
	"sparkboard/internal/services/collaboration"
	"sparkboard/internal/telemetry"

	"golang.org/x/sync/errgroup"
)

/*
LEARNING: GRACEFUL SHUTDOWN PATTERN WITH OBSERVABILITY

This main function demonstrates:
1. Service initialization and dependency injection
2. Running the hub loop and the HTTP server side by side in an errgroup
3. Distributed tracing with Jaeger
4. Graceful shutdown on SIGINT/SIGTERM
5. Cleanup in reverse order of construction
*/

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	defer closeLog.Close()
	slog.SetDefault(logger)

	logger.Info("🚀 Starting Sparkboard relay...")

	// Initialize Jaeger tracing
	// Learning: Do this FIRST so all operations are traced
	jaegerShutdown, err := telemetry.InitJaeger("sparkboard", cfg.JaegerEndpoint, logger)
	if err != nil {
		logger.Warn("⚠️  Failed to initialize Jaeger (continuing without tracing)", "error", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			logger.Warn("⚠️  Failed to shutdown Jaeger", "error", err)
		}
	}()

	var (
		metrics        *telemetry.Metrics
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		registry := telemetry.NewRegistry()
		metrics = telemetry.NewMetrics(registry)
		metricsHandler = telemetry.Handler(registry)
		logger.Info("✓ Prometheus metrics enabled")
	}

	// The hub owns every session; nothing else touches the registry.
	hub := collaboration.NewHub(collaboration.HubConfigFromConfig(cfg, metrics, logger))

	wsHandler := collaboration.NewWebSocketHandler(hub, collaboration.TransportConfig{
		AllowedOrigin:   cfg.AllowedOrigin,
		MaxMessageBytes: int64(cfg.MaxMessageBytes),
		SendBufferSize:  cfg.SendBufferSize,
	}, logger)

	handler := api.NewHandler(hub, cfg.PublicURL, logger)
	router := api.SetupRoutes(handler, api.RouterConfig{
		WebSocket:     wsHandler,
		Metrics:       metricsHandler,
		AllowedOrigin: cfg.AllowedOrigin,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.MDNSEnabled {
		mdnsServer, err := discovery.Advertise(cfg.MDNSInstance, cfg.Port())
		if err != nil {
			logger.Warn("⚠️  mDNS advertisement failed (continuing without discovery)", "error", err)
		} else {
			logger.Info("✓ Advertising on the LAN", "service", discovery.ServiceType, "instance", cfg.MDNSInstance)
			defer mdnsServer.Shutdown()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("🌐 Server listening", "addr", "http://"+cfg.Addr())
		logger.Info("📚 Endpoints",
			"create", "POST /api/sessions",
			"get", "GET /api/sessions/{id}",
			"replace", "PUT /api/sessions/{id}/elements",
			"export", "GET /api/sessions/{id}/export.pdf",
			"health", "GET /api/health",
			"ws", "GET /ws",
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Wait for a signal (or a failed component), then drain.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("🛑 Shutting down server...")

		// Learning: Give in-flight HTTP requests 30 seconds to finish
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("⚠️  Server forced to shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("✓ Server shutdown complete")
	return nil
}
