package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	tfhttp "github.com/Strob0t/TestForge/internal/adapter/http"
	"github.com/Strob0t/TestForge/internal/adapter/llm"
	"github.com/Strob0t/TestForge/internal/adapter/mcp"
	tfnats "github.com/Strob0t/TestForge/internal/adapter/nats"
	"github.com/Strob0t/TestForge/internal/adapter/natskv"
	"github.com/Strob0t/TestForge/internal/adapter/otel"
	"github.com/Strob0t/TestForge/internal/adapter/postgres"
	"github.com/Strob0t/TestForge/internal/adapter/ristretto"
	"github.com/Strob0t/TestForge/internal/adapter/tiered"
	"github.com/Strob0t/TestForge/internal/adapter/ws"
	"github.com/Strob0t/TestForge/internal/config"
	"github.com/Strob0t/TestForge/internal/domain/verification"
	"github.com/Strob0t/TestForge/internal/logger"
	"github.com/Strob0t/TestForge/internal/middleware"
	"github.com/Strob0t/TestForge/internal/port/a2a"
	"github.com/Strob0t/TestForge/internal/port/cache"
	"github.com/Strob0t/TestForge/internal/port/notifier"
	"github.com/Strob0t/TestForge/internal/registry"
	"github.com/Strob0t/TestForge/internal/service"
)

// reportCacheL1Expire bounds how long a report may live in process memory.
// The shared L2 TTL is the real bound; L1 just absorbs hot reads.
const reportCacheL1Expire = time.Minute

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-key" {
		if err := runHashKey(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"decompose_mode", cfg.Decompose.Mode,
		"agents", len(cfg.Routing.Agents),
	)

	// SIGHUP re-reads the config file. Only the log level is applied live;
	// everything else needs a restart.
	holder := config.NewHolder(cfg, config.DefaultConfigFile)
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := holder.Reload(); err != nil {
				slog.Warn("config reload failed", "error", err)
				continue
			}
			level := holder.Get().Logging.Level
			logger.SetLevel(level)
			slog.Info("config reloaded", "log_level", level)
		}
	}()

	ctx := context.Background()

	// --- Telemetry ---
	otelShutdown, err := otel.Setup(ctx, otel.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Insecure: cfg.Telemetry.Insecure,
		Service:  cfg.Logging.Service,
		Version:  tfhttp.Version,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	var metrics *otel.Metrics
	if cfg.Telemetry.Enabled {
		metrics, err = otel.NewMetrics()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	bus, err := tfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.WorkStream)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = bus.Close() }()
	slog.Info("nats connected", "stream", cfg.NATS.WorkStream)

	artifacts := postgres.NewStore(pool)

	// --- Report cache: in-process L1 over a shared NATS KV L2 ---
	reports, err := buildReportCache(ctx, cfg.Cache, bus)
	if err != nil {
		return fmt.Errorf("report cache: %w", err)
	}

	// --- Routing table ---
	reg, err := registry.New(registry.Options{
		Agents:       cfg.Routing.Agents,
		Aliases:      cfg.Routing.Aliases,
		TierRoutes:   cfg.Routing.Tiers,
		DefaultAgent: cfg.Routing.DefaultAgent,
	})
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	// --- Model providers ---
	gateway := llm.NewGateway(cfg.Providers, cfg.Breaker, log)
	if metrics != nil {
		gateway.SetMetrics(metrics)
	}

	// --- Services ---
	hub := ws.NewHub()

	var notifiers []notifier.Notifier
	if cfg.Notifier.Kind != "" {
		settings := make(map[string]string, len(cfg.Notifier.Settings)+1)
		for k, v := range cfg.Notifier.Settings {
			settings[k] = v
		}
		if cfg.Notifier.WebhookURL != "" {
			settings["webhook_url"] = cfg.Notifier.WebhookURL
		}
		target, err := notifier.New(cfg.Notifier.Kind, settings)
		if err != nil {
			return fmt.Errorf("notifier: %w", err)
		}
		notifiers = append(notifiers, target)
		slog.Info("notifier configured", "kind", cfg.Notifier.Kind)
	}
	events := service.NewNotificationService(hub, notifiers...)

	orch := service.NewOrchestratorService(
		artifacts,
		bus,
		bus,
		reg,
		service.NewDecomposer(cfg.Decompose, gateway),
		verification.NewEngine(cfg.Verification.Weights, cfg.Verification.RecommendationThreshold),
		events,
	)
	orch.SetReportCache(reports, cfg.Cache.L2TTL)
	if metrics != nil {
		orch.SetMetrics(metrics)
	}
	defer orch.Close()

	resumed, err := orch.ResumeSessions(ctx)
	if err != nil {
		return fmt.Errorf("resume sessions: %w", err)
	}
	if resumed > 0 {
		slog.Info("sessions resumed", "count", resumed)
	}

	// --- HTTP ---
	handlers := &tfhttp.Handlers{
		Orchestrator: orch,
		Gateway:      gateway,
		Registry:     reg,
		Artifacts:    artifacts,
		Queue:        bus,
		Hub:          hub,
	}

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 0)
		stopSweep := limiter.StartCleanup(time.Minute, 10*time.Minute)
		defer stopSweep()
		handlers.ChatLimiter = limiter.Handler
	}

	r := chi.NewRouter()
	r.Use(tfhttp.SecurityHeaders)
	r.Use(tfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(tfhttp.Logger)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if cfg.Telemetry.Enabled {
		r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(middleware.APIKeyAuth(cfg.Auth.Enabled, cfg.Auth.APIKeyHashes))
	// Shares the report cache bucket; replay entries carry their own key
	// prefix and expire on the same TTL.
	r.Use(middleware.Idempotency(reports, cfg.Cache.L2TTL))

	r.Get("/ws", hub.HandleWS)
	tfhttp.MountRoutes(r, handlers)
	a2a.NewHandler(cfg.A2A.BaseURL, orch).MountRoutes(r)

	// --- MCP ---
	if cfg.MCP.Enabled {
		mcpSrv := mcp.NewServer(mcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "testforge",
			Version: tfhttp.Version,
			APIKey:  cfg.MCP.APIKey,
		}, mcp.ServerDeps{
			Orchestrator: orch,
			Agents:       reg,
			Providers:    gateway,
		})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mcpSrv.Stop(stopCtx)
		}()
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// buildReportCache assembles the tiered report cache. A NATS KV failure is
// not fatal: reports degrade to the in-process tier alone.
func buildReportCache(ctx context.Context, cfg config.Cache, bus *tfnats.Bus) (cache.Cache, error) {
	l1, err := ristretto.New(cfg.L1MaxSizeMB * 1024 * 1024)
	if err != nil {
		return nil, fmt.Errorf("l1: %w", err)
	}

	kv, err := bus.KeyValue(ctx, cfg.L2Bucket, cfg.L2TTL)
	if err != nil {
		slog.Warn("l2 cache unavailable, running on l1 only", "bucket", cfg.L2Bucket, "error", err)
		return l1, nil
	}

	return tiered.New(l1, natskv.New(kv), reportCacheL1Expire), nil
}
