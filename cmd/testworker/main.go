package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/Strob0t/TestForge/internal/adapter/checks"
	"github.com/Strob0t/TestForge/internal/adapter/llm"
	tfnats "github.com/Strob0t/TestForge/internal/adapter/nats"
	"github.com/Strob0t/TestForge/internal/adapter/otel"
	"github.com/Strob0t/TestForge/internal/adapter/postgres"
	"github.com/Strob0t/TestForge/internal/config"
	"github.com/Strob0t/TestForge/internal/logger"
	"github.com/Strob0t/TestForge/internal/port/check"
	"github.com/Strob0t/TestForge/internal/registry"
	"github.com/Strob0t/TestForge/internal/service"
)

const checkHTTPTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	agentKey := flag.String("agent", "", "agent key this worker serves (overrides worker.agent)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if *agentKey != "" {
		cfg.Worker.Agent = *agentKey
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	ctx := context.Background()

	otelShutdown, err := otel.Setup(ctx, otel.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Insecure: cfg.Telemetry.Insecure,
		Service:  cfg.Logging.Service + "-worker",
		Version:  "0.1.0",
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

	// The worker resolves its class from the same routing table the
	// orchestrator delegates against, so a key mismatch surfaces here
	// instead of as a silently idle queue.
	reg, err := registry.New(registry.Options{
		Agents:       cfg.Routing.Agents,
		Aliases:      cfg.Routing.Aliases,
		TierRoutes:   cfg.Routing.Tiers,
		DefaultAgent: cfg.Routing.DefaultAgent,
	})
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	def, ok := reg.Get(cfg.Worker.Agent)
	if !ok {
		return fmt.Errorf("unknown agent key %q", cfg.Worker.Agent)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	bus, err := tfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.WorkStream)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = bus.Close() }()

	gateway := llm.NewGateway(cfg.Providers, cfg.Breaker, log)

	worker, err := service.NewWorkerService(def, bus, postgres.NewStore(pool), bus, check.Deps{
		Chat:       gateway,
		HTTPClient: &http.Client{Timeout: checkHTTPTimeout},
	}, cfg.Worker)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	if cfg.Telemetry.Enabled {
		metrics, err := otel.NewMetrics()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		worker.SetMetrics(metrics)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return worker.Run(runCtx)
}
