// Package llm implements the model provider gateway: config-driven
// provider construction and primary/fallback failover for chat
// completions. Providers are addressed by configured name; every
// chat call runs behind that provider's circuit breaker.
package llm

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	tfotel "github.com/Strob0t/TestForge/internal/adapter/otel"
	"github.com/Strob0t/TestForge/internal/config"
	"github.com/Strob0t/TestForge/internal/port/provider"
	"github.com/Strob0t/TestForge/internal/resilience"
)

const probeTimeout = 5 * time.Second

// connectionTester is the optional cheap-probe side of a provider.
type connectionTester interface {
	TestConnection(ctx context.Context) error
}

// Gateway routes chat requests to named providers with failover.
type Gateway struct {
	providers map[string]provider.Provider
	breakers  map[string]*resilience.Breaker
	primary   string
	fallbacks []string
	log       *slog.Logger
	metrics   *tfotel.Metrics
}

// NewGateway builds the provider map from configuration. An entry
// with an unknown type is logged and omitted; it does not abort
// startup the way a broken routing table does.
func NewGateway(cfg config.Providers, brk config.Breaker, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	g := &Gateway{
		providers: make(map[string]provider.Provider),
		breakers:  make(map[string]*resilience.Breaker),
		primary:   cfg.Primary,
		fallbacks: append([]string(nil), cfg.Fallbacks...),
		log:       log,
	}

	for _, pc := range cfg.Configs {
		var p provider.Provider
		switch pc.Type {
		case "openai":
			p = NewOpenAI(pc, log)
		case "anthropic":
			p = NewAnthropic(pc, log)
		case "ollama":
			p = NewOllama(pc, log)
		default:
			log.Error("unknown provider type, skipping",
				"provider", pc.Name, "type", pc.Type)
			continue
		}
		g.providers[pc.Name] = p
		g.breakers[pc.Name] = resilience.NewNamedBreaker(pc.Name, brk.MaxFailures, brk.Timeout, log)
	}

	return g
}

// SetMetrics enables metric recording. Without it the gateway runs unmetered.
func (g *Gateway) SetMetrics(m *tfotel.Metrics) {
	g.metrics = m
}

// ChatCompletion resolves the target provider (explicit name, or the
// configured primary when empty) and performs the chat call. On
// failure it walks the configured fallback list in declared order,
// skipping the provider already tried; the first success is returned
// annotated with the fallback's name. If every provider fails, the
// last failure is returned as-is.
func (g *Gateway) ChatCompletion(ctx context.Context, req provider.ChatRequest, providerName string) (*provider.Completion, error) {
	target := providerName
	if target == "" {
		target = g.primary
	}

	comp, err := g.call(ctx, target, req)
	if err == nil {
		return comp, nil
	}
	lastErr := err
	g.log.Warn("provider failed, trying fallbacks", "provider", target, "error", err)

	for _, name := range g.fallbacks {
		if name == target {
			continue
		}
		comp, err = g.call(ctx, name, req)
		if err == nil {
			comp.FallbackUsed = name
			g.log.Info("fallback succeeded", "provider", name)
			if g.metrics != nil {
				g.metrics.ProviderFallbacks.Add(ctx, 1, metric.WithAttributes(
					attribute.String("provider", name),
				))
			}
			return comp, nil
		}
		lastErr = err
		g.log.Warn("fallback failed", "provider", name, "error", err)
	}

	return nil, lastErr
}

// TestConnection reports whether the named provider answers a minimal
// round trip. Errors never propagate.
func (g *Gateway) TestConnection(ctx context.Context, name string) bool {
	p, ok := g.providers[name]
	if !ok {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if t, ok := p.(connectionTester); ok {
		if err := t.TestConnection(ctx); err != nil {
			g.log.Debug("connection test failed", "provider", name, "error", err)
			return false
		}
		return true
	}

	// No dedicated probe: fall back to a one-token chat.
	_, err := p.ChatCompletion(ctx, provider.ChatRequest{
		Messages:  []provider.Message{{Role: provider.RoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		g.log.Debug("connection test failed", "provider", name, "error", err)
	}
	return err == nil
}

// Names returns the configured provider names, sorted.
func (g *Gateway) Names() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Primary returns the configured primary provider name.
func (g *Gateway) Primary() string { return g.primary }

// BreakerStates reports each provider's circuit state.
func (g *Gateway) BreakerStates() map[string]string {
	states := make(map[string]string, len(g.breakers))
	for name, b := range g.breakers {
		states[name] = b.State()
	}
	return states
}

func (g *Gateway) call(ctx context.Context, name string, req provider.ChatRequest) (*provider.Completion, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, &provider.Error{Provider: name, Message: "unknown provider"}
	}
	if g.metrics != nil {
		g.metrics.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", name),
		))
	}

	var comp *provider.Completion
	err := g.breakers[name].Execute(func() error {
		var callErr error
		comp, callErr = p.ChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return comp, nil
}
