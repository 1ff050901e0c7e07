package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Strob0t/TestForge/internal/config"
	"github.com/Strob0t/TestForge/internal/port/provider"
	"github.com/Strob0t/TestForge/internal/resilience"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	name     string
	content  string
	err      error
	probeErr error
	calls    int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) ChatCompletion(_ context.Context, req provider.ChatRequest) (*provider.Completion, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Completion{Content: f.content, Model: req.Model, Provider: f.name}, nil
}

func (f *fakeProvider) TestConnection(context.Context) error { return f.probeErr }

// chatOnlyProvider has no dedicated connectivity probe.
type chatOnlyProvider struct {
	name string
	err  error
}

func (c *chatOnlyProvider) Name() string { return c.name }

func (c *chatOnlyProvider) ChatCompletion(context.Context, provider.ChatRequest) (*provider.Completion, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &provider.Completion{Content: "pong", Provider: c.name}, nil
}

func newTestGateway(primary string, fallbacks []string, provs ...provider.Provider) *Gateway {
	g := &Gateway{
		providers: make(map[string]provider.Provider),
		breakers:  make(map[string]*resilience.Breaker),
		primary:   primary,
		fallbacks: fallbacks,
		log:       newTestLogger(),
	}
	for _, p := range provs {
		g.providers[p.Name()] = p
		g.breakers[p.Name()] = resilience.NewBreaker(5, time.Second)
	}
	return g
}

func TestGateway_PrimarySuccess(t *testing.T) {
	primary := &fakeProvider{name: "openai", content: "hello"}
	fb := &fakeProvider{name: "anthropic", content: "fallback"}
	g := newTestGateway("openai", []string{"anthropic"}, primary, fb)

	comp, err := g.ChatCompletion(context.Background(), provider.ChatRequest{}, "")
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if comp.Content != "hello" {
		t.Errorf("content = %q", comp.Content)
	}
	if comp.FallbackUsed != "" {
		t.Errorf("FallbackUsed = %q, want empty", comp.FallbackUsed)
	}
	if fb.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fb.calls)
	}
}

func TestGateway_ExplicitProviderOverridesPrimary(t *testing.T) {
	primary := &fakeProvider{name: "openai", content: "primary"}
	other := &fakeProvider{name: "ollama", content: "local"}
	g := newTestGateway("openai", nil, primary, other)

	comp, err := g.ChatCompletion(context.Background(), provider.ChatRequest{}, "ollama")
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if comp.Content != "local" {
		t.Errorf("content = %q", comp.Content)
	}
	if primary.calls != 0 {
		t.Errorf("primary called %d times, want 0", primary.calls)
	}
}

func TestGateway_FallbackOrderAndAnnotation(t *testing.T) {
	primary := &fakeProvider{name: "openai", err: errors.New("rate limited")}
	a := &fakeProvider{name: "anthropic", err: errors.New("down")}
	b := &fakeProvider{name: "ollama", content: "rescued"}
	c := &fakeProvider{name: "backup", content: "never"}
	g := newTestGateway("openai", []string{"anthropic", "ollama", "backup"}, primary, a, b, c)

	comp, err := g.ChatCompletion(context.Background(), provider.ChatRequest{}, "")
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if comp.Content != "rescued" {
		t.Errorf("content = %q", comp.Content)
	}
	if comp.FallbackUsed != "ollama" {
		t.Errorf("FallbackUsed = %q, want ollama", comp.FallbackUsed)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("fallback calls = %d/%d, want 1/1", a.calls, b.calls)
	}
	if c.calls != 0 {
		t.Errorf("provider after first success called %d times, want 0", c.calls)
	}
}

func TestGateway_FallbackSkipsTriedPrimary(t *testing.T) {
	a := &fakeProvider{name: "anthropic", err: errors.New("down")}
	b := &fakeProvider{name: "ollama", content: "ok"}
	g := newTestGateway("anthropic", []string{"anthropic", "ollama"}, a, b)

	comp, err := g.ChatCompletion(context.Background(), provider.ChatRequest{}, "")
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if a.calls != 1 {
		t.Errorf("primary retried via fallback list: %d calls, want 1", a.calls)
	}
	if comp.FallbackUsed != "ollama" {
		t.Errorf("FallbackUsed = %q", comp.FallbackUsed)
	}
}

func TestGateway_AllFailReturnsLastError(t *testing.T) {
	primaryErr := errors.New("primary down")
	lastErr := errors.New("last fallback down")
	primary := &fakeProvider{name: "openai", err: primaryErr}
	a := &fakeProvider{name: "anthropic", err: errors.New("middle down")}
	b := &fakeProvider{name: "ollama", err: lastErr}
	g := newTestGateway("openai", []string{"anthropic", "ollama"}, primary, a, b)

	_, err := g.ChatCompletion(context.Background(), provider.ChatRequest{}, "")
	if !errors.Is(err, lastErr) {
		t.Fatalf("err = %v, want last failure %v", err, lastErr)
	}
}

func TestGateway_UnknownExplicitProviderFallsBack(t *testing.T) {
	fb := &fakeProvider{name: "ollama", content: "rescued"}
	g := newTestGateway("openai", []string{"ollama"}, fb)

	comp, err := g.ChatCompletion(context.Background(), provider.ChatRequest{}, "ghost")
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if comp.FallbackUsed != "ollama" {
		t.Errorf("FallbackUsed = %q", comp.FallbackUsed)
	}
}

func TestGateway_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	primary := &fakeProvider{name: "openai", err: errors.New("down")}
	g := newTestGateway("openai", nil, primary)
	g.breakers["openai"] = resilience.NewBreaker(2, time.Minute)

	ctx := context.Background()
	for range 2 {
		if _, err := g.ChatCompletion(ctx, provider.ChatRequest{}, ""); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := g.ChatCompletion(ctx, provider.ChatRequest{}, "")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if primary.calls != 2 {
		t.Errorf("provider called %d times, want 2 (breaker short-circuits)", primary.calls)
	}
}

func TestGateway_TestConnection(t *testing.T) {
	ok := &fakeProvider{name: "openai"}
	bad := &fakeProvider{name: "anthropic", probeErr: errors.New("unreachable")}
	chatOnly := &chatOnlyProvider{name: "custom"}
	g := newTestGateway("openai", nil, ok, bad, chatOnly)

	ctx := context.Background()
	if !g.TestConnection(ctx, "openai") {
		t.Error("expected true for healthy provider")
	}
	if g.TestConnection(ctx, "anthropic") {
		t.Error("expected false for failing probe")
	}
	if g.TestConnection(ctx, "ghost") {
		t.Error("expected false for unknown provider")
	}
	if !g.TestConnection(ctx, "custom") {
		t.Error("expected true via chat fallback probe")
	}
}

func TestNewGateway_UnknownTypeOmitted(t *testing.T) {
	g := NewGateway(config.Providers{
		Primary:   "openai",
		Fallbacks: []string{"ollama"},
		Configs: []config.ProviderConfig{
			{Name: "openai", Type: "openai", Model: "gpt-4o-mini"},
			{Name: "oracle", Type: "quantum", Model: "q1"},
			{Name: "ollama", Type: "ollama", Model: "llama3.1"},
		},
	}, config.Breaker{MaxFailures: 5, Timeout: 30 * time.Second}, newTestLogger())

	names := g.Names()
	want := []string{"ollama", "openai"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
	if g.Primary() != "openai" {
		t.Errorf("Primary = %q", g.Primary())
	}

	states := g.BreakerStates()
	if states["openai"] != "closed" {
		t.Errorf("breaker state = %q, want closed", states["openai"])
	}
	if _, ok := states["oracle"]; ok {
		t.Error("omitted provider should have no breaker")
	}
}
