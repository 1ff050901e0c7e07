package llm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/TestForge/internal/config"
	"github.com/Strob0t/TestForge/internal/port/provider"
)

var _ provider.Provider = (*Ollama)(nil)

// Local models load lazily, so the first chat can take much longer
// than a hosted API call.
const ollamaChatTimeout = 5 * time.Minute

// Ollama talks to a local Ollama daemon. Chat goes through the
// daemon's OpenAI-compatible endpoint; the connectivity probe uses
// the native API. No authentication.
type Ollama struct {
	inner   *OpenAI
	baseURL string
	client  *http.Client
}

// NewOllama builds a provider from its config entry.
func NewOllama(cfg config.ProviderConfig, log *slog.Logger) *Ollama {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	client := &http.Client{Timeout: ollamaChatTimeout}
	return &Ollama{
		inner: &OpenAI{
			name:    cfg.Name,
			model:   cfg.Model,
			baseURL: baseURL,
			client:  client,
			log:     log,
		},
		baseURL: baseURL,
		client:  client,
	}
}

// Name implements provider.Provider.
func (p *Ollama) Name() string { return p.inner.Name() }

// ChatCompletion implements provider.Provider.
func (p *Ollama) ChatCompletion(ctx context.Context, req provider.ChatRequest) (*provider.Completion, error) {
	return p.inner.ChatCompletion(ctx, req)
}

// TestConnection lists local models, which proves the daemon is up.
func (p *Ollama) TestConnection(ctx context.Context) error {
	return doProbe(ctx, p.client, p.baseURL+"/api/tags", nil)
}
