package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Strob0t/TestForge/internal/config"
	"github.com/Strob0t/TestForge/internal/port/provider"
)

var _ provider.Provider = (*Anthropic)(nil)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
)

// Anthropic is an api-key-header REST provider for the Anthropic
// Messages API.
type Anthropic struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewAnthropic builds a provider from its config entry.
func NewAnthropic(cfg config.ProviderConfig, log *slog.Logger) *Anthropic {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &Anthropic{
		name:    cfg.Name,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: chatTimeout},
		log:     log,
	}
}

// Name implements provider.Provider.
func (p *Anthropic) Name() string { return p.name }

// --- Messages API wire types ---

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// toAnthropicRequest translates the gateway envelope: system messages
// move into the top-level system field, temperature is capped at 1
// (the Messages API rejects larger values), and max_tokens is
// mandatory so a zero budget gets the default.
func toAnthropicRequest(req provider.ChatRequest) anthropicRequest {
	wire := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if wire.MaxTokens <= 0 {
		wire.MaxTokens = anthropicMaxTokens
	}
	if wire.Temperature > 1 {
		wire.Temperature = 1
	}
	for _, m := range req.Messages {
		if m.Role == provider.RoleSystem {
			wire.System = m.Content
			continue
		}
		wire.Messages = append(wire.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return wire
}

// ChatCompletion implements provider.Provider.
func (p *Anthropic) ChatCompletion(ctx context.Context, req provider.ChatRequest) (*provider.Completion, error) {
	if req.Model == "" {
		req.Model = p.model
	}

	body, err := json.Marshal(toAnthropicRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}

	respBody, err := doJSONRequest(ctx, p.client, p.name, p.baseURL+"/v1/messages", body, headers)
	if err != nil {
		return nil, err
	}

	var antResp anthropicResponse
	if err := json.Unmarshal(respBody, &antResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	var content strings.Builder
	for _, block := range antResp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	comp := &provider.Completion{
		Content: content.String(),
		Model:   antResp.Model,
		Usage: provider.Usage{
			PromptTokens:     antResp.Usage.InputTokens,
			CompletionTokens: antResp.Usage.OutputTokens,
			TotalTokens:      antResp.Usage.InputTokens + antResp.Usage.OutputTokens,
		},
		Provider: p.name,
	}
	logChatCompleted(p.log, p.name, comp)
	return comp, nil
}

// TestConnection lists models as a cheap authenticated round trip.
func (p *Anthropic) TestConnection(ctx context.Context) error {
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
	return doProbe(ctx, p.client, p.baseURL+"/v1/models", headers)
}
