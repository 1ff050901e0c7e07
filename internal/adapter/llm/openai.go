package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/TestForge/internal/config"
	"github.com/Strob0t/TestForge/internal/port/provider"
)

var _ provider.Provider = (*OpenAI)(nil)

const chatTimeout = 2 * time.Minute

// OpenAI is a bearer-token REST provider for any OpenAI-compatible
// chat completions API.
type OpenAI struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewOpenAI builds a provider from its config entry.
func NewOpenAI(cfg config.ProviderConfig, log *slog.Logger) *OpenAI {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &OpenAI{
		name:    cfg.Name,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: chatTimeout},
		log:     log,
	}
}

// Name implements provider.Provider.
func (p *OpenAI) Name() string { return p.name }

// openaiResponse is the subset of the chat completions response we use.
type openaiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage provider.Usage `json:"usage"`
}

// ChatCompletion implements provider.Provider. The request envelope
// already matches the OpenAI wire shape, so it is sent as-is.
func (p *OpenAI) ChatCompletion(ctx context.Context, req provider.ChatRequest) (*provider.Completion, error) {
	if req.Model == "" {
		req.Model = p.model
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	respBody, err := doJSONRequest(ctx, p.client, p.name, p.baseURL+"/v1/chat/completions", body, headers)
	if err != nil {
		return nil, err
	}

	var oaiResp openaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, &provider.Error{Provider: p.name, Message: "empty completion"}
	}

	comp := &provider.Completion{
		Content:  oaiResp.Choices[0].Message.Content,
		Model:    oaiResp.Model,
		Usage:    oaiResp.Usage,
		Provider: p.name,
	}
	logChatCompleted(p.log, p.name, comp)
	return comp, nil
}

// TestConnection lists models as a cheap authenticated round trip.
func (p *OpenAI) TestConnection(ctx context.Context) error {
	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}
	return doProbe(ctx, p.client, p.baseURL+"/v1/models", headers)
}
