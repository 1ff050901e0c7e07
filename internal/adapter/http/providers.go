package http

import (
	"net/http"

	"github.com/Strob0t/TestForge/internal/port/provider"
)

// providerInfo is the list-view projection of one configured provider.
type providerInfo struct {
	Name         string `json:"name"`
	BreakerState string `json:"breaker_state"`
	Primary      bool   `json:"primary"`
}

// ListProviders handles GET /api/v1/providers
func (h *Handlers) ListProviders(w http.ResponseWriter, _ *http.Request) {
	states := h.Gateway.BreakerStates()
	primary := h.Gateway.Primary()

	providers := make([]providerInfo, 0, len(states))
	for _, name := range h.Gateway.Names() {
		providers = append(providers, providerInfo{
			Name:         name,
			BreakerState: states[name],
			Primary:      name == primary,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"primary":   primary,
		"providers": providers,
	})
}

// TestProvider handles POST /api/v1/providers/{name}/test
func (h *Handlers) TestProvider(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	healthy := h.Gateway.TestConnection(r.Context(), name)

	status := http.StatusOK
	if !healthy {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{
		"provider": name,
		"healthy":  healthy,
	})
}

// chatRequest is the chat passthrough body: a standard chat request plus
// an optional provider override. An empty provider means the configured
// primary.
type chatRequest struct {
	Provider string `json:"provider"`
	provider.ChatRequest
}

// Chat handles POST /api/v1/chat. The response body is always the provider
// envelope; transport status mirrors envelope success so plain HTTP clients
// can branch without parsing.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chatRequest](w, r)
	if !ok {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages is required")
		return
	}

	completion, err := h.Gateway.ChatCompletion(r.Context(), req.ChatRequest, req.Provider)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, provider.FailureEnvelope(err))
		return
	}
	writeJSON(w, http.StatusOK, provider.SuccessEnvelope(completion))
}
