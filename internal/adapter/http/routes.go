package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	// Health probes (outside auth)
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"` + Version + `"}`))
		})

		// Sessions
		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions", h.ListSessions)
		r.Get("/sessions/{id}", h.GetSession)
		r.Get("/sessions/{id}/report", h.GetSessionReport)
		r.Post("/sessions/{id}/scenarios/{scenarioID}/delegate", h.DelegateScenario)

		// Agent registry
		r.Get("/agents", h.ListAgents)

		// Model providers
		r.Get("/providers", h.ListProviders)
		r.Post("/providers/{name}/test", h.TestProvider)
		if h.ChatLimiter != nil {
			r.With(h.ChatLimiter).Post("/chat", h.Chat)
		} else {
			r.Post("/chat", h.Chat)
		}
	})
}
