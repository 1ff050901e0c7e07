package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Strob0t/TestForge/internal/adapter/llm"
	"github.com/Strob0t/TestForge/internal/adapter/ws"
	"github.com/Strob0t/TestForge/internal/domain/requirements"
	"github.com/Strob0t/TestForge/internal/port/store"
	"github.com/Strob0t/TestForge/internal/port/workqueue"
	"github.com/Strob0t/TestForge/internal/registry"
	"github.com/Strob0t/TestForge/internal/service"
)

// Version is reported by the health and version endpoints.
const Version = "0.1.0"

// readyProbeTimeout bounds dependency pings inside the readiness probe so a
// hung dependency cannot stall the probe itself.
const readyProbeTimeout = 5 * time.Second

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Orchestrator *service.OrchestratorService
	Gateway      *llm.Gateway
	Registry     *registry.Registry
	Artifacts    store.Store
	Queue        workqueue.Queue
	Hub          *ws.Hub

	// ChatLimiter, when set, wraps the chat endpoint only. Provider calls
	// are the expensive path; the rest of the API stays unthrottled.
	ChatLimiter func(http.Handler) http.Handler
}

// CreateSession handles POST /api/v1/sessions
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[requirements.Requirements](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Text, "text") {
		return
	}

	sess, err := h.Orchestrator.ProcessRequirements(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "session creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// ListSessions handles GET /api/v1/sessions
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Orchestrator.Sessions(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if sessions == nil {
		sessions = []service.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// GetSession handles GET /api/v1/sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	sess, err := h.Orchestrator.Session(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// GetSessionReport handles GET /api/v1/sessions/{id}/report
func (h *Handlers) GetSessionReport(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	report, err := h.Orchestrator.Report(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// DelegateScenario handles POST /api/v1/sessions/{id}/scenarios/{scenarioID}/delegate
func (h *Handlers) DelegateScenario(w http.ResponseWriter, r *http.Request) {
	sessionID := urlParam(r, "id")
	scenarioID := urlParam(r, "scenarioID")

	if err := h.Orchestrator.DelegateScenario(r.Context(), sessionID, scenarioID); err != nil {
		writeDomainError(w, err, "scenario not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"session_id":  sessionID,
		"scenario_id": scenarioID,
		"status":      "delegated",
	})
}

// ListAgents handles GET /api/v1/agents
func (h *Handlers) ListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agents":  h.Registry.Agents(),
		"default": h.Registry.Default().Key,
	})
}

// healthStatus is the liveness payload.
type healthStatus struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	Connections int    `json:"ws_connections"`
}

// Health handles GET /health. It always answers 200; readiness is the
// stricter probe.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	status := healthStatus{
		Status:  "ok",
		Service: "testforge",
		Version: Version,
	}
	if h.Hub != nil {
		status.Connections = h.Hub.ConnectionCount()
	}
	writeJSON(w, http.StatusOK, status)
}

// Ready handles GET /health/ready. It reports 503 until the artifact
// store answers a ping and the queue connection is up.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
	defer cancel()

	checks := map[string]string{
		"store": "ok",
		"queue": "ok",
	}
	ready := true

	if h.Artifacts == nil {
		checks["store"] = "not configured"
		ready = false
	} else if err := h.Artifacts.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		ready = false
	}

	if h.Queue == nil || !h.Queue.IsConnected() {
		checks["queue"] = "disconnected"
		ready = false
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}
	writeJSON(w, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}
