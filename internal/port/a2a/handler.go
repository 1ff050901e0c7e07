package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/TestForge/internal/domain"
	"github.com/Strob0t/TestForge/internal/domain/requirements"
	"github.com/Strob0t/TestForge/internal/domain/session"
)

// SessionRunner is the orchestrator surface the A2A handler drives.
type SessionRunner interface {
	ProcessRequirements(ctx context.Context, req requirements.Requirements) (*session.Session, error)
	Session(ctx context.Context, sessionID string) (*session.Session, error)
}

// Handler serves the A2A protocol endpoints. Task state is not stored
// separately: each accepted task maps onto one session, and task status is
// derived from that session on every poll.
type Handler struct {
	baseURL string
	runner  SessionRunner

	mu       sync.RWMutex
	sessions map[string]string // task id -> session id
}

// NewHandler creates an A2A handler.
func NewHandler(baseURL string, runner SessionRunner) *Handler {
	return &Handler{
		baseURL:  baseURL,
		runner:   runner,
		sessions: make(map[string]string),
	}
}

// MountRoutes registers A2A routes on the given chi router.
// These are mounted at the root level, not under /api/v1.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/.well-known/agent.json", h.handleAgentCard)
	r.Post("/a2a/tasks", h.handleCreateTask)
	r.Get("/a2a/tasks/{id}", h.handleGetTask)
}

func (h *Handler) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	card := BuildAgentCard(h.baseURL)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(card)
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeA2AError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeA2AError(w, http.StatusBadRequest, "id is required")
		return
	}
	if req.Skill != "" && req.Skill != SkillRunQASession {
		writeA2AError(w, http.StatusBadRequest, "unknown skill: "+req.Skill)
		return
	}

	h.mu.RLock()
	_, exists := h.sessions[req.ID]
	h.mu.RUnlock()
	if exists {
		writeA2AError(w, http.StatusConflict, "task already exists")
		return
	}

	submission := requirements.Requirements{
		Text:          inputString(req.Input, "text"),
		Category:      inputString(req.Input, "category"),
		BusinessGoals: inputString(req.Input, "business_goals"),
		TargetURL:     inputString(req.Input, "target_url"),
	}

	sess, err := h.runner.ProcessRequirements(r.Context(), submission)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrValidation) {
			status = http.StatusBadRequest
		}
		slog.Warn("a2a task rejected", "id", req.ID, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(TaskResponse{
			ID:     req.ID,
			Status: "failed",
			Error:  err.Error(),
		})
		return
	}

	h.mu.Lock()
	h.sessions[req.ID] = sess.ID
	h.mu.Unlock()

	slog.Info("a2a task accepted", "id", req.ID, "session_id", sess.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(h.taskResponse(req.ID, sess))
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.RLock()
	sessionID, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		writeA2AError(w, http.StatusNotFound, "task not found")
		return
	}

	sess, err := h.runner.Session(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeA2AError(w, http.StatusNotFound, "task not found")
			return
		}
		slog.Error("a2a task lookup failed", "id", id, "error", err)
		writeA2AError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.taskResponse(id, sess))
}

// taskResponse projects a session onto the A2A task shape.
func (h *Handler) taskResponse(taskID string, sess *session.Session) TaskResponse {
	resp := TaskResponse{
		ID:     taskID,
		Status: taskStatus(sess.DeriveStatus()),
		Output: map[string]any{
			"session_id": sess.ID,
			"scenarios":  len(sess.Scenarios),
		},
	}
	if sess.Verification != nil {
		resp.Output["overall_score"] = sess.Verification.OverallScore
		resp.Output["confidence"] = string(sess.Verification.ConfidenceLevel)
		resp.Output["pass_rate"] = sess.Verification.PassRate
	}
	return resp
}

// taskStatus maps the derived session status onto the A2A task vocabulary.
func taskStatus(s session.Status) string {
	switch s {
	case session.StatusPendingRequirements, session.StatusPlanning:
		return "queued"
	case session.StatusCompleted:
		return "completed"
	default:
		return "running"
	}
}

func inputString(input map[string]any, key string) string {
	if input == nil {
		return ""
	}
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

func writeA2AError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
