package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/TestForge/internal/domain"
	"github.com/Strob0t/TestForge/internal/domain/requirements"
	"github.com/Strob0t/TestForge/internal/domain/scenario"
	"github.com/Strob0t/TestForge/internal/domain/session"
	"github.com/Strob0t/TestForge/internal/domain/verification"
)

// fakeRunner implements SessionRunner over a session map.
type fakeRunner struct {
	sessions map[string]*session.Session
	next     int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{sessions: make(map[string]*session.Session)}
}

func (f *fakeRunner) ProcessRequirements(_ context.Context, req requirements.Requirements) (*session.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	f.next++
	sess := &session.Session{
		ID:           fmt.Sprintf("sess-%d", f.next),
		Requirements: req,
		Plan: &session.TestPlan{
			Scenarios: []scenario.Scenario{{ID: "s1", Name: "smoke"}},
			Source:    "catalog",
		},
		Scenarios: map[string]session.ScenarioState{
			"s1": {Status: scenario.StatusInProgress},
		},
	}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeRunner) Session(_ context.Context, id string) (*session.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	return sess, nil
}

func newTestRouter() (*chi.Mux, *fakeRunner) {
	runner := newFakeRunner()
	h := NewHandler("http://localhost:8080", runner)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, runner
}

func TestAgentCard(t *testing.T) {
	r, _ := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent.json", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var card AgentCard
	if err := json.NewDecoder(w.Body).Decode(&card); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if card.Name != "TestForge" {
		t.Fatalf("expected name TestForge, got %s", card.Name)
	}
	if len(card.Skills) != 1 || card.Skills[0].ID != SkillRunQASession {
		t.Fatalf("expected %s skill, got %+v", SkillRunQASession, card.Skills)
	}
}

func TestCreateAndGetTask(t *testing.T) {
	r, runner := newTestRouter()

	// Create task
	body := `{"id":"test-1","skill":"run_qa_session","input":{"text":"login page must load","category":"web_app"}}`
	req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp TaskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "running" {
		t.Fatalf("expected running, got %s", resp.Status)
	}
	if resp.Output["session_id"] != "sess-1" {
		t.Fatalf("expected session_id in output, got %+v", resp.Output)
	}

	// Get task
	req2 := httptest.NewRequest(http.MethodGet, "/a2a/tasks/test-1", http.NoBody)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)

	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w2.Code)
	}

	// Complete the session; the next poll must report completion.
	sess := runner.sessions["sess-1"]
	sess.Scenarios["s1"] = session.ScenarioState{Status: scenario.StatusCompleted}
	sess.Verification = &verification.Result{
		OverallScore:    0.85,
		ConfidenceLevel: verification.ConfidenceHigh,
		PassRate:        1,
	}

	req3 := httptest.NewRequest(http.MethodGet, "/a2a/tasks/test-1", http.NoBody)
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, req3)

	var done TaskResponse
	if err := json.NewDecoder(w3.Body).Decode(&done); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if done.Status != "completed" {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.Output["overall_score"] != 0.85 {
		t.Fatalf("expected overall_score 0.85, got %v", done.Output["overall_score"])
	}
}

func TestCreateTaskValidationError(t *testing.T) {
	r, _ := newTestRouter()

	// Empty requirements text is a validation error, reported as a failed task.
	body := `{"id":"test-1","skill":"run_qa_session","input":{}}`
	req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var resp TaskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "failed" || resp.Error == "" {
		t.Fatalf("expected failed task with error, got %+v", resp)
	}
}

func TestCreateTaskUnknownSkill(t *testing.T) {
	r, _ := newTestRouter()

	body := `{"id":"test-1","skill":"write-code","input":{"text":"x"}}`
	req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateTaskDuplicateID(t *testing.T) {
	r, _ := newTestRouter()

	body := `{"id":"test-1","skill":"run_qa_session","input":{"text":"x"}}`
	req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(body))
	req2.Header.Set("Content-Type", "application/json")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w2.Code)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	r, _ := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/a2a/tasks/nonexistent", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateTaskInvalidBody(t *testing.T) {
	r, _ := newTestRouter()
	req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString("not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateTaskMissingID(t *testing.T) {
	r, _ := newTestRouter()
	body := `{"skill":"run_qa_session"}`
	req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
