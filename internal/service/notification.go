// Package service contains application services.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/TestForge/internal/domain/session"
	"github.com/Strob0t/TestForge/internal/port/broadcast"
	"github.com/Strob0t/TestForge/internal/port/notifier"
)

// Event types pushed to connected clients.
const (
	EventSessionCreated        = "session.created"
	EventScenarioDelegated     = "scenario.delegated"
	EventScenarioUpdated       = "scenario.updated"
	EventSessionCompleted      = "session.completed"
	EventVerificationCompleted = "verification.completed"
)

// SessionEventPayload is the broadcast payload for session-level events.
type SessionEventPayload struct {
	SessionID    string         `json:"session_id"`
	Status       session.Status `json:"status"`
	Scenarios    int            `json:"scenarios"`
	PlanSource   string         `json:"plan_source,omitempty"`
	OverallScore *float64       `json:"overall_score,omitempty"`
	Confidence   string         `json:"confidence,omitempty"`
}

// ScenarioEventPayload is the broadcast payload for scenario-level events.
type ScenarioEventPayload struct {
	SessionID  string         `json:"session_id"`
	ScenarioID string         `json:"scenario_id"`
	Status     string         `json:"status"`
	Agent      string         `json:"agent,omitempty"`
	Score      *float64       `json:"score,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Session    session.Status `json:"session_status"`
}

// VerificationEventPayload is the broadcast payload for the final verdict.
type VerificationEventPayload struct {
	SessionID       string   `json:"session_id"`
	OverallScore    float64  `json:"overall_score"`
	ConfidenceLevel string   `json:"confidence_level"`
	PassRate        float64  `json:"pass_rate"`
	TestCoverage    float64  `json:"test_coverage"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// NotificationService fans session events out to connected clients and
// completion verdicts out to external notifiers. Both paths are advisory:
// a failed delivery is logged and never interrupts the orchestrator.
type NotificationService struct {
	hub       broadcast.Broadcaster
	notifiers []notifier.Notifier
}

// NewNotificationService creates a NotificationService. A nil hub disables
// client broadcasts; an empty notifier list disables external delivery.
func NewNotificationService(hub broadcast.Broadcaster, notifiers ...notifier.Notifier) *NotificationService {
	return &NotificationService{hub: hub, notifiers: notifiers}
}

// SessionCreated announces a freshly planned session to connected clients.
func (s *NotificationService) SessionCreated(ctx context.Context, sess *session.Session) {
	payload := SessionEventPayload{
		SessionID: sess.ID,
		Status:    sess.DeriveStatus(),
		Scenarios: len(sess.Scenarios),
	}
	if sess.Plan != nil {
		payload.PlanSource = sess.Plan.Source
	}
	s.broadcast(ctx, EventSessionCreated, payload)
}

// ScenarioDelegated announces that a scenario was handed to a worker queue.
func (s *NotificationService) ScenarioDelegated(ctx context.Context, sess *session.Session, scenarioID, agentKey string) {
	s.broadcast(ctx, EventScenarioDelegated, s.scenarioPayload(sess, scenarioID, agentKey))
}

// ScenarioUpdated announces one scenario's state change.
func (s *NotificationService) ScenarioUpdated(ctx context.Context, sess *session.Session, scenarioID, agentKey string) {
	s.broadcast(ctx, EventScenarioUpdated, s.scenarioPayload(sess, scenarioID, agentKey))
}

func (s *NotificationService) scenarioPayload(sess *session.Session, scenarioID, agentKey string) ScenarioEventPayload {
	st := sess.Scenarios[scenarioID]
	payload := ScenarioEventPayload{
		SessionID:  sess.ID,
		ScenarioID: scenarioID,
		Status:     string(st.Status),
		Agent:      agentKey,
		UpdatedAt:  st.UpdatedAt,
		Session:    sess.DeriveStatus(),
	}
	if st.Result != nil {
		score := st.Result.OverallScore
		payload.Score = &score
	}
	return payload
}

// SessionCompleted announces the final verdict to clients and forwards a
// summary to every external notifier.
func (s *NotificationService) SessionCompleted(ctx context.Context, sess *session.Session) {
	payload := SessionEventPayload{
		SessionID: sess.ID,
		Status:    sess.DeriveStatus(),
		Scenarios: len(sess.Scenarios),
	}
	if sess.Verification != nil {
		score := sess.Verification.OverallScore
		payload.OverallScore = &score
		payload.Confidence = string(sess.Verification.ConfidenceLevel)
	}
	s.broadcast(ctx, EventSessionCompleted, payload)

	if sess.Verification == nil {
		return
	}
	v := sess.Verification
	s.broadcast(ctx, EventVerificationCompleted, VerificationEventPayload{
		SessionID:       sess.ID,
		OverallScore:    v.OverallScore,
		ConfidenceLevel: string(v.ConfidenceLevel),
		PassRate:        v.PassRate,
		TestCoverage:    v.TestCoverage,
		Recommendations: v.Recommendations,
	})
	s.Notify(ctx, notifier.Notification{
		Title: fmt.Sprintf("Test session %s completed", sess.ID),
		Message: fmt.Sprintf("Overall score %.2f (%s confidence), pass rate %.0f%%, %d scenarios.",
			v.OverallScore, v.ConfidenceLevel, v.PassRate*100, len(sess.Scenarios)),
		Level:  verdictLevel(v.OverallScore),
		Source: EventSessionCompleted,
		Fields: []notifier.Field{
			{Name: "Score", Value: fmt.Sprintf("%.2f", v.OverallScore)},
			{Name: "Confidence", Value: string(v.ConfidenceLevel)},
			{Name: "Pass rate", Value: fmt.Sprintf("%.0f%%", v.PassRate*100)},
			{Name: "Scenarios", Value: fmt.Sprintf("%d", len(sess.Scenarios))},
		},
	})
}

// Notify sends a notification to all registered notifiers.
// Errors are logged but do not interrupt delivery to other notifiers.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	for _, target := range s.notifiers {
		if err := target.Send(ctx, n); err != nil {
			slog.Warn("notification send failed",
				"notifier", target.Name(),
				"title", n.Title,
				"error", err,
			)
			continue
		}
		slog.Debug("notification sent", "notifier", target.Name(), "title", n.Title)
	}
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	return len(s.notifiers)
}

func (s *NotificationService) broadcast(ctx context.Context, eventType string, payload any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(ctx, eventType, payload)
}

// verdictLevel maps an overall score onto a notification severity.
func verdictLevel(score float64) string {
	switch {
	case score >= 0.8:
		return "success"
	case score >= 0.6:
		return "info"
	case score >= 0.4:
		return "warning"
	default:
		return "error"
	}
}
