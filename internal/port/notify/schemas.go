package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Strob0t/TestForge/internal/domain/scenario"
)

// Notification is the wire message from worker back to orchestrator. Field
// names are a cross-process contract; existing deployments parse them.
type Notification struct {
	Agent      string           `json:"agent"`
	SessionID  string           `json:"session_id"`
	ScenarioID string           `json:"scenario_id"`
	Status     scenario.Status  `json:"status"`
	Result     *scenario.Result `json:"result,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

var (
	ErrAgentRequired      = errors.New("notification agent is required")
	ErrSessionIDRequired  = errors.New("notification session_id is required")
	ErrScenarioIDRequired = errors.New("notification scenario_id is required")
	ErrInvalidStatus      = errors.New("notification status must be completed or failed")
)

// DecodeNotification parses and validates a channel payload. Workers only
// ever announce terminal outcomes, so the status must be completed or
// failed.
func DecodeNotification(data []byte) (*Notification, error) {
	if !json.Valid(data) {
		return nil, errors.New("notification is not valid JSON")
	}
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("notification schema: %w", err)
	}
	if n.Agent == "" {
		return nil, ErrAgentRequired
	}
	if n.SessionID == "" {
		return nil, ErrSessionIDRequired
	}
	if n.ScenarioID == "" {
		return nil, ErrScenarioIDRequired
	}
	if !n.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidStatus, n.Status)
	}
	return &n, nil
}
