package workqueue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Strob0t/TestForge/internal/domain/scenario"
)

// WorkItem is the schema for every queue payload: the delegation envelope
// the orchestrator enqueues and a worker dequeues.
type WorkItem struct {
	SessionID string            `json:"session_id"`
	Scenario  scenario.Scenario `json:"scenario"`
	Timestamp time.Time         `json:"timestamp"`
}

var ErrSessionIDRequired = errors.New("work item session_id is required")

// DecodeWorkItem parses and validates a queue payload. Malformed work is
// rejected here at the boundary, before any business logic runs.
func DecodeWorkItem(data []byte) (*WorkItem, error) {
	if !json.Valid(data) {
		return nil, errors.New("work item is not valid JSON")
	}
	var item WorkItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("work item schema: %w", err)
	}
	if item.SessionID == "" {
		return nil, ErrSessionIDRequired
	}
	if err := item.Scenario.Validate(); err != nil {
		return nil, fmt.Errorf("work item scenario: %w", err)
	}
	return &item, nil
}
