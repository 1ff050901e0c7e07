// Package scenario defines the test-scenario domain entity and its result types.
package scenario

import (
	"time"

	"github.com/Strob0t/TestForge/internal/domain/agent"
)

// Status represents the lifecycle state of a scenario within a session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true if the scenario is in a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Scenario is one unit of test work. Each scenario belongs to exactly one
// session and carries a routing hint (AssignedTo) plus a complexity tag
// (Priority) used for default routing when the hint does not resolve.
type Scenario struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Priority   agent.Tier        `json:"priority"`
	AssignedTo string            `json:"assigned_to,omitempty"`
	Config     map[string]string `json:"config,omitempty"`
}

// CheckResult is the outcome of one check in a worker's battery.
// A check that errored is recorded with Score 0 and the error text,
// never dropped from the list.
type CheckResult struct {
	Name     string   `json:"name"`
	Score    float64  `json:"score"`
	Detail   string   `json:"detail,omitempty"`
	Issues   []string `json:"issues,omitempty"`
	Error    string   `json:"error,omitempty"`
	Duration int64    `json:"duration_ms"`
}

// Result is the aggregate outcome of one scenario execution. Workers build
// it from scratch on every delivery; it is never mutated incrementally.
type Result struct {
	ScenarioID   string        `json:"scenario_id"`
	ScenarioName string        `json:"scenario_name"`
	Agent        string        `json:"agent"`
	Category     string        `json:"category"`
	Status       Status        `json:"status"`
	OverallScore float64       `json:"overall_score"`
	Checks       []CheckResult `json:"checks"`
	Issues       []string      `json:"issues"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  time.Time     `json:"completed_at"`
}
