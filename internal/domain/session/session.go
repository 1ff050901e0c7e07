// Package session defines the aggregate root tracking one
// requirements-to-report lifecycle.
package session

import (
	"time"

	"github.com/Strob0t/TestForge/internal/domain/requirements"
	"github.com/Strob0t/TestForge/internal/domain/scenario"
	"github.com/Strob0t/TestForge/internal/domain/verification"
)

// Status is the derived lifecycle state of a session. It is never stored:
// DeriveStatus recomputes it on demand from the session's parts.
type Status string

const (
	StatusPendingRequirements Status = "pending_requirements"
	StatusPlanning            Status = "planning"
	StatusTestingInProgress   Status = "testing_in_progress"
	StatusCompleted           Status = "completed"
)

// TestPlan is the decomposed scenario list for a session.
type TestPlan struct {
	Scenarios []scenario.Scenario `json:"scenarios"`
	Source    string              `json:"source"`
	CreatedAt time.Time           `json:"created_at"`
}

// ScenarioState is the orchestrator's view of one scenario: its status, the
// last result carried by a notification, and when it was last updated.
// Re-delegation resets it to in_progress with a fresh timestamp.
type ScenarioState struct {
	Status    scenario.Status  `json:"status"`
	Result    *scenario.Result `json:"result,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Session is the root aggregate. Scenario result artifacts live under
// worker-owned store keys; the map here is the orchestrator's own copy,
// updated only from notifications.
type Session struct {
	ID           string                    `json:"id"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
	Requirements requirements.Requirements `json:"requirements"`
	Plan         *TestPlan                 `json:"test_plan,omitempty"`
	Scenarios    map[string]ScenarioState  `json:"scenarios"`
	Verification *verification.Result      `json:"verification_result,omitempty"`
}

// DeriveStatus computes the session status from the aggregate's parts.
func (s *Session) DeriveStatus() Status {
	return DeriveStatus(s.Plan != nil, s.Scenarios, s.Verification != nil)
}

// DeriveStatus is a pure function of (plan presence, scenario states,
// verification presence):
//
//	pending_requirements  no plan yet
//	planning              plan exists, no scenario has left pending
//	testing_in_progress   some scenario active or not all terminal
//	completed             every scenario terminal and verification present
func DeriveStatus(hasPlan bool, scenarios map[string]ScenarioState, hasVerification bool) Status {
	if !hasPlan {
		return StatusPendingRequirements
	}
	if len(scenarios) == 0 {
		return StatusPlanning
	}
	started := false
	allTerminal := true
	for _, st := range scenarios {
		if st.Status != scenario.StatusPending {
			started = true
		}
		if !st.Status.IsTerminal() {
			allTerminal = false
		}
	}
	if !started {
		return StatusPlanning
	}
	if allTerminal && hasVerification {
		return StatusCompleted
	}
	return StatusTestingInProgress
}

// AllTerminal reports whether every scenario reached a final state. It
// always walks the full map; callers must not cache or count their way to
// this answer, or duplicate and out-of-order notifications corrupt it.
func AllTerminal(scenarios map[string]ScenarioState) bool {
	if len(scenarios) == 0 {
		return false
	}
	for _, st := range scenarios {
		if !st.Status.IsTerminal() {
			return false
		}
	}
	return true
}
