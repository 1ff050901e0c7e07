package store

import "strings"

// Key layout: `<domain>:<session_id>:<artifact>`. The orchestrator writes
// under the manager domain; each worker class writes scenario results under
// its own store key prefix. The two never overlap.

const managerDomain = "manager"

// RequirementsKey is where the orchestrator persists the raw submission.
func RequirementsKey(sessionID string) string {
	return managerDomain + ":" + sessionID + ":requirements"
}

// TestPlanKey is where the orchestrator persists the decomposed plan.
func TestPlanKey(sessionID string) string {
	return managerDomain + ":" + sessionID + ":test_plan"
}

// SessionKey is where the orchestrator persists the session aggregate.
func SessionKey(sessionID string) string {
	return managerDomain + ":" + sessionID + ":session"
}

// VerificationKey is where the orchestrator persists the final verdict.
func VerificationKey(sessionID string) string {
	return managerDomain + ":" + sessionID + ":verification_result"
}

// ReportCacheKey names an assembled session report in the report cache.
// Reports are derived data; this key is never written to the store itself.
func ReportCacheKey(sessionID string) string {
	return managerDomain + ":" + sessionID + ":report"
}

// ScenarioResultKey is where a worker persists one scenario's result.
// Only the worker class owning prefix may write it.
func ScenarioResultKey(prefix, sessionID, scenarioID string) string {
	return prefix + ":" + sessionID + ":" + scenarioID
}

// ManagerPrefix is the scan prefix covering every orchestrator-owned key.
func ManagerPrefix() string {
	return managerDomain + ":"
}

// SessionIDFromKey extracts the session id from a manager session key.
// It returns false for any other key shape.
func SessionIDFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, managerDomain+":")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, ":session")
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}
