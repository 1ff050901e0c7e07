// Package check defines the pluggable check port (interface) and its
// registry. A check is one leaf function in a worker's battery: it probes
// the target and returns a partial score, a detail line, and any issues it
// found. Check failures are isolated by the worker runtime; a check can
// error freely without aborting the scenario.
package check

import (
	"context"
	"net/http"

	"github.com/Strob0t/TestForge/internal/domain/scenario"
	"github.com/Strob0t/TestForge/internal/port/provider"
)

// Input carries everything a check may need for one run. Scenario.Config
// holds per-scenario parameters (expected fragments, sample counts,
// latency budgets).
type Input struct {
	SessionID    string
	Scenario     scenario.Scenario
	TargetURL    string
	Requirements string
}

// ScoreResult is one check's contribution to a scenario result.
type ScoreResult struct {
	Score  float64
	Detail string
	Issues []string
}

// Check is the capability interface every battery member implements.
type Check interface {
	// Name returns the unique identifier for this check (e.g. "http_probe").
	Name() string

	// Run executes the check against the input's target.
	Run(ctx context.Context, in Input) (ScoreResult, error)
}

// ChatClient is the slice of the provider gateway judge-style checks use.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req provider.ChatRequest, providerName string) (*provider.Completion, error)
}

// Deps carries the shared clients check factories may capture. Nil fields
// are allowed; factories needing an absent dependency must fail.
type Deps struct {
	Chat       ChatClient
	HTTPClient *http.Client
}
