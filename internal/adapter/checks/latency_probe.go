package checks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/TestForge/internal/port/check"
)

const (
	defaultSamples   = 5
	defaultBudgetMS  = 1000
	maxProbeBodyRead = 4096
)

// latencyProbe fetches the target N times ("samples") and scores the
// fraction of samples inside the latency budget ("max_latency_ms").
// A sample that fails outright counts as over budget; only a fully
// unreachable target is an execution error.
type latencyProbe struct {
	client *http.Client
}

func newLatencyProbe(deps check.Deps) (check.Check, error) {
	return &latencyProbe{client: httpClient(deps)}, nil
}

func (c *latencyProbe) Name() string { return "latency_probe" }

func (c *latencyProbe) Run(ctx context.Context, in check.Input) (check.ScoreResult, error) {
	if in.TargetURL == "" {
		return check.ScoreResult{}, fmt.Errorf("latency_probe: no target url")
	}

	samples := configInt(in.Scenario.Config, "samples", defaultSamples)
	budget := time.Duration(configInt(in.Scenario.Config, "max_latency_ms", defaultBudgetMS)) * time.Millisecond

	var (
		within  int
		errored int
		total   time.Duration
		issues  []string
	)
	for i := range samples {
		elapsed, err := c.sample(ctx, in.TargetURL)
		if err != nil {
			errored++
			issues = append(issues, fmt.Sprintf("sample %d: %v", i+1, err))
			continue
		}
		total += elapsed
		if elapsed <= budget {
			within++
		} else {
			issues = append(issues, fmt.Sprintf("sample %d: %dms over %dms budget",
				i+1, elapsed.Milliseconds(), budget.Milliseconds()))
		}
	}

	if errored == samples {
		return check.ScoreResult{}, fmt.Errorf("latency_probe: all %d samples failed", samples)
	}

	measured := samples - errored
	avg := total / time.Duration(measured)
	return check.ScoreResult{
		Score: float64(within) / float64(samples),
		Detail: fmt.Sprintf("avg %dms over %d samples (budget %dms)",
			avg.Milliseconds(), samples, budget.Milliseconds()),
		Issues: issues,
	}, nil
}

func (c *latencyProbe) sample(ctx context.Context, url string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start)
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBodyRead))
	_ = resp.Body.Close()

	if resp.StatusCode >= 500 {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}
	return elapsed, nil
}
