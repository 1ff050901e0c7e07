package checks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/TestForge/internal/port/check"
)

// httpProbe hits the target URL once and scores availability: full
// marks for a success status, partial for client errors (the target
// is up but the scenario path is broken), zero for server errors.
type httpProbe struct {
	client *http.Client
}

func newHTTPProbe(deps check.Deps) (check.Check, error) {
	return &httpProbe{client: httpClient(deps)}, nil
}

func (c *httpProbe) Name() string { return "http_probe" }

func (c *httpProbe) Run(ctx context.Context, in check.Input) (check.ScoreResult, error) {
	if in.TargetURL == "" {
		return check.ScoreResult{}, fmt.Errorf("http_probe: no target url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.TargetURL, nil)
	if err != nil {
		return check.ScoreResult{}, fmt.Errorf("http_probe: create request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return check.ScoreResult{}, fmt.Errorf("http_probe: %w", err)
	}
	elapsed := time.Since(start)
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	result := check.ScoreResult{
		Detail: fmt.Sprintf("status %d in %dms", resp.StatusCode, elapsed.Milliseconds()),
	}
	switch {
	case resp.StatusCode >= 500:
		result.Score = 0
		result.Issues = append(result.Issues, fmt.Sprintf("server error: status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		result.Score = 0.3
		result.Issues = append(result.Issues, fmt.Sprintf("client error: status %d", resp.StatusCode))
	default:
		result.Score = 1
	}
	return result, nil
}
