package checks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Strob0t/TestForge/internal/port/check"
)

// maxScanBody bounds how much of the target page we scan.
const maxScanBody = 1 << 20 // 1 MB

// contentScan fetches the target and verifies the expected content
// fragments from scenario config ("expected_content", comma-separated)
// all appear in the body. Score is the fraction found. With no
// fragments configured it only asserts a non-empty body.
type contentScan struct {
	client *http.Client
}

func newContentScan(deps check.Deps) (check.Check, error) {
	return &contentScan{client: httpClient(deps)}, nil
}

func (c *contentScan) Name() string { return "content_scan" }

func (c *contentScan) Run(ctx context.Context, in check.Input) (check.ScoreResult, error) {
	if in.TargetURL == "" {
		return check.ScoreResult{}, fmt.Errorf("content_scan: no target url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.TargetURL, nil)
	if err != nil {
		return check.ScoreResult{}, fmt.Errorf("content_scan: create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return check.ScoreResult{}, fmt.Errorf("content_scan: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxScanBody))
	if err != nil {
		return check.ScoreResult{}, fmt.Errorf("content_scan: read body: %w", err)
	}
	body := string(raw)

	fragments := configList(in.Scenario.Config, "expected_content")
	if len(fragments) == 0 {
		if strings.TrimSpace(body) == "" {
			return check.ScoreResult{
				Score:  0,
				Detail: "empty body",
				Issues: []string{"target returned an empty body"},
			}, nil
		}
		return check.ScoreResult{Score: 1, Detail: fmt.Sprintf("body non-empty (%d bytes)", len(raw))}, nil
	}

	var found int
	var issues []string
	for _, frag := range fragments {
		if strings.Contains(body, frag) {
			found++
			continue
		}
		issues = append(issues, fmt.Sprintf("missing content: %q", frag))
	}

	return check.ScoreResult{
		Score:  float64(found) / float64(len(fragments)),
		Detail: fmt.Sprintf("%d/%d expected fragments found", found, len(fragments)),
		Issues: issues,
	}, nil
}
