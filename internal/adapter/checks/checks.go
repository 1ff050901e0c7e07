// Package checks ships the built-in check battery: http_probe,
// content_scan, latency_probe and llm_judge. Each check is small on
// purpose; scoring nuance lives in the verification engine, not here.
package checks

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Strob0t/TestForge/internal/port/check"
)

const defaultHTTPTimeout = 30 * time.Second

// httpClient returns the shared client from deps, or a default one.
func httpClient(deps check.Deps) *http.Client {
	if deps.HTTPClient != nil {
		return deps.HTTPClient
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// configInt reads an integer scenario parameter, falling back to def
// for missing, malformed or non-positive values.
func configInt(cfg map[string]string, key string, def int) int {
	raw, ok := cfg[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// configList reads a comma-separated scenario parameter.
func configList(cfg map[string]string, key string) []string {
	raw := strings.TrimSpace(cfg[key])
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
