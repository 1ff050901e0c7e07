package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Strob0t/TestForge/internal/port/provider"
)

// maxResponseBody caps what we read from provider APIs.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// doJSONRequest performs a JSON POST and returns the response body.
// Non-200 statuses become a structured provider.Error carrying the
// status line and the raw body as detail.
func doJSONRequest(ctx context.Context, client *http.Client, providerName, url string, body []byte, headers map[string]string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &provider.Error{
			Provider: providerName,
			Message:  fmt.Sprintf("API error %d", httpResp.StatusCode),
			Detail:   string(respBody),
		}
	}

	return respBody, nil
}

// doProbe performs a GET and reports reachability. The body is
// discarded; any non-2xx status is a failure.
func doProbe(ctx context.Context, client *http.Client, url string, headers map[string]string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, 4096))

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return fmt.Errorf("probe status %d", httpResp.StatusCode)
	}
	return nil
}

// logChatCompleted logs the standard debug line after a successful chat.
func logChatCompleted(log *slog.Logger, providerName string, comp *provider.Completion) {
	log.Debug("chat completed",
		"provider", providerName,
		"model", comp.Model,
		"tokens", comp.Usage.TotalTokens,
	)
}
