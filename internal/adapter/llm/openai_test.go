package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Strob0t/TestForge/internal/config"
	"github.com/Strob0t/TestForge/internal/port/provider"
)

func TestOpenAIChatCompletion(t *testing.T) {
	var gotReq provider.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected auth: %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "all good"}},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
		})
	}))
	defer srv.Close()

	p := NewOpenAI(config.ProviderConfig{
		Name: "openai", BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-4o-mini",
	}, newTestLogger())

	comp, err := p.ChatCompletion(context.Background(), provider.ChatRequest{
		Messages:    []provider.Message{{Role: provider.RoleUser, Content: "check the login page"}},
		Temperature: 0.2,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}

	if comp.Content != "all good" {
		t.Errorf("content = %q", comp.Content)
	}
	if comp.Provider != "openai" {
		t.Errorf("provider = %q", comp.Provider)
	}
	if comp.Usage.TotalTokens != 16 {
		t.Errorf("total tokens = %d", comp.Usage.TotalTokens)
	}

	// Empty model falls back to the configured one on the wire.
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("wire model = %q", gotReq.Model)
	}
	if gotReq.MaxTokens != 256 {
		t.Errorf("wire max_tokens = %d", gotReq.MaxTokens)
	}
}

func TestOpenAIHTTPErrorIsStructured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	p := NewOpenAI(config.ProviderConfig{Name: "openai", BaseURL: srv.URL, APIKey: "bad"}, newTestLogger())

	_, err := p.ChatCompletion(context.Background(), provider.ChatRequest{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var perr *provider.Error
	if !errors.As(err, &perr) {
		t.Fatalf("err = %T, want *provider.Error", err)
	}
	if perr.Message != "API error 401" {
		t.Errorf("message = %q", perr.Message)
	}
	if !strings.Contains(perr.Detail, "invalid api key") {
		t.Errorf("detail = %q", perr.Detail)
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","model":"gpt-4o-mini","choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(config.ProviderConfig{Name: "openai", BaseURL: srv.URL}, newTestLogger())

	_, err := p.ChatCompletion(context.Background(), provider.ChatRequest{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAITestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(config.ProviderConfig{Name: "openai", BaseURL: srv.URL, APIKey: "sk-test"}, newTestLogger())
	if err := p.TestConnection(context.Background()); err != nil {
		t.Errorf("TestConnection: %v", err)
	}

	srv.Close()
	if err := p.TestConnection(context.Background()); err == nil {
		t.Error("expected error after server closed")
	}
}
