// Package provider defines the LLM provider port and its wire envelopes.
//
// The JSON field names below are cross-deployment contracts: the request
// envelope {model, messages, temperature, max_tokens} and the result
// envelope {success, content, usage, model} / {success, error, details}
// must survive refactors byte-for-byte.
package provider

import (
	"context"
	"errors"
)

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the provider request envelope.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is a successful chat result. FallbackUsed names the fallback
// provider that answered when the primary failed; empty when the resolved
// target answered directly.
type Completion struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Usage        Usage  `json:"usage"`
	Provider     string `json:"provider"`
	FallbackUsed string `json:"fallback_used,omitempty"`
}

// Provider is one LLM backend. Implementations are safe for concurrent use.
type Provider interface {
	// Name returns the configured provider name.
	Name() string

	// ChatCompletion performs one chat round trip.
	ChatCompletion(ctx context.Context, req ChatRequest) (*Completion, error)
}

// Error is a structured provider failure: the short reason and the
// wire-level detail kept apart so the failure envelope can report both.
type Error struct {
	Provider string
	Message  string
	Detail   string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Provider + ": " + e.Message + ": " + e.Detail
	}
	return e.Provider + ": " + e.Message
}

// Envelope is the cross-process result format.
type Envelope struct {
	Success      bool   `json:"success"`
	Content      string `json:"content,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
	Model        string `json:"model,omitempty"`
	FallbackUsed string `json:"fallback_used,omitempty"`
	Error        string `json:"error,omitempty"`
	Details      string `json:"details,omitempty"`
}

// SuccessEnvelope wraps a completion in the wire result format.
func SuccessEnvelope(c *Completion) Envelope {
	usage := c.Usage
	return Envelope{
		Success:      true,
		Content:      c.Content,
		Usage:        &usage,
		Model:        c.Model,
		FallbackUsed: c.FallbackUsed,
	}
}

// FailureEnvelope wraps an error in the wire result format, splitting
// structured provider errors into error and details.
func FailureEnvelope(err error) Envelope {
	var perr *Error
	if errors.As(err, &perr) {
		return Envelope{
			Success: false,
			Error:   perr.Provider + ": " + perr.Message,
			Details: perr.Detail,
		}
	}
	return Envelope{Success: false, Error: err.Error()}
}
