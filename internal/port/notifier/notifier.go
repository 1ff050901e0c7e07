// Package notifier defines the outbound notification port (interface) and
// capabilities. Notifiers carry session verdicts to external channels; they
// are advisory and never on the critical path.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Notification is the payload sent through a Notifier.
type Notification struct {
	Title   string  `json:"title"`
	Message string  `json:"message"`
	Level   string  `json:"level"`  // "info", "success", "warning", "error"
	Source  string  `json:"source"` // e.g. "session.completed"
	Fields  []Field `json:"fields,omitempty"`
}

// Field is one labeled value of a notification, e.g. the verdict score.
// Adapters with rich formatting render fields natively; plain-text ones
// append them as lines.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Capabilities declares which features a notifier supports.
type Capabilities struct {
	RichFormatting bool `json:"rich_formatting"`
	Threads        bool `json:"threads"`
}

// Notifier is the port interface for sending notifications.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "slack").
	Name() string

	// Capabilities returns what this notifier supports.
	Capabilities() Capabilities

	// Send delivers a notification.
	Send(ctx context.Context, notification Notification) error
}
