// Package notify defines the per-session notification channel port.
//
// Every session gets one publish/subscribe channel carrying worker
// completion notifications back to the orchestrator. The channel is
// ephemeral: notifications are not persisted beyond delivery.
package notify

import "context"

// Handler processes one notification payload. Delivery is best-effort;
// handlers must not block for long.
type Handler func(ctx context.Context, data []byte)

// Channel is the port interface for session notification channels.
type Channel interface {
	// Publish sends data on the named channel.
	Publish(ctx context.Context, channel string, data []byte) error

	// Subscribe registers a handler for messages on the named channel.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, channel string, handler Handler) (cancel func(), err error)

	// IsConnected reports whether the channel transport is connected.
	IsConnected() bool
}

// ChannelName returns the notification channel for a session.
func ChannelName(sessionID string) string {
	return "manager:" + sessionID + ":notifications"
}
