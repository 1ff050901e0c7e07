// Package broadcast defines the port for pushing live session events to
// connected clients. The WebSocket hub is the production implementation.
package broadcast

import "context"

// Broadcaster fans a typed event out to every connected client. Delivery
// is best-effort; a slow or gone client must not block the caller.
type Broadcaster interface {
	// BroadcastEvent sends a typed event (e.g. "scenario.updated",
	// "session.completed") with its payload to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
