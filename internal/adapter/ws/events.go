package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// BroadcastEvent marshals a typed event payload and broadcasts it to every
// connected client. The event type names the change ("session.created",
// "scenario.updated", "session.completed"); the payload shapes are owned by
// the service layer that emits them. The payload's session_id field, when
// present, scopes delivery to clients watching that session.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:      eventType,
		SessionID: sessionScope(data),
		Payload:   json.RawMessage(data),
	})
}

// sessionScope extracts the session_id carried by an event payload, if any.
func sessionScope(payload []byte) string {
	var scope struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &scope); err != nil {
		return ""
	}
	return scope.SessionID
}
