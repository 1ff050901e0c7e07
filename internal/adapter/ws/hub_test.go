package ws

import (
	"context"
	"testing"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub()

	// Broadcast with no connections should not panic.
	hub.Broadcast(context.Background(), Message{
		Type:    "test",
		Payload: []byte(`{"key":"value"}`),
	})
}

func TestHubBroadcastEventNoConnections(t *testing.T) {
	hub := NewHub()

	// BroadcastEvent with no connections should not panic.
	hub.BroadcastEvent(context.Background(), "scenario.updated", map[string]string{
		"session_id":  "sess-1",
		"scenario_id": "functional-1",
		"status":      "completed",
	})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub()

	// A channel cannot be marshaled to JSON; should log, not panic.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub()

	// Removing a connection that was never added should not panic.
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{ws: nil, cancel: cancel}
	hub.remove(c)
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestConnSessionFilter(t *testing.T) {
	cases := []struct {
		name    string
		filter  string
		eventID string
		want    bool
	}{
		{"unfiltered gets everything", "", "sess-1", true},
		{"unfiltered gets unscoped", "", "", true},
		{"matching session", "sess-1", "sess-1", true},
		{"other session", "sess-1", "sess-2", false},
		{"filtered gets unscoped", "sess-1", "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cn := &conn{sessionID: c.filter}
			if got := cn.wants(c.eventID); got != c.want {
				t.Fatalf("wants(%q) with filter %q = %v, want %v", c.eventID, c.filter, got, c.want)
			}
		})
	}
}

func TestSessionScope(t *testing.T) {
	if got := sessionScope([]byte(`{"session_id":"sess-9","status":"completed"}`)); got != "sess-9" {
		t.Fatalf("scope = %q, want sess-9", got)
	}
	if got := sessionScope([]byte(`{"status":"ok"}`)); got != "" {
		t.Fatalf("scope = %q, want empty", got)
	}
	if got := sessionScope([]byte(`not json`)); got != "" {
		t.Fatalf("scope = %q, want empty on bad payload", got)
	}
}
