package server

import (
	"encoding/json"
	"testing"

	"github.com/MarcoPoloResearchLab/chatroom/internal/chat"
	"github.com/MarcoPoloResearchLab/chatroom/internal/presence"
)

func registerTestClient(hub *Hub, id presence.ConnectionID) *client {
	c := newClient(id, nil, "test", nil)
	hub.register(c)
	return c
}

func decodeQueued(t *testing.T, c *client) chat.Inbound {
	t.Helper()
	select {
	case payload := <-c.send:
		var decoded chat.Inbound
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		return decoded
	default:
		t.Fatalf("expected queued payload for %s", c.id)
		return chat.Inbound{}
	}
}

func TestHubBroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub(nil)
	first := registerTestClient(hub, "a")
	second := registerTestClient(hub, "b")

	hub.Broadcast(chat.Event{Name: chat.EventUserJoined, Data: chat.UserPayload{Username: "Alex"}})

	for _, c := range []*client{first, second} {
		decoded := decodeQueued(t, c)
		if decoded.Name != chat.EventUserJoined {
			t.Fatalf("expected user_joined, got %q", decoded.Name)
		}
		var payload chat.UserPayload
		if err := json.Unmarshal(decoded.Data, &payload); err != nil || payload.Username != "Alex" {
			t.Fatalf("unexpected payload %s (%v)", decoded.Data, err)
		}
	}
}

func TestHubBroadcastContinuesPastFullBuffer(t *testing.T) {
	hub := NewHub(nil)
	stuck := registerTestClient(hub, "stuck")
	healthy := registerTestClient(hub, "healthy")
	for index := 0; index < sendBufferSize; index++ {
		if !stuck.enqueue([]byte("{}")) {
			t.Fatalf("expected buffer slot %d to be free", index)
		}
	}

	hub.Broadcast(chat.Event{Name: chat.EventMessage})

	if len(stuck.send) != sendBufferSize {
		t.Fatalf("expected stuck buffer to stay full, got %d", len(stuck.send))
	}
	if decoded := decodeQueued(t, healthy); decoded.Name != chat.EventMessage {
		t.Fatalf("expected healthy client to receive message, got %q", decoded.Name)
	}
	if err := hub.Send("stuck", chat.Event{Name: chat.EventError}); err != errConnectionBusy {
		t.Fatalf("expected busy error, got %v", err)
	}
}

func TestHubSendTargetsSingleClient(t *testing.T) {
	hub := NewHub(nil)
	target := registerTestClient(hub, "target")
	other := registerTestClient(hub, "other")

	if err := hub.Send("target", chat.Event{Name: chat.EventError, Data: chat.ErrorPayload{Message: "x"}}); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if decoded := decodeQueued(t, target); decoded.Name != chat.EventError {
		t.Fatalf("expected error event, got %q", decoded.Name)
	}
	if len(other.send) != 0 {
		t.Fatal("did not expect unicast to reach other clients")
	}
	if err := hub.Send("missing", chat.Event{Name: chat.EventError}); err != errConnectionNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestHubUnregisterClosesClient(t *testing.T) {
	hub := NewHub(nil)
	c := registerTestClient(hub, "a")

	hub.unregister("a")
	hub.unregister("a")

	if hub.Len() != 0 {
		t.Fatalf("expected no clients, got %d", hub.Len())
	}
	if _, open := <-c.send; open {
		t.Fatal("expected send channel to be closed")
	}
	if c.enqueue([]byte("{}")) {
		t.Fatal("expected enqueue on closed client to fail")
	}
	hub.Broadcast(chat.Event{Name: chat.EventMessage})
}
