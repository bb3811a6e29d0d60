package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/PromptStruct/internal/logger"
	"github.com/Strob0t/PromptStruct/internal/port/broadcast"
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

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub()

	// A channel cannot be marshaled to JSON, should log the error, not panic.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub()

	// Removing a connection that was never added should not panic.
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.remove(&conn{ws: nil, cancel: cancel})
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(httpHandler(hub))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.CloseNow() })

	deadline := time.Now().Add(5 * time.Second)
	for hub.ConnectionCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return c
}

func TestHubDeliversEvents(t *testing.T) {
	hub := NewHub()
	c := dial(t, hub)

	ctx := logger.WithRequestID(context.Background(), "req-7")
	hub.BroadcastEvent(ctx, broadcast.EventTreeSaved, broadcast.TreeSavedEvent{File: "a.yaml"})

	readCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := c.Read(readCtx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != broadcast.EventTreeSaved || string(msg.Payload) != `{"file":"a.yaml"}` {
		t.Fatalf("unexpected message: %s %s", msg.Type, msg.Payload)
	}
	if msg.RequestID != "req-7" {
		t.Fatalf("expected request id req-7, got %q", msg.RequestID)
	}
}

func TestHubForgetsClosedConnections(t *testing.T) {
	hub := NewHub()
	c := dial(t, hub)

	if err := c.Close(websocket.StatusNormalClosure, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for hub.ConnectionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed connection still registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	c := dial(t, hub)

	hub.Close()
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected no connections after close, got %d", hub.ConnectionCount())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := c.Read(ctx); err == nil {
		t.Fatal("expected the connection to be closed")
	}
}

func httpHandler(hub *Hub) http.Handler {
	return http.HandlerFunc(hub.HandleWS)
}
