package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/PromptStruct/internal/logger"
	"github.com/Strob0t/PromptStruct/internal/port/broadcast"
)

// Ensure Hub implements broadcast.Broadcaster at compile time.
var _ broadcast.Broadcaster = (*Hub)(nil)

// BroadcastEvent encodes payload and sends it to every panel, tagged with
// the request id of ctx.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:      eventType,
		Payload:   json.RawMessage(data),
		RequestID: logger.RequestID(ctx),
	})
}
