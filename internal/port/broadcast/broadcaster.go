// Package broadcast defines the port for broadcasting real-time events to connected clients.
package broadcast

import "context"

// Event type constants shared by producers and the WebSocket adapter.
const (
	EventTreeSaved      = "tree.saved"
	EventTreeSaveFailed = "tree.save_failed"
	EventFilesChanged   = "files.changed"
	EventPromptsApplied = "prompts.applied"
)

// TreeSavedEvent is broadcast after the trees were persisted.
type TreeSavedEvent struct {
	File string `json:"file"`
}

// TreeSaveFailedEvent is broadcast when persisting the trees failed.
type TreeSaveFailedEvent struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// FilesChangedEvent is broadcast when a prompt file changed on disk.
type FilesChangedEvent struct {
	File string `json:"file"`
	Op   string `json:"op"` // "create", "modify", "delete", "rename"
}

// PromptsAppliedEvent is broadcast after compiled prompts were handed off.
type PromptsAppliedEvent struct {
	File string `json:"file"`
}

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
