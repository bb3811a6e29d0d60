// Package logger provides structured logging setup for the psm service.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/PromptStruct/internal/config"
)

// Level is shared by every logger built with New so the level can change
// at runtime.
var Level = new(slog.LevelVar)

var baseLevel = slog.LevelInfo

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record and
// the request id of the record's context, if any. With cfg.Async records
// are written by a background worker; call Close on the returned Closer
// before exit to flush them.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	baseLevel = parseLevel(cfg.Level)
	Level.Set(baseLevel)

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: Level,
	})
	var closer Closer = nopCloser{}
	if cfg.Async {
		ah := NewAsyncHandler(handler, 4096, 1)
		handler, closer = ah, ah
	}

	return slog.New(&contextHandler{Handler: handler}).With("service", cfg.Service), closer
}

// SetDebug switches between debug output and the configured level.
func SetDebug(on bool) {
	if on {
		Level.Set(slog.LevelDebug)
		return
	}
	Level.Set(baseLevel)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// contextHandler adds the request id and prompt file carried by the
// context.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if id := RequestID(ctx); id != "" {
		rec.AddAttrs(slog.String("request_id", id))
	}
	if f := File(ctx); f != "" {
		rec.AddAttrs(slog.String("file", f))
	}
	return h.Handler.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
