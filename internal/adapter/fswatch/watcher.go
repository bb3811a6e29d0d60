// Package fswatch watches the prompt save directory for changes made behind
// the server's back, such as edits in a text editor or a synced folder.
package fswatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Strob0t/PromptStruct/internal/port/broadcast"
	"github.com/Strob0t/PromptStruct/internal/port/filestore"
)

// Invalidator drops cached state of a prompt file.
type Invalidator interface {
	Invalidate(ctx context.Context, file string)
}

// Watcher reports changed prompt files of one directory. Bursts of events
// for the same file are collapsed into one notification after the debounce
// interval.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration

	cache  Invalidator
	events broadcast.Broadcaster

	mu      sync.Mutex
	dir     string
	pending map[string]pendingChange
}

type pendingChange struct {
	op   string
	seen time.Time
}

// New creates a watcher for dir. Call Run to start delivering events.
func New(dir string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		watcher:  fw,
		debounce: debounce,
		dir:      dir,
		pending:  make(map[string]pendingChange),
	}, nil
}

// SetInvalidator sets the cache that is told about changed files.
func (w *Watcher) SetInvalidator(i Invalidator) {
	w.cache = i
}

// SetBroadcaster sets the broadcaster for files.changed events.
func (w *Watcher) SetBroadcaster(b broadcast.Broadcaster) {
	w.events = b
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

// SetDir switches the watch to a new directory, creating it if needed.
func (w *Watcher) SetDir(dir string) error {
	w.mu.Lock()
	old := w.dir
	w.dir = dir
	w.pending = make(map[string]pendingChange)
	w.mu.Unlock()

	if old != "" && old != dir {
		if err := w.watcher.Remove(old); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			slog.Warn("stop watching save dir", "dir", old, "error", err)
		}
	}
	return w.add(dir)
}

// Run delivers change notifications until ctx is cancelled or Close is
// called.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.add(w.Dir()); err != nil {
		return err
	}

	tick := max(w.debounce/2, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.record(ev, time.Now())

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("save dir watcher error", "error", err)

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) add(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create save dir %s: %w", dir, err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	slog.Info("watching save dir", "dir", dir)
	return nil
}

// record queues a change of a prompt file. Hidden files are skipped; they
// include the temp files of atomic writes.
func (w *Watcher) record(ev fsnotify.Event, now time.Time) {
	name := filepath.Base(ev.Name)
	if !strings.HasSuffix(name, filestore.FileExt) || strings.HasPrefix(name, ".") {
		return
	}

	var op string
	switch {
	case ev.Has(fsnotify.Create):
		op = "create"
	case ev.Has(fsnotify.Write):
		op = "modify"
	case ev.Has(fsnotify.Remove):
		op = "delete"
	case ev.Has(fsnotify.Rename):
		op = "rename"
	default:
		return // chmod
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if filepath.Dir(ev.Name) != filepath.Clean(w.dir) {
		return
	}
	// A create followed by writes is still a create.
	if prev, ok := w.pending[name]; ok && prev.op == "create" && op == "modify" {
		op = prev.op
	}
	w.pending[name] = pendingChange{op: op, seen: now}
}

// flush notifies about every file that has been quiet for the debounce
// interval.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	var ready []broadcast.FilesChangedEvent

	w.mu.Lock()
	for name, p := range w.pending {
		if now.Sub(p.seen) >= w.debounce {
			ready = append(ready, broadcast.FilesChangedEvent{File: name, Op: p.op})
			delete(w.pending, name)
		}
	}
	w.mu.Unlock()

	for _, ev := range ready {
		slog.Debug("prompt file changed on disk", "file", ev.File, "op", ev.Op)
		if w.cache != nil {
			w.cache.Invalidate(ctx, ev.File)
		}
		if w.events != nil {
			w.events.BroadcastEvent(ctx, broadcast.EventFilesChanged, ev)
		}
	}
}
