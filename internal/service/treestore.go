// Package service implements business logic on top of ports.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/PromptStruct/internal/adapter/otel"
	"github.com/Strob0t/PromptStruct/internal/domain"
	"github.com/Strob0t/PromptStruct/internal/domain/prompttree"
	"github.com/Strob0t/PromptStruct/internal/logger"
	"github.com/Strob0t/PromptStruct/internal/port/broadcast"
	"github.com/Strob0t/PromptStruct/internal/port/filestore"
	"github.com/Strob0t/PromptStruct/internal/port/generation"
)

// ErrSave wraps every failure of the file store while persisting the trees.
// The in-memory trees keep the change.
var ErrSave = errors.New("save prompts failed")

// ErrNoApplier is returned by Apply when no generation backend is configured.
var ErrNoApplier = errors.New("no generation backend configured")

// EditState describes the node currently open in the edit form.
type EditState struct {
	Node  prompttree.Node `json:"node"`
	IsNew bool            `json:"is_new"`
}

// TreeState is a point-in-time copy of the store for readers.
type TreeState struct {
	File     string             `json:"file"`
	Positive []*prompttree.Node `json:"positive"`
	Negative []*prompttree.Node `json:"negative"`
	Editing  *EditState         `json:"editing,omitempty"`
	Deleting *prompttree.Node   `json:"deleting,omitempty"`
}

type deleteSession struct {
	node    prompttree.Node
	applied bool
}

// TreeStore owns the positive and negative prompt trees of the selected
// file. Every structural change goes through its methods and is persisted
// through the file store right after the in-memory change.
//
// Mutations are serialised by a mutex. Saving happens outside the lock on a
// snapshot, so a slow save never blocks later mutations; concurrent saves
// are neither queued nor coalesced and the last one to complete wins.
type TreeStore struct {
	mu       sync.Mutex
	files    filestore.Store
	ids      *prompttree.IDGenerator
	file     string
	forest   prompttree.Forest
	edit     *EditState
	deletion *deleteSession

	applier  generation.Applier
	events   broadcast.Broadcaster
	metrics  *cfotel.Metrics
	onConfig func(saveDir string, devMode bool)
}

// NewTreeStore creates a TreeStore with no file selected.
func NewTreeStore(files filestore.Store) *TreeStore {
	return &TreeStore{
		files:  files,
		ids:    prompttree.NewIDGenerator(),
		forest: prompttree.Forest{Positive: []*prompttree.Node{}, Negative: []*prompttree.Node{}},
	}
}

// SetApplier sets the generation backend used by Apply.
func (s *TreeStore) SetApplier(a generation.Applier) {
	s.applier = a
}

// SetBroadcaster sets the optional event broadcaster.
func (s *TreeStore) SetBroadcaster(b broadcast.Broadcaster) {
	s.events = b
}

// SetMetrics sets the optional metric instruments.
func (s *TreeStore) SetMetrics(m *cfotel.Metrics) {
	s.metrics = m
}

// SetConfigHook registers a callback invoked after SetConfig succeeded, e.g.
// to switch debug logging or to follow the new save directory.
func (s *TreeStore) SetConfigHook(fn func(saveDir string, devMode bool)) {
	s.onConfig = fn
}

// Snapshot returns a deep copy of the current state.
func (s *TreeStore) Snapshot() TreeState {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.forest.Copy()
	st := TreeState{File: s.file, Positive: f.Positive, Negative: f.Negative}
	if s.edit != nil {
		e := *s.edit
		st.Editing = &e
	}
	if s.deletion != nil {
		n := s.deletion.node
		st.Deleting = &n
	}
	return st
}

// Add inserts a new node into the sequence at loc and opens it in the edit
// form. A nil atIndex appends. The node is persisted by FinishEdit, or
// removed again by CancelEdit.
func (s *TreeStore) Add(loc prompttree.Location, isGroup bool, atIndex *int) (prompttree.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.edit != nil {
		return prompttree.Node{}, fmt.Errorf("node %d is already being edited: %w", s.edit.Node.ID, domain.ErrConflict)
	}

	n := prompttree.New(s.ids.Next(), isGroup)
	at := -1
	if atIndex != nil {
		at = *atIndex
	}
	if err := s.forest.Insert(loc, n, at); err != nil {
		return prompttree.Node{}, err
	}

	s.edit = &EditState{Node: editable(n), IsNew: true}
	slog.Debug("node added", "id", n.ID, "side", loc.Side, "parent_id", loc.GroupID, "is_group", isGroup)
	return s.edit.Node, nil
}

// StartEdit opens an existing node in the edit form. Only a node created by
// Add and still in its first edit counts as new; cancelling any other edit
// leaves the tree untouched.
func (s *TreeStore) StartEdit(id prompttree.ID) (prompttree.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.edit != nil && s.edit.Node.ID != id {
		return prompttree.Node{}, fmt.Errorf("node %d is already being edited: %w", s.edit.Node.ID, domain.ErrConflict)
	}
	m, ok := s.forest.Find(id)
	if !ok {
		return prompttree.Node{}, fmt.Errorf("node %d: %w", id, domain.ErrNotFound)
	}

	isNew := s.edit != nil && s.edit.IsNew
	s.edit = &EditState{Node: editable(m.Node), IsNew: isNew}
	return s.edit.Node, nil
}

// FinishEdit writes the edited node over the live node with the same id and
// persists. If persisting fails the edit stays open so it can be retried.
// If the node vanished meanwhile the edit is closed without changes.
func (s *TreeStore) FinishEdit(ctx context.Context, edited prompttree.Node) error {
	if err := edited.Validate(); err != nil {
		return err
	}
	edited.Children = nil

	s.mu.Lock()
	if s.edit == nil {
		s.mu.Unlock()
		return fmt.Errorf("no node is being edited: %w", domain.ErrValidation)
	}
	if s.edit.Node.ID != edited.ID {
		current := s.edit.Node.ID
		s.mu.Unlock()
		return fmt.Errorf("node %d is being edited, not %d: %w", current, edited.ID, domain.ErrValidation)
	}

	found, err := s.forest.Replace(edited)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !found {
		s.edit = nil
		s.mu.Unlock()
		slog.Warn("edited node no longer exists", "id", edited.ID)
		return nil
	}
	s.edit.Node = edited
	file, snap := s.file, s.forest.Copy()
	s.mu.Unlock()

	s.recordMutation(ctx, "edit")
	if err := s.persist(ctx, file, snap, "edit"); err != nil {
		return err
	}

	s.mu.Lock()
	if s.edit != nil && s.edit.Node.ID == edited.ID {
		s.edit = nil
	}
	s.mu.Unlock()
	return nil
}

// CancelEdit closes the edit form. A node that was created for this edit is
// removed from the tree again.
func (s *TreeStore) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.edit == nil {
		return
	}
	if s.edit.IsNew {
		if _, ok := s.forest.Remove(s.edit.Node.ID); ok {
			slog.Debug("new node discarded", "id", s.edit.Node.ID)
		}
	}
	s.edit = nil
}

// Delete removes a node in the given mode and persists. A missing node is a
// no-op; promoting the children of a leaf is rejected.
func (s *TreeStore) Delete(ctx context.Context, id prompttree.ID, mode prompttree.DeleteMode) error {
	return s.mutate(ctx, "delete", func(f *prompttree.Forest) (bool, error) {
		return f.Delete(id, mode)
	})
}

// RequestDelete marks a node as pending deletion until ConfirmDelete or
// CancelDelete. A new request replaces the pending one.
func (s *TreeStore) RequestDelete(id prompttree.ID) (prompttree.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.forest.Find(id)
	if !ok {
		return prompttree.Node{}, fmt.Errorf("node %d: %w", id, domain.ErrNotFound)
	}
	s.deletion = &deleteSession{node: *prompttree.Copy(m.Node)}
	return s.deletion.node, nil
}

// ConfirmDelete applies the pending deletion and persists. When persisting
// fails the deletion stays pending; confirming again only retries the save.
func (s *TreeStore) ConfirmDelete(ctx context.Context, mode prompttree.DeleteMode) error {
	s.mu.Lock()
	d := s.deletion
	if d == nil {
		s.mu.Unlock()
		return fmt.Errorf("no deletion pending: %w", domain.ErrValidation)
	}
	if !d.applied {
		found, err := s.forest.Delete(d.node.ID, mode)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		if !found {
			s.deletion = nil
			s.mu.Unlock()
			slog.Warn("node pending deletion no longer exists", "id", d.node.ID)
			return nil
		}
		d.applied = true
	}
	file, snap := s.file, s.forest.Copy()
	s.mu.Unlock()

	s.recordMutation(ctx, "delete")
	if err := s.persist(ctx, file, snap, "delete"); err != nil {
		return err
	}

	s.mu.Lock()
	if s.deletion == d {
		s.deletion = nil
	}
	s.mu.Unlock()
	return nil
}

// CancelDelete drops the pending deletion.
func (s *TreeStore) CancelDelete() {
	s.mu.Lock()
	s.deletion = nil
	s.mu.Unlock()
}

// Duplicate deep-copies the node with the given id, which must sit directly
// in the sequence at parent, inserts the copy right after it and persists.
// It returns nil when the node is not in that sequence.
func (s *TreeStore) Duplicate(ctx context.Context, id prompttree.ID, parent prompttree.Location) (*prompttree.Node, error) {
	var clone *prompttree.Node
	err := s.mutate(ctx, "duplicate", func(f *prompttree.Forest) (bool, error) {
		c, err := f.Duplicate(id, parent, s.ids)
		if err != nil || c == nil {
			return false, err
		}
		clone = prompttree.Copy(c)
		return true, nil
	})
	return clone, err
}

// ToggleEnabled flips the enabled flag of one node and persists. Children
// keep their own flags; a disabled group hides them at compile time.
func (s *TreeStore) ToggleEnabled(ctx context.Context, id prompttree.ID) error {
	return s.mutate(ctx, "toggle", func(f *prompttree.Forest) (bool, error) {
		return f.Toggle(id), nil
	})
}

// SetChildrenEnabled sets the enabled flag of every descendant of a group
// and persists once.
func (s *TreeStore) SetChildrenEnabled(ctx context.Context, id prompttree.ID, enabled bool) error {
	return s.mutate(ctx, "set_children_enabled", func(f *prompttree.Forest) (bool, error) {
		return f.SetChildrenEnabled(id, enabled)
	})
}

// Move appends a node to the sequence at dest and persists. Moving a node
// into its own subtree fails with domain.ErrCycle and changes nothing.
func (s *TreeStore) Move(ctx context.Context, id prompttree.ID, dest prompttree.Location) error {
	return s.mutate(ctx, "move", func(f *prompttree.Forest) (bool, error) {
		return f.Move(id, dest)
	})
}

// SetAllGroupsOpen expands or collapses every group. The flag is UI state
// and is saved with the next persisted change.
func (s *TreeStore) SetAllGroupsOpen(open bool) {
	s.mu.Lock()
	s.forest.SetAllGroupsOpen(open)
	s.mu.Unlock()
}

// Compile returns the prompt string of one side.
func (s *TreeStore) Compile(ctx context.Context, side prompttree.Side) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.forest.Root(side)
	if root == nil {
		return "", fmt.Errorf("unknown side %q: %w", side, domain.ErrValidation)
	}
	return s.compile(ctx, *root), nil
}

// CompileAll returns the prompt strings of both sides.
func (s *TreeStore) CompileAll(ctx context.Context) generation.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()

	return generation.Prompt{
		File:     s.file,
		Positive: s.compile(ctx, s.forest.Positive),
		Negative: s.compile(ctx, s.forest.Negative),
	}
}

// Apply compiles both trees and hands them to the generation backend.
func (s *TreeStore) Apply(ctx context.Context) (generation.Prompt, error) {
	if s.applier == nil {
		return generation.Prompt{}, ErrNoApplier
	}
	p := s.CompileAll(ctx)
	ctx, span := cfotel.StartApplySpan(ctx, p.File)
	defer span.End()
	if err := s.applier.Apply(ctx, p); err != nil {
		span.RecordError(err)
		return p, fmt.Errorf("apply prompts: %w", err)
	}
	s.broadcast(ctx, broadcast.EventPromptsApplied, broadcast.PromptsAppliedEvent{File: p.File})
	return p, nil
}

// compile must be called with s.mu held.
func (s *TreeStore) compile(ctx context.Context, seq []*prompttree.Node) string {
	start := time.Now()
	out := prompttree.Compile(seq, prompttree.DefaultSeparator)
	if s.metrics != nil {
		s.metrics.CompileDuration.Record(ctx, time.Since(start).Seconds())
	}
	return out
}

// mutate applies fn to the trees under the lock and, when fn reports a
// change, persists a snapshot outside the lock.
func (s *TreeStore) mutate(ctx context.Context, op string, fn func(f *prompttree.Forest) (bool, error)) error {
	s.mu.Lock()
	changed, err := fn(&s.forest)
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	file, snap := s.file, s.forest.Copy()
	s.mu.Unlock()

	s.recordMutation(ctx, op)
	return s.persist(ctx, file, snap, op)
}

// persist saves a snapshot of the trees. Without a selected file there is
// nowhere to save to and the call is a no-op.
func (s *TreeStore) persist(ctx context.Context, file string, snap prompttree.Forest, op string) error {
	if file == "" {
		slog.Debug("no file selected, change kept in memory only", "op", op)
		return nil
	}

	ctx = logger.WithFile(ctx, file)
	ctx, span := cfotel.StartSaveSpan(ctx, file, op)
	defer span.End()

	start := time.Now()
	err := s.files.SavePrompts(ctx, file, snap)
	if s.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("op", op))
		s.metrics.SaveDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		if err != nil {
			s.metrics.SavesFailed.Add(ctx, 1, attrs)
		}
	}
	if err != nil {
		span.RecordError(err)
		slog.ErrorContext(ctx, "save prompts failed", "op", op, "error", err)
		s.broadcast(ctx, broadcast.EventTreeSaveFailed, broadcast.TreeSaveFailedEvent{File: file, Error: err.Error()})
		return fmt.Errorf("%w: %s: %w", ErrSave, file, err)
	}

	slog.DebugContext(ctx, "prompts saved", "op", op)
	s.broadcast(ctx, broadcast.EventTreeSaved, broadcast.TreeSavedEvent{File: file})
	return nil
}

func (s *TreeStore) recordMutation(ctx context.Context, op string) {
	if s.metrics != nil {
		s.metrics.Mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

func (s *TreeStore) broadcast(ctx context.Context, eventType string, payload any) {
	if s.events != nil {
		s.events.BroadcastEvent(ctx, eventType, payload)
	}
}

// editable copies the envelope of n for the edit form. Children stay with
// the live node.
func editable(n *prompttree.Node) prompttree.Node {
	c := *n
	c.Children = nil
	return c
}
