package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Strob0t/PromptStruct/internal/domain"
	"github.com/Strob0t/PromptStruct/internal/domain/prompttree"
	"github.com/Strob0t/PromptStruct/internal/port/filestore"
)

// ListFiles returns the prompt files in the save directory.
func (s *TreeStore) ListFiles(ctx context.Context) ([]string, error) {
	files, err := s.files.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// SelectedFile returns the name of the selected file, or "" if none is.
func (s *TreeStore) SelectedFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

// SelectFile loads a prompt file into the trees and makes it the save
// target. A file that does not exist yet loads as two empty trees. Open
// edit and delete workflows are discarded.
func (s *TreeStore) SelectFile(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("file name is required: %w", domain.ErrValidation)
	}

	doc, err := s.files.GetPrompts(ctx, name)
	if err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	forest := prompttree.Forest{
		Positive: prompttree.CopyAll(doc.Positive),
		Negative: prompttree.CopyAll(doc.Negative),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := prompttree.EnsureUniqueIDs(s.ids, forest.Positive, forest.Negative); n > 0 {
		slog.Warn("reassigned duplicate node ids", "file", name, "count", n)
	}
	s.file = name
	s.forest = forest
	s.edit = nil
	s.deletion = nil
	slog.Info("prompt file selected", "file", name)
	return nil
}

// ReloadIfSelected re-reads file when it is the selected save target, so a
// write made around the trees does not get overwritten by the next mutation.
// It reports whether a reload happened.
func (s *TreeStore) ReloadIfSelected(ctx context.Context, file string) (bool, error) {
	selected := s.SelectedFile()
	if selected == "" || file != selected {
		return false, nil
	}
	return true, s.SelectFile(ctx, selected)
}

// CreateFile saves an empty document under name and selects it.
func (s *TreeStore) CreateFile(ctx context.Context, name string) (string, error) {
	file, err := fileName(name)
	if err != nil {
		return "", err
	}
	empty := prompttree.Forest{Positive: []*prompttree.Node{}, Negative: []*prompttree.Node{}}
	if err := s.files.SavePrompts(ctx, file, empty); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrSave, file, err)
	}
	return file, s.SelectFile(ctx, file)
}

// DuplicateFile copies the selected file to newName and selects the copy.
func (s *TreeStore) DuplicateFile(ctx context.Context, newName string) (string, error) {
	src, err := s.requireSelection()
	if err != nil {
		return "", err
	}
	dst, err := fileName(newName)
	if err != nil {
		return "", err
	}
	if err := s.files.DuplicateFile(ctx, src, dst); err != nil {
		return "", fmt.Errorf("duplicate %s: %w", src, err)
	}
	return dst, s.SelectFile(ctx, dst)
}

// RenameFile renames the selected file. The trees stay loaded.
func (s *TreeStore) RenameFile(ctx context.Context, newName string) (string, error) {
	src, err := s.requireSelection()
	if err != nil {
		return "", err
	}
	dst, err := fileName(newName)
	if err != nil {
		return "", err
	}
	if err := s.files.RenameFile(ctx, src, dst); err != nil {
		return "", fmt.Errorf("rename %s: %w", src, err)
	}

	s.mu.Lock()
	if s.file == src {
		s.file = dst
	}
	s.mu.Unlock()
	return dst, nil
}

// DeleteFile deletes the selected file and clears the selection and trees.
func (s *TreeStore) DeleteFile(ctx context.Context) error {
	file, err := s.requireSelection()
	if err != nil {
		return err
	}
	if err := s.files.DeleteFile(ctx, file); err != nil {
		return fmt.Errorf("delete %s: %w", file, err)
	}
	s.reset()
	slog.Info("prompt file deleted", "file", file)
	return nil
}

// ImportFile turns raw comma-separated prompt text into enabled leaves,
// saves them to a new file and selects it.
func (s *TreeStore) ImportFile(ctx context.Context, name, rawPositive, rawNegative string) (string, error) {
	file, err := fileName(name)
	if err != nil {
		return "", err
	}
	doc := prompttree.Forest{
		Positive: prompttree.ParseRaw(rawPositive, s.ids),
		Negative: prompttree.ParseRaw(rawNegative, s.ids),
	}
	if err := s.files.SavePrompts(ctx, file, doc); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrSave, file, err)
	}
	return file, s.SelectFile(ctx, file)
}

// Config returns the file store configuration.
func (s *TreeStore) Config(ctx context.Context) (filestore.Config, error) {
	cfg, err := s.files.GetConfig(ctx)
	if err != nil {
		return filestore.Config{}, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

// SetConfig points the file store at a new save directory. The selection
// and trees are cleared because the selected file belongs to the old one.
func (s *TreeStore) SetConfig(ctx context.Context, saveDir string, devMode bool) error {
	if strings.TrimSpace(saveDir) == "" {
		return fmt.Errorf("save_dir is required: %w", domain.ErrValidation)
	}
	if err := s.files.SetConfig(ctx, saveDir, devMode); err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	s.reset()
	if s.onConfig != nil {
		s.onConfig(saveDir, devMode)
	}
	slog.Info("save directory configured", "save_dir", saveDir, "dev_mode", devMode)
	return nil
}

func (s *TreeStore) requireSelection() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == "" {
		return "", fmt.Errorf("no file selected: %w", domain.ErrValidation)
	}
	return s.file, nil
}

func (s *TreeStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file = ""
	s.forest = prompttree.Forest{Positive: []*prompttree.Node{}, Negative: []*prompttree.Node{}}
	s.edit = nil
	s.deletion = nil
}

func fileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("file name is required: %w", domain.ErrValidation)
	}
	return filestore.WithExt(name), nil
}
