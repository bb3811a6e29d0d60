// Package yamlfs implements the file store port on a directory of YAML
// prompt files, with the manager configuration kept in a JSON file.
package yamlfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Strob0t/PromptStruct/internal/domain"
	"github.com/Strob0t/PromptStruct/internal/domain/prompttree"
	"github.com/Strob0t/PromptStruct/internal/port/filestore"
)

// Ensure Store implements filestore.Store at compile time.
var _ filestore.Store = (*Store)(nil)

// Store keeps prompt files in the configured save directory. The save
// directory is read from the config file on every call so that SetConfig
// takes effect immediately.
type Store struct {
	configPath string
	defaultDir string

	// mu guards the read-modify-write of the config file.
	mu sync.Mutex
}

// New creates a Store. defaultDir is used until the config file names a
// save directory.
func New(configPath, defaultDir string) *Store {
	return &Store{configPath: configPath, defaultDir: defaultDir}
}

// ListFiles returns the sorted .yaml file names in the save directory. A
// missing directory has no files.
func (s *Store) ListFiles(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir())
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read save dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), filestore.FileExt) {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}

// GetPrompts decodes a prompt file. A missing or empty file yields two
// empty trees.
func (s *Store) GetPrompts(_ context.Context, file string) (prompttree.Forest, error) {
	path, err := s.path(file)
	if err != nil {
		return prompttree.Forest{}, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return emptyForest(), nil
	}
	if err != nil {
		return prompttree.Forest{}, fmt.Errorf("read %s: %w", file, err)
	}
	return Decode(data)
}

// SavePrompts writes both trees to file, replacing it atomically.
func (s *Store) SavePrompts(_ context.Context, file string, prompts prompttree.Forest) error {
	path, err := s.path(file)
	if err != nil {
		return err
	}
	data, err := Encode(prompts)
	if err != nil {
		return fmt.Errorf("encode %s: %w", file, err)
	}
	if err := writeAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	slog.Debug("prompt file written", "file", file, "bytes", len(data))
	return nil
}

// DuplicateFile copies src to dst. An existing dst is overwritten.
func (s *Store) DuplicateFile(_ context.Context, src, dst string) error {
	srcPath, err := s.path(src)
	if err != nil {
		return err
	}
	dstPath, err := s.path(filestore.WithExt(dst))
	if err != nil {
		return err
	}

	info, err := os.Stat(srcPath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file %s: %w", src, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := writeAtomic(dstPath, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return os.Chtimes(dstPath, info.ModTime(), info.ModTime())
}

// RenameFile renames src to dst.
func (s *Store) RenameFile(_ context.Context, src, dst string) error {
	srcPath, err := s.path(src)
	if err != nil {
		return err
	}
	dstPath, err := s.path(filestore.WithExt(dst))
	if err != nil {
		return err
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("file %s: %w", src, domain.ErrNotFound)
		}
		return fmt.Errorf("rename %s: %w", src, err)
	}
	return nil
}

// DeleteFile removes file.
func (s *Store) DeleteFile(_ context.Context, file string) error {
	path, err := s.path(file)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("file %s: %w", file, domain.ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", file, err)
	}
	return nil
}

// GetConfig returns the configuration. The manager counts as configured
// once the config file exists.
func (s *Store) GetConfig(_ context.Context) (filestore.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := filestore.Config{SaveDir: s.defaultDir}
	data, err := os.ReadFile(s.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	cfg.IsConfigured = true
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Warn("ignoring malformed config file", "path", s.configPath, "error", err)
	}
	if strings.TrimSpace(cfg.SaveDir) == "" {
		cfg.SaveDir = s.defaultDir
	}
	return cfg, nil
}

// SetConfig merges save_dir and dev_mode into the config file. Other keys
// in the file are kept.
func (s *Store) SetConfig(_ context.Context, saveDir string, devMode bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := map[string]any{}
	if data, err := os.ReadFile(s.configPath); err == nil {
		if err := json.Unmarshal(data, &current); err != nil {
			slog.Warn("replacing malformed config file", "path", s.configPath, "error", err)
			current = map[string]any{}
		}
	}
	current["save_dir"] = saveDir
	current["dev_mode"] = devMode

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := writeAtomic(s.configPath, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Dir returns the current save directory.
func (s *Store) Dir() string {
	return s.dir()
}

func (s *Store) dir() string {
	cfg, err := s.GetConfig(context.Background())
	if err != nil {
		slog.Warn("falling back to default save dir", "error", err)
		return s.defaultDir
	}
	return cfg.SaveDir
}

// path resolves file inside the save directory. Names that would leave the
// directory are rejected.
func (s *Store) path(file string) (string, error) {
	if file == "" || !filepath.IsLocal(file) {
		return "", fmt.Errorf("invalid file name %q: %w", file, domain.ErrValidation)
	}
	return filepath.Join(s.dir(), file), nil
}

// Decode parses a prompt document. Missing lists decode as empty trees.
func Decode(data []byte) (prompttree.Forest, error) {
	var f prompttree.Forest
	if err := yaml.Unmarshal(data, &f); err != nil {
		return prompttree.Forest{}, fmt.Errorf("decode prompts: %w", err)
	}
	if f.Positive == nil {
		f.Positive = []*prompttree.Node{}
	}
	if f.Negative == nil {
		f.Negative = []*prompttree.Node{}
	}
	return f, nil
}

// Encode renders a prompt document.
func Encode(f prompttree.Forest) ([]byte, error) {
	if f.Positive == nil {
		f.Positive = []*prompttree.Node{}
	}
	if f.Negative == nil {
		f.Negative = []*prompttree.Node{}
	}
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func emptyForest() prompttree.Forest {
	return prompttree.Forest{Positive: []*prompttree.Node{}, Negative: []*prompttree.Node{}}
}

// writeAtomic writes data to a temp file next to path and renames it over
// path, creating parent directories as needed.
func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
