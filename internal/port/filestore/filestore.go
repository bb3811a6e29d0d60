// Package filestore defines the port for persisting prompt files and the
// manager's global configuration.
package filestore

import (
	"context"
	"strings"

	"github.com/Strob0t/PromptStruct/internal/domain/prompttree"
)

// FileExt is the extension of every prompt file.
const FileExt = ".yaml"

// Config is the manager configuration kept next to the prompt files.
type Config struct {
	SaveDir      string `json:"save_dir"`
	IsConfigured bool   `json:"is_configured"`
	DevMode      bool   `json:"dev_mode"`
}

// Store is the port interface for prompt file persistence.
type Store interface {
	// ListFiles returns the prompt file names in the save directory, sorted.
	ListFiles(ctx context.Context) ([]string, error)

	// GetPrompts loads both trees of a file. A missing file yields empty trees.
	GetPrompts(ctx context.Context, file string) (prompttree.Forest, error)

	// SavePrompts replaces the contents of a file, creating it if needed.
	SavePrompts(ctx context.Context, file string, prompts prompttree.Forest) error

	DuplicateFile(ctx context.Context, src, dst string) error
	RenameFile(ctx context.Context, src, dst string) error

	// DeleteFile removes a file; a missing file returns domain.ErrNotFound.
	DeleteFile(ctx context.Context, file string) error

	GetConfig(ctx context.Context) (Config, error)
	SetConfig(ctx context.Context, saveDir string, devMode bool) error
}

// WithExt appends FileExt to name unless it is already present.
func WithExt(name string) string {
	if strings.HasSuffix(name, FileExt) {
		return name
	}
	return name + FileExt
}
