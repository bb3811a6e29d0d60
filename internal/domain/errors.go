// Package domain provides shared domain-level sentinel errors.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the operation collides with state that is already in progress.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates malformed input.
var ErrValidation = errors.New("validation failed")

// ErrStructure indicates an operation that would misuse the tree structure,
// such as promoting the children of a leaf.
var ErrStructure = errors.New("structural error")

// ErrCycle indicates a move that would make a node its own descendant.
var ErrCycle = fmt.Errorf("node cannot be moved into its own subtree: %w", ErrStructure)
