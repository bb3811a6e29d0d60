// Package generation defines the port that hands compiled prompts to the
// image-generation backend.
package generation

import "context"

// Prompt is a compiled prompt pair ready for generation.
type Prompt struct {
	File     string `json:"file"`
	Positive string `json:"positive"`
	Negative string `json:"negative"`
}

// Applier delivers compiled prompts to the generation backend.
type Applier interface {
	Apply(ctx context.Context, p Prompt) error
}
