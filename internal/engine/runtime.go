package engine

import (
	"context"
)

// RuntimeRequest is the generation input handed to the native runtime.
type RuntimeRequest struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// RuntimeInfo describes a model the runtime has loaded.
type RuntimeInfo struct {
	Model         string
	ContextLength int
}

// ModelRuntime is the boundary to the on-device inference runtime. The
// local backend owns lifecycle and cancellation semantics; the runtime
// only has to honor ctx and stream tokens.
type ModelRuntime interface {
	// Load makes the model at path available for generation.
	Load(ctx context.Context, path string) (*RuntimeInfo, error)

	// Generate produces text for req, invoking onToken (when non-nil) for
	// each generated token, and returns the full text. It must stop when
	// ctx is cancelled.
	Generate(ctx context.Context, req *RuntimeRequest, onToken func(token string)) (string, error)

	// Unload releases whatever Load acquired. Idempotent.
	Unload(ctx context.Context) error
}
