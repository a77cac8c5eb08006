// Package llmgateway is the narrow client for the LLM Gateway (C1): a
// single request/response text completion call, optionally flagged for
// tool-assisted reasoning. C1 is an external collaborator — this package
// only defines the interface the stage library depends on and the
// concrete transports that satisfy it.
package llmgateway

import (
	"context"
)

// Options carries the per-call reasoning hints the stage library can
// request. Neither flag changes the shape of the response: both still
// resolve to a single completed text, per spec.
type Options struct {
	EnableSequentialThinking bool
	UseToolSearch            bool
}

// Client is the interface every stage depends on. Implementations
// distinguish transient failures (network blip, upstream 5xx/timeout —
// worth one retry) from fatal ones (invalid request, auth, content
// policy) via errs.ErrLLMTransient/errs.ErrLLMFatal on the returned error.
type Client interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}
