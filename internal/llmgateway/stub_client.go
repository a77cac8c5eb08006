package llmgateway

import (
	"context"
	"fmt"
)

// StubClient answers every completion with a deterministic canned response
// derived from the prompt's length, for local development and tests that
// don't want a real LLM Gateway dependency. It never fails.
type StubClient struct{}

// NewStubClient returns a StubClient.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// Complete implements Client.
func (c *StubClient) Complete(_ context.Context, prompt string, _ Options) (string, error) {
	return fmt.Sprintf("[stub completion for %d-character prompt]", len(prompt)), nil
}
