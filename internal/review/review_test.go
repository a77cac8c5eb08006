package review

import (
	"context"
	"errors"

	"github.com/BaSui01/agentflow/internal/llmgateway"
	"github.com/BaSui01/agentflow/internal/retrieval"
)

// fakeLLM is a scriptable llmgateway.Client for orchestrator/stage tests:
// each call consumes the next entry of responses (or errs if errs[i] is
// non-nil), cycling the last entry once exhausted so longer HITL retry
// loops don't run out of scripted responses.
type fakeLLM struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (f *fakeLLM) Complete(_ context.Context, prompt string, _ llmgateway.Options) (string, error) {
	f.prompts = append(f.prompts, prompt)
	i := f.calls
	f.calls++
	maxLen := len(f.responses)
	if len(f.errs) > maxLen {
		maxLen = len(f.errs)
	}
	if maxLen == 0 {
		return "", errors.New("fakeLLM: no scripted response")
	}
	if i >= maxLen {
		i = maxLen - 1
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("fakeLLM: no scripted response")
}

// fakeRetrieval always returns a fixed record set, or an error when cfg.
type fakeRetrieval struct {
	records []retrieval.Record
	err     error
}

func (f *fakeRetrieval) Retrieve(_ context.Context, _ retrieval.Query) ([]retrieval.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}
