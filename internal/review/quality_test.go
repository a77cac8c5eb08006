package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssessQuality_ParsesWellFormedJSON(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"issues": ["too vague"], "suggestion": "add concrete numbers"}`}}
	got := AssessQuality(context.Background(), llm, "Objective_Reviewer", "some analysis")
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "too vague", got.Issues[0])
	assert.Equal(t, "add concrete numbers", got.Suggestion)
}

func TestAssessQuality_ToleratesJSONWrappedInProseOrFences(t *testing.T) {
	llm := &fakeLLM{responses: []string{"Sure, here you go:\n```json\n{\"issues\": [], \"suggestion\": \"\"}\n```"}}
	got := AssessQuality(context.Background(), llm, "Risk_Reviewer", strings.Repeat("x", 300))
	assert.Empty(t, got.Issues)
}

func TestAssessQuality_FallsBackOnLLMError(t *testing.T) {
	llm := &fakeLLM{errs: []error{errors.New("boom")}}
	short := AssessQuality(context.Background(), llm, "ROI_Reviewer", "too short")
	require.Len(t, short.Issues, 1)

	long := AssessQuality(context.Background(), llm, "ROI_Reviewer", strings.Repeat("x", minAcceptableLength))
	assert.Empty(t, long.Issues)
}

func TestAssessQuality_FallsBackOnUnparseableResponse(t *testing.T) {
	llm := &fakeLLM{responses: []string{"not json at all"}}
	got := AssessQuality(context.Background(), llm, "Data_Feasibility", strings.Repeat("x", minAcceptableLength))
	assert.Empty(t, got.Issues)
}
