package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/agentflow/internal/store"
)

func TestClassifyFinalDecision_ValidApproved(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"decision": "approved", "reason": "strong ROI and low risk"}`}}
	decision, reason := ClassifyFinalDecision(context.Background(), llm, "report body")
	assert.Equal(t, store.DecisionApproved, decision)
	assert.Equal(t, "strong ROI and low risk", reason)
}

func TestClassifyFinalDecision_ValidOnHold(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"decision": "on-hold", "reason": "needs more data"}`}}
	decision, reason := ClassifyFinalDecision(context.Background(), llm, "report body")
	assert.Equal(t, store.DecisionOnHold, decision)
	assert.Equal(t, "needs more data", reason)
}

func TestClassifyFinalDecision_InvalidDecisionValueDefaultsOnHold(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"decision": "maybe", "reason": "unclear"}`}}
	decision, reason := ClassifyFinalDecision(context.Background(), llm, "report body")
	assert.Equal(t, store.DecisionOnHold, decision)
	assert.Equal(t, defaultOnHoldReason, reason)
}

func TestClassifyFinalDecision_LLMErrorDefaultsOnHold(t *testing.T) {
	llm := &fakeLLM{errs: []error{errors.New("boom")}}
	decision, reason := ClassifyFinalDecision(context.Background(), llm, "report body")
	assert.Equal(t, store.DecisionOnHold, decision)
	assert.Equal(t, defaultOnHoldReason, reason)
}

func TestClassifyFinalDecision_UnparseableResponseDefaultsOnHold(t *testing.T) {
	llm := &fakeLLM{responses: []string{"I cannot decide right now."}}
	decision, reason := ClassifyFinalDecision(context.Background(), llm, "report body")
	assert.Equal(t, store.DecisionOnHold, decision)
	assert.Equal(t, defaultOnHoldReason, reason)
}

func TestClassifyFinalDecision_EmptyReasonGetsGenericFallback(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"decision": "approved", "reason": ""}`}}
	decision, reason := ClassifyFinalDecision(context.Background(), llm, "report body")
	assert.Equal(t, store.DecisionApproved, decision)
	assert.NotEmpty(t, reason)
}
