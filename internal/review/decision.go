package review

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BaSui01/agentflow/internal/llmgateway"
	"github.com/BaSui01/agentflow/internal/store"
)

// defaultOnHoldReason is the fixed reason string used whenever automatic
// classification cannot be trusted (LLM failure, unparseable response).
// Pinned in English per the SUPPLEMENTED FEATURES' decision on the
// original's Korean default.
const defaultOnHoldReason = "automatic classification failed, defaulted to on-hold"

type decisionResponse struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

// ClassifyFinalDecision is §4.9: a bounded LLM call with a strict JSON
// output schema that turns the final report into {decision, reason}. On
// any failure to call or parse, it defaults to on-hold rather than
// propagating an error — classification failure must never abort the
// job (spec §7 severity 3).
func ClassifyFinalDecision(ctx context.Context, llm llmgateway.Client, report string) (decision, reason string) {
	prompt := fmt.Sprintf(`You are a reviewer making a final approve/hold call on an AI project proposal.
Read the final report below and decide between "approved" and "on-hold".
Base the decision on feasibility, expected benefit, risk level, and ROI taken together.
Respond with JSON only, no explanation, in exactly this shape:
{"decision": "approved", "reason": "the key reason, one sentence"}

Final report:
%s`, report)

	raw, err := llm.Complete(ctx, prompt, llmgateway.Options{})
	if err != nil {
		return store.DecisionOnHold, defaultOnHoldReason
	}

	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return store.DecisionOnHold, defaultOnHoldReason
	}

	var parsed decisionResponse
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return store.DecisionOnHold, defaultOnHoldReason
	}

	if parsed.Decision != store.DecisionApproved && parsed.Decision != store.DecisionOnHold {
		return store.DecisionOnHold, defaultOnHoldReason
	}
	if parsed.Reason == "" {
		parsed.Reason = "classified from the final report without a stated reason"
	}
	return parsed.Decision, parsed.Reason
}
