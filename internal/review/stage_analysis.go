package review

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/internal/llmgateway"
	"github.com/BaSui01/agentflow/internal/progress"
	"github.com/BaSui01/agentflow/internal/retrieval"
)

// analysisStage implements stages 2 through 5: structurally identical
// LLM calls that differ only in their evaluation criteria. Stage 6
// (final synthesis) has its own type since its output and inputs differ.
type analysisStage struct {
	number       int
	criteria     string // the evaluation checklist folded into the prompt
	truncator    *Truncator
	charBudget   int
	logger       *zap.Logger
}

// NewObjectiveStage, NewDataFeasibilityStage, NewRiskStage and
// NewROIStage build stages 2-5 (spec §4.4 "Stage definitions"), sharing
// analysisStage's prompt/LLM-call plumbing.

func NewObjectiveStage(t *Truncator, charBudget int, logger *zap.Logger) Stage {
	return &analysisStage{
		number:     StageObjective,
		charBudget: charBudget,
		truncator:  t,
		logger:     logger,
		criteria: `1. Clarity of the stated goal
2. Alignment with organizational strategy
3. Feasibility of achieving the goal as described`,
	}
}

func NewDataFeasibilityStage(t *Truncator, charBudget int, logger *zap.Logger) Stage {
	return &analysisStage{
		number:     StageData,
		charBudget: charBudget,
		truncator:  t,
		logger:     logger,
		criteria: `1. Availability of the data the proposal depends on
2. Expected data quality and completeness
3. Accessibility: who holds the data and how it would be obtained`,
	}
}

func NewRiskStage(t *Truncator, charBudget int, logger *zap.Logger) Stage {
	return &analysisStage{
		number:     StageRisk,
		charBudget: charBudget,
		truncator:  t,
		logger:     logger,
		criteria: `1. Technical risk: novelty and maturity of the approach
2. Schedule risk: realism of the proposed timeline
3. Personnel risk: availability and skill fit of the team`,
	}
}

func NewROIStage(t *Truncator, charBudget int, logger *zap.Logger) Stage {
	return &analysisStage{
		number:     StageROI,
		charBudget: charBudget,
		truncator:  t,
		logger:     logger,
		criteria: `1. Expected benefit, quantified where the proposal allows it
2. Investment required relative to the expected benefit
3. Time horizon until the investment pays back`,
	}
}

func (s *analysisStage) Number() int { return s.number }

func (s *analysisStage) Run(ctx context.Context, effects Effects, input Input) (Output, error) {
	name := Name(s.number)
	publish(effects.Progress, input.Job.JobID, progress.KindStageStatus, map[string]any{
		"agent":  name,
		"status": "processing",
	})

	prompt := s.buildPrompt(input)
	text, err := effects.LLM.Complete(ctx, prompt, llmgateway.Options{})
	if err != nil {
		return Output{}, err
	}

	publish(effects.Progress, input.Job.JobID, progress.KindStageStatus, map[string]any{
		"agent":  name,
		"status": "completed",
	})
	return Output{Text: text}, nil
}

func (s *analysisStage) buildPrompt(input Input) string {
	proposal := s.truncator.Truncate(input.Job.ProposalContent, s.charBudget)
	bp := serializeBPRecords(input.BPCases)

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert reviewer assessing an AI/business proposal for %s.\n\n", Name(s.number))
	fmt.Fprintf(&b, "Proposal content:\n%s\n\n", proposal)
	if bp != "" {
		fmt.Fprintf(&b, "Related best-practice cases:\n%s\n\n", bp)
	}
	fmt.Fprintf(&b, "Evaluate the following and summarize concisely in 2-3 sentences:\n%s\n", s.criteria)

	if fb, ok := input.UserFeedback[s.number]; ok && fb != "" {
		fmt.Fprintf(&b, "\nA human reviewer sent this feedback on a previous draft of this analysis — revise accordingly:\n%s\n", fb)
	}
	return b.String()
}

// serializeBPRecords renders BP records compactly for prompt inclusion
// (spec §4.4: "BP records are serialized compactly").
func serializeBPRecords(records []retrieval.Record) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range records {
		fmt.Fprintf(&b, "%d. %s (%s/%s): %s -> %s\n", i+1, r.Title, r.TechType, r.BusinessDomain, r.ProblemAsWas, r.SolutionToBe)
	}
	return b.String()
}
