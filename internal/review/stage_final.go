package review

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/internal/llmgateway"
	"github.com/BaSui01/agentflow/internal/progress"
)

// accordionSections names the stage-2..5 sections in report order, each
// keyed by the stage number whose text fills it.
var accordionSections = []struct {
	stage int
	title string
}{
	{StageObjective, "Objective review"},
	{StageData, "Data feasibility"},
	{StageRisk, "Risk assessment"},
	{StageROI, "ROI estimate"},
}

type finalStage struct {
	truncator  *Truncator
	charBudget int
	logger     *zap.Logger
}

// NewFinalStage builds stage 6 (final synthesis): fuses stages 2-5 and
// the BP records into an HTML accordion report and classifies the
// resulting approve/hold decision.
func NewFinalStage(t *Truncator, charBudget int, logger *zap.Logger) Stage {
	return &finalStage{truncator: t, charBudget: charBudget, logger: logger}
}

func (s *finalStage) Number() int { return StageFinal }

func (s *finalStage) Run(ctx context.Context, effects Effects, input Input) (Output, error) {
	name := Name(s.Number())
	publish(effects.Progress, input.Job.JobID, progress.KindStageStatus, map[string]any{
		"agent":  name,
		"status": "processing",
	})

	recommendation, err := s.summarize(ctx, effects.LLM, input)
	if err != nil {
		return Output{}, err
	}

	reportHTML := s.buildReport(recommendation, input)
	decision, reason := ClassifyFinalDecision(ctx, effects.LLM, reportHTML)

	publish(effects.Progress, input.Job.JobID, progress.KindStageStatus, map[string]any{
		"agent":  name,
		"status": "completed",
	})

	return Output{Text: reportHTML, Decision: decision, Reason: reason}, nil
}

// summarize issues the single LLM call that produces the narrative
// recommendation woven into the report, folding in every HITL feedback
// collected at stages 2-5 so far (the per-attempt-feedback supplemented
// feature) plus any feedback aimed at stage 6 itself on a retry.
func (s *finalStage) summarize(ctx context.Context, llm llmgateway.Client, input Input) (string, error) {
	proposal := s.truncator.Truncate(input.Job.ProposalContent, s.charBudget)
	bp := serializeBPRecords(input.BPCases)

	var b strings.Builder
	fmt.Fprintf(&b, "You are synthesizing a final review recommendation for an AI/business proposal.\n\n")
	fmt.Fprintf(&b, "Proposal content:\n%s\n\n", proposal)
	if bp != "" {
		fmt.Fprintf(&b, "Related best-practice cases:\n%s\n\n", bp)
	}
	for _, section := range accordionSections {
		if text, ok := input.Upstream[section.stage]; ok {
			fmt.Fprintf(&b, "%s:\n%s\n\n", section.title, text)
		}
	}

	if feedback := collectFeedback(input.UserFeedback); feedback != "" {
		fmt.Fprintf(&b, "Human reviewers sent the following feedback during earlier stages. Your recommendation must take it into account:\n%s\n\n", feedback)
	}

	fmt.Fprintf(&b, "Write a clear approve-or-hold recommendation in 3-4 sentences, with the key reasons.\n")

	if fb, ok := input.UserFeedback[StageFinal]; ok && fb != "" {
		fmt.Fprintf(&b, "\nA human reviewer sent this feedback on a previous draft of this recommendation — revise accordingly:\n%s\n", fb)
	}
	return llm.Complete(ctx, b.String(), llmgateway.Options{})
}

// collectFeedback renders every stage's recorded feedback (stages 2-5,
// in stage order) as a bullet list, skipping stages with none.
func collectFeedback(feedback map[int]string) string {
	var b strings.Builder
	for _, section := range accordionSections {
		if text, ok := feedback[section.stage]; ok && text != "" {
			fmt.Fprintf(&b, "- %s: %s\n", section.title, text)
		}
	}
	return b.String()
}

// buildReport assembles the accordion-structured HTML report: a summary
// paragraph followed by one collapsible section per stage 2-5.
func (s *finalStage) buildReport(recommendation string, input Input) string {
	var b strings.Builder
	b.WriteString(`<div class="review-report">`)
	fmt.Fprintf(&b, `<section class="summary"><h2>Recommendation</h2><p>%s</p></section>`, html.EscapeString(recommendation))

	for _, section := range accordionSections {
		text, ok := input.Upstream[section.stage]
		if !ok {
			continue
		}
		fmt.Fprintf(&b,
			`<details class="accordion-section"><summary>%s</summary><p>%s</p></details>`,
			html.EscapeString(section.title), html.EscapeString(text))
	}
	b.WriteString(`</div>`)
	return b.String()
}
