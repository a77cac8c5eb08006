// Package review implements the Stage Library (C6), the Review
// Orchestrator (C7), and Title Inference (C8): the core that drives a
// job through the six review stages, gates on HITL feedback, and merges
// each result into the Job Store.
//
// Per the cyclic-dependency design note, a stage is modeled as a pure
// function of (job snapshot, upstream results, BP cases) plus an Effects
// bundle the orchestrator injects. No stage imports another stage or the
// orchestrator; the orchestrator imports the stages.
package review

import (
	"context"

	"github.com/BaSui01/agentflow/internal/llmgateway"
	"github.com/BaSui01/agentflow/internal/progress"
	"github.com/BaSui01/agentflow/internal/retrieval"
	"github.com/BaSui01/agentflow/internal/store"
)

// Stage numbers, fixed by the pipeline order. Stage 1 (BP Scouter) has
// its own entry point (Scout) since its output shape and HITL exclusion
// differ from stages 2-6; StageNumber values 2-6 share the Stage
// interface below.
const (
	StageBPScouter   = 1
	StageObjective   = 2
	StageData        = 3
	StageRisk        = 4
	StageROI         = 5
	StageFinal       = 6
)

// Name maps a stage number to its metadata.agent_results key and
// progress-event "agent" field, matching the names already established
// by the Job Store's tests (BP_Scouter, Objective_Reviewer, ...).
func Name(stageNumber int) string {
	switch stageNumber {
	case StageBPScouter:
		return "BP_Scouter"
	case StageObjective:
		return "Objective_Reviewer"
	case StageData:
		return "Data_Feasibility"
	case StageRisk:
		return "Risk_Reviewer"
	case StageROI:
		return "ROI_Reviewer"
	case StageFinal:
		return "Final_Generator"
	default:
		return "unknown"
	}
}

// Effects bundles the side-effecting collaborators a stage is allowed to
// use. The orchestrator constructs one Effects per job and hands it to
// every stage; stages never reach for a global.
type Effects struct {
	LLM       llmgateway.Client
	Retrieval retrieval.Client
	Progress  *progress.Channel
}

// Input is what every stage (other than BP Scouter) receives. Upstream
// holds the latest text of every earlier stage in this segment, keyed by
// stage number — including any value produced by a HITL-driven
// regeneration, per spec §4.5's "observe the latest values" invariant.
// UserFeedback holds the most recent feedback text supplied at each
// HITL-gated stage number, folded into later prompts per the
// per-attempt-feedback supplemented feature.
type Input struct {
	Job          *store.Job
	Segment      store.Segment
	BPCases      []retrieval.Record
	Upstream     map[int]string
	UserFeedback map[int]string
}

// QualityAssessment is the Quality Gate's advisory output (§4.6):
// surfaced to the observer alongside an interrupt, never used by the
// orchestrator to auto-reject a result.
type QualityAssessment struct {
	Issues     []string
	Suggestion string
}

// Output is a stage's result. Decision/Reason are populated only by
// stage 6 (Final synthesis); every other stage leaves them empty.
type Output struct {
	Text     string
	Quality  QualityAssessment
	Decision string
	Reason   string
}

// Stage is the shared contract for stage numbers 2 through 6.
type Stage interface {
	Number() int
	Run(ctx context.Context, effects Effects, input Input) (Output, error)
}
