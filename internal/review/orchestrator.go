package review

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/config"
	"github.com/BaSui01/agentflow/errs"
	"github.com/BaSui01/agentflow/internal/feedback"
	"github.com/BaSui01/agentflow/internal/llmgateway"
	"github.com/BaSui01/agentflow/internal/metrics"
	"github.com/BaSui01/agentflow/internal/progress"
	"github.com/BaSui01/agentflow/internal/retrieval"
	"github.com/BaSui01/agentflow/internal/store"
)

var tracer = otel.Tracer("github.com/BaSui01/agentflow/internal/review")

// analysisStageNumbers holds stages 2..5, in pipeline order; stage 6 runs
// after them via stageLoopFinal. Stage 1 (BP Scouter) runs outside
// this list via Scout — it is never HITL-gated and has no stage_loop.
var analysisStageNumbers = []int{StageObjective, StageData, StageRisk, StageROI}

// Orchestrator is the Review Orchestrator (C7): drives a job through
// stages 1-6 in order, gates HITL-enabled stages on the Feedback Inbox,
// merges every result into the Job Store before the next stage starts,
// and fans out over multi-segment jobs.
type Orchestrator struct {
	Store     store.Store
	Inbox     *feedback.Inbox
	Progress  *progress.Channel
	LLM       llmgateway.Client
	Retrieval retrieval.Client
	Config    config.ReviewConfig
	Metrics   *metrics.Collector
	Logger    *zap.Logger

	objective Stage
	data      Stage
	risk      Stage
	roi       Stage
	final     Stage
}

// New builds an Orchestrator and its stage instances from cfg.
func New(st store.Store, inbox *feedback.Inbox, ch *progress.Channel, llm llmgateway.Client, ret retrieval.Client, cfg config.ReviewConfig, mc *metrics.Collector, logger *zap.Logger) *Orchestrator {
	truncator := NewTruncator("", logger)
	return &Orchestrator{
		Store:     st,
		Inbox:     inbox,
		Progress:  ch,
		LLM:       llm,
		Retrieval: ret,
		Config:    cfg,
		Metrics:   mc,
		Logger:    logger,
		objective: NewObjectiveStage(truncator, cfg.PromptCharBudget, logger),
		data:      NewDataFeasibilityStage(truncator, cfg.PromptCharBudget, logger),
		risk:      NewRiskStage(truncator, cfg.PromptCharBudget, logger),
		roi:       NewROIStage(truncator, cfg.PromptCharBudget, logger),
		final:     NewFinalStage(truncator, cfg.PromptCharBudget, logger),
	}
}

func (o *Orchestrator) stageFor(number int) Stage {
	switch number {
	case StageObjective:
		return o.objective
	case StageData:
		return o.data
	case StageRisk:
		return o.risk
	case StageROI:
		return o.roi
	case StageFinal:
		return o.final
	default:
		return nil
	}
}

// RunJob drives jobID through every segment and every stage. It is
// invoked asynchronously by the submission boundary; the context
// governs the whole orchestration, not any single call.
func (o *Orchestrator) RunJob(ctx context.Context, jobID int64) error {
	ctx, span := tracer.Start(ctx, "review.RunJob", trace.WithAttributes(attribute.Int64("job_id", jobID)))
	defer span.End()

	job, err := o.Store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	segments := job.Segments
	if len(segments) == 0 {
		segments = []store.Segment{{Title: job.Title}}
	}
	n := len(segments)

	effects := Effects{LLM: o.LLM, Retrieval: o.Retrieval, Progress: o.Progress}

	decisions := make([]map[string]any, 0, n)
	var lastReport, lastDecision, lastReason string

	for i, seg := range segments {
		publish(o.Progress, jobID, progress.KindPageProgress, map[string]any{
			"current":    i + 1,
			"total":      n,
			"status":     "processing",
			"page_title": seg.Title,
		})

		bp := Scout(ctx, effects, o.Logger, job, o.Config.BPRecordCount)

		upstream := map[int]string{}
		userFeedback := map[int]string{}

		for _, k := range analysisStageNumbers {
			text, updated, err := o.stageLoop(ctx, job, seg, o.stageFor(k), effects, bp, upstream, userFeedback)
			if err != nil {
				o.failJob(ctx, jobID, err)
				return err
			}
			job = updated
			upstream[k] = text
		}

		finalOut, updated, err := o.stageLoopFinal(ctx, job, seg, effects, bp, upstream, userFeedback)
		if err != nil {
			o.failJob(ctx, jobID, err)
			return err
		}
		job = updated

		segReport := store.SegmentReport{
			Title:    seg.Title,
			ID:       seg.ID,
			Report:   finalOut.Text,
			Decision: finalOut.Decision,
			Reason:   finalOut.Reason,
		}
		lastReport, lastDecision, lastReason = finalOut.Text, finalOut.Decision, finalOut.Reason

		job, err = o.persistSegmentResult(ctx, jobID, segReport, i == n-1)
		if err != nil {
			o.failJob(ctx, jobID, err)
			return err
		}

		publish(o.Progress, jobID, progress.KindPageCompleted, map[string]any{
			"current":               i + 1,
			"total":                 n,
			"page_title":            seg.Title,
			"page_id":               seg.ID,
			"page_report":           finalOut.Text,
			"page_decision":         finalOut.Decision,
			"page_decision_reason":  finalOut.Reason,
		})
		decisions = append(decisions, map[string]any{
			"id":       seg.ID,
			"title":    seg.Title,
			"decision": finalOut.Decision,
			"reason":   finalOut.Reason,
		})

		if o.Metrics != nil {
			o.Metrics.RecordJobCompleted(finalOut.Decision)
		}
	}

	publish(o.Progress, jobID, progress.KindCompleted, map[string]any{
		"report":          lastReport,
		"decision":        lastDecision,
		"decision_reason": lastReason,
		"decisions":       decisions,
	})
	return nil
}

// stageLoop implements §4.5's stage_loop for stages 2-5: run, persist,
// and — only if this stage number is HITL-gated — assess quality,
// interrupt, await feedback, and retry up to Config.MaxRetries times.
// Returns the stage's final text and the Job snapshot after the last
// persisted write.
func (o *Orchestrator) stageLoop(ctx context.Context, job *store.Job, seg store.Segment, stage Stage, effects Effects, bp []retrieval.Record, upstream map[int]string, userFeedback map[int]string) (string, *store.Job, error) {
	k := stage.Number()
	name := Name(k)
	hitl := containsInt(job.HITLStages, k)

	o.Inbox.Reset(job.JobID)
	attempt := 0

	for {
		started := time.Now()
		out, err := o.runStage(ctx, stage, effects, job, seg, bp, upstream, userFeedback)
		if o.Metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			o.Metrics.RecordStageExecution(name, status, time.Since(started))
		}
		if err != nil {
			return "", nil, errs.New(errs.ErrInternal, fmt.Sprintf("stage %s failed", name)).WithCause(err)
		}

		updated, err := o.Store.UpdateJob(ctx, job.JobID, store.JobPatch{
			Status:   strPtr(statusFor(k)),
			Metadata: store.Metadata{AgentResults: map[string]string{name: out.Text}},
		})
		if err != nil {
			return "", nil, err
		}
		job = updated

		if !hitl {
			return out.Text, job, nil
		}

		quality := AssessQuality(ctx, effects.LLM, name, out.Text)
		publish(effects.Progress, job.JobID, progress.KindInterrupt, map[string]any{
			"job_id":             job.JobID,
			"agent":              name,
			"results":            out.Text,
			"feedback_suggestion": quality.Suggestion,
			"quality_issues":     quality.Issues,
		})

		fb := o.Inbox.Await(ctx, job.JobID, o.Config.FeedbackTimeout)
		if updated := o.recordFeedback(ctx, job.JobID, k, fb); updated != nil {
			job = updated
		}

		if fb.Skip || fb.Text == "" {
			return out.Text, job, nil
		}
		if attempt >= o.Config.MaxRetries {
			return out.Text, job, nil
		}
		attempt++
		if o.Metrics != nil {
			o.Metrics.RecordStageRetry(name)
		}
		userFeedback[k] = fb.Text
	}
}

// stageLoopFinal mirrors stageLoop for stage 6, whose Output additionally
// carries Decision/Reason.
func (o *Orchestrator) stageLoopFinal(ctx context.Context, job *store.Job, seg store.Segment, effects Effects, bp []retrieval.Record, upstream map[int]string, userFeedback map[int]string) (Output, *store.Job, error) {
	k := StageFinal
	name := Name(k)
	hitl := containsInt(job.HITLStages, k)

	o.Inbox.Reset(job.JobID)
	attempt := 0

	for {
		started := time.Now()
		out, err := o.runStage(ctx, o.final, effects, job, seg, bp, upstream, userFeedback)
		if o.Metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			o.Metrics.RecordStageExecution(name, status, time.Since(started))
		}
		if err != nil {
			return Output{}, nil, errs.New(errs.ErrInternal, fmt.Sprintf("stage %s failed", name)).WithCause(err)
		}

		updated, err := o.Store.UpdateJob(ctx, job.JobID, store.JobPatch{
			Status: strPtr(statusFor(k)),
			Metadata: store.Metadata{
				AgentResults: map[string]string{name: out.Text},
				Report:       out.Text,
				FinalDecision: &store.FinalDecision{Decision: out.Decision, Reason: out.Reason},
			},
			LLMDecision: strPtr(out.Decision),
		})
		if err != nil {
			return Output{}, nil, err
		}
		job = updated

		if !hitl {
			return out, job, nil
		}

		quality := AssessQuality(ctx, effects.LLM, name, out.Text)
		publish(effects.Progress, job.JobID, progress.KindInterrupt, map[string]any{
			"job_id":             job.JobID,
			"agent":              name,
			"results":            out.Text,
			"feedback_suggestion": quality.Suggestion,
			"quality_issues":     quality.Issues,
		})

		fb := o.Inbox.Await(ctx, job.JobID, o.Config.FeedbackTimeout)
		if updated := o.recordFeedback(ctx, job.JobID, k, fb); updated != nil {
			job = updated
		}

		if fb.Skip || fb.Text == "" {
			return out, job, nil
		}
		if attempt >= o.Config.MaxRetries {
			return out, job, nil
		}
		attempt++
		if o.Metrics != nil {
			o.Metrics.RecordStageRetry(name)
		}
		userFeedback[k] = fb.Text
	}
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage, effects Effects, job *store.Job, seg store.Segment, bp []retrieval.Record, upstream map[int]string, userFeedback map[int]string) (Output, error) {
	ctx, span := tracer.Start(ctx, "review.stage", trace.WithAttributes(
		attribute.Int64("job_id", job.JobID),
		attribute.Int("stage", stage.Number()),
	))
	defer span.End()

	return stage.Run(ctx, effects, Input{
		Job:          job,
		Segment:      seg,
		BPCases:      bp,
		Upstream:     upstream,
		UserFeedback: userFeedback,
	})
}

// recordFeedback appends the published (or timed-out) response to the
// Job Store's feedback history audit trail (the feedback-history
// supplemented feature). Logs and returns the prior job snapshot on a
// store error rather than failing the stage over an audit-trail write.
func (o *Orchestrator) recordFeedback(ctx context.Context, jobID int64, stage int, fb feedback.Value) *store.Job {
	entry := store.FeedbackEntry{Stage: stage, Text: fb.Text, Skip: fb.Skip, PublishedAt: time.Now()}
	updated, err := o.Store.UpdateJob(ctx, jobID, store.JobPatch{
		Metadata: store.Metadata{FeedbackHistory: []store.FeedbackEntry{entry}},
	})
	if err != nil {
		o.Logger.Warn("failed to record feedback history", zap.Int64("job_id", jobID), zap.Error(err))
		job, getErr := o.Store.GetJob(ctx, jobID)
		if getErr != nil {
			return nil
		}
		return job
	}
	return updated
}

// persistSegmentResult appends segReport to metadata.segment_reports in
// order (no reordering, per §4.5's invariant) and, on the last segment,
// marks the job status completed.
func (o *Orchestrator) persistSegmentResult(ctx context.Context, jobID int64, segReport store.SegmentReport, isLast bool) (*store.Job, error) {
	job, err := o.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	reports := append(append([]store.SegmentReport(nil), job.Metadata.SegmentReports...), segReport)

	patch := store.JobPatch{
		Metadata: store.Metadata{SegmentReports: reports},
	}
	if isLast {
		patch.Status = strPtr("completed")
	}
	return o.Store.UpdateJob(ctx, jobID, patch)
}

// failJob marks the job status error on a fatal stage/store failure,
// preserving whatever metadata was already persisted (spec §7 severity
// 4/5), and emits a terminal error event.
func (o *Orchestrator) failJob(ctx context.Context, jobID int64, cause error) {
	o.Logger.Error("job orchestration failed", zap.Int64("job_id", jobID), zap.Error(cause))
	if _, err := o.Store.UpdateJob(ctx, jobID, store.JobPatch{Status: strPtr("error")}); err != nil {
		o.Logger.Error("failed to record error status", zap.Int64("job_id", jobID), zap.Error(err))
	}
	publish(o.Progress, jobID, progress.KindError, map[string]any{"message": cause.Error()})
}

// statusFor maps a stage number to its §4.7 status label.
func statusFor(stageNumber int) string {
	switch stageNumber {
	case StageBPScouter:
		return "bp_done"
	case StageObjective:
		return "objective_done"
	case StageData:
		return "data_done"
	case StageRisk:
		return "risk_done"
	case StageROI:
		return "roi_done"
	case StageFinal:
		return "completed"
	default:
		return "pending"
	}
}

func strPtr(s string) *string { return &s }

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
