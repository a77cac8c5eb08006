package store

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/agentflow/errs"
)

// NewFields are the fields accepted by CreateJob. Status, HumanDecision,
// LLMDecision and Metadata are initialized by the store itself.
type NewFields struct {
	Title           string
	Domain          string
	Division        string
	ProposalContent string
	Segments        []Segment
	HITLStages      []int
}

// JobPatch is a field-level patch for UpdateJob. A nil/zero field means "no
// change" for that field — the orchestrator and admin surface never need to
// explicitly clear a scalar back to its zero value. Metadata is deep-merged
// via MergeMetadata rather than overwritten wholesale.
type JobPatch struct {
	Title           *string
	Domain          *string
	Division        *string
	ProposalContent *string
	HITLStages      []int
	Status          *string
	HumanDecision   *string
	LLMDecision     *string
	Metadata        Metadata
}

// ListFilter narrows ListJobs for the admin surface (spec §5): status,
// human_decision, llm_decision, and a substring search over title/content.
type ListFilter struct {
	Status        string
	HumanDecision string
	LLMDecision   string
	Search        string
	Page          int
	PageSize      int
}

// ListResult is one page of jobs plus the total matching count.
type ListResult struct {
	Jobs  []*Job
	Total int64
}

// Store is the Job Store (C3): durable keyed job records with atomic,
// single-writer-per-job updates and deterministic metadata merge.
type Store interface {
	CreateJob(ctx context.Context, fields NewFields) (int64, error)
	GetJob(ctx context.Context, jobID int64) (*Job, error)
	UpdateJob(ctx context.Context, jobID int64, patch JobPatch) (*Job, error)
	ListJobs(ctx context.Context, filter ListFilter) (ListResult, error)
	DeleteJob(ctx context.Context, jobID int64) error
}

// MergeMetadata implements the one non-trivial merge rule in the spec:
// top-level keys overwrite except AgentResults, which is merged key-wise
// with the patch winning per stage name, and FeedbackHistory, which
// accumulates. Applying the same patch twice is idempotent.
func MergeMetadata(old, patch Metadata) Metadata {
	merged := old.clone()

	if patch.AgentResults != nil {
		if merged.AgentResults == nil {
			merged.AgentResults = make(map[string]string, len(patch.AgentResults))
		}
		for name, result := range patch.AgentResults {
			merged.AgentResults[name] = result
		}
	}
	if patch.Report != "" {
		merged.Report = patch.Report
	}
	if patch.FinalDecision != nil {
		fd := *patch.FinalDecision
		merged.FinalDecision = &fd
	}
	if patch.HITLStages != nil {
		merged.HITLStages = append([]int(nil), patch.HITLStages...)
	}
	if patch.SegmentReports != nil {
		merged.SegmentReports = append([]SegmentReport(nil), patch.SegmentReports...)
	}
	// FeedbackHistory accumulates rather than overwrites (SPEC_FULL
	// supplemented feature): every published HITL response stays in the
	// audit trail. Entries already present (by value) are not re-appended,
	// so applying the same patch twice still yields the same result —
	// required by spec §8's merge-idempotence property.
	for _, entry := range patch.FeedbackHistory {
		if !containsFeedbackEntry(merged.FeedbackHistory, entry) {
			merged.FeedbackHistory = append(merged.FeedbackHistory, entry)
		}
	}
	return merged
}

func containsFeedbackEntry(entries []FeedbackEntry, entry FeedbackEntry) bool {
	for _, e := range entries {
		if e == entry {
			return true
		}
	}
	return false
}

// applyPatch applies the scalar/slice parts of a JobPatch to job in place
// and merges patch.Metadata, bumping UpdatedAt. Callers hold the per-job
// write lock.
func applyPatch(job *Job, patch JobPatch, now time.Time) {
	if patch.Title != nil {
		job.Title = *patch.Title
	}
	if patch.Domain != nil {
		job.Domain = *patch.Domain
	}
	if patch.Division != nil {
		job.Division = *patch.Division
	}
	if patch.ProposalContent != nil {
		job.ProposalContent = *patch.ProposalContent
	}
	if patch.HITLStages != nil {
		job.HITLStages = append([]int(nil), patch.HITLStages...)
	}
	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.HumanDecision != nil {
		job.HumanDecision = *patch.HumanDecision
	}
	if patch.LLMDecision != nil {
		job.LLMDecision = *patch.LLMDecision
	}
	job.Metadata = MergeMetadata(job.Metadata, patch.Metadata)

	// updated_at is monotonically non-decreasing (I3): never move it
	// backwards even if the caller's clock is behind the stored value.
	if now.After(job.UpdatedAt) {
		job.UpdatedAt = now
	}
}

func errJobNotFound(jobID int64) error {
	return errs.New(errs.ErrJobNotFound, fmt.Sprintf("job %d not found", jobID)).
		WithHTTPStatus(404)
}
