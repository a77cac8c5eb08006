// Package store implements the Job Store: durable, keyed job records with
// deterministic metadata merge semantics, shared by the review orchestrator
// and the admin surface.
package store

import "time"

// HumanDecision and LLMDecision share this enum.
const (
	DecisionPending  = "pending"
	DecisionApproved = "approved"
	DecisionOnHold   = "on-hold"
)

// Segment is one independently reviewable page of a submission.
type Segment struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SegmentReport is the per-segment aggregate written by stage 6 for
// multi-segment jobs.
type SegmentReport struct {
	Title    string `json:"title"`
	ID       string `json:"id"`
	Report   string `json:"report"`
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

// FinalDecision is the `{decision, reason}` pair stage 6 writes per segment.
type FinalDecision struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

// FeedbackEntry records one published HITL response. Unlike the other
// metadata keys, entries are never overwritten by a later patch — they
// accumulate, giving the admin surface a full feedback audit trail.
type FeedbackEntry struct {
	Stage       int       `json:"stage"`
	Text        string    `json:"text"`
	Skip        bool      `json:"skip"`
	PublishedAt time.Time `json:"published_at"`
}

// Metadata is the structured bag attached to a Job. AgentResults is merged
// key-wise and FeedbackHistory is merged additively; every other field
// overwrites wholesale when present in a patch. See MergeMetadata.
type Metadata struct {
	AgentResults    map[string]string `json:"agent_results,omitempty"`
	FinalDecision   *FinalDecision    `json:"final_decision,omitempty"`
	Report          string            `json:"report,omitempty"`
	HITLStages      []int             `json:"hitl_stages,omitempty"`
	SegmentReports  []SegmentReport   `json:"segment_reports,omitempty"`
	FeedbackHistory []FeedbackEntry   `json:"feedback_history,omitempty"`
}

// Job is one submission under review.
type Job struct {
	JobID           int64     `json:"job_id"`
	Title           string    `json:"title"`
	Domain          string    `json:"domain"`
	Division        string    `json:"division"`
	ProposalContent string    `json:"proposal_content"`
	Segments        []Segment `json:"segments"`
	HITLStages      []int     `json:"hitl_stages"`
	Status          string    `json:"status"`
	HumanDecision   string    `json:"human_decision"`
	LLMDecision     string    `json:"llm_decision"`
	Metadata        Metadata  `json:"metadata"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Clone returns a deep-enough copy of j for safe use outside the store's
// single-writer section (slices and the metadata map are copied).
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Segments = append([]Segment(nil), j.Segments...)
	out.HITLStages = append([]int(nil), j.HITLStages...)
	out.Metadata = j.Metadata.clone()
	return &out
}

func (m Metadata) clone() Metadata {
	out := Metadata{
		Report:     m.Report,
		HITLStages: append([]int(nil), m.HITLStages...),
	}
	if m.AgentResults != nil {
		out.AgentResults = make(map[string]string, len(m.AgentResults))
		for k, v := range m.AgentResults {
			out.AgentResults[k] = v
		}
	}
	if m.FinalDecision != nil {
		fd := *m.FinalDecision
		out.FinalDecision = &fd
	}
	out.SegmentReports = append([]SegmentReport(nil), m.SegmentReports...)
	out.FeedbackHistory = append([]FeedbackEntry(nil), m.FeedbackHistory...)
	return out
}
