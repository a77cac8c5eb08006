package review

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/internal/progress"
	"github.com/BaSui01/agentflow/internal/retrieval"
	"github.com/BaSui01/agentflow/internal/store"
)

// Scout runs the BP Scouter (stage 1): queries the Retrieval Gateway for
// up to k Best-Practice records and emits a bp_cases progress event.
// Unlike every other stage, BP Scouter never fails the job and is never
// subject to HITL — on a Retrieval Gateway error the pipeline degrades
// to the fixed stub list and continues (spec §7 severity 2).
func Scout(ctx context.Context, effects Effects, logger *zap.Logger, job *store.Job, k int) []retrieval.Record {
	query := retrieval.Query{
		Domain:          job.Domain,
		Division:        job.Division,
		ProposalContent: job.ProposalContent,
		K:               k,
		Method:          retrieval.MethodRRF,
	}

	records, err := effects.Retrieval.Retrieve(ctx, query)
	if err != nil {
		logger.Warn("retrieval gateway unavailable, degrading to stub best-practice records",
			zap.Int64("job_id", job.JobID), zap.Error(err))
		records = retrieval.FallbackRecords()
		if k > 0 && k < len(records) {
			records = records[:k]
		}
	}

	publish(effects.Progress, job.JobID, progress.KindBPCases, map[string]any{
		"records": recordsToEventData(records),
	})

	return records
}

func recordsToEventData(records []retrieval.Record) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, map[string]any{
			"title":           r.Title,
			"tech_type":       r.TechType,
			"business_domain": r.BusinessDomain,
			"division":        r.Division,
			"problem_as_was":  r.ProblemAsWas,
			"solution_to_be":  r.SolutionToBe,
			"summary":         r.Summary,
			"tips":            r.Tips,
			"link":            r.Link,
		})
	}
	return out
}
