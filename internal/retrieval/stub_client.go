package retrieval

import "context"

// stubRecords is the fixed degraded-mode list the BP Scouter stage
// substitutes when the real Retrieval Gateway is unavailable, so the
// pipeline can proceed instead of failing the whole job over a missing
// case library.
var stubRecords = []Record{
	{
		Title:          "Line throughput improvement via changeover reduction",
		TechType:       "process optimization",
		BusinessDomain: "manufacturing",
		Division:       "general",
		ProblemAsWas:   "Frequent changeovers idled the line for hours per shift.",
		SolutionToBe:   "Standardized changeover checklist and parallel setup.",
		Summary:        "Cut changeover time by roughly a third with no capital spend.",
	},
	{
		Title:          "Data quality gate before analytics rollout",
		TechType:       "data governance",
		BusinessDomain: "general",
		Division:       "general",
		ProblemAsWas:   "Downstream dashboards silently absorbed bad sensor readings.",
		SolutionToBe:   "Schema and range validation at ingestion, rejecting bad rows.",
		Summary:        "Restored trust in the metrics before expanding the rollout.",
	},
}

// StubClient always returns the fixed fallback records, regardless of
// query. Used both as the BP Scouter stage's on-failure substitute and as
// a retrieval dependency for local dev/tests.
type StubClient struct{}

// NewStubClient returns a StubClient.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// Retrieve implements Client.
func (c *StubClient) Retrieve(_ context.Context, query Query) ([]Record, error) {
	records := stubRecords
	if query.K > 0 && query.K < len(records) {
		records = records[:query.K]
	}
	return records, nil
}

// FallbackRecords returns the same fixed list StubClient serves, for
// callers that want the degraded-mode substitute without going through
// the Client interface (the BP Scouter stage's failure path).
func FallbackRecords() []Record {
	out := make([]Record, len(stubRecords))
	copy(out, stubRecords)
	return out
}
