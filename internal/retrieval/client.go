// Package retrieval is the narrow client for the Retrieval Gateway (C2):
// given a proposal's domain/division/content, return up to K ranked
// Best-Practice records. C2 is an external collaborator — this package
// defines the interface the BP Scouter stage depends on plus the concrete
// transports that satisfy it.
package retrieval

import "context"

// Method selects the ranking strategy the gateway should use. The zero
// value is not valid; callers should pass one of the constants below or
// fall through to config.RetrievalConfig.DefaultMethod.
type Method string

const (
	MethodRRF  Method = "rrf"
	MethodBM25 Method = "bm25"
	MethodKNN  Method = "knn"
	MethodCC   Method = "cc"
)

// Query is the input to Retrieve.
type Query struct {
	Domain          string
	Division        string
	ProposalContent string
	K               int
	Method          Method
}

// Record is a Best-Practice case, opaque to the orchestrator — it flows
// verbatim into stages 2 through 6 as prompt context.
type Record struct {
	Title            string `json:"title"`
	TechType         string `json:"tech_type"`
	BusinessDomain   string `json:"business_domain"`
	Division         string `json:"division"`
	ProblemAsWas     string `json:"problem_as_was"`
	SolutionToBe     string `json:"solution_to_be"`
	Summary          string `json:"summary"`
	Tips             string `json:"tips,omitempty"`
	Link             string `json:"link,omitempty"`
}

// Client is the interface the BP Scouter stage depends on for C2.
type Client interface {
	Retrieve(ctx context.Context, query Query) ([]Record, error)
}
