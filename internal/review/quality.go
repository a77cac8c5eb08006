package review

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/BaSui01/agentflow/internal/llmgateway"
)

// minAcceptableLength is the heuristic fallback threshold from spec
// §4.6: below this many characters a result is flagged as too short
// even without a working quality LLM.
const minAcceptableLength = 200

var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

type qualityResponse struct {
	Issues     []string `json:"issues"`
	Suggestion string   `json:"suggestion"`
}

// AssessQuality is the Quality Gate (§4.6): a secondary, advisory LLM
// call that annotates a stage result with issues and a suggested
// feedback template. It never returns an error — a failed or
// unparseable quality call degrades to the heuristic fallback so a
// flaky assist call never blocks the primary pipeline.
func AssessQuality(ctx context.Context, llm llmgateway.Client, stageName, text string) QualityAssessment {
	prompt := fmt.Sprintf(`You are the quality gate of an AI proposal review pipeline.
The %s stage produced the following analysis:

%s

Assess whether this analysis is detailed and specific enough, or too
short, vague, or unsupported by concrete reasoning.

Respond with JSON only, no explanation, in exactly this shape:
{"issues": ["short issue description", ...], "suggestion": "one sentence a human reviewer could send back as feedback"}
Use an empty issues array when the analysis is adequate.`, stageName, text)

	raw, err := llm.Complete(ctx, prompt, llmgateway.Options{})
	if err != nil {
		return heuristicQuality(text)
	}

	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return heuristicQuality(text)
	}

	var parsed qualityResponse
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return heuristicQuality(text)
	}

	return QualityAssessment{Issues: parsed.Issues, Suggestion: parsed.Suggestion}
}

// heuristicQuality is the §4.6 fallback: no issues if the text clears
// the minimum length, one canned issue otherwise.
func heuristicQuality(text string) QualityAssessment {
	if len([]rune(text)) >= minAcceptableLength {
		return QualityAssessment{Issues: []string{}, Suggestion: ""}
	}
	return QualityAssessment{
		Issues:     []string{"analysis is shorter than the expected minimum detail level"},
		Suggestion: "consider asking the stage to elaborate with concrete data or reasoning",
	}
}
