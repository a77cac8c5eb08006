package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/agentflow/internal/llmgateway"
)

// GenerateTitle is Title Inference (C8): one LLM call producing a short
// human title for a newly submitted job. On failure or an empty
// response it falls back to the first non-empty line of
// proposalContent. Either way the result is clipped to maxChars on a
// rune boundary, with no ellipsis — title generation never blocks job
// creation, so this function never returns an error.
func GenerateTitle(ctx context.Context, llm llmgateway.Client, proposalContent string, maxChars int) string {
	fallback := truncateRunes(firstNonEmptyLine(proposalContent), maxChars)

	prompt := fmt.Sprintf("Summarize the following proposal in a short title of at most %d characters. Respond with the title text only, nothing else.\n\n%s", maxChars, proposalContent)

	text, err := llm.Complete(ctx, prompt, llmgateway.Options{})
	if err != nil {
		return fallback
	}

	title := strings.TrimSpace(text)
	if title == "" {
		return fallback
	}
	return truncateRunes(title, maxChars)
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
