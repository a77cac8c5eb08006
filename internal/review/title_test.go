package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateTitle_UsesLLMResponseWhenPresent(t *testing.T) {
	llm := &fakeLLM{responses: []string{"AI-driven supply chain optimizer"}}
	got := GenerateTitle(context.Background(), llm, "A long proposal body about logistics.", 25)
	assert.Equal(t, "AI-driven supply chain op", got)
}

func TestGenerateTitle_FallsBackToFirstNonEmptyLineOnError(t *testing.T) {
	llm := &fakeLLM{errs: []error{errors.New("boom")}}
	proposal := "\n  \nFirst real line of the proposal\nsecond line"
	got := GenerateTitle(context.Background(), llm, proposal, 25)
	assert.Equal(t, "First real line of the pr", got)
}

func TestGenerateTitle_FallsBackOnEmptyResponse(t *testing.T) {
	llm := &fakeLLM{responses: []string{"   "}}
	got := GenerateTitle(context.Background(), llm, "Fallback title line\nmore", 25)
	assert.Equal(t, "Fallback title line", got)
}

func TestGenerateTitle_TruncatesOnRuneBoundary(t *testing.T) {
	llm := &fakeLLM{responses: []string{"日本語のタイトルはとても長いものになる可能性があります"}}
	got := GenerateTitle(context.Background(), llm, "proposal", 5)
	assert.Equal(t, "日本語のタ", got)
}

func TestFirstNonEmptyLine_SkipsBlankLines(t *testing.T) {
	assert.Equal(t, "hello", firstNonEmptyLine("\n\n  \nhello\nworld"))
	assert.Equal(t, "", firstNonEmptyLine("\n\n  \n"))
}
