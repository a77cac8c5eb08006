package review

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncator_LeavesShortTextUnchanged(t *testing.T) {
	tr := NewTruncator("gpt-4", zap.NewNop())
	assert.Equal(t, "short text", tr.Truncate("short text", 800))
}

func TestTruncator_EmptyTextAndZeroBudgetAreNoops(t *testing.T) {
	tr := NewTruncator("gpt-4", zap.NewNop())
	assert.Equal(t, "", tr.Truncate("", 800))
	assert.Equal(t, "anything", tr.Truncate("anything", 0))
}

func TestTruncateRunes_NeverSplitsAMultiByteRune(t *testing.T) {
	text := "日本語のテキストです"
	out := truncateRunes(text, 3)
	assert.Equal(t, "日本語", out)
	assert.True(t, strings.ToValidUTF8(out, "") == out)
}

func TestTruncateRunes_ShorterThanBudgetIsUnchanged(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 10))
}
