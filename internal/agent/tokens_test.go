package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scratchpad-ai/agent-server/internal/llm"
)

func TestEstimateTokensMonotone(t *testing.T) {
	base := []llm.Message{
		{Kind: llm.KindRequest, Parts: []llm.Part{{Kind: llm.PartUserText, Content: "hello"}}},
	}
	longer := []llm.Message{
		{Kind: llm.KindRequest, Parts: []llm.Part{{Kind: llm.PartUserText, Content: "hello there, world"}}},
	}

	assert.LessOrEqual(t, EstimateTokens("sys", base), EstimateTokens("sys", longer))
	assert.LessOrEqual(t, EstimateTokens("sys", base), EstimateTokens("a longer system prompt", base))
}

func TestEstimateTokensCountsAllParts(t *testing.T) {
	msg := llm.Message{
		Kind:         llm.KindRequest,
		Instructions: strings.Repeat("i", 30),
		Parts: []llm.Part{
			{Kind: llm.PartToolCall, ToolName: strings.Repeat("n", 30), Args: []byte(strings.Repeat("a", 30))},
			{Kind: llm.PartToolReturn, Content: strings.Repeat("c", 30)},
		},
	}
	assert.Equal(t, 120/charsPerToken, EstimateTokens("", []llm.Message{msg}))
}

func TestPrecheckPrompt(t *testing.T) {
	require.NoError(t, PrecheckPrompt(4000, 8000))

	err := PrecheckPrompt(12000, 8000)
	require.Error(t, err)
	limitErr, ok := err.(*TokenLimitError)
	require.True(t, ok)
	assert.True(t, limitErr.Prerun)
	assert.Contains(t, err.Error(), "exceeds 50% of the model's 8.0K token capacity")
}

func TestPostcheckUsage(t *testing.T) {
	require.NoError(t, PostcheckUsage(llm.Usage{TotalTokens: 8000}, 8000))

	err := PostcheckUsage(llm.Usage{TotalTokens: 8001}, 8000)
	require.Error(t, err)
	limitErr, ok := err.(*TokenLimitError)
	require.True(t, ok)
	assert.False(t, limitErr.Prerun)
}
