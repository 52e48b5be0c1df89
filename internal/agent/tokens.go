package agent

import "github.com/scratchpad-ai/agent-server/internal/llm"

// charsPerToken is the heuristic ratio for the character-based estimator.
const charsPerToken = 3

// prerunBudgetDivisor caps the estimated prompt at 1/2 of the context window
// before a run; the model's own reported usage is checked against the full
// window afterwards.
const prerunBudgetDivisor = 2

// EstimateTokens estimates the token count of a prompt: instructions plus all
// stringifiable parts of the history. It is monotone in total character
// length.
func EstimateTokens(instructions string, messages []llm.Message) int {
	chars := len(instructions)
	for _, msg := range messages {
		chars += len(msg.Instructions)
		for _, part := range msg.Parts {
			chars += len(part.Content)
			chars += len(part.ToolName)
			chars += len(part.Args)
		}
	}
	return chars / charsPerToken
}

// PrecheckPrompt rejects a turn whose estimated prompt exceeds half the
// model's context window.
func PrecheckPrompt(estimated, contextLength int) error {
	if estimated > contextLength/prerunBudgetDivisor {
		return &TokenLimitError{Requested: estimated, Max: contextLength, Prerun: true}
	}
	return nil
}

// PostcheckUsage applies the model's actual reported usage against the full
// context window.
func PostcheckUsage(usage llm.Usage, contextLength int) error {
	if usage.TotalTokens > contextLength {
		return &TokenLimitError{Requested: usage.TotalTokens, Max: contextLength, Prerun: false}
	}
	return nil
}
