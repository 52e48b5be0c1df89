// Package llm defines the model driver interface the agent runner consumes
// and a thin HTTP driver for OpenAI-compatible chat completion providers.
package llm

import (
	"context"
	"encoding/json"
)

// ToolSchema describes one tool offered to the model.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Usage is the provider-reported token accounting for one step.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Add accumulates another step's usage.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// FinalOutput is the structured terminal response the model must emit to end
// a turn.
type FinalOutput struct {
	ResponseMessage string `json:"response_message"`
	ResponseSummary string `json:"response_summary"`
	RequestSummary  string `json:"request_summary"`
}

// StepRequest is one model call: instructions, the full (already processed)
// message history, and the bound tool schemas.
type StepRequest struct {
	Instructions string
	Messages     []Message
	Tools        []ToolSchema
}

// StepResponse is the typed envelope returned by a model step. Exactly one of
// Output and ToolCalls is populated.
type StepResponse struct {
	Output    *FinalOutput
	ToolCalls []ToolCall
	Usage     Usage
}

// Model drives a single LLM. Implementations must be safe for concurrent use.
type Model interface {
	Name() string
	ContextLength() int
	Step(ctx context.Context, req StepRequest) (*StepResponse, error)
}
