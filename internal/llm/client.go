package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/sirupsen/logrus"
)

const (
	// defaultContextLength is assumed when the caller does not advertise one.
	defaultContextLength = 128000
	// maxProviderBodyBytes bounds how much of a provider error body we keep.
	maxProviderBodyBytes = 32 * 1024
)

// HTTPModel drives an OpenAI-compatible chat completions endpoint with tool
// calling.
type HTTPModel struct {
	log           *logrus.Entry
	cl            *http.Client
	baseURL       string
	apiKey        string
	name          string
	contextLength int
}

// NewHTTPModel builds a driver for the named model. A non-positive
// contextLength falls back to a conservative default.
func NewHTTPModel(baseURL, apiKey, name string, contextLength int) *HTTPModel {
	if contextLength <= 0 {
		contextLength = defaultContextLength
	}
	return &HTTPModel{
		log:           logrus.WithFields(logrus.Fields{"component": "llm", "model": name}),
		cl:            cleanhttp.DefaultPooledClient(),
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		name:          name,
		contextLength: contextLength,
	}
}

// Name returns the provider model identifier.
func (m *HTTPModel) Name() string { return m.name }

// ContextLength returns the advertised context window in tokens.
func (m *HTTPModel) ContextLength() int { return m.contextLength }

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string     `json:"type"`
	Function ToolSchema `json:"function"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []chatTool    `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Step performs one chat completion call and returns the typed envelope.
func (m *HTTPModel) Step(ctx context.Context, req StepRequest) (*StepResponse, error) {
	payload := chatRequest{
		Model:    m.name,
		Messages: flatten(req.Instructions, req.Messages),
	}
	for _, tool := range req.Tools {
		payload.Tools = append(payload.Tools, chatTool{Type: "function", Function: tool})
	}

	bs, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, m.baseURL+"/chat/completions", bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.cl.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{StatusCode: 0, Body: err.Error()}
	}
	defer func() {
		if cErr := resp.Body.Close(); cErr != nil {
			m.log.WithError(cErr).Warn("closing provider response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxProviderBodyBytes))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("decoding response: %v", err)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: "provider returned no choices"}
	}

	out := &StepResponse{Usage: Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}}

	choice := parsed.Choices[0].Message
	if len(choice.ToolCalls) > 0 {
		for _, tc := range choice.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: json.RawMessage(tc.Function.Arguments),
			})
		}
		return out, nil
	}

	out.Output = parseFinalOutput(choice.Content)
	return out, nil
}

// flatten converts the structured history into the provider's flat chat form,
// with the current instructions as the system message.
func flatten(instructions string, messages []Message) []chatMessage {
	out := []chatMessage{{Role: "system", Content: instructions}}
	for _, msg := range messages {
		switch msg.Kind {
		case KindRequest:
			for _, part := range msg.Parts {
				switch part.Kind {
				case PartUserText:
					out = append(out, chatMessage{Role: "user", Content: part.Content})
				case PartToolReturn:
					out = append(out, chatMessage{
						Role:       "tool",
						Content:    part.Content,
						ToolCallID: part.ToolCallID,
					})
				}
			}
		case KindResponse:
			var assistant chatMessage
			assistant.Role = "assistant"
			for _, part := range msg.Parts {
				switch part.Kind {
				case PartText:
					assistant.Content = part.Content
				case PartToolCall:
					assistant.ToolCalls = append(assistant.ToolCalls, chatToolCall{
						ID:   part.ToolCallID,
						Type: "function",
						Function: chatFunctionCall{
							Name:      part.ToolName,
							Arguments: string(part.Args),
						},
					})
				}
			}
			out = append(out, assistant)
		}
	}
	return out
}

// parseFinalOutput decodes the structured terminal response. Models that
// ignore the output contract still produce a usable response message.
func parseFinalOutput(content string) *FinalOutput {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var out FinalOutput
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil && out.ResponseMessage != "" {
		return &out
	}
	return &FinalOutput{ResponseMessage: content}
}
