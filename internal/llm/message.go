package llm

import "encoding/json"

// MessageKind distinguishes the two halves of a model exchange.
type MessageKind string

const (
	// KindRequest is a message sent to the model: user text and tool returns.
	KindRequest MessageKind = "request"
	// KindResponse is a message produced by the model: text or tool calls.
	KindResponse MessageKind = "response"
)

// PartKind enumerates the kinds of parts a message can carry.
type PartKind string

const (
	// PartUserText is a user-authored prompt part.
	PartUserText PartKind = "user_text"
	// PartToolCall is a model-requested tool invocation.
	PartToolCall PartKind = "tool_call"
	// PartToolReturn is the result of a tool invocation, fed back to the model.
	PartToolReturn PartKind = "tool_return"
	// PartText is plain model output text.
	PartText PartKind = "text"
)

// Part is one unit of a message.
type Part struct {
	Kind       PartKind               `json:"kind"`
	Content    string                 `json:"content,omitempty"`
	ToolName   string                 `json:"toolName,omitempty"`
	ToolCallID string                 `json:"toolCallId,omitempty"`
	Args       json.RawMessage        `json:"args,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Message is one serialized step of the exchange with the model. Requests
// carry the instructions in force at the time they were sent; responses carry
// the model's parts.
type Message struct {
	Kind         MessageKind `json:"kind"`
	Instructions string      `json:"instructions,omitempty"`
	Parts        []Part      `json:"parts"`
}

// UserMessage builds a request message holding a single user text part.
func UserMessage(instructions, text string) Message {
	return Message{
		Kind:         KindRequest,
		Instructions: instructions,
		Parts:        []Part{{Kind: PartUserText, Content: text}},
	}
}
