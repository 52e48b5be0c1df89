// Package ws defines the chat websocket frame schemas and the per-session
// connection registry.
package ws

import (
	"time"

	"github.com/scratchpad-ai/agent-server/internal/agent"
)

// Inbound frame types.
const (
	FrameMessage = "message"
	FrameCancel  = "cancel"
	FramePing    = "ping"
)

// Outbound frame types.
const (
	FrameProgress        = "progress"
	FrameMessageResponse = "message_response"
	FrameError           = "error"
	FramePong            = "pong"
)

// InboundFrame is any client frame; Type selects which fields matter. Message
// frames carry a full turn request inline.
type InboundFrame struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`

	agent.TurnRequest
}

// OutboundFrame is any server frame.
type OutboundFrame struct {
	Type      string      `json:"type"`
	RunID     string      `json:"run_id,omitempty"`
	Stage     string      `json:"stage,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ProgressFrame reports one step of a running turn.
func ProgressFrame(runID, stage string, data interface{}) OutboundFrame {
	return OutboundFrame{
		Type:      FrameProgress,
		RunID:     runID,
		Stage:     stage,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// ResponseFrame carries a turn's completion payload.
func ResponseFrame(resp *agent.Response) OutboundFrame {
	return OutboundFrame{
		Type:      FrameMessageResponse,
		RunID:     resp.RunID,
		Data:      resp,
		Timestamp: time.Now().UTC(),
	}
}

// ErrorFrame carries a turn failure.
func ErrorFrame(runID, message string) OutboundFrame {
	return OutboundFrame{
		Type:      FrameError,
		RunID:     runID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// PongFrame answers an application-level ping.
func PongFrame() OutboundFrame {
	return OutboundFrame{Type: FramePong, Timestamp: time.Now().UTC()}
}
