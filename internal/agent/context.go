package agent

import (
	"context"
	"encoding/json"

	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
	"github.com/scratchpad-ai/agent-server/internal/session"
)

// StyleGuide is a named block of client-supplied guidance appended to the
// system prompt assets.
type StyleGuide struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ToolOverride is a client-supplied adjustment to a tool's surface, merged
// into the descriptors at construction time, never resolved at call time.
type ToolOverride struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// TurnRequest parameterizes one user turn. It arrives as the body of
// POST /sessions/{id}/messages or as an inbound "message" websocket frame.
type TurnRequest struct {
	Message            string                   `json:"message"`
	StyleGuides        []StyleGuide             `json:"style_guides,omitempty"`
	ToolOverrides      []ToolOverride           `json:"tool_overrides,omitempty"`
	Capabilities       []string                 `json:"capabilities,omitempty"`
	Model              string                   `json:"model,omitempty"`
	ViewID             string                   `json:"view_id,omitempty"`
	ReadFocus          []scratchpad.FocusedCell `json:"read_focus,omitempty"`
	WriteFocus         []scratchpad.FocusedCell `json:"write_focus,omitempty"`
	ActiveTableID      string                   `json:"active_table_id,omitempty"`
	RecordID           string                   `json:"record_id,omitempty"`
	ColumnID           string                   `json:"column_id,omitempty"`
	DataScope          DataScope                `json:"data_scope,omitempty"`
	CredentialID       string                   `json:"credential_id,omitempty"`
	MentionedTableIDs  []string                 `json:"mentioned_table_ids,omitempty"`
	ModelContextLength int                      `json:"model_context_length,omitempty"`
}

// CapabilitySet converts the request's capability strings to typed flags.
func (r *TurnRequest) CapabilitySet() []Capability {
	out := make([]Capability, 0, len(r.Capabilities))
	for _, c := range r.Capabilities {
		out = append(out, Capability(c))
	}
	return out
}

// RunContext is the per-turn bundle passed to every tool invocation. It is
// built fresh per turn; tools may mutate Preloaded and the mutation is
// visible to subsequent tool calls within the same turn.
type RunContext struct {
	Session        *session.Session
	UserID         string
	Workbook       *scratchpad.Workbook
	ActiveTableID  string
	ActiveRecordID string
	ActiveColumnID string
	Scope          DataScope
	ReadFocus      []scratchpad.FocusedCell
	WriteFocus     []scratchpad.FocusedCell
	// Preloaded maps table ws-id to the record snapshots already in context.
	Preloaded map[string][]scratchpad.Record
	// FilteredCounts maps table ws-id to the number of records hidden by the
	// active filter at preload time.
	FilteredCounts    map[string]int
	ViewID            string
	CredentialID      string
	MentionedTableIDs []string
	RunID             string
	Runs              *RunStateManager
}

// WriteFocusAllows reports whether a write targeting the (record, column)
// pair is permitted. An empty write-focus set permits everything.
func (rc *RunContext) WriteFocusAllows(recordWsID, columnWsID string) bool {
	if len(rc.WriteFocus) == 0 {
		return true
	}
	for _, cell := range rc.WriteFocus {
		if cell.RecordWsID == recordWsID && cell.ColumnWsID == columnWsID {
			return true
		}
	}
	return false
}

// AddPreloaded appends records into the preloaded snapshot for a table,
// deduplicating by ws-id (existing entries win).
func (rc *RunContext) AddPreloaded(tableID string, records []scratchpad.Record) int {
	seen := map[string]bool{}
	for _, rec := range rc.Preloaded[tableID] {
		seen[rec.ID.WsID] = true
	}
	added := 0
	for _, rec := range records {
		if seen[rec.ID.WsID] {
			continue
		}
		seen[rec.ID.WsID] = true
		rc.Preloaded[tableID] = append(rc.Preloaded[tableID], rec)
		added++
	}
	return added
}

// ReplacePreloaded swaps in a fresh snapshot of one record, appending it if
// it was not preloaded before. Field-level tools call this after a mutation
// so later tool calls see server state.
func (rc *RunContext) ReplacePreloaded(tableID string, record scratchpad.Record) {
	records := rc.Preloaded[tableID]
	for i := range records {
		if records[i].ID.WsID == record.ID.WsID {
			records[i] = record
			return
		}
	}
	rc.Preloaded[tableID] = append(records, record)
}

// PreloadedRecord finds a preloaded record by ws-id, or nil.
func (rc *RunContext) PreloadedRecord(tableID, recordWsID string) *scratchpad.Record {
	records := rc.Preloaded[tableID]
	for i := range records {
		if records[i].ID.WsID == recordWsID {
			return &records[i]
		}
	}
	return nil
}

// ToolReturn is what a tool invocation produces. Value is what the model
// sees; Content, when set, is the serialized payload recorded in history
// instead of Value. IsDataFetch marks returns eligible for data-key pruning
// by the history processor.
type ToolReturn struct {
	Value       string
	Content     string
	Metadata    map[string]interface{}
	IsDataFetch bool
}

// HistoryContent returns the string recorded as the tool-return part content.
func (tr ToolReturn) HistoryContent() string {
	if tr.Content != "" {
		return tr.Content
	}
	return tr.Value
}

// ToolInvoker executes one tool call. Invokers never return Go errors to the
// model; failures become descriptive strings in the return value so the model
// can self-correct.
type ToolInvoker func(ctx context.Context, rc *RunContext, args json.RawMessage) ToolReturn

// ToolDescriptor declares one tool bound to an agent instance. Descriptors
// are created at construction time per (capabilities, scope) tuple and live
// for the agent instance.
type ToolDescriptor struct {
	Name         string
	Description  string
	Schema       json.RawMessage
	TakesContext bool
	Async        bool
	Invoke       ToolInvoker
}
