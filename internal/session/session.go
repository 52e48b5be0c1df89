// Package session holds the chat session model, its persisted blob codec,
// and the write-through session cache.
package session

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/scratchpad-ai/agent-server/internal/llm"
)

// Role is a chat message author.
type Role string

// The chat roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one display-level chat entry. Timestamps are wall-clock UTC.
type ChatMessage struct {
	Message   string    `json:"message"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	// Assistant messages optionally carry the model and token accounting.
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// SummaryItem is one turn's request/response summary pair.
type SummaryItem struct {
	RequestSummary  string    `json:"request_summary"`
	ResponseSummary string    `json:"response_summary"`
	Timestamp       time.Time `json:"timestamp"`
}

// Session is one chat session bound to a workbook. ID, UserID and WorkbookID
// are immutable after creation. Name, LastActivity and the histories are
// mutated by the single task goroutine while HTTP handlers read them, so all
// access to those goes through the locked methods; handlers serialize a
// Snapshot, never the live struct.
type Session struct {
	ID         string
	UserID     string
	WorkbookID string
	CreatedAt  time.Time

	mu           sync.RWMutex
	Name         string
	LastActivity time.Time

	ChatHistory    []ChatMessage
	SummaryHistory []SummaryItem

	// AgentHistory is the raw structured exchange with the model across the
	// conversation. It is process-local, not part of the persisted blob, and
	// only ever touched by the session's single task goroutine.
	AgentHistory []llm.Message
}

// View is the serializable snapshot of a session handed to HTTP responses.
type View struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	UserID         string        `json:"user_id"`
	WorkbookID     string        `json:"workbook_id"`
	CreatedAt      time.Time     `json:"created_at"`
	LastActivity   time.Time     `json:"last_activity"`
	ChatHistory    []ChatMessage `json:"chat_history"`
	SummaryHistory []SummaryItem `json:"summary_history"`
}

const defaultNamePrefix = "New chat "

// New builds a fresh session with a default display name.
func New(id, userID, workbookID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           id,
		Name:         defaultNamePrefix + now.Format("2006-01-02 15:04"),
		UserID:       userID,
		WorkbookID:   workbookID,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// HasDefaultName reports whether the session still carries its generated
// "New chat …" title.
func (s *Session) HasDefaultName() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strings.HasPrefix(s.Name, defaultNamePrefix)
}

// RenameIfDefault replaces a still-generated title and reports whether it did.
func (s *Session) RenameIfDefault(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !strings.HasPrefix(s.Name, defaultNamePrefix) {
		return false
	}
	s.Name = name
	return true
}

// Touch refreshes the last-activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
}

func (s *Session) touchLocked() {
	s.LastActivity = time.Now().UTC()
}

// LastActive returns the last-activity timestamp.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastActivity
}

// AppendUserMessage appends a user chat entry and refreshes activity.
func (s *Session) AppendUserMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ChatHistory = append(s.ChatHistory, ChatMessage{
		Message:   text,
		Role:      RoleUser,
		Timestamp: time.Now().UTC(),
	})
	s.touchLocked()
}

// AppendAssistantMessage appends an assistant chat entry with its accounting.
func (s *Session) AppendAssistantMessage(text, model string, usage llm.Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ChatHistory = append(s.ChatHistory, ChatMessage{
		Message:          text,
		Role:             RoleAssistant,
		Timestamp:        time.Now().UTC(),
		Model:            model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	})
	s.touchLocked()
}

// AppendSummary appends one turn's summary pair.
func (s *Session) AppendSummary(requestSummary, responseSummary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SummaryHistory = append(s.SummaryHistory, SummaryItem{
		RequestSummary:  requestSummary,
		ResponseSummary: responseSummary,
		Timestamp:       time.Now().UTC(),
	})
}

// Snapshot copies the mutable state into a serializable view.
func (s *Session) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat := make([]ChatMessage, len(s.ChatHistory))
	copy(chat, s.ChatHistory)
	summaries := make([]SummaryItem, len(s.SummaryHistory))
	copy(summaries, s.SummaryHistory)
	return View{
		ID:             s.ID,
		Name:           s.Name,
		UserID:         s.UserID,
		WorkbookID:     s.WorkbookID,
		CreatedAt:      s.CreatedAt,
		LastActivity:   s.LastActivity,
		ChatHistory:    chat,
		SummaryHistory: summaries,
	}
}

// Summary is the listing-level view of a session.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	WorkbookID   string    `json:"workbook_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

// Summarize produces the listing view.
func (s *Session) Summarize() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summary{
		ID:           s.ID,
		Name:         s.Name,
		WorkbookID:   s.WorkbookID,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		MessageCount: len(s.ChatHistory),
	}
}

// blob is the persisted shape. No schema version is persisted; forward
// compatibility relies on additive fields.
type blob struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	UserID         string        `json:"user_id"`
	LastActivity   time.Time     `json:"last_activity"`
	CreatedAt      time.Time     `json:"created_at"`
	WorkbookID     string        `json:"workbook_id"`
	ChatHistory    []ChatMessage `json:"chat_history"`
	SummaryHistory []SummaryItem `json:"summary_history"`
}

// MarshalBlob serializes the session to its opaque persisted form.
func (s *Session) MarshalBlob() (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bs, err := json.Marshal(blob{
		ID:             s.ID,
		Name:           s.Name,
		UserID:         s.UserID,
		LastActivity:   s.LastActivity,
		CreatedAt:      s.CreatedAt,
		WorkbookID:     s.WorkbookID,
		ChatHistory:    s.ChatHistory,
		SummaryHistory: s.SummaryHistory,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshalling session blob")
	}
	return bs, nil
}

// FromBlob deserializes a persisted session blob.
func FromBlob(raw json.RawMessage) (*Session, error) {
	var b blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, errors.Wrap(err, "unmarshalling session blob")
	}
	if b.ID == "" {
		return nil, errors.New("session blob missing id")
	}
	return &Session{
		ID:             b.ID,
		Name:           b.Name,
		UserID:         b.UserID,
		WorkbookID:     b.WorkbookID,
		CreatedAt:      b.CreatedAt,
		LastActivity:   b.LastActivity,
		ChatHistory:    b.ChatHistory,
		SummaryHistory: b.SummaryHistory,
	}, nil
}
