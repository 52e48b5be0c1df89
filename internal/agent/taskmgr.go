package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/scratchpad-ai/agent-server/internal/api"
	"github.com/scratchpad-ai/agent-server/internal/session"
)

const (
	// taskSoftTimeout bounds one turn. Exceeding it surfaces as an error
	// frame, not a silent drop.
	taskSoftTimeout = 1800 * time.Second

	// taskHistoryCap bounds the finished-task table, newest first.
	taskHistoryCap = 1000
)

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

// The task lifecycle states.
const (
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// TaskRecord is one active background task.
type TaskRecord struct {
	TaskID    string     `json:"task_id"`
	SessionID string     `json:"session_id"`
	RunID     string     `json:"run_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Status    TaskStatus `json:"status"`

	cancel        context.CancelFunc
	hardCancelled bool
}

// TaskHistoryItem is a finished task, the record minus its handle.
type TaskHistoryItem struct {
	TaskID    string     `json:"task_id"`
	SessionID string     `json:"session_id"`
	RunID     string     `json:"run_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Status    TaskStatus `json:"status"`
}

// Response is the completion payload delivered to the client when a turn
// finishes.
type Response struct {
	RunID            string `json:"run_id"`
	ResponseMessage  string `json:"response_message"`
	ResponseSummary  string `json:"response_summary,omitempty"`
	RequestSummary   string `json:"request_summary,omitempty"`
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	Cancelled        bool   `json:"cancelled,omitempty"`
}

// TaskCallbacks deliver turn events back to the transport layer. Nil fields
// are tolerated.
type TaskCallbacks struct {
	OnProgress func(runID, stage string, data map[string]interface{})
	OnComplete func(resp *Response)
	OnError    func(runID string, err error)
}

// TurnFunc executes one turn against the model and tools. The task manager
// owns task bookkeeping and session updates; the turn body is injected so the
// wiring layer can assemble the workbook snapshot, prompt, and tool set.
type TurnFunc func(ctx context.Context, sess *session.Session, req *TurnRequest, runID string, onProgress ProgressFunc) (*RunResult, error)

// TaskManager launches each user turn as a tracked, cancellable background
// task and serializes turns per session.
type TaskManager struct {
	log      *logrus.Entry
	sessions *session.Service
	runs     *RunStateManager
	turn     TurnFunc

	mu              sync.Mutex
	active          map[string]*TaskRecord
	activeBySession map[string]string
	history         []TaskHistoryItem
	wg              sync.WaitGroup
}

// NewTaskManager builds a task manager over the given session service and run
// registry.
func NewTaskManager(sessions *session.Service, runs *RunStateManager, turn TurnFunc) *TaskManager {
	return &TaskManager{
		log:             logrus.WithField("component", "task-manager"),
		sessions:        sessions,
		runs:            runs,
		turn:            turn,
		active:          map[string]*TaskRecord{},
		activeBySession: map[string]string{},
	}
}

// StartMessageTask spawns the background task for one user turn and returns
// its task and run ids immediately. A second message for a session whose task
// is still running is rejected with a conflict error.
func (m *TaskManager) StartMessageTask(sess *session.Session, req *TurnRequest, callbacks TaskCallbacks) (taskID, runID string, err error) {
	taskID = uuid.NewString()
	runID = uuid.NewString()

	m.mu.Lock()
	if existing, busy := m.activeBySession[sess.ID]; busy {
		m.mu.Unlock()
		return "", "", api.AsErrConflict(
			"session %s already has task %s running", sess.ID, existing)
	}
	ctx, cancel := context.WithTimeout(context.Background(), taskSoftTimeout)
	now := time.Now().UTC()
	record := &TaskRecord{
		TaskID:    taskID,
		SessionID: sess.ID,
		RunID:     runID,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    TaskRunning,
		cancel:    cancel,
	}
	m.active[taskID] = record
	m.activeBySession[sess.ID] = taskID
	m.mu.Unlock()

	// Register the run before the ids are handed back so a cancel that arrives
	// immediately passes the session-ownership check.
	m.runs.StartRun(sess.ID, runID)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.runTask(ctx, record, sess, req, callbacks)
	}()

	return taskID, runID, nil
}

func (m *TaskManager) runTask(ctx context.Context, record *TaskRecord, sess *session.Session, req *TurnRequest, callbacks TaskCallbacks) {
	log := m.log.WithFields(logrus.Fields{
		"task_id":    record.TaskID,
		"session_id": sess.ID,
		"run_id":     record.RunID,
	})

	sess.AppendUserMessage(req.Message)

	onProgress := func(stage string, data map[string]interface{}) {
		if callbacks.OnProgress != nil {
			callbacks.OnProgress(record.RunID, stage, data)
		}
	}

	result, err := m.turn(ctx, sess, req, record.RunID, onProgress)
	defer m.runs.DeleteRun(record.RunID)

	// Persistence outlives the task context; a timed-out or cancelled turn
	// still writes its partial history through.
	persistCtx, cancelPersist := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelPersist()

	switch {
	case err == nil:
		sess.AppendAssistantMessage(result.Output.ResponseMessage, result.Model, result.Usage)
		sess.AppendSummary(result.Output.RequestSummary, result.Output.ResponseSummary)
		sess.RenameIfDefault(deriveSessionName(result.Output.RequestSummary, req.Message))
		m.sessions.UpdateSession(persistCtx, sess, sess.UserID)
		m.finish(record, TaskCompleted)
		if callbacks.OnComplete != nil {
			callbacks.OnComplete(&Response{
				RunID:            record.RunID,
				ResponseMessage:  result.Output.ResponseMessage,
				ResponseSummary:  result.Output.ResponseSummary,
				RequestSummary:   result.Output.RequestSummary,
				Model:            result.Model,
				PromptTokens:     result.Usage.PromptTokens,
				CompletionTokens: result.Usage.CompletionTokens,
			})
		}

	case m.isHardCancelled(record):
		log.Info("task hard-cancelled")
		m.sessions.UpdateSession(persistCtx, sess, sess.UserID)
		m.finish(record, TaskCancelled)
		// No completion frame on a hard cancel; clients reconcile via the
		// task status endpoint.

	case isRunStopped(err):
		log.Info("task cancelled")
		m.sessions.UpdateSession(persistCtx, sess, sess.UserID)
		m.finish(record, TaskCancelled)
		// Cancellation is a regular completion carrying a marker, not an
		// error, so the session record stays consistent on the client.
		if callbacks.OnComplete != nil {
			callbacks.OnComplete(&Response{
				RunID:           record.RunID,
				ResponseMessage: "Run cancelled",
				Model:           modelName(result),
				Cancelled:       true,
			})
		}

	case ctx.Err() == context.DeadlineExceeded:
		log.Warn("task exceeded soft timeout")
		m.sessions.UpdateSession(persistCtx, sess, sess.UserID)
		m.finish(record, TaskFailed)
		if callbacks.OnError != nil {
			callbacks.OnError(record.RunID,
				fmt.Errorf("the run exceeded the %s time limit and was stopped", taskSoftTimeout))
		}

	default:
		log.WithError(err).Error("task failed")
		m.sessions.UpdateSession(persistCtx, sess, sess.UserID)
		m.finish(record, TaskFailed)
		if callbacks.OnError != nil {
			callbacks.OnError(record.RunID, err)
		}
	}
}

// finish moves a task from the active table to the history table, newest
// first, capped.
func (m *TaskManager) finish(record *TaskRecord, status TaskStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.Status = status
	record.UpdatedAt = time.Now().UTC()
	delete(m.active, record.TaskID)
	if m.activeBySession[record.SessionID] == record.TaskID {
		delete(m.activeBySession, record.SessionID)
	}

	item := TaskHistoryItem{
		TaskID:    record.TaskID,
		SessionID: record.SessionID,
		RunID:     record.RunID,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
		Status:    record.Status,
	}
	m.history = append([]TaskHistoryItem{item}, m.history...)
	if len(m.history) > taskHistoryCap {
		m.history = m.history[:taskHistoryCap]
	}
}

// HardCancelTask aborts the underlying task without involving the run state
// manager. No completion frame is delivered; clients reconcile via task
// status. CancelRun via the state manager is the preferred path.
func (m *TaskManager) HardCancelTask(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.active[taskID]
	if !ok {
		return false
	}
	record.hardCancelled = true
	record.cancel()
	return true
}

func (m *TaskManager) isHardCancelled(record *TaskRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return record.hardCancelled
}

// TaskStatusOf returns the status of an active or historical task.
func (m *TaskManager) TaskStatusOf(taskID string) (TaskStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.active[taskID]; ok {
		return record.Status, true
	}
	for _, item := range m.history {
		if item.TaskID == taskID {
			return item.Status, true
		}
	}
	return "", false
}

// ActiveTaskCount returns the number of in-flight tasks.
func (m *TaskManager) ActiveTaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// TaskHistory returns a copy of the finished-task table, newest first.
func (m *TaskManager) TaskHistory() []TaskHistoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TaskHistoryItem, len(m.history))
	copy(out, m.history)
	return out
}

// Wait blocks until all in-flight tasks finish. Used for shutdown and tests.
func (m *TaskManager) Wait() {
	m.wg.Wait()
}

func isRunStopped(err error) bool {
	_, ok := err.(*RunStoppedError)
	return ok
}

func modelName(result *RunResult) string {
	if result == nil {
		return ""
	}
	return result.Model
}

// deriveSessionName titles a session from its first turn. The request summary
// is preferred; the raw message is the fallback.
func deriveSessionName(requestSummary, message string) string {
	name := strings.TrimSpace(requestSummary)
	if name == "" {
		name = strings.TrimSpace(message)
	}
	if name == "" {
		return "Untitled chat"
	}
	const maxNameLen = 60
	if len(name) > maxNameLen {
		name = strings.TrimSpace(name[:maxNameLen]) + "…"
	}
	return name
}
