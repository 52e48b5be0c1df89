package agent

import (
	"sync"

	"golang.org/x/exp/maps"
)

// RunStatus is the lifecycle state of one run.
type RunStatus string

// The run lifecycle states.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
)

// RunState tracks one in-flight run.
type RunState struct {
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id"`
	Status    RunStatus `json:"status"`
}

// RunStateManager is the process-wide registry of in-flight runs and their
// cancellation status. Cancellation is sticky: once a run is cancelled it
// never transitions back to running.
type RunStateManager struct {
	mu   sync.RWMutex
	runs map[string]*RunState
}

// NewRunStateManager creates an empty registry.
func NewRunStateManager() *RunStateManager {
	return &RunStateManager{runs: map[string]*RunState{}}
}

// StartRun registers a run as running. A run that was cancelled before it
// started stays cancelled; the runner observes this at its next poll.
func (m *RunStateManager) StartRun(sessionID, runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.runs[runID]; ok {
		if existing.Status == RunCancelled {
			return
		}
		existing.Status = RunRunning
		return
	}
	m.runs[runID] = &RunState{RunID: runID, SessionID: sessionID, Status: RunRunning}
}

// CancelRun flips a run to cancelled. Unknown runs are registered as
// cancelled so a cancel that races run startup still wins.
func (m *RunStateManager) CancelRun(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.runs[runID]; ok {
		existing.Status = RunCancelled
		return
	}
	m.runs[runID] = &RunState{RunID: runID, Status: RunCancelled}
}

// CompleteRun marks a run completed unless it was cancelled.
func (m *RunStateManager) CompleteRun(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.runs[runID]; ok && existing.Status != RunCancelled {
		existing.Status = RunCompleted
	}
}

// DeleteRun removes a run from the registry.
func (m *RunStateManager) DeleteRun(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, runID)
}

// IsCancelled reports whether a run has been cancelled.
func (m *RunStateManager) IsCancelled(runID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.runs[runID]
	return ok && state.Status == RunCancelled
}

// Exists reports whether a run is registered for the given session.
func (m *RunStateManager) Exists(sessionID, runID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.runs[runID]
	return ok && state.SessionID == sessionID
}

// Snapshot returns a copy of the run table for debug surfaces.
func (m *RunStateManager) Snapshot() []RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RunState, 0, len(m.runs))
	for _, id := range maps.Keys(m.runs) {
		out = append(out, *m.runs[id])
	}
	return out
}
