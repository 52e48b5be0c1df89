package internal

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/scratchpad-ai/agent-server/internal/agent"
	"github.com/scratchpad-ai/agent-server/internal/api"
	"github.com/scratchpad-ai/agent-server/internal/auth"
	"github.com/scratchpad-ai/agent-server/internal/session"
	"github.com/scratchpad-ai/agent-server/internal/ws"
	"github.com/scratchpad-ai/agent-server/version"
)

// inactiveSessionMaxAge is the cleanup cutoff for the in-memory session cache.
const inactiveSessionMaxAge = 24 * time.Hour

func (s *Server) getRoot(c echo.Context) (interface{}, error) {
	return map[string]string{
		"server":  "scratchpad-agent",
		"version": version.Version,
	}, nil
}

func (s *Server) getHealth(c echo.Context) (interface{}, error) {
	return map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "scratchpad-agent",
	}, nil
}

func (s *Server) postSession(c echo.Context) (interface{}, error) {
	claims := auth.UserFromContext(c)
	workbookID := c.QueryParam("snapshot_id")
	if workbookID == "" {
		return nil, api.AsValidationError("snapshot_id query parameter is required")
	}

	sess := s.sessions.CreateSession(c.Request().Context(), claims.UserID, uuid.NewString(), workbookID)
	return map[string]interface{}{
		"session":                sess.Summarize(),
		"available_capabilities": agent.AllCapabilities(),
	}, nil
}

func (s *Server) getSession(c echo.Context) (interface{}, error) {
	claims := auth.UserFromContext(c)
	sess, err := s.loadSession(c, claims.UserID)
	if err != nil {
		return nil, err
	}
	// A task goroutine may be appending to the live session; hand out a copy.
	return sess.Snapshot(), nil
}

func (s *Server) getSessions(c echo.Context) (interface{}, error) {
	claims := auth.UserFromContext(c)
	workbookID := c.QueryParam("workbook_id")
	if workbookID == "" {
		return nil, api.AsValidationError("workbook_id query parameter is required")
	}

	list, err := s.sessions.SessionsForWorkbook(c.Request().Context(), workbookID, claims.UserID)
	if err != nil {
		return nil, err
	}
	summaries := make([]session.Summary, 0, len(list))
	for _, sess := range list {
		summaries = append(summaries, sess.Summarize())
	}
	return map[string]interface{}{"sessions": summaries}, nil
}

func (s *Server) deleteSession(c echo.Context) (interface{}, error) {
	claims := auth.UserFromContext(c)
	sess, err := s.loadSession(c, claims.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.DeleteSession(c.Request().Context(), sess, claims.UserID); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

func (s *Server) postMessage(c echo.Context) (interface{}, error) {
	claims := auth.UserFromContext(c)
	sess, err := s.loadSession(c, claims.UserID)
	if err != nil {
		return nil, err
	}

	var req agent.TurnRequest
	if err := c.Bind(&req); err != nil {
		return nil, api.AsValidationError("invalid request body: %v", err)
	}
	if req.Message == "" {
		return nil, api.AsValidationError("message must not be empty")
	}

	taskID, runID, err := s.tasks.StartMessageTask(sess, &req, s.frameCallbacks(sess.ID))
	if err != nil {
		return nil, err
	}
	return map[string]string{"task_id": taskID, "run_id": runID}, nil
}

func (s *Server) postCancel(c echo.Context) (interface{}, error) {
	claims := auth.UserFromContext(c)
	sess, err := s.loadSession(c, claims.UserID)
	if err != nil {
		return nil, err
	}

	var body struct {
		RunID string `json:"run_id"`
	}
	if err := c.Bind(&body); err != nil {
		return nil, api.AsValidationError("invalid request body: %v", err)
	}
	if body.RunID == "" {
		return nil, api.AsValidationError("run_id must not be empty")
	}
	// Only runs registered to this session may be cancelled through it.
	if !s.runs.Exists(sess.ID, body.RunID) {
		return nil, api.AsErrNotFound("run %s not found for session %s", body.RunID, sess.ID)
	}

	s.runs.CancelRun(body.RunID)
	return map[string]bool{"success": true}, nil
}

func (s *Server) getTaskStatus(c echo.Context) (interface{}, error) {
	taskID := c.Param("task_id")
	status, ok := s.tasks.TaskStatusOf(taskID)
	if !ok {
		return nil, api.AsErrNotFound("task %s not found", taskID)
	}
	return map[string]interface{}{"task_id": taskID, "status": status}, nil
}

func (s *Server) postCleanup(c echo.Context) (interface{}, error) {
	evicted := s.sessions.CleanupInactiveSessions(inactiveSessionMaxAge)
	return map[string]int{"evicted": evicted}, nil
}

// loadSession resolves the :session_id path parameter for the authenticated
// user.
func (s *Server) loadSession(c echo.Context, userID string) (*session.Session, error) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return nil, api.AsValidationError("session_id is required")
	}
	sess, err := s.sessions.GetSession(c.Request().Context(), sessionID, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, api.AsErrNotFound("session %s not found", sessionID)
	}
	if sess.UserID != userID {
		return nil, api.AsErrNotFound("session %s not found", sessionID)
	}
	return sess, nil
}

// frameCallbacks routes turn events for a session onto its websocket.
func (s *Server) frameCallbacks(sessionID string) agent.TaskCallbacks {
	return agent.TaskCallbacks{
		OnProgress: func(runID, stage string, data map[string]interface{}) {
			s.conns.Send(sessionID, ws.ProgressFrame(runID, stage, data))
		},
		OnComplete: func(resp *agent.Response) {
			s.conns.Send(sessionID, ws.ResponseFrame(resp))
		},
		OnError: func(runID string, err error) {
			s.conns.Send(sessionID, ws.ErrorFrame(runID, errorMessage(err)))
		},
	}
}
