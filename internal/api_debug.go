package internal

import "github.com/labstack/echo/v4"

func (s *Server) getWebsocketStatus(c echo.Context) (interface{}, error) {
	return map[string]interface{}{
		"connection_count": s.conns.Count(),
		"connections":      s.conns.Status(),
	}, nil
}

func (s *Server) getRunStateStatus(c echo.Context) (interface{}, error) {
	return map[string]interface{}{"runs": s.runs.Snapshot()}, nil
}

func (s *Server) getTaskManagerStatus(c echo.Context) (interface{}, error) {
	return map[string]interface{}{
		"active_task_count": s.tasks.ActiveTaskCount(),
		"task_history":      s.tasks.TaskHistory(),
	}, nil
}
