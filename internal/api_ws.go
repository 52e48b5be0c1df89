package internal

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/scratchpad-ai/agent-server/internal/agent"
	"github.com/scratchpad-ai/agent-server/internal/auth"
	"github.com/scratchpad-ai/agent-server/internal/llm"
	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
	"github.com/scratchpad-ai/agent-server/internal/ws"
	pkgws "github.com/scratchpad-ai/agent-server/pkg/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin enforcement belongs to the fronting proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades the chat socket for a session and demultiplexes
// inbound frames until the peer goes away.
func (s *Server) handleWebsocket(c echo.Context) error {
	claims := auth.UserFromContext(c)
	sess, err := s.loadSession(c, claims.UserID)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "websocket upgrade failed")
	}

	sock := pkgws.Wrap[ws.InboundFrame, ws.OutboundFrame]("chat-"+sess.ID, conn)
	s.conns.Connect(sess.ID, sock)

	log := s.log.WithFields(logrus.Fields{"session_id": sess.ID, "user_id": claims.UserID})
	log.Info("chat socket connected")

	defer func() {
		s.conns.Disconnect(sess.ID, sock)
		if cErr := sock.Close(); cErr != nil {
			log.WithError(cErr).Debug("closing chat socket")
		}
		log.Info("chat socket disconnected")
	}()

	for frame := range sock.Inbox {
		s.handleInboundFrame(sess.ID, claims.UserID, frame, log)
	}
	if wErr := sock.Error(); wErr != nil {
		log.WithError(wErr).Warn("chat socket terminated with error")
	}
	return nil
}

func (s *Server) handleInboundFrame(sessionID, userID string, frame ws.InboundFrame, log *logrus.Entry) {
	s.conns.TrackActivity(sessionID, frame.Type)

	switch frame.Type {
	case ws.FrameMessage:
		req := frame.TurnRequest
		if req.Message == "" {
			s.conns.Send(sessionID, ws.ErrorFrame("", "message must not be empty"))
			return
		}
		// The session was resolved at connect time; reload so a frame after a
		// cache eviction still finds it.
		sess, err := s.sessions.GetSession(context.Background(), sessionID, userID)
		if err != nil || sess == nil {
			s.conns.Send(sessionID, ws.ErrorFrame("", "session not found"))
			return
		}
		if _, _, err := s.tasks.StartMessageTask(sess, &req, s.frameCallbacks(sessionID)); err != nil {
			s.conns.Send(sessionID, ws.ErrorFrame("", errorMessage(err)))
		}

	case ws.FrameCancel:
		if frame.RunID == "" {
			s.conns.Send(sessionID, ws.ErrorFrame("", "cancel frame missing run_id"))
			return
		}
		if !s.runs.Exists(sessionID, frame.RunID) {
			s.conns.Send(sessionID, ws.ErrorFrame(frame.RunID, "run not found for this session"))
			return
		}
		s.runs.CancelRun(frame.RunID)

	case ws.FramePing:
		s.conns.Send(sessionID, ws.PongFrame())

	default:
		log.WithField("type", frame.Type).Warn("dropping unknown frame type")
	}
}

// errorMessage maps the turn failure taxonomy to the user-visible message.
// Provider failures are rewritten to actionable text; internal failures stay
// generic.
func errorMessage(err error) string {
	var (
		provider *llm.ProviderError
		limit    *agent.TokenLimitError
		internal *agent.InternalError
		upstream *scratchpad.ClientError
	)
	switch {
	case errors.As(err, &provider):
		return provider.ActionableMessage()
	case errors.As(err, &limit):
		return limit.Error()
	case errors.As(err, &upstream):
		return upstream.TrimmedBody()
	case errors.As(err, &internal):
		return "An internal error occurred while processing the message."
	default:
		return err.Error()
	}
}
