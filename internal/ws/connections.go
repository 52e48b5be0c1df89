package ws

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	pkgws "github.com/scratchpad-ai/agent-server/pkg/ws"
)

// Socket is the typed websocket carried by chat connections.
type Socket = pkgws.Websocket[InboundFrame, OutboundFrame]

// Connection is one live socket bound to a session.
type Connection struct {
	Sock             *Socket
	CreatedAt        time.Time
	LastActivityAt   time.Time
	LastActivityType string
}

// ConnectionStatus is the debug view of one connection.
type ConnectionStatus struct {
	SessionID        string    `json:"session_id"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	LastActivityType string    `json:"last_activity_type"`
}

// ConnectionManager tracks at most one live websocket per session id.
// Reconnects replace; the prior socket is considered abandoned.
type ConnectionManager struct {
	log *logrus.Entry

	mu    sync.Mutex
	conns map[string]*Connection
}

// NewConnectionManager creates an empty registry.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		log:   logrus.WithField("component", "connection-manager"),
		conns: map[string]*Connection{},
	}
}

// Connect registers a socket for a session, replacing any prior entry. The
// replaced socket is closed in the background.
func (m *ConnectionManager) Connect(sessionID string, sock *Socket) {
	now := time.Now().UTC()

	m.mu.Lock()
	prior := m.conns[sessionID]
	m.conns[sessionID] = &Connection{
		Sock:             sock,
		CreatedAt:        now,
		LastActivityAt:   now,
		LastActivityType: "connect",
	}
	m.mu.Unlock()

	if prior != nil {
		m.log.WithField("session_id", sessionID).Info("replacing existing connection")
		go func() { _ = prior.Sock.Close() }()
	}
}

// Disconnect removes the session's entry. When sock is non-nil the entry is
// only removed if it still holds that socket, so a late disconnect from an
// old socket cannot evict a fresh reconnect.
func (m *ConnectionManager) Disconnect(sessionID string, sock *Socket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.conns[sessionID]
	if !ok {
		return
	}
	if sock != nil && existing.Sock != sock {
		return
	}
	delete(m.conns, sessionID)
}

// Send delivers a frame to the session's socket, fire and forget. A dead or
// backed-up socket causes self-eviction of that connection only.
func (m *ConnectionManager) Send(sessionID string, frame OutboundFrame) {
	m.mu.Lock()
	conn, ok := m.conns[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}

	select {
	case conn.Sock.Outbox <- frame:
	case <-conn.Sock.Done:
		m.log.WithField("session_id", sessionID).Info("evicting dead connection")
		m.Disconnect(sessionID, conn.Sock)
	}
}

// TrackActivity updates the session connection's activity metadata for the
// debug surface.
func (m *ConnectionManager) TrackActivity(sessionID, activityType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.conns[sessionID]; ok {
		conn.LastActivityAt = time.Now().UTC()
		conn.LastActivityType = activityType
	}
}

// Status dumps the connection table.
func (m *ConnectionManager) Status() []ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ConnectionStatus, 0, len(m.conns))
	for id, conn := range m.conns {
		out = append(out, ConnectionStatus{
			SessionID:        id,
			CreatedAt:        conn.CreatedAt,
			LastActivityAt:   conn.LastActivityAt,
			LastActivityType: conn.LastActivityType,
		})
	}
	return out
}

// Count returns the number of live connections.
func (m *ConnectionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}
