package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	back "github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	// persistAttempts bounds the write-through retry; after that the
	// in-memory copy remains the truth for the active request.
	persistAttempts = 3
	persistInterval = 250 * time.Millisecond
)

// Store is the subset of the Scratchpad client the session cache persists
// through.
type Store interface {
	SaveAgentSession(ctx context.Context, user, sessionID string, blob json.RawMessage) error
	GetAgentSession(ctx context.Context, user, sessionID string) (json.RawMessage, error)
	ListAgentSessionsByWorkbook(ctx context.Context, user, workbookID string) ([]json.RawMessage, error)
	DeleteAgentSession(ctx context.Context, user, sessionID string) error
}

// Service is a write-through session cache: the in-memory session is the
// single writer during a live turn, and the API copy is a mirror.
type Service struct {
	log   *logrus.Entry
	store Store

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService builds a session service over the given store.
func NewService(store Store) *Service {
	return &Service{
		log:      logrus.WithField("component", "session-service"),
		store:    store,
		sessions: map[string]*Session{},
	}
}

// CreateSession builds a session with a default display name and persists it
// immediately.
func (s *Service) CreateSession(ctx context.Context, user, sessionID, workbookID string) *Session {
	sess := New(sessionID, user, workbookID)
	s.mu.Lock()
	s.sessions[sessionID] = sess
	s.mu.Unlock()

	s.persist(ctx, sess, user)
	return sess
}

// GetSession returns the cached session, loading it from the store on first
// access. A miss returns (nil, nil); the caller decides whether that is an
// error.
func (s *Service) GetSession(ctx context.Context, sessionID, user string) (*Session, error) {
	s.mu.RLock()
	cached, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	raw, err := s.store.GetAgentSession(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	sess, err := FromBlob(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent load may have won; keep the first entry so live turns keep
	// a stable pointer.
	if existing, ok := s.sessions[sessionID]; ok {
		return existing, nil
	}
	s.sessions[sessionID] = sess
	return sess, nil
}

// UpdateSession writes the session through to the store. Persist failures are
// logged, never raised; the in-memory truth prevails for the active request.
func (s *Service) UpdateSession(ctx context.Context, sess *Session, user string) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.persist(ctx, sess, user)
}

// DeleteSession evicts the cache entry and removes the persisted copy.
func (s *Service) DeleteSession(ctx context.Context, sess *Session, user string) error {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()

	return s.store.DeleteAgentSession(ctx, user, sess.ID)
}

// SessionsForWorkbook lists sessions bound to a workbook, populating the
// cache from the API when it holds no matching entries.
func (s *Service) SessionsForWorkbook(ctx context.Context, workbookID, user string) ([]*Session, error) {
	s.mu.RLock()
	var cached []*Session
	for _, sess := range s.sessions {
		if sess.WorkbookID == workbookID && sess.UserID == user {
			cached = append(cached, sess)
		}
	}
	s.mu.RUnlock()
	if len(cached) > 0 {
		return cached, nil
	}

	raws, err := s.store.ListAgentSessionsByWorkbook(ctx, user, workbookID)
	if err != nil {
		return nil, err
	}

	var out []*Session
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, raw := range raws {
		sess, err := FromBlob(raw)
		if err != nil {
			s.log.WithError(err).Warn("skipping undecodable session blob")
			continue
		}
		if existing, ok := s.sessions[sess.ID]; ok {
			sess = existing
		} else {
			s.sessions[sess.ID] = sess
		}
		out = append(out, sess)
	}
	return out, nil
}

// CleanupInactiveSessions evicts cache entries whose last activity is older
// than the cutoff. The API copy stays. Returns the eviction count.
func (s *Service) CleanupInactiveSessions(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.sessions {
		if sess.LastActive().Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.log.Infof("evicted %d inactive sessions from memory", evicted)
	}
	return evicted
}

func (s *Service) persist(ctx context.Context, sess *Session, user string) {
	raw, err := sess.MarshalBlob()
	if err != nil {
		s.log.WithError(err).WithField("session-id", sess.ID).Error("serializing session")
		return
	}

	policy := back.WithContext(back.WithMaxRetries(
		back.NewConstantBackOff(persistInterval), persistAttempts-1), ctx)
	err = back.Retry(func() error {
		return s.store.SaveAgentSession(ctx, user, sess.ID, raw)
	}, policy)
	if err != nil {
		s.log.WithError(err).WithField("session-id", sess.ID).
			Warn("failed to persist session; in-memory copy remains authoritative")
	}
}
