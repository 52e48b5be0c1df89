package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with injectable failures.
type memStore struct {
	mu       sync.Mutex
	blobs    map[string]json.RawMessage
	saveErr  error
	saves    int
	failures int
}

func newMemStore() *memStore {
	return &memStore{blobs: map[string]json.RawMessage{}}
}

func (m *memStore) SaveAgentSession(ctx context.Context, user, sessionID string, blob json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		m.failures++
		return m.saveErr
	}
	m.blobs[sessionID] = blob
	return nil
}

func (m *memStore) GetAgentSession(ctx context.Context, user, sessionID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[sessionID], nil
}

func (m *memStore) ListAgentSessionsByWorkbook(ctx context.Context, user, workbookID string) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []json.RawMessage
	for _, raw := range m.blobs {
		out = append(out, raw)
	}
	return out, nil
}

func (m *memStore) DeleteAgentSession(ctx context.Context, user, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, sessionID)
	return nil
}

func TestCreateSessionPersists(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)

	sess := svc.CreateSession(context.Background(), "u1", "s1", "wb1")
	require.NotNil(t, sess)
	assert.Contains(t, store.blobs, "s1")
}

func TestGetSessionLoadsFromStoreOnce(t *testing.T) {
	store := newMemStore()
	seed := New("s1", "u1", "wb1")
	raw, err := seed.MarshalBlob()
	require.NoError(t, err)
	store.blobs["s1"] = raw

	svc := NewService(store)
	first, err := svc.GetSession(context.Background(), "s1", "u1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "wb1", first.WorkbookID)

	// Second access hits the cache and returns the same pointer.
	second, err := svc.GetSession(context.Background(), "s1", "u1")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestGetSessionMissReturnsNilNil(t *testing.T) {
	svc := NewService(newMemStore())
	sess, err := svc.GetSession(context.Background(), "absent", "u1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestUpdateSessionToleratesPersistFailure(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("service unavailable")
	svc := NewService(store)

	sess := New("s1", "u1", "wb1")
	svc.UpdateSession(context.Background(), sess, "u1")

	// Write-through retried but never raised; the cache holds the session.
	assert.Equal(t, persistAttempts, store.failures)
	cached, err := svc.GetSession(context.Background(), "s1", "u1")
	require.NoError(t, err)
	assert.Same(t, sess, cached)
}

func TestDeleteSessionEvictsAndRemoves(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	sess := svc.CreateSession(context.Background(), "u1", "s1", "wb1")

	require.NoError(t, svc.DeleteSession(context.Background(), sess, "u1"))
	assert.NotContains(t, store.blobs, "s1")

	got, err := svc.GetSession(context.Background(), "s1", "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionsForWorkbookPrefersCache(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	cached := svc.CreateSession(context.Background(), "u1", "s1", "wb1")

	out, err := svc.SessionsForWorkbook(context.Background(), "wb1", "u1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Same(t, cached, out[0])
}

func TestSessionsForWorkbookLoadsFromStore(t *testing.T) {
	store := newMemStore()
	for _, id := range []string{"s1", "s2"} {
		raw, err := New(id, "u1", "wb1").MarshalBlob()
		require.NoError(t, err)
		store.blobs[id] = raw
	}
	store.blobs["broken"] = []byte(`{"name":"no id"}`)

	svc := NewService(store)
	out, err := svc.SessionsForWorkbook(context.Background(), "wb1", "u1")
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestCleanupInactiveSessions(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)

	stale := svc.CreateSession(context.Background(), "u1", "old", "wb1")
	stale.LastActivity = time.Now().UTC().Add(-48 * time.Hour)
	svc.CreateSession(context.Background(), "u1", "fresh", "wb1")

	evicted := svc.CleanupInactiveSessions(24 * time.Hour)
	assert.Equal(t, 1, evicted)

	// The evicted session reloads from its persisted copy.
	reloaded, err := svc.GetSession(context.Background(), "old", "u1")
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.NotSame(t, stale, reloaded)
}
