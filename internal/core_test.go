package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scratchpad-ai/agent-server/internal/auth"
	"github.com/scratchpad-ai/agent-server/internal/config"
	"github.com/scratchpad-ai/agent-server/internal/ws"
)

const testJWTSecret = "core-test-secret"

// newTestServer builds a Server whose Scratchpad client points at a stub
// service answering 200 {} to everything.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
}

// newTestServerWith builds a Server over a stub Scratchpad service with the
// given handler.
func newTestServerWith(t *testing.T, handler http.HandlerFunc) *Server {
	t.Helper()
	stub := httptest.NewServer(handler)
	t.Cleanup(stub.Close)

	s, err := NewServer(&config.Config{
		Port:                0,
		ScratchpadServerURL: stub.URL,
		ScratchpadAuthToken: "svc-token",
		JWTSecret:           testJWTSecret,
		LLMProviderURL:      "http://localhost:0",
		ModelName:           "test-model",
	})
	require.NoError(t, err)
	return s
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + raw
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestRootEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "scratchpad-agent", body["server"])
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alive", body["status"])
}

func TestAuthenticatedRoutesRejectMissingToken(t *testing.T) {
	s := newTestServer(t)
	for _, target := range []string{"/sessions", "/sessions?workbook_id=wb1"} {
		rec := doRequest(s, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestCreateSessionRequiresSnapshotID(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	req.Header.Set("Authorization", bearer(t, "u1"))
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAndFetchSession(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/sessions?snapshot_id=wb1", nil)
	req.Header.Set("Authorization", bearer(t, "u1"))
	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Session struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"session"`
		AvailableCapabilities []string `json:"available_capabilities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Session.ID)
	assert.True(t, strings.HasPrefix(created.Session.Name, "New chat "))
	assert.Contains(t, created.AvailableCapabilities, "data:field-tools")

	get := httptest.NewRequest(http.MethodGet, "/sessions/"+created.Session.ID, nil)
	get.Header.Set("Authorization", bearer(t, "u1"))
	rec = doRequest(s, get)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFetchSessionWrongUserIs404(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/sessions?snapshot_id=wb1", nil)
	req.Header.Set("Authorization", bearer(t, "u1"))
	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	get := httptest.NewRequest(http.MethodGet, "/sessions/"+created.Session.ID, nil)
	get.Header.Set("Authorization", bearer(t, "someone-else"))
	rec = doRequest(s, get)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostMessageRejectsEmptyMessage(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/sessions?snapshot_id=wb1", nil)
	req.Header.Set("Authorization", bearer(t, "u1"))
	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	post := httptest.NewRequest(http.MethodPost,
		"/sessions/"+created.Session.ID+"/messages", strings.NewReader(`{"message":""}`))
	post.Header.Set("Content-Type", "application/json")
	post.Header.Set("Authorization", bearer(t, "u1"))
	rec = doRequest(s, post)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionFetchUpstreamFailureIsBadGateway(t *testing.T) {
	s := newTestServerWith(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream exploded"))
	})

	req := httptest.NewRequest(http.MethodGet, "/sessions/abc", nil)
	req.Header.Set("Authorization", bearer(t, "u1"))
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "upstream exploded", body["message"])
}

func TestCancelUnknownRunIs404(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/sessions?snapshot_id=wb1", nil)
	req.Header.Set("Authorization", bearer(t, "u1"))
	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	cancel := httptest.NewRequest(http.MethodPost,
		"/sessions/"+created.Session.ID+"/cancel", strings.NewReader(`{"run_id":"ghost"}`))
	cancel.Header.Set("Content-Type", "application/json")
	cancel.Header.Set("Authorization", bearer(t, "u1"))
	rec = doRequest(s, cancel)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, s.runs.IsCancelled("ghost"))
}

func TestCancelRunOfOtherSessionIs404(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/sessions?snapshot_id=wb1", nil)
	req.Header.Set("Authorization", bearer(t, "u1"))
	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// The run belongs to some other session.
	s.runs.StartRun("other-session", "r1")

	cancel := httptest.NewRequest(http.MethodPost,
		"/sessions/"+created.Session.ID+"/cancel", strings.NewReader(`{"run_id":"r1"}`))
	cancel.Header.Set("Content-Type", "application/json")
	cancel.Header.Set("Authorization", bearer(t, "u1"))
	rec = doRequest(s, cancel)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, s.runs.IsCancelled("r1"))
}

func TestCancelOwnRunSucceeds(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/sessions?snapshot_id=wb1", nil)
	req.Header.Set("Authorization", bearer(t, "u1"))
	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	s.runs.StartRun(created.Session.ID, "r1")

	cancel := httptest.NewRequest(http.MethodPost,
		"/sessions/"+created.Session.ID+"/cancel", strings.NewReader(`{"run_id":"r1"}`))
	cancel.Header.Set("Content-Type", "application/json")
	cancel.Header.Set("Authorization", bearer(t, "u1"))
	rec = doRequest(s, cancel)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.runs.IsCancelled("r1"))
}

func TestCancelFrameRequiresRunOwnership(t *testing.T) {
	s := newTestServer(t)

	s.runs.StartRun("other-session", "r1")
	s.handleInboundFrame("sess1", "u1", ws.InboundFrame{Type: ws.FrameCancel, RunID: "r1"}, s.log)
	assert.False(t, s.runs.IsCancelled("r1"))

	s.runs.StartRun("sess1", "r2")
	s.handleInboundFrame("sess1", "u1", ws.InboundFrame{Type: ws.FrameCancel, RunID: "r2"}, s.log)
	assert.True(t, s.runs.IsCancelled("r2"))
}

func TestUnknownTaskIs404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/tasks/absent", nil)
	req.Header.Set("Authorization", bearer(t, "u1"))
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugEndpointsAreOpen(t *testing.T) {
	s := newTestServer(t)
	for _, target := range []string{
		"/debug/websocket/status",
		"/debug/agent/run-state/status",
		"/debug/agent/task-manager/status",
	} {
		rec := doRequest(s, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}
}
