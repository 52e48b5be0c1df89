package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
)

func runRoute(t *testing.T, handler func(echo.Context) (interface{}, error)) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return rec, Route(handler)(e.NewContext(req, rec))
}

func TestRouteSerializesBody(t *testing.T) {
	rec, err := runRoute(t, func(echo.Context) (interface{}, error) {
		return map[string]string{"hello": "world"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"hello":"world"}`, rec.Body.String())
}

func TestRouteTranslatesSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{AsValidationError("bad %s", "input"), http.StatusBadRequest},
		{AsErrNotFound("session %s missing", "s1"), http.StatusNotFound},
		{AsErrConflict("already running"), http.StatusConflict},
	}
	for _, tc := range cases {
		_, err := runRoute(t, func(echo.Context) (interface{}, error) {
			return nil, tc.err
		})
		require.Error(t, err)
		httpErr, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, tc.code, httpErr.Code)
	}
}

func TestRouteMapsUpstreamFailureToBadGateway(t *testing.T) {
	inner := &scratchpad.ClientError{StatusCode: 503, Body: " upstream exploded \n"}
	_, err := runRoute(t, func(echo.Context) (interface{}, error) {
		return nil, errors.Wrap(inner, "loading workbook wb1")
	})
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, httpErr.Code)
	assert.Equal(t, "upstream exploded", httpErr.Message)
}

func TestRoutePassesThroughUnknownErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := runRoute(t, func(echo.Context) (interface{}, error) {
		return nil, boom
	})
	assert.Equal(t, boom, err)
}

func TestSentinelsAreDistinguishable(t *testing.T) {
	err := AsErrConflict("session busy")
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "session busy")
}
