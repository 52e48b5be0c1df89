package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
)

// Route wraps a handler that returns a JSON-serializable body, translating the
// inner sentinel errors to their HTTP status codes. Scratchpad service
// failures surface as a 502 carrying the upstream body.
func Route(handler func(c echo.Context) (interface{}, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := handler(c)
		var upstream *scratchpad.ClientError
		switch {
		case errors.Is(err, ErrInvalid):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrConflict):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.As(err, &upstream):
			return echo.NewHTTPError(http.StatusBadGateway, upstream.TrimmedBody())
		case err != nil:
			return err
		}
		return c.JSON(http.StatusOK, body)
	}
}
