// Package auth validates the HS256 user JWTs presented on the HTTP and
// websocket surfaces.
package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// userKey is the echo context key the middleware stores the claims under.
const userKey = "auth-user"

// Claims are the JWT claims required on every authenticated request.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Validator parses and verifies bearer tokens against the server secret.
type Validator struct {
	secret []byte
}

// NewValidator builds a validator for the given HS256 secret.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Parse verifies a raw token and returns its claims.
func (v *Validator) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parsing token")
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token missing userId claim")
	}
	return claims, nil
}

// Middleware authenticates requests from the Authorization header or, for
// websocket upgrades, a token query parameter. Failures are 401.
func (v *Validator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			claims, err := v.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}
			c.Set(userKey, claims)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.QueryParam("token")
}

// UserFromContext returns the authenticated claims stored by the middleware.
func UserFromContext(c echo.Context) *Claims {
	claims, _ := c.Get(userKey).(*Claims)
	return claims
}
