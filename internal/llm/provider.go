package llm

import (
	"fmt"
	"net/http"
	"strings"
)

// ProviderError is a non-2xx response from the model provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("model provider returned %d: %s", e.StatusCode, e.Body)
}

// ActionableMessage rewrites known provider failures into guidance a user can
// act on; anything unrecognized passes through with the provider body.
func (e *ProviderError) ActionableMessage() string {
	switch {
	case e.StatusCode == http.StatusForbidden && strings.Contains(e.Body, "Key limit exceeded"):
		return "The provider key has exhausted its usage limit. Manage the key at the provider dashboard."
	case e.StatusCode == http.StatusUnauthorized && strings.Contains(e.Body, "No auth credentials found"):
		return "Missing or invalid API key for the model provider."
	case e.StatusCode == http.StatusUnauthorized && strings.Contains(e.Body, "User not found"):
		return "The model provider key has been disabled."
	default:
		return fmt.Sprintf("The model provider rejected the request (%d): %s", e.StatusCode, e.Body)
	}
}
