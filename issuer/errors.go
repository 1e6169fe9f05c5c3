package issuer

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingToken = errors.New("issuer response carried no token")
	ErrNoURL        = errors.New("issuer url not configured")
)

type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "issuer request failed"
	}
	if e.Status != "" {
		return "issuer: " + e.Status
	}
	return fmt.Sprintf("issuer: http status %d", e.StatusCode)
}

// IsUnauthorized reports whether err is an issuer rejection of the caller's
// own bearer token.
func IsUnauthorized(err error) bool {
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
}

func isPermanentStatus(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout
}
