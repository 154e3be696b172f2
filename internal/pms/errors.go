package pms

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfig marks missing or invalid adapter credentials or endpoint.
	ErrConfig = errors.New("pms: configuration error")

	// ErrIntegration marks an upstream failure: unreachable host, non-2xx
	// status or an undecodable response.
	ErrIntegration = errors.New("pms: integration error")
)

// StatusError is returned when the PMS answers with a non-2xx HTTP status.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
}

// Unwrap lets callers match a StatusError against [ErrIntegration].
func (e *StatusError) Unwrap() error { return ErrIntegration }

// Temporary reports whether the status is worth retrying: 5xx, 408 and 429.
// Every other 4xx is permanent.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// IsNotFound reports whether err carries an HTTP 404 from the PMS.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// ConfigErrorf returns an error wrapping [ErrConfig].
func ConfigErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
