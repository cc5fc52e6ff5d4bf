package retry

import (
	"errors"
	"fmt"
)

// ErrRetriesExhausted is returned when every attempt hit a transient failure.
var ErrRetriesExhausted = errors.New("retries exhausted")

// StatusError describes a response whose status code was not a success.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.StatusCode >= 500
}

// AsStatusError unwraps err into a StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}

// StatusCode extracts the HTTP status from err, or 0 when none is attached.
func StatusCode(err error) int {
	if statusErr, ok := AsStatusError(err); ok {
		return statusErr.StatusCode
	}
	return 0
}
