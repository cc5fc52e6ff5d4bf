package providers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/preston-bernstein/pacs-bridge/internal/retry"
)

var (
	// ErrProviderUnavailable is returned when a driver has no upstream to call.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrUnknownProvider is returned for an unrecognised provider name.
	ErrUnknownProvider = errors.New("unknown provider")
)

// RateLimitError captures 429 responses from vendor APIs.
type RateLimitError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *RateLimitError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "provider rate limited"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status=%d)", e.Provider, msg, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// AsRateLimitError attempts to unwrap an error into a RateLimitError.
func AsRateLimitError(err error) (*RateLimitError, bool) {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr, true
	}
	return nil, false
}

// ClassifyError turns a 429 status error into a RateLimitError and passes
// everything else through.
func ClassifyError(provider string, err error) error {
	statusErr, ok := retry.AsStatusError(err)
	if !ok || statusErr.StatusCode != http.StatusTooManyRequests {
		return err
	}
	return &RateLimitError{
		Provider:   provider,
		StatusCode: statusErr.StatusCode,
		Message:    statusErr.Body,
		Err:        err,
	}
}
