package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable marks a transient infrastructure failure
	// (timeout, 5xx, rate limit). The gateway retries these with backoff
	// before surfacing them.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderRejected marks a definitive caller error (unknown model,
	// auth failure). Never retried.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrInvalidRequest is returned when request validation fails before
	// any provider call is made.
	ErrInvalidRequest = errors.New("invalid request")
)

// ProviderError carries provider context alongside the error class so
// callers can log which backend failed without parsing messages.
type ProviderError struct {
	Provider string
	Model    string
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s/%s: %v (attempts=%d)", e.Provider, e.Model, e.Err, e.Attempts)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// unavailable wraps err as a retryable provider failure.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

// rejected wraps err as a non-retryable caller error.
func rejected(err error) error {
	return fmt.Errorf("%w: %v", ErrProviderRejected, err)
}
