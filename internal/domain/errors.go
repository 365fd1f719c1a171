package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailed signals a bad or missing webhook signature.
	ErrAuthFailed = errors.New("webhook authentication failed")
	// ErrMalformedPayload signals a notification body that cannot be decoded.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrNormalization signals a structurally invalid catalog item.
	ErrNormalization = errors.New("item normalization failed")
	// ErrEmbeddingUnavailable signals an embedding provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrIndexWrite signals a vector index mutation failure.
	ErrIndexWrite = errors.New("index write failed")
	// ErrStoreConsistency signals a partially applied snapshot/reflection write.
	// Processing for the affected item must halt until resolved manually.
	ErrStoreConsistency = errors.New("change-log consistency violation")
	// ErrItemNotFound signals a missing item snapshot or document.
	ErrItemNotFound = errors.New("item not found")
)

// RetryableError marks a transient failure that may succeed on retry.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("retryable: %s", e.Err.Error()) }

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as transient. Returns nil for a nil err.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is marked transient anywhere in its chain.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
