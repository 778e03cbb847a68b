package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
)

var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid ai config")

	// ErrMissingAPIKey indicates the provider credential was not supplied.
	ErrMissingAPIKey = errors.New("api key is required")

	// ErrEmbeddingService matches every *EmbeddingError.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrInvalidEmbeddingShape indicates a response vector that is empty or
	// does not have the configured length.
	ErrInvalidEmbeddingShape = errors.New("invalid embedding shape")
)

// ErrorKind tells the retry logic how to treat a failed embedding call.
type ErrorKind int

const (
	// KindTransient failures may succeed after a short wait.
	KindTransient ErrorKind = iota
	// KindRateLimited failures signal the caller must slow down.
	KindRateLimited
	// KindFatal failures cannot succeed on retry.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindFatal:
		return "fatal"
	default:
		return "transient"
	}
}

// EmbeddingError is returned by Embedder implementations on failure.
// It matches ErrEmbeddingService and unwraps to the provider error.
type EmbeddingError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

// NewEmbeddingError wraps err from provider and classifies it.
func NewEmbeddingError(provider string, err error) *EmbeddingError {
	return &EmbeddingError{Kind: Classify(err), Provider: provider, Err: err}
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("%s: %s (%s): %v", ErrEmbeddingService, e.Provider, e.Kind, e.Err)
}

func (e *EmbeddingError) Unwrap() []error {
	return []error{ErrEmbeddingService, e.Err}
}

// StatusError carries the HTTP status of a failed embedding request.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// KindOf returns the kind recorded on an *EmbeddingError in err's chain,
// falling back to Classify.
func KindOf(err error) ErrorKind {
	var ee *EmbeddingError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return Classify(err)
}

// Classify maps an error to an ErrorKind using structured signals only:
// context errors, *StatusError codes and langchaingo *llms.Error codes.
// Anything unrecognised is transient.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindTransient
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindFatal
	}
	if errors.Is(err, ErrInvalidEmbeddingShape) {
		return KindTransient
	}

	var se *StatusError
	if errors.As(err, &se) {
		return statusKind(se.StatusCode)
	}

	var le *llms.Error
	if errors.As(err, &le) {
		switch le.Code {
		case llms.ErrCodeRateLimit, llms.ErrCodeQuotaExceeded:
			return KindRateLimited
		case llms.ErrCodeAuthentication, llms.ErrCodeInvalidRequest,
			llms.ErrCodeResourceNotFound, llms.ErrCodeContentFilter,
			llms.ErrCodeTokenLimit, llms.ErrCodeNotImplemented, llms.ErrCodeCanceled:
			return KindFatal
		}
	}

	return KindTransient
}

func statusKind(code int) ErrorKind {
	switch code {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusRequestEntityTooLarge:
		return KindFatal
	default:
		return KindTransient
	}
}

// CheckShape verifies vec has exactly dims elements.
func CheckShape(vec []float32, dims int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidEmbeddingShape)
	}
	if len(vec) != dims {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrInvalidEmbeddingShape, len(vec), dims)
	}
	return nil
}
