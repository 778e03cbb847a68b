package retry

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrNoEmbedding is returned by GetEmbedding when every attempt
	// succeeded with an empty vector.
	ErrNoEmbedding = errors.New("no embedding obtained")

	// ErrEmbedderRequired is returned by New when no embedder is given.
	ErrEmbedderRequired = errors.New("embedder is required")
)
