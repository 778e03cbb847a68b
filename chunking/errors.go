package chunking

import "errors"

var (
	// ErrTokenizerRequired is returned when a nil tokenizer is supplied.
	ErrTokenizerRequired = errors.New("tokenizer required")

	// ErrInvalidChunkSize is returned when the token budget is not positive.
	ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")

	// ErrInvalidOverlap is returned when overlap is negative or not smaller than the chunk size.
	ErrInvalidOverlap = errors.New("chunk overlap must be >= 0 and smaller than chunk size")

	// ErrInvalidMinSentences is returned when fewer than one sentence per chunk is requested.
	ErrInvalidMinSentences = errors.New("min sentences per chunk must be at least 1")

	// ErrNoDelimiters is returned when the delimiter list is empty or contains empty entries.
	ErrNoDelimiters = errors.New("delimiter list must contain non-empty delimiters")
)
