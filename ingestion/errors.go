package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrChunkerRequired is returned when a chunker is not provided.
	ErrChunkerRequired = errors.New("chunker required")

	// ErrRetryControllerRequired is returned when a retry controller is not provided.
	ErrRetryControllerRequired = errors.New("retry controller required")

	// ErrUnsupportedFormat is returned for files without a registered reader.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionFailed wraps reader failures.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrNoDocuments is returned by IngestDirectory when the directory
	// holds no supported files.
	ErrNoDocuments = errors.New("no documents found")

	// ErrDocumentWrite wraps a failed document or section insert.
	ErrDocumentWrite = errors.New("document write failed")

	// ErrChunkWrite wraps a failed chunk insert.
	ErrChunkWrite = errors.New("chunk write failed")

	// ErrEmbeddingWrite wraps a failed embedding insert.
	ErrEmbeddingWrite = errors.New("embedding write failed")
)
