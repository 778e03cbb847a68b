package storage

import (
	"context"

	"github.com/poiesic/juris/core"
)

// Store persists documents, sections, chunks and embeddings.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// CreateDocument writes a new document.
	// A NilID is replaced with a generated ID and CreatedAt is set if zero.
	// Returns the document with generated fields populated.
	CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// CreateSection writes a new section of an existing document.
	CreateSection(ctx context.Context, section *core.Section) (*core.Section, error)

	// CreateChunk writes a new chunk. VectorID is stored as given, normally null.
	CreateChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error)

	// CreateEmbedding writes the embedding and sets the owning chunk's VectorID.
	//
	// Transactional stores do both or neither and return ErrNotFound if the
	// chunk does not exist. Stores that cannot span both writes in one
	// transaction return the persisted embedding together with an error
	// wrapping ErrLinkFailed when only the back-link failed.
	CreateEmbedding(ctx context.Context, embedding *core.Embedding) (*core.Embedding, error)

	// LinkChunk sets the chunk's VectorID.
	// Returns ErrNotFound if the chunk doesn't exist.
	LinkChunk(ctx context.Context, chunkID, vectorID core.ID) error

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// ListUnembeddedChunks returns up to limit chunks with a null VectorID
	// and an ID greater than after, ordered by ID.
	ListUnembeddedChunks(ctx context.Context, after core.ID, limit int) ([]*core.Chunk, error)

	// ListOrphanEmbeddings returns up to limit embeddings whose chunk has a
	// null VectorID, with a VectorID greater than after, ordered by VectorID.
	ListOrphanEmbeddings(ctx context.Context, after core.ID, limit int) ([]*core.Embedding, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
