package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// EmbeddingDimensions is the length every stored embedding vector must have.
const EmbeddingDimensions = 768

const (
	// DefaultSectionType is the section type assigned to the single section
	// created for each document.
	DefaultSectionType = "main"

	// DefaultSectionNumber is the section number of that section.
	DefaultSectionNumber = "1"

	// DefaultEmbeddingOrder is the embeddings_order written for each chunk's embedding.
	DefaultEmbeddingOrder = 1
)

// ID is a unique identifier for persisted entities.
type ID = uuid.UUID

// NilID is the zero ID. Stores treat it as "not yet assigned".
var NilID = uuid.Nil

// NewID generates a new random ID.
func NewID() ID {
	return uuid.New()
}

// NullID is an ID that may be absent, as used by Chunk.VectorID.
type NullID = uuid.NullUUID

// SomeID wraps id as a present NullID.
func SomeID(id ID) NullID {
	return uuid.NullUUID{UUID: id, Valid: true}
}

// ContentHash returns the hex encoded BLAKE2b-256 digest of data.
// Identical content always yields the same hash.
func ContentHash(data []byte) string {
	h, _ := blake2b.New(32, nil) // only fails for sizes outside 1..64 or oversized keys
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Document is a single ingested source file.
type Document struct {
	ID          ID
	Source      string // file name the document was read from
	ContentHash string // hash of the raw file bytes
	CreatedAt   time.Time
}

// Section groups the chunks of a document. Each document currently has one.
type Section struct {
	ID            ID
	DocumentID    ID
	SectionType   string
	SectionNumber string
	ContentHash   string // hash of the normalized section text
	CreatedAt     time.Time
}

// Chunk is a contiguous span of a section's text prepared for embedding.
// VectorID stays invalid until an embedding has been stored and linked.
type Chunk struct {
	ID         ID
	SectionID  ID
	DocumentID ID
	Text       string
	CharCount  int
	StartPage  int
	EndPage    int
	ChunkOrder int
	Reference  ArticleReference
	VectorID   NullID
	CreatedAt  time.Time
}

// ArticleReference is the first article a chunk cites, with the fracción
// and párrafo that follow it. Empty fields were not found.
type ArticleReference struct {
	Article   string
	Section   string
	Paragraph string
}

// Embedded reports whether the chunk is linked to a stored embedding.
func (c *Chunk) Embedded() bool {
	return c.VectorID.Valid
}

// Embedding is the vector computed for a chunk's text.
type Embedding struct {
	VectorID  ID
	ChunkID   ID
	Vector    []float32
	Order     int
	CreatedAt time.Time
}
