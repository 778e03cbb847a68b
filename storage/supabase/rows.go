package supabase

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/poiesic/juris/core"
)

// Row shapes follow the columns of the hosted schema.

type documentRow struct {
	DocumentID uuid.UUID `json:"document_id"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

type sectionRow struct {
	SectionID     uuid.UUID `json:"section_id"`
	DocumentID    uuid.UUID `json:"document_id"`
	SectionType   string    `json:"section_type"`
	SectionNumber string    `json:"section_number"`
	ContentHash   string    `json:"content_hash,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type chunkRow struct {
	ChunkID    uuid.UUID     `json:"chunk_id"`
	SectionID  uuid.UUID     `json:"section_id"`
	DocumentID uuid.UUID     `json:"document_id"`
	ChunkText  string        `json:"chunk_text"`
	CharCount  int           `json:"char_count"`
	StartPage  int           `json:"start_page"`
	EndPage    int           `json:"end_page"`
	ChunkOrder int           `json:"chunk_order"`

	ArticleNumber   *string `json:"article_number"`
	SectionNumber   *string `json:"section_number"`
	ParagraphNumber *string `json:"paragraph_number"`

	VectorID  uuid.NullUUID `json:"vector_id"`
	CreatedAt time.Time     `json:"created_at"`
}

type embeddingRow struct {
	VectorID        uuid.UUID  `json:"vector_id"`
	ChunkID         uuid.UUID  `json:"chunk_id"`
	Embedding       vectorJSON `json:"embedding"`
	EmbeddingsOrder int        `json:"embeddings_order"`
	CreatedAt       time.Time  `json:"created_at"`
}

// vectorJSON writes a vector as a JSON array and reads either an array or
// the "[1,2,3]" text form PostgREST returns for vector columns.
type vectorJSON struct {
	pgvector.Vector
}

func (v *vectorJSON) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return v.Parse(s)
	}
	return v.Vector.UnmarshalJSON(data)
}

func fromChunk(c *core.Chunk) chunkRow {
	return chunkRow{
		ChunkID:    c.ID,
		SectionID:  c.SectionID,
		DocumentID: c.DocumentID,
		ChunkText:  c.Text,
		CharCount:  c.CharCount,
		StartPage:  c.StartPage,
		EndPage:    c.EndPage,
		ChunkOrder: c.ChunkOrder,

		ArticleNumber:   optional(c.Reference.Article),
		SectionNumber:   optional(c.Reference.Section),
		ParagraphNumber: optional(c.Reference.Paragraph),

		VectorID:  c.VectorID,
		CreatedAt: c.CreatedAt,
	}
}

func (r *chunkRow) toChunk() *core.Chunk {
	return &core.Chunk{
		ID:         r.ChunkID,
		SectionID:  r.SectionID,
		DocumentID: r.DocumentID,
		Text:       r.ChunkText,
		CharCount:  r.CharCount,
		StartPage:  r.StartPage,
		EndPage:    r.EndPage,
		ChunkOrder: r.ChunkOrder,
		Reference: core.ArticleReference{
			Article:   deref(r.ArticleNumber),
			Section:   deref(r.SectionNumber),
			Paragraph: deref(r.ParagraphNumber),
		},
		VectorID:  r.VectorID,
		CreatedAt: r.CreatedAt,
	}
}

// optional sends an empty string as null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *embeddingRow) toEmbedding() *core.Embedding {
	return &core.Embedding{
		VectorID:  r.VectorID,
		ChunkID:   r.ChunkID,
		Vector:    r.Embedding.Slice(),
		Order:     r.EmbeddingsOrder,
		CreatedAt: r.CreatedAt,
	}
}
