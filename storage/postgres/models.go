package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/poiesic/juris/core"
)

type documentRow struct {
	ID          uuid.UUID `gorm:"column:document_id;type:uuid;primaryKey"`
	Source      string    `gorm:"type:text;not null"`
	ContentHash string    `gorm:"size:64;index"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (documentRow) TableName() string { return "documents" }

type sectionRow struct {
	ID            uuid.UUID   `gorm:"column:section_id;type:uuid;primaryKey"`
	DocumentID    uuid.UUID   `gorm:"type:uuid;not null;index"`
	SectionType   string      `gorm:"size:50;not null"`
	SectionNumber string      `gorm:"size:50;not null"`
	ContentHash   string      `gorm:"size:64"`
	CreatedAt     time.Time   `gorm:"not null"`
	Document      documentRow `gorm:"foreignKey:DocumentID;references:ID"`
}

func (sectionRow) TableName() string { return "sections" }

type chunkRow struct {
	ID         uuid.UUID     `gorm:"column:chunk_id;type:uuid;primaryKey"`
	SectionID  uuid.UUID     `gorm:"type:uuid;not null;index:idx_chunks_section,priority:1"`
	DocumentID uuid.UUID     `gorm:"type:uuid;not null;index"`
	ChunkText  string        `gorm:"type:text;not null"`
	CharCount  int           `gorm:"not null"`
	StartPage  int           `gorm:"not null"`
	EndPage    int           `gorm:"not null"`
	ChunkOrder int           `gorm:"not null;index:idx_chunks_section,priority:2"`

	ArticleNumber   *string `gorm:"type:text"`
	SectionNumber   *string `gorm:"type:text"`
	ParagraphNumber *string `gorm:"type:text"`

	VectorID  uuid.NullUUID `gorm:"type:uuid;index"`
	CreatedAt time.Time     `gorm:"not null"`
	Section   sectionRow    `gorm:"foreignKey:SectionID;references:ID"`
	Document  documentRow   `gorm:"foreignKey:DocumentID;references:ID"`
}

func (chunkRow) TableName() string { return "chunks" }

type embeddingRow struct {
	VectorID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ChunkID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	Embedding       pgvector.Vector `gorm:"type:vector(768);not null"`
	EmbeddingsOrder int             `gorm:"not null;default:1"`
	CreatedAt       time.Time       `gorm:"not null"`
	Chunk           chunkRow        `gorm:"foreignKey:ChunkID;references:ID"`
}

func (embeddingRow) TableName() string { return "embeddings" }

func fromChunk(c *core.Chunk) *chunkRow {
	return &chunkRow{
		ID:              c.ID,
		SectionID:       c.SectionID,
		DocumentID:      c.DocumentID,
		ChunkText:       c.Text,
		CharCount:       c.CharCount,
		StartPage:       c.StartPage,
		EndPage:         c.EndPage,
		ChunkOrder:      c.ChunkOrder,
		ArticleNumber:   optional(c.Reference.Article),
		SectionNumber:   optional(c.Reference.Section),
		ParagraphNumber: optional(c.Reference.Paragraph),
		VectorID:        c.VectorID,
		CreatedAt:       c.CreatedAt,
	}
}

func toChunk(r *chunkRow) *core.Chunk {
	return &core.Chunk{
		ID:         r.ID,
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

// optional maps an empty string to NULL.
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

func toEmbedding(r *embeddingRow) *core.Embedding {
	return &core.Embedding{
		VectorID:  r.VectorID,
		ChunkID:   r.ChunkID,
		Vector:    r.Embedding.Slice(),
		Order:     r.EmbeddingsOrder,
		CreatedAt: r.CreatedAt,
	}
}
