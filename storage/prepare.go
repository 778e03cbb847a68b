package storage

import (
	"time"

	"github.com/poiesic/juris/core"
)

// PrepareDocument validates doc and fills in its ID and CreatedAt.
// Backends call it before writing.
func PrepareDocument(doc *core.Document, now time.Time) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}
	if doc.ID == core.NilID {
		doc.ID = core.NewID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return nil
}

// PrepareSection validates section and fills in generated fields.
// Empty type and number default to the single main section.
func PrepareSection(section *core.Section, now time.Time) error {
	if err := core.ValidateSection(section); err != nil {
		return err
	}
	if section.ID == core.NilID {
		section.ID = core.NewID()
	}
	if section.SectionType == "" {
		section.SectionType = core.DefaultSectionType
	}
	if section.SectionNumber == "" {
		section.SectionNumber = core.DefaultSectionNumber
	}
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	return nil
}

// PrepareChunk validates chunk and fills in generated fields.
func PrepareChunk(chunk *core.Chunk, now time.Time) error {
	if err := core.ValidateChunk(chunk); err != nil {
		return err
	}
	if chunk.ID == core.NilID {
		chunk.ID = core.NewID()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = now
	}
	return nil
}

// PrepareEmbedding validates embedding and fills in generated fields.
func PrepareEmbedding(embedding *core.Embedding, now time.Time) error {
	if err := core.ValidateEmbedding(embedding); err != nil {
		return err
	}
	if embedding.VectorID == core.NilID {
		embedding.VectorID = core.NewID()
	}
	if embedding.Order == 0 {
		embedding.Order = core.DefaultEmbeddingOrder
	}
	if embedding.CreatedAt.IsZero() {
		embedding.CreatedAt = now
	}
	return nil
}
