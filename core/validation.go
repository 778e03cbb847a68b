// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document before it is written.
//
// Validation rules:
//   - Source must not be blank
//
// NOT validated (assigned by stores):
//   - ID (NilID is replaced with a generated ID)
//   - CreatedAt
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Source) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptySource)
	}
	return nil
}

// ValidateSection validates a Section before it is written.
func ValidateSection(section *Section) error {
	if section == nil {
		return fmt.Errorf("%w: section is nil", ErrInvalidSection)
	}
	if section.DocumentID == NilID {
		return fmt.Errorf("%w: %w", ErrInvalidSection, ErrMissingParent)
	}
	return nil
}

// ValidateChunk validates a Chunk before it is written.
//
// Validation rules:
//   - SectionID must be set
//   - Text must not be blank
//   - StartPage >= 1 and EndPage >= StartPage
//
// VectorID is not validated; it is normally absent at creation.
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.SectionID == NilID {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrMissingParent)
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}
	if chunk.StartPage < 1 || chunk.EndPage < chunk.StartPage {
		return fmt.Errorf("%w: %w: %d-%d", ErrInvalidChunk, ErrInvalidPageRange, chunk.StartPage, chunk.EndPage)
	}
	return nil
}

// ValidateEmbedding validates an Embedding before it is written.
// The vector must have exactly EmbeddingDimensions elements.
func ValidateEmbedding(embedding *Embedding) error {
	if embedding == nil {
		return fmt.Errorf("%w: embedding is nil", ErrInvalidEmbedding)
	}
	if embedding.ChunkID == NilID {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, ErrMissingParent)
	}
	if err := ValidateVector(embedding.Vector); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, err)
	}
	return nil
}

// ValidateVector checks that vec has exactly EmbeddingDimensions elements.
func ValidateVector(vec []float32) error {
	if len(vec) != EmbeddingDimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), EmbeddingDimensions)
	}
	return nil
}
