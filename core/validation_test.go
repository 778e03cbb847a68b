package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name:    "valid document",
			doc:     &Document{Source: "ley_123.pdf"},
			wantErr: nil,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "blank source",
			doc:     &Document{Source: "   "},
			wantErr: ErrEmptySource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSection(t *testing.T) {
	if err := ValidateSection(&Section{DocumentID: NewID()}); err != nil {
		t.Errorf("ValidateSection() error = %v, want nil", err)
	}
	if err := ValidateSection(&Section{}); !errors.Is(err, ErrMissingParent) {
		t.Errorf("ValidateSection() error = %v, want %v", err, ErrMissingParent)
	}
	if err := ValidateSection(nil); !errors.Is(err, ErrInvalidSection) {
		t.Errorf("ValidateSection() error = %v, want %v", err, ErrInvalidSection)
	}
}

func TestValidateChunk(t *testing.T) {
	sectionID := NewID()

	tests := []struct {
		name    string
		chunk   *Chunk
		wantErr error
	}{
		{
			name:    "valid chunk",
			chunk:   &Chunk{SectionID: sectionID, Text: "PRIMERA. Objeto.", StartPage: 1, EndPage: 1},
			wantErr: nil,
		},
		{
			name:    "valid multi page chunk",
			chunk:   &Chunk{SectionID: sectionID, Text: "texto", StartPage: 2, EndPage: 3},
			wantErr: nil,
		},
		{
			name:    "nil chunk",
			chunk:   nil,
			wantErr: ErrInvalidChunk,
		},
		{
			name:    "missing section",
			chunk:   &Chunk{Text: "texto", StartPage: 1, EndPage: 1},
			wantErr: ErrMissingParent,
		},
		{
			name:    "blank text",
			chunk:   &Chunk{SectionID: sectionID, Text: " \n ", StartPage: 1, EndPage: 1},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "zero start page",
			chunk:   &Chunk{SectionID: sectionID, Text: "texto", StartPage: 0, EndPage: 1},
			wantErr: ErrInvalidPageRange,
		},
		{
			name:    "end before start",
			chunk:   &Chunk{SectionID: sectionID, Text: "texto", StartPage: 3, EndPage: 2},
			wantErr: ErrInvalidPageRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.chunk)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunk() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunk() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateVector(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantErr bool
	}{
		{"exact length", EmbeddingDimensions, false},
		{"empty", 0, true},
		{"too short", 5, true},
		{"one short", EmbeddingDimensions - 1, true},
		{"one long", EmbeddingDimensions + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVector(make([]float32, tt.length))
			if tt.wantErr && !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("ValidateVector(len %d) error = %v, want %v", tt.length, err, ErrDimensionMismatch)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateVector(len %d) error = %v, want nil", tt.length, err)
			}
		})
	}
}

func TestValidateEmbedding(t *testing.T) {
	valid := &Embedding{ChunkID: NewID(), Vector: make([]float32, EmbeddingDimensions)}
	if err := ValidateEmbedding(valid); err != nil {
		t.Errorf("ValidateEmbedding() error = %v, want nil", err)
	}

	short := &Embedding{ChunkID: NewID(), Vector: make([]float32, 5)}
	err := ValidateEmbedding(short)
	if !errors.Is(err, ErrInvalidEmbedding) || !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("ValidateEmbedding() error = %v, want dimension mismatch", err)
	}
	if err != nil && !strings.Contains(err.Error(), "got 5") {
		t.Errorf("error should report the received length: %v", err)
	}

	orphan := &Embedding{Vector: make([]float32, EmbeddingDimensions)}
	if err := ValidateEmbedding(orphan); !errors.Is(err, ErrMissingParent) {
		t.Errorf("ValidateEmbedding() error = %v, want %v", err, ErrMissingParent)
	}
}
