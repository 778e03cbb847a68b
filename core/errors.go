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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidSection indicates a Section failed validation.
	ErrInvalidSection = errors.New("invalid section")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidEmbedding indicates an Embedding failed validation.
	ErrInvalidEmbedding = errors.New("invalid embedding")

	// ErrEmptySource indicates the document Source field is empty.
	ErrEmptySource = errors.New("source cannot be empty")

	// ErrEmptyContent indicates the chunk Text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrMissingParent indicates a required foreign key is the nil ID.
	ErrMissingParent = errors.New("parent id cannot be nil")

	// ErrInvalidPageRange indicates StartPage/EndPage are out of order or below 1.
	ErrInvalidPageRange = errors.New("invalid page range")

	// ErrDimensionMismatch indicates an embedding vector has the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
