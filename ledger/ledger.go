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


// Package ledger records which source files a pipeline run has already
// ingested, keyed by the hash of the file's bytes.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/juris/core"
)

var (
	// ErrNotFound is returned by Lookup when no entry exists for a hash.
	ErrNotFound = errors.New("ledger entry not found")

	// ErrInvalidEntry indicates an entry without a content hash.
	ErrInvalidEntry = errors.New("invalid ledger entry")
)

// Entry describes one completed document ingestion.
type Entry struct {
	ContentHash string    `json:"content_hash"`
	Source      string    `json:"source"`
	DocumentID  core.ID   `json:"document_id"`
	Chunks      int       `json:"chunks"`
	Embedded    int       `json:"embedded"`
	CompletedAt time.Time `json:"completed_at"`
}

// Complete reports whether every chunk of the document got an embedding.
func (e *Entry) Complete() bool {
	return e.Embedded == e.Chunks
}

// Ledger persists ingestion entries.
type Ledger interface {
	// Lookup returns the entry for contentHash or ErrNotFound.
	Lookup(ctx context.Context, contentHash string) (*Entry, error)

	// Record stores entry, replacing any previous entry for the same hash.
	Record(ctx context.Context, entry *Entry) error

	Close() error
}

// MarshalEntry encodes an entry for storage.
func MarshalEntry(e *Entry) ([]byte, error) {
	if e == nil || e.ContentHash == "" {
		return nil, fmt.Errorf("%w: content hash is required", ErrInvalidEntry)
	}
	return json.Marshal(e)
}

// UnmarshalEntry decodes an entry written by MarshalEntry.
func UnmarshalEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding ledger entry: %w", err)
	}
	return &e, nil
}
