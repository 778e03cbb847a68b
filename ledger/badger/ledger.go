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


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/juris/ledger"
)

// Ledger implements ledger.Ledger on BadgerDB.
type Ledger struct {
	backend  *backend
	logger   *slog.Logger
	inMemory bool
}

var _ ledger.Ledger = (*Ledger)(nil)

// Option configures a Ledger.
type Option func(*Ledger) error

// WithLogger sets a custom logger. Badger's own messages go to it too.
func WithLogger(l *slog.Logger) Option {
	return func(lg *Ledger) error {
		lg.logger = l
		return nil
	}
}

// WithInMemory keeps the ledger in memory only. Intended for tests.
func WithInMemory() Option {
	return func(lg *Ledger) error {
		lg.inMemory = true
		return nil
	}
}

// Open opens the ledger stored in dir.
//
// Returns ledger.Ledger interface to enforce abstraction.
func Open(dir string, opts ...Option) (ledger.Ledger, error) {
	lg, err := open(dir, opts...)
	if err != nil {
		return nil, err
	}
	return lg, nil
}

func open(dir string, opts ...Option) (*Ledger, error) {
	lg := &Ledger{}
	for _, opt := range opts {
		if err := opt(lg); err != nil {
			return nil, err
		}
	}
	if lg.logger == nil {
		lg.logger = slog.Default()
	}
	lg.logger = lg.logger.With("component", "ledger")

	if dir == "" && !lg.inMemory {
		return nil, errors.New("ledger directory is required")
	}

	b, err := openBackend(dir, lg.inMemory, lg.logger)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	lg.backend = b
	return lg, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.backend.close()
}

// Record persists entry. CompletedAt is set when zero.
func (l *Ledger) Record(ctx context.Context, entry *ledger.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry != nil && entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now().UTC()
	}
	value, err := ledger.MarshalEntry(entry)
	if err != nil {
		return err
	}

	return l.backend.withTx(func(tx *badger.Txn) error {
		return tx.Set(makeEntryKey(entry.ContentHash), value)
	}, true)
}

// Lookup retrieves the entry for contentHash.
func (l *Ledger) Lookup(ctx context.Context, contentHash string) (*ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *ledger.Entry
	err := l.backend.withTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEntryKey(contentHash))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ledger.ErrNotFound, contentHash)
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			entry, unmarshalErr = ledger.UnmarshalEntry(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return entry, nil
}
