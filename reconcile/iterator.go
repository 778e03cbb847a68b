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


package reconcile

import (
	"context"

	"github.com/poiesic/juris/core"
	"github.com/poiesic/juris/storage"
)

const (
	// DefaultBatchSize is the default number of rows to fetch in each batch
	DefaultBatchSize = 100
)

// fetchFunc returns up to limit items with a key greater than after.
type fetchFunc[T any] func(ctx context.Context, after core.ID, limit int) ([]T, error)

// keysetIterator walks a store listing in key order, one batch at a time.
// Items that drop out of the listing while it is being walked (because
// they were repaired) do not disturb the position.
type keysetIterator[T any] struct {
	fetch     fetchFunc[T]
	key       func(T) core.ID
	batchSize int
}

func newKeysetIterator[T any](fetch fetchFunc[T], key func(T) core.ID, batchSize int) *keysetIterator[T] {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &keysetIterator[T]{fetch: fetch, key: key, batchSize: batchSize}
}

// newOrphanIterator iterates over embeddings whose chunk is not linked.
func newOrphanIterator(store storage.Store, batchSize int) *keysetIterator[*core.Embedding] {
	return newKeysetIterator(store.ListOrphanEmbeddings,
		func(e *core.Embedding) core.ID { return e.VectorID }, batchSize)
}

// newUnembeddedIterator iterates over chunks with a null vector id.
func newUnembeddedIterator(store storage.Store, batchSize int) *keysetIterator[*core.Chunk] {
	return newKeysetIterator(store.ListUnembeddedChunks,
		func(c *core.Chunk) core.ID { return c.ID }, batchSize)
}

// ForEach calls fn for each batch until the listing is exhausted.
// Iteration stops on first error from fn.
// Context cancellation is checked between batches.
func (it *keysetIterator[T]) ForEach(ctx context.Context, fn func([]T) error) error {
	after := core.NilID
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := it.fetch(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}

		if len(batch) < it.batchSize {
			return nil
		}
		after = it.key(batch[len(batch)-1])
	}
}

// Count returns the number of items in the listing.
func (it *keysetIterator[T]) Count(ctx context.Context) (int, error) {
	n := 0
	err := it.ForEach(ctx, func(batch []T) error {
		n += len(batch)
		return nil
	})
	return n, err
}
