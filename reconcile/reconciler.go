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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/juris/core"
	"github.com/poiesic/juris/retry"
	"github.com/poiesic/juris/storage"
)

const (
	DefaultReportInterval = 100
	DefaultWriteRetries   = 3
	DefaultWriteDelay     = 500 * time.Millisecond
	DefaultPause          = 1500 * time.Millisecond
)

// Result counts what a Run found and repaired.
type Result struct {
	// Phase 1: embeddings whose chunk was never back-linked.
	Orphans    int
	Linked     int
	LinkFailed int

	// Phase 2: chunks still without an embedding after phase 1.
	Unembedded  int
	Reembedded  int
	EmbedFailed int
	Orphaned    int // embedding stored, back-link failed again
	Deferred    int // chunk already has an unlinked embedding from phase 1

	Elapsed time.Duration
}

// Reconciler repairs partial ingestion state: it back-links orphan
// embeddings and embeds chunks whose vector id is still null.
type Reconciler struct {
	store          storage.Store
	embedding      *retry.Controller
	batchSize      int
	reportInterval int
	writeRetries   int
	writeDelay     time.Duration
	pause          time.Duration
	progress       io.Writer
	dryRun         bool
	logger         *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler) error

// WithBatchSize sets how many rows are listed per store query. Default is 100.
func WithBatchSize(n int) Option {
	return func(r *Reconciler) error {
		if n <= 0 {
			return fmt.Errorf("batch size must be greater than 0, got %d", n)
		}
		r.batchSize = n
		return nil
	}
}

// WithReportInterval sets how often progress is printed, in items.
func WithReportInterval(n int) Option {
	return func(r *Reconciler) error {
		r.reportInterval = n
		return nil
	}
}

// WithProgressWriter sets where progress lines are written.
// Default is io.Discard.
func WithProgressWriter(w io.Writer) Option {
	return func(r *Reconciler) error {
		if w == nil {
			w = io.Discard
		}
		r.progress = w
		return nil
	}
}

// WithWriteRetries sets the attempts and base delay for back-link writes.
func WithWriteRetries(attempts int, baseDelay time.Duration) Option {
	return func(r *Reconciler) error {
		if attempts <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		r.writeRetries = attempts
		r.writeDelay = baseDelay
		return nil
	}
}

// WithPause sets the wait after each embedding attempt. Default is 1.5s.
func WithPause(d time.Duration) Option {
	return func(r *Reconciler) error {
		r.pause = d
		return nil
	}
}

// WithDryRun only counts what would be repaired.
func WithDryRun(dryRun bool) Option {
	return func(r *Reconciler) error {
		r.dryRun = dryRun
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) error {
		r.logger = logger
		return nil
	}
}

// New creates a Reconciler.
func New(store storage.Store, embedding *retry.Controller, opts ...Option) (*Reconciler, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedding == nil {
		return nil, ErrRetryControllerRequired
	}

	r := &Reconciler{
		store:          store,
		embedding:      embedding,
		batchSize:      DefaultBatchSize,
		reportInterval: DefaultReportInterval,
		writeRetries:   DefaultWriteRetries,
		writeDelay:     DefaultWriteDelay,
		pause:          DefaultPause,
		progress:       io.Discard,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "reconcile")

	return r, nil
}

// Run executes both phases. Orphans are linked first so that their chunks
// are not embedded a second time.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{}

	// Chunks whose orphan embedding could not be linked keep a null vector
	// id; embedding them again would store a second row.
	unlinked := make(map[core.ID]struct{})

	if err := r.linkOrphans(ctx, res, unlinked); err != nil {
		res.Elapsed = time.Since(start)
		return res, fmt.Errorf("linking orphan embeddings: %w", err)
	}
	if err := r.embedMissing(ctx, res, unlinked); err != nil {
		res.Elapsed = time.Since(start)
		return res, fmt.Errorf("embedding chunks: %w", err)
	}

	res.Elapsed = time.Since(start)
	r.logger.Info("reconcile complete",
		"orphans", res.Orphans, "linked", res.Linked, "link_failed", res.LinkFailed,
		"unembedded", res.Unembedded, "reembedded", res.Reembedded,
		"embed_failed", res.EmbedFailed, "orphaned", res.Orphaned, "deferred", res.Deferred,
		"elapsed", res.Elapsed.Round(time.Millisecond), "dry_run", r.dryRun)
	return res, nil
}

func (r *Reconciler) linkOrphans(ctx context.Context, res *Result, unlinked map[core.ID]struct{}) error {
	it := newOrphanIterator(r.store, r.batchSize)
	total, err := it.Count(ctx)
	if err != nil {
		return err
	}
	res.Orphans = total
	if total == 0 || r.dryRun {
		fmt.Fprintf(r.progress, "Orphan embeddings: %d\n", total)
		return nil
	}

	fmt.Fprintf(r.progress, "Linking %d orphan embeddings (batch size: %d)\n", total, r.batchSize)
	progress := newPhaseProgress(r.progress, "Linking", total, r.reportInterval)
	defer progress.finish()

	return it.ForEach(ctx, func(batch []*core.Embedding) error {
		for _, e := range batch {
			if err := r.link(ctx, e.ChunkID, e.VectorID); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.Warn("failed to link orphan embedding", "vector_id", e.VectorID, "chunk_id", e.ChunkID, "err", err)
				res.LinkFailed++
				unlinked[e.ChunkID] = struct{}{}
			} else {
				res.Linked++
			}
			progress.step()
		}
		return nil
	})
}

func (r *Reconciler) embedMissing(ctx context.Context, res *Result, unlinked map[core.ID]struct{}) error {
	it := newUnembeddedIterator(r.store, r.batchSize)
	total, err := it.Count(ctx)
	if err != nil {
		return err
	}
	res.Unembedded = total
	if total == 0 || r.dryRun {
		fmt.Fprintf(r.progress, "Chunks without embedding: %d\n", total)
		return nil
	}

	fmt.Fprintf(r.progress, "Embedding %d chunks (batch size: %d)\n", total, r.batchSize)
	progress := newPhaseProgress(r.progress, "Embedding", total, r.reportInterval)
	defer progress.finish()

	return it.ForEach(ctx, func(batch []*core.Chunk) error {
		for _, c := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, ok := unlinked[c.ID]; ok {
				r.logger.Debug("chunk has an unlinked embedding, left for the next run", "chunk_id", c.ID)
				res.Deferred++
				progress.step()
				continue
			}
			r.embedChunk(ctx, c, res)
			progress.step()
			if r.pause > 0 {
				if err := retry.Sleep(ctx, r.pause); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (r *Reconciler) embedChunk(ctx context.Context, c *core.Chunk, res *Result) {
	logger := r.logger.With("chunk_id", c.ID)

	vec, err := r.embedding.GetEmbedding(ctx, c.Text)
	if err != nil {
		logger.Warn("no embedding for chunk", "err", err)
		res.EmbedFailed++
		return
	}

	emb, err := r.store.CreateEmbedding(ctx, &core.Embedding{
		ChunkID: c.ID,
		Vector:  vec,
		Order:   core.DefaultEmbeddingOrder,
	})
	switch {
	case err == nil:
		res.Reembedded++
	case errors.Is(err, storage.ErrLinkFailed) && emb != nil:
		// The embedding row exists; only the back-link is retried.
		if linkErr := r.link(ctx, c.ID, emb.VectorID); linkErr != nil {
			logger.Warn("embedding stored but chunk not linked", "vector_id", emb.VectorID, "err", linkErr)
			res.Orphaned++
			return
		}
		res.Reembedded++
	default:
		logger.Error("failed to store embedding", "err", err)
		res.EmbedFailed++
	}
}

func (r *Reconciler) link(ctx context.Context, chunkID, vectorID core.ID) error {
	return retry.WithBackoff(ctx, func() error {
		return r.store.LinkChunk(ctx, chunkID, vectorID)
	}, r.writeRetries, r.writeDelay)
}
