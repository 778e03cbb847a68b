package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/juris/chunking"
	"github.com/poiesic/juris/core"
	"github.com/poiesic/juris/ledger"
	"github.com/poiesic/juris/retry"
	"github.com/poiesic/juris/storage"
)

// DefaultChunkPause is the wait after each chunk's embedding attempt.
const DefaultChunkPause = 1500 * time.Millisecond

// Pipeline turns files into stored documents, sections, chunks and
// embeddings. Chunks of a document are processed one at a time; with more
// than one worker, documents run concurrently on a worker pool.
type Pipeline struct {
	store      storage.Store
	chunker    *chunking.Chunker
	embedding  *retry.Controller
	ledger     ledger.Ledger
	readers    map[string]Reader
	pool       *ants.Pool
	workers    int
	chunkPause time.Duration
	force      bool
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunkPause sets the pause after each chunk's embedding attempt.
// Default is 1.5s. Zero disables pacing.
func WithChunkPause(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d < 0 {
			d = 0
		}
		p.chunkPause = d
		return nil
	}
}

// WithWorkers sets how many documents IngestDirectory processes at once.
// Default is 1, which keeps the run strictly sequential.
func WithWorkers(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		if p.pool != nil {
			p.pool.Release()
			p.pool = nil
		}
		p.workers = n
		if n == 1 {
			return nil
		}

		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLedger skips files whose content was already ingested and records
// each completed document.
func WithLedger(l ledger.Ledger) Option {
	return func(p *Pipeline) error {
		p.ledger = l
		return nil
	}
}

// WithForce ingests files even when the ledger has an entry for them.
func WithForce(force bool) Option {
	return func(p *Pipeline) error {
		p.force = force
		return nil
	}
}

// WithReaders registers readers by extension (".pdf"), replacing the
// default reader for that extension.
func WithReaders(readers map[string]Reader) Option {
	return func(p *Pipeline) error {
		for ext, r := range readers {
			p.readers[strings.ToLower(ext)] = r
		}
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	store storage.Store,
	chunker *chunking.Chunker,
	embedding *retry.Controller,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if embedding == nil {
		return nil, ErrRetryControllerRequired
	}

	p := &Pipeline{
		store:      store,
		chunker:    chunker,
		embedding:  embedding,
		readers:    DefaultReaders(),
		workers:    1,
		chunkPause: DefaultChunkPause,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Supported reports whether path has an extension with a registered reader.
func (p *Pipeline) Supported(path string) bool {
	_, ok := p.readers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IngestDirectory ingests every supported file directly inside dir, in
// name order. A canceled context stops the run before the next file; the
// summary holds the files already processed.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) (*Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !p.Supported(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return &Summary{}, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}
	slices.Sort(files)

	p.logger.Info("found documents", "dir", dir, "count", len(files))

	summary := &Summary{Documents: make([]DocumentResult, 0, len(files))}
	if p.pool == nil {
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			summary.Documents = append(summary.Documents, p.IngestFile(ctx, f))
		}
		return summary, nil
	}

	results := make([]DocumentResult, len(files))
	done := make([]bool, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			results[i] = p.IngestFile(ctx, f)
			done[i] = true
		})
		if err != nil {
			wg.Done()
			results[i] = DocumentResult{Path: f, Source: filepath.Base(f), Status: DocumentFailed, Err: err}
			done[i] = true
		}
	}
	wg.Wait()

	for i := range results {
		if done[i] {
			summary.Documents = append(summary.Documents, results[i])
		}
	}
	return summary, ctx.Err()
}

// IngestFile reads, normalizes, chunks and embeds one file.
func (p *Pipeline) IngestFile(ctx context.Context, path string) DocumentResult {
	source := filepath.Base(path)
	res := DocumentResult{Path: path, Source: source}
	logger := p.logger.With("source", source)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read file", "err", err)
		res.Status, res.Err = DocumentFailed, err
		return res
	}
	res.ContentHash = core.ContentHash(data)

	if p.ledger != nil && !p.force {
		entry, err := p.ledger.Lookup(ctx, res.ContentHash)
		switch {
		case err == nil:
			logger.Info("already ingested, skipping", "document_id", entry.DocumentID, "completed_at", entry.CompletedAt)
			res.DocumentID = entry.DocumentID
			res.Status = DocumentSkipped
			return res
		case !errors.Is(err, ledger.ErrNotFound):
			logger.Warn("ledger lookup failed, ingesting anyway", "err", err)
		}
	}

	reader, ok := p.readers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		res.Status, res.Err = DocumentFailed, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
		return res
	}

	content, err := reader.Read(ctx, data)
	if err != nil {
		logger.Error("failed to extract text", "err", err)
		res.Status, res.Err = DocumentFailed, err
		return res
	}
	for _, w := range content.Warnings {
		logger.Warn("extraction warning", "warning", w)
	}

	p.ingest(ctx, &res, content.Pages)
	res.Warnings = append(content.Warnings, res.Warnings...)

	if p.ledger != nil && res.Status == DocumentIngested {
		p.record(ctx, logger, &res)
	}
	return res
}

// record stores a ledger entry for res. A document with a failed chunk
// write is left out: reconcile has no row to repair, so the file must be
// read again on the next run.
func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, res *DocumentResult) {
	if failed := res.Count(ChunkFailed); failed > 0 {
		logger.Warn("not recording ledger entry", "failed_chunks", failed)
		return
	}
	entry := &ledger.Entry{
		ContentHash: res.ContentHash,
		Source:      res.Source,
		DocumentID:  res.DocumentID,
		Chunks:      len(res.Chunks),
		Embedded:    res.Count(ChunkEmbedded),
	}
	if err := p.ledger.Record(ctx, entry); err != nil {
		logger.Warn("failed to record ledger entry", "err", err)
	}
}

// IngestText ingests already extracted text. pages holds the text of each
// page; pass a single element for formats without pages.
func (p *Pipeline) IngestText(ctx context.Context, source string, pages []string) DocumentResult {
	res := DocumentResult{
		Source:      source,
		ContentHash: core.ContentHash([]byte(strings.Join(pages, "\n"))),
	}
	p.ingest(ctx, &res, pages)
	return res
}

func (p *Pipeline) ingest(ctx context.Context, res *DocumentResult, pages []string) {
	logger := p.logger.With("source", res.Source)

	pt := normalizePages(pages)
	if pt.text == "" {
		logger.Warn("document is empty after normalization")
		res.Status = DocumentEmpty
		return
	}
	logger.Info("text extracted", "chars", utf8.RuneCountInString(pt.text), "pages", len(pages))

	doc, err := p.store.CreateDocument(ctx, &core.Document{Source: res.Source, ContentHash: res.ContentHash})
	if err != nil {
		logger.Error("failed to create document", "err", err)
		res.Status, res.Err = DocumentFailed, fmt.Errorf("%w: %w", ErrDocumentWrite, err)
		return
	}
	res.DocumentID = doc.ID

	section, err := p.store.CreateSection(ctx, &core.Section{
		DocumentID:    doc.ID,
		SectionType:   core.DefaultSectionType,
		SectionNumber: core.DefaultSectionNumber,
		ContentHash:   core.ContentHash([]byte(pt.text)),
	})
	if err != nil {
		logger.Error("failed to create section", "document_id", doc.ID, "err", err)
		res.Status, res.Err = DocumentFailed, fmt.Errorf("%w: %w", ErrDocumentWrite, err)
		return
	}
	res.SectionID = section.ID

	chunks := p.chunker.Chunk(pt.text)
	logger.Info("document chunked", "document_id", doc.ID, "chunks", len(chunks))

	res.Status = DocumentIngested
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			logger.Warn("interrupted", "processed", i, "chunks", len(chunks))
			res.Status, res.Err = DocumentInterrupted, err
			return
		}
		logger.Debug("processing chunk", "chunk", i+1, "of", len(chunks))
		res.Chunks = append(res.Chunks, p.ingestChunk(ctx, logger, section, i, c, &pt))
	}

	logger.Info("document processed",
		"document_id", doc.ID,
		"embedded", res.Count(ChunkEmbedded),
		"unembedded", res.Count(ChunkUnembedded),
		"orphaned", res.Count(ChunkOrphaned),
		"failed", res.Count(ChunkFailed))
}

func (p *Pipeline) ingestChunk(ctx context.Context, logger *slog.Logger, section *core.Section, order int, c chunking.Chunk, pt *pageText) ChunkResult {
	text, start, end := trimSpan(c)
	cr := ChunkResult{Order: order, Reference: ExtractReference(text)}
	cr.StartPage, cr.EndPage = pt.pageRange(start, end)

	chunk, err := p.store.CreateChunk(ctx, &core.Chunk{
		SectionID:  section.ID,
		DocumentID: section.DocumentID,
		Text:       text,
		CharCount:  utf8.RuneCountInString(text),
		StartPage:  cr.StartPage,
		EndPage:    cr.EndPage,
		ChunkOrder: order,
		Reference:  cr.Reference,
	})
	if err != nil {
		logger.Error("failed to create chunk", "order", order, "err", err)
		cr.Status, cr.Err = ChunkFailed, fmt.Errorf("%w: %w", ErrChunkWrite, err)
		return cr
	}
	cr.ChunkID = chunk.ID

	defer p.pause(ctx)

	vec, err := p.embedding.GetEmbedding(ctx, text)
	if err != nil {
		logger.Warn("no embedding for chunk", "chunk_id", chunk.ID, "err", err)
		cr.Status, cr.Err = ChunkUnembedded, err
		return cr
	}

	emb, err := p.store.CreateEmbedding(ctx, &core.Embedding{
		ChunkID: chunk.ID,
		Vector:  vec,
		Order:   core.DefaultEmbeddingOrder,
	})
	switch {
	case err == nil:
		cr.Status, cr.VectorID = ChunkEmbedded, emb.VectorID
	case errors.Is(err, storage.ErrLinkFailed) && emb != nil:
		logger.Warn("embedding stored but chunk not linked", "chunk_id", chunk.ID, "vector_id", emb.VectorID, "err", err)
		cr.Status, cr.VectorID, cr.Err = ChunkOrphaned, emb.VectorID, err
	default:
		logger.Error("failed to store embedding", "chunk_id", chunk.ID, "err", err)
		cr.Status, cr.Err = ChunkUnembedded, fmt.Errorf("%w: %w", ErrEmbeddingWrite, err)
	}
	return cr
}

// pause waits between embedding attempts. Cancellation ends the wait
// early and is picked up by the chunk loop.
func (p *Pipeline) pause(ctx context.Context) {
	if p.chunkPause > 0 {
		_ = retry.Sleep(ctx, p.chunkPause)
	}
}

// trimSpan trims the chunk text and moves its rune offsets past the
// removed whitespace.
func trimSpan(c chunking.Chunk) (string, int, int) {
	left := strings.TrimLeftFunc(c.Text, unicode.IsSpace)
	start := c.StartIndex + utf8.RuneCountInString(c.Text) - utf8.RuneCountInString(left)
	text := strings.TrimRightFunc(left, unicode.IsSpace)
	end := c.EndIndex - (utf8.RuneCountInString(left) - utf8.RuneCountInString(text))
	return text, start, end
}
