package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/poiesic/juris/ai/mock"
	"github.com/poiesic/juris/chunking"
	"github.com/poiesic/juris/core"
	"github.com/poiesic/juris/retry"
	"github.com/poiesic/juris/storage"
	"github.com/poiesic/juris/storage/sqlite"
)

// twoSentences chunks into two chunks of one sentence each with newChunker(5).
const twoSentences = "Primera oración del documento legal. Segunda oración del documento legal."

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func newChunker(t *testing.T, size int) *chunking.Chunker {
	t.Helper()
	c, err := chunking.New(chunking.TokenizerFunc(wordCount),
		chunking.WithChunkSize(size),
		chunking.WithChunkOverlap(0))
	require.NoError(t, err)
	return c
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newController(t *testing.T, e *mock.MockEmbedder) *retry.Controller {
	t.Helper()
	c, err := retry.New(e, retry.WithSleeper(noSleep))
	require.NoError(t, err)
	return c
}

func setupTestStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := sqlite.NewStore(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type testEnv struct {
	store    storage.Store
	embedder *mock.MockEmbedder
	pipeline *Pipeline
}

func setupTestPipeline(t *testing.T, store storage.Store, chunkSize int, opts ...Option) *testEnv {
	t.Helper()
	if store == nil {
		store = setupTestStore(t)
	}
	embedder := mock.NewMockEmbedder()
	p, err := NewPipeline(store, newChunker(t, chunkSize), newController(t, embedder),
		append([]Option{WithChunkPause(0)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return &testEnv{store: store, embedder: embedder, pipeline: p}
}

var errInjected = errors.New("injected failure")

// faultyStore fails selected writes of an underlying store.
type faultyStore struct {
	storage.Store
	failDocument bool
	failSection  bool
	failChunks   map[int]bool
	failLink     bool
	failEmbed    bool
}

func (f *faultyStore) CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if f.failDocument {
		return nil, errInjected
	}
	return f.Store.CreateDocument(ctx, doc)
}

func (f *faultyStore) CreateSection(ctx context.Context, section *core.Section) (*core.Section, error) {
	if f.failSection {
		return nil, errInjected
	}
	return f.Store.CreateSection(ctx, section)
}

func (f *faultyStore) CreateChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error) {
	if f.failChunks[chunk.ChunkOrder] {
		return nil, errInjected
	}
	return f.Store.CreateChunk(ctx, chunk)
}

// CreateEmbedding with failLink mimics a non-transactional store whose
// back-link write failed after the embedding row was written.
func (f *faultyStore) CreateEmbedding(ctx context.Context, e *core.Embedding) (*core.Embedding, error) {
	switch {
	case f.failEmbed:
		return nil, errInjected
	case f.failLink:
		e.VectorID = core.NewID()
		return e, fmt.Errorf("%w: %w", storage.ErrLinkFailed, errInjected)
	}
	return f.Store.CreateEmbedding(ctx, e)
}
