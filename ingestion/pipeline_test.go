package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/juris/ai"
	"github.com/poiesic/juris/ai/mock"
	"github.com/poiesic/juris/chunking"
	"github.com/poiesic/juris/core"
	"github.com/poiesic/juris/ledger"
	"github.com/poiesic/juris/ledger/badger"
	"github.com/poiesic/juris/retry"
	"github.com/poiesic/juris/storage"
)

func TestNewPipeline_Validation(t *testing.T) {
	store := setupTestStore(t)
	chunker := newChunker(t, 512)
	controller := newController(t, mock.NewMockEmbedder())

	_, err := NewPipeline(nil, chunker, controller)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewPipeline(store, nil, controller)
	assert.ErrorIs(t, err, ErrChunkerRequired)
	_, err = NewPipeline(store, chunker, nil)
	assert.ErrorIs(t, err, ErrRetryControllerRequired)
}

func TestIngestText_SingleChunk(t *testing.T) {
	env := setupTestPipeline(t, nil, 512)
	ctx := context.Background()

	res := env.pipeline.IngestText(ctx, "contrato.txt", []string{"Hola. Mundo. PRIMERA. Cláusula uno."})
	require.NoError(t, res.Err)
	assert.Equal(t, DocumentIngested, res.Status)
	assert.NotEqual(t, core.NilID, res.DocumentID)
	assert.NotEqual(t, core.NilID, res.SectionID)
	require.Len(t, res.Chunks, 1)

	cr := res.Chunks[0]
	assert.Equal(t, ChunkEmbedded, cr.Status)
	assert.Equal(t, 1, cr.StartPage)
	assert.Equal(t, 1, cr.EndPage)

	chunk, err := env.store.GetChunk(ctx, cr.ChunkID)
	require.NoError(t, err)
	assert.Equal(t, "Hola. Mundo. PRIMERA. Cláusula uno.", chunk.Text)
	assert.Equal(t, 35, chunk.CharCount)
	assert.Equal(t, 0, chunk.ChunkOrder)
	assert.True(t, chunk.Embedded())
	assert.Equal(t, cr.VectorID, chunk.VectorID.UUID)

	assert.Equal(t, []string{"Hola. Mundo. PRIMERA. Cláusula uno."}, env.embedder.Texts())
}

func TestIngestText_ArticleReference(t *testing.T) {
	env := setupTestPipeline(t, nil, 512)
	ctx := context.Background()

	res := env.pipeline.IngestText(ctx, "ley.txt", []string{"Artículo 12. Se aplica la fracción III del párrafo primero."})
	require.NoError(t, res.Err)
	require.Len(t, res.Chunks, 1)

	want := core.ArticleReference{Article: "12", Section: "III", Paragraph: "primero"}
	assert.Equal(t, want, res.Chunks[0].Reference)

	chunk, err := env.store.GetChunk(ctx, res.Chunks[0].ChunkID)
	require.NoError(t, err)
	assert.Equal(t, want, chunk.Reference)
}

func TestIngestText_Empty(t *testing.T) {
	env := setupTestPipeline(t, nil, 512)

	res := env.pipeline.IngestText(context.Background(), "vacio.txt", []string{"  \n ### @@@ \n"})
	assert.Equal(t, DocumentEmpty, res.Status)
	assert.Equal(t, core.NilID, res.DocumentID)
	assert.Zero(t, env.embedder.CallCount())
}

func TestIngestText_WrongDimensionsLeavesChunkUnembedded(t *testing.T) {
	env := setupTestPipeline(t, nil, 512)
	env.embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1, 2, 3, 4, 5}, nil
	}
	ctx := context.Background()

	res := env.pipeline.IngestText(ctx, "ley.txt", []string{"Artículo 1. Objeto de la ley."})
	assert.Equal(t, DocumentIngested, res.Status)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, ChunkUnembedded, res.Chunks[0].Status)
	assert.ErrorIs(t, res.Chunks[0].Err, ErrEmbeddingWrite)

	chunk, err := env.store.GetChunk(ctx, res.Chunks[0].ChunkID)
	require.NoError(t, err)
	assert.False(t, chunk.Embedded())

	orphans, err := env.store.ListOrphanEmbeddings(ctx, core.NilID, 10)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestIngestText_StoreFailures(t *testing.T) {
	tests := []struct {
		name       string
		store      *faultyStore
		wantStatus DocumentStatus
		wantChunks []ChunkStatus
	}{
		{
			name:       "document write fails",
			store:      &faultyStore{failDocument: true},
			wantStatus: DocumentFailed,
		},
		{
			name:       "section write fails",
			store:      &faultyStore{failSection: true},
			wantStatus: DocumentFailed,
		},
		{
			name:       "first chunk write fails",
			store:      &faultyStore{failChunks: map[int]bool{0: true}},
			wantStatus: DocumentIngested,
			wantChunks: []ChunkStatus{ChunkFailed, ChunkEmbedded},
		},
		{
			name:       "embedding write fails",
			store:      &faultyStore{failEmbed: true},
			wantStatus: DocumentIngested,
			wantChunks: []ChunkStatus{ChunkUnembedded, ChunkUnembedded},
		},
		{
			name:       "back-link fails",
			store:      &faultyStore{failLink: true},
			wantStatus: DocumentIngested,
			wantChunks: []ChunkStatus{ChunkOrphaned, ChunkOrphaned},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.store.Store = setupTestStore(t)
			env := setupTestPipeline(t, tt.store, 5)

			res := env.pipeline.IngestText(context.Background(), "contrato.txt", []string{twoSentences})
			assert.Equal(t, tt.wantStatus, res.Status)

			if tt.wantStatus == DocumentFailed {
				assert.ErrorIs(t, res.Err, ErrDocumentWrite)
				assert.Empty(t, res.Chunks)
				assert.Zero(t, env.embedder.CallCount())
				return
			}

			require.Len(t, res.Chunks, len(tt.wantChunks))
			for i, want := range tt.wantChunks {
				assert.Equal(t, want, res.Chunks[i].Status, "chunk %d", i)
				assert.Equal(t, i, res.Chunks[i].Order)
			}
		})
	}
}

func TestIngestText_OrphanKeepsVectorID(t *testing.T) {
	store := &faultyStore{Store: setupTestStore(t), failLink: true}
	env := setupTestPipeline(t, store, 512)

	res := env.pipeline.IngestText(context.Background(), "a.txt", []string{"Artículo 1. Objeto de la ley."})
	require.Len(t, res.Chunks, 1)
	cr := res.Chunks[0]
	assert.Equal(t, ChunkOrphaned, cr.Status)
	assert.NotEqual(t, core.NilID, cr.VectorID)
	assert.ErrorIs(t, cr.Err, storage.ErrLinkFailed)
}

func TestIngestText_EmbeddingErrorContinues(t *testing.T) {
	env := setupTestPipeline(t, nil, 5)
	calls := 0
	env.embedder.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
		calls++
		if calls == 1 {
			return nil, &ai.EmbeddingError{Kind: ai.KindFatal, Provider: "mock", Err: assert.AnError}
		}
		return make([]float32, core.EmbeddingDimensions), nil
	}

	res := env.pipeline.IngestText(context.Background(), "a.txt", []string{twoSentences})
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, ChunkUnembedded, res.Chunks[0].Status)
	assert.ErrorIs(t, res.Chunks[0].Err, ai.ErrEmbeddingService)
	assert.Equal(t, ChunkEmbedded, res.Chunks[1].Status)
	assert.Equal(t, 2, calls, "fatal errors are not retried")
}

func TestIngestText_EmptyVectorsExhaustRetries(t *testing.T) {
	env := setupTestPipeline(t, nil, 512)
	env.embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, nil
	}

	res := env.pipeline.IngestText(context.Background(), "a.txt", []string{"Artículo 1. Objeto de la ley."})
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, ChunkUnembedded, res.Chunks[0].Status)
	assert.ErrorIs(t, res.Chunks[0].Err, retry.ErrNoEmbedding)
	assert.Equal(t, retry.DefaultMaxRetries, env.embedder.CallCount())
}

func TestIngestText_CancelStopsBetweenChunks(t *testing.T) {
	env := setupTestPipeline(t, nil, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.embedder.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
		cancel()
		return make([]float32, core.EmbeddingDimensions), nil
	}

	res := env.pipeline.IngestText(ctx, "a.txt", []string{twoSentences})
	assert.Equal(t, DocumentInterrupted, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Len(t, res.Chunks, 1)
	assert.Equal(t, 1, env.embedder.CallCount())
}

func TestIngestText_PageRanges(t *testing.T) {
	env := setupTestPipeline(t, nil, 5)
	pages := []string{
		"Página uno tiene texto suficiente.",
		"   ",
		"Página tres tiene texto suficiente.",
	}

	res := env.pipeline.IngestText(context.Background(), "ley.pdf", pages)
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, [2]int{1, 1}, [2]int{res.Chunks[0].StartPage, res.Chunks[0].EndPage})
	assert.Equal(t, [2]int{3, 3}, [2]int{res.Chunks[1].StartPage, res.Chunks[1].EndPage})

	chunk, err := env.store.GetChunk(context.Background(), res.Chunks[1].ChunkID)
	require.NoError(t, err)
	assert.Equal(t, "Página tres tiene texto suficiente.", chunk.Text)
	assert.Equal(t, 3, chunk.StartPage)
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestIngestDirectory(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"b.TXT":     "SEGUNDA. Del precio pactado.",
		"a.txt":     "PRIMERA. Del objeto del contrato.",
		"empty.txt": "\n\n",
		"notes.md":  "ignored",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755))
	env := setupTestPipeline(t, nil, 512)

	summary, err := env.pipeline.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, summary.Documents, 3)

	assert.Equal(t, "a.txt", summary.Documents[0].Source)
	assert.Equal(t, "b.TXT", summary.Documents[1].Source)
	assert.Equal(t, "empty.txt", summary.Documents[2].Source)
	assert.Equal(t, DocumentEmpty, summary.Documents[2].Status)
	assert.Equal(t, 2, summary.Count(DocumentIngested))
	assert.Equal(t, 2, summary.Processed())
	assert.Equal(t, 2, summary.ChunkCount(ChunkEmbedded))
}

func TestIngestDirectory_NoDocuments(t *testing.T) {
	env := setupTestPipeline(t, nil, 512)

	_, err := env.pipeline.IngestDirectory(context.Background(), writeFiles(t, map[string]string{"x.md": "x"}))
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = env.pipeline.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIngestDirectory_Workers(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"1.txt": "Artículo 1. Primero del texto.",
		"2.txt": "Artículo 2. Segundo del texto.",
		"3.txt": "Artículo 3. Tercero del texto.",
		"4.txt": "Artículo 4. Cuarto del texto.",
	})
	env := setupTestPipeline(t, nil, 512, WithWorkers(3))

	summary, err := env.pipeline.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, summary.Documents, 4)
	for i, d := range summary.Documents {
		assert.Equal(t, []string{"1.txt", "2.txt", "3.txt", "4.txt"}[i], filepath.Base(d.Path))
		assert.Equal(t, DocumentIngested, d.Status, d.Source)
	}
	assert.Equal(t, 4, env.embedder.CallCount())
}

func TestIngestFile_Ledger(t *testing.T) {
	lg, err := badger.Open("", badger.WithInMemory())
	require.NoError(t, err)
	defer lg.Close()

	dir := writeFiles(t, map[string]string{"ley.txt": "Artículo 1. Objeto de la ley."})
	path := filepath.Join(dir, "ley.txt")
	ctx := context.Background()

	env := setupTestPipeline(t, nil, 512, WithLedger(lg))

	first := env.pipeline.IngestFile(ctx, path)
	require.Equal(t, DocumentIngested, first.Status)

	entry, err := lg.Lookup(ctx, first.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, first.DocumentID, entry.DocumentID)
	assert.Equal(t, 1, entry.Chunks)
	assert.True(t, entry.Complete())

	second := env.pipeline.IngestFile(ctx, path)
	assert.Equal(t, DocumentSkipped, second.Status)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, 1, env.embedder.CallCount())

	forced := setupTestPipeline(t, env.store, 512, WithLedger(lg), WithForce(true))
	third := forced.pipeline.IngestFile(ctx, path)
	assert.Equal(t, DocumentIngested, third.Status)
	assert.NotEqual(t, first.DocumentID, third.DocumentID)
}

func TestIngestFile_FailuresAreNotRecorded(t *testing.T) {
	lg, err := badger.Open("", badger.WithInMemory())
	require.NoError(t, err)
	defer lg.Close()

	store := &faultyStore{Store: setupTestStore(t), failDocument: true}
	env := setupTestPipeline(t, store, 512, WithLedger(lg))
	dir := writeFiles(t, map[string]string{"ley.txt": "Artículo 1. Objeto de la ley."})

	res := env.pipeline.IngestFile(context.Background(), filepath.Join(dir, "ley.txt"))
	assert.Equal(t, DocumentFailed, res.Status)

	_, err = lg.Lookup(context.Background(), res.ContentHash)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestIngestFile_FailedChunksAreNotRecorded(t *testing.T) {
	lg, err := badger.Open("", badger.WithInMemory())
	require.NoError(t, err)
	defer lg.Close()

	store := &faultyStore{Store: setupTestStore(t), failChunks: map[int]bool{1: true}}
	env := setupTestPipeline(t, store, 5, WithLedger(lg))
	dir := writeFiles(t, map[string]string{"ley.txt": twoSentences})
	path := filepath.Join(dir, "ley.txt")
	ctx := context.Background()

	res := env.pipeline.IngestFile(ctx, path)
	assert.Equal(t, DocumentIngested, res.Status)
	assert.Equal(t, 1, res.Count(ChunkFailed))

	_, err = lg.Lookup(ctx, res.ContentHash)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	store.failChunks = nil
	res = env.pipeline.IngestFile(ctx, path)
	assert.Equal(t, DocumentIngested, res.Status)
	assert.Equal(t, 2, res.Count(ChunkEmbedded))

	entry, err := lg.Lookup(ctx, res.ContentHash)
	require.NoError(t, err)
	assert.True(t, entry.Complete())

	res = env.pipeline.IngestFile(ctx, path)
	assert.Equal(t, DocumentSkipped, res.Status)
}

func TestIngestFile_ReaderSelection(t *testing.T) {
	custom := ReaderFunc(func(context.Context, []byte) (*Content, error) {
		return &Content{Pages: []string{"DÉCIMA. Texto extraído por el lector."}}, nil
	})
	env := setupTestPipeline(t, nil, 512, WithReaders(map[string]Reader{".RTF": custom}))
	dir := writeFiles(t, map[string]string{"a.rtf": "{\\rtf1}", "b.odt": "x"})
	ctx := context.Background()

	assert.True(t, env.pipeline.Supported("a.rtf"))
	res := env.pipeline.IngestFile(ctx, filepath.Join(dir, "a.rtf"))
	assert.Equal(t, DocumentIngested, res.Status)

	res = env.pipeline.IngestFile(ctx, filepath.Join(dir, "b.odt"))
	assert.Equal(t, DocumentFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrUnsupportedFormat)

	res = env.pipeline.IngestFile(ctx, filepath.Join(dir, "missing.txt"))
	assert.Equal(t, DocumentFailed, res.Status)
}

func TestIngestFile_LegacyDocWarning(t *testing.T) {
	env := setupTestPipeline(t, nil, 512)
	dir := writeFiles(t, map[string]string{"viejo.doc": "CAPÍTULO I. Disposiciones generales."})

	res := env.pipeline.IngestFile(context.Background(), filepath.Join(dir, "viejo.doc"))
	assert.Equal(t, DocumentIngested, res.Status)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], ".doc")
}

func TestTrimSpan(t *testing.T) {
	c := chunking.Chunk{Text: "\n Hola mundo. ", StartIndex: 10, EndIndex: 24}
	text, start, end := trimSpan(c)
	assert.Equal(t, "Hola mundo.", text)
	assert.Equal(t, 12, start)
	assert.Equal(t, 23, end)
}
