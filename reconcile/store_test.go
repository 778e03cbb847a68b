package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/juris/core"
	"github.com/poiesic/juris/storage"
)

// memStore is an in-memory storage.Store that can hold orphan embeddings.
type memStore struct {
	mu         sync.Mutex
	chunks     map[core.ID]*core.Chunk
	embeddings map[core.ID]*core.Embedding
	linkFails  int // LinkChunk calls left to fail
	linkCalls  int
	nonTxLink  bool // CreateEmbedding reports ErrLinkFailed like a REST store
}

var _ storage.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		chunks:     make(map[core.ID]*core.Chunk),
		embeddings: make(map[core.ID]*core.Embedding),
	}
}

func (s *memStore) addChunk(text string) *core.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &core.Chunk{ID: core.NewID(), SectionID: core.NewID(), DocumentID: core.NewID(), Text: text, CharCount: len(text), StartPage: 1, EndPage: 1}
	s.chunks[c.ID] = c
	return c
}

func (s *memStore) addOrphan(chunkID core.ID) *core.Embedding {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &core.Embedding{VectorID: core.NewID(), ChunkID: chunkID, Vector: make([]float32, core.EmbeddingDimensions), Order: 1}
	s.embeddings[e.VectorID] = e
	return e
}

func (s *memStore) CreateDocument(context.Context, *core.Document) (*core.Document, error) {
	return nil, fmt.Errorf("not supported")
}

func (s *memStore) CreateSection(context.Context, *core.Section) (*core.Section, error) {
	return nil, fmt.Errorf("not supported")
}

func (s *memStore) CreateChunk(context.Context, *core.Chunk) (*core.Chunk, error) {
	return nil, fmt.Errorf("not supported")
}

func (s *memStore) CreateEmbedding(ctx context.Context, e *core.Embedding) (*core.Embedding, error) {
	if err := storage.PrepareEmbedding(e, time.Now()); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if _, ok := s.chunks[e.ChunkID]; !ok {
		s.mu.Unlock()
		return nil, storage.ErrNotFound
	}
	s.embeddings[e.VectorID] = e
	s.mu.Unlock()

	if err := s.LinkChunk(ctx, e.ChunkID, e.VectorID); err != nil {
		if s.nonTxLink {
			return e, fmt.Errorf("%w: %w", storage.ErrLinkFailed, err)
		}
		s.mu.Lock()
		delete(s.embeddings, e.VectorID)
		s.mu.Unlock()
		return nil, err
	}
	return e, nil
}

func (s *memStore) LinkChunk(_ context.Context, chunkID, vectorID core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkCalls++
	if s.linkFails > 0 {
		s.linkFails--
		return fmt.Errorf("link unavailable")
	}
	c, ok := s.chunks[chunkID]
	if !ok {
		return storage.ErrNotFound
	}
	c.VectorID = core.SomeID(vectorID)
	return nil
}

func (s *memStore) GetChunk(_ context.Context, id core.ID) (*core.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func compareIDs(a, b core.ID) int {
	return bytes.Compare(a[:], b[:])
}

func (s *memStore) ListUnembeddedChunks(_ context.Context, after core.ID, limit int) ([]*core.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Chunk
	for _, c := range s.chunks {
		if !c.Embedded() && compareIDs(c.ID, after) > 0 {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *core.Chunk) int { return compareIDs(a.ID, b.ID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ListOrphanEmbeddings(_ context.Context, after core.ID, limit int) ([]*core.Embedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Embedding
	for _, e := range s.embeddings {
		c, ok := s.chunks[e.ChunkID]
		if ok && !c.Embedded() && compareIDs(e.VectorID, after) > 0 {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b *core.Embedding) int { return compareIDs(a.VectorID, b.VectorID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Close() error {
	return nil
}
