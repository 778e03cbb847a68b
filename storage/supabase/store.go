package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/supabase-community/postgrest-go"

	"github.com/poiesic/juris/core"
	"github.com/poiesic/juris/storage"
)

// ErrMissingCredentials is returned by NewStore without a URL or API key.
var ErrMissingCredentials = errors.New("supabase url and api key are required")

const chunkColumns = "chunk_id,section_id,document_id,chunk_text,char_count,start_page,end_page,chunk_order," +
	"article_number,section_number,paragraph_number,vector_id,created_at"

// Store implements storage.Store over the Supabase REST API.
//
// The REST API cannot span two writes in one transaction, so
// CreateEmbedding may leave an embedding without its chunk back-link. It
// reports that case with an error wrapping storage.ErrLinkFailed.
//
// postgrest-go does not accept a context; calls check ctx before each request.
type Store struct {
	client *postgrest.Client
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = l
		return nil
	}
}

// WithSchema selects a database schema other than public.
func WithSchema(schema string) Option {
	return func(s *Store) error {
		s.client.ChangeSchema(schema)
		return nil
	}
}

// NewStore creates a store for the project at baseURL
// (https://<project>.supabase.co) authenticated with apiKey.
//
// Returns storage.Store interface to enforce abstraction.
func NewStore(baseURL, apiKey string, opts ...Option) (storage.Store, error) {
	s, err := newStore(baseURL, apiKey, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(baseURL, apiKey string, opts ...Option) (*Store, error) {
	if baseURL == "" || apiKey == "" {
		return nil, ErrMissingCredentials
	}

	client := postgrest.NewClient(strings.TrimSuffix(baseURL, "/")+"/rest/v1", "public", map[string]string{
		"apikey":        apiKey,
		"Authorization": "Bearer " + apiKey,
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("creating postgrest client: %w", client.ClientError)
	}

	s := &Store{client: client}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "supabase-store")

	return s, nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (s *Store) Close() error {
	return nil
}

// CreateDocument implements storage.Store.
// The hosted documents table has no content hash column, so the hash is
// not sent.
func (s *Store) CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := storage.PrepareDocument(doc, time.Now().UTC()); err != nil {
		return nil, err
	}
	row := documentRow{DocumentID: doc.ID, Source: doc.Source, CreatedAt: doc.CreatedAt}
	if err := s.insert(ctx, "documents", row); err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	return doc, nil
}

// CreateSection implements storage.Store.
func (s *Store) CreateSection(ctx context.Context, section *core.Section) (*core.Section, error) {
	if err := storage.PrepareSection(section, time.Now().UTC()); err != nil {
		return nil, err
	}
	row := sectionRow{
		SectionID:     section.ID,
		DocumentID:    section.DocumentID,
		SectionType:   section.SectionType,
		SectionNumber: section.SectionNumber,
		ContentHash:   section.ContentHash,
		CreatedAt:     section.CreatedAt,
	}
	if err := s.insert(ctx, "sections", row); err != nil {
		return nil, fmt.Errorf("inserting section: %w", err)
	}
	return section, nil
}

// CreateChunk implements storage.Store.
func (s *Store) CreateChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error) {
	if err := storage.PrepareChunk(chunk, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.insert(ctx, "chunks", fromChunk(chunk)); err != nil {
		return nil, fmt.Errorf("inserting chunk: %w", err)
	}
	return chunk, nil
}

// CreateEmbedding writes the embedding row, then sets the chunk's
// vector_id. If only the second write fails the persisted embedding is
// returned along with an error wrapping storage.ErrLinkFailed.
func (s *Store) CreateEmbedding(ctx context.Context, embedding *core.Embedding) (*core.Embedding, error) {
	if err := storage.PrepareEmbedding(embedding, time.Now().UTC()); err != nil {
		return nil, err
	}

	row := embeddingRow{
		VectorID:        embedding.VectorID,
		ChunkID:         embedding.ChunkID,
		Embedding:       vectorJSON{pgvector.NewVector(embedding.Vector)},
		EmbeddingsOrder: embedding.Order,
		CreatedAt:       embedding.CreatedAt,
	}
	if err := s.insert(ctx, "embeddings", row); err != nil {
		return nil, fmt.Errorf("inserting embedding: %w", err)
	}

	if err := s.LinkChunk(ctx, embedding.ChunkID, embedding.VectorID); err != nil {
		s.logger.Warn("embedding stored without chunk back-link",
			"vector_id", embedding.VectorID, "chunk_id", embedding.ChunkID, "err", err)
		return embedding, fmt.Errorf("%w: %w", storage.ErrLinkFailed, err)
	}
	return embedding, nil
}

// LinkChunk implements storage.Store.
func (s *Store) LinkChunk(ctx context.Context, chunkID, vectorID core.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var updated []struct {
		ChunkID string `json:"chunk_id"`
	}
	_, err := s.client.From("chunks").
		Update(map[string]string{"vector_id": vectorID.String()}, "representation", "").
		Eq("chunk_id", chunkID.String()).
		ExecuteTo(&updated)
	if err != nil {
		return fmt.Errorf("linking chunk: %w", mapError(err))
	}
	if len(updated) == 0 {
		return fmt.Errorf("%w: chunk %s", storage.ErrNotFound, chunkID)
	}
	return nil
}

// GetChunk implements storage.Store.
func (s *Store) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []chunkRow
	_, err := s.client.From("chunks").
		Select(chunkColumns, "", false).
		Eq("chunk_id", id.String()).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("getting chunk %s: %w", id, mapError(err))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: chunk %s", storage.ErrNotFound, id)
	}
	return rows[0].toChunk(), nil
}

// ListUnembeddedChunks implements storage.Store.
func (s *Store) ListUnembeddedChunks(ctx context.Context, after core.ID, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []chunkRow
	_, err := s.client.From("chunks").
		Select(chunkColumns, "", false).
		Is("vector_id", "null").
		Gt("chunk_id", after.String()).
		Order("chunk_id", &postgrest.OrderOpts{Ascending: true}).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("listing unembedded chunks: %w", mapError(err))
	}

	chunks := make([]*core.Chunk, len(rows))
	for i := range rows {
		chunks[i] = rows[i].toChunk()
	}
	return chunks, nil
}

// ListOrphanEmbeddings implements storage.Store. It uses an inner embed of
// the chunks table so the null filter applies to the parent chunk.
func (s *Store) ListOrphanEmbeddings(ctx context.Context, after core.ID, limit int) ([]*core.Embedding, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []embeddingRow
	_, err := s.client.From("embeddings").
		Select("vector_id,chunk_id,embedding,embeddings_order,chunks!inner(vector_id)", "", false).
		Is("chunks.vector_id", "null").
		Gt("vector_id", after.String()).
		Order("vector_id", &postgrest.OrderOpts{Ascending: true}).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("listing orphan embeddings: %w", mapError(err))
	}

	embeddings := make([]*core.Embedding, len(rows))
	for i := range rows {
		embeddings[i] = rows[i].toEmbedding()
	}
	return embeddings, nil
}

func (s *Store) insert(ctx context.Context, table string, row any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := s.client.From(table).Insert(row, false, "", "minimal", "").Execute()
	if err != nil {
		return mapError(err)
	}
	return nil
}

// mapError translates PostgREST error codes, reported as "(code) message",
// into storage errors.
func mapError(err error) error {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "(23503)"):
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case strings.HasPrefix(msg, "(23505)"):
		return fmt.Errorf("%w: %w", storage.ErrDuplicateKey, err)
	}
	return err
}
