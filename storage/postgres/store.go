package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/poiesic/juris/core"
	"github.com/poiesic/juris/storage"
)

// Store implements storage.Store on PostgreSQL with the pgvector extension.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

type options struct {
	logger   *slog.Logger
	logLevel logger.LogLevel
	migrate  bool
}

// Option configures a Store.
type Option func(*options) error

// WithLogger sets a custom logger. GORM output is routed to it as well.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		o.logger = l
		return nil
	}
}

// WithLogLevel sets GORM's log level. Default: logger.Warn
func WithLogLevel(level logger.LogLevel) Option {
	return func(o *options) error {
		o.logLevel = level
		return nil
	}
}

// WithAutoMigrate controls whether NewStore creates the vector extension
// and the tables. Default: true
func WithAutoMigrate(enabled bool) Option {
	return func(o *options) error {
		o.migrate = enabled
		return nil
	}
}

// NewStore connects to the database at dsn.
//
// Returns storage.Store interface to enforce abstraction.
func NewStore(ctx context.Context, dsn string, opts ...Option) (storage.Store, error) {
	s, err := newStore(ctx, dsn, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	o := &options{logLevel: logger.Warn, migrate: true}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	log := o.logger.With("component", "postgres-store")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.NewSlogLogger(log, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  o.logLevel,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, logger: log}
	if o.migrate {
		if err := s.autoMigrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return s, nil
}

func (s *Store) autoMigrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return err
	}
	return db.AutoMigrate(&documentRow{}, &sectionRow{}, &chunkRow{}, &embeddingRow{})
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateDocument implements storage.Store.
func (s *Store) CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := storage.PrepareDocument(doc, time.Now().UTC()); err != nil {
		return nil, err
	}

	row := documentRow{ID: doc.ID, Source: doc.Source, ContentHash: doc.ContentHash, CreatedAt: doc.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("inserting document: %w", mapError(err))
	}
	return doc, nil
}

// CreateSection implements storage.Store.
func (s *Store) CreateSection(ctx context.Context, section *core.Section) (*core.Section, error) {
	if err := storage.PrepareSection(section, time.Now().UTC()); err != nil {
		return nil, err
	}

	row := sectionRow{
		ID:            section.ID,
		DocumentID:    section.DocumentID,
		SectionType:   section.SectionType,
		SectionNumber: section.SectionNumber,
		ContentHash:   section.ContentHash,
		CreatedAt:     section.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Omit("Document").Create(&row).Error; err != nil {
		return nil, fmt.Errorf("inserting section: %w", mapError(err))
	}
	return section, nil
}

// CreateChunk implements storage.Store.
func (s *Store) CreateChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error) {
	if err := storage.PrepareChunk(chunk, time.Now().UTC()); err != nil {
		return nil, err
	}

	row := fromChunk(chunk)
	if err := s.db.WithContext(ctx).Omit("Section", "Document").Create(row).Error; err != nil {
		return nil, fmt.Errorf("inserting chunk: %w", mapError(err))
	}
	return chunk, nil
}

// CreateEmbedding inserts the embedding and back-links its chunk in one
// transaction.
func (s *Store) CreateEmbedding(ctx context.Context, embedding *core.Embedding) (*core.Embedding, error) {
	if err := storage.PrepareEmbedding(embedding, time.Now().UTC()); err != nil {
		return nil, err
	}

	row := embeddingRow{
		VectorID:        embedding.VectorID,
		ChunkID:         embedding.ChunkID,
		Embedding:       pgvector.NewVector(embedding.Vector),
		EmbeddingsOrder: embedding.Order,
		CreatedAt:       embedding.CreatedAt,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Chunk").Create(&row).Error; err != nil {
			return fmt.Errorf("inserting embedding: %w", mapError(err))
		}
		return linkChunk(tx, embedding.ChunkID, embedding.VectorID)
	})
	if err != nil {
		return nil, err
	}
	return embedding, nil
}

// LinkChunk implements storage.Store.
func (s *Store) LinkChunk(ctx context.Context, chunkID, vectorID core.ID) error {
	return linkChunk(s.db.WithContext(ctx), chunkID, vectorID)
}

func linkChunk(db *gorm.DB, chunkID, vectorID core.ID) error {
	res := db.Model(&chunkRow{}).Where("chunk_id = ?", chunkID).Update("vector_id", core.SomeID(vectorID))
	if res.Error != nil {
		return fmt.Errorf("linking chunk: %w", mapError(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: chunk %s", storage.ErrNotFound, chunkID)
	}
	return nil
}

// GetChunk implements storage.Store.
func (s *Store) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	var row chunkRow
	if err := s.db.WithContext(ctx).Where("chunk_id = ?", id).First(&row).Error; err != nil {
		return nil, fmt.Errorf("getting chunk %s: %w", id, mapError(err))
	}
	return toChunk(&row), nil
}

// ListUnembeddedChunks implements storage.Store.
func (s *Store) ListUnembeddedChunks(ctx context.Context, after core.ID, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var rows []chunkRow
	err := s.db.WithContext(ctx).
		Where("vector_id IS NULL AND chunk_id > ?", after).
		Order("chunk_id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing unembedded chunks: %w", err)
	}

	chunks := make([]*core.Chunk, len(rows))
	for i := range rows {
		chunks[i] = toChunk(&rows[i])
	}
	return chunks, nil
}

// ListOrphanEmbeddings implements storage.Store.
func (s *Store) ListOrphanEmbeddings(ctx context.Context, after core.ID, limit int) ([]*core.Embedding, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var rows []embeddingRow
	err := s.db.WithContext(ctx).
		Table("embeddings AS e").
		Select("e.*").
		Joins("JOIN chunks c ON c.chunk_id = e.chunk_id").
		Where("c.vector_id IS NULL AND e.vector_id > ?", after).
		Order("e.vector_id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing orphan embeddings: %w", err)
	}

	embeddings := make([]*core.Embedding, len(rows))
	for i := range rows {
		embeddings[i] = toEmbedding(&rows[i])
	}
	return embeddings, nil
}

// mapError translates GORM errors into storage errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", storage.ErrDuplicateKey, err)
	}
	return err
}
