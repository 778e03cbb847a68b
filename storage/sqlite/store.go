package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/poiesic/juris/core"
	"github.com/poiesic/juris/storage"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const timeLayout = time.RFC3339Nano

// Store implements storage.Store on a local SQLite database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore opens (creating if needed) the database at path and applies
// pending migrations. MemoryPath gives a throwaway database for tests.
//
// Returns storage.Store interface to enforce abstraction.
func NewStore(path string) (storage.Store, error) {
	s, err := newStore(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(path string) (*Store, error) {
	var dsn string
	if path == MemoryPath {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		// WAL mode for concurrent readers during ingestion
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	s := &Store{
		db:     db,
		path:   path,
		logger: slog.Default().With("component", "sqlite-store"),
	}

	if err := s.migrate(migrationFiles); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_init.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		s.logger.Debug("applied migration", "name", name)
	}

	return nil
}

// CreateDocument implements storage.Store.
func (s *Store) CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := storage.PrepareDocument(doc, time.Now().UTC()); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (document_id, source, content_hash, created_at) VALUES (?, ?, ?, ?)`,
		doc.ID, doc.Source, doc.ContentHash, doc.CreatedAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", mapError(err))
	}
	return doc, nil
}

// CreateSection implements storage.Store.
func (s *Store) CreateSection(ctx context.Context, section *core.Section) (*core.Section, error) {
	if err := storage.PrepareSection(section, time.Now().UTC()); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sections (section_id, document_id, section_type, section_number, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		section.ID, section.DocumentID, section.SectionType, section.SectionNumber,
		section.ContentHash, section.CreatedAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("inserting section: %w", mapError(err))
	}
	return section, nil
}

// CreateChunk implements storage.Store.
func (s *Store) CreateChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error) {
	if err := storage.PrepareChunk(chunk, time.Now().UTC()); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (`+chunkColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.SectionID, chunk.DocumentID, chunk.Text, chunk.CharCount,
		chunk.StartPage, chunk.EndPage, chunk.ChunkOrder,
		nullText(chunk.Reference.Article), nullText(chunk.Reference.Section), nullText(chunk.Reference.Paragraph),
		chunk.VectorID, chunk.CreatedAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("inserting chunk: %w", mapError(err))
	}
	return chunk, nil
}

// CreateEmbedding inserts the embedding and back-links its chunk in one
// transaction. A missing chunk rolls both writes back.
func (s *Store) CreateEmbedding(ctx context.Context, embedding *core.Embedding) (*core.Embedding, error) {
	if err := storage.PrepareEmbedding(embedding, time.Now().UTC()); err != nil {
		return nil, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO embeddings (vector_id, chunk_id, embedding, embeddings_order, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			embedding.VectorID, embedding.ChunkID, storage.MarshalVector(embedding.Vector),
			embedding.Order, embedding.CreatedAt.Format(timeLayout))
		if err != nil {
			return fmt.Errorf("inserting embedding: %w", mapError(err))
		}
		return linkChunk(ctx, tx, embedding.ChunkID, embedding.VectorID)
	})
	if err != nil {
		return nil, err
	}
	return embedding, nil
}

// LinkChunk implements storage.Store.
func (s *Store) LinkChunk(ctx context.Context, chunkID, vectorID core.ID) error {
	return linkChunk(ctx, s.db, chunkID, vectorID)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func linkChunk(ctx context.Context, db execer, chunkID, vectorID core.ID) error {
	res, err := db.ExecContext(ctx, `UPDATE chunks SET vector_id = ? WHERE chunk_id = ?`, vectorID, chunkID)
	if err != nil {
		return fmt.Errorf("linking chunk: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("linking chunk: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: chunk %s", storage.ErrNotFound, chunkID)
	}
	return nil
}

const chunkColumns = `chunk_id, section_id, document_id, chunk_text, char_count, start_page, end_page, chunk_order,
	article_number, section_number, paragraph_number, vector_id, created_at`

// GetChunk implements storage.Store.
func (s *Store) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE chunk_id = ?`, id)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: chunk %s", storage.ErrNotFound, id)
	}
	return chunk, err
}

// ListUnembeddedChunks implements storage.Store.
func (s *Store) ListUnembeddedChunks(ctx context.Context, after core.ID, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE vector_id IS NULL AND chunk_id > ? ORDER BY chunk_id LIMIT ?`,
		after, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unembedded chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*core.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// ListOrphanEmbeddings implements storage.Store.
func (s *Store) ListOrphanEmbeddings(ctx context.Context, after core.ID, limit int) ([]*core.Embedding, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT e.vector_id, e.chunk_id, e.embedding, e.embeddings_order, e.created_at
		 FROM embeddings e JOIN chunks c ON c.chunk_id = e.chunk_id
		 WHERE c.vector_id IS NULL AND e.vector_id > ?
		 ORDER BY e.vector_id LIMIT ?`,
		after, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orphan embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []*core.Embedding
	for rows.Next() {
		var (
			e       core.Embedding
			blob    []byte
			created string
		)
		if err := rows.Scan(&e.VectorID, &e.ChunkID, &blob, &e.Order, &created); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		if e.Vector, err = storage.UnmarshalVector(blob); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		embeddings = append(embeddings, &e)
	}
	return embeddings, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner) (*core.Chunk, error) {
	var (
		c                           core.Chunk
		article, section, paragraph sql.NullString
		created                     string
	)
	err := row.Scan(&c.ID, &c.SectionID, &c.DocumentID, &c.Text, &c.CharCount,
		&c.StartPage, &c.EndPage, &c.ChunkOrder, &article, &section, &paragraph, &c.VectorID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	c.Reference = core.ArticleReference{Article: article.String, Section: section.String, Paragraph: paragraph.String}
	c.CreatedAt, _ = time.Parse(timeLayout, created)
	return &c, nil
}

// nullText stores an empty string as NULL.
func nullText(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// withTx runs fn in a transaction, committing if fn returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", "err", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
	}
	return nil
}

// mapError translates SQLite constraint violations into storage errors.
func mapError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%w: %w", storage.ErrDuplicateKey, err)
	}
	return err
}
