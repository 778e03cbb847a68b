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


// Package juris assembles the legal document ingestion pipeline: a store,
// an embedding provider behind a retry controller, the chunker and an
// optional ingestion ledger.
package juris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/juris/ai"
	"github.com/poiesic/juris/ai/googleai"
	"github.com/poiesic/juris/ai/openai"
	"github.com/poiesic/juris/chunking"
	"github.com/poiesic/juris/ingestion"
	"github.com/poiesic/juris/ledger"
	"github.com/poiesic/juris/ledger/badger"
	"github.com/poiesic/juris/reconcile"
	"github.com/poiesic/juris/retry"
	"github.com/poiesic/juris/storage"
	"github.com/poiesic/juris/storage/postgres"
	"github.com/poiesic/juris/storage/sqlite"
	"github.com/poiesic/juris/storage/supabase"
	"golang.org/x/time/rate"
	"gorm.io/gorm/logger"
)

// Store backends accepted by Config.Store.
const (
	StoreSupabase = "supabase"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

const (
	// DefaultSQLitePath is used when Config.SQLitePath is empty.
	DefaultSQLitePath = "juris.db"

	// DefaultRequestInterval spaces embedding requests shared by several workers.
	DefaultRequestInterval = time.Second
)

// Config is built once at startup and handed to Open.
type Config struct {
	// AI configures the embedding provider.
	AI *ai.Config

	// Store selects the backend: "supabase" (default), "postgres" or "sqlite".
	Store       string
	SupabaseURL string
	SupabaseKey string
	PostgresDSN string
	SQLitePath  string

	// LedgerDir enables the ingestion ledger when not empty.
	LedgerDir string

	ChunkSize                int
	ChunkOverlap             int
	MinSentencesPerChunk     int
	MinCharactersPerSentence int

	MaxRetries int
	ChunkPause time.Duration

	// Workers is the number of documents ingested concurrently. With more
	// than one worker, embedding requests share a limiter that admits one
	// request per RequestInterval.
	Workers         int
	RequestInterval time.Duration

	// Force re-ingests files the ledger already records.
	Force bool

	Logger *slog.Logger
}

// DefaultConfig returns the settings of a sequential Supabase run with
// Gemini embeddings. Credentials still have to be supplied.
func DefaultConfig() *Config {
	return &Config{
		AI:                       ai.DefaultConfig(),
		Store:                    StoreSupabase,
		ChunkSize:                chunking.DefaultChunkSize,
		ChunkOverlap:             chunking.DefaultChunkOverlap,
		MinSentencesPerChunk:     chunking.DefaultMinSentencesPerChunk,
		MinCharactersPerSentence: chunking.DefaultMinCharactersPerSentence,
		MaxRetries:               retry.DefaultMaxRetries,
		ChunkPause:               ingestion.DefaultChunkPause,
		Workers:                  1,
		RequestInterval:          DefaultRequestInterval,
	}
}

// Validate checks that every credential the selected provider and store
// need is present. It normalizes the configuration first.
func (c *Config) Validate() error {
	if c.AI == nil {
		return fmt.Errorf("%w: AI config is required", ErrInvalidConfig)
	}
	if err := c.AI.Validate(); err != nil {
		if errors.Is(err, ai.ErrMissingAPIKey) {
			return fmt.Errorf("%w: %w", ErrMissingCredential, err)
		}
		return err
	}
	return c.validateStore()
}

func (c *Config) validateStore() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store == "" {
		c.Store = StoreSupabase
	}

	switch c.Store {
	case StoreSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("%w: supabase url", ErrMissingCredential)
		}
		if c.SupabaseKey == "" {
			return fmt.Errorf("%w: supabase anon key", ErrMissingCredential)
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres dsn is required", ErrInvalidConfig)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			c.SQLitePath = DefaultSQLitePath
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}

	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// Option configures Open.
type Option func(*options)

type options struct {
	provider  ai.AIProvider
	tokenizer chunking.Tokenizer
}

// WithAIProvider uses provider instead of building one from Config.AI.
// Open then skips validation of Config.AI, and Close releases provider.
func WithAIProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithTokenizer replaces the GPT-2 tokenizer, whose vocabulary is
// downloaded on first use.
func WithTokenizer(t chunking.Tokenizer) Option {
	return func(o *options) {
		o.tokenizer = t
	}
}

// Engine owns the resources of one ingestion run.
type Engine struct {
	config    *Config
	store     storage.Store
	provider  ai.AIProvider
	ledger    ledger.Ledger
	chunker   *chunking.Chunker
	embedding *retry.Controller
	pipeline  *ingestion.Pipeline
	base      *slog.Logger
	logger    *slog.Logger
}

// Open validates cfg and connects everything it names. Nothing is opened
// when the configuration is invalid.
func Open(ctx context.Context, cfg *Config, opts ...Option) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	if o.provider == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else if err := cfg.validateStore(); err != nil {
		return nil, err
	}

	base := cfg.Logger
	if base == nil {
		base = slog.Default()
	}
	e := &Engine{config: cfg, base: base, logger: base.With("component", "juris")}

	if err := e.open(ctx, o); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) open(ctx context.Context, o *options) error {
	cfg := e.config

	tokenizer := o.tokenizer
	if tokenizer == nil {
		bpe, err := chunking.NewBPETokenizer()
		if err != nil {
			return err
		}
		tokenizer = bpe
	}
	chunker, err := chunking.New(tokenizer,
		chunking.WithChunkSize(cfg.ChunkSize),
		chunking.WithChunkOverlap(cfg.ChunkOverlap),
		chunking.WithMinSentencesPerChunk(cfg.MinSentencesPerChunk),
		chunking.WithMinCharactersPerSentence(cfg.MinCharactersPerSentence),
	)
	if err != nil {
		return err
	}
	e.chunker = chunker

	e.store, err = e.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}

	e.provider = o.provider
	if e.provider == nil {
		e.provider, err = newProvider(ctx, cfg.AI)
		if err != nil {
			return fmt.Errorf("create %s provider: %w", cfg.AI.Provider, err)
		}
	}

	retryOpts := []retry.Option{
		retry.WithMaxRetries(cfg.MaxRetries),
		retry.WithLogger(e.base),
	}
	if cfg.Workers > 1 {
		interval := cfg.RequestInterval
		if interval <= 0 {
			interval = DefaultRequestInterval
		}
		retryOpts = append(retryOpts, retry.WithLimiter(rate.NewLimiter(rate.Every(interval), 1)))
	}
	e.embedding, err = retry.New(e.provider.Embedder(), retryOpts...)
	if err != nil {
		return err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithLogger(e.base),
		ingestion.WithChunkPause(cfg.ChunkPause),
		ingestion.WithWorkers(cfg.Workers),
		ingestion.WithForce(cfg.Force),
	}
	if cfg.LedgerDir != "" {
		e.ledger, err = badger.Open(cfg.LedgerDir, badger.WithLogger(e.base))
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		pipelineOpts = append(pipelineOpts, ingestion.WithLedger(e.ledger))
	}

	e.pipeline, err = ingestion.NewPipeline(e.store, e.chunker, e.embedding, pipelineOpts...)
	if err != nil {
		return err
	}

	e.logger.Info("engine opened", "store", cfg.Store, "workers", cfg.Workers, "ledger", cfg.LedgerDir != "")
	return nil
}

func (e *Engine) openStore(ctx context.Context) (storage.Store, error) {
	cfg := e.config
	switch cfg.Store {
	case StoreSupabase:
		return supabase.NewStore(cfg.SupabaseURL, cfg.SupabaseKey, supabase.WithLogger(e.base))
	case StorePostgres:
		level := logger.Warn
		if e.logger.Enabled(ctx, slog.LevelDebug) {
			level = logger.Info
		}
		return postgres.NewStore(ctx, cfg.PostgresDSN, postgres.WithLogger(e.base), postgres.WithLogLevel(level))
	case StoreSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, cfg.Store)
	}
}

func newProvider(ctx context.Context, cfg *ai.Config) (ai.AIProvider, error) {
	switch cfg.Provider {
	case ai.ProviderOpenAI:
		return openai.NewProvider(cfg)
	default:
		return googleai.NewProvider(ctx, cfg)
	}
}

// Store returns the document store.
func (e *Engine) Store() storage.Store {
	return e.store
}

// Chunker returns the configured chunker.
func (e *Engine) Chunker() *chunking.Chunker {
	return e.chunker
}

// Pipeline returns the ingestion pipeline.
func (e *Engine) Pipeline() *ingestion.Pipeline {
	return e.pipeline
}

// Reconciler creates a reconciler sharing the engine's store and retry controller.
func (e *Engine) Reconciler(opts ...reconcile.Option) (*reconcile.Reconciler, error) {
	opts = append([]reconcile.Option{
		reconcile.WithLogger(e.base),
		reconcile.WithPause(e.config.ChunkPause),
	}, opts...)
	return reconcile.New(e.store, e.embedding, opts...)
}

// Close releases everything Open acquired. It is safe to call on a
// partially opened engine.
func (e *Engine) Close() error {
	var errs []error

	if e.pipeline != nil {
		e.pipeline.Release()
	}
	if e.ledger != nil {
		if err := e.ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ledger: %w", err))
		}
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close provider: %w", err))
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}

	return errors.Join(errs...)
}
