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


package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/juris"
	"github.com/poiesic/juris/ai"
	"github.com/poiesic/juris/chunking"
	"github.com/poiesic/juris/core"
	"github.com/poiesic/juris/ingestion"
	"github.com/poiesic/juris/reconcile"
	"github.com/poiesic/juris/retry"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "juris",
		Usage: "Chunk legal documents and store them with their embeddings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest every .pdf, .txt, .doc and .docx file in a directory",
				ArgsUsage: "<directory>",
				Action:    ingestCommand,
				Flags: flags(storeFlags(), embeddingFlags(), chunkingFlags(), []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of documents ingested concurrently",
						Value: 1,
					},
					&cli.DurationFlag{
						Name:  "request-interval",
						Usage: "Minimum spacing of embedding requests when workers > 1",
						Value: juris.DefaultRequestInterval,
					},
					&cli.StringFlag{
						Name:  "ledger",
						Usage: "Directory of the ingestion ledger; already ingested files are skipped",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-ingest files recorded in the ledger",
					},
				}),
			},
			{
				Name:   "reconcile",
				Usage:  "Link orphan embeddings and embed chunks left without a vector",
				Action: reconcileCommand,
				Flags: flags(storeFlags(), embeddingFlags(), []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of rows listed per query",
						Value: reconcile.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N rows",
						Value: reconcile.DefaultReportInterval,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Only count what would be repaired",
					},
				}),
			},
			{
				Name:      "chunk",
				Usage:     "Print the chunks of a single file without storing anything",
				ArgsUsage: "<file>",
				Action:    chunkCommand,
				Flags:     chunkingFlags(),
			},
		},
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "store",
			Usage: "Storage backend (supabase, postgres, sqlite)",
			Value: juris.StoreSupabase,
		},
		&cli.StringFlag{
			Name:    "supabase-url",
			Usage:   "Supabase project URL",
			EnvVars: []string{"SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "supabase-key",
			Usage:   "Supabase anon key",
			EnvVars: []string{"SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY"},
		},
		&cli.StringFlag{
			Name:    "dsn",
			Usage:   "PostgreSQL connection string for --store postgres",
			EnvVars: []string{"JURIS_POSTGRES_DSN"},
		},
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "SQLite database path for --store sqlite",
			Value:   juris.DefaultSQLitePath,
		},
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "provider",
			Usage: "Embedding provider (googleai, openai)",
			Value: ai.ProviderGoogleAI,
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Embedding provider API key",
			EnvVars: []string{"GOOGLE_API_KEY"},
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "OpenAI-compatible embedding host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name (provider default when empty)",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum attempts per embedding request",
			Value: retry.DefaultMaxRetries,
		},
		&cli.DurationFlag{
			Name:  "pause",
			Usage: "Pause after each chunk",
			Value: ingestion.DefaultChunkPause,
		},
	}
}

func chunkingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Token budget per chunk",
			Value: chunking.DefaultChunkSize,
		},
		&cli.IntFlag{
			Name:  "chunk-overlap",
			Usage: "Tokens repeated at the start of the next chunk",
			Value: chunking.DefaultChunkOverlap,
		},
		&cli.IntFlag{
			Name:  "min-sentences",
			Usage: "Minimum sentences per chunk",
			Value: 2,
		},
		&cli.IntFlag{
			Name:  "min-chars",
			Usage: "Sentences shorter than this are merged into the next one",
			Value: chunking.DefaultMinCharactersPerSentence,
		},
		&cli.StringFlag{
			Name:  "tokenizer",
			Usage: "Token counter (gpt2, words)",
			Value: "gpt2",
		},
	}
}

func configFromContext(c *cli.Context) *juris.Config {
	cfg := juris.DefaultConfig()

	cfg.AI = ai.NewConfig(
		ai.WithProvider(c.String("provider")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)

	cfg.Store = c.String("store")
	cfg.SupabaseURL = c.String("supabase-url")
	cfg.SupabaseKey = c.String("supabase-key")
	cfg.PostgresDSN = c.String("dsn")
	cfg.SQLitePath = c.String("db")

	cfg.MaxRetries = c.Int("max-retries")
	cfg.ChunkPause = c.Duration("pause")
	if c.Command.Name == "ingest" {
		cfg.ChunkSize = c.Int("chunk-size")
		cfg.ChunkOverlap = c.Int("chunk-overlap")
		cfg.MinSentencesPerChunk = c.Int("min-sentences")
		cfg.MinCharactersPerSentence = c.Int("min-chars")
		cfg.Workers = c.Int("workers")
		cfg.RequestInterval = c.Duration("request-interval")
		cfg.LedgerDir = c.String("ledger")
		cfg.Force = c.Bool("force")
	}

	cfg.Logger = slog.Default()
	return cfg
}

func openEngine(ctx context.Context, c *cli.Context) (*juris.Engine, *juris.Config, error) {
	cfg := configFromContext(c)

	// reconcile never chunks, so it skips the GPT-2 vocabulary download.
	tokenizer := chunking.WordTokenizer
	if c.Command.Name == "ingest" {
		var err error
		if tokenizer, err = newTokenizer(c.String("tokenizer")); err != nil {
			return nil, nil, err
		}
	}

	engine, err := juris.Open(ctx, cfg, juris.WithTokenizer(tokenizer))
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

func printConfig(w io.Writer, cfg *juris.Config) {
	fmt.Fprintf(w, "Store: %s\n", cfg.Store)
	fmt.Fprintf(w, "Embedding provider: %s\n", cfg.AI.Provider)
	fmt.Fprintf(w, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	if cfg.AI.Provider == ai.ProviderOpenAI {
		fmt.Fprintf(w, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	}
	fmt.Fprintln(w)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one directory argument")
	}
	dir := c.Args().First()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cfg, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer engine.Close()

	printConfig(os.Stderr, cfg)
	fmt.Fprintf(os.Stderr, "Directory: %s\n", dir)
	fmt.Fprintf(os.Stderr, "Chunk size: %d (overlap %d)\n", cfg.ChunkSize, cfg.ChunkOverlap)
	fmt.Fprintln(os.Stderr)

	start := time.Now()
	summary, err := engine.Pipeline().IngestDirectory(ctx, dir)
	return reportIngest(os.Stdout, summary, err, time.Since(start))
}

// reportIngest prints whatever was ingested, including the documents
// finished before an interrupt, and then returns err.
func reportIngest(w io.Writer, summary *ingestion.Summary, err error, elapsed time.Duration) error {
	if summary != nil && len(summary.Documents) > 0 {
		printSummary(w, summary, elapsed)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, summary *ingestion.Summary, elapsed time.Duration) {
	for _, doc := range summary.Documents {
		line := fmt.Sprintf("%-11s %s", doc.Status, filepath.Base(doc.Path))
		if len(doc.Chunks) > 0 {
			line += fmt.Sprintf(" (%d/%d chunks embedded)", doc.Count(ingestion.ChunkEmbedded), len(doc.Chunks))
		}
		if doc.Err != nil {
			line += ": " + doc.Err.Error()
		}
		fmt.Fprintln(w, line)
		for _, warning := range doc.Warnings {
			fmt.Fprintf(w, "            warning: %s\n", warning)
		}
	}

	fmt.Fprintf(w, "\nCompleted %d of %d documents in %s\n",
		summary.Processed(), len(summary.Documents), elapsed.Round(time.Millisecond))
	if n := summary.ChunkCount(ingestion.ChunkUnembedded) + summary.ChunkCount(ingestion.ChunkOrphaned); n > 0 {
		fmt.Fprintf(w, "%d chunks need reconciliation (run `juris reconcile`)\n", n)
	}
}

func reconcileCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cfg, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer engine.Close()

	reconciler, err := engine.Reconciler(
		reconcile.WithBatchSize(c.Int("batch-size")),
		reconcile.WithReportInterval(c.Int("report-interval")),
		reconcile.WithProgressWriter(os.Stderr),
		reconcile.WithDryRun(c.Bool("dry-run")),
	)
	if err != nil {
		return err
	}

	printConfig(os.Stderr, cfg)

	result, err := reconciler.Run(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Orphan embeddings: %d (linked %d, failed %d)\n", result.Orphans, result.Linked, result.LinkFailed)
	fmt.Fprintf(os.Stdout, "Unembedded chunks: %d (embedded %d, failed %d, orphaned %d, awaiting link %d)\n",
		result.Unembedded, result.Reembedded, result.EmbedFailed, result.Orphaned, result.Deferred)
	fmt.Fprintf(os.Stdout, "Elapsed: %s\n", result.Elapsed.Round(time.Millisecond))
	return nil
}

func chunkCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	path := c.Args().First()

	tokenizer, err := newTokenizer(c.String("tokenizer"))
	if err != nil {
		return err
	}
	chunker, err := chunking.New(tokenizer,
		chunking.WithChunkSize(c.Int("chunk-size")),
		chunking.WithChunkOverlap(c.Int("chunk-overlap")),
		chunking.WithMinSentencesPerChunk(c.Int("min-sentences")),
		chunking.WithMinCharactersPerSentence(c.Int("min-chars")),
	)
	if err != nil {
		return err
	}

	reader, ok := ingestion.DefaultReaders()[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return fmt.Errorf("%w: %s", ingestion.ErrUnsupportedFormat, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	content, err := reader.Read(c.Context, data)
	if err != nil {
		return err
	}
	for _, warning := range content.Warnings {
		slog.Warn("extraction warning", "path", path, "warning", warning)
	}

	return printChunks(os.Stdout, chunker, content.Pages)
}

func newTokenizer(name string) (chunking.Tokenizer, error) {
	switch strings.ToLower(name) {
	case "", "gpt2":
		t, err := chunking.NewBPETokenizer()
		if err != nil {
			return nil, err
		}
		return t, nil
	case "words":
		return chunking.WordTokenizer, nil
	default:
		return nil, fmt.Errorf("invalid tokenizer %q: must be one of gpt2, words", name)
	}
}

func printChunks(w io.Writer, chunker *chunking.Chunker, pages []string) error {
	text := chunking.Normalize(strings.Join(pages, "\n"))
	for i, ch := range chunker.Chunk(text) {
		if _, err := fmt.Fprintf(w, "--- chunk %d: %d tokens, %d sentences, runes %d-%d%s ---\n%s\n\n",
			i+1, ch.TokenCount, ch.SentenceCount, ch.StartIndex, ch.EndIndex,
			formatReference(ingestion.ExtractReference(ch.Text)), ch.Text); err != nil {
			return err
		}
	}
	return nil
}

func formatReference(ref core.ArticleReference) string {
	if ref.Article == "" {
		return ""
	}
	s := ", art. " + ref.Article
	if ref.Section != "" {
		s += " fracc. " + ref.Section
	}
	if ref.Paragraph != "" {
		s += " párrafo " + ref.Paragraph
	}
	return s
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
