package googleai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/juris/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const providerName = ai.ProviderGoogleAI

// Embedder implements ai.Embedder using the Gemini embedding API.
type Embedder struct {
	embedder embeddings.Embedder
	dims     int
	logger   *slog.Logger
}

// newEmbedder wraps client in a langchaingo embedder. Tests pass a fake
// client here instead of a live googleai.GoogleAI.
func newEmbedder(client embeddings.EmbedderClient, dims int) (*Embedder, error) {
	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(1),
	)
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		dims:     dims,
		logger:   slog.Default().With("component", "googleai-embedder"),
	}, nil
}

// EmbedText generates a vector embedding for a single text string.
// Failures are returned as *ai.EmbeddingError.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding", "length", len(text))

	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		embErr := &ai.EmbeddingError{Kind: classify(err), Provider: providerName, Err: err}
		e.logger.Warn("embedding request failed", "kind", embErr.Kind, "err", err)
		return nil, embErr
	}

	var vec []float32
	if len(vectors) > 0 {
		vec = vectors[0]
	}
	if err := ai.CheckShape(vec, e.dims); err != nil {
		e.logger.Warn("embedding response rejected", "err", err)
		return nil, ai.NewEmbeddingError(providerName, err)
	}

	return vec, nil
}

// classify prefers the gRPC status code when the client surfaces one and
// falls back to langchaingo's error mapping otherwise.
func classify(err error) ai.ErrorKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ai.KindFatal
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return ai.KindRateLimited
		case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument, codes.NotFound:
			return ai.KindFatal
		case codes.Unavailable, codes.Internal, codes.Aborted:
			return ai.KindTransient
		}
	}

	return ai.Classify(googleai.MapError(err))
}
