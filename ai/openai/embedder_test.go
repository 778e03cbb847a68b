package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/juris/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func vectorResponse(dims int) map[string]any {
	return map[string]any{
		"object": "list",
		"model":  "nomic-embed-text",
		"data": []map[string]any{
			{"object": "embedding", "index": 0, "embedding": make([]float32, dims)},
		},
	}
}

func errorResponse(msg string) map[string]any {
	return map[string]any{"error": map[string]any{"message": msg}}
}

func newTestEmbedder(t *testing.T, url string) ai.Embedder {
	t.Helper()
	cfg := ai.NewConfig(ai.WithProvider(ai.ProviderOpenAI), ai.WithEmbeddingHost(url))
	e, err := NewEmbedder(cfg)
	require.NoError(t, err)
	return e
}

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewEmbedder(ai.NewConfig(ai.WithProvider(ai.ProviderOpenAI)))
	assert.ErrorIs(t, err, ai.ErrInvalidConfig)
}

func TestEmbedText_Success(t *testing.T) {
	srv := embeddingServer(t, http.StatusOK, vectorResponse(768))

	vec, err := newTestEmbedder(t, srv.URL).EmbedText(context.Background(), "texto")
	require.NoError(t, err)
	assert.Len(t, vec, 768)
}

func TestEmbedText_WrongDimensions(t *testing.T) {
	srv := embeddingServer(t, http.StatusOK, vectorResponse(5))

	_, err := newTestEmbedder(t, srv.URL).EmbedText(context.Background(), "texto")
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrInvalidEmbeddingShape)
	assert.Equal(t, ai.KindTransient, ai.KindOf(err))
}

func TestEmbedText_StatusKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		msg    string
		want   ai.ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, "Rate limit reached", ai.KindRateLimited},
		{"bad key", http.StatusUnauthorized, "Incorrect API key provided", ai.KindFatal},
		{"server error", http.StatusInternalServerError, "upstream failure", ai.KindTransient},
		{"unavailable", http.StatusServiceUnavailable, "overloaded", ai.KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := embeddingServer(t, tt.status, errorResponse(tt.msg))

			_, err := newTestEmbedder(t, srv.URL).EmbedText(context.Background(), "texto")
			require.Error(t, err)
			assert.ErrorIs(t, err, ai.ErrEmbeddingService)
			assert.Equal(t, tt.want, ai.KindOf(err))
		})
	}
}
