// Package mock provides test double implementations of AI service interfaces.
//
// MockEmbedder and MockProvider let tests run without a live embedding
// service and with controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior (768 dimension vectors)
//	embedder := mock.NewMockEmbedder()
//	vec, err := embedder.EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, &ai.EmbeddingError{Kind: ai.KindRateLimited, Provider: "mock", Err: errors.New("429")}
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
package mock
