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


// Package ai provides the embedding service abstraction used by juris.
//
// The Embedder interface wraps a single remote call turning text into a
// fixed-length vector. Implementations validate the response shape with
// CheckShape and report failures as *EmbeddingError, whose Kind
// (KindRateLimited, KindTransient, KindFatal) drives the retry package.
//
// # Implementation Packages
//
//   - ai/googleai: Gemini embeddings through langchaingo (default)
//   - ai/openai: OpenAI-compatible APIs such as Ollama
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors (googleai.NewProvider, openai.NewEmbedder, ...) return
// interface types. mock.NewMockEmbedder returns the concrete type so tests
// can inject behaviour and inspect call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithAPIKey(os.Getenv("GOOGLE_API_KEY")))
//	provider, err := googleai.NewProvider(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Artículo 1. Objeto.")
//	if ai.KindOf(err) == ai.KindRateLimited {
//	    // back off
//	}
package ai
