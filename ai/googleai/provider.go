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


package googleai

import (
	"context"
	"log/slog"

	"github.com/poiesic/juris/ai"
	"github.com/tmc/langchaingo/llms/googleai"
)

// Provider implements ai.AIProvider using the Gemini API.
type Provider struct {
	config   *ai.Config
	client   *googleai.GoogleAI
	embedder *Embedder
	logger   *slog.Logger
}

// NewProvider creates a Gemini-backed provider.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction.
func NewProvider(ctx context.Context, config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := googleai.New(ctx,
		googleai.WithAPIKey(config.APIKey),
		googleai.WithDefaultEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(client, config.EmbeddingDimensions)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Provider{
		config:   config,
		client:   client,
		embedder: embedder,
		logger:   slog.Default().With("component", "googleai-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close releases the underlying gRPC connection.
func (p *Provider) Close() error {
	p.logger.Debug("closing googleai provider")
	return p.client.Close()
}
