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


package ai

import (
	"fmt"
	"strings"
)

// Provider names accepted by Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
)

const (
	// DefaultGoogleAIModel is the Gemini embedding model producing 768 dimensions.
	DefaultGoogleAIModel = "embedding-001"

	// DefaultOpenAIModel is a 768 dimension model served by Ollama and other
	// OpenAI-compatible servers.
	DefaultOpenAIModel = "nomic-embed-text"

	// DefaultEmbeddingDimensions is the vector length expected from every provider.
	DefaultEmbeddingDimensions = 768
)

// Config holds configuration for the embedding service.
type Config struct {
	// Provider selects the embedding backend: "googleai" or "openai".
	Provider string

	// APIKey is the credential sent to the provider.
	// Required for googleai. Optional for local OpenAI-compatible servers.
	APIKey string

	// EmbeddingHost is the base URL of an OpenAI-compatible API.
	// Example: "http://localhost:11434/v1". Ignored by googleai.
	EmbeddingHost string

	// EmbeddingModel is the model identifier. Empty selects the provider default.
	EmbeddingModel string

	// EmbeddingDimensions is the exact vector length a response must have.
	// Default: 768
	EmbeddingDimensions int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider selects the embedding backend.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithAPIKey sets the provider credential.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEmbeddingHost sets the OpenAI-compatible host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithEmbeddingDimensions sets the expected vector length.
func WithEmbeddingDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingDimensions = dims
	}
}

// DefaultConfig returns a Config for the Gemini embedding API.
// The API key still has to be supplied.
func DefaultConfig() *Config {
	return &Config{
		Provider:            ProviderGoogleAI,
		EmbeddingDimensions: DefaultEmbeddingDimensions,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithAPIKey(os.Getenv("GOOGLE_API_KEY")),
//	)
//
// Example with a local Ollama server:
//
//	cfg := NewConfig(
//	    WithProvider(ProviderOpenAI),
//	    WithEmbeddingHost("http://localhost:11434"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize puts the configuration in canonical form: it fills in the
// provider's default model and adds the /v1 suffix OpenAI-compatible hosts need.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderGoogleAI
	}

	if c.EmbeddingModel == "" {
		switch c.Provider {
		case ProviderGoogleAI:
			c.EmbeddingModel = DefaultGoogleAIModel
		case ProviderOpenAI:
			c.EmbeddingModel = DefaultOpenAIModel
		}
	}

	if c.Provider == ProviderOpenAI && c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/") + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderGoogleAI:
		if c.APIKey == "" {
			return fmt.Errorf("%w: %w for %s", ErrInvalidConfig, ErrMissingAPIKey, c.Provider)
		}
	case ProviderOpenAI:
		if c.EmbeddingHost == "" {
			return fmt.Errorf("%w: EmbeddingHost is required for %s", ErrInvalidConfig, c.Provider)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}

	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("%w: EmbeddingDimensions must be greater than 0", ErrInvalidConfig)
	}
	return nil
}
