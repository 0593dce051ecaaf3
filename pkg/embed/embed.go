// Copyright 2026 Quarry Labs
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
//
// SPDX-License-Identifier: Apache-2.0

// Package embed maps text chunks to fixed-dimension vectors through a
// pluggable backend. All providers return unit-length vectors so cosine
// similarity reduces to a dot product.
package embed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"log/slog"
)

// Provider generates embeddings for batches of texts.
type Provider interface {
	// Embed returns one vector per input text, in input order. All vectors
	// share the provider's fixed dimension and are L2-normalized.
	// An empty batch returns ErrEmptyInput.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID identifies the backing model ("ollama/nomic-embed-text").
	// Vectors from different ModelIDs must never share an index.
	ModelID() string
}

// QueryEmbedder is implemented by providers whose model distinguishes
// document embeddings from query embeddings. Retrieval uses it when
// available and falls back to Embed otherwise.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ErrEmptyInput reports an Embed call with no texts.
var ErrEmptyInput = errors.New("embed: empty input batch")

// RateLimitedError reports a backend throttling response. Always transient.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("embed: rate limited, retry after %s", e.RetryAfter)
	}
	return "embed: rate limited"
}

// BackendError reports a failed backend call. Transient errors (timeouts,
// 5xx, connection failures) are worth retrying; the rest are not.
type BackendError struct {
	Provider  string
	Status    int
	Message   string
	Transient bool
}

func (e *BackendError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("embed: %s backend error (status %d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("embed: %s backend error: %s", e.Provider, e.Message)
}

// IsTransient classifies an embedding error as retryable. Typed errors are
// authoritative; for wrapped transport errors it falls back to message
// inspection, same as network errors surface from http clients.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var rate *RateLimitedError
	if errors.As(err, &rate) {
		return true
	}
	var backend *BackendError
	if errors.As(err, &backend) {
		return backend.Transient
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "temporarily unavailable", "connection refused", "connection reset", "deadline exceeded", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(status int) bool {
	return status == 429 || (status >= 500 && status <= 599)
}

// EmbedOne embeds a single text through a batch provider.
func EmbedOne(ctx context.Context, p Provider, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed: provider returned %d vectors for 1 text", len(vecs))
	}
	return vecs[0], nil
}

// Normalize scales a vector to unit length in place and returns it.
// Zero vectors pass through unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	f := float32(norm)
	for i := range v {
		v[i] /= f
	}
	return v
}

// Config selects and parameterizes a provider.
type Config struct {
	// Provider is one of "mock", "ollama", "openai", "nomic".
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model name.
	Model string `yaml:"model,omitempty"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// Dimension is the vector width for the mock provider only; real
	// backends dictate their own.
	Dimension int `yaml:"dimension,omitempty"`
}

// NewProvider creates a provider from config.
//
// Environment variables:
//   - OLLAMA_BASE_URL: Ollama server URL (default: http://localhost:11434)
//   - OPENAI_API_KEY: required for the openai provider
//   - OPENAI_API_BASE: OpenAI-compatible endpoint override
//   - NOMIC_API_KEY: required for the nomic provider
func NewProvider(cfg Config, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(cfg.Provider) {
	case "mock", "test":
		dim := cfg.Dimension
		if dim <= 0 {
			dim = 384
		}
		return NewMockProvider(dim), nil

	case "ollama", "local", "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OLLAMA_BASE_URL")
		}
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = os.Getenv("OLLAMA_EMBED_MODEL")
		}
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaProvider(baseURL, model, logger), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for the openai provider")
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OPENAI_API_BASE")
		}
		model := cfg.Model
		if model == "" {
			model = "text-embedding-3-small"
		}
		return NewOpenAIProvider(apiKey, baseURL, model, logger), nil

	case "nomic":
		apiKey := os.Getenv("NOMIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("NOMIC_API_KEY environment variable is required for the nomic provider")
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api-atlas.nomic.ai/v1"
		}
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text-v1.5"
		}
		return NewNomicProvider(apiKey, baseURL, model, logger), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, ollama, openai, nomic)", cfg.Provider)
	}
}
