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

package embed

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider generates embeddings through OpenAI or a compatible API
// (Azure OpenAI, Together, vLLM with an OpenAI frontend).
type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIProvider creates an OpenAI embedding provider. An empty baseURL
// targets api.openai.com.
func NewOpenAIProvider(apiKey, baseURL, model string, logger *slog.Logger) *OpenAIProvider {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

// ModelID implements Provider.
func (o *OpenAIProvider) ModelID() string { return "openai/" + o.model }

// Embed implements Provider. The embeddings endpoint batches natively, so
// one call covers the whole input.
func (o *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed: openai returned %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embed: openai returned out-of-range index %d", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		copy(vec, d.Embedding)
		out[d.Index] = Normalize(vec)
	}
	return out, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 {
			return &RateLimitedError{}
		}
		return &BackendError{
			Provider:  "openai",
			Status:    apiErr.HTTPStatusCode,
			Message:   apiErr.Message,
			Transient: transientStatus(apiErr.HTTPStatusCode),
		}
	}
	return &BackendError{Provider: "openai", Message: err.Error(), Transient: IsTransient(err)}
}
