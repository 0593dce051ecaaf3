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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"
)

// OllamaProvider generates embeddings through a local Ollama server.
// Supports nomic-embed-text, mxbai-embed-large, all-minilm, and friends.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

// NewOllamaProvider creates an Ollama embedding provider.
func NewOllamaProvider(baseURL, model string, logger *slog.Logger) *OllamaProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // local models can be slow
		},
		logger: logger,
	}
}

// ModelID implements Provider.
func (o *OllamaProvider) ModelID() string { return "ollama/" + o.model }

// Embed implements Provider. The Ollama embeddings endpoint takes a single
// prompt, so batches turn into sequential calls against the local server.
func (o *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		// Nomic models use asymmetric prefixes: documents are embedded
		// with search_document, queries with search_query.
		// See: https://huggingface.co/nomic-ai/nomic-embed-text-v1.5
		prompt := text
		if isNomicModel(o.model) {
			prompt = "search_document: " + text
		}
		vec, err := o.embedPrompt(ctx, prompt)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// EmbedQuery implements QueryEmbedder with the search_query prefix for
// Nomic models.
func (o *OllamaProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	prompt := text
	if isNomicModel(o.model) {
		prompt = "search_query: " + text
	}
	return o.embedPrompt(ctx, prompt)
}

func (o *OllamaProvider) embedPrompt(ctx context.Context, prompt string) ([]float32, error) {
	jsonBody, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.baseURL + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request (is Ollama running at %s?): %w", o.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		var errResp ollamaErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &RateLimitedError{}
		}
		return nil, &BackendError{
			Provider:  "ollama",
			Status:    resp.StatusCode,
			Message:   msg,
			Transient: transientStatus(resp.StatusCode),
		}
	}

	var embedResp ollamaEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, &BackendError{Provider: "ollama", Message: "empty embedding"}
	}

	vec := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		vec[i] = float32(v)
	}
	return Normalize(vec), nil
}

// isNomicModel checks whether a model supports asymmetric search prefixes.
func isNomicModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "nomic")
}
