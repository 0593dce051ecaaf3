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

// NomicProvider generates embeddings through the Nomic Atlas API.
// API docs: https://docs.nomic.ai/reference/endpoints/nomic-embed-text
type NomicProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type nomicEmbedRequest struct {
	Texts    []string `json:"texts"`
	Model    string   `json:"model"`
	TaskType string   `json:"task_type,omitempty"`
}

type nomicEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Model      string      `json:"model"`
}

type nomicErrorResponse struct {
	Detail string `json:"detail"`
}

// NewNomicProvider creates a Nomic Atlas embedding provider.
func NewNomicProvider(apiKey, baseURL, model string, logger *slog.Logger) *NomicProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &NomicProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// ModelID implements Provider.
func (n *NomicProvider) ModelID() string { return "nomic/" + n.model }

// Embed implements Provider with the search_document task type.
func (n *NomicProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	return n.embed(ctx, texts, "search_document")
}

// EmbedQuery implements QueryEmbedder with the search_query task type.
func (n *NomicProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := n.embed(ctx, []string{text}, "search_query")
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (n *NomicProvider) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	jsonBody, err := json.Marshal(nomicEmbedRequest{Texts: texts, Model: n.model, TaskType: taskType})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := n.baseURL + "/embedding/text"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		var errResp nomicErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
			msg = errResp.Detail
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &RateLimitedError{RetryAfter: retryAfter(resp)}
		}
		return nil, &BackendError{
			Provider:  "nomic",
			Status:    resp.StatusCode,
			Message:   msg,
			Transient: transientStatus(resp.StatusCode),
		}
	}

	var embedResp nomicEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, &BackendError{
			Provider: "nomic",
			Message:  fmt.Sprintf("returned %d embeddings for %d texts", len(embedResp.Embeddings), len(texts)),
		}
	}

	out := make([][]float32, len(embedResp.Embeddings))
	for i, e := range embedResp.Embeddings {
		vec := make([]float32, len(e))
		for j, v := range e {
			vec[j] = float32(v)
		}
		out[i] = Normalize(vec)
	}
	return out, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if d, err := time.ParseDuration(s + "s"); err == nil {
			return d
		}
	}
	return 0
}
