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
	"sync/atomic"
)

// MockProvider generates deterministic embeddings from a text hash.
// Not semantically meaningful; exists for tests and offline runs. The call
// and text counters let tests assert exactly how much embedding work a
// pipeline performed.
type MockProvider struct {
	dimension int
	calls     atomic.Int64
	texts     atomic.Int64

	// Fail, when set, is returned by every Embed call.
	Fail error

	// FailN makes the first N calls fail with Fail before succeeding.
	FailN int
}

// NewMockProvider creates a mock provider with the given vector width.
func NewMockProvider(dimension int) *MockProvider {
	return &MockProvider{dimension: dimension}
}

// ModelID implements Provider.
func (m *MockProvider) ModelID() string { return "mock/deterministic" }

// Embed implements Provider.
func (m *MockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	n := m.calls.Add(1)
	if m.Fail != nil && (m.FailN <= 0 || n <= int64(m.FailN)) {
		return nil, m.Fail
	}
	m.texts.Add(int64(len(texts)))

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vector(text)
	}
	return out, nil
}

// Calls returns how many Embed calls were made.
func (m *MockProvider) Calls() int { return int(m.calls.Load()) }

// Texts returns how many texts were embedded across all successful calls.
func (m *MockProvider) Texts() int { return int(m.texts.Load()) }

func (m *MockProvider) vector(text string) []float32 {
	hash := djb2(text)
	v := make([]float32, m.dimension)
	for i := range v {
		val := float32((hash+uint64(i)*7919)%10000) / 10000.0
		v[i] = val*2.0 - 1.0
	}
	return Normalize(v)
}

func djb2(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return hash
}
