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

package ingest

import (
	"context"
	"math/rand"
	"time"

	"log/slog"

	"github.com/quarrylabs/quarry/pkg/embed"
)

// embedWithRetry runs one embedding batch under the per-batch timeout,
// retrying transient failures with exponential backoff and full jitter.
// Non-transient errors fail immediately. Returns the vectors and how many
// retries it took.
func embedWithRetry(ctx context.Context, provider embed.Provider, texts []string, cfg Config, logger *slog.Logger) ([][]float32, int, error) {
	var vecs [][]float32
	var err error
	retries := 0

	for attempt := 0; attempt < cfg.Retry.MaxAttempts; attempt++ {
		batchCtx, cancel := context.WithTimeout(ctx, cfg.BatchTimeout)
		vecs, err = provider.Embed(batchCtx, texts)
		cancel()
		recordEmbedCall()
		if err == nil {
			return vecs, retries, nil
		}
		recordEmbedError()

		if !embed.IsTransient(err) || attempt == cfg.Retry.MaxAttempts-1 {
			break
		}

		sleep := backoffWithJitter(cfg.Retry, attempt)
		retries++
		recordEmbedRetry()
		logger.Warn("ingest.embed.retry", "attempt", attempt+1, "sleep_ms", sleep.Milliseconds(), "batch_size", len(texts), "err", err)
		select {
		case <-ctx.Done():
			return nil, retries, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, retries, err
}

// backoffWithJitter is exponential backoff with full jitter: the sleep is
// uniform in [0, base*mult^attempt], capped at MaxBackoff.
func backoffWithJitter(cfg RetryConfig, attempt int) time.Duration {
	d := float64(cfg.InitialBackoff)
	for i := 0; i < attempt; i++ {
		d *= cfg.Multiplier
	}
	capped := time.Duration(d)
	if capped > cfg.MaxBackoff {
		capped = cfg.MaxBackoff
	}
	if capped <= 0 {
		return cfg.InitialBackoff
	}
	return time.Duration(rand.Int63n(int64(capped) + 1))
}
