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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngest holds Prometheus metrics for the ingestion subsystem.
type metricsIngest struct {
	once sync.Once

	// Delta
	deltaAdded    prometheus.Counter
	deltaModified prometheus.Counter
	deltaDeleted  prometheus.Counter
	deltaSkipped  prometheus.Counter

	// Chunks
	chunksIndexed prometheus.Counter
	chunksDeleted prometheus.Counter

	// Embeddings
	embedCalls   prometheus.Counter
	embedErrors  prometheus.Counter
	embedRetries prometheus.Counter

	// Files
	filesFailed prometheus.Counter

	// Durations
	scanDuration    prometheus.Histogram
	extractDuration prometheus.Histogram
	embedDuration   prometheus.Histogram
	indexDuration   prometheus.Histogram
	totalDuration   prometheus.Histogram
}

var ingMetrics metricsIngest

func (m *metricsIngest) init() {
	m.once.Do(func() {
		m.deltaAdded = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ing_delta_added_total", Help: "Files classified as added"})
		m.deltaModified = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ing_delta_modified_total", Help: "Files classified as modified"})
		m.deltaDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ing_delta_deleted_total", Help: "Files classified as deleted"})
		m.deltaSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ing_delta_unchanged_total", Help: "Files skipped as unchanged"})

		m.chunksIndexed = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ing_chunks_indexed_total", Help: "Chunks upserted into the index"})
		m.chunksDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ing_chunks_deleted_total", Help: "Chunks removed during reconciliation"})

		m.embedCalls = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ing_embed_calls_total", Help: "Embedding batch calls"})
		m.embedErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ing_embed_errors_total", Help: "Embedding provider errors"})
		m.embedRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ing_embed_retries_total", Help: "Embedding retries"})

		m.filesFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ing_files_failed_total", Help: "Files that failed during a run"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "quarry_ing_scan_seconds", Help: "Repository scan duration", Buckets: buckets})
		m.extractDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "quarry_ing_extract_seconds", Help: "Extraction and chunking duration", Buckets: buckets})
		m.embedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "quarry_ing_embed_seconds", Help: "Embedding duration", Buckets: buckets})
		m.indexDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "quarry_ing_index_seconds", Help: "Index write duration", Buckets: buckets})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "quarry_ing_total_seconds", Help: "Total run duration", Buckets: buckets})

		prometheus.MustRegister(
			m.deltaAdded, m.deltaModified, m.deltaDeleted, m.deltaSkipped,
			m.chunksIndexed, m.chunksDeleted,
			m.embedCalls, m.embedErrors, m.embedRetries,
			m.filesFailed,
			m.scanDuration, m.extractDuration, m.embedDuration, m.indexDuration, m.totalDuration,
		)
	})
}

// record helpers - used by the pipeline
func recordDelta(added, modified, deleted, unchanged int) {
	ingMetrics.init()
	ingMetrics.deltaAdded.Add(float64(added))
	ingMetrics.deltaModified.Add(float64(modified))
	ingMetrics.deltaDeleted.Add(float64(deleted))
	ingMetrics.deltaSkipped.Add(float64(unchanged))
}

func recordChunksIndexed(n int) { ingMetrics.init(); ingMetrics.chunksIndexed.Add(float64(n)) }
func recordChunksDeleted(n int) { ingMetrics.init(); ingMetrics.chunksDeleted.Add(float64(n)) }
func recordEmbedCall()          { ingMetrics.init(); ingMetrics.embedCalls.Inc() }
func recordEmbedError()         { ingMetrics.init(); ingMetrics.embedErrors.Inc() }
func recordEmbedRetry()         { ingMetrics.init(); ingMetrics.embedRetries.Inc() }
func recordFileFailed()         { ingMetrics.init(); ingMetrics.filesFailed.Inc() }

func observeDurations(r *Report) {
	ingMetrics.init()
	ingMetrics.scanDuration.Observe(r.ScanDuration.Seconds())
	ingMetrics.extractDuration.Observe(r.ExtractDuration.Seconds())
	ingMetrics.embedDuration.Observe(r.EmbedDuration.Seconds())
	ingMetrics.indexDuration.Observe(r.IndexDuration.Seconds())
	ingMetrics.totalDuration.Observe(r.TotalDuration.Seconds())
}
