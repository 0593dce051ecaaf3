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

package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/quarrylabs/quarry/pkg/extract"

	_ "modernc.org/sqlite"
)

// Store persists an index and its repository snapshot in one SQLite file.
// Entries and snapshot commit in a single transaction, so a crash mid-save
// leaves the previous consistent state on disk.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS index_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	id         TEXT PRIMARY KEY,
	vector     BLOB NOT NULL,
	hash       TEXT NOT NULL,
	text       TEXT NOT NULL,
	path       TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	language   TEXT NOT NULL,
	scope      TEXT NOT NULL DEFAULT '',
	start_line INTEGER NOT NULL,
	end_line   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_path ON entries(path);
CREATE TABLE IF NOT EXISTS snapshot (
	path TEXT PRIMARY KEY,
	hash TEXT NOT NULL
);
`

// OpenStore opens or creates the index database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open index store: %w", err)
	}
	// modernc/sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY between the writer and readers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save writes the full index content plus the repository snapshot
// (path → file hash) in one transaction.
func (s *Store) Save(ctx context.Context, ix *Index, fileHashes map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"entries", "snapshot", "index_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	metaStmt, err := tx.PrepareContext(ctx, "INSERT INTO index_meta (key, value) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer func() { _ = metaStmt.Close() }()
	meta := map[string]string{
		"model":     ix.Model(),
		"metric":    string(ix.Metric()),
		"dimension": strconv.Itoa(ix.Dimension()),
	}
	for k, v := range meta {
		if _, err := metaStmt.ExecContext(ctx, k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	entryStmt, err := tx.PrepareContext(ctx, `INSERT INTO entries
		(id, vector, hash, text, path, symbol, kind, language, scope, start_line, end_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = entryStmt.Close() }()
	for _, e := range ix.Entries() {
		_, err := entryStmt.ExecContext(ctx,
			e.ID, encodeVector(e.Vector), e.Hash, e.Text,
			e.Meta.Path, e.Meta.Symbol, string(e.Meta.Kind), e.Meta.Language,
			e.Meta.Scope, e.Meta.StartLine, e.Meta.EndLine,
		)
		if err != nil {
			return fmt.Errorf("save entry %s: %w", e.ID, err)
		}
	}

	snapStmt, err := tx.PrepareContext(ctx, "INSERT INTO snapshot (path, hash) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer func() { _ = snapStmt.Close() }()
	for path, hash := range fileHashes {
		if _, err := snapStmt.ExecContext(ctx, path, hash); err != nil {
			return fmt.Errorf("save snapshot %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load reads the persisted index and snapshot. An empty database yields an
// empty index bound to expectedModel. A stored model differing from a
// non-empty expectedModel fails with ModelMismatchError instead of serving
// vectors the caller cannot query against.
func (s *Store) Load(ctx context.Context, expectedModel string) (*Index, map[string]string, error) {
	meta, err := s.loadMeta(ctx)
	if err != nil {
		return nil, nil, err
	}

	model := meta["model"]
	metric := Metric(meta["metric"])
	if model == "" {
		// Nothing persisted yet.
		return New(expectedModel, MetricCosine), map[string]string{}, nil
	}
	if expectedModel != "" && model != expectedModel {
		return nil, nil, &ModelMismatchError{IndexModel: model, GivenModel: expectedModel}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, vector, hash, text, path, symbol,
		kind, language, scope, start_line, end_line FROM entries`)
	if err != nil {
		return nil, nil, fmt.Errorf("load entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var blob []byte
		var kind string
		err := rows.Scan(&e.ID, &blob, &e.Hash, &e.Text, &e.Meta.Path, &e.Meta.Symbol,
			&kind, &e.Meta.Language, &e.Meta.Scope, &e.Meta.StartLine, &e.Meta.EndLine)
		if err != nil {
			return nil, nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Meta.Kind = extract.Kind(kind)
		e.Vector, err = decodeVector(blob)
		if err != nil {
			return nil, nil, fmt.Errorf("decode vector for %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("load entries: %w", err)
	}

	ix := New(model, metric)
	if err := ix.Upsert(entries); err != nil {
		return nil, nil, fmt.Errorf("rebuild index: %w", err)
	}

	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ix, snapshot, nil
}

func (s *Store) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM index_meta")
	if err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (s *Store) loadSnapshot(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path, hash FROM snapshot")
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		snapshot[path] = hash
	}
	return snapshot, rows.Err()
}

// encodeVector packs float32s as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
