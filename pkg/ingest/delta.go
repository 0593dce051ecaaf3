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

import "sort"

// Delta classifies the scanned tree against the previous snapshot.
// Unchanged files skip the whole extract-embed-index path, which is the
// main performance lever on large repositories.
type Delta struct {
	Added     []FileInfo
	Modified  []FileInfo
	Deleted   []string
	Unchanged []FileInfo
}

// ComputeDelta diffs walked files against the snapshot's path → hash map.
func ComputeDelta(files []FileInfo, snapshot map[string]string) *Delta {
	d := &Delta{}
	seen := make(map[string]struct{}, len(files))

	for _, f := range files {
		seen[f.Path] = struct{}{}
		prev, ok := snapshot[f.Path]
		switch {
		case !ok:
			d.Added = append(d.Added, f)
		case prev != f.Hash:
			d.Modified = append(d.Modified, f)
		default:
			d.Unchanged = append(d.Unchanged, f)
		}
	}

	for path := range snapshot {
		if _, ok := seen[path]; !ok {
			d.Deleted = append(d.Deleted, path)
		}
	}
	sort.Strings(d.Deleted)
	return d
}

// Changed returns added and modified files, in path order.
func (d *Delta) Changed() []FileInfo {
	out := make([]FileInfo, 0, len(d.Added)+len(d.Modified))
	out = append(out, d.Added...)
	out = append(out, d.Modified...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
