// Copyright 2024 DriveFS Authors
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

package vfs

// History returns copies of id and every earlier version, newest first.
// It returns nil when id is unknown.
func (d *Drive) History(id string) []*FileRecord {
	var out []*FileRecord
	d.walkPrior(id, func(rec *FileRecord) {
		out = append(out, rec.Clone())
	})
	return out
}

// Lineage returns copies of the whole chain id belongs to, oldest first.
func (d *Drive) Lineage(id string) []*FileRecord {
	head := d.chainHead(id)
	if head == nil {
		return nil
	}
	history := d.History(head.ID)
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history
}

// ChainHead returns a copy of the newest version in the chain of id.
func (d *Drive) ChainHead(id string) *FileRecord {
	return d.chainHead(id).Clone()
}

func (d *Drive) chainHead(id string) *FileRecord {
	rec, ok := d.files[id]
	if !ok {
		return nil
	}
	seen := map[string]bool{rec.ID: true}
	for rec.NextVersion != "" {
		next, ok := d.files[rec.NextVersion]
		if !ok || seen[next.ID] {
			break
		}
		seen[next.ID] = true
		rec = next
	}
	return rec
}

// walkPrior visits id and its prior versions until the chain ends or loops.
func (d *Drive) walkPrior(id string, visit func(*FileRecord)) {
	seen := make(map[string]bool)
	for id != "" && !seen[id] {
		rec, ok := d.files[id]
		if !ok {
			return
		}
		seen[id] = true
		visit(rec)
		id = rec.PriorVersion
	}
}
