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

import (
	"sort"

	"drivefs/internal/common"
)

// PathIndex maps canonical paths to the id of the live record at that path.
// A Drive keeps one index for folders and one for files.
type PathIndex struct {
	byPath map[string]string
}

// NewPathIndex creates an empty index.
func NewPathIndex() *PathIndex {
	return &PathIndex{byPath: make(map[string]string)}
}

// Lookup returns the id bound to path.
func (pi *PathIndex) Lookup(path string) (string, bool) {
	id, ok := pi.byPath[path]
	return id, ok
}

// Insert binds path to id. Rebinding a path to the id it already holds is a
// no-op; binding it to a different id fails with ErrPathCollision.
func (pi *PathIndex) Insert(path, id string) error {
	if existing, ok := pi.byPath[path]; ok && existing != id {
		return common.ErrPathCollision
	}
	pi.byPath[path] = id
	return nil
}

// Force binds path to id, replacing any previous binding.
func (pi *PathIndex) Force(path, id string) {
	pi.byPath[path] = id
}

// Remove drops the binding for path.
func (pi *PathIndex) Remove(path string) {
	delete(pi.byPath, path)
}

// RemoveIf drops the binding for path only when it points at id.
func (pi *PathIndex) RemoveIf(path, id string) bool {
	if existing, ok := pi.byPath[path]; ok && existing == id {
		delete(pi.byPath, path)
		return true
	}
	return false
}

// Rebind moves id from oldPath to newPath. A newPath held by another id
// fails with ErrPathCollision and leaves the index untouched; rebinding onto
// the path id already holds is a no-op.
func (pi *PathIndex) Rebind(oldPath, newPath, id string) error {
	if existing, ok := pi.byPath[newPath]; ok && existing != id {
		return common.ErrPathCollision
	}
	pi.RemoveIf(oldPath, id)
	pi.byPath[newPath] = id
	return nil
}

// Len returns the number of bound paths.
func (pi *PathIndex) Len() int {
	return len(pi.byPath)
}

// Paths returns all bound paths in lexical order.
func (pi *PathIndex) Paths() []string {
	paths := make([]string, 0, len(pi.byPath))
	for p := range pi.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entries returns a copy of the path to id map.
func (pi *PathIndex) Entries() map[string]string {
	out := make(map[string]string, len(pi.byPath))
	for p, id := range pi.byPath {
		out[p] = id
	}
	return out
}
