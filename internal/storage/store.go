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

package storage

import (
	"context"
	"fmt"

	"drivefs/internal/vfs"
)

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// SnapshotStore persists whole-drive snapshots.
type SnapshotStore interface {
	// Save replaces the stored state with s.
	Save(ctx context.Context, s *vfs.Snapshot) error
	// Load returns the stored state, or an error wrapping
	// common.ErrNotFound when nothing was saved.
	Load(ctx context.Context) (*vfs.Snapshot, error)
	Close() error
}

var (
	_ SnapshotStore = (*DataFile)(nil)
	_ SnapshotStore = (*BadgerFile)(nil)
)

// DataFileName returns the on-disk name for a drive stored with backend.
func DataFileName(index int64, backend string) string {
	if backend == BackendBadger {
		return fmt.Sprintf("%d.badger", index)
	}
	return fmt.Sprintf("%d.drivefs", index)
}

// OpenStore opens or creates the snapshot store at path.
func OpenStore(backend, path string, ctx DBContext) (SnapshotStore, error) {
	switch backend {
	case BackendSQLite, "":
		return OpenOrCreate(path, ctx)
	case BackendBadger:
		return OpenBadger(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
