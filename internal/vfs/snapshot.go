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
	"fmt"

	log "github.com/sirupsen/logrus"

	"drivefs/internal/common"
)

// Snapshot is a full copy of a drive's state. It is what storage backends
// persist and what Restore rebuilds a drive from.
type Snapshot struct {
	Owner       Identity                 `json:"owner" yaml:"owner"`
	Username    string                   `json:"username" yaml:"username"`
	InstanceID  string                   `json:"instance_id" yaml:"instance_id"`
	IDCounter   uint64                   `json:"id_counter" yaml:"id_counter"`
	Folders     map[string]*FolderRecord `json:"folders" yaml:"folders"`
	Files       map[string]*FileRecord   `json:"files" yaml:"files"`
	FolderPaths map[string]string        `json:"folder_paths" yaml:"folder_paths"`
	FilePaths   map[string]string        `json:"file_paths" yaml:"file_paths"`
}

// ExportSnapshot returns a deep copy of the drive state.
func (d *Drive) ExportSnapshot() *Snapshot {
	s := &Snapshot{
		Owner:       d.owner,
		Username:    BareUsername(d.username),
		InstanceID:  d.ids.InstanceID(),
		IDCounter:   d.ids.Counter(),
		Folders:     make(map[string]*FolderRecord, len(d.folders)),
		Files:       make(map[string]*FileRecord, len(d.files)),
		FolderPaths: d.folderPaths.Entries(),
		FilePaths:   d.filePaths.Entries(),
	}
	for id, rec := range d.folders {
		s.Folders[id] = rec.Clone()
	}
	for id, rec := range d.files {
		s.Files[id] = rec.Clone()
	}
	return s
}

// Restore rebuilds a drive from a snapshot. The id counter continues from
// the snapshot value so restored drives never reissue an id.
func Restore(s *Snapshot, opts ...Option) (*Drive, error) {
	const op = "restore"

	if s == nil {
		return nil, opError(op, "", common.ErrNotFound)
	}
	name, err := CheckUsername(s.Username)
	if err != nil {
		return nil, opError(op, s.Username, err)
	}

	opts = append([]Option{WithInstanceID(s.InstanceID)}, opts...)
	d := newDrive(s.Owner, name, opts...)
	d.ids.counter = s.IDCounter

	for id, rec := range s.Folders {
		d.folders[id] = rec.Clone()
	}
	for id, rec := range s.Files {
		d.files[id] = rec.Clone()
	}
	for path, id := range s.FolderPaths {
		rec, ok := d.folders[id]
		if !ok || rec.FullPath != path {
			return nil, opError(op, path, fmt.Errorf("folder binding to %s: %w", id, common.ErrStructure))
		}
		d.folderPaths.Force(path, id)
	}
	for path, id := range s.FilePaths {
		rec, ok := d.files[id]
		if !ok || rec.FullPath != path {
			return nil, opError(op, path, fmt.Errorf("file binding to %s: %w", id, common.ErrStructure))
		}
		d.filePaths.Force(path, id)
	}

	log.WithFields(log.Fields{
		"owner":   s.Owner,
		"folders": len(d.folders),
		"files":   len(d.files),
	}).Debug("vfs: drive restored")
	return d, nil
}

// Check verifies the structural invariants of the drive and returns the
// first violation found.
func (d *Drive) Check() error {
	for path, id := range d.folderPaths.Entries() {
		rec, ok := d.folders[id]
		if !ok || rec.FullPath != path || rec.Deleted {
			return fmt.Errorf("folder path %s bound to %s: %w", path, id, common.ErrStructure)
		}
	}
	for path, id := range d.filePaths.Entries() {
		rec, ok := d.files[id]
		if !ok || rec.FullPath != path {
			return fmt.Errorf("file path %s bound to %s: %w", path, id, common.ErrStructure)
		}
	}
	for id, rec := range d.folders {
		if rec.Deleted || rec.ParentID == "" {
			continue
		}
		parent, ok := d.folders[rec.ParentID]
		if !ok {
			return fmt.Errorf("folder %s has unknown parent %s: %w", id, rec.ParentID, common.ErrStructure)
		}
		if !contains(parent.SubfolderIDs, id) {
			return fmt.Errorf("folder %s missing from parent %s: %w", id, parent.ID, common.ErrStructure)
		}
	}
	for id, rec := range d.files {
		if rec.NextVersion != "" {
			next, ok := d.files[rec.NextVersion]
			if !ok || next.PriorVersion != id || next.Version <= rec.Version {
				return fmt.Errorf("file %s has broken next link: %w", id, common.ErrStructure)
			}
		}
		if rec.PriorVersion != "" {
			prior, ok := d.files[rec.PriorVersion]
			if ok && prior.NextVersion != id {
				return fmt.Errorf("file %s has broken prior link: %w", id, common.ErrStructure)
			}
		}
		if d.priorCycle(id) {
			return fmt.Errorf("file %s version chain loops: %w", id, common.ErrStructure)
		}
	}
	return nil
}

func (d *Drive) priorCycle(id string) bool {
	seen := make(map[string]bool)
	for id != "" {
		if seen[id] {
			return true
		}
		seen[id] = true
		rec, ok := d.files[id]
		if !ok {
			return false
		}
		id = rec.PriorVersion
	}
	return false
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
