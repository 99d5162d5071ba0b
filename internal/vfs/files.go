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
	log "github.com/sirupsen/logrus"

	"drivefs/internal/common"
)

// UpsertFile records a new file at path and returns its id. When the path is
// already occupied the new record becomes the next version of the current
// one, which is unbound from the path and dropped from its folder.
func (d *Drive) UpsertFile(path string, ns Namespace, caller Identity) (string, error) {
	const op = "upsert_file"

	full, segments, name, err := parseFilePath(path, ns)
	if err != nil {
		return "", opError(op, path, err)
	}

	folder := d.ensureFolders(ns, segments, caller)
	now := d.nowMs()

	rec := &FileRecord{
		ID:             d.ids.Next(caller),
		Name:           name,
		FolderID:       folder.ID,
		Version:        1,
		Extension:      common.Extension(name),
		FullPath:       full,
		Tags:           []string{},
		Owner:          caller,
		CreatedAt:      d.nowNs(),
		Namespace:      ns,
		LastModifiedMs: now,
	}

	// A collision means a live version holds the path and rec supersedes it.
	if err := d.filePaths.Insert(full, rec.ID); err != nil {
		oldID, _ := d.filePaths.Lookup(full)
		if old, ok := d.files[oldID]; ok {
			rec.Version = old.Version + 1
			rec.PriorVersion = old.ID
			old.NextVersion = rec.ID
			d.dropFromFolder(old.FolderID, old.ID)
		}
		folder.FileIDs = removeID(folder.FileIDs, oldID)
		d.filePaths.Remove(full)
	}

	d.bindFile(rec)
	folder.FileIDs = append(folder.FileIDs, rec.ID)

	log.WithFields(log.Fields{
		"id":      rec.ID,
		"path":    rec.FullPath,
		"version": rec.Version,
	}).Debug("vfs: file upserted")
	return rec.ID, nil
}

// parseFilePath sanitizes a file path and splits it into the canonical full
// path, the folder segments and the file name.
func parseFilePath(path string, ns Namespace) (full string, segments []string, name string, err error) {
	if !ns.Valid() {
		return "", nil, "", common.ErrInvalidPath
	}
	full, err = common.SanitizePath(path)
	if err != nil {
		return "", nil, "", err
	}
	if common.NamespaceOf(full) != ns.String() {
		return "", nil, "", common.ErrInvalidPath
	}
	folderPath, name := common.SplitFilePath(full)
	if name == "" {
		return "", nil, "", common.ErrInvalidPath
	}
	_, rel, err := common.ParsePath(folderPath)
	if err != nil {
		return "", nil, "", err
	}
	return full, common.SplitSegments(rel), name, nil
}

func (d *Drive) dropFromFolder(folderID, fileID string) {
	if folder, ok := d.folders[folderID]; ok {
		folder.FileIDs = removeID(folder.FileIDs, fileID)
	}
}
