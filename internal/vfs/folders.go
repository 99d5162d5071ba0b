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

// CreateFolder creates the folder at path, creating any missing ancestors.
// A path without segments returns the namespace root, creating it on first
// use. Creating a folder that already exists fails with ErrFolderExists.
func (d *Drive) CreateFolder(path string, ns Namespace, caller Identity) (*FolderRecord, error) {
	const op = "create_folder"

	segments, err := parseFolderPath(path, ns)
	if err != nil {
		return nil, opError(op, path, err)
	}

	if len(segments) == 0 {
		return d.ensureRoot(ns, caller).Clone(), nil
	}

	full := common.FolderPath(ns.String(), segments...)
	if _, ok := d.folderPaths.Lookup(full); ok {
		return nil, opError(op, full, common.ErrFolderExists)
	}

	rec := d.ensureFolders(ns, segments, caller)
	log.WithFields(log.Fields{"id": rec.ID, "path": rec.FullPath}).Debug("vfs: folder created")
	return rec.Clone(), nil
}

// parseFolderPath sanitizes path and checks that its namespace prefix
// matches ns.
func parseFolderPath(path string, ns Namespace) ([]string, error) {
	if !ns.Valid() {
		return nil, common.ErrInvalidPath
	}
	pathNS, rel, err := common.ParsePath(path)
	if err != nil {
		return nil, err
	}
	if pathNS != ns.String() {
		return nil, common.ErrInvalidPath
	}
	return common.SplitSegments(rel), nil
}

// CanonicalFolderPath returns the canonical form of a user supplied folder
// path, e.g. "BrowserCache::a//b" becomes "BrowserCache::a/b/".
func CanonicalFolderPath(path string) (string, error) {
	ns, rel, err := common.ParsePath(path)
	if err != nil {
		return "", err
	}
	return common.FolderPath(ns, common.SplitSegments(rel)...), nil
}

// ensureRoot returns the root folder of ns, creating it when missing.
func (d *Drive) ensureRoot(ns Namespace, caller Identity) *FolderRecord {
	rootPath := common.RootPath(ns.String())
	if id, ok := d.folderPaths.Lookup(rootPath); ok {
		if rec, ok := d.folders[id]; ok {
			return rec
		}
	}

	rec := &FolderRecord{
		ID:             d.ids.Next(caller),
		SubfolderIDs:   []string{},
		FileIDs:        []string{},
		FullPath:       rootPath,
		Tags:           []string{},
		Owner:          caller,
		CreatedAt:      d.nowNs(),
		Namespace:      ns,
		LastModifiedMs: d.nowMs(),
	}
	d.bindFolder(rec)
	log.WithFields(log.Fields{"id": rec.ID, "namespace": ns}).Debug("vfs: root folder created")
	return rec
}

// ensureFolders walks segments from the namespace root, creating and
// linking every missing folder, and returns the deepest one.
func (d *Drive) ensureFolders(ns Namespace, segments []string, caller Identity) *FolderRecord {
	parent := d.ensureRoot(ns, caller)
	current := parent.FullPath

	for _, seg := range segments {
		current = common.ChildFolderPath(current, seg)
		if id, ok := d.folderPaths.Lookup(current); ok {
			if rec, ok := d.folders[id]; ok {
				parent.SubfolderIDs = appendUnique(parent.SubfolderIDs, rec.ID)
				parent = rec
				continue
			}
		}

		rec := &FolderRecord{
			ID:             d.ids.Next(caller),
			Name:           seg,
			ParentID:       parent.ID,
			SubfolderIDs:   []string{},
			FileIDs:        []string{},
			FullPath:       current,
			Tags:           []string{},
			Owner:          caller,
			CreatedAt:      d.nowNs(),
			Namespace:      ns,
			LastModifiedMs: d.nowMs(),
		}
		d.bindFolder(rec)
		parent.SubfolderIDs = appendUnique(parent.SubfolderIDs, rec.ID)
		parent = rec
	}
	return parent
}
