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

// DeleteFolder tombstones the folder and every folder below it and purges
// every file they contain. Tombstoned folders keep their records and child
// lists but lose their path bindings.
func (d *Drive) DeleteFolder(id string) error {
	const op = "delete_folder"

	root, ok := d.folders[id]
	if !ok {
		return opError(op, id, common.ErrNotFound)
	}

	var folders, files int
	visited := map[string]bool{root.ID: true}
	queue := []*FolderRecord{root}

	for len(queue) > 0 {
		folder := queue[0]
		queue = queue[1:]

		for _, fid := range folder.FileIDs {
			if file, ok := d.files[fid]; ok {
				d.purgeFile(file)
				files++
			}
		}
		for _, sid := range folder.SubfolderIDs {
			if visited[sid] {
				continue
			}
			if sub, ok := d.folders[sid]; ok {
				visited[sid] = true
				queue = append(queue, sub)
			}
		}

		d.unbindFolder(folder)
		folders++
	}

	log.WithFields(log.Fields{"id": id, "folders": folders, "files": files}).Debug("vfs: folder deleted")
	return nil
}

// DeleteFile purges the file record, splices it out of its version chain and
// drops it from its folder.
func (d *Drive) DeleteFile(id string) error {
	const op = "delete_file"

	rec, ok := d.files[id]
	if !ok {
		return opError(op, id, common.ErrNotFound)
	}

	d.purgeFile(rec)
	d.dropFromFolder(rec.FolderID, rec.ID)

	log.WithFields(log.Fields{"id": id, "path": rec.FullPath}).Debug("vfs: file deleted")
	return nil
}

// purgeFile removes rec from the store and the index and links its chain
// neighbours to each other.
func (d *Drive) purgeFile(rec *FileRecord) {
	d.unbindFile(rec)
	if prior, ok := d.files[rec.PriorVersion]; ok && rec.PriorVersion != "" {
		prior.NextVersion = rec.NextVersion
	}
	if next, ok := d.files[rec.NextVersion]; ok && rec.NextVersion != "" {
		next.PriorVersion = rec.PriorVersion
	}
}
