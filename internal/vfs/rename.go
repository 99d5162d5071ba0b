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

type folderMove struct {
	rec     *FolderRecord
	newPath string
}

type fileMove struct {
	rec     *FileRecord
	newPath string
}

// subtreePlan is the full set of path rewrites caused by renaming a folder.
type subtreePlan struct {
	folders []folderMove
	files   []fileMove
}

// RenameFolder renames a live folder and rewrites the path of every folder
// and file below it. Namespace roots cannot be renamed.
func (d *Drive) RenameFolder(id, newName string) error {
	const op = "rename_folder"

	rec, ok := d.folders[id]
	if !ok || !d.isLiveFolder(rec) {
		return opError(op, id, common.ErrNotFound)
	}
	parentPath, ok := common.ParentFolderPath(rec.FullPath)
	if !ok {
		return opError(op, id, common.ErrStructure)
	}
	name, err := common.SanitizeName(newName)
	if err != nil {
		return opError(op, newName, err)
	}
	parent, err := d.resolveParent(rec, parentPath)
	if err != nil {
		return opError(op, parentPath, err)
	}

	oldPath := rec.FullPath
	newPath := common.ChildFolderPath(parentPath, name)
	if boundID, ok := d.folderPaths.Lookup(newPath); ok && boundID != id {
		return opError(op, newPath, common.ErrPathCollision)
	}

	plan := d.planSubtree(rec, oldPath, newPath)
	if err := d.validatePlan(plan); err != nil {
		return opError(op, newPath, err)
	}

	d.applyPlan(plan)
	rec.Name = name
	rec.LastModifiedMs = d.nowMs()
	rec.ParentID = parent.ID
	parent.SubfolderIDs = appendUnique(parent.SubfolderIDs, rec.ID)

	log.WithFields(log.Fields{
		"id":      id,
		"from":    oldPath,
		"to":      newPath,
		"folders": len(plan.folders),
		"files":   len(plan.files),
	}).Debug("vfs: folder renamed")
	return nil
}

// resolveParent finds the live folder at parentPath, falling back to the
// recorded parent id.
func (d *Drive) resolveParent(rec *FolderRecord, parentPath string) (*FolderRecord, error) {
	if pid, ok := d.folderPaths.Lookup(parentPath); ok {
		if parent, ok := d.folders[pid]; ok {
			return parent, nil
		}
	}
	if parent, ok := d.folders[rec.ParentID]; ok && !parent.Deleted {
		return parent, nil
	}
	return nil, common.ErrNotFound
}

// planSubtree collects the new path of root and of every folder and file
// reachable from it, using an explicit work queue.
func (d *Drive) planSubtree(root *FolderRecord, oldPrefix, newPrefix string) subtreePlan {
	var plan subtreePlan
	visited := map[string]bool{root.ID: true}
	queue := []*FolderRecord{root}

	for len(queue) > 0 {
		folder := queue[0]
		queue = queue[1:]
		plan.folders = append(plan.folders, folderMove{
			rec:     folder,
			newPath: common.ReplacePrefix(folder.FullPath, oldPrefix, newPrefix),
		})

		for _, fid := range folder.FileIDs {
			if file, ok := d.files[fid]; ok {
				plan.files = append(plan.files, fileMove{
					rec:     file,
					newPath: common.ReplacePrefix(file.FullPath, oldPrefix, newPrefix),
				})
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
	}
	return plan
}

// validatePlan checks that no new live path is held by a record outside the
// plan.
func (d *Drive) validatePlan(plan subtreePlan) error {
	moving := make(map[string]bool, len(plan.folders)+len(plan.files))
	for _, m := range plan.folders {
		moving[m.rec.ID] = true
	}
	for _, m := range plan.files {
		moving[m.rec.ID] = true
	}

	for _, m := range plan.folders {
		if !d.isLiveFolder(m.rec) {
			continue
		}
		if boundID, ok := d.folderPaths.Lookup(m.newPath); ok && boundID != m.rec.ID && !moving[boundID] {
			return common.ErrPathCollision
		}
	}
	for _, m := range plan.files {
		if !d.isLiveFile(m.rec) {
			continue
		}
		if boundID, ok := d.filePaths.Lookup(m.newPath); ok && boundID != m.rec.ID && !moving[boundID] {
			return common.ErrPathCollision
		}
	}
	return nil
}

// applyPlan rewrites paths in two passes so that no binding is lost when a
// new path equals another member's old path.
func (d *Drive) applyPlan(plan subtreePlan) {
	liveFolders := make([]bool, len(plan.folders))
	liveFiles := make([]bool, len(plan.files))

	for i, m := range plan.folders {
		liveFolders[i] = d.folderPaths.RemoveIf(m.rec.FullPath, m.rec.ID)
	}
	for i, m := range plan.files {
		liveFiles[i] = d.filePaths.RemoveIf(m.rec.FullPath, m.rec.ID)
	}

	for i, m := range plan.folders {
		m.rec.FullPath = m.newPath
		if liveFolders[i] {
			d.folderPaths.Force(m.newPath, m.rec.ID)
		}
	}
	for i, m := range plan.files {
		m.rec.FullPath = m.newPath
		if liveFiles[i] {
			d.filePaths.Force(m.newPath, m.rec.ID)
		}
	}
}

// RenameFile renames a live file within its folder.
func (d *Drive) RenameFile(id, newName string) error {
	const op = "rename_file"

	rec, ok := d.files[id]
	if !ok || !d.isLiveFile(rec) {
		return opError(op, id, common.ErrNotFound)
	}
	name, err := common.SanitizeName(newName)
	if err != nil {
		return opError(op, newName, err)
	}

	folderPath, _ := common.SplitFilePath(rec.FullPath)
	newPath := common.ChildFilePath(folderPath, name)
	oldPath := rec.FullPath
	if err := d.filePaths.Rebind(oldPath, newPath, id); err != nil {
		return opError(op, newPath, err)
	}
	rec.FullPath = newPath
	rec.Name = name
	rec.Extension = common.Extension(name)
	rec.LastModifiedMs = d.nowMs()

	log.WithFields(log.Fields{"id": id, "from": oldPath, "to": newPath}).Debug("vfs: file renamed")
	return nil
}
