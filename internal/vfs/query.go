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

// Lookups return copies, so callers may keep or modify the results. Unknown
// ids and paths yield nil. Tombstoned folders are still returned by id.

func (d *Drive) GetFolderByID(id string) *FolderRecord {
	return d.folders[id].Clone()
}

func (d *Drive) GetFolderByPath(path string) *FolderRecord {
	id, ok := d.folderPaths.Lookup(path)
	if !ok {
		return nil
	}
	return d.folders[id].Clone()
}

func (d *Drive) GetFileByID(id string) *FileRecord {
	return d.files[id].Clone()
}

func (d *Drive) GetFileByPath(path string) *FileRecord {
	id, ok := d.filePaths.Lookup(path)
	if !ok {
		return nil
	}
	return d.files[id].Clone()
}

// FetchChildren lists the folder at path: subfolders first, then files, each
// in stored order. after skips that many entries of the combined listing and
// limit caps the page. Total is the number of entries returned and HasMore
// reports whether entries remain past the page.
func (d *Drive) FetchChildren(path string, limit, after uint32) FetchResult {
	res := emptyFetchResult()

	id, ok := d.folderPaths.Lookup(path)
	if !ok {
		return res
	}
	folder, ok := d.folders[id]
	if !ok {
		return res
	}

	var subfolders []*FolderRecord
	for _, sid := range folder.SubfolderIDs {
		if sub, ok := d.folders[sid]; ok {
			subfolders = append(subfolders, sub)
		}
	}
	var files []*FileRecord
	for _, fid := range folder.FileIDs {
		if file, ok := d.files[fid]; ok {
			files = append(files, file)
		}
	}

	total := uint64(len(subfolders) + len(files))
	start := min(uint64(after), total)
	end := min(start+uint64(limit), total)

	for i := start; i < end; i++ {
		if i < uint64(len(subfolders)) {
			res.Folders = append(res.Folders, subfolders[i].Clone())
		} else {
			res.Files = append(res.Files, files[i-uint64(len(subfolders))].Clone())
		}
	}
	res.Total = uint32(end - start)
	res.HasMore = end < total
	return res
}
