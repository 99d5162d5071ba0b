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
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"drivefs/internal/common"
)

var validate = validator.New()

// validateIncoming checks the fields of client supplied metadata that the
// merge relies on. Other fields are trusted as-is.
func validateIncoming(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("field %s failed %q: %w", verrs[0].Field(), verrs[0].Tag(), common.ErrInvalidPath)
		}
		return fmt.Errorf("%v: %w", err, common.ErrInvalidPath)
	}
	return nil
}

// UpsertCloudFileWithLocalSync applies file metadata authored by an offline
// client on top of existingID. The result is a new head version whose
// content fields come from incoming. existingID must be the head of its
// chain.
func (d *Drive) UpsertCloudFileWithLocalSync(existingID string, incoming *FileRecord, caller Identity) (string, error) {
	const op = "upsert_cloud_file"

	existing, ok := d.files[existingID]
	if !ok {
		return "", opError(op, existingID, common.ErrNotFound)
	}
	if existing.NextVersion != "" {
		return "", opError(op, existingID, common.ErrStaleVersion)
	}
	if incoming == nil {
		return "", opError(op, existingID, common.ErrInvalidPath)
	}
	if err := validateIncoming(incoming); err != nil {
		return "", opError(op, incoming.FullPath, err)
	}
	full, segments, name, err := parseFilePath(incoming.FullPath, incoming.Namespace)
	if err != nil {
		return "", opError(op, incoming.FullPath, err)
	}

	folder := d.ensureFolders(incoming.Namespace, segments, caller)
	newID := d.ids.Next(caller)

	// The whole prior chain leaves the folder listing; only the new head is
	// listed.
	d.walkPrior(existingID, func(rec *FileRecord) {
		folder.FileIDs = removeID(folder.FileIDs, rec.ID)
		if rec.FolderID != folder.ID {
			d.dropFromFolder(rec.FolderID, rec.ID)
		}
	})

	rec := &FileRecord{
		ID:             newID,
		Name:           name,
		FolderID:       folder.ID,
		Version:        existing.Version + 1,
		PriorVersion:   existingID,
		Extension:      common.Extension(name),
		FullPath:       full,
		Tags:           []string{},
		Owner:          caller,
		CreatedAt:      incoming.CreatedAt,
		Namespace:      incoming.Namespace,
		Size:           incoming.Size,
		ContentURL:     incoming.ContentURL,
		LastModifiedMs: incoming.LastModifiedMs | d.nowMs(),
		Deleted:        incoming.Deleted,
	}

	d.filePaths.RemoveIf(existing.FullPath, existingID)
	d.bindFile(rec)
	folder.FileIDs = append(folder.FileIDs, rec.ID)
	existing.NextVersion = rec.ID

	log.WithFields(log.Fields{
		"id":       rec.ID,
		"previous": existingID,
		"path":     rec.FullPath,
		"version":  rec.Version,
	}).Debug("vfs: cloud file merged")
	return rec.ID, nil
}

// UpsertCloudFolderWithLocalSync overwrites the client editable fields of a
// folder in place: name, tags, namespace, path, parent and deleted flag.
func (d *Drive) UpsertCloudFolderWithLocalSync(id string, incoming *FolderRecord) (string, error) {
	const op = "upsert_cloud_folder"

	rec, ok := d.folders[id]
	if !ok {
		return "", opError(op, id, common.ErrNotFound)
	}
	if incoming == nil {
		return "", opError(op, id, common.ErrInvalidPath)
	}
	if err := validateIncoming(incoming); err != nil {
		return "", opError(op, incoming.FullPath, err)
	}
	if _, _, err := common.ParsePath(incoming.FullPath); err != nil {
		return "", opError(op, incoming.FullPath, err)
	}
	if common.NamespaceOf(incoming.FullPath) != incoming.Namespace.String() {
		return "", opError(op, incoming.FullPath, common.ErrInvalidPath)
	}

	if rec.ParentID != incoming.ParentID {
		if parent, ok := d.folders[rec.ParentID]; ok {
			parent.SubfolderIDs = removeID(parent.SubfolderIDs, rec.ID)
		}
	}
	if parent, ok := d.folders[incoming.ParentID]; ok && incoming.ParentID != rec.ID {
		parent.SubfolderIDs = appendUnique(parent.SubfolderIDs, rec.ID)
	}

	rec.Name = incoming.Name
	rec.Tags = cloneStrings(incoming.Tags)
	rec.Namespace = incoming.Namespace
	rec.ParentID = incoming.ParentID
	rec.Deleted = incoming.Deleted
	d.moveFolder(rec, incoming.FullPath)
	rec.LastModifiedMs = incoming.LastModifiedMs | d.nowMs()

	log.WithFields(log.Fields{
		"id":      id,
		"path":    rec.FullPath,
		"deleted": rec.Deleted,
	}).Debug("vfs: cloud folder merged")
	return id, nil
}
