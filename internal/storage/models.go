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
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"drivefs/internal/vfs"
)

// Bun ORM models for drivefs database tables.
// Id lists and tags are stored as JSON text; unsigned counters are stored
// as INTEGER and converted on the way in and out.

// SchemaInfoModel represents the schema_info table
type SchemaInfoModel struct {
	bun.BaseModel `bun:"table:schema_info"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// ConfigModel represents the config table
type ConfigModel struct {
	bun.BaseModel `bun:"table:config"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// DriveInfoModel is the single row describing the drive in a data file
type DriveInfoModel struct {
	bun.BaseModel `bun:"table:drive_info"`

	ID         int64  `bun:"id,pk"`
	Owner      string `bun:"owner,notnull"`
	Username   string `bun:"username,notnull"`
	InstanceID string `bun:"instance_id,notnull"`
	IDCounter  int64  `bun:"id_counter,notnull"`
	SavedAt    int64  `bun:"saved_at,notnull"` // Unix timestamp
}

// FolderModel represents the folders table
type FolderModel struct {
	bun.BaseModel `bun:"table:folders"`

	ID             string `bun:"id,pk"`
	Name           string `bun:"name,notnull"`
	ParentID       string `bun:"parent_id,notnull"`
	SubfolderIDs   string `bun:"subfolder_ids,notnull"`
	FileIDs        string `bun:"file_ids,notnull"`
	FullPath       string `bun:"full_path,notnull"`
	Tags           string `bun:"tags,notnull"`
	Owner          string `bun:"owner,notnull"`
	CreatedAt      int64  `bun:"created_at,notnull"` // Unix ns
	Namespace      string `bun:"namespace,notnull"`
	LastModifiedMs int64  `bun:"last_modified_ms,notnull"`
	Deleted        bool   `bun:"deleted,notnull"`
}

// FileModel represents the files table
type FileModel struct {
	bun.BaseModel `bun:"table:files"`

	ID             string `bun:"id,pk"`
	Name           string `bun:"name,notnull"`
	FolderID       string `bun:"folder_id,notnull"`
	Version        int64  `bun:"version,notnull"`
	PriorVersion   string `bun:"prior_version,notnull"`
	NextVersion    string `bun:"next_version,notnull"`
	Extension      string `bun:"extension,notnull"`
	FullPath       string `bun:"full_path,notnull"`
	Tags           string `bun:"tags,notnull"`
	Owner          string `bun:"owner,notnull"`
	CreatedAt      int64  `bun:"created_at,notnull"`
	Namespace      string `bun:"namespace,notnull"`
	Size           int64  `bun:"size,notnull"`
	ContentURL     string `bun:"content_url,notnull"`
	LastModifiedMs int64  `bun:"last_modified_ms,notnull"`
	Deleted        bool   `bun:"deleted,notnull"`
}

// FolderPathModel represents the folder_paths table
type FolderPathModel struct {
	bun.BaseModel `bun:"table:folder_paths"`

	Path string `bun:"path,pk"`
	ID   string `bun:"id,notnull"`
}

// FilePathModel represents the file_paths table
type FilePathModel struct {
	bun.BaseModel `bun:"table:file_paths"`

	Path string `bun:"path,pk"`
	ID   string `bun:"id,notnull"`
}

// DriveEntryModel represents a registered drive in the meta file
type DriveEntryModel struct {
	bun.BaseModel `bun:"table:drives"`

	Index      int64  `bun:"idx,pk,autoincrement"`
	Owner      string `bun:"owner,notnull,unique"`
	Username   string `bun:"username,notnull"`
	DataFile   string `bun:"data_file,notnull"`
	Backend    string `bun:"backend,notnull"`
	InstanceID string `bun:"instance_id,notnull"`
	CreatedAt  int64  `bun:"created_at,notnull"` // Unix timestamp
}

// ToDriveEntry converts a DriveEntryModel to a DriveEntry
func (m *DriveEntryModel) ToDriveEntry() *DriveEntry {
	return &DriveEntry{
		Index:      m.Index,
		Owner:      vfs.Identity(m.Owner),
		Username:   m.Username,
		DataFile:   m.DataFile,
		Backend:    m.Backend,
		InstanceID: m.InstanceID,
		CreatedAt:  time.Unix(m.CreatedAt, 0),
	}
}

// FolderModelFromRecord converts a folder record to its row form
func FolderModelFromRecord(rec *vfs.FolderRecord) (*FolderModel, error) {
	subfolders, err := encodeIDs(rec.SubfolderIDs)
	if err != nil {
		return nil, err
	}
	files, err := encodeIDs(rec.FileIDs)
	if err != nil {
		return nil, err
	}
	tags, err := encodeIDs(rec.Tags)
	if err != nil {
		return nil, err
	}
	return &FolderModel{
		ID:             rec.ID,
		Name:           rec.Name,
		ParentID:       rec.ParentID,
		SubfolderIDs:   subfolders,
		FileIDs:        files,
		FullPath:       rec.FullPath,
		Tags:           tags,
		Owner:          string(rec.Owner),
		CreatedAt:      rec.CreatedAt,
		Namespace:      string(rec.Namespace),
		LastModifiedMs: int64(rec.LastModifiedMs),
		Deleted:        rec.Deleted,
	}, nil
}

// ToRecord converts a FolderModel back to a folder record
func (m *FolderModel) ToRecord() (*vfs.FolderRecord, error) {
	rec := &vfs.FolderRecord{
		ID:             m.ID,
		Name:           m.Name,
		ParentID:       m.ParentID,
		FullPath:       m.FullPath,
		Owner:          vfs.Identity(m.Owner),
		CreatedAt:      m.CreatedAt,
		Namespace:      vfs.Namespace(m.Namespace),
		LastModifiedMs: uint64(m.LastModifiedMs),
		Deleted:        m.Deleted,
	}
	var err error
	if rec.SubfolderIDs, err = decodeIDs(m.SubfolderIDs); err != nil {
		return nil, fmt.Errorf("folder %s subfolders: %w", m.ID, err)
	}
	if rec.FileIDs, err = decodeIDs(m.FileIDs); err != nil {
		return nil, fmt.Errorf("folder %s files: %w", m.ID, err)
	}
	if rec.Tags, err = decodeIDs(m.Tags); err != nil {
		return nil, fmt.Errorf("folder %s tags: %w", m.ID, err)
	}
	return rec, nil
}

// FileModelFromRecord converts a file record to its row form
func FileModelFromRecord(rec *vfs.FileRecord) (*FileModel, error) {
	tags, err := encodeIDs(rec.Tags)
	if err != nil {
		return nil, err
	}
	return &FileModel{
		ID:             rec.ID,
		Name:           rec.Name,
		FolderID:       rec.FolderID,
		Version:        int64(rec.Version),
		PriorVersion:   rec.PriorVersion,
		NextVersion:    rec.NextVersion,
		Extension:      rec.Extension,
		FullPath:       rec.FullPath,
		Tags:           tags,
		Owner:          string(rec.Owner),
		CreatedAt:      rec.CreatedAt,
		Namespace:      string(rec.Namespace),
		Size:           int64(rec.Size),
		ContentURL:     rec.ContentURL,
		LastModifiedMs: int64(rec.LastModifiedMs),
		Deleted:        rec.Deleted,
	}, nil
}

// ToRecord converts a FileModel back to a file record
func (m *FileModel) ToRecord() (*vfs.FileRecord, error) {
	tags, err := decodeIDs(m.Tags)
	if err != nil {
		return nil, fmt.Errorf("file %s tags: %w", m.ID, err)
	}
	return &vfs.FileRecord{
		ID:             m.ID,
		Name:           m.Name,
		FolderID:       m.FolderID,
		Version:        uint32(m.Version),
		PriorVersion:   m.PriorVersion,
		NextVersion:    m.NextVersion,
		Extension:      m.Extension,
		FullPath:       m.FullPath,
		Tags:           tags,
		Owner:          vfs.Identity(m.Owner),
		CreatedAt:      m.CreatedAt,
		Namespace:      vfs.Namespace(m.Namespace),
		Size:           uint64(m.Size),
		ContentURL:     m.ContentURL,
		LastModifiedMs: uint64(m.LastModifiedMs),
		Deleted:        m.Deleted,
	}, nil
}

// encodeIDs keeps nil and empty lists distinct ("null" vs "[]").
func encodeIDs(ids []string) (string, error) {
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeIDs(s string) ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
