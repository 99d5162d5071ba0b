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

	"drivefs/internal/common"
)

// Namespace is the storage backend a path belongs to. It forms the
// "<namespace>::" prefix of every canonical path.
type Namespace string

const (
	NamespaceBrowserCache Namespace = "BrowserCache"
	NamespaceHardDrive    Namespace = "HardDrive"
	NamespaceWeb3Storj    Namespace = "Web3Storj"
)

// Namespaces lists the closed set of storage namespaces.
var Namespaces = []Namespace{NamespaceBrowserCache, NamespaceHardDrive, NamespaceWeb3Storj}

// Valid reports whether n is one of the known namespaces.
func (n Namespace) Valid() bool {
	switch n {
	case NamespaceBrowserCache, NamespaceHardDrive, NamespaceWeb3Storj:
		return true
	}
	return false
}

func (n Namespace) String() string { return string(n) }

// ParseNamespace converts a string into a Namespace.
func ParseNamespace(s string) (Namespace, error) {
	n := Namespace(s)
	if !n.Valid() {
		return "", fmt.Errorf("unknown namespace %q: %w", s, common.ErrInvalidPath)
	}
	return n, nil
}

// Identity is the caller identity supplied by the authentication layer.
type Identity string

// AnonymousIdentity is the identity of unauthenticated callers.
const AnonymousIdentity Identity = "anonymous"

func (i Identity) String() string { return string(i) }

// FolderRecord is the stored metadata of a folder.
// ParentID is empty for namespace roots.
type FolderRecord struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	ParentID       string    `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	SubfolderIDs   []string  `json:"subfolder_ids" yaml:"subfolder_ids"`
	FileIDs        []string  `json:"file_ids" yaml:"file_ids"`
	FullPath       string    `json:"full_path" yaml:"full_path" validate:"required"`
	Tags           []string  `json:"tags" yaml:"tags"`
	Owner          Identity  `json:"owner" yaml:"owner"`
	CreatedAt      int64     `json:"created_at" yaml:"created_at"` // unix ns
	Namespace      Namespace `json:"namespace" yaml:"namespace" validate:"required,oneof=BrowserCache HardDrive Web3Storj"`
	LastModifiedMs uint64    `json:"last_modified_ms" yaml:"last_modified_ms"`
	Deleted        bool      `json:"deleted" yaml:"deleted"`
}

// Clone returns a deep copy of the record.
func (f *FolderRecord) Clone() *FolderRecord {
	if f == nil {
		return nil
	}
	c := *f
	c.SubfolderIDs = cloneStrings(f.SubfolderIDs)
	c.FileIDs = cloneStrings(f.FileIDs)
	c.Tags = cloneStrings(f.Tags)
	return &c
}

// IsRoot reports whether the folder is a namespace root.
func (f *FolderRecord) IsRoot() bool {
	return f.ParentID == "" && f.FullPath == common.RootPath(f.Namespace.String())
}

// FileRecord is the stored metadata of one file version.
type FileRecord struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	FolderID       string    `json:"folder_id" yaml:"folder_id"`
	Version        uint32    `json:"version" yaml:"version"`
	PriorVersion   string    `json:"prior_version,omitempty" yaml:"prior_version,omitempty"`
	NextVersion    string    `json:"next_version,omitempty" yaml:"next_version,omitempty"`
	Extension      string    `json:"extension" yaml:"extension"`
	FullPath       string    `json:"full_path" yaml:"full_path" validate:"required"`
	Tags           []string  `json:"tags" yaml:"tags"`
	Owner          Identity  `json:"owner" yaml:"owner"`
	CreatedAt      int64     `json:"created_at" yaml:"created_at"`
	Namespace      Namespace `json:"namespace" yaml:"namespace" validate:"required,oneof=BrowserCache HardDrive Web3Storj"`
	Size           uint64    `json:"size" yaml:"size"`
	ContentURL     string    `json:"content_url" yaml:"content_url"`
	LastModifiedMs uint64    `json:"last_modified_ms" yaml:"last_modified_ms"`
	Deleted        bool      `json:"deleted" yaml:"deleted"`
}

// Clone returns a deep copy of the record.
func (f *FileRecord) Clone() *FileRecord {
	if f == nil {
		return nil
	}
	c := *f
	c.Tags = cloneStrings(f.Tags)
	return &c
}

// FetchResult is one page of a folder listing.
type FetchResult struct {
	Folders []*FolderRecord `json:"folders" yaml:"folders"`
	Files   []*FileRecord   `json:"files" yaml:"files"`
	Total   uint32          `json:"total" yaml:"total"`
	HasMore bool            `json:"has_more" yaml:"has_more"`
}

func emptyFetchResult() FetchResult {
	return FetchResult{
		Folders: []*FolderRecord{},
		Files:   []*FileRecord{},
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// appendUnique appends id to ids unless it is already present.
func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// removeID returns ids without any occurrence of id.
func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
