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
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Drive is the metadata engine of one owner's drive: folder and file records
// keyed by id plus one path index per record kind.
//
// Drive is not safe for concurrent use. daemon.Instance serializes access.
type Drive struct {
	folders     map[string]*FolderRecord
	files       map[string]*FileRecord
	folderPaths *PathIndex
	filePaths   *PathIndex

	owner    Identity
	username string // "<name>@<owner>"

	ids   *IDGenerator
	clock Clock
}

type driveOptions struct {
	instanceID string
	clock      Clock
}

// Option configures a Drive.
type Option func(*driveOptions)

// WithClock sets the clock used for timestamps and id generation.
func WithClock(c Clock) Option {
	return func(o *driveOptions) { o.clock = c }
}

// WithInstanceID sets the context id mixed into generated ids. A random
// UUID is used when unset.
func WithInstanceID(id string) Option {
	return func(o *driveOptions) { o.instanceID = id }
}

// New creates an empty drive owned by owner. username is sanitized and must
// be valid.
func New(owner Identity, username string, opts ...Option) (*Drive, error) {
	name, err := CheckUsername(username)
	if err != nil {
		return nil, opError("new_drive", username, err)
	}
	return newDrive(owner, name, opts...), nil
}

func newDrive(owner Identity, name string, opts ...Option) *Drive {
	o := driveOptions{clock: systemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.instanceID == "" {
		o.instanceID = uuid.NewString()
	}
	return &Drive{
		folders:     make(map[string]*FolderRecord),
		files:       make(map[string]*FileRecord),
		folderPaths: NewPathIndex(),
		filePaths:   NewPathIndex(),
		owner:       owner,
		username:    FormatUsername(name, owner),
		ids:         NewIDGenerator(o.instanceID, o.clock),
		clock:       o.clock,
	}
}

// Owner returns the identity allowed to mutate the drive.
func (d *Drive) Owner() Identity {
	return d.owner
}

// IsOwner reports whether caller owns the drive.
func (d *Drive) IsOwner(caller Identity) bool {
	return caller == d.owner
}

// Username returns the formatted "<name>@<owner>" username.
func (d *Drive) Username() string {
	return d.username
}

// InstanceID returns the id generator context.
func (d *Drive) InstanceID() string {
	return d.ids.InstanceID()
}

// UpdateUsername replaces the username after sanitizing it.
func (d *Drive) UpdateUsername(username string) error {
	name, err := CheckUsername(username)
	if err != nil {
		return opError("update_username", username, err)
	}
	d.username = FormatUsername(name, d.owner)
	log.WithField("username", d.username).Debug("vfs: username updated")
	return nil
}

// Ping is a liveness probe.
func (d *Drive) Ping() string {
	return "pong"
}

// Stats returns the record and binding counts.
func (d *Drive) Stats() DriveStats {
	return DriveStats{
		Folders:      len(d.folders),
		Files:        len(d.files),
		FolderPaths:  d.folderPaths.Len(),
		FilePaths:    d.filePaths.Len(),
		IDsGenerated: d.ids.Counter(),
	}
}

// DriveStats summarizes the size of a drive.
type DriveStats struct {
	Folders      int    `json:"folders" yaml:"folders"`
	Files        int    `json:"files" yaml:"files"`
	FolderPaths  int    `json:"folder_paths" yaml:"folder_paths"`
	FilePaths    int    `json:"file_paths" yaml:"file_paths"`
	IDsGenerated uint64 `json:"ids_generated" yaml:"ids_generated"`
}

func (d *Drive) nowMs() uint64 {
	return uint64(d.clock.Now().UnixMilli())
}

func (d *Drive) nowNs() int64 {
	return d.clock.Now().UnixNano()
}

// Commit primitives. Every two-sided update of a record and its index entry
// goes through one of these. Callers validate first; the primitives do not
// fail.

// bindFolder stores rec and binds its path when it is not tombstoned.
func (d *Drive) bindFolder(rec *FolderRecord) {
	d.folders[rec.ID] = rec
	if !rec.Deleted {
		d.folderPaths.Force(rec.FullPath, rec.ID)
	}
}

// unbindFolder tombstones rec and releases its path.
func (d *Drive) unbindFolder(rec *FolderRecord) {
	d.folderPaths.RemoveIf(rec.FullPath, rec.ID)
	rec.Deleted = true
	rec.LastModifiedMs = d.nowMs()
}

// moveFolder rewrites the path of rec, keeping the index in step.
func (d *Drive) moveFolder(rec *FolderRecord, newPath string) {
	d.folderPaths.RemoveIf(rec.FullPath, rec.ID)
	rec.FullPath = newPath
	if !rec.Deleted {
		d.folderPaths.Force(newPath, rec.ID)
	}
}

// bindFile stores rec and binds its path.
func (d *Drive) bindFile(rec *FileRecord) {
	d.files[rec.ID] = rec
	d.filePaths.Force(rec.FullPath, rec.ID)
}

// unbindFile purges rec and releases its path if still bound to it.
func (d *Drive) unbindFile(rec *FileRecord) {
	d.filePaths.RemoveIf(rec.FullPath, rec.ID)
	delete(d.files, rec.ID)
}

func (d *Drive) isLiveFolder(rec *FolderRecord) bool {
	if rec.Deleted {
		return false
	}
	id, ok := d.folderPaths.Lookup(rec.FullPath)
	return ok && id == rec.ID
}

func (d *Drive) isLiveFile(rec *FileRecord) bool {
	id, ok := d.filePaths.Lookup(rec.FullPath)
	return ok && id == rec.ID
}
