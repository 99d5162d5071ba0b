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

package common

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidPath     = errors.New("invalid path")
	ErrPathCollision   = errors.New("path already bound to another id")
	ErrFolderExists    = errors.New("folder already exists")
	ErrUnauthorized    = errors.New("caller is not the drive owner")
	ErrStructure       = errors.New("path cannot be decomposed into namespace and segments")
	ErrInvalidUsername = errors.New("invalid username format")
	ErrDriveExists     = errors.New("owner already has a drive")
	ErrStaleVersion    = errors.New("file version has been superseded")
	ErrDriveLocked     = errors.New("drive is open in another process")
	ErrInstanceClosed  = errors.New("drive instance is closed")
)
