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

import "fmt"

// OpError records a failed drive operation together with the id or path it
// targeted. Err is one of the sentinels in internal/common.
type OpError struct {
	Op     string // operation that failed, e.g. "rename_folder"
	Target string // id or path
	Err    error
}

func (e *OpError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

// Unwrap supports errors.Is / errors.As.
func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op, target string, err error) error {
	return &OpError{Op: op, Target: target, Err: err}
}
