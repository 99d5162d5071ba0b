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

package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"drivefs/internal/vfs"
)

// writeFormatted encodes v as json or yaml.
func writeFormatted(out io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (use json or yaml)", format)
	}
}

func formatMs(ms uint64) string {
	return time.UnixMilli(int64(ms)).Format(time.RFC3339)
}

func printFolder(out io.Writer, f *vfs.FolderRecord) {
	fmt.Fprintf(out, "Folder:    %s\n", f.FullPath)
	fmt.Fprintf(out, "  id:        %s\n", f.ID)
	fmt.Fprintf(out, "  name:      %s\n", f.Name)
	if f.ParentID != "" {
		fmt.Fprintf(out, "  parent:    %s\n", f.ParentID)
	}
	fmt.Fprintf(out, "  namespace: %s\n", f.Namespace)
	fmt.Fprintf(out, "  children:  %d folders, %d files\n", len(f.SubfolderIDs), len(f.FileIDs))
	fmt.Fprintf(out, "  modified:  %s\n", formatMs(f.LastModifiedMs))
	if f.Deleted {
		fmt.Fprintln(out, "  deleted:   yes")
	}
}

func printFile(out io.Writer, f *vfs.FileRecord) {
	fmt.Fprintf(out, "File:      %s\n", f.FullPath)
	fmt.Fprintf(out, "  id:        %s\n", f.ID)
	fmt.Fprintf(out, "  version:   %d\n", f.Version)
	if f.PriorVersion != "" {
		fmt.Fprintf(out, "  prior:     %s\n", f.PriorVersion)
	}
	if f.NextVersion != "" {
		fmt.Fprintf(out, "  next:      %s\n", f.NextVersion)
	}
	fmt.Fprintf(out, "  folder:    %s\n", f.FolderID)
	fmt.Fprintf(out, "  size:      %d\n", f.Size)
	if f.ContentURL != "" {
		fmt.Fprintf(out, "  content:   %s\n", f.ContentURL)
	}
	fmt.Fprintf(out, "  modified:  %s\n", formatMs(f.LastModifiedMs))
	if f.Deleted {
		fmt.Fprintln(out, "  deleted:   yes")
	}
}
