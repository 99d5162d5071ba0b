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
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"drivefs/internal/daemon"
	"drivefs/internal/vfs"
)

var syncFileCmd = &cobra.Command{
	Use:   "sync-file <file-id> <metadata.yaml>",
	Short: "Merge offline file metadata as a new version",
	Long: `Merge file metadata authored by an offline client. The record in the
metadata file becomes the next version of <file-id>, which must be the
newest version of its file.

The metadata file holds a file record in yaml (or json), e.g.:

  full_path: BrowserCache::docs/report.pdf
  namespace: BrowserCache
  size: 2048
  content_url: https://example.invalid/blob/1
  last_modified_ms: 1700000000000`,
	Args: cobra.ExactArgs(2),
	RunE: runSyncFile,
}

var syncFolderCmd = &cobra.Command{
	Use:   "sync-folder <folder-id> <metadata.yaml>",
	Short: "Overwrite folder metadata from an offline client",
	Long: `Overwrite the client editable fields of a folder (name, tags, path,
parent, namespace and deleted flag) from a folder record in yaml (or json).`,
	Args: cobra.ExactArgs(2),
	RunE: runSyncFolder,
}

func init() {
	rootCmd.AddCommand(syncFileCmd)
	rootCmd.AddCommand(syncFolderCmd)
}

// readRecord decodes a record from a yaml or json file. yaml is a superset
// of json, so one decoder handles both.
func readRecord(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func runSyncFile(cmd *cobra.Command, args []string) error {
	var incoming vfs.FileRecord
	if err := readRecord(args[1], &incoming); err != nil {
		return err
	}
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		id, err := inst.UpsertCloudFileWithLocalSync(ctx, args[0], &incoming)
		if err != nil {
			return err
		}
		rec, err := inst.GetFileByID(ctx, id)
		if err != nil {
			return err
		}
		printFile(cmd.OutOrStdout(), rec)
		return nil
	})
}

func runSyncFolder(cmd *cobra.Command, args []string) error {
	var incoming vfs.FolderRecord
	if err := readRecord(args[1], &incoming); err != nil {
		return err
	}
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		id, err := inst.UpsertCloudFolderWithLocalSync(ctx, args[0], &incoming)
		if err != nil {
			return err
		}
		rec, err := inst.GetFolderByID(ctx, id)
		if err != nil {
			return err
		}
		printFolder(cmd.OutOrStdout(), rec)
		return nil
	})
}
