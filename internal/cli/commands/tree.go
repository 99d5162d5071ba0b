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

	"github.com/spf13/cobra"

	"drivefs/internal/daemon"
)

// Tree mutation commands. All of them require the caller to own the drive.

var treeNamespace string

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a folder and any missing parents",
	Long: `Create a folder and any missing parents.

Examples:
  drivefs mkdir BrowserCache::docs/reports
  drivefs mkdir HardDrive::`,
	Args: cobra.ExactArgs(1),
	RunE: runMkdir,
}

var putCmd = &cobra.Command{
	Use:   "put <path>",
	Short: "Record a file, creating a new version if the path is taken",
	Long: `Record a file at path. Missing folders are created. When a file
already lives at path the new record becomes its next version.

Examples:
  drivefs put BrowserCache::docs/report.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runPut,
}

var mvFolderCmd = &cobra.Command{
	Use:   "mv-folder <folder-id> <new-name>",
	Short: "Rename a folder and move its subtree",
	Args:  cobra.ExactArgs(2),
	RunE:  runMvFolder,
}

var mvFileCmd = &cobra.Command{
	Use:   "mv-file <file-id> <new-name>",
	Short: "Rename a file within its folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runMvFile,
}

var rmFolderCmd = &cobra.Command{
	Use:   "rm-folder <folder-id>",
	Short: "Delete a folder and everything below it",
	Long: `Delete a folder and everything below it. Subfolders are kept as
tombstones; files are removed with their version history.`,
	Args: cobra.ExactArgs(1),
	RunE: runRmFolder,
}

var rmFileCmd = &cobra.Command{
	Use:   "rm-file <file-id>",
	Short: "Delete one file version",
	Args:  cobra.ExactArgs(1),
	RunE:  runRmFile,
}

func init() {
	mkdirCmd.Flags().StringVar(&treeNamespace, "ns", "", "Namespace (default: taken from the path prefix)")
	putCmd.Flags().StringVar(&treeNamespace, "ns", "", "Namespace (default: taken from the path prefix)")

	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(mvFolderCmd)
	rootCmd.AddCommand(mvFileCmd)
	rootCmd.AddCommand(rmFolderCmd)
	rootCmd.AddCommand(rmFileCmd)
}

func runMkdir(cmd *cobra.Command, args []string) error {
	ns, err := namespaceFor(treeNamespace, args[0])
	if err != nil {
		return err
	}
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		rec, err := inst.CreateFolder(ctx, args[0], ns)
		if err != nil {
			return err
		}
		printFolder(cmd.OutOrStdout(), rec)
		return nil
	})
}

func runPut(cmd *cobra.Command, args []string) error {
	ns, err := namespaceFor(treeNamespace, args[0])
	if err != nil {
		return err
	}
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		id, err := inst.UpsertFile(ctx, args[0], ns)
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

func runMvFolder(cmd *cobra.Command, args []string) error {
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		if err := inst.RenameFolder(ctx, args[0], args[1]); err != nil {
			return err
		}
		rec, err := inst.GetFolderByID(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed folder %s -> %s\n", args[0], rec.FullPath)
		return nil
	})
}

func runMvFile(cmd *cobra.Command, args []string) error {
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		if err := inst.RenameFile(ctx, args[0], args[1]); err != nil {
			return err
		}
		rec, err := inst.GetFileByID(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed file %s -> %s\n", args[0], rec.FullPath)
		return nil
	})
}

func runRmFolder(cmd *cobra.Command, args []string) error {
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		if err := inst.DeleteFolder(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted folder %s\n", args[0])
		return nil
	})
}

func runRmFile(cmd *cobra.Command, args []string) error {
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		if err := inst.DeleteFile(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted file %s\n", args[0])
		return nil
	})
}
