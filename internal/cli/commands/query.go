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
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"drivefs/internal/common"
	"drivefs/internal/daemon"
	"drivefs/internal/vfs"
)

var (
	lsLimit     uint32
	lsAfter     uint32
	statByID    bool
	exportFmt   string
	statsFormat string
)

var lsCmd = &cobra.Command{
	Use:   "ls <folder-path>",
	Short: "List the children of a folder",
	Long: `List the children of a folder: subfolders first, then files.

Examples:
  drivefs ls BrowserCache::
  drivefs ls BrowserCache::docs/ --limit 20 --after 40`,
	Args: cobra.ExactArgs(1),
	RunE: runLs,
}

var statCmd = &cobra.Command{
	Use:   "stat <path-or-id>",
	Short: "Show a folder or file record",
	Long: `Show a folder or file record by path, or by id with --id.

Examples:
  drivefs stat BrowserCache::docs
  drivefs stat BrowserCache::docs/report.pdf
  drivefs stat --id 3f2a...`,
	Args: cobra.ExactArgs(1),
	RunE: runStat,
}

var historyCmd = &cobra.Command{
	Use:   "history <file-id>",
	Short: "Show a file's version history, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print a full snapshot of the drive",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print record counts of the drive",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	lsCmd.Flags().Uint32Var(&lsLimit, "limit", 50, "Maximum entries to list")
	lsCmd.Flags().Uint32Var(&lsAfter, "after", 0, "Skip this many entries")
	statCmd.Flags().BoolVar(&statByID, "id", false, "Treat the argument as a record id")
	exportCmd.Flags().StringVarP(&exportFmt, "format", "f", "yaml", "Output format: json, yaml")
	statsCmd.Flags().StringVarP(&statsFormat, "format", "f", "yaml", "Output format: json, yaml")

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	path := args[0]
	if canonical, err := vfs.CanonicalFolderPath(path); err == nil {
		path = canonical
	}
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		res, err := inst.FetchChildren(ctx, path, lsLimit, lsAfter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tNAME\tVERSION\tID")
		for _, f := range res.Folders {
			name := f.Name + "/"
			if f.Deleted {
				name += " (deleted)"
			}
			fmt.Fprintf(w, "dir\t%s\t-\t%s\n", name, f.ID)
		}
		for _, f := range res.Files {
			fmt.Fprintf(w, "file\t%s\tv%d\t%s\n", f.Name, f.Version, f.ID)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if res.HasMore {
			fmt.Fprintf(cmd.OutOrStdout(), "(more entries; use --after %d)\n", lsAfter+res.Total)
		}
		return nil
	})
}

func runStat(cmd *cobra.Command, args []string) error {
	arg := args[0]
	out := cmd.OutOrStdout()
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		if statByID {
			folder, err := inst.GetFolderByID(ctx, arg)
			if err != nil {
				return err
			}
			if folder != nil {
				printFolder(out, folder)
				return nil
			}
			f, err := inst.GetFileByID(ctx, arg)
			if err != nil {
				return err
			}
			if f == nil {
				return &vfs.OpError{Op: "stat", Target: arg, Err: common.ErrNotFound}
			}
			printFile(out, f)
			return nil
		}

		if !strings.HasSuffix(arg, "/") {
			file, err := inst.GetFileByPath(ctx, arg)
			if err != nil {
				return err
			}
			if file != nil {
				printFile(out, file)
				return nil
			}
		}
		path := arg
		if canonical, err := vfs.CanonicalFolderPath(arg); err == nil {
			path = canonical
		}
		folder, err := inst.GetFolderByPath(ctx, path)
		if err != nil {
			return err
		}
		if folder == nil {
			return &vfs.OpError{Op: "stat", Target: arg, Err: common.ErrNotFound}
		}
		printFolder(out, folder)
		return nil
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		versions, err := inst.History(ctx, args[0])
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			return &vfs.OpError{Op: "history", Target: args[0], Err: common.ErrNotFound}
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tPATH\tMODIFIED\tID")
		for _, v := range versions {
			fmt.Fprintf(w, "v%d\t%s\t%s\t%s\n", v.Version, v.FullPath, formatMs(v.LastModifiedMs), v.ID)
		}
		return w.Flush()
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		snap, err := inst.ExportSnapshot(ctx)
		if err != nil {
			return err
		}
		return writeFormatted(cmd.OutOrStdout(), exportFmt, snap)
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		stats, err := inst.Stats(ctx)
		if err != nil {
			return err
		}
		return writeFormatted(cmd.OutOrStdout(), statsFormat, stats)
	})
}
