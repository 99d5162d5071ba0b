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
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"drivefs/internal/daemon"
	"drivefs/internal/storage"
)

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Create and inspect drives",
	Long: `Create and inspect drives.

Subcommands:
  create    Create a drive for the caller
  info      Show a drive's registration and size
  list      List all registered drives

Examples:
  drivefs --as owner-1 drive create alice
  drivefs --as owner-1 drive info
  drivefs drive list`,
}

var driveCreateCmd = &cobra.Command{
	Use:   "create [username]",
	Short: "Create a drive for the caller",
	Long: `Create a drive owned by the caller identity (--as).

The username defaults to the one in settings. It is sanitized and must
consist of letters and digits. Each owner can have one drive; anonymous
callers cannot create drives.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDriveCreate,
}

var driveInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show a drive's registration and size",
	Args:  cobra.NoArgs,
	RunE:  runDriveInfo,
}

var driveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered drives",
	Args:  cobra.NoArgs,
	RunE:  runDriveList,
}

func init() {
	rootCmd.AddCommand(driveCmd)
	driveCmd.AddCommand(driveCreateCmd)
	driveCmd.AddCommand(driveInfoCmd)
	driveCmd.AddCommand(driveListCmd)
}

func runDriveCreate(cmd *cobra.Command, args []string) error {
	username := settings.Username
	if len(args) > 0 {
		username = args[0]
	}
	if username == "" {
		return fmt.Errorf("username required (pass one or set it with: drivefs init --username <name>)")
	}

	p, err := openProvisioner()
	if err != nil {
		return err
	}
	defer p.Close()

	entry, err := p.CreateDrive(cmd.Context(), callerIdentity(), username)
	if err != nil {
		return describe(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created drive %d for %s\n", entry.Index, entry.Owner)
	printEntry(out, entry)
	return nil
}

func runDriveInfo(cmd *cobra.Command, args []string) error {
	p, err := openProvisioner()
	if err != nil {
		return err
	}
	entry, err := p.GetUserDrive(cmd.Context(), targetOwner())
	p.Close()
	if err != nil {
		return describe(err)
	}

	out := cmd.OutOrStdout()
	printEntry(out, entry)
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		name, err := inst.Username(ctx)
		if err != nil {
			return err
		}
		stats, err := inst.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Display name: %s\n", name)
		fmt.Fprintf(out, "Folders:      %d (%d bound paths)\n", stats.Folders, stats.FolderPaths)
		fmt.Fprintf(out, "Files:        %d (%d bound paths)\n", stats.Files, stats.FilePaths)
		fmt.Fprintf(out, "IDs issued:   %d\n", stats.IDsGenerated)
		return printMetrics(out)
	})
}

func runDriveList(cmd *cobra.Command, args []string) error {
	p, err := openProvisioner()
	if err != nil {
		return err
	}
	defer p.Close()

	drives, err := p.ListDrives(cmd.Context())
	if err != nil {
		return err
	}
	if len(drives) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No drives")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tOWNER\tUSERNAME\tBACKEND\tCREATED")
	for _, d := range drives {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", d.Index, d.Owner, d.Username, d.Backend, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func printEntry(out io.Writer, entry *storage.DriveEntry) {
	fmt.Fprintf(out, "Index:        %d\n", entry.Index)
	fmt.Fprintf(out, "Owner:        %s\n", entry.Owner)
	fmt.Fprintf(out, "Username:     %s\n", entry.Username)
	fmt.Fprintf(out, "Backend:      %s\n", entry.Backend)
	fmt.Fprintf(out, "Data file:    %s\n", entry.DataFile)
	fmt.Fprintf(out, "Instance:     %s\n", entry.InstanceID)
}

// printMetrics writes the counters recorded during this command when
// metrics are enabled.
func printMetrics(out io.Writer) error {
	if registry == nil {
		return nil
	}
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Metrics:")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(out, "  %s%s %g\n", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				fmt.Fprintf(out, "  %s%s %g\n", mf.GetName(), labels, m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				fmt.Fprintf(out, "  %s%s count=%d\n", mf.GetName(), labels, m.GetHistogram().GetSampleCount())
			}
		}
	}
	return nil
}
