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

var usernameCmd = &cobra.Command{
	Use:   "username [new-name]",
	Short: "Show or change the drive's display name",
	Long: `Show the drive's display name, or change it when new-name is given.
Names are stored as "<name>@<owner>".

Examples:
  drivefs username
  drivefs username carol`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUsername,
}

func init() {
	rootCmd.AddCommand(usernameCmd)
}

func runUsername(cmd *cobra.Command, args []string) error {
	return withDrive(cmd, func(ctx context.Context, inst *daemon.Instance) error {
		if len(args) > 0 {
			if err := inst.UpdateUsername(ctx, args[0]); err != nil {
				return err
			}
		}
		name, err := inst.Username(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	})
}
