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
	"fmt"

	"github.com/spf13/cobra"

	"drivefs/internal/daemon"
)

var (
	initBackend  string
	initIdentity string
	initUsername string
	initMetrics  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the drivefs configuration",
	Long: `Initialize the drivefs configuration directory (~/.drivefs, or
$DRIVEFS_CONFIG_DIR when set).

Creates settings.yaml with defaults and the drives/ directory. Flags update
the stored settings; existing values are kept otherwise.

Examples:
  drivefs init
  drivefs init --backend badger
  drivefs init --identity owner-1 --username alice`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initBackend, "backend", "", "Storage backend for new drives: sqlite, badger")
	initCmd.Flags().StringVar(&initIdentity, "identity", "", "Default caller identity")
	initCmd.Flags().StringVar(&initUsername, "username", "", "Default username for new drives")
	initCmd.Flags().BoolVar(&initMetrics, "metrics", false, "Record operation metrics")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	changed := false
	if initBackend != "" {
		settings.Backend = initBackend
		changed = true
	}
	if initIdentity != "" {
		settings.Identity = initIdentity
		changed = true
	}
	if initUsername != "" {
		settings.Username = initUsername
		changed = true
	}
	if cmd.Flags().Changed("metrics") {
		settings.Metrics = initMetrics
		changed = true
	}
	if changed {
		if err := daemon.SaveGlobalSettings(settings); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized drivefs in %s\n", daemon.ConfigDir())
	fmt.Fprintf(out, "  settings: %s\n", daemon.GlobalSettingsPath())
	fmt.Fprintf(out, "  drives:   %s\n", daemon.DrivesDir())
	fmt.Fprintf(out, "  backend:  %s\n", settings.Backend)
	fmt.Fprintf(out, "  identity: %s\n", settings.Identity)
	return nil
}
