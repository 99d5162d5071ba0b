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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"drivefs/internal/common"
	"drivefs/internal/daemon"
	"drivefs/internal/metrics"
	"drivefs/internal/vfs"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		return fmt.Sprintf("%s (%s, epoch: %s, commit: %s)", version, buildDate, date, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

// Global flags
var (
	asIdentity string
	driveOwner string
	logLevel   string
)

// Loaded by PersistentPreRunE.
var (
	settings *daemon.GlobalSettings
	registry *prometheus.Registry
	recorder *metrics.Recorder
)

var rootCmd = &cobra.Command{
	Use:   "drivefs",
	Short: "Virtual drive metadata engine",
	Long: `Virtual drive metadata engine.

Each owner has one drive: a tree of folders and versioned files across the
BrowserCache, HardDrive and Web3Storj namespaces. Paths look like
"<namespace>::<segment>/<segment>/<file>". Only the owner can change a
drive; anyone can read it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		if err := daemon.InitConfigDir(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		s, err := daemon.LoadGlobalSettings()
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		settings = s

		level := settings.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		daemon.ConfigureLogging(level, cmd.ErrOrStderr())

		registry, recorder = nil, nil
		if settings.Metrics {
			registry = prometheus.NewRegistry()
			recorder = metrics.New(registry)
		}
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("drivefs version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&asIdentity, "as", "", "Caller identity (default: identity from settings)")
	rootCmd.PersistentFlags().StringVar(&driveOwner, "drive", "", "Owner of the drive to operate on (default: the caller)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "logging", "", "Log level: trace, debug, info, warn, off")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// callerIdentity returns the identity commands act as.
func callerIdentity() vfs.Identity {
	if asIdentity != "" {
		return vfs.Identity(asIdentity)
	}
	return vfs.Identity(settings.Identity)
}

// targetOwner returns the owner whose drive commands operate on.
func targetOwner() vfs.Identity {
	if driveOwner != "" {
		return vfs.Identity(driveOwner)
	}
	return callerIdentity()
}

func openProvisioner() (*daemon.Provisioner, error) {
	cfg := daemon.DefaultProvisionerConfig(settings)
	cfg.Metrics = recorder
	return daemon.NewProvisioner(cfg)
}

// withDrive opens the target drive, runs fn as the caller and closes the
// drive again.
func withDrive(cmd *cobra.Command, fn func(ctx context.Context, inst *daemon.Instance) error) error {
	p, err := openProvisioner()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := daemon.WithIdentity(cmd.Context(), callerIdentity())
	inst, err := p.Open(ctx, targetOwner())
	if err != nil {
		return describe(err)
	}

	runErr := fn(ctx, inst)
	if err := inst.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return describe(runErr)
}

// describe adds a hint for errors users commonly hit.
func describe(err error) error {
	var opErr *vfs.OpError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &opErr) && opErr.Op == "get_user_drive":
		return fmt.Errorf("%w (create one with: drivefs drive create <username>)", err)
	case errors.Is(err, common.ErrDriveLocked):
		return fmt.Errorf("%w (another drivefs command is using this drive)", err)
	case errors.Is(err, common.ErrUnauthorized):
		return fmt.Errorf("%w (acting as %q; use --as to choose an identity)", err, callerIdentity())
	}
	return err
}

// namespaceFor returns the namespace named by flag, or the one in path's
// prefix when flag is empty.
func namespaceFor(flag, path string) (vfs.Namespace, error) {
	if flag != "" {
		return vfs.ParseNamespace(flag)
	}
	if ns := common.NamespaceOf(path); ns != "" {
		return vfs.ParseNamespace(ns)
	}
	return vfs.NamespaceBrowserCache, nil
}
