package daemon

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"drivefs/internal/artifacts"
	"drivefs/internal/storage"
)

var validate = validator.New()

// getConfigDir returns the config directory path.
// Uses DRIVEFS_CONFIG_DIR env var if set, otherwise defaults to ~/.drivefs.
// This is computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv("DRIVEFS_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".drivefs")
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	return getConfigDir()
}

// GlobalSettingsPath returns the settings file path
func GlobalSettingsPath() string {
	return filepath.Join(getConfigDir(), "settings.yaml")
}

// MetaFilePath returns the path of the drive registry
func MetaFilePath() string {
	return filepath.Join(getConfigDir(), "meta.drivefs")
}

// DrivesDir returns the directory holding per-drive data files
func DrivesDir() string {
	return filepath.Join(getConfigDir(), "drives")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// InitConfigDir initializes the config directory with default files
func InitConfigDir() error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	settingsPath := GlobalSettingsPath()
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		if err := os.WriteFile(settingsPath, artifacts.GlobalSettings, 0600); err != nil {
			return fmt.Errorf("failed to create default settings: %w", err)
		}
	}

	if err := os.MkdirAll(DrivesDir(), 0700); err != nil {
		return fmt.Errorf("failed to create drives directory: %w", err)
	}
	return nil
}

// GlobalSettings represents drivefs settings
type GlobalSettings struct {
	LogLevel          string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn off none"` // default: off
	Backend           string `yaml:"backend" validate:"omitempty,oneof=sqlite badger"`                    // default: sqlite
	Identity          string `yaml:"identity"`                                                            // default caller identity
	Username          string `yaml:"username" validate:"omitempty,max=128"`                               // default username for new drives
	Metrics           bool   `yaml:"metrics"`                                                             // record Prometheus metrics
	LockWait          int    `yaml:"lock_wait" validate:"gte=0,lte=3600"`                                 // seconds to wait for a locked drive
	DaemonBusyTimeout int    `yaml:"daemon_busy_timeout" validate:"gte=0"`                                // SQLite busy_timeout for drive instances (ms), 0 = use default
	CLIBusyTimeout    int    `yaml:"cli_busy_timeout" validate:"gte=0"`                                   // SQLite busy_timeout for CLI (ms), 0 = use default
}

// ApplyDefaults fills zero-value fields with their defaults.
func (s *GlobalSettings) ApplyDefaults() {
	s.LogLevel = strings.ToLower(s.LogLevel)
	if s.LogLevel == "" {
		s.LogLevel = "off"
	}
	if s.Backend == "" {
		s.Backend = storage.BackendSQLite
	}
	if s.Identity == "" {
		s.Identity = "anonymous"
	}
}

// Validate checks the settings and returns the first problem found.
func (s *GlobalSettings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

// loadDefaultGlobalSettings parses default settings from embedded artifact.
func loadDefaultGlobalSettings() GlobalSettings {
	var settings GlobalSettings
	if err := yaml.Unmarshal(artifacts.GlobalSettings, &settings); err != nil {
		panic("failed to parse embedded global settings: " + err.Error())
	}
	return settings
}

// LoadGlobalSettings loads the settings from ~/.drivefs/settings.yaml.
// Falls back to embedded defaults if the file doesn't exist.
func LoadGlobalSettings() (*GlobalSettings, error) {
	settings := loadDefaultGlobalSettings()

	data, err := os.ReadFile(GlobalSettingsPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("parse %s: %w", GlobalSettingsPath(), err)
		}
	}

	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	storage.SetConfigBusyTimeouts(settings.DaemonBusyTimeout, settings.CLIBusyTimeout)
	return &settings, nil
}

// SaveGlobalSettings saves the settings to ~/.drivefs/settings.yaml
func SaveGlobalSettings(settings *GlobalSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	header := []byte("# DriveFS settings\n# See: drivefs init --help\n\n")
	return os.WriteFile(GlobalSettingsPath(), append(header, data...), 0600)
}

// ConfigureLogging sets the logrus level and output. Levels "off", "none"
// and "" discard all output.
func ConfigureLogging(level string, out io.Writer) {
	switch strings.ToLower(level) {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	default:
		log.SetOutput(io.Discard)
		return
	}
	log.SetOutput(out)
}
