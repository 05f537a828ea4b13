package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds the user-facing knobs of the updater.
// Zero values mean "use the built-in default".
type Settings struct {
	// UpdateURL overrides the production pack manifest URL.
	UpdateURL string `yaml:"update_url,omitempty"`
	// DevChannel forces the development manifest URL.
	DevChannel bool `yaml:"dev_channel,omitempty"`
	// Skip disables the update run entirely.
	Skip bool `yaml:"skip,omitempty"`
	// JavaBinary is the runtime used to launch the updater artifact.
	JavaBinary string `yaml:"java_binary,omitempty"`
	// LogLevel is the minimum level for log output.
	LogLevel string `yaml:"log_level,omitempty"`
	// LogFile enables a rotated log file in addition to the console.
	LogFile string `yaml:"log_file,omitempty"`
	// Timeout bounds the child process lifetime; zero waits forever.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// LookupFunc reads an environment variable, see os.LookupEnv.
type LookupFunc func(key string) (string, bool)

const (
	// DefaultConfigFilename is the settings file looked up when no path is given.
	DefaultConfigFilename = "brassworks-updater.yaml"

	// DefaultFilePermissions is the permission for settings files.
	DefaultFilePermissions = 0o600

	// EnvSkip disables the update run when true.
	EnvSkip = "BRASSUPDATER_SKIP"
	// EnvDevChannel forces the development manifest when true.
	EnvDevChannel = "BRASSUPDATER_DEV"
	// EnvUpdateURL overrides the production manifest URL.
	EnvUpdateURL = "BRASSUPDATER_URL"
	// EnvJavaHome is consulted when no Java runtime is configured.
	EnvJavaHome = "JAVA_HOME"
)

var (
	// errSettingsNotSet is returned when nil settings are provided.
	errSettingsNotSet = errors.New("settings are not set")
	// errNegativeTimeout is returned for a timeout below zero.
	errNegativeTimeout = errors.New("timeout must not be negative")
)

// Load reads settings from the provided path and validates them.
func Load(path string) (*Settings, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var settings Settings
	if err = yaml.Unmarshal(contents, &settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&settings); err != nil {
		return nil, err
	}

	return &settings, nil
}

// LoadSettings merges the settings file with environment overrides.
// With an empty path the default file is optional; an explicit path must exist.
func LoadSettings(path string, lookup LookupFunc) (*Settings, error) {
	settings := new(Settings)

	loaded, err := Load(path)
	switch {
	case err == nil:
		settings = loaded
	case path == "" && errors.Is(err, os.ErrNotExist):
		// Running without a settings file is the common case.
	default:
		return nil, err
	}

	ApplyEnv(settings, lookup)

	if err = Validate(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes settings to the provided path.
func Save(path string, settings *Settings) error {
	if settings == nil {
		return errSettingsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(settings); err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variables on top of settings.
// Boolean variables follow strconv.ParseBool; anything unparsable reads as false.
func ApplyEnv(settings *Settings, lookup LookupFunc) {
	if settings == nil || lookup == nil {
		return
	}

	if value, ok := lookup(EnvSkip); ok {
		settings.Skip = parseFlag(value)
	}

	if value, ok := lookup(EnvDevChannel); ok {
		settings.DevChannel = parseFlag(value)
	}

	if value, ok := lookup(EnvUpdateURL); ok && strings.TrimSpace(value) != "" {
		settings.UpdateURL = strings.TrimSpace(value)
	}

	if settings.JavaBinary != "" {
		return
	}

	if home, ok := lookup(EnvJavaHome); ok && strings.TrimSpace(home) != "" {
		settings.JavaBinary = filepath.Join(strings.TrimSpace(home), "bin", javaExecutable())
	}
}

// Validate checks the provided settings for formatting problems.
func Validate(settings *Settings) error {
	if settings == nil {
		return errSettingsNotSet
	}

	if settings.Timeout < 0 {
		return errNegativeTimeout
	}

	if settings.UpdateURL == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(settings.UpdateURL); err != nil {
		return fmt.Errorf("invalid update URL: %w", err)
	}

	return nil
}

func parseFlag(value string) bool {
	enabled, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false
	}

	return enabled
}
