package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func lookupFrom(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

// TestValidate checks format validations for Settings.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))
	require.NoError(t, Validate(new(Settings)))
	require.Error(t, Validate(&Settings{UpdateURL: "not a url"}))
	require.Error(t, Validate(&Settings{Timeout: -time.Second}))
	require.NoError(t, Validate(&Settings{UpdateURL: "https://example.com/pack.toml"}))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	settings := &Settings{
		UpdateURL:  "https://updates.local/pack.toml",
		DevChannel: true,
		JavaBinary: "/opt/jdk/bin/java",
		LogLevel:   "debug",
		Timeout:    90 * time.Second,
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.False(t, info.IsDir())
}

// TestLoadSettings_MissingFile covers the optional default file and the mandatory explicit one.
func TestLoadSettings_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestLoadSettings_EnvOverridesFile verifies environment variables win over the file.
func TestLoadSettings_EnvOverridesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, Save(path, &Settings{UpdateURL: "https://file.example/pack.toml"}))

	settings, err := LoadSettings(path, lookupFrom(map[string]string{
		EnvUpdateURL:  " https://env.example/pack.toml ",
		EnvSkip:       "TRUE",
		EnvDevChannel: "nope",
		EnvJavaHome:   "/opt/jdk",
	}))
	require.NoError(t, err)
	require.Equal(t, "https://env.example/pack.toml", settings.UpdateURL)
	require.True(t, settings.Skip)
	require.False(t, settings.DevChannel)
	require.Equal(t, filepath.Join("/opt/jdk", "bin", javaExecutable()), settings.JavaBinary)
}

// TestApplyEnv_KeepsExplicitJava ensures JAVA_HOME does not replace a configured runtime.
func TestApplyEnv_KeepsExplicitJava(t *testing.T) {
	t.Parallel()

	settings := &Settings{JavaBinary: "/usr/lib/jvm/21/bin/java"}
	ApplyEnv(settings, lookupFrom(map[string]string{EnvJavaHome: "/opt/jdk"}))
	require.Equal(t, "/usr/lib/jvm/21/bin/java", settings.JavaBinary)
}
