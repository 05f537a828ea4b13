package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	// ProductionURL is the pack manifest served to players.
	ProductionURL = "https://raw.githubusercontent.com/serverside-swzo/Brassworks-SMP-Season-2/master/pack.toml"
	// DevelopmentURL is the pack manifest of the development branch.
	DevelopmentURL = "https://raw.githubusercontent.com/serverside-swzo/Brassworks-SMP-Season-2/dev/pack.toml"

	// ExecutableName is the file name of the staged updater artifact.
	ExecutableName = "brassworks-updater-bootstrap.jar"

	// stagingPattern prefixes every staging directory.
	stagingPattern = "bw-updater"

	defaultJavaBinary = "java"
)

// ErrResource is returned when the staging directory cannot be allocated.
var ErrResource = errors.New("allocate staging directory")

// Config is the resolved, immutable input of a single bootstrap run.
type Config struct {
	// UpdateURL is the pack manifest passed to the updater.
	UpdateURL string
	// UseDevChannel reports whether the development manifest was forced.
	UseDevChannel bool
	// StagingDir is the fresh directory holding the extracted artifact.
	StagingDir string
	// ExecutablePath is where the artifact is staged inside StagingDir.
	ExecutablePath string
	// JavaBinary launches the artifact.
	JavaBinary string
	// Timeout bounds the child process; zero means no bound.
	Timeout time.Duration
}

// ResolveOption tweaks how Resolve allocates resources.
type ResolveOption func(*resolver)

type resolver struct {
	tempRoot string
}

// WithTempRoot creates the staging directory under root instead of os.TempDir().
func WithTempRoot(root string) ResolveOption {
	return func(r *resolver) {
		r.tempRoot = root
	}
}

// Resolve turns settings into a run Config and creates its staging directory.
// It has no other side effects.
func Resolve(settings *Settings, opts ...ResolveOption) (*Config, error) {
	if settings == nil {
		settings = new(Settings)
	}

	r := new(resolver)
	for _, opt := range opts {
		opt(r)
	}

	stagingDir, err := os.MkdirTemp(r.tempRoot, stagingPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResource, err)
	}

	javaBinary := settings.JavaBinary
	if javaBinary == "" {
		javaBinary = defaultJavaBinary
	}

	return &Config{
		UpdateURL:      SelectUpdateURL(settings),
		UseDevChannel:  settings.DevChannel,
		StagingDir:     stagingDir,
		ExecutablePath: filepath.Join(stagingDir, ExecutableName),
		JavaBinary:     javaBinary,
		Timeout:        settings.Timeout,
	}, nil
}

// SelectUpdateURL picks the manifest URL: the development channel wins,
// then an override that differs from the production URL, then production.
func SelectUpdateURL(settings *Settings) string {
	if settings.DevChannel {
		return DevelopmentURL
	}

	override := strings.TrimSpace(settings.UpdateURL)
	if override != "" && override != ProductionURL {
		return override
	}

	return ProductionURL
}

func javaExecutable() string {
	if runtime.GOOS == "windows" {
		return defaultJavaBinary + ".exe"
	}

	return defaultJavaBinary
}
