package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"

	"github.com/swzo/brassworks-updater/internal/config"
	"github.com/swzo/brassworks-updater/internal/domain/progress"
	"github.com/swzo/brassworks-updater/internal/logger"
	"github.com/swzo/brassworks-updater/internal/repository/artifact"
	"github.com/swzo/brassworks-updater/internal/service/reporter"
	"github.com/swzo/brassworks-updater/internal/service/supervisor"
)

const (
	// LinePrefix tags every echoed line of the child's output.
	LinePrefix = "[BrassworksUpdater]"

	// headlessFlag starts the updater without its own window.
	headlessFlag = "-g"
)

// ErrBootstrap wraps every fatal failure of a run.
var ErrBootstrap = errors.New("failed to run BrassUpdater")

// Options are inputs accepted by the bootstrap entry point.
type Options struct {
	// Settings are used as-is when set; otherwise they are loaded from
	// ConfigPath and the environment.
	Settings *config.Settings
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// TempRoot is where the staging directory is created; empty means os.TempDir().
	TempRoot string
	// MarkerPath records the running child's pid; empty means the shared default.
	MarkerPath string
	// Payload replaces the embedded updater artifact.
	Payload fs.FS
	// Display receives status messages.
	Display reporter.Display
	// Sink receives step counts.
	Sink reporter.ProgressSink
}

// runner holds the state of a single bootstrap run.
type runner struct {
	opts     *Options
	settings *config.Settings
	cfg      *config.Config
	bridge   *reporter.Bridge
	stage    Stage
}

// Run executes one update and is the public entry point for the CLI.
// It returns nil when the child ran to completion, whatever its exit code.
func Run(ctx context.Context, opts *Options) (err error) {
	if opts == nil {
		opts = new(Options)
	}

	ctx = logger.WithName(ctx, "brass-updater")
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	r := &runner{
		opts:   opts,
		bridge: reporter.New(opts.Display, opts.Sink),
		stage:  StageStart,
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err = r.fail(ctx, fmt.Errorf("panic: %v", recovered))
		}
	}()

	r.settings, err = loadSettings(opts)
	if err != nil {
		return r.fail(ctx, err)
	}

	if r.settings.Skip {
		logger.Info(ctx, "Skipping update check because skip is set")
		return nil
	}

	logger.Info(ctx, "Running Brassworks updater")

	if err = r.run(ctx); err != nil {
		return r.fail(ctx, err)
	}

	return nil
}

func loadSettings(opts *Options) (*config.Settings, error) {
	if opts.Settings != nil {
		if err := config.Validate(opts.Settings); err != nil {
			return nil, err
		}

		return opts.Settings, nil
	}

	return config.LoadSettings(opts.ConfigPath, os.LookupEnv)
}

// run walks the stages in order; any error stops it where it happened.
func (r *runner) run(ctx context.Context) error {
	cfg, err := config.Resolve(r.settings, config.WithTempRoot(r.opts.TempRoot))
	if err != nil {
		return err
	}

	r.cfg = cfg
	r.advance(ctx, StageConfigured)

	logger.InfoKV(ctx, "Using update source", "url", cfg.UpdateURL, "dev_channel", cfg.UseDevChannel)

	executablePath, err := artifact.NewExtractor(r.opts.Payload).Extract(ctx, cfg.StagingDir)
	if err != nil {
		return err
	}

	r.advance(ctx, StageExtracted)
	logger.Infof(ctx, "Brassworks bootstrapper extracted to %s", executablePath)

	run, err := supervisor.Start(
		ctx,
		launchCommand(cfg, executablePath),
		supervisor.WithTimeout(cfg.Timeout),
		supervisor.WithMarkerPath(r.markerPath()),
	)
	if err != nil {
		return err
	}

	r.advance(ctx, StageRunning)
	r.stream(ctx, run)

	exitCode, err := run.Wait()
	if err != nil {
		return err
	}

	r.advance(ctx, StageExited)

	if exitCode != 0 {
		logger.Errorf(ctx, "BrassworksUpdater exited with code %d", exitCode)
	} else {
		logger.Info(ctx, "Update complete.")
	}

	r.advance(ctx, StageDone)

	return nil
}

// stream echoes, classifies and reports every line until the child closes its output.
func (r *runner) stream(ctx context.Context, run *supervisor.Run) {
	r.advance(ctx, StageStreaming)

	var state progress.State

	for line := range run.Lines() {
		logger.Infof(ctx, "%s %s", LinePrefix, line)

		next, ok := progress.Classify(line, state)
		if !ok {
			continue
		}

		state = next
		r.bridge.Report(ctx, state)
	}
}

func (r *runner) advance(ctx context.Context, next Stage) {
	logger.DebugKV(ctx, "Bootstrap stage", "from", r.stage.String(), "to", next.String())
	r.stage = next
}

// fail records the fatal error once and wraps it for the caller.
func (r *runner) fail(ctx context.Context, err error) error {
	failedAt := r.stage
	r.stage = StageFailed

	logger.ErrorKV(ctx, "Update failed", "stage", failedAt.String(), "error", err)

	return fmt.Errorf("%w: %w", ErrBootstrap, err)
}

func (r *runner) markerPath() string {
	if r.opts.MarkerPath != "" {
		return r.opts.MarkerPath
	}

	return supervisor.DefaultMarkerPath()
}

// launchCommand builds "<java> -jar <artifact> <manifest url> -g".
func launchCommand(cfg *config.Config, executablePath string) []string {
	return []string{cfg.JavaBinary, "-jar", executablePath, cfg.UpdateURL, headlessFlag}
}
