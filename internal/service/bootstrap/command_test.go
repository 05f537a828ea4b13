package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/swzo/brassworks-updater/internal/config"
	"github.com/swzo/brassworks-updater/internal/host/loading"
	"github.com/swzo/brassworks-updater/internal/logger"
	"github.com/swzo/brassworks-updater/internal/repository/artifact"
	"github.com/swzo/brassworks-updater/internal/service/reporter"
	"github.com/swzo/brassworks-updater/internal/service/supervisor"
)

const updaterOutput = `echo "Current version: 1.0.0"
echo "Loading manifest..."
echo "(1/2) Downloaded sodium.jar"
echo "Validating files" >&2
echo "garbage not matching anything"
echo "(2/2) Downloaded iris.jar"
echo "Finished successfully"
`

type recordingDisplay struct {
	messages []string
}

func (d *recordingDisplay) UpdateProgress(message string) {
	d.messages = append(d.messages, message)
}

// fixture is a throwaway environment with a fake Java runtime.
type fixture struct {
	dir      string
	java     string
	argsFile string
	logs     *observer.ObservedLogs
	ctx      context.Context //nolint:containedctx // Test fixture.
}

func newFixture(t *testing.T, body string) *fixture {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	dir := t.TempDir()
	f := &fixture{
		dir:      dir,
		java:     filepath.Join(dir, "java"),
		argsFile: filepath.Join(dir, "args.txt"),
	}

	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > '" + f.argsFile + "'\n" + body
	require.NoError(t, os.WriteFile(f.java, []byte(script), 0o755))

	core, logs := observer.New(zapcore.DebugLevel)
	f.logs = logs
	f.ctx = logger.ToContext(context.Background(), zap.New(core).Sugar())

	return f
}

func (f *fixture) options(settings *config.Settings, display reporter.Display, sink reporter.ProgressSink) *Options {
	if settings.JavaBinary == "" {
		settings.JavaBinary = f.java
	}

	return &Options{
		Settings:   settings,
		TempRoot:   f.dir,
		MarkerPath: filepath.Join(f.dir, "updater.pid"),
		Payload:    fstest.MapFS{artifact.PayloadPath: {Data: []byte("PK fake jar")}},
		Display:    display,
		Sink:       sink,
	}
}

func (f *fixture) launched(t *testing.T) []string {
	t.Helper()

	contents, err := os.ReadFile(f.argsFile)
	if os.IsNotExist(err) {
		return nil
	}

	require.NoError(t, err)

	return strings.Split(strings.TrimSpace(string(contents)), "\n")
}

// TestRun_ChildFailureIsNotEscalated logs a non-zero exit but completes the run.
func TestRun_ChildFailureIsNotEscalated(t *testing.T) {
	f := newFixture(t, updaterOutput+"exit 2\n")

	display := new(recordingDisplay)
	meter := loading.NewMeter("Pack update", 1)

	err := Run(f.ctx, f.options(&config.Settings{}, display, reporter.ForMeter(meter)))
	require.NoError(t, err)

	require.Equal(t, []string{
		"Checking for updates...",
		"Loading configuration...",
		"Downloading: sodium.jar (1/2)",
		"Scanning local files...",
		"Downloading: iris.jar (2/2)",
		"Update Complete!",
	}, display.messages)

	current, total := meter.Steps()
	require.Equal(t, 1, current)
	require.Equal(t, 1, total)

	errorsLogged := f.logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errorsLogged, 1)
	require.Contains(t, errorsLogged[0].Message, "2")
	require.Equal(t, "BrassworksUpdater exited with code 2", errorsLogged[0].Message)

	require.Equal(t, 1, f.logs.FilterMessage(LinePrefix+" garbage not matching anything").Len())
	require.Equal(t, 1, f.logs.FilterMessage(LinePrefix+" Validating files").Len())

	args := f.launched(t)
	require.Len(t, args, 4)
	require.Equal(t, "-jar", args[0])
	require.Equal(t, config.ExecutableName, filepath.Base(args[1]))
	require.Equal(t, config.ProductionURL, args[2])
	require.Equal(t, "-g", args[3])
}

// TestRun_Success logs completion for a zero exit code.
func TestRun_Success(t *testing.T) {
	f := newFixture(t, "echo 'Already up to date!'\n")

	display := new(recordingDisplay)

	err := Run(f.ctx, f.options(&config.Settings{DevChannel: true, UpdateURL: "https://ignored.example/pack.toml"}, display, nil))
	require.NoError(t, err)

	require.Equal(t, []string{"Pack is up to date!"}, display.messages)
	require.Equal(t, 1, f.logs.FilterMessage("Update complete.").Len())
	require.Zero(t, f.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	require.Equal(t, config.DevelopmentURL, f.launched(t)[2])
}

// TestRun_OverlongLineIsNotFatal keeps following the updater after a huge log line.
func TestRun_OverlongLineIsNotFatal(t *testing.T) {
	f := newFixture(t, "head -c 2000000 /dev/zero | tr '\\0' x\necho\necho 'Finished successfully'\nexit 0\n")

	display := new(recordingDisplay)

	err := Run(f.ctx, f.options(&config.Settings{}, display, nil))
	require.NoError(t, err)

	require.Equal(t, []string{"Update Complete!"}, display.messages)
	require.Equal(t, 1, f.logs.FilterMessage("Update complete.").Len())
}

// TestRun_StagingFailure reports a single ErrResource and never launches the child.
func TestRun_StagingFailure(t *testing.T) {
	f := newFixture(t, "exit 0\n")

	opts := f.options(&config.Settings{}, nil, nil)
	opts.TempRoot = filepath.Join(f.dir, "disk", "full")

	err := Run(f.ctx, opts)
	require.ErrorIs(t, err, ErrBootstrap)
	require.ErrorIs(t, err, config.ErrResource)
	require.Nil(t, f.launched(t))

	failures := f.logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, failures, 1)
	require.Equal(t, "Update failed", failures[0].Message)
	require.Equal(t, StageStart.String(), failures[0].ContextMap()["stage"])
}

// TestRun_MissingPayload stops before launching when the build lacks the artifact.
func TestRun_MissingPayload(t *testing.T) {
	f := newFixture(t, "exit 0\n")

	opts := f.options(&config.Settings{}, nil, nil)
	opts.Payload = fstest.MapFS{}

	err := Run(f.ctx, opts)
	require.ErrorIs(t, err, ErrBootstrap)
	require.ErrorIs(t, err, artifact.ErrMissingResource)
	require.Nil(t, f.launched(t))
}

// TestRun_LaunchFailure wraps a missing Java runtime as a launch error.
func TestRun_LaunchFailure(t *testing.T) {
	f := newFixture(t, "exit 0\n")

	err := Run(f.ctx, f.options(&config.Settings{JavaBinary: filepath.Join(f.dir, "no-java")}, nil, nil))
	require.ErrorIs(t, err, ErrBootstrap)
	require.ErrorIs(t, err, supervisor.ErrLaunch)
}

// TestRun_Skip does nothing when the skip flag is set.
func TestRun_Skip(t *testing.T) {
	f := newFixture(t, "exit 0\n")

	err := Run(f.ctx, f.options(&config.Settings{Skip: true}, nil, nil))
	require.NoError(t, err)
	require.Nil(t, f.launched(t))

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)

	for _, entry := range entries {
		require.False(t, strings.HasPrefix(entry.Name(), "bw-updater"), entry.Name())
	}
}

// TestRun_InvalidSettings fails before any stage runs.
func TestRun_InvalidSettings(t *testing.T) {
	f := newFixture(t, "exit 0\n")

	err := Run(f.ctx, f.options(&config.Settings{UpdateURL: "::not a url"}, nil, nil))
	require.ErrorIs(t, err, ErrBootstrap)
	require.Nil(t, f.launched(t))
}

// TestLaunchCommand pins the process launch contract.
func TestLaunchCommand(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{JavaBinary: "/opt/jdk/bin/java", UpdateURL: config.ProductionURL}

	require.Equal(t,
		[]string{"/opt/jdk/bin/java", "-jar", "/tmp/bw-updater1/x.jar", config.ProductionURL, "-g"},
		launchCommand(cfg, "/tmp/bw-updater1/x.jar"),
	)
}

// TestStageString covers the Stringer.
func TestStageString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "streaming", StageStreaming.String())
	require.Equal(t, "failed", StageFailed.String())
	require.Equal(t, "unknown", Stage(99).String())
}
