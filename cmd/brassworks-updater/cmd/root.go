package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/swzo/brassworks-updater/internal/config"
	"github.com/swzo/brassworks-updater/internal/host/loading"
	"github.com/swzo/brassworks-updater/internal/logger"
	"github.com/swzo/brassworks-updater/internal/service/bootstrap"
	"github.com/swzo/brassworks-updater/internal/service/reporter"
	"github.com/swzo/brassworks-updater/internal/version"
)

// meterName labels the loading screen task.
const meterName = "Brassworks pack update"

var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the configuration YAML file.
	configPath string
	// devChannel forces the development manifest.
	devChannel bool
	// updateURL overrides the production manifest.
	updateURL string
	// skip disables the run.
	skip bool
	// javaBinary overrides the Java runtime.
	javaBinary string
	// logLevel is the minimum level for log output.
	logLevel string
	// timeout bounds the updater run; zero waits indefinitely.
	timeout time.Duration

	// rootCmd represents the base command for running the pack updater.
	rootCmd = &cobra.Command{
		Use:   "brassworks-updater",
		Short: "Update the Brassworks modpack and show progress.",
		Long: `Extracts the bundled pack updater, runs it with the Java runtime and turns
its output into a progress display.

Settings come from the YAML file, then BRASSUPDATER_* environment variables,
then flags. A non-zero exit of the pack updater is logged but does not fail
this command; only problems running it do.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			settings, err := config.LoadSettings(configPath, os.LookupEnv)
			if err != nil {
				return err
			}

			applyFlags(cmd, settings)

			if err = setupLogger(settings); err != nil {
				return err
			}

			logger.InfoKV(ctx, "Starting", "version", version.Full())

			meter := loading.NewMeter(meterName, 1)

			options := &bootstrap.Options{
				Settings: settings,
				Display:  loading.NewScreen(cmd.OutOrStdout(), meter),
				Sink:     reporter.ForMeter(meter),
			}

			return bootstrap.Run(ctx, options)
		},
	}
)

// Execute runs the brassworks-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyFlags overlays explicitly set flags on top of file and environment settings.
func applyFlags(cmd *cobra.Command, settings *config.Settings) {
	flags := cmd.Flags()

	if flags.Changed("dev") {
		settings.DevChannel = devChannel
	}

	if flags.Changed("url") {
		settings.UpdateURL = updateURL
	}

	if flags.Changed("skip") {
		settings.Skip = skip
	}

	if flags.Changed("java") {
		settings.JavaBinary = javaBinary
	}

	if flags.Changed("log-level") {
		settings.LogLevel = logLevel
	}

	if flags.Changed("timeout") {
		settings.Timeout = timeout
	}
}

func setupLogger(settings *config.Settings) error {
	level := zapcore.InfoLevel

	if settings.LogLevel != "" {
		parsed, ok := logger.ParseLogLevel(settings.LogLevel)
		if !ok {
			return fmt.Errorf("%w: %s", errUnknownLogLevel, settings.LogLevel)
		}

		level = parsed
	}

	logger.SetLevel(level)

	if settings.LogFile != "" {
		logger.SetLogger(logger.NewWithFile(settings.LogFile, logger.AtomicLevel(), logger.WithLevel(level)))
	}

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" when present)")
	rootCmd.Flags().BoolVar(&devChannel, "dev", false, "use the development pack manifest")
	rootCmd.Flags().StringVar(&updateURL, "url", "", "custom pack manifest URL")
	rootCmd.Flags().BoolVar(&skip, "skip", false, "do nothing and exit")
	rootCmd.Flags().StringVar(&javaBinary, "java", "", "Java runtime used to launch the updater")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "minimum log level")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "kill the updater after this long (0 waits indefinitely)")
}
