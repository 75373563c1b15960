package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/launchbynttdata/launch-source-stamper/internal/config"
	"github.com/launchbynttdata/launch-source-stamper/internal/domain/addonversion"
	"github.com/launchbynttdata/launch-source-stamper/internal/logging"
	"github.com/launchbynttdata/launch-source-stamper/internal/services/stamping"
	"github.com/launchbynttdata/launch-source-stamper/internal/staging"
	"github.com/launchbynttdata/launch-source-stamper/internal/version"
)

const (
	envConfig     = "SRCSTAMP_CONFIG"
	envLogLevel   = "SRCSTAMP_LOG_LEVEL"
	envStagingDir = "SRCSTAMP_STAGING_DIR"
	envEntryFile  = "SRCSTAMP_ENTRY_FILE"
	envExtension  = "SRCSTAMP_EXTENSION"
	envIgnore     = "SRCSTAMP_IGNORE"
	envDate       = "SRCSTAMP_DATE"
	envWorkers    = "SRCSTAMP_WORKERS"
	envDryRun     = "SRCSTAMP_DRY_RUN"

	dateLayout = "2006-01-02"

	usageLine       = "Usage: srcstamp <source>"
	notFoundMessage = "Blender Version is not found"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// ErrUsage marks invocation errors: wrong argument count or invalid flag values.
var ErrUsage = errors.New("usage error")

// Execute runs the CLI root command with the provided context against the
// host filesystem and wall clock.
func Execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return execute(ctx, newRootCommand(dependencies{fs: afero.NewOsFs(), clock: stamping.SystemClock}))
}

// ExitCode maps an Execute error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, ErrUsage):
		return exitUsage
	default:
		return exitFailure
	}
}

func execute(ctx context.Context, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	switch {
	case errors.Is(err, ErrUsage):
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), usageLine)
	case errors.Is(err, addonversion.ErrNotFound):
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), notFoundMessage)
	}
	return err
}

type dependencies struct {
	fs    afero.Fs
	clock stamping.Clock
}

type rootFlagSet struct {
	configPath *stringFlag
	logLevel   *stringFlag
	stagingDir *stringFlag
	entryFile  *stringFlag
	extension  *stringFlag
	ignore     *stringSliceFlag
	date       *stringFlag
	workers    *intFlag
	dryRun     *boolFlag
}

type runtimeConfig struct {
	logger  *zap.Logger
	service stamping.Service
	run     stamping.Config
}

func newRootCommand(deps dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "srcstamp <source>",
		Short:         "Stamp release date and version into source files",
		Long:          "Rewrites the __date__ and __version__ lines of every source file under <source>,\nusing the version declared in <source>/__init__.py.",
		Args:          exactlyOneSource,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.Version = version.Summary()
	cmd.SetVersionTemplate("srcstamp {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	})

	flags := bindRootFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runtime, cleanup, err := buildRuntime(deps, flags, args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		out := cmd.OutOrStdout()
		result, err := runtime.service.Run(ctx, runtime.run, func(path string) error {
			_, err := fmt.Fprintln(out, path)
			return err
		})
		if err != nil {
			return err
		}

		log := runtime.logger.With(
			zap.String("root", runtime.run.Root),
			zap.String("version", result.Version.String()),
			zap.Int("scanned", result.Scanned),
			zap.Int("skipped", result.Skipped),
		)
		if result.DryRun {
			log.Info("dry run complete")
			return nil
		}
		log.Info("source tree stamped", zap.Int("committed", len(result.Committed)))
		return nil
	}

	return cmd
}

func exactlyOneSource(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: expected exactly one <source> argument, got %d", ErrUsage, len(args))
	}
	return nil
}

func bindRootFlags(cmd *cobra.Command) *rootFlagSet {
	fs := cmd.Flags()
	return &rootFlagSet{
		configPath: bindStringFlag(fs, "config", "c", envConfig, "", "Optional YAML config file"),
		logLevel:   bindStringFlag(fs, "log-level", "", envLogLevel, logging.LevelTerse, "Log verbosity (quiet, terse or verbose)"),
		stagingDir: bindStringFlag(fs, "staging-dir", "", envStagingDir, staging.DefaultDir, "Directory holding staged copies during the run"),
		entryFile:  bindStringFlag(fs, "entry-file", "", envEntryFile, stamping.DefaultEntryFile, "File under <source> declaring the version"),
		extension:  bindStringFlag(fs, "extension", "", envExtension, stamping.DefaultExtension, "Suffix of the files to stamp"),
		ignore:     bindStringSliceFlag(fs, "ignore", "", envIgnore, nil, "Glob patterns (relative to <source>) to leave out of the scan; dot-entries are scanned unless excluded, e.g. with '**/.*'"),
		date:       bindStringFlag(fs, "date", "", envDate, "", "Stamp date as YYYY-MM-DD (defaults to today)"),
		workers:    bindIntFlag(fs, "workers", "", envWorkers, 1, "Number of files staged concurrently"),
		dryRun:     bindBoolFlag(fs, "dry-run", "", envDryRun, false, "Stage and list files without overwriting them"),
	}
}

func buildRuntime(deps dependencies, flags *rootFlagSet, source string) (runtimeConfig, func(), error) {
	nopResolver := config.NewResolver(zap.NewNop())

	file, err := config.LoadFile(deps.fs, flags.configPath.Value(nopResolver, ""))
	if err != nil {
		return runtimeConfig{}, nil, err
	}

	logLevel := flags.logLevel.Value(nopResolver, file.LogLevel)
	logger, err := logging.New(logLevel)
	if err != nil {
		return runtimeConfig{}, nil, fmt.Errorf("%w: configuring logger: %w", ErrUsage, err)
	}

	resolver := config.NewResolver(logger)
	_ = flags.logLevel.Value(resolver, file.LogLevel)

	runCfg, err := flags.resolve(resolver, file)
	if err != nil {
		_ = logger.Sync()
		return runtimeConfig{}, nil, err
	}
	runCfg.Root = stamping.TrimRoot(source)
	if runCfg.Root == "" {
		_ = logger.Sync()
		return runtimeConfig{}, nil, fmt.Errorf("%w: <source> must not be empty", ErrUsage)
	}

	logger.Debug("configuration resolved",
		zap.String("root", runCfg.Root),
		zap.String("stagingDir", runCfg.StagingDir),
		zap.String("entryFile", runCfg.EntryFile),
		zap.String("extension", runCfg.Extension),
		zap.Strings("ignore", runCfg.Ignore),
		zap.Int("workers", runCfg.Workers),
		zap.Bool("dryRun", runCfg.DryRun),
	)

	cleanup := func() {
		_ = logger.Sync()
	}

	return runtimeConfig{
		logger:  logger,
		service: stamping.NewService(deps.fs, deps.clock, logger),
		run:     runCfg,
	}, cleanup, nil
}

func (f *rootFlagSet) resolve(resolver config.Resolver, file config.File) (stamping.Config, error) {
	var merr error

	workers, err := f.workers.Value(resolver, file.Workers)
	if err != nil {
		merr = multierror.Append(merr, err)
	} else if workers < 1 {
		merr = multierror.Append(merr, fmt.Errorf("workers must be at least 1, got %d", workers))
	}

	dryRun, err := f.dryRun.Value(resolver, file.DryRun)
	if err != nil {
		merr = multierror.Append(merr, err)
	}

	var date time.Time
	if raw := strings.TrimSpace(f.date.Value(resolver, file.Date)); raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, time.Local)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("date %q must use the YYYY-MM-DD layout", raw))
		}
		date = parsed
	}

	stagingDir := f.stagingDir.Value(resolver, file.StagingDir)
	if stagingDir == "" {
		merr = multierror.Append(merr, errors.New("staging-dir must not be empty"))
	}

	entryFile := f.entryFile.Value(resolver, file.EntryFile)
	if entryFile == "" {
		merr = multierror.Append(merr, errors.New("entry-file must not be empty"))
	}

	extension := f.extension.Value(resolver, file.Extension)
	if extension == "" {
		merr = multierror.Append(merr, errors.New("extension must not be empty"))
	}

	if merr != nil {
		return stamping.Config{}, fmt.Errorf("%w: %w", ErrUsage, merr)
	}

	return stamping.Config{
		StagingDir: stagingDir,
		EntryFile:  entryFile,
		Extension:  extension,
		Ignore:     f.ignore.Value(resolver, file.Ignore),
		Date:       date,
		Workers:    workers,
		DryRun:     dryRun,
	}, nil
}
