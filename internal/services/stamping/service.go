package stamping

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/launchbynttdata/launch-source-stamper/internal/domain/addonversion"
	"github.com/launchbynttdata/launch-source-stamper/internal/domain/marker"
	"github.com/launchbynttdata/launch-source-stamper/internal/staging"
	"github.com/launchbynttdata/launch-source-stamper/internal/tree"
)

const (
	// DefaultEntryFile holds the version declaration.
	DefaultEntryFile = "__init__.py"
	// DefaultExtension is the only suffix stamped by default.
	DefaultExtension = ".py"
)

var (
	// ErrNilFs is returned when the service was built without a filesystem.
	ErrNilFs = errors.New("stamping service: nil filesystem")
	// ErrEmptyRoot is returned when no source root was given.
	ErrEmptyRoot = errors.New("stamping service: source root is empty")
	// ErrRootNotDir is returned when the source root is a file.
	ErrRootNotDir = errors.New("stamping service: source root is not a directory")
	// ErrStagingOverlapRoot is returned when removing the staging dir would remove the source root.
	ErrStagingOverlapRoot = errors.New("stamping service: staging dir contains the source root")
	// ErrNilReporter is returned when Run is called without a Reporter.
	ErrNilReporter = errors.New("stamping service: nil reporter")
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the local wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Reporter receives the original path of every committed file, in commit order.
type Reporter func(path string) error

// Config captures the inputs of a stamping run.
type Config struct {
	Root       string
	StagingDir string
	EntryFile  string
	Extension  string
	Ignore     []string
	// Date overrides the stamped date; the zero value means the clock's today.
	Date    time.Time
	Workers int
	DryRun  bool
}

// Result summarizes a stamping run.
type Result struct {
	Version   addonversion.Version
	Date      time.Time
	Scanned   int
	Skipped   int
	Committed []string
	DryRun    bool
}

// Service runs the scan, version, stage, commit and cleanup pipeline.
type Service struct {
	fs     afero.Fs
	clock  Clock
	logger *zap.Logger
}

// NewService constructs a Service instance. A nil clock falls back to SystemClock.
func NewService(fsys afero.Fs, clock Clock, logger *zap.Logger) Service {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Service{fs: fsys, clock: clock, logger: logger}
}

// Run stamps every file under cfg.Root that carries the configured extension.
// The staging dir is removed on every return path.
func (s Service) Run(ctx context.Context, cfg Config, report Reporter) (result Result, err error) {
	if s.fs == nil {
		return Result{}, ErrNilFs
	}
	if report == nil {
		return Result{}, ErrNilReporter
	}
	cfg = withDefaults(cfg)

	root := TrimRoot(cfg.Root)
	if root == "" {
		return Result{}, ErrEmptyRoot
	}
	if err := s.checkRoot(root); err != nil {
		return Result{}, err
	}
	if overlaps(cfg.StagingDir, root) {
		return Result{}, fmt.Errorf("%w: %s", ErrStagingOverlapRoot, cfg.StagingDir)
	}

	area, err := staging.NewArea(s.fs, cfg.StagingDir)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if cleanupErr := area.Cleanup(); cleanupErr != nil {
			err = multierr.Append(err, cleanupErr)
			return
		}
		s.logger.Debug("staging dir removed", zap.String("dir", area.Dir()))
	}()

	files, err := tree.Scan(s.fs, root, tree.Options{Ignore: cfg.Ignore, Exclude: []string{area.Dir()}})
	if err != nil {
		return Result{}, err
	}
	s.logger.Debug("source tree scanned", zap.String("root", root), zap.Int("files", len(files)))

	version, err := addonversion.ExtractFile(s.fs, filepath.Join(root, cfg.EntryFile))
	if err != nil {
		return Result{}, fmt.Errorf("resolving version from %s: %w", cfg.EntryFile, err)
	}

	date := cfg.Date
	if date.IsZero() {
		date = s.clock.Now()
	}
	s.logger.Info("version resolved",
		zap.String("version", version.String()),
		zap.String("declared", version.Full()),
		zap.String("date", marker.FormatDate(date)),
	)
	if _, semErr := version.Semver(); semErr != nil {
		s.logger.Warn("declared version is not a semantic version; stamping it verbatim", zap.Error(semErr))
	}

	candidates := filterExtension(files, cfg.Extension)
	result = Result{
		Version: version,
		Date:    date,
		Scanned: len(files),
		Skipped: len(files) - len(candidates),
		DryRun:  cfg.DryRun,
	}

	if err := area.Prepare(); err != nil {
		return result, err
	}

	manifest, err := s.stage(ctx, area, root, candidates, marker.NewRewriter(date, version.String()), cfg.Workers)
	if err != nil {
		return result, err
	}
	s.logger.Info("files staged", zap.Int("staged", len(manifest)), zap.Int("skipped", result.Skipped))

	if cfg.DryRun {
		for _, original := range manifest.Originals() {
			if err := report(original); err != nil {
				return result, fmt.Errorf("reporting %s: %w", original, err)
			}
		}
		s.logger.Info("dry run: originals left untouched", zap.Int("files", len(manifest)))
		return result, nil
	}

	err = area.Commit(ctx, manifest, func(entry staging.Entry) error {
		result.Committed = append(result.Committed, entry.Original)
		return report(entry.Original)
	})
	if err != nil {
		return result, fmt.Errorf("committing staged files: %w", err)
	}
	s.logger.Info("files committed", zap.Int("committed", len(result.Committed)))

	return result, nil
}

func (s Service) stage(ctx context.Context, area *staging.Area, root string, files []string, rw marker.Rewriter, workers int) (staging.Manifest, error) {
	manifest := make(staging.Manifest, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, src := range files {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := area.Stage(root, src, rw)
			if err != nil {
				return err
			}
			s.logger.Debug("file staged",
				zap.String("file", src),
				zap.String("staged", entry.Staged),
				zap.Int("rewritten", entry.Rewritten),
			)
			manifest[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (s Service) checkRoot(root string) error {
	info, err := s.fs.Stat(root)
	if err != nil {
		return fmt.Errorf("source root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDir, root)
	}
	return nil
}

// TrimRoot strips trailing path separators, keeping a bare "/" intact.
func TrimRoot(root string) string {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return ""
	}
	stripped := strings.TrimRight(trimmed, "/"+string(filepath.Separator))
	if stripped == "" {
		return trimmed[:1]
	}
	return stripped
}

func withDefaults(cfg Config) Config {
	if strings.TrimSpace(cfg.StagingDir) == "" {
		cfg.StagingDir = staging.DefaultDir
	}
	if strings.TrimSpace(cfg.EntryFile) == "" {
		cfg.EntryFile = DefaultEntryFile
	}
	if strings.TrimSpace(cfg.Extension) == "" {
		cfg.Extension = DefaultExtension
	}
	if !strings.HasPrefix(cfg.Extension, ".") {
		cfg.Extension = "." + cfg.Extension
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg
}

func filterExtension(files []string, ext string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if filepath.Ext(f) == ext {
			out = append(out, f)
		}
	}
	return out
}

// overlaps reports whether removing stagingDir would remove root.
func overlaps(stagingDir, root string) bool {
	stagingAbs, err := filepath.Abs(stagingDir)
	if err != nil {
		return true
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return true
	}
	rel, err := filepath.Rel(stagingAbs, rootAbs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
