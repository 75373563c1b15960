package staging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

const (
	// DefaultDir is the staging root used when none is configured.
	DefaultDir = "tmp"

	dirPerm = 0o755
)

var (
	// ErrEmptyDir is returned by NewArea for a blank staging dir.
	ErrEmptyDir = errors.New("staging: staging dir is empty")
	// ErrOutsideRoot is returned when a source path does not lie below the root.
	ErrOutsideRoot = errors.New("staging: source path is outside the root")
	// ErrNilReport is returned by Commit without a report func.
	ErrNilReport = errors.New("staging: nil report func")
	// ErrMissingSource is returned by Commit for an entry with no original path.
	ErrMissingSource = errors.New("staging: manifest entry has no original path")
)

// LineRewriter rewrites a single line (without terminator) and reports whether it changed.
type LineRewriter interface {
	RewriteLine(line string) (string, bool)
}

// Entry pairs an original file with its staged counterpart.
type Entry struct {
	Original string
	Staged   string
	// Rewritten counts lines replaced while staging.
	Rewritten int
}

// Manifest is the ordered list of staged files driving the commit pass.
type Manifest []Entry

// Originals returns the original paths in manifest order.
func (m Manifest) Originals() []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for _, e := range m {
		out = append(out, e.Original)
	}
	return out
}

// Area is a staging root on a filesystem.
type Area struct {
	fs  afero.Fs
	dir string
}

// NewArea returns an Area rooted at dir on fsys.
func NewArea(fsys afero.Fs, dir string) (*Area, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, ErrEmptyDir
	}
	return &Area{fs: fsys, dir: filepath.Clean(trimmed)}, nil
}

// Dir returns the staging root.
func (a *Area) Dir() string {
	return a.dir
}

// Prepare removes any stale staging tree and creates the root afresh.
func (a *Area) Prepare() error {
	if err := a.fs.RemoveAll(a.dir); err != nil {
		return fmt.Errorf("removing stale staging dir %s: %w", a.dir, err)
	}
	if err := a.fs.MkdirAll(a.dir, dirPerm); err != nil {
		return fmt.Errorf("creating staging dir %s: %w", a.dir, err)
	}
	return nil
}

// Destination maps src below root to its location under the staging root.
func (a *Area) Destination(root, src string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(src))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrOutsideRoot, src, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, src)
	}
	return filepath.Join(a.dir, rel), nil
}

// Stage copies src into the staging root line by line, passing every line
// through rw. Lines are re-serialized with "\n".
func (a *Area) Stage(root, src string, rw LineRewriter) (_ Entry, err error) {
	dest, err := a.Destination(root, src)
	if err != nil {
		return Entry{}, err
	}

	info, err := a.fs.Stat(src)
	if err != nil {
		return Entry{}, fmt.Errorf("stat %s: %w", src, err)
	}

	if err := a.fs.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return Entry{}, fmt.Errorf("mkdir %s: %w", filepath.Dir(dest), err)
	}

	in, err := a.fs.Open(src)
	if err != nil {
		return Entry{}, fmt.Errorf("open %s: %w", src, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(in))

	out, err := a.fs.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return Entry{}, fmt.Errorf("create %s: %w", dest, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(out))

	rewritten, err := rewriteLines(in, out, rw)
	if err != nil {
		return Entry{}, fmt.Errorf("staging %s: %w", src, err)
	}

	return Entry{Original: src, Staged: dest, Rewritten: rewritten}, nil
}

func rewriteLines(r io.Reader, w io.Writer, rw LineRewriter) (int, error) {
	reader := bufio.NewReader(r)
	writer := bufio.NewWriter(w)

	rewritten := 0
	for {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if rw != nil {
				var changed bool
				line, changed = rw.RewriteLine(line)
				if changed {
					rewritten++
				}
			}
			if _, err := writer.WriteString(line); err != nil {
				return rewritten, err
			}
			if err := writer.WriteByte('\n'); err != nil {
				return rewritten, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return rewritten, readErr
		}
	}

	return rewritten, writer.Flush()
}

// Commit overwrites every original with its staged content, in manifest
// order, calling report after each file. The first failure aborts the pass.
func (a *Area) Commit(ctx context.Context, manifest Manifest, report func(Entry) error) error {
	if report == nil {
		return ErrNilReport
	}
	for _, entry := range manifest {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.commitOne(entry); err != nil {
			return err
		}
		if err := report(entry); err != nil {
			return fmt.Errorf("reporting %s: %w", entry.Original, err)
		}
	}
	return nil
}

func (a *Area) commitOne(entry Entry) (err error) {
	if strings.TrimSpace(entry.Original) == "" {
		return ErrMissingSource
	}

	in, err := a.fs.Open(entry.Staged)
	if err != nil {
		return fmt.Errorf("open staged %s: %w", entry.Staged, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(in))

	out, err := a.fs.OpenFile(entry.Original, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("open original %s: %w", entry.Original, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(out))

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", entry.Staged, entry.Original, err)
	}
	return nil
}

// Cleanup removes the staging root. It is safe to call when the root is absent.
func (a *Area) Cleanup() error {
	if err := a.fs.RemoveAll(a.dir); err != nil {
		return fmt.Errorf("removing staging dir %s: %w", a.dir, err)
	}
	return nil
}
