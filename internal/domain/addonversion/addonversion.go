package addonversion

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"

	semver "github.com/blang/semver/v4"
	"github.com/spf13/afero"
)

// ErrNotFound indicates the entry-point file carried no version declaration.
var ErrNotFound = errors.New("addonversion: version declaration not found")

// declaration matches a bl_info entry such as `"version": (6, 0, 0),`.
var declaration = regexp.MustCompile(`\s*"version"\s*:\s*\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*\),\s*`)

// Version is the add-on version declared in the entry-point file. Components
// keep the digits exactly as written, leading zeros included.
type Version struct {
	major string
	minor string
	patch string
}

// New builds a Version from its three decimal components.
func New(major, minor, patch string) Version {
	return Version{major: major, minor: minor, patch: patch}
}

// String renders the stamped form "MAJOR.MINOR". The patch component is dropped.
func (v Version) String() string {
	return v.major + "." + v.minor
}

// Full renders the declared tuple as "MAJOR.MINOR.PATCH", for logging.
func (v Version) Full() string {
	return v.major + "." + v.minor + "." + v.patch
}

// Semver parses the declared tuple as a semantic version. Leading zeros and
// components beyond uint64 are rejected; stamping does not depend on it.
func (v Version) Semver() (semver.Version, error) {
	parsed, err := semver.Parse(v.Full())
	if err != nil {
		return semver.Version{}, fmt.Errorf("declared version %s: %w", v.Full(), err)
	}
	return parsed, nil
}

// Extract scans r line by line and returns the version of the last matching
// declaration. ErrNotFound is returned when no line matches.
func Extract(r io.Reader) (Version, error) {
	reader := bufio.NewReader(r)

	var (
		found   Version
		matched bool
	)
	for {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			if v, ok := parseLine(line); ok {
				found, matched = v, true
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Version{}, fmt.Errorf("reading version declaration: %w", readErr)
		}
	}

	if !matched {
		return Version{}, ErrNotFound
	}
	return found, nil
}

// ExtractFile opens path on fsys and extracts its version declaration.
func ExtractFile(fsys afero.Fs, path string) (_ Version, err error) {
	f, err := fsys.Open(path)
	if err != nil {
		return Version{}, fmt.Errorf("opening entry file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing entry file: %w", closeErr)
		}
	}()

	return Extract(f)
}

func parseLine(line string) (Version, bool) {
	m := declaration.FindStringSubmatch(line)
	if m == nil {
		return Version{}, false
	}
	return New(m[1], m[2], m[3]), true
}
