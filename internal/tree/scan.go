package tree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// ErrInvalidPattern indicates an ignore pattern that doublestar cannot parse.
var ErrInvalidPattern = errors.New("tree: invalid ignore pattern")

// Options tunes which entries Scan reports.
type Options struct {
	// Ignore holds doublestar patterns matched against root-relative slash paths.
	// A matching directory prunes its whole subtree.
	Ignore []string
	// Exclude lists directories pruned from the walk regardless of Ignore.
	Exclude []string
}

// Scan walks root recursively and returns every non-directory entry in
// lexical walk order.
func Scan(fsys afero.Fs, root string, opts Options) ([]string, error) {
	patterns, err := normalizePatterns(opts.Ignore)
	if err != nil {
		return nil, err
	}
	excluded := absAll(opts.Exclude)

	var files []string
	walkErr := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return fmt.Errorf("relative path of %s: %w", path, relErr)
		}
		relSlash := filepath.ToSlash(rel)

		if info.IsDir() {
			if relSlash == "." {
				return nil
			}
			if isExcluded(path, excluded) || matchesAny(patterns, relSlash) {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(patterns, relSlash) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, walkErr)
	}

	return files, nil
}

func normalizePatterns(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = filepath.ToSlash(p)
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
		out = append(out, p)
	}
	return out, nil
}

func matchesAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func absAll(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, absPath(p))
	}
	return out
}

func isExcluded(path string, excluded []string) bool {
	if len(excluded) == 0 {
		return false
	}
	abs := absPath(path)
	for _, ex := range excluded {
		if abs == ex {
			return true
		}
	}
	return false
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
