package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// File is the optional YAML config file. Its values replace the built-in
// defaults; env vars and flags still take precedence.
type File struct {
	StagingDir string   `yaml:"stagingDir"`
	EntryFile  string   `yaml:"entryFile"`
	Extension  string   `yaml:"extension"`
	Ignore     []string `yaml:"ignore"`
	Date       string   `yaml:"date"`
	Workers    int      `yaml:"workers"`
	DryRun     bool     `yaml:"dryRun"`
	LogLevel   string   `yaml:"logLevel"`
}

// LoadFile reads path from fsys. An empty path yields the zero File.
func LoadFile(fsys afero.Fs, path string) (_ File, err error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return File{}, nil
	}

	f, err := fsys.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("opening config file: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	var cfg File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	if cfg.Workers < 0 {
		return File{}, fmt.Errorf("config file %s: workers must not be negative", path)
	}

	return cfg, nil
}

// Or returns value when it is non-empty, fallback otherwise.
func Or(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}
