package config

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/cfg/srcstamp.yaml", []byte(`
stagingDir: build/tmp
entryFile: __init__.py
extension: .py
ignore:
  - tests/**
  - "**/vendor/**"
date: "2024-03-05"
workers: 4
dryRun: true
logLevel: verbose
`), 0o644))

	cfg, err := LoadFile(fsys, "/cfg/srcstamp.yaml")
	require.NoError(t, err)

	assert.Equal(t, File{
		StagingDir: "build/tmp",
		EntryFile:  "__init__.py",
		Extension:  ".py",
		Ignore:     []string{"tests/**", "**/vendor/**"},
		Date:       "2024-03-05",
		Workers:    4,
		DryRun:     true,
		LogLevel:   "verbose",
	}, cfg)
}

func TestLoadFileEmptyPathAndEmptyFile(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()

	cfg, err := LoadFile(fsys, " ")
	require.NoError(t, err)
	assert.Equal(t, File{}, cfg)

	require.NoError(t, afero.WriteFile(fsys, "/empty.yaml", nil, 0o644))
	cfg, err = LoadFile(fsys, "/empty.yaml")
	require.NoError(t, err)
	assert.Equal(t, File{}, cfg)
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/unknown.yaml", []byte("stagingDirectory: tmp\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/negative.yaml", []byte("workers: -1\n"), 0o644))

	_, err := LoadFile(fsys, "/missing.yaml")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = LoadFile(fsys, "/unknown.yaml")
	assert.Error(t, err)

	_, err = LoadFile(fsys, "/negative.yaml")
	assert.Error(t, err)
}

func TestOr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "tmp", Or("  ", "tmp"))
	assert.Equal(t, "build", Or(" build ", "tmp"))
}
