package tree

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTree(t *testing.T, files ...string) afero.Fs {
	t.Helper()

	fsys := afero.NewMemMapFs()
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fsys, f, []byte("x\n"), 0o644))
	}
	return fsys
}

func TestScanRecursesAndSkipsDirectories(t *testing.T) {
	t.Parallel()

	fsys := newTree(t,
		"/src/__init__.py",
		"/src/op/align_uv.py",
		"/src/op/deep/nested/mod.py",
		"/src/ui/icon.png",
	)
	require.NoError(t, fsys.MkdirAll("/src/empty", 0o755))

	files, err := Scan(fsys, "/src", Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/src/__init__.py",
		"/src/op/align_uv.py",
		"/src/op/deep/nested/mod.py",
		"/src/ui/icon.png",
	}, files)
}

func TestScanIgnorePatterns(t *testing.T) {
	t.Parallel()

	fsys := newTree(t,
		"/src/__init__.py",
		"/src/tests/test_a.py",
		"/src/tests/data/b.py",
		"/src/lib/vendored.py",
		"/src/lib/keep.py",
	)

	files, err := Scan(fsys, "/src", Options{Ignore: []string{"tests", "lib/vendored.py", " "}})
	require.NoError(t, err)

	assert.Equal(t, []string{"/src/__init__.py", "/src/lib/keep.py"}, files)
}

func TestScanIgnoreDoublestar(t *testing.T) {
	t.Parallel()

	fsys := newTree(t,
		"/src/a.py",
		"/src/a/b/gen_x.py",
		"/src/c/gen_y.py",
	)

	files, err := Scan(fsys, "/src", Options{Ignore: []string{"**/gen_*.py"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"/src/a.py"}, files)
}

func TestScanDotEntries(t *testing.T) {
	t.Parallel()

	fsys := newTree(t,
		"/src/.venv/lib/site.py",
		"/src/.hidden.py",
		"/src/__init__.py",
		"/src/op/.cache/x.py",
		"/src/op/mod.py",
	)

	files, err := Scan(fsys, "/src", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/src/.hidden.py",
		"/src/.venv/lib/site.py",
		"/src/__init__.py",
		"/src/op/.cache/x.py",
		"/src/op/mod.py",
	}, files)

	files, err = Scan(fsys, "/src", Options{Ignore: []string{"**/.*"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/__init__.py", "/src/op/mod.py"}, files)
}

func TestScanExcludesDirectories(t *testing.T) {
	t.Parallel()

	fsys := newTree(t,
		"/src/mod.py",
		"/src/tmp/mod.py",
	)

	files, err := Scan(fsys, "/src", Options{Exclude: []string{"/src/tmp/"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"/src/mod.py"}, files)
}

func TestScanInvalidPattern(t *testing.T) {
	t.Parallel()

	fsys := newTree(t, "/src/a.py")

	_, err := Scan(fsys, "/src", Options{Ignore: []string{"[unterminated"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPattern))
}

func TestScanMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := Scan(afero.NewMemMapFs(), "/missing", Options{})
	require.Error(t, err)
}
