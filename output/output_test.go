package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.net.xml")

	require.NoError(t, WriteFile(path, []byte("first")))
	require.NoError(t, WriteFile(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp and lock files must be cleaned up")
	assert.Equal(t, "out.net.xml", entries[0].Name())
}

func TestWriteFileMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.csv")
	assert.Error(t, WriteFile(path, []byte("x")))

	exists, err := Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExistsAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.prom")

	exists, err := Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, WriteFile(path, []byte("zmap_points_sampled_total 1\n")))
	exists, err = Exists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, Remove(path))
	exists, err = Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	// removing twice is fine
	require.NoError(t, Remove(path))
}
