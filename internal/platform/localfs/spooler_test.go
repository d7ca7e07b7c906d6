package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpooler(t *testing.T) {
	t.Parallel()

	t.Run("creates the directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "spool")
		_, err := NewSpooler(dir)
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("empty directory is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewSpooler("")
		assert.Error(t, err)
	})
}

func TestSpoolerSaveLoad(t *testing.T) {
	t.Parallel()

	spooler, err := NewSpooler(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		content := []byte("review one\nreview two\n")
		path, err := spooler.Save(ctx, "reviews.txt", content)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(path, ".txt"))

		got, err := spooler.Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("colliding client filenames get distinct paths", func(t *testing.T) {
		t.Parallel()

		first, err := spooler.Save(ctx, "reviews.csv", []byte("a"))
		require.NoError(t, err)
		second, err := spooler.Save(ctx, "reviews.csv", []byte("b"))
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("load outside the spool directory is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := spooler.Load(ctx, "/etc/passwd")
		assert.Error(t, err)

		_, err = spooler.Load(ctx, filepath.Join(t.TempDir(), "other.txt"))
		assert.Error(t, err)
	})
}

func TestSpoolerRemove(t *testing.T) {
	t.Parallel()

	spooler, err := NewSpooler(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	path, err := spooler.Save(ctx, "reviews.txt", []byte("data"))
	require.NoError(t, err)

	require.NoError(t, spooler.Remove(ctx, path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing an already-removed file is fine.
	assert.NoError(t, spooler.Remove(ctx, path))
}
