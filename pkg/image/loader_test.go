package image

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, root, dir, name string, data []byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, dir, name), data, 0o644))
}

func mustKey(t *testing.T, dir, name string) Key {
	t.Helper()

	k, err := NewKey(dir, name)
	require.NoError(t, err)

	return k
}

func TestFsLoader_Load(t *testing.T) {
	root := t.TempDir()
	data := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}

	writeImage(t, root, "icons", "logo.png", data)
	writeImage(t, root, "icons", "empty.jpg", nil)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "icons", "sub.d"), 0o755))

	l := FsLoader(root)
	ctx := context.Background()

	t.Run("existing file", func(t *testing.T) {
		got, err := l.Load(ctx, mustKey(t, "icons", "logo.png"))
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("empty file", func(t *testing.T) {
		got, err := l.Load(ctx, mustKey(t, "icons", "empty.jpg"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := l.Load(ctx, mustKey(t, "icons", "missing.png"))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := l.Load(ctx, mustKey(t, "nope", "logo.png"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("directory segment is a file", func(t *testing.T) {
		writeImage(t, root, ".", "flat.jpg", data)

		_, err := l.Load(ctx, mustKey(t, "flat.jpg", "logo.png"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("path is a directory", func(t *testing.T) {
		_, err := l.Load(ctx, mustKey(t, "icons", "sub.d"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := l.Load(cctx, mustKey(t, "icons", "logo.png"))

		var ioErr *IOError
		require.True(t, errors.As(err, &ioErr))
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, errors.Is(err, ErrNotFound))
	})
}

func TestFsLoader_Load_permissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	root := t.TempDir()
	writeImage(t, root, "icons", "locked.jpg", []byte("data"))

	path := filepath.Join(root, "icons", "locked.jpg")
	require.NoError(t, os.Chmod(path, 0o000))
	t.Cleanup(func() { _ = os.Chmod(path, 0o644) })

	_, err := FsLoader(root).Load(context.Background(), mustKey(t, "icons", "locked.jpg"))

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr), "got %v", err)
	assert.Equal(t, "open", ioErr.Op)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.False(t, errors.Is(err, ErrNotFound))
}
