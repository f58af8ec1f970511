package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_defaultsToStdout(t *testing.T) {
	logger, err := New(Config{})
	require.NoError(t, err)

	assert.Equal(t, os.Stdout, logger.Out)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNew_json(t *testing.T) {
	logger, err := New(Config{Level: "debug", Format: "json"})
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestNew_invalid(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestNew_createsRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, err := New(Config{Level: "info", FilePath: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Info("test")

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNew_fallsBackToStdout(t *testing.T) {
	dir := t.TempDir()

	// A regular file where a directory is expected.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	logger, err := New(Config{FilePath: filepath.Join(blocker, "sub", "server.log")})
	require.NoError(t, err)

	assert.Equal(t, os.Stdout, logger.Out)
}

func TestRequestFields(t *testing.T) {
	f := RequestFields("id", "GET", "/image/a/b", "127.0.0.1:1234")

	assert.Equal(t, "id", f["request_id"])
	assert.Equal(t, "GET", f["method"])
	assert.Equal(t, "/image/a/b", f["uri"])
	assert.Equal(t, "127.0.0.1:1234", f["remote_addr"])

	i := ImageFields("a/b", true)
	assert.Equal(t, "a/b", i["key"])
	assert.Equal(t, true, i["cache_hit"])
}

func TestFromContext(t *testing.T) {
	fallback := logrus.New()

	assert.Equal(t, fallback, FromContext(context.Background(), fallback))

	entry := fallback.WithField("request_id", "abc")
	ctx := WithEntry(context.Background(), entry)

	assert.Equal(t, entry, FromContext(ctx, fallback))
}
