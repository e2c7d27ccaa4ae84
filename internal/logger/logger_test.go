package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestContextValues(t *testing.T) {
	ctx := WithScenario(WithRunID(context.Background(), "01J0RUN"), "upload-download")

	assert.Equal(t, "01J0RUN", GetRunID(ctx))
	assert.Equal(t, "upload-download", GetScenario(ctx))
	assert.Empty(t, GetRunID(context.Background()))
	assert.NotNil(t, FromContext(ctx))
}

func TestSetupWithFileWritesRecords(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	logPath := filepath.Join(t.TempDir(), "synccheck.log")
	closer := SetupWithOptions(Options{Level: "debug", File: logPath, MaxSizeMB: 1, MaxBackups: 1})

	slog.Info("sandbox provisioned", "sandbox_id", "sb-1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sandbox provisioned")
	assert.Contains(t, string(data), "sb-1")
}
