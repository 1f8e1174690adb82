package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitDisabledDiscards(t *testing.T) {
	require.NoError(t, Init(Options{Enabled: false}))
	require.False(t, L.Enabled(t.Context(), slog.LevelError))
}

func TestInitWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(Options{Enabled: true, LogDir: dir, Level: slog.LevelDebug}))
	t.Cleanup(func() {
		require.NoError(t, Close())
		L = discard()
	})

	Info("mapped pages", "pages", 2)
	Debug("worker finished", "worker", 1)
	Warn("chunks leaked", "in_use", 3)

	name := logPrefix + time.Now().Format("2006-01-02") + logSuffix
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"mapped pages"`)
	require.Contains(t, string(data), `"pages":2`)
	require.Contains(t, string(data), `"level":"DEBUG","msg":"worker finished"`)
	require.Contains(t, string(data), `"level":"WARN","msg":"chunks leaked"`)
}

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	old := filepath.Join(dir, logPrefix+"2026-01-01"+logSuffix)
	recent := filepath.Join(dir, logPrefix+"2026-02-25"+logSuffix)
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, recent, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	cleanOldLogs(dir, now)

	require.NoFileExists(t, old)
	require.FileExists(t, recent)
	require.FileExists(t, other)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvLogAlloc, "")
	require.False(t, fromEnv().Enabled(t.Context(), slog.LevelError))

	t.Setenv(EnvLogAlloc, "1")
	require.True(t, fromEnv().Enabled(t.Context(), slog.LevelDebug))
}
