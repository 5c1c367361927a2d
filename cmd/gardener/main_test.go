package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gardener/internal/domain"
)

func TestSetupLogger_Levels(t *testing.T) {
	var buf bytes.Buffer

	logger := setupLogger("warn", &buf)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	logger = setupLogger("unknown", &buf)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger.Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestRootCmd_RequiresConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	assert.ErrorContains(t, err, `"config" not set`)
}

func TestStatusCmd_RendersEmptyStore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GARDENER_DIR", dir)

	configPath := filepath.Join(dir, "gardener.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log_level: error\n"), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"status", "-c", configPath})
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Patterns (0 effective)")
	assert.Contains(t, out.String(), "Items (0, 0 downloaded)")
	assert.FileExists(t, filepath.Join(dir, "gardener.db"))
}

func TestRenderTables(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	patterns := []*domain.Pattern{
		{ID: 1, Expression: "foo", AddedAt: at, State: domain.Retired(at)},
		{ID: 2, Expression: "bar", AddedAt: at},
	}
	items := []*domain.Item{
		{ID: 1, ExternalID: "1001", Title: "bar 01", PatternID: 2, AddedAt: at, DownloadCompletedAt: &at, PayloadPath: "/t/bar.torrent"},
		{ID: 2, ExternalID: "1002", Title: "baz", AddedAt: at},
	}

	var buf bytes.Buffer
	renderPatterns(&buf, patterns)
	renderItems(&buf, items)

	out := buf.String()
	assert.Contains(t, out, "Patterns (1 effective)")
	assert.Contains(t, out, "bar 01")
	assert.Contains(t, out, "/t/bar.torrent")
	assert.Contains(t, out, "Items (2, 1 downloaded)")
}
