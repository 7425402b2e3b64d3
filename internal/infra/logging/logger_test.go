package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_GlobalAndTaskFiles(t *testing.T) {
	stateDir := t.TempDir()
	l := New(stateDir, slog.LevelInfo)
	defer l.Close()

	l.Global().Info("engine started")
	l.Task("demo-20251028093015-ab12").Warn("checklist incomplete")

	global, err := os.ReadFile(domain.GlobalLogPath(stateDir))
	require.NoError(t, err)
	assert.Contains(t, string(global), "engine started")
	assert.Contains(t, string(global), "checklist incomplete")

	taskLog, err := os.ReadFile(domain.TaskLogPath(stateDir, "demo-20251028093015-ab12"))
	require.NoError(t, err)
	assert.Contains(t, string(taskLog), "checklist incomplete")
	assert.NotContains(t, string(taskLog), "engine started")
}

func TestLogger_LevelFiltersOutput(t *testing.T) {
	stateDir := t.TempDir()
	l := New(stateDir, slog.LevelWarn)
	defer l.Close()

	l.Global().Info("too quiet")
	l.Global().Error("loud enough")

	content, err := os.ReadFile(domain.GlobalLogPath(stateDir))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "too quiet")
	assert.Contains(t, string(content), "loud enough")
}

func TestLogger_DisabledWithoutStateDir(t *testing.T) {
	l := New("", slog.LevelInfo)
	defer l.Close()

	// Must not panic or create files anywhere.
	l.Global().Info("dropped")
	l.Task("t").Info("dropped too")

	_, err := os.Stat(filepath.Join(".", ".stagegate"))
	assert.True(t, os.IsNotExist(err))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
