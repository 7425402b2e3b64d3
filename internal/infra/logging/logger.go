// Package logging provides file-based logging for stagegate.
// It outputs logs to a global log file (.stagegate/logs/stagegate.log) and
// to task-specific log files (.stagegate/logs/task-<id>.log).
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// Ensure Logger implements domain.Logger interface.
var _ domain.Logger = (*Logger)(nil)

// Logger hands out slog loggers backed by lazily opened log files.
type Logger struct {
	globalFile *os.File
	taskFiles  map[string]*os.File
	stateDir   string
	mu         sync.Mutex
	level      slog.Level
}

// New creates a Logger that writes under the state directory's logs dir.
// If stateDir is empty, logging is disabled (loggers discard output).
func New(stateDir string, level slog.Level) *Logger {
	return &Logger{
		stateDir:  stateDir,
		level:     level,
		taskFiles: make(map[string]*os.File),
	}
}

// ParseLevel parses a log level string into slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Global returns a logger writing to the global log file.
func (l *Logger) Global() *slog.Logger {
	w, err := l.ensureGlobalFile()
	if err != nil {
		return discardLogger()
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l.level}))
}

// Task returns a logger writing to both the global and the task log file.
func (l *Logger) Task(taskID string) *slog.Logger {
	gf, err := l.ensureGlobalFile()
	if err != nil {
		return discardLogger()
	}
	tf, err := l.ensureTaskFile(taskID)
	if err != nil {
		return slog.New(slog.NewTextHandler(gf, &slog.HandlerOptions{Level: l.level})).With("task", taskID)
	}
	w := io.MultiWriter(gf, tf)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l.level})).With("task", taskID)
}

// Close closes all open log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var lastErr error
	if l.globalFile != nil {
		if err := l.globalFile.Close(); err != nil {
			lastErr = err
		}
		l.globalFile = nil
	}
	for id, f := range l.taskFiles {
		if err := f.Close(); err != nil {
			lastErr = err
		}
		delete(l.taskFiles, id)
	}
	return lastErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (l *Logger) ensureGlobalFile() (*os.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stateDir == "" {
		return nil, os.ErrInvalid
	}
	if l.globalFile != nil {
		return l.globalFile, nil
	}

	path := domain.GlobalLogPath(l.stateDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}
	// Log files are append-only and readable by repository users.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("open global log file: %w", err)
	}
	l.globalFile = f
	return f, nil
}

func (l *Logger) ensureTaskFile(taskID string) (*os.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f, ok := l.taskFiles[taskID]; ok {
		return f, nil
	}

	path := domain.TaskLogPath(l.stateDir, taskID)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("open task log file: %w", err)
	}
	l.taskFiles[taskID] = f
	return f, nil
}
