// Package agentlog tracks delegated sub-task dispatches per task.
// Records are appended to a JSONL file inside the task namespace; each
// carries an orchestrator HMAC so dispatched units cannot forge entries.
package agentlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// maxDepth is the hard delegation ceiling: the orchestrator (0) may
// dispatch units (1); units never delegate further.
const maxDepth = 1

// Log implements domain.AgentLog on per-task JSONL files.
type Log struct {
	stateDir string
	signer   domain.Signer
}

// New creates a Log rooted at the state directory.
func New(stateDir string, signer domain.Signer) *Log {
	return &Log{stateDir: stateDir, signer: signer}
}

// Payload is the canonical string the orchestrator signs for an invocation.
func Payload(taskID string, inv domain.AgentInvocation) string {
	return taskID + "|" + inv.AgentName + "|" + strconv.Itoa(inv.Depth) + "|" +
		inv.InvokedAt.UTC().Format(time.RFC3339)
}

// Record appends an invocation after checking the depth ceiling and the
// authenticity signature. A violating record is never persisted.
func (l *Log) Record(taskID string, inv domain.AgentInvocation) error {
	if inv.Depth < 0 || inv.Depth > maxDepth {
		return fmt.Errorf("depth %d: %w", inv.Depth, domain.ErrDepthViolation)
	}
	if l.signer == nil {
		return domain.ErrNoSigningKey
	}
	if !l.signer.Verify(Payload(taskID, inv), inv.Signature) {
		return fmt.Errorf("agent %s: %w", inv.AgentName, domain.ErrSignatureInvalid)
	}

	path := domain.AgentLogPath(l.stateDir, taskID)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create task namespace: %w", err)
	}

	line, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal invocation: %w", err)
	}

	return withFileLock(path+".lock", func() error {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return fmt.Errorf("open agent log: %w", err)
		}
		defer f.Close()
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("append invocation: %w", err)
		}
		return nil
	})
}

// Count returns the number of recorded invocations for a task.
func (l *Log) Count(taskID string) (int, error) {
	invs, err := l.List(taskID)
	if err != nil {
		return 0, err
	}
	return len(invs), nil
}

// List returns all invocations recorded for a task.
func (l *Log) List(taskID string) ([]domain.AgentInvocation, error) {
	path := domain.AgentLogPath(l.stateDir, taskID)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open agent log: %w", err)
	}
	defer f.Close()

	var invs []domain.AgentInvocation
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var inv domain.AgentInvocation
		if err := json.Unmarshal(line, &inv); err != nil {
			return nil, fmt.Errorf("parse agent log line: %w", err)
		}
		invs = append(invs, inv)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read agent log: %w", err)
	}
	return invs, nil
}

var _ domain.AgentLog = (*Log)(nil)

func withFileLock(lockPath string, fn func() error) error {
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() {
		_ = syscall.Flock(int(lock.Fd()), syscall.LOCK_UN)
		_ = lock.Close()
	}()
	if err := syscall.Flock(int(lock.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	return fn()
}
