package autofix

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// EventKind classifies auto-fix log events.
type EventKind string

const (
	EventAttempt  EventKind = "attempt"
	EventSuccess  EventKind = "success"
	EventRollback EventKind = "rollback"
	EventEscalate EventKind = "escalate"
)

// Event is one auto-fix log entry.
type Event struct {
	Time       time.Time `json:"time"`
	Kind       EventKind `json:"kind"`
	Signature  string    `json:"signature"`
	Rule       string    `json:"rule,omitempty"`
	Tier       string    `json:"tier"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// EventLog is the append-only JSONL auto-fix log.
type EventLog struct {
	path string
}

// NewEventLog creates an EventLog at path.
func NewEventLog(path string) *EventLog {
	return &EventLog{path: path}
}

// append writes one event under the log's exclusive lock. Logging failures
// are swallowed: the fix outcome matters more than the log line, and the
// KPI reporter tolerates gaps.
func (l *EventLog) append(ev Event) {
	_ = l.Append(ev)
}

// Append writes one event and reports any error.
func (l *EventLog) Append(ev Event) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	lock, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
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

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Read returns all events in append order.
func (l *EventLog) Read() ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("parse event log line: %w", err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	return events, nil
}
