package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// StateDirName is the repository-local state directory.
const StateDirName = ".stagegate"

// StateDir returns the path of the state directory for a repository root.
func StateDir(repoRoot string) string {
	return filepath.Join(repoRoot, StateDirName)
}

// TasksDir returns the directory holding task namespaces.
func TasksDir(stateDir string) string {
	return filepath.Join(stateDir, "tasks")
}

// TaskDir returns the private namespace directory of a task.
func TaskDir(stateDir, taskID string) string {
	return filepath.Join(TasksDir(stateDir), taskID)
}

// ArchiveDir returns the directory archived tasks are moved to.
func ArchiveDir(stateDir string) string {
	return filepath.Join(stateDir, "archive")
}

// EvidenceDir returns the root of the evidence store.
func EvidenceDir(stateDir string) string {
	return filepath.Join(stateDir, "evidence")
}

// MappingPath returns the path of the plan/checklist mapping file.
func MappingPath(stateDir string) string {
	return filepath.Join(stateDir, "mapping.yaml")
}

// SnapshotsDir returns the directory holding auto-fix snapshots.
func SnapshotsDir(stateDir string) string {
	return filepath.Join(stateDir, "snapshots")
}

// AutoFixLogPath returns the path of the auto-fix event log.
func AutoFixLogPath(stateDir string) string {
	return filepath.Join(stateDir, "autofix.log.jsonl")
}

// AgentLogPath returns the path of a task's agent invocation log.
func AgentLogPath(stateDir, taskID string) string {
	return filepath.Join(TaskDir(stateDir, taskID), "agents.log.jsonl")
}

// SigningKeyPath returns the path of the orchestrator signing key.
func SigningKeyPath(stateDir string) string {
	return filepath.Join(stateDir, "orchestrator.key")
}

// ConfigFileName is the repository config file name inside the state dir.
const ConfigFileName = "config.toml"

// GlobalLogPath returns the path of the global log file.
func GlobalLogPath(stateDir string) string {
	return filepath.Join(stateDir, "logs", "stagegate.log")
}

// TaskLogPath returns the path of a task's log file.
func TaskLogPath(stateDir, taskID string) string {
	return filepath.Join(stateDir, "logs", fmt.Sprintf("task-%s.log", taskID))
}

// slugPattern restricts slugs to lowercase alphanumerics and hyphens.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// taskIDPattern matches <slug>-<YYYYMMDDHHMMSS>-<4-hex>.
var taskIDPattern = regexp.MustCompile(`^([a-z0-9][a-z0-9-]*)-(\d{14})-([0-9a-f]{4})$`)

// ValidSlug returns true if s is usable as a task slug.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// NewTaskID builds a collision-resistant task id from a slug and a clock
// reading. The random suffix is redrawn on collision by the caller.
func NewTaskID(slug string, now time.Time) (string, error) {
	if !ValidSlug(slug) {
		return "", ErrEmptySlug
	}
	suffix := make([]byte, 2)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate id suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", slug, now.UTC().Format("20060102150405"), hex.EncodeToString(suffix)), nil
}

// ParseTaskID extracts the slug from a task id.
// ok is false if the id does not follow the naming convention.
func ParseTaskID(id string) (slug string, ok bool) {
	m := taskIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// NormalizeSlug lowercases and hyphenates free-form text into a slug.
func NormalizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastHyphen := true
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
