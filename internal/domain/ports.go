package domain

import (
	"log/slog"
	"time"
)

// TaskRepository manages task namespace persistence.
type TaskRepository interface {
	// Create allocates a namespace for a new task. Returns ErrIDCollision
	// only after the internal retry bound is exhausted.
	Create(slug string, lane Lane, requiredAgents int) (*Task, error)

	// Resolve retrieves a task by id. Returns ErrTaskNotFound if the
	// namespace directory is absent or its descriptor is unreadable.
	Resolve(id string) (*Task, error)

	// Save persists a task descriptor.
	Save(task *Task) error

	// List returns all live (non-archived) tasks.
	List() ([]*Task, error)

	// Archive moves a task namespace under the archive directory.
	// Tasks are never hard-deleted.
	Archive(id string) error
}

// EvidenceStore is the append-only proof-of-work record store.
type EvidenceStore interface {
	// Append validates and persists a record, assigning the next sequence
	// number scoped to the current ISO week bucket. Returns the assigned id.
	Append(record *EvidenceRecord) (string, error)

	// Lookup retrieves a record by id. Returns ErrEvidenceNotFound if absent.
	Lookup(id string) (*EvidenceRecord, error)

	// ListBucket returns all records of one week bucket, in sequence order.
	ListBucket(bucket string) ([]*EvidenceRecord, error)

	// Buckets returns the existing week bucket names.
	Buckets() ([]string, error)
}

// MappingStore persists the plan/checklist binding.
type MappingStore interface {
	// Bind idempotently upserts a mapping entry. Returns ErrDuplicatePlanID
	// if the plan item is already bound to a different checklist set.
	Bind(entry MappingEntry) error

	// ResolveByPlanID returns the checklist item ids bound to a plan item.
	ResolveByPlanID(planItemID string) ([]string, error)

	// Load returns the full mapping file.
	Load() (*MappingFile, error)
}

// AgentLog tracks delegated sub-task dispatches for a task.
type AgentLog interface {
	// Record appends an invocation. Returns ErrDepthViolation for depth > 1
	// and ErrSignatureInvalid when the signature does not verify.
	Record(taskID string, inv AgentInvocation) error

	// Count returns the number of recorded invocations for a task.
	Count(taskID string) (int, error)

	// List returns all invocations recorded for a task.
	List(taskID string) ([]AgentInvocation, error)
}

// Signer computes and verifies orchestrator authenticity signatures.
// Dispatched units cannot forge them, since they lack the signing key.
type Signer interface {
	Sign(payload string) string
	Verify(payload, signature string) bool
}

// Snapshotter captures reversible state before an auto-fix mutation.
type Snapshotter interface {
	// Create captures the current reversible state. With no pending
	// changes the snapshot is a no-op marker, not an error. The snapshot
	// is durable (flushed) before Create returns.
	Create(reason string) (snapshotID string, err error)

	// Restore rolls the captured files back.
	Restore(snapshotID string) error

	// Discard removes a snapshot after a confirmed successful fix.
	Discard(snapshotID string) error

	// List returns the retained snapshot ids.
	List() ([]string, error)
}

// VCSInfo captures version-control context for evidence records.
type VCSInfo interface {
	// Context returns the current branch and short commit id.
	// Returns ErrToolMissing when the directory is not a repository;
	// callers degrade to empty context with a logged warning.
	Context() (branch, shortCommit string, err error)

	// DirtyPaths returns worktree paths with uncommitted modifications.
	DirtyPaths() ([]string, error)

	// ChangedLines counts the lines added or removed across the given
	// paths relative to HEAD.
	ChangedLines(paths []string) (int, error)
}

// ConfigLoader loads the merged configuration.
type ConfigLoader interface {
	Load() (*Config, error)
}

// Logger is the logging port. Implementations write to the global log and
// optionally to per-task log files.
type Logger interface {
	Global() *slog.Logger
	Task(taskID string) *slog.Logger
	Close() error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock in UTC.
// A single canonical clock representation keeps KPI time arithmetic
// correct across platforms.
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time { return time.Now().UTC() }
