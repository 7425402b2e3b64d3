// Package taskstore provides the file-based task namespace manager.
// Each task owns an isolated directory under .stagegate/tasks/<id>; no two
// tasks ever share mutable state.
package taskstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/mrkwtz/stagegate/internal/domain"
)

const descriptorSchema = 1

// idCollisionRetries bounds how often a fresh random suffix is drawn when a
// generated id already exists.
const idCollisionRetries = 5

// Store implements domain.TaskRepository using per-task directories.
type Store struct {
	stateDir string
	lockPath string
	clock    domain.Clock
}

// New creates a Store rooted at the given state directory.
func New(stateDir string, clock domain.Clock) *Store {
	return &Store{
		stateDir: stateDir,
		lockPath: filepath.Join(domain.TasksDir(stateDir), ".lock"),
		clock:    clock,
	}
}

// descriptorPayload is the on-disk task descriptor. Pointer fields make
// missing required keys detectable.
type descriptorPayload struct {
	Schema             *int                `json:"schema"`
	Slug               *string             `json:"slug"`
	Lane               *string             `json:"lane"`
	StartedAt          *string             `json:"started_at"`
	RequiredAgentCount *int                `json:"required_agent_count"`
	PhaseHistory       []phaseEntryPayload `json:"phase_history"`
	InvokedAgents      []string            `json:"invoked_agents,omitempty"`
	Archived           bool                `json:"archived,omitempty"`
}

type phaseEntryPayload struct {
	Phase      string `json:"phase"`
	EnteredAt  string `json:"entered_at"`
	ExitedAt   string `json:"exited_at,omitempty"`
	GatePassed bool   `json:"gate_passed"`
}

// Create allocates a namespace for a new task.
func (s *Store) Create(slug string, lane domain.Lane, requiredAgents int) (*domain.Task, error) {
	if !domain.ValidSlug(slug) {
		return nil, domain.ErrEmptySlug
	}

	var task *domain.Task
	err := s.withLockWrite(func() error {
		for attempt := 0; attempt < idCollisionRetries; attempt++ {
			id, err := domain.NewTaskID(slug, s.clock.Now())
			if err != nil {
				return err
			}
			dir := domain.TaskDir(s.stateDir, id)
			if _, err := os.Stat(dir); err == nil {
				// Collision: redraw the random suffix.
				continue
			}
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("create task namespace: %w", err)
			}

			task = &domain.Task{
				ID:                 id,
				Slug:               slug,
				Lane:               lane,
				StartedAt:          s.clock.Now(),
				RequiredAgentCount: requiredAgents,
			}
			task.EnterPhase(domain.InitialPhase(), task.StartedAt, false)
			return s.writeDescriptor(task)
		}
		return domain.ErrIDCollision
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Resolve retrieves a task by id, checking the archive as a fallback.
func (s *Store) Resolve(id string) (*domain.Task, error) {
	var task *domain.Task
	err := s.withLock(func() error {
		t, err := s.readDescriptor(domain.TaskDir(s.stateDir, id), id)
		if err == nil {
			task = t
			return nil
		}
		if !errors.Is(err, domain.ErrTaskNotFound) {
			return err
		}
		t, archErr := s.readDescriptor(filepath.Join(domain.ArchiveDir(s.stateDir), id), id)
		if archErr != nil {
			return err
		}
		t.Archived = true
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Save persists a task descriptor.
func (s *Store) Save(task *domain.Task) error {
	return s.withLockWrite(func() error {
		if task == nil {
			return errors.New("task is nil")
		}
		if task.Archived {
			return domain.ErrTaskArchived
		}
		if _, err := os.Stat(domain.TaskDir(s.stateDir, task.ID)); err != nil {
			return domain.ErrTaskNotFound
		}
		return s.writeDescriptor(task)
	})
}

// List returns all live tasks sorted by id.
func (s *Store) List() ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := s.withLock(func() error {
		entries, err := os.ReadDir(domain.TasksDir(s.stateDir))
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("read tasks dir: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			if _, ok := domain.ParseTaskID(entry.Name()); !ok {
				continue
			}
			task, err := s.readDescriptor(domain.TaskDir(s.stateDir, entry.Name()), entry.Name())
			if err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// Archive moves a task namespace under the archive directory.
func (s *Store) Archive(id string) error {
	return s.withLockWrite(func() error {
		src := domain.TaskDir(s.stateDir, id)
		if _, err := os.Stat(src); err != nil {
			return domain.ErrTaskNotFound
		}
		if err := os.MkdirAll(domain.ArchiveDir(s.stateDir), 0o750); err != nil {
			return fmt.Errorf("create archive dir: %w", err)
		}
		dst := filepath.Join(domain.ArchiveDir(s.stateDir), id)
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("archive task: %w", err)
		}
		return nil
	})
}

var _ domain.TaskRepository = (*Store)(nil)

func (s *Store) descriptorPath(dir string) string {
	return filepath.Join(dir, "task.json")
}

func (s *Store) readDescriptor(dir, id string) (*domain.Task, error) {
	content, err := os.ReadFile(s.descriptorPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("read task descriptor: %w", err)
	}

	var payload descriptorPayload
	if err := decodeJSONStrict(content, &payload); err != nil {
		return nil, fmt.Errorf("parse task descriptor: %w", err)
	}
	if payload.Schema == nil || payload.Slug == nil || payload.Lane == nil || payload.StartedAt == nil || payload.RequiredAgentCount == nil {
		return nil, errors.New("task descriptor missing required fields")
	}
	if *payload.Schema != descriptorSchema {
		return nil, fmt.Errorf("task descriptor schema mismatch: %d", *payload.Schema)
	}
	lane, err := domain.ParseLane(*payload.Lane)
	if err != nil {
		return nil, err
	}
	started, err := parseRFC3339(*payload.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid started_at: %w", err)
	}

	history := make([]domain.PhaseEntry, 0, len(payload.PhaseHistory))
	for _, e := range payload.PhaseHistory {
		phase, err := domain.ParsePhase(e.Phase)
		if err != nil {
			return nil, fmt.Errorf("phase history entry %q: %w", e.Phase, err)
		}
		entered, err := parseRFC3339(e.EnteredAt)
		if err != nil {
			return nil, fmt.Errorf("invalid entered_at: %w", err)
		}
		entry := domain.PhaseEntry{Phase: phase, EnteredAt: entered, GatePassed: e.GatePassed}
		if e.ExitedAt != "" {
			exited, err := parseRFC3339(e.ExitedAt)
			if err != nil {
				return nil, fmt.Errorf("invalid exited_at: %w", err)
			}
			entry.ExitedAt = exited
		}
		history = append(history, entry)
	}

	return &domain.Task{
		ID:                 id,
		Slug:               *payload.Slug,
		Lane:               lane,
		StartedAt:          started,
		RequiredAgentCount: *payload.RequiredAgentCount,
		PhaseHistory:       history,
		InvokedAgents:      payload.InvokedAgents,
		Archived:           payload.Archived,
	}, nil
}

func (s *Store) writeDescriptor(task *domain.Task) error {
	schema := descriptorSchema
	slug := task.Slug
	lane := string(task.Lane)
	started := formatRFC3339(task.StartedAt)
	agents := task.RequiredAgentCount

	payload := descriptorPayload{
		Schema:             &schema,
		Slug:               &slug,
		Lane:               &lane,
		StartedAt:          &started,
		RequiredAgentCount: &agents,
		InvokedAgents:      task.InvokedAgents,
		Archived:           task.Archived,
	}
	for _, e := range task.PhaseHistory {
		entry := phaseEntryPayload{
			Phase:      string(e.Phase),
			EnteredAt:  formatRFC3339(e.EnteredAt),
			GatePassed: e.GatePassed,
		}
		if !e.ExitedAt.IsZero() {
			entry.ExitedAt = formatRFC3339(e.ExitedAt)
		}
		payload.PhaseHistory = append(payload.PhaseHistory, entry)
	}

	content, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task descriptor: %w", err)
	}
	return writeAtomic(s.descriptorPath(domain.TaskDir(s.stateDir, task.ID)), content, 0o644)
}

func (s *Store) withLock(fn func() error) error {
	lock, err := s.acquireLock(syscall.LOCK_SH)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)
	return fn()
}

func (s *Store) withLockWrite(fn func() error) error {
	lock, err := s.acquireLock(syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)
	return fn()
}

func (s *Store) acquireLock(lockType int) (*os.File, error) {
	if err := os.MkdirAll(domain.TasksDir(s.stateDir), 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lock, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(lock.Fd()), lockType); err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	return lock, nil
}

func (s *Store) releaseLock(lock *os.File) {
	_ = syscall.Flock(int(lock.Fd()), syscall.LOCK_UN)
	_ = lock.Close()
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func formatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func decodeJSONStrict(content []byte, v any) error {
	dec := json.NewDecoder(strings.NewReader(string(content)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected trailing content")
	}
	return nil
}

func writeAtomic(path string, content []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, perm); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
