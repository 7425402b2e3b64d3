// Package testutil provides shared test utilities and mock implementations.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// MockClock is a test double for domain.Clock.
type MockClock struct {
	NowTime time.Time
}

// Now returns the configured time.
func (m *MockClock) Now() time.Time {
	return m.NowTime
}

// Advance moves the clock forward.
func (m *MockClock) Advance(d time.Duration) {
	m.NowTime = m.NowTime.Add(d)
}

// MockTaskRepository is a test double for domain.TaskRepository.
type MockTaskRepository struct {
	Tasks   map[string]*domain.Task
	SaveErr error
	NextN   int
}

// NewMockTaskRepository creates a new MockTaskRepository with initialized maps.
func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{Tasks: make(map[string]*domain.Task)}
}

// Create allocates a task with a deterministic id.
func (m *MockTaskRepository) Create(slug string, lane domain.Lane, requiredAgents int) (*domain.Task, error) {
	m.NextN++
	task := &domain.Task{
		ID:                 fmt.Sprintf("%s-20260101000000-%04d", slug, m.NextN),
		Slug:               slug,
		Lane:               lane,
		RequiredAgentCount: requiredAgents,
		StartedAt:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	task.EnterPhase(domain.InitialPhase(), task.StartedAt, false)
	m.Tasks[task.ID] = task
	return task, nil
}

// Resolve retrieves a task by id.
func (m *MockTaskRepository) Resolve(id string) (*domain.Task, error) {
	task, ok := m.Tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

// Save stores the task.
func (m *MockTaskRepository) Save(task *domain.Task) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Tasks[task.ID] = task
	return nil
}

// List returns all live tasks.
func (m *MockTaskRepository) List() ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range m.Tasks {
		if !t.Archived {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Archive marks the task archived.
func (m *MockTaskRepository) Archive(id string) error {
	task, ok := m.Tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	task.Archived = true
	return nil
}

// MockEvidenceStore is a test double for domain.EvidenceStore.
type MockEvidenceStore struct {
	Records map[string]*domain.EvidenceRecord
	NextSeq map[string]int
	Clock   domain.Clock
}

// NewMockEvidenceStore creates a new MockEvidenceStore.
func NewMockEvidenceStore(clock domain.Clock) *MockEvidenceStore {
	return &MockEvidenceStore{
		Records: make(map[string]*domain.EvidenceRecord),
		NextSeq: make(map[string]int),
		Clock:   clock,
	}
}

// Append validates and stores the record with a bucket-scoped sequence.
func (m *MockEvidenceStore) Append(record *domain.EvidenceRecord) (string, error) {
	if record.Timestamp.IsZero() {
		record.Timestamp = m.Clock.Now()
	}
	if err := record.Validate(); err != nil {
		return "", err
	}
	bucket := domain.WeekBucket(record.Timestamp)
	m.NextSeq[bucket]++
	year, week := record.Timestamp.UTC().ISOWeek()
	record.ID = domain.FormatEvidenceID(year, week, m.NextSeq[bucket])
	m.Records[record.ID] = record
	return record.ID, nil
}

// Lookup retrieves a record by id.
func (m *MockEvidenceStore) Lookup(id string) (*domain.EvidenceRecord, error) {
	r, ok := m.Records[id]
	if !ok {
		return nil, domain.ErrEvidenceNotFound
	}
	return r, nil
}

// ListBucket returns all records of one week bucket.
func (m *MockEvidenceStore) ListBucket(bucket string) ([]*domain.EvidenceRecord, error) {
	var out []*domain.EvidenceRecord
	for _, r := range m.Records {
		if domain.WeekBucket(r.Timestamp) == bucket {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Buckets returns the distinct bucket names.
func (m *MockEvidenceStore) Buckets() ([]string, error) {
	set := make(map[string]bool)
	for _, r := range m.Records {
		set[domain.WeekBucket(r.Timestamp)] = true
	}
	var out []string
	for b := range set {
		out = append(out, b)
	}
	sort.Strings(out)
	return out, nil
}

// MockMappingStore is a test double for domain.MappingStore.
type MockMappingStore struct {
	File domain.MappingFile
}

// Bind appends the entry as a new section.
func (m *MockMappingStore) Bind(entry domain.MappingEntry) error {
	var items []domain.ChecklistItem
	for _, id := range entry.ChecklistItemIDs {
		items = append(items, domain.ChecklistItem{ID: id, RequiredEvidenceType: entry.RequiredEvidenceType})
	}
	m.File.Mappings = append(m.File.Mappings, domain.MappingSection{
		PlanItems:      []domain.PlanItem{{ID: entry.PlanItemID}},
		ChecklistItems: items,
	})
	return nil
}

// ResolveByPlanID returns the checklist ids for a plan item.
func (m *MockMappingStore) ResolveByPlanID(planItemID string) ([]string, error) {
	for _, sec := range m.File.Mappings {
		for _, p := range sec.PlanItems {
			if p.ID == planItemID {
				var out []string
				for _, c := range sec.ChecklistItems {
					out = append(out, c.ID)
				}
				return out, nil
			}
		}
	}
	return nil, nil
}

// Load returns the mapping file.
func (m *MockMappingStore) Load() (*domain.MappingFile, error) {
	return &m.File, nil
}

// MockAgentLog is a test double for domain.AgentLog.
type MockAgentLog struct {
	Invocations map[string][]domain.AgentInvocation
	RecordErr   error
}

// NewMockAgentLog creates a new MockAgentLog.
func NewMockAgentLog() *MockAgentLog {
	return &MockAgentLog{Invocations: make(map[string][]domain.AgentInvocation)}
}

// Record appends an invocation.
func (m *MockAgentLog) Record(taskID string, inv domain.AgentInvocation) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.Invocations[taskID] = append(m.Invocations[taskID], inv)
	return nil
}

// Count returns the number of recorded invocations.
func (m *MockAgentLog) Count(taskID string) (int, error) {
	return len(m.Invocations[taskID]), nil
}

// List returns the recorded invocations.
func (m *MockAgentLog) List(taskID string) ([]domain.AgentInvocation, error) {
	return m.Invocations[taskID], nil
}

// MockSnapshotter is a test double for domain.Snapshotter.
type MockSnapshotter struct {
	Created   []string
	Restored  []string
	Discarded []string
	CreateErr error
	NextN     int
}

// Create records the snapshot request.
func (m *MockSnapshotter) Create(reason string) (string, error) {
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.NextN++
	id := fmt.Sprintf("snap-%04d", m.NextN)
	m.Created = append(m.Created, id)
	return id, nil
}

// Restore records the rollback.
func (m *MockSnapshotter) Restore(id string) error {
	m.Restored = append(m.Restored, id)
	return nil
}

// Discard records the discard.
func (m *MockSnapshotter) Discard(id string) error {
	m.Discarded = append(m.Discarded, id)
	return nil
}

// List returns retained snapshot ids.
func (m *MockSnapshotter) List() ([]string, error) {
	retained := make(map[string]bool)
	for _, id := range m.Created {
		retained[id] = true
	}
	for _, id := range m.Discarded {
		delete(retained, id)
	}
	var out []string
	for id := range retained {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// StaticConfigLoader is a test double for domain.ConfigLoader.
type StaticConfigLoader struct {
	Cfg *domain.Config
	Err error
}

// Load returns the configured config.
func (l *StaticConfigLoader) Load() (*domain.Config, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	if l.Cfg == nil {
		return domain.NewDefaultConfig(), nil
	}
	return l.Cfg, nil
}

// NopLogger is a domain.Logger that drops everything.
type NopLogger struct{}

// Global returns a discarding logger.
func (NopLogger) Global() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Task returns a discarding logger.
func (NopLogger) Task(string) *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Close is a no-op.
func (NopLogger) Close() error { return nil }

// MockVCSInfo is a test double for domain.VCSInfo.
type MockVCSInfo struct {
	Branch       string
	Commit       string
	Dirty        []string
	ChangedCount int
	Err          error
}

// Context returns the configured branch and commit.
func (m *MockVCSInfo) Context() (string, string, error) {
	if m.Err != nil {
		return "", "", m.Err
	}
	return m.Branch, m.Commit, nil
}

// DirtyPaths returns the configured dirty paths.
func (m *MockVCSInfo) DirtyPaths() ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Dirty, nil
}

// ChangedLines returns the configured changed-line count.
func (m *MockVCSInfo) ChangedLines([]string) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.ChangedCount, nil
}
