// Package mapstore persists the plan/checklist id mapping.
// The mapping binds plan items to checklist items via stable identifiers,
// so prose rewording on either side never breaks the link.
package mapstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/mrkwtz/stagegate/internal/domain"
)

const mappingVersion = 1

// Store implements domain.MappingStore using a single YAML file.
// All writes are exclusive-locked read-modify-write cycles.
type Store struct {
	path     string
	lockPath string
}

// New creates a Store for the given mapping file path.
func New(path string) *Store {
	return &Store{path: path, lockPath: path + ".lock"}
}

// Bind idempotently upserts a mapping entry. Rebinding a plan item to the
// same checklist set is a no-op; rebinding to a different set fails with
// ErrDuplicatePlanID.
func (s *Store) Bind(entry domain.MappingEntry) error {
	if entry.PlanItemID == "" {
		return errors.New("plan item id cannot be empty")
	}
	if len(entry.ChecklistItemIDs) == 0 {
		return errors.New("at least one checklist item id is required")
	}

	return s.withLock(syscall.LOCK_EX, func() error {
		file, err := s.load()
		if err != nil {
			return err
		}

		for si := range file.Mappings {
			section := &file.Mappings[si]
			for pi := range section.PlanItems {
				if section.PlanItems[pi].ID != entry.PlanItemID {
					continue
				}
				existing := checklistIDs(section)
				if sameIDSet(existing, entry.ChecklistItemIDs) {
					return nil // Idempotent rebind
				}
				return fmt.Errorf("plan item %s: %w", entry.PlanItemID, domain.ErrDuplicatePlanID)
			}
		}

		section := domain.MappingSection{
			PlanSection: entry.PlanItemID,
			PlanItems:   []domain.PlanItem{{ID: entry.PlanItemID}},
		}
		for _, id := range entry.ChecklistItemIDs {
			section.ChecklistItems = append(section.ChecklistItems, domain.ChecklistItem{
				ID:                   id,
				RequiredEvidenceType: entry.RequiredEvidenceType,
			})
		}
		file.Mappings = append(file.Mappings, section)
		return s.save(file)
	})
}

// ResolveByPlanID returns the checklist item ids bound to a plan item.
func (s *Store) ResolveByPlanID(planItemID string) ([]string, error) {
	var ids []string
	err := s.withLock(syscall.LOCK_SH, func() error {
		file, err := s.load()
		if err != nil {
			return err
		}
		for si := range file.Mappings {
			section := &file.Mappings[si]
			for _, p := range section.PlanItems {
				if p.ID == planItemID {
					ids = checklistIDs(section)
					return nil
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Load returns the full mapping file.
func (s *Store) Load() (*domain.MappingFile, error) {
	var file *domain.MappingFile
	err := s.withLock(syscall.LOCK_SH, func() error {
		f, err := s.load()
		if err != nil {
			return err
		}
		file = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

var _ domain.MappingStore = (*Store)(nil)

func (s *Store) load() (*domain.MappingFile, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.MappingFile{Version: mappingVersion}, nil
		}
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	var file domain.MappingFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse mapping file: %w", err)
	}
	if file.Version == 0 {
		file.Version = mappingVersion
	}
	return &file, nil
}

func (s *Store) save(file *domain.MappingFile) error {
	content, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal mapping file: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *Store) withLock(lockType int, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create mapping dir: %w", err)
	}
	lock, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() {
		_ = syscall.Flock(int(lock.Fd()), syscall.LOCK_UN)
		_ = lock.Close()
	}()
	if err := syscall.Flock(int(lock.Fd()), lockType); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	return fn()
}

func checklistIDs(section *domain.MappingSection) []string {
	ids := make([]string, 0, len(section.ChecklistItems))
	for _, c := range section.ChecklistItems {
		ids = append(ids, c.ID)
	}
	return ids
}

func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
