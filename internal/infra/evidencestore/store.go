// Package evidencestore provides the append-only evidence record store.
//
// Layout under .stagegate/evidence:
//
//	<year>W<week>/
//	  index.json           → next sequence number for the bucket
//	  EVID-<bucket>-<seq>.yaml
//
// Record files are written once and never mutated; only the per-bucket
// index requires locking.
package evidencestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// Store implements domain.EvidenceStore on the local filesystem.
type Store struct {
	rootDir string
	clock   domain.Clock
	vcs     domain.VCSInfo // nil disables version-control context capture
}

// New creates a Store rooted at the evidence directory.
func New(rootDir string, clock domain.Clock, vcs domain.VCSInfo) *Store {
	return &Store{rootDir: rootDir, clock: clock, vcs: vcs}
}

type bucketIndex struct {
	NextSeq int `json:"next_seq"`
}

// Append validates and persists a record, assigning the next sequence
// number scoped to the current ISO week bucket. The sequence allocation and
// the record write happen under the bucket's exclusive lock, so concurrent
// invocations never collide (monotonic, unique within the bucket).
func (s *Store) Append(record *domain.EvidenceRecord) (string, error) {
	if record == nil {
		return "", errors.New("record is nil")
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = s.clock.Now()
	}
	if err := record.Validate(); err != nil {
		return "", err
	}

	if s.vcs != nil && (record.Branch == "" || record.Commit == "") {
		branch, commit, err := s.vcs.Context()
		if err == nil {
			record.Branch = branch
			record.Commit = commit
		}
		// Context failure is non-fatal; the record simply lacks VCS fields.
	}

	bucket := domain.WeekBucket(record.Timestamp)
	bucketDir := filepath.Join(s.rootDir, bucket)

	var id string
	err := s.withBucketLock(bucketDir, func() error {
		idx, err := s.readIndex(bucketDir)
		if err != nil {
			return err
		}
		seq := idx.NextSeq
		year, week := record.Timestamp.UTC().ISOWeek()
		id = domain.FormatEvidenceID(year, week, seq)
		record.ID = id

		content, err := yaml.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal evidence record: %w", err)
		}
		if err := writeAtomic(filepath.Join(bucketDir, id+".yaml"), content, 0o644); err != nil {
			return err
		}

		idx.NextSeq = seq + 1
		return s.writeIndex(bucketDir, idx)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Lookup retrieves a record by id. Record files are immutable, so no lock
// is taken for reads.
func (s *Store) Lookup(id string) (*domain.EvidenceRecord, error) {
	year, week, _, ok := domain.ParseEvidenceID(id)
	if !ok {
		return nil, domain.ErrEvidenceNotFound
	}
	bucket := fmt.Sprintf("%04dW%02d", year, week)
	path := filepath.Join(s.rootDir, bucket, id+".yaml")

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrEvidenceNotFound
		}
		return nil, fmt.Errorf("read evidence record: %w", err)
	}

	var record domain.EvidenceRecord
	if err := yaml.Unmarshal(content, &record); err != nil {
		return nil, fmt.Errorf("parse evidence record: %w", err)
	}
	return &record, nil
}

// ListBucket returns all records of one week bucket in sequence order.
func (s *Store) ListBucket(bucket string) ([]*domain.EvidenceRecord, error) {
	bucketDir := filepath.Join(s.rootDir, bucket)
	entries, err := os.ReadDir(bucketDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read bucket dir: %w", err)
	}

	var records []*domain.EvidenceRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		id := strings.TrimSuffix(name, ".yaml")
		if _, _, _, ok := domain.ParseEvidenceID(id); !ok {
			continue
		}
		record, err := s.Lookup(id)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Buckets returns the existing week bucket names, sorted.
func (s *Store) Buckets() ([]string, error) {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read evidence dir: %w", err)
	}
	var buckets []string
	for _, entry := range entries {
		if entry.IsDir() && len(entry.Name()) == 7 && entry.Name()[4] == 'W' {
			buckets = append(buckets, entry.Name())
		}
	}
	sort.Strings(buckets)
	return buckets, nil
}

var _ domain.EvidenceStore = (*Store)(nil)

func (s *Store) readIndex(bucketDir string) (bucketIndex, error) {
	content, err := os.ReadFile(filepath.Join(bucketDir, "index.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return bucketIndex{NextSeq: 1}, nil
		}
		return bucketIndex{}, fmt.Errorf("read bucket index: %w", err)
	}
	var idx bucketIndex
	if err := json.Unmarshal(content, &idx); err != nil {
		return bucketIndex{}, fmt.Errorf("parse bucket index: %w", err)
	}
	if idx.NextSeq < 1 {
		return bucketIndex{}, errors.New("bucket index next_seq must be positive")
	}
	return idx, nil
}

func (s *Store) writeIndex(bucketDir string, idx bucketIndex) error {
	content, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bucket index: %w", err)
	}
	return writeAtomic(filepath.Join(bucketDir, "index.json"), content, 0o644)
}

// withBucketLock runs fn holding the bucket's exclusive advisory lock.
// The lock is scoped to the bucket file and released on every exit path.
func (s *Store) withBucketLock(bucketDir string, fn func() error) error {
	if err := os.MkdirAll(bucketDir, 0o750); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}
	lock, err := os.OpenFile(filepath.Join(bucketDir, ".lock"), os.O_CREATE|os.O_RDWR, 0o600)
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
