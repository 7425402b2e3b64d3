// Package snapshot captures reversible state before auto-fix mutations.
//
// Layout under .stagegate/snapshots/<id>:
//
//	manifest.json  → captured paths and metadata
//	files/<path>   → byte-for-byte copies of the captured files
//
// The manifest is flushed to stable storage before Create returns, so a
// crash between snapshot and mutation never leaves an un-rollback-able
// state.
package snapshot

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// Store implements domain.Snapshotter with file copies.
type Store struct {
	rootDir  string // .stagegate/snapshots
	repoRoot string
	vcs      domain.VCSInfo // nil degrades to no-op markers
	clock    domain.Clock
}

// New creates a snapshot Store.
func New(rootDir, repoRoot string, vcs domain.VCSInfo, clock domain.Clock) *Store {
	return &Store{rootDir: rootDir, repoRoot: repoRoot, vcs: vcs, clock: clock}
}

// Manifest describes one snapshot.
type Manifest struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Reason    string    `json:"reason"`
	Files     []string  `json:"files"`
	Deleted   []string  `json:"deleted,omitempty"` // Dirty paths absent from the worktree at capture time
	NoOp      bool      `json:"no_op"`             // True when there was nothing to capture
}

// Create captures every dirty worktree file. With no pending changes the
// snapshot is a no-op marker, not an error.
func (s *Store) Create(reason string) (string, error) {
	id, err := newSnapshotID(s.clock.Now())
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.rootDir, id)
	if err := os.MkdirAll(filepath.Join(dir, "files"), 0o750); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	manifest := Manifest{
		ID:        id,
		CreatedAt: s.clock.Now(),
		Reason:    reason,
	}

	var dirty []string
	if s.vcs != nil {
		dirty, err = s.vcs.DirtyPaths()
		if err != nil {
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("discover dirty paths: %w", err)
		}
	}

	for _, rel := range dirty {
		src := filepath.Join(s.repoRoot, rel)
		if _, err := os.Stat(src); err != nil {
			// Deleted files cannot be copied; the manifest lists them
			// separately so Restore knows to remove a recreated file.
			manifest.Deleted = append(manifest.Deleted, rel)
			continue
		}
		dst := filepath.Join(dir, "files", rel)
		if err := copyFile(src, dst); err != nil {
			_ = os.RemoveAll(dir)
			return "", err
		}
		manifest.Files = append(manifest.Files, rel)
	}
	manifest.NoOp = len(manifest.Files) == 0 && len(manifest.Deleted) == 0

	if err := writeManifestDurable(filepath.Join(dir, "manifest.json"), manifest); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	return id, nil
}

// Restore copies the captured files back into the worktree and removes
// files that did not exist at capture time.
func (s *Store) Restore(id string) error {
	manifest, err := s.readManifest(id)
	if err != nil {
		return err
	}
	for _, rel := range manifest.Files {
		src := filepath.Join(s.rootDir, id, "files", rel)
		dst := filepath.Join(s.repoRoot, rel)
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("restore %s: %w", rel, err)
		}
	}
	for _, rel := range manifest.Deleted {
		if err := os.Remove(filepath.Join(s.repoRoot, rel)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("restore deletion of %s: %w", rel, err)
		}
	}
	return nil
}

// Discard removes a snapshot after a confirmed successful fix.
func (s *Store) Discard(id string) error {
	dir := filepath.Join(s.rootDir, id)
	if _, err := os.Stat(dir); err != nil {
		return domain.ErrSnapshotNotFound
	}
	return os.RemoveAll(dir)
}

// List returns the retained snapshot ids, oldest first.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshots dir: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ReadManifest returns the manifest of a snapshot.
func (s *Store) ReadManifest(id string) (*Manifest, error) {
	m, err := s.readManifest(id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

var _ domain.Snapshotter = (*Store)(nil)

func (s *Store) readManifest(id string) (Manifest, error) {
	content, err := os.ReadFile(filepath.Join(s.rootDir, id, "manifest.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, domain.ErrSnapshotNotFound
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(content, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return manifest, nil
}

func newSnapshotID(now time.Time) (string, error) {
	suffix := make([]byte, 2)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate snapshot id: %w", err)
	}
	return "snap-" + now.UTC().Format("20060102150405") + "-" + hex.EncodeToString(suffix), nil
}

// writeManifestDurable writes the manifest and fsyncs both the file and
// its directory before returning.
func writeManifestDurable(path string, manifest Manifest) error {
	content, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}

	dir, err := os.Open(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("open snapshot dir: %w", err)
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return fmt.Errorf("sync snapshot dir: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy content: %w", err)
	}
	return out.Sync()
}
