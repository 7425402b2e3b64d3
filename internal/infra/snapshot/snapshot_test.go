package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/testutil"
)

func newStore(t *testing.T, vcs domain.VCSInfo) (*Store, string) {
	t.Helper()
	repoRoot := t.TempDir()
	rootDir := filepath.Join(repoRoot, domain.StateDirName, "snapshots")
	clock := &testutil.MockClock{NowTime: time.Date(2026, 1, 15, 9, 30, 5, 0, time.UTC)}
	return New(rootDir, repoRoot, vcs, clock), repoRoot
}

func writeRepoFile(t *testing.T, repoRoot, rel, content string) {
	t.Helper()
	path := filepath.Join(repoRoot, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStore_CreateCapturesDirtyFiles(t *testing.T) {
	vcs := &testutil.MockVCSInfo{Dirty: []string{"main.go", "internal/auth/auth.go"}}
	store, repoRoot := newStore(t, vcs)
	writeRepoFile(t, repoRoot, "main.go", "package main\n")
	writeRepoFile(t, repoRoot, "internal/auth/auth.go", "package auth\n")

	id, err := store.Create("autofix: formatting-violation")
	require.NoError(t, err)
	assert.Contains(t, id, "snap-20260115093005-")

	manifest, err := store.ReadManifest(id)
	require.NoError(t, err)
	assert.False(t, manifest.NoOp)
	assert.Equal(t, "autofix: formatting-violation", manifest.Reason)
	assert.ElementsMatch(t, []string{"main.go", "internal/auth/auth.go"}, manifest.Files)
}

func TestStore_RestoreRevertsMutation(t *testing.T) {
	vcs := &testutil.MockVCSInfo{Dirty: []string{"main.go"}}
	store, repoRoot := newStore(t, vcs)
	writeRepoFile(t, repoRoot, "main.go", "original\n")

	id, err := store.Create("autofix: missing-dependency")
	require.NoError(t, err)

	writeRepoFile(t, repoRoot, "main.go", "mutated by a failed fix\n")
	require.NoError(t, store.Restore(id))

	content, err := os.ReadFile(filepath.Join(repoRoot, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "original\n", string(content))
}

func TestStore_CleanWorktreeIsNoOpMarker(t *testing.T) {
	store, _ := newStore(t, &testutil.MockVCSInfo{})

	id, err := store.Create("autofix: formatting-violation")
	require.NoError(t, err)

	manifest, err := store.ReadManifest(id)
	require.NoError(t, err)
	assert.True(t, manifest.NoOp)
	assert.Empty(t, manifest.Files)

	// Restoring a no-op marker restores nothing and does not fail.
	require.NoError(t, store.Restore(id))
}

func TestStore_NilVCSDegradesToNoOp(t *testing.T) {
	store, _ := newStore(t, nil)

	id, err := store.Create("autofix: formatting-violation")
	require.NoError(t, err)

	manifest, err := store.ReadManifest(id)
	require.NoError(t, err)
	assert.True(t, manifest.NoOp)
}

func TestStore_DiscardRemovesSnapshot(t *testing.T) {
	store, _ := newStore(t, &testutil.MockVCSInfo{})

	id, err := store.Create("autofix: missing-dependency")
	require.NoError(t, err)
	require.NoError(t, store.Discard(id))

	_, err = store.ReadManifest(id)
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	require.ErrorIs(t, store.Discard(id), domain.ErrSnapshotNotFound)

	ids, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_ListReturnsRetainedSnapshots(t *testing.T) {
	store, _ := newStore(t, &testutil.MockVCSInfo{})

	first, err := store.Create("autofix: missing-dependency")
	require.NoError(t, err)
	second, err := store.Create("autofix: formatting-violation")
	require.NoError(t, err)

	ids, err := store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first, second}, ids)
}

func TestStore_RestoreUnknownSnapshot(t *testing.T) {
	store, _ := newStore(t, &testutil.MockVCSInfo{})

	err := store.Restore("snap-20260101000000-beef")
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestStore_DeletedDirtyFileRecorded(t *testing.T) {
	// A path reported dirty because it was deleted cannot be copied; the
	// snapshot still succeeds and records the deletion in the manifest.
	vcs := &testutil.MockVCSInfo{Dirty: []string{"gone.go", "main.go"}}
	store, repoRoot := newStore(t, vcs)
	writeRepoFile(t, repoRoot, "main.go", "package main\n")

	id, err := store.Create("autofix: formatting-violation")
	require.NoError(t, err)

	manifest, err := store.ReadManifest(id)
	require.NoError(t, err)
	assert.False(t, manifest.NoOp)
	assert.Equal(t, []string{"main.go"}, manifest.Files)
	assert.Equal(t, []string{"gone.go"}, manifest.Deleted)
}

func TestStore_RestoreRemovesRecreatedFile(t *testing.T) {
	// A failed fix may recreate a file that was deleted before the
	// snapshot; Restore has to delete it again.
	vcs := &testutil.MockVCSInfo{Dirty: []string{"gone.go"}}
	store, repoRoot := newStore(t, vcs)

	id, err := store.Create("autofix: missing-dependency")
	require.NoError(t, err)

	writeRepoFile(t, repoRoot, "gone.go", "recreated by a failed fix\n")
	require.NoError(t, store.Restore(id))

	_, err = os.Stat(filepath.Join(repoRoot, "gone.go"))
	assert.True(t, os.IsNotExist(err))

	// Restore is idempotent when the file is already gone.
	require.NoError(t, store.Restore(id))
}
