package taskstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	stateDir := filepath.Join(t.TempDir(), domain.StateDirName)
	clock := &testutil.MockClock{NowTime: time.Date(2026, 1, 15, 9, 30, 5, 0, time.UTC)}
	return New(stateDir, clock), stateDir
}

func TestStore_CreateAndResolve(t *testing.T) {
	store, _ := newStore(t)

	task, err := store.Create("auth-refactor", domain.LaneFull, 3)
	require.NoError(t, err)
	assert.Contains(t, task.ID, "auth-refactor-20260115093005-")
	assert.Equal(t, domain.PhaseDiscovery, task.CurrentPhase())

	got, err := store.Resolve(task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Slug, got.Slug)
	assert.Equal(t, task.Lane, got.Lane)
	assert.Equal(t, task.RequiredAgentCount, got.RequiredAgentCount)
	assert.Equal(t, task.StartedAt, got.StartedAt)
	require.Len(t, got.PhaseHistory, 1)
	assert.Equal(t, domain.PhaseDiscovery, got.PhaseHistory[0].Phase)
}

func TestStore_CreateRejectsInvalidSlug(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Create("", domain.LaneFull, 3)
	assert.ErrorIs(t, err, domain.ErrEmptySlug)

	_, err = store.Create("Has Spaces", domain.LaneFull, 3)
	assert.ErrorIs(t, err, domain.ErrEmptySlug)
}

func TestStore_NamespacesAreIsolated(t *testing.T) {
	store, stateDir := newStore(t)

	a, err := store.Create("alpha", domain.LaneFull, 3)
	require.NoError(t, err)
	b, err := store.Create("beta", domain.LaneFast, 0)
	require.NoError(t, err)

	assert.NotEqual(t, domain.TaskDir(stateDir, a.ID), domain.TaskDir(stateDir, b.ID))
	assert.DirExists(t, domain.TaskDir(stateDir, a.ID))
	assert.DirExists(t, domain.TaskDir(stateDir, b.ID))
}

func TestStore_ResolveMissingTask(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Resolve("ghost-20260101000000-abcd")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestStore_SaveRoundTripsPhaseHistory(t *testing.T) {
	store, _ := newStore(t)

	task, err := store.Create("demo", domain.LaneFull, 3)
	require.NoError(t, err)

	now := time.Date(2026, 1, 16, 12, 0, 0, 0, time.UTC)
	task.EnterPhase(domain.PhasePlanning, now, true)
	task.InvokedAgents = []string{"unit-1"}
	require.NoError(t, store.Save(task))

	got, err := store.Resolve(task.ID)
	require.NoError(t, err)
	require.Len(t, got.PhaseHistory, 2)
	assert.Equal(t, domain.PhaseDiscovery, got.PhaseHistory[0].Phase)
	assert.Equal(t, now, got.PhaseHistory[0].ExitedAt)
	assert.True(t, got.PhaseHistory[0].GatePassed)
	assert.Equal(t, domain.PhasePlanning, got.CurrentPhase())
	assert.Equal(t, []string{"unit-1"}, got.InvokedAgents)
}

func TestStore_ListSkipsArchived(t *testing.T) {
	store, _ := newStore(t)

	a, err := store.Create("alpha", domain.LaneFull, 3)
	require.NoError(t, err)
	_, err = store.Create("beta", domain.LaneFull, 3)
	require.NoError(t, err)

	require.NoError(t, store.Archive(a.ID))

	tasks, err := store.List()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "beta", tasks[0].Slug)
}

func TestStore_ArchivePreservesHistory(t *testing.T) {
	store, stateDir := newStore(t)

	task, err := store.Create("demo", domain.LaneFull, 3)
	require.NoError(t, err)
	require.NoError(t, store.Archive(task.ID))

	assert.NoDirExists(t, domain.TaskDir(stateDir, task.ID))
	assert.DirExists(t, filepath.Join(domain.ArchiveDir(stateDir), task.ID))

	got, err := store.Resolve(task.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)
	assert.Equal(t, "demo", got.Slug)
}

func TestStore_CorruptDescriptorRejected(t *testing.T) {
	store, stateDir := newStore(t)

	task, err := store.Create("demo", domain.LaneFull, 3)
	require.NoError(t, err)

	path := filepath.Join(domain.TaskDir(stateDir, task.ID), "task.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"slug":"demo"`), 0o640))

	_, err = store.Resolve(task.ID)
	assert.Error(t, err)
}

func TestStore_DescriptorWithUnknownKeysRejected(t *testing.T) {
	store, stateDir := newStore(t)

	task, err := store.Create("demo", domain.LaneFull, 3)
	require.NoError(t, err)

	path := filepath.Join(domain.TaskDir(stateDir, task.ID), "task.json")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := []byte(`{"surprise":true,` + string(content[1:]))
	require.NoError(t, os.WriteFile(path, tampered, 0o640))

	_, err = store.Resolve(task.ID)
	assert.Error(t, err)
}
