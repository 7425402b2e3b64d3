package usecase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/infra/signing"
)

func TestInitWorkspace_CreatesLayout(t *testing.T) {
	repoRoot := t.TempDir()
	stateDir := filepath.Join(repoRoot, domain.StateDirName)

	require.NoError(t, NewInitWorkspace(repoRoot, stateDir).Execute())

	for _, dir := range []string{
		domain.TasksDir(stateDir),
		domain.ArchiveDir(stateDir),
		domain.EvidenceDir(stateDir),
		domain.SnapshotsDir(stateDir),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	_, err := os.Stat(filepath.Join(stateDir, domain.ConfigFileName))
	require.NoError(t, err)

	signer, err := signing.Load(domain.SigningKeyPath(stateDir))
	require.NoError(t, err)
	assert.NotEmpty(t, signer.Sign("probe"))
}

func TestInitWorkspace_SecondRunRefused(t *testing.T) {
	repoRoot := t.TempDir()
	stateDir := filepath.Join(repoRoot, domain.StateDirName)
	uc := NewInitWorkspace(repoRoot, stateDir)

	require.NoError(t, uc.Execute())
	require.ErrorIs(t, uc.Execute(), domain.ErrAlreadyInitialized)
}

func TestInitWorkspace_ExcludesStateDirInGitRepo(t *testing.T) {
	repoRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repoRoot, ".git", "info"), 0o750))
	stateDir := filepath.Join(repoRoot, domain.StateDirName)

	require.NoError(t, NewInitWorkspace(repoRoot, stateDir).Execute())

	content, err := os.ReadFile(filepath.Join(repoRoot, ".git", "info", "exclude"))
	require.NoError(t, err)
	assert.Contains(t, string(content), domain.StateDirName)
}

func TestInitWorkspace_OutsideGitRepo(t *testing.T) {
	repoRoot := t.TempDir()
	stateDir := filepath.Join(repoRoot, domain.StateDirName)

	require.NoError(t, NewInitWorkspace(repoRoot, stateDir).Execute())

	_, err := os.Stat(filepath.Join(repoRoot, ".git"))
	assert.True(t, os.IsNotExist(err))
}
