package usecase

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/infra/config"
	"github.com/mrkwtz/stagegate/internal/infra/gitinfo"
	"github.com/mrkwtz/stagegate/internal/infra/signing"
)

// InitWorkspace bootstraps the state directory inside a repository: the
// namespace layout, the default config and the orchestrator signing key.
type InitWorkspace struct {
	repoRoot string
	stateDir string
}

// NewInitWorkspace creates a new InitWorkspace use case.
func NewInitWorkspace(repoRoot, stateDir string) *InitWorkspace {
	return &InitWorkspace{repoRoot: repoRoot, stateDir: stateDir}
}

// Execute initializes the workspace. Running it twice returns
// ErrAlreadyInitialized without touching existing state.
func (uc *InitWorkspace) Execute() error {
	keyPath := domain.SigningKeyPath(uc.stateDir)
	if _, err := os.Stat(keyPath); err == nil {
		return domain.ErrAlreadyInitialized
	}

	for _, dir := range []string{
		domain.TasksDir(uc.stateDir),
		domain.ArchiveDir(uc.stateDir),
		domain.EvidenceDir(uc.stateDir),
		domain.SnapshotsDir(uc.stateDir),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if err := config.WriteDefault(uc.stateDir); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := signing.GenerateKey(keyPath); err != nil {
		return err
	}

	// State files never belong in commits. Outside a git repository the
	// workspace simply has no exclusion entry.
	if _, err := os.Stat(filepath.Join(uc.repoRoot, ".git")); err == nil {
		if err := gitinfo.EnsureExcluded(uc.repoRoot); err != nil {
			return fmt.Errorf("update git exclude: %w", err)
		}
	}
	return nil
}
