// Package app provides the dependency injection container for the application.
package app

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/infra/agentlog"
	"github.com/mrkwtz/stagegate/internal/infra/autofix"
	"github.com/mrkwtz/stagegate/internal/infra/config"
	"github.com/mrkwtz/stagegate/internal/infra/evidencestore"
	"github.com/mrkwtz/stagegate/internal/infra/gitinfo"
	"github.com/mrkwtz/stagegate/internal/infra/logging"
	"github.com/mrkwtz/stagegate/internal/infra/mapstore"
	"github.com/mrkwtz/stagegate/internal/infra/signing"
	"github.com/mrkwtz/stagegate/internal/infra/snapshot"
	"github.com/mrkwtz/stagegate/internal/infra/taskstore"
	"github.com/mrkwtz/stagegate/internal/usecase"
)

// Paths holds the resolved workspace locations.
type Paths struct {
	RepoRoot string // Directory the workspace was resolved from
	StateDir string // Path to the .stagegate directory
}

// Container provides dependency injection for the application.
// It holds all port implementations and provides factory methods for use cases.
type Container struct {
	Tasks    domain.TaskRepository
	Evidence domain.EvidenceStore
	Mapping  domain.MappingStore
	Agents   domain.AgentLog
	Signer   domain.Signer // nil until 'stagegate init' generates the key
	Snaps    domain.Snapshotter
	VCS      domain.VCSInfo // nil outside a git repository
	Config   domain.ConfigLoader
	Clock    domain.Clock
	Logger   domain.Logger

	FixEvents *autofix.EventLog
	FixRunner autofix.Runner

	Paths Paths
}

// New creates a Container rooted at dir. The workspace does not have to be
// initialized yet; operations that need the signing key or the state layout
// fail with their own sentinel errors.
func New(dir string) (*Container, error) {
	repoRoot, err := resolveRoot(dir)
	if err != nil {
		return nil, err
	}
	stateDir := domain.StateDir(repoRoot)
	clock := domain.RealClock{}

	// Missing git metadata degrades evidence records and snapshots, it
	// never blocks the workspace.
	var vcs domain.VCSInfo
	if client, err := gitinfo.Open(repoRoot); err == nil {
		vcs = client
	}

	var signer domain.Signer
	if s, err := signing.Load(domain.SigningKeyPath(stateDir)); err == nil {
		signer = s
	} else if !errors.Is(err, domain.ErrNoSigningKey) {
		return nil, err
	}

	configLoader := config.NewLoader(stateDir)
	cfg, err := configLoader.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.New(stateDir, logging.ParseLevel(cfg.Log.Level))

	return &Container{
		Tasks:     taskstore.New(stateDir, clock),
		Evidence:  evidencestore.New(domain.EvidenceDir(stateDir), clock, vcs),
		Mapping:   mapstore.New(domain.MappingPath(stateDir)),
		Agents:    agentlog.New(stateDir, signer),
		Signer:    signer,
		Snaps:     snapshot.New(domain.SnapshotsDir(stateDir), repoRoot, vcs, clock),
		VCS:       vcs,
		Config:    configLoader,
		Clock:     clock,
		Logger:    logger,
		FixEvents: autofix.NewEventLog(domain.AutoFixLogPath(stateDir)),
		FixRunner: autofix.ExecRunner,
		Paths:     Paths{RepoRoot: repoRoot, StateDir: stateDir},
	}, nil
}

// NewWithDeps creates a Container with custom dependencies for testing.
func NewWithDeps(paths Paths, tasks domain.TaskRepository, evidence domain.EvidenceStore, mapping domain.MappingStore, agents domain.AgentLog, snaps domain.Snapshotter, cfgLoader domain.ConfigLoader, clock domain.Clock, logger domain.Logger) *Container {
	return &Container{
		Tasks:     tasks,
		Evidence:  evidence,
		Mapping:   mapping,
		Agents:    agents,
		Snaps:     snaps,
		Config:    cfgLoader,
		Clock:     clock,
		Logger:    logger,
		FixEvents: autofix.NewEventLog(domain.AutoFixLogPath(paths.StateDir)),
		FixRunner: autofix.ExecRunner,
		Paths:     paths,
	}
}

// resolveRoot walks up from dir looking for an existing state directory,
// falling back to the git root, then to dir itself.
func resolveRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for cur := abs; ; cur = filepath.Dir(cur) {
		if info, err := os.Stat(domain.StateDir(cur)); err == nil && info.IsDir() {
			return cur, nil
		}
		if info, err := os.Stat(filepath.Join(cur, ".git")); err == nil && info.IsDir() {
			return cur, nil
		}
		if filepath.Dir(cur) == cur {
			return abs, nil
		}
	}
}

// UseCase factory methods

// InitWorkspaceUseCase returns a new InitWorkspace use case.
func (c *Container) InitWorkspaceUseCase() *usecase.InitWorkspace {
	return usecase.NewInitWorkspace(c.Paths.RepoRoot, c.Paths.StateDir)
}

// CreateTaskUseCase returns a new CreateTask use case.
func (c *Container) CreateTaskUseCase() *usecase.CreateTask {
	return usecase.NewCreateTask(c.Tasks, c.Config, c.Logger)
}

// ListTasksUseCase returns a new ListTasks use case.
func (c *Container) ListTasksUseCase() *usecase.ListTasks {
	return usecase.NewListTasks(c.Tasks)
}

// ShowTaskUseCase returns a new ShowTask use case.
func (c *Container) ShowTaskUseCase() *usecase.ShowTask {
	return usecase.NewShowTask(c.Tasks, c.Evidence, c.Agents)
}

// ArchiveTaskUseCase returns a new ArchiveTask use case.
func (c *Container) ArchiveTaskUseCase() *usecase.ArchiveTask {
	return usecase.NewArchiveTask(c.Tasks, c.Logger)
}

// AppendEvidenceUseCase returns a new AppendEvidence use case.
func (c *Container) AppendEvidenceUseCase() *usecase.AppendEvidence {
	return usecase.NewAppendEvidence(c.Tasks, c.Evidence, c.Logger)
}

// LookupEvidenceUseCase returns a new LookupEvidence use case.
func (c *Container) LookupEvidenceUseCase() *usecase.LookupEvidence {
	return usecase.NewLookupEvidence(c.Evidence)
}

// BindMappingUseCase returns a new BindMapping use case.
func (c *Container) BindMappingUseCase() *usecase.BindMapping {
	return usecase.NewBindMapping(c.Mapping, c.Logger)
}

// AuditChecklistUseCase returns a new AuditChecklist use case.
func (c *Container) AuditChecklistUseCase() *usecase.AuditChecklist {
	return usecase.NewAuditChecklist(c.Evidence, c.Mapping, c.Config, c.Clock)
}

// AdvancePhaseUseCase returns a new AdvancePhase use case.
func (c *Container) AdvancePhaseUseCase() *usecase.AdvancePhase {
	return usecase.NewAdvancePhase(c.Tasks, c.Evidence, c.Agents, c.AuditChecklistUseCase(), c.Config, c.Clock, c.Logger)
}

// RecordAgentUseCase returns a new RecordAgent use case.
func (c *Container) RecordAgentUseCase() *usecase.RecordAgent {
	return usecase.NewRecordAgent(c.Tasks, c.Agents, c.Logger)
}

// CheckEventUseCase returns a new CheckEvent use case.
func (c *Container) CheckEventUseCase() *usecase.CheckEvent {
	return usecase.NewCheckEvent(c.Tasks, c.Evidence, c.Mapping, c.AuditChecklistUseCase(), c.AdvancePhaseUseCase(), c.Config, c.VCS, c.Clock, c.Logger)
}

// ApplyFixUseCase returns a new ApplyFix use case.
func (c *Container) ApplyFixUseCase() (*usecase.ApplyFix, error) {
	cfg, err := c.Config.Load()
	if err != nil {
		return nil, err
	}
	engine := autofix.NewEngine(cfg, c.Snaps, c.FixEvents, c.FixRunner, c.Paths.RepoRoot, c.Clock)
	return usecase.NewApplyFix(engine, c.Logger), nil
}

// ReportKPIUseCase returns a new ReportKPI use case.
func (c *Container) ReportKPIUseCase() *usecase.ReportKPI {
	return usecase.NewReportKPI(c.FixEvents, c.Mapping, c.AuditChecklistUseCase(), c.Clock, c.Logger)
}
