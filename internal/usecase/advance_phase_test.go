package usecase

import (
	"testing"
	"time"

	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type advanceFixture struct {
	uc       *AdvancePhase
	tasks    *testutil.MockTaskRepository
	evidence *testutil.MockEvidenceStore
	agents   *testutil.MockAgentLog
	clock    *testutil.MockClock
}

func newAdvanceFixture(t *testing.T) *advanceFixture {
	t.Helper()
	clock := &testutil.MockClock{NowTime: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	tasks := testutil.NewMockTaskRepository()
	evidence := testutil.NewMockEvidenceStore(clock)
	agents := testutil.NewMockAgentLog()
	mapping := &testutil.MockMappingStore{}
	cfg := &testutil.StaticConfigLoader{}
	auditor := NewAuditChecklist(evidence, mapping, cfg, clock)
	uc := NewAdvancePhase(tasks, evidence, agents, auditor, cfg, clock, testutil.NopLogger{})
	return &advanceFixture{uc: uc, tasks: tasks, evidence: evidence, agents: agents, clock: clock}
}

func (f *advanceFixture) newTask(t *testing.T, lane domain.Lane, phase domain.Phase) *domain.Task {
	t.Helper()
	agents := 3
	if lane == domain.LaneFast {
		agents = 0
	}
	task, err := f.tasks.Create("demo", lane, agents)
	require.NoError(t, err)
	for task.CurrentPhase() != phase {
		next, ok := task.CurrentPhase().Next()
		require.True(t, ok)
		task.EnterPhase(next, f.clock.NowTime, true)
	}
	return task
}

func TestAdvancePhase_DiscoveryToPlanning(t *testing.T) {
	f := newAdvanceFixture(t)
	task := f.newTask(t, domain.LaneFull, domain.PhaseDiscovery)

	out, err := f.uc.Execute(AdvancePhaseInput{
		TaskID: task.ID,
		From:   domain.PhaseDiscovery,
		To:     domain.PhasePlanning,
	})
	require.NoError(t, err)
	assert.True(t, out.Advanced)
	assert.Empty(t, out.Violations)
	assert.Equal(t, domain.PhasePlanning, task.CurrentPhase())
	assert.True(t, task.PhaseHistory[0].GatePassed)
}

func TestAdvancePhase_SkippingPhasesRefused(t *testing.T) {
	f := newAdvanceFixture(t)
	task := f.newTask(t, domain.LaneFull, domain.PhaseDiscovery)

	out, err := f.uc.Execute(AdvancePhaseInput{
		TaskID: task.ID,
		From:   domain.PhaseDiscovery,
		To:     domain.PhaseTesting,
	})
	require.NoError(t, err)
	assert.False(t, out.Advanced)
	require.Len(t, out.Violations, 1)
	assert.Contains(t, out.Violations[0].Condition, "not the immediate successor")
	assert.Equal(t, domain.PhaseDiscovery, task.CurrentPhase())
}

func TestAdvancePhase_WrongCurrentPhaseRefused(t *testing.T) {
	f := newAdvanceFixture(t)
	task := f.newTask(t, domain.LaneFull, domain.PhasePlanning)

	out, err := f.uc.Execute(AdvancePhaseInput{
		TaskID: task.ID,
		From:   domain.PhaseDiscovery,
		To:     domain.PhasePlanning,
	})
	require.NoError(t, err)
	assert.False(t, out.Advanced)
	require.Len(t, out.Violations, 1)
	assert.Contains(t, out.Violations[0].Condition, "task is in phase planning")
}

func TestAdvancePhase_MissingEvidenceRefused(t *testing.T) {
	f := newAdvanceFixture(t)
	task := f.newTask(t, domain.LaneFull, domain.PhasePlanning)

	out, err := f.uc.Execute(AdvancePhaseInput{
		TaskID: task.ID,
		From:   domain.PhasePlanning,
		To:     domain.PhaseImplementation,
	})
	require.NoError(t, err)
	assert.False(t, out.Advanced)
	require.Len(t, out.Violations, 1)
	assert.Contains(t, out.Violations[0].Condition, "artifact")
	assert.Contains(t, out.Violations[0].Remediation, "stagegate evidence add")
}

func TestAdvancePhase_RefusalListsEveryUnmetCondition(t *testing.T) {
	f := newAdvanceFixture(t)
	task := f.newTask(t, domain.LaneFull, domain.PhaseImplementation)

	// Checklist with two hollow claims; no command_output evidence, no agents.
	checklist := t.TempDir() + "/checklist.md"
	writeFile(t, checklist, "- [x] implement the parser\n- [x] implement the writer\n")

	out, err := f.uc.Execute(AdvancePhaseInput{
		TaskID:        task.ID,
		From:          domain.PhaseImplementation,
		To:            domain.PhaseTesting,
		ChecklistPath: checklist,
	})
	require.NoError(t, err)
	assert.False(t, out.Advanced)

	var conditions []string
	for _, v := range out.Violations {
		conditions = append(conditions, v.Condition)
	}
	joined := ""
	for _, c := range conditions {
		joined += c + "\n"
	}
	// Evidence requirement, threshold, both hollow items, agent minimum.
	assert.Contains(t, joined, "command_output")
	assert.Contains(t, joined, "below the 90% threshold")
	assert.Contains(t, joined, `"implement the parser"`)
	assert.Contains(t, joined, `"implement the writer"`)
	assert.Contains(t, joined, "line 1")
	assert.Contains(t, joined, "line 2")
	assert.Contains(t, joined, "3 delegated invocations")
	assert.Equal(t, domain.PhaseImplementation, task.CurrentPhase())
}

func TestAdvancePhase_ImplementationGatePasses(t *testing.T) {
	f := newAdvanceFixture(t)
	task := f.newTask(t, domain.LaneFull, domain.PhaseImplementation)

	exit := 0
	id, err := f.evidence.Append(&domain.EvidenceRecord{
		Type:      domain.EvidenceCommandOutput,
		Timestamp: f.clock.NowTime.Add(-time.Minute),
		TaskID:    task.ID,
		Artifact:  domain.Artifact{Command: "go build ./...", ExitCode: &exit, OutputSample: "ok\n"},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.agents.Record(task.ID, domain.AgentInvocation{AgentName: "unit", Depth: 1}))
	}

	checklist := t.TempDir() + "/checklist.md"
	writeFile(t, checklist, "- [x] implement the parser <!-- evidence: "+id+" -->\n")

	out, err := f.uc.Execute(AdvancePhaseInput{
		TaskID:        task.ID,
		From:          domain.PhaseImplementation,
		To:            domain.PhaseTesting,
		ChecklistPath: checklist,
	})
	require.NoError(t, err)
	assert.True(t, out.Advanced)
	assert.Equal(t, domain.PhaseTesting, task.CurrentPhase())
}

func TestAdvancePhase_FastLaneSkipsAgentRequirement(t *testing.T) {
	f := newAdvanceFixture(t)
	task := f.newTask(t, domain.LaneFast, domain.PhaseImplementation)

	exit := 0
	id, err := f.evidence.Append(&domain.EvidenceRecord{
		Type:      domain.EvidenceCommandOutput,
		Timestamp: f.clock.NowTime.Add(-time.Minute),
		TaskID:    task.ID,
		Artifact:  domain.Artifact{Command: "go build ./...", ExitCode: &exit, OutputSample: "ok\n"},
	})
	require.NoError(t, err)

	checklist := t.TempDir() + "/checklist.md"
	writeFile(t, checklist, "- [x] fix the typo <!-- evidence: "+id+" -->\n")

	out, err := f.uc.Execute(AdvancePhaseInput{
		TaskID:        task.ID,
		From:          domain.PhaseImplementation,
		To:            domain.PhaseTesting,
		ChecklistPath: checklist,
	})
	require.NoError(t, err)
	assert.True(t, out.Advanced)
}

func TestAdvancePhase_StaleEvidenceWarnsWithoutBlocking(t *testing.T) {
	f := newAdvanceFixture(t)
	task := f.newTask(t, domain.LaneFast, domain.PhaseImplementation)

	// Implementation does not require fresh evidence, so a two-hour-old
	// record counts toward the threshold but surfaces as a warning.
	exit := 0
	id, err := f.evidence.Append(&domain.EvidenceRecord{
		Type:      domain.EvidenceCommandOutput,
		Timestamp: f.clock.NowTime.Add(-2 * time.Hour),
		TaskID:    task.ID,
		Artifact:  domain.Artifact{Command: "go build ./...", ExitCode: &exit, OutputSample: "ok\n"},
	})
	require.NoError(t, err)

	checklist := t.TempDir() + "/checklist.md"
	writeFile(t, checklist, "- [x] fix the typo <!-- evidence: "+id+" -->\n")

	out, err := f.uc.Execute(AdvancePhaseInput{
		TaskID:        task.ID,
		From:          domain.PhaseImplementation,
		To:            domain.PhaseTesting,
		ChecklistPath: checklist,
	})
	require.NoError(t, err)
	assert.True(t, out.Advanced)
	require.Len(t, out.Violations, 1)
	assert.True(t, out.Violations[0].Warning)
	assert.Contains(t, out.Violations[0].Condition, id)
	assert.Contains(t, out.Violations[0].Condition, "older than the freshness window")
}

func TestAdvancePhase_DryRunDoesNotMutate(t *testing.T) {
	f := newAdvanceFixture(t)
	task := f.newTask(t, domain.LaneFull, domain.PhaseDiscovery)

	out, err := f.uc.Execute(AdvancePhaseInput{
		TaskID: task.ID,
		From:   domain.PhaseDiscovery,
		To:     domain.PhasePlanning,
		DryRun: true,
	})
	require.NoError(t, err)
	assert.True(t, out.Advanced)
	assert.Equal(t, domain.PhaseDiscovery, task.CurrentPhase())
}

func TestAdvancePhase_ArchivedTaskRejected(t *testing.T) {
	f := newAdvanceFixture(t)
	task := f.newTask(t, domain.LaneFull, domain.PhaseDiscovery)
	task.Archived = true

	_, err := f.uc.Execute(AdvancePhaseInput{
		TaskID: task.ID,
		From:   domain.PhaseDiscovery,
		To:     domain.PhasePlanning,
	})
	assert.ErrorIs(t, err, domain.ErrTaskArchived)
}
