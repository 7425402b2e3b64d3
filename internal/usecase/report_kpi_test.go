package usecase

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/infra/autofix"
	"github.com/mrkwtz/stagegate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKPIFixture(t *testing.T) (*ReportKPI, *autofix.EventLog, *testutil.MockClock) {
	t.Helper()
	clock := &testutil.MockClock{NowTime: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	events := autofix.NewEventLog(filepath.Join(t.TempDir(), "autofix.jsonl"))
	evidence := testutil.NewMockEvidenceStore(clock)
	mapping := &testutil.MockMappingStore{}
	cfg := &testutil.StaticConfigLoader{}
	auditor := NewAuditChecklist(evidence, mapping, cfg, clock)
	uc := NewReportKPI(events, mapping, auditor, clock, testutil.NopLogger{})
	return uc, events, clock
}

func appendEvent(t *testing.T, log *autofix.EventLog, kind autofix.EventKind, sig string, at time.Time) {
	t.Helper()
	require.NoError(t, log.Append(autofix.Event{Time: at, Kind: kind, Signature: sig, Tier: "tier1"}))
}

func TestReportKPI_EmptyLogReportsVacuousValues(t *testing.T) {
	uc, _, _ := newKPIFixture(t)

	report, err := uc.Execute(ReportKPIInput{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.FixAttempts)
	assert.Equal(t, 1.0, report.FixSuccessRate)
	assert.Equal(t, 0.0, report.FixReuseRate)
	assert.Equal(t, 0.0, report.MTTRSeconds)
	assert.Equal(t, 1.0, report.EvidenceCompliance)
}

func TestReportKPI_SuccessRateAndMTTR(t *testing.T) {
	uc, events, clock := newKPIFixture(t)
	base := clock.NowTime

	appendEvent(t, events, autofix.EventAttempt, "sig-a", base)
	appendEvent(t, events, autofix.EventSuccess, "sig-a", base.Add(30*time.Second))
	appendEvent(t, events, autofix.EventAttempt, "sig-b", base.Add(time.Minute))
	appendEvent(t, events, autofix.EventRollback, "sig-b", base.Add(2*time.Minute))

	report, err := uc.Execute(ReportKPIInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.FixAttempts)
	assert.Equal(t, 1, report.FixSuccesses)
	assert.Equal(t, 1, report.FixRollbacks)
	// (attempts - rollbacks) / attempts
	assert.InDelta(t, 0.5, report.FixSuccessRate, 1e-9)
	// Only sig-a reached a success: 30s from first attempt to last success.
	assert.InDelta(t, 30.0, report.MTTRSeconds, 1e-9)
}

func TestReportKPI_ReuseRate(t *testing.T) {
	uc, events, clock := newKPIFixture(t)
	base := clock.NowTime

	appendEvent(t, events, autofix.EventAttempt, "sig-a", base)
	appendEvent(t, events, autofix.EventAttempt, "sig-a", base.Add(time.Minute))
	appendEvent(t, events, autofix.EventAttempt, "sig-b", base.Add(2*time.Minute))
	appendEvent(t, events, autofix.EventAttempt, "sig-a", base.Add(3*time.Minute))

	report, err := uc.Execute(ReportKPIInput{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.FixAttempts)
	// Second and third sig-a attempts reuse a known signature.
	assert.InDelta(t, 0.5, report.FixReuseRate, 1e-9)
}

func TestReportKPI_WindowFiltersEvents(t *testing.T) {
	uc, events, clock := newKPIFixture(t)
	base := clock.NowTime

	appendEvent(t, events, autofix.EventAttempt, "sig-old", base.Add(-48*time.Hour))
	appendEvent(t, events, autofix.EventRollback, "sig-old", base.Add(-47*time.Hour))
	appendEvent(t, events, autofix.EventAttempt, "sig-new", base)
	appendEvent(t, events, autofix.EventSuccess, "sig-new", base.Add(10*time.Second))

	report, err := uc.Execute(ReportKPIInput{Since: base.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 1, report.FixAttempts)
	assert.Equal(t, 0, report.FixRollbacks)
	assert.Equal(t, 1.0, report.FixSuccessRate)
}

func TestReportKPI_EvidenceComplianceFromChecklist(t *testing.T) {
	clock := &testutil.MockClock{NowTime: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	events := autofix.NewEventLog(filepath.Join(t.TempDir(), "autofix.jsonl"))
	evidence := testutil.NewMockEvidenceStore(clock)
	mapping := &testutil.MockMappingStore{}
	cfg := &testutil.StaticConfigLoader{}
	auditor := NewAuditChecklist(evidence, mapping, cfg, clock)
	uc := NewReportKPI(events, mapping, auditor, clock, testutil.NopLogger{})

	exit := 0
	id, err := evidence.Append(&domain.EvidenceRecord{
		Type:      domain.EvidenceTestResult,
		Timestamp: clock.NowTime.Add(-time.Minute),
		Artifact:  domain.Artifact{Command: "go test ./...", ExitCode: &exit, OutputSample: "ok\n"},
	})
	require.NoError(t, err)

	checklist := filepath.Join(t.TempDir(), "checklist.md")
	writeFile(t, checklist, "- [x] tests pass <!-- evidence: "+id+" -->\n- [x] hollow claim\n")
	mapping.File.ChecklistFile = checklist

	report, err := uc.Execute(ReportKPIInput{})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, report.EvidenceCompliance, 1e-9)
	assert.Equal(t, checklist, report.ChecklistAudited)
}
