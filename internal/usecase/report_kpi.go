package usecase

import (
	"fmt"
	"time"

	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/infra/autofix"
)

// ReportKPIInput selects the reporting window. A zero Since means all time.
type ReportKPIInput struct {
	Since  time.Time
	TaskID string
}

// KPIReport aggregates remediation and evidence metrics.
type KPIReport struct {
	Window             string  `json:"window"`
	FixAttempts        int     `json:"fix_attempts"`
	FixSuccesses       int     `json:"fix_successes"`
	FixRollbacks       int     `json:"fix_rollbacks"`
	FixEscalations     int     `json:"fix_escalations"`
	FixSuccessRate     float64 `json:"fix_success_rate"`
	FixReuseRate       float64 `json:"fix_reuse_rate"`
	MTTRSeconds        float64 `json:"mttr_seconds"`
	EvidenceCompliance float64 `json:"evidence_compliance"`
	ChecklistAudited   string  `json:"checklist_audited,omitempty"`
}

// ReportKPI computes the operational metrics from the auto-fix log and the
// current checklist state.
type ReportKPI struct {
	events  *autofix.EventLog
	mapping domain.MappingStore
	auditor *AuditChecklist
	clock   domain.Clock
	logger  domain.Logger
}

// NewReportKPI creates a new ReportKPI use case.
func NewReportKPI(events *autofix.EventLog, mapping domain.MappingStore, auditor *AuditChecklist, clock domain.Clock, logger domain.Logger) *ReportKPI {
	return &ReportKPI{events: events, mapping: mapping, auditor: auditor, clock: clock, logger: logger}
}

// Execute computes the report. Metrics over an empty window report their
// vacuous value (a success rate of 1.0) rather than dividing by zero.
func (uc *ReportKPI) Execute(in ReportKPIInput) (*KPIReport, error) {
	events, err := uc.events.Read()
	if err != nil {
		return nil, fmt.Errorf("read auto-fix log: %w", err)
	}

	report := &KPIReport{Window: windowLabel(in.Since)}
	seen := make(map[string]bool)
	firstAttempt := make(map[string]time.Time)
	lastSuccess := make(map[string]time.Time)

	for _, ev := range events {
		if !in.Since.IsZero() && ev.Time.Before(in.Since) {
			// Pre-window attempts still count as prior sightings for reuse.
			if ev.Kind == autofix.EventAttempt {
				seen[ev.Signature] = true
			}
			continue
		}
		switch ev.Kind {
		case autofix.EventAttempt:
			report.FixAttempts++
			if seen[ev.Signature] {
				report.FixReuseRate++
			}
			seen[ev.Signature] = true
			if _, ok := firstAttempt[ev.Signature]; !ok {
				firstAttempt[ev.Signature] = ev.Time
			}
		case autofix.EventSuccess:
			report.FixSuccesses++
			lastSuccess[ev.Signature] = ev.Time
		case autofix.EventRollback:
			report.FixRollbacks++
		case autofix.EventEscalate:
			report.FixEscalations++
		}
	}

	if report.FixAttempts == 0 {
		report.FixSuccessRate = 1.0
	} else {
		report.FixSuccessRate = float64(report.FixAttempts-report.FixRollbacks) / float64(report.FixAttempts)
		report.FixReuseRate = report.FixReuseRate / float64(report.FixAttempts)
	}

	report.MTTRSeconds = meanTimeToRepair(firstAttempt, lastSuccess)

	mapping, err := uc.mapping.Load()
	if err != nil {
		return nil, err
	}
	report.EvidenceCompliance = 1.0
	if mapping.ChecklistFile != "" {
		audit, err := uc.auditor.Execute(AuditChecklistInput{ChecklistPath: mapping.ChecklistFile, TaskID: in.TaskID})
		if err == nil {
			report.EvidenceCompliance = audit.CompletionRatio()
			report.ChecklistAudited = mapping.ChecklistFile
		}
	}

	uc.logger.Global().Info("kpi report",
		"attempts", report.FixAttempts, "success_rate", report.FixSuccessRate, "mttr_s", report.MTTRSeconds)
	return report, nil
}

// meanTimeToRepair averages first-attempt to last-success per signature,
// over signatures that reached a success.
func meanTimeToRepair(firstAttempt, lastSuccess map[string]time.Time) float64 {
	var total time.Duration
	var n int
	for sig, success := range lastSuccess {
		attempt, ok := firstAttempt[sig]
		if !ok || success.Before(attempt) {
			continue
		}
		total += success.Sub(attempt)
		n++
	}
	if n == 0 {
		return 0
	}
	return (total / time.Duration(n)).Seconds()
}

func windowLabel(since time.Time) string {
	if since.IsZero() {
		return "all"
	}
	return "since " + since.UTC().Format(time.RFC3339)
}
