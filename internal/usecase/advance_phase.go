package usecase

import (
	"fmt"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// AdvancePhaseInput contains the parameters for a phase-advance request.
type AdvancePhaseInput struct {
	TaskID        string
	From          domain.Phase
	To            domain.Phase
	ChecklistPath string // Checklist audited for phases with a threshold
	DryRun        bool   // Evaluate the predicate without mutating the task
}

// AdvancePhaseOutput reports the gate decision. On refusal the unmet
// conditions are returned verbatim so a caller can self-correct.
type AdvancePhaseOutput struct {
	Advanced   bool
	Violations []domain.Violation
}

// AdvancePhase is the phase state machine's transition operation.
type AdvancePhase struct {
	tasks    domain.TaskRepository
	evidence domain.EvidenceStore
	agents   domain.AgentLog
	auditor  *AuditChecklist
	config   domain.ConfigLoader
	clock    domain.Clock
	logger   domain.Logger
}

// NewAdvancePhase creates a new AdvancePhase use case.
func NewAdvancePhase(tasks domain.TaskRepository, evidence domain.EvidenceStore, agents domain.AgentLog, auditor *AuditChecklist, config domain.ConfigLoader, clock domain.Clock, logger domain.Logger) *AdvancePhase {
	return &AdvancePhase{
		tasks:    tasks,
		evidence: evidence,
		agents:   agents,
		auditor:  auditor,
		config:   config,
		clock:    clock,
		logger:   logger,
	}
}

// Execute attempts the transition. A refused advance leaves the task in
// its current phase; there is no stuck state.
func (uc *AdvancePhase) Execute(in AdvancePhaseInput) (*AdvancePhaseOutput, error) {
	task, err := uc.tasks.Resolve(in.TaskID)
	if err != nil {
		return nil, fmt.Errorf("resolve task: %w", err)
	}
	if task.Archived {
		return nil, domain.ErrTaskArchived
	}

	cfg, err := uc.config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	violations, err := uc.evaluate(task, in, cfg)
	if err != nil {
		return nil, err
	}

	out := &AdvancePhaseOutput{Violations: violations}
	if blocking(violations) {
		uc.logger.Task(task.ID).Warn("phase advance refused",
			"from", string(in.From), "to", string(in.To), "violations", len(violations))
		return out, nil
	}
	if in.DryRun {
		out.Advanced = true
		return out, nil
	}

	task.EnterPhase(in.To, uc.clock.Now(), true)
	if err := uc.tasks.Save(task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	out.Advanced = true
	uc.logger.Task(task.ID).Info("phase advanced", "from", string(in.From), "to", string(in.To))
	return out, nil
}

// evaluate computes the unmet conditions for the requested transition.
// Evaluation is idempotent: it never mutates the task or the stores.
func (uc *AdvancePhase) evaluate(task *domain.Task, in AdvancePhaseInput, cfg *domain.Config) ([]domain.Violation, error) {
	var violations []domain.Violation

	current := task.CurrentPhase()
	if current != in.From {
		violations = append(violations, domain.Violation{
			Condition:   fmt.Sprintf("task is in phase %s, not %s", current, in.From),
			Remediation: fmt.Sprintf("re-run against the task's actual phase (%s)", current),
		})
		return violations, nil
	}
	if !in.From.CanAdvanceTo(in.To) {
		violations = append(violations, domain.Violation{
			Condition:   fmt.Sprintf("%s is not the immediate successor of %s", in.To, in.From),
			Remediation: successorHint(in.From),
		})
		return violations, nil
	}

	req := in.From.Requirements()

	for _, evType := range req.RequiredEvidence {
		n, err := uc.countEvidence(task.ID, evType)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			violations = append(violations, domain.Violation{
				Condition:   fmt.Sprintf("phase %s requires at least one %s evidence record, found none", in.From, evType),
				Remediation: fmt.Sprintf("record one with 'stagegate evidence add --task %s --type %s'", task.ID, evType),
			})
		}
	}

	if req.ChecklistThreshold > 0 {
		threshold := cfg.Audit.CompletionThreshold
		if in.ChecklistPath == "" {
			violations = append(violations, domain.Violation{
				Condition:   fmt.Sprintf("phase %s requires a checklist audit but no checklist was provided", in.From),
				Remediation: "pass --checklist pointing at the phase checklist",
			})
		} else {
			report, err := uc.auditor.Execute(AuditChecklistInput{
				ChecklistPath: in.ChecklistPath,
				TaskID:        task.ID,
				RequireFresh:  req.RequiresFreshEvidence,
			})
			if err != nil {
				return nil, err
			}
			if ratio := report.CompletionRatio(); ratio < threshold {
				violations = append(violations, domain.Violation{
					Condition: fmt.Sprintf("checklist completion with evidence is %.0f%%, below the %.0f%% threshold",
						ratio*100, threshold*100),
				})
				for _, hollow := range report.HollowItems {
					violations = append(violations, domain.Violation{
						Condition:   fmt.Sprintf("line %d: %q is checked off without valid evidence (%s)", hollow.Line, hollow.Text, hollow.Status),
						Remediation: "append an evidence record and reference it within the lookahead window",
					})
				}
			}
			if !req.RequiresFreshEvidence {
				// Stale items still count toward the ratio here, but the
				// caller should know their evidence has aged out.
				for _, r := range report.Results {
					if r.Status == domain.ItemStale {
						violations = append(violations, domain.Violation{
							Condition: fmt.Sprintf("line %d: evidence %s is older than the freshness window", r.Line, r.EvidenceID),
							Warning:   true,
						})
					}
				}
			}
		}
	}

	if req.RequiresAgents && task.RequiredAgentCount > 0 {
		n, err := uc.agents.Count(task.ID)
		if err != nil {
			return nil, fmt.Errorf("count agent invocations: %w", err)
		}
		if n < task.RequiredAgentCount {
			violations = append(violations, domain.Violation{
				Condition:   fmt.Sprintf("phase %s requires %d delegated invocations on the %s lane, found %d", in.From, task.RequiredAgentCount, task.Lane, n),
				Remediation: "dispatch the remaining sub-tasks and record them with 'stagegate agent record'",
			})
		}
	}

	return violations, nil
}

func (uc *AdvancePhase) countEvidence(taskID string, evType domain.EvidenceType) (int, error) {
	buckets, err := uc.evidence.Buckets()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, bucket := range buckets {
		records, err := uc.evidence.ListBucket(bucket)
		if err != nil {
			return 0, err
		}
		for _, r := range records {
			if r.Type == evType && (r.TaskID == "" || r.TaskID == taskID) {
				n++
			}
		}
	}
	return n, nil
}

func successorHint(from domain.Phase) string {
	next, ok := from.Next()
	if !ok {
		return "the task is already in the terminal phase"
	}
	return fmt.Sprintf("advance to %s instead", next)
}

func blocking(violations []domain.Violation) bool {
	for _, v := range violations {
		if !v.Warning {
			return true
		}
	}
	return false
}
