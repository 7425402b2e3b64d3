package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// CheckEvent is the lifecycle event gate. External tools call it on
// pre-mutation, pre-commit and phase-advance events and receive an
// allow/deny decision with the specific unmet conditions.
type CheckEvent struct {
	tasks    domain.TaskRepository
	evidence domain.EvidenceStore
	mapping  domain.MappingStore
	auditor  *AuditChecklist
	advance  *AdvancePhase
	config   domain.ConfigLoader
	vcs      domain.VCSInfo // nil degrades the fast-lane size check to a warning
	clock    domain.Clock
	logger   domain.Logger
}

// NewCheckEvent creates a new CheckEvent use case.
func NewCheckEvent(tasks domain.TaskRepository, evidence domain.EvidenceStore, mapping domain.MappingStore, auditor *AuditChecklist, advance *AdvancePhase, config domain.ConfigLoader, vcs domain.VCSInfo, clock domain.Clock, logger domain.Logger) *CheckEvent {
	return &CheckEvent{
		tasks:    tasks,
		evidence: evidence,
		mapping:  mapping,
		auditor:  auditor,
		advance:  advance,
		config:   config,
		vcs:      vcs,
		clock:    clock,
		logger:   logger,
	}
}

// Execute evaluates the event and returns the decision. In advisory mode
// violations are reported but never block; disabled mode allows
// everything without evaluation.
func (uc *CheckEvent) Execute(req domain.CheckRequest) (*domain.Decision, error) {
	cfg, err := uc.config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Enforcement.Mode == domain.EnforceDisabled {
		return &domain.Decision{Allow: true}, nil
	}

	violations, err := uc.evaluate(req, cfg)
	if err != nil {
		return nil, err
	}

	decision := &domain.Decision{Allow: true}
	for _, v := range violations {
		decision.Reasons = append(decision.Reasons, v.String())
		if !v.Warning && cfg.Enforcement.Mode == domain.EnforceStrict {
			decision.Allow = false
		}
	}
	uc.logger.Global().Info("lifecycle check",
		"event", string(req.EventType), "tool", req.ToolName, "allow", decision.Allow, "reasons", len(decision.Reasons))
	return decision, nil
}

func (uc *CheckEvent) evaluate(req domain.CheckRequest, cfg *domain.Config) ([]domain.Violation, error) {
	var task *domain.Task
	if req.TaskID != "" {
		t, err := uc.tasks.Resolve(req.TaskID)
		if err != nil {
			return []domain.Violation{{
				Condition:   fmt.Sprintf("task %s cannot be resolved", req.TaskID),
				Remediation: "create it with 'stagegate task new' or fix the task_id in the event payload",
			}}, nil
		}
		task = t
	}

	switch req.EventType {
	case domain.EventPreMutation:
		return uc.evaluatePreMutation(req, task, cfg)
	case domain.EventPreCommit:
		return uc.evaluatePreCommit(req, task, cfg)
	case domain.EventPhaseAdvance:
		return uc.evaluatePhaseAdvance(req, task)
	default:
		return []domain.Violation{{
			Condition: fmt.Sprintf("unknown event type %q", req.EventType),
		}}, nil
	}
}

func (uc *CheckEvent) evaluatePreMutation(req domain.CheckRequest, task *domain.Task, cfg *domain.Config) ([]domain.Violation, error) {
	var violations []domain.Violation

	phase := req.CurrentPhase
	if task != nil {
		phase = task.CurrentPhase()
	}
	if phase != "" && !phase.IsValid() {
		return []domain.Violation{{Condition: fmt.Sprintf("unknown phase %q in event payload", phase)}}, nil
	}

	violations = append(violations, pathViolations(req.StagedPaths, phase, task, cfg)...)
	violations = append(violations, uc.fastLaneSizeViolations(req.StagedPaths, task, cfg)...)

	// A mutation claimed as progress needs recent proof of work behind it.
	if task != nil && phase.Requirements().RequiresFreshEvidence {
		fresh, err := uc.hasFreshEvidence(task.ID, cfg)
		if err != nil {
			return nil, err
		}
		if !fresh {
			violations = append(violations, domain.Violation{
				Condition:   fmt.Sprintf("no evidence newer than %s backs this mutation", cfg.FreshnessWindow()),
				Remediation: "record fresh evidence for the work this mutation claims",
			})
		}
	}
	return violations, nil
}

func (uc *CheckEvent) evaluatePreCommit(req domain.CheckRequest, task *domain.Task, cfg *domain.Config) ([]domain.Violation, error) {
	var violations []domain.Violation

	phase := req.CurrentPhase
	if task != nil {
		phase = task.CurrentPhase()
	}
	violations = append(violations, pathViolations(req.StagedPaths, phase, task, cfg)...)
	violations = append(violations, uc.fastLaneSizeViolations(req.StagedPaths, task, cfg)...)

	mapping, err := uc.mapping.Load()
	if err != nil {
		return nil, err
	}
	if mapping.ChecklistFile == "" {
		return violations, nil
	}

	taskID := ""
	if task != nil {
		taskID = task.ID
	}
	report, err := uc.auditor.Execute(AuditChecklistInput{ChecklistPath: mapping.ChecklistFile, TaskID: taskID})
	if err != nil {
		// A missing checklist degrades to a weaker check, never silently.
		violations = append(violations, domain.Violation{
			Condition: fmt.Sprintf("checklist %s could not be audited: %v", mapping.ChecklistFile, err),
			Warning:   true,
		})
		return violations, nil
	}
	for _, hollow := range report.HollowItems {
		violations = append(violations, domain.Violation{
			Condition:   fmt.Sprintf("line %d: %q is checked off without valid evidence (%s)", hollow.Line, hollow.Text, hollow.Status),
			Remediation: "append an evidence record and reference it within the lookahead window",
		})
	}
	for _, r := range report.Results {
		if r.Status == domain.ItemStale {
			violations = append(violations, domain.Violation{
				Condition: fmt.Sprintf("line %d: evidence %s is older than the freshness window", r.Line, r.EvidenceID),
				Warning:   true,
			})
		}
	}
	return violations, nil
}

func (uc *CheckEvent) evaluatePhaseAdvance(req domain.CheckRequest, task *domain.Task) ([]domain.Violation, error) {
	if task == nil {
		return []domain.Violation{{
			Condition:   "phase_advance events require a task_id",
			Remediation: "include the task id in the event payload",
		}}, nil
	}
	from := task.CurrentPhase()
	next, ok := from.Next()
	if !ok {
		return []domain.Violation{{Condition: fmt.Sprintf("task is already in the terminal phase %s", from)}}, nil
	}

	mapping, err := uc.mapping.Load()
	if err != nil {
		return nil, err
	}
	out, err := uc.advance.Execute(AdvancePhaseInput{
		TaskID:        task.ID,
		From:          from,
		To:            next,
		ChecklistPath: mapping.ChecklistFile,
		DryRun:        true,
	})
	if err != nil {
		return nil, err
	}
	return out.Violations, nil
}

func (uc *CheckEvent) hasFreshEvidence(taskID string, cfg *domain.Config) (bool, error) {
	now := uc.clock.Now()
	window := cfg.FreshnessWindow()
	for _, bucket := range freshnessBuckets(now, window) {
		records, err := uc.evidence.ListBucket(bucket)
		if err != nil {
			return false, err
		}
		for _, r := range records {
			if (r.TaskID == "" || r.TaskID == taskID) && r.IsFresh(now, window) {
				return true, nil
			}
		}
	}
	return false, nil
}

// freshnessBuckets returns every week bucket overlapping [now-window, now].
// Freshness is purely age-based, so a record written just before a week
// boundary must still be found after it.
func freshnessBuckets(now time.Time, window time.Duration) []string {
	seen := make(map[string]bool)
	var buckets []string
	add := func(t time.Time) {
		if b := domain.WeekBucket(t); !seen[b] {
			seen[b] = true
			buckets = append(buckets, b)
		}
	}
	for t := now.Add(-window); t.Before(now); t = t.Add(7 * 24 * time.Hour) {
		add(t)
	}
	add(now)
	return buckets
}

// fastLaneSizeViolations enforces the fast lane's changed-line budget.
// Without version-control context the check degrades to a warning
// instead of silently passing.
func (uc *CheckEvent) fastLaneSizeViolations(staged []string, task *domain.Task, cfg *domain.Config) []domain.Violation {
	if task == nil || task.Lane != domain.LaneFast || cfg.Lanes.Fast.MaxLines <= 0 || len(staged) == 0 {
		return nil
	}
	if uc.vcs == nil {
		return []domain.Violation{{
			Condition: fmt.Sprintf("fast lane limits changes to %d lines, but there is no version control context to measure against", cfg.Lanes.Fast.MaxLines),
			Warning:   true,
		}}
	}
	changed, err := uc.vcs.ChangedLines(staged)
	if err != nil {
		return []domain.Violation{{
			Condition: fmt.Sprintf("fast lane limits changes to %d lines, but the changed-line count failed: %v", cfg.Lanes.Fast.MaxLines, err),
			Warning:   true,
		}}
	}
	if changed > cfg.Lanes.Fast.MaxLines {
		return []domain.Violation{{
			Condition:   fmt.Sprintf("change touches %d lines, over the fast lane's limit of %d", changed, cfg.Lanes.Fast.MaxLines),
			Remediation: "switch the task to the full lane or split the change",
		}}
	}
	return nil
}

// pathViolations checks staged paths against the phase's allow-list and
// the fast lane's path restriction.
func pathViolations(staged []string, phase domain.Phase, task *domain.Task, cfg *domain.Config) []domain.Violation {
	var violations []domain.Violation

	if phase.IsValid() {
		if patterns := phase.Requirements().MutablePaths; len(patterns) > 0 {
			for _, p := range staged {
				if !matchAny(patterns, p) {
					violations = append(violations, domain.Violation{
						Condition:   fmt.Sprintf("path %s is outside the mutable scope of phase %s", p, phase),
						Remediation: fmt.Sprintf("restrict the change to %s or advance the phase first", strings.Join(patterns, ", ")),
					})
				}
			}
		}
	}

	if task != nil && task.Lane == domain.LaneFast {
		if allowed := cfg.Lanes.Fast.AllowedPaths; len(allowed) > 0 {
			for _, p := range staged {
				if !matchAny(allowed, p) {
					violations = append(violations, domain.Violation{
						Condition:   fmt.Sprintf("path %s is outside the fast lane's allowed paths", p),
						Remediation: "switch the task to the full lane or restrict the change",
					})
				}
			}
		}
	}
	return violations
}

// matchAny reports whether the path matches any glob pattern. Patterns are
// escaped before compilation so user-supplied text cannot inject pattern
// syntax; only '*' and '**' keep their glob meaning.
func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if globMatch(pattern, path) {
			return true
		}
	}
	return false
}

func globMatch(pattern, path string) bool {
	var b strings.Builder
	b.WriteString("^")
	quoted := regexp.QuoteMeta(pattern)
	// QuoteMeta turns * into \*; expand the glob forms back.
	quoted = strings.ReplaceAll(quoted, `\*\*/`, `(?:.*/)?`)
	quoted = strings.ReplaceAll(quoted, `\*\*`, `.*`)
	quoted = strings.ReplaceAll(quoted, `\*`, `[^/]*`)
	b.WriteString(quoted)
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(path)
}
