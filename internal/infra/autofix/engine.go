// Package autofix applies tiered automatic remediation to known error
// classes, protected by a mandatory pre-mutation snapshot and rollback
// path.
package autofix

import (
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// Tier is a confidence/risk band.
type Tier string

const (
	Tier1 Tier = "tier1" // Auto: high confidence, low risk, applied immediately
	Tier2 Tier = "tier2" // Try-then-ask: bounded attempts, escalate on failure
	Tier3 Tier = "tier3" // Must-confirm: never auto-applied
)

// Risk classifies a fix rule.
type Risk string

const (
	RiskLow  Risk = "low"
	RiskHigh Risk = "high"
)

// Rule matches an error signature to remediation commands.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Risk     Risk
	Commands [][]string // Tried in order until one succeeds
}

// defaultRules is the built-in pattern list. The enumerated patterns are
// illustrative, not complete; deployments extend the list via Register.
var defaultRules = []Rule{
	{
		Name:    "missing-dependency",
		Pattern: regexp.MustCompile(`(?i)(no required module provides|cannot find (module|package)|missing go\.sum entry)`),
		Risk:    RiskLow,
		Commands: [][]string{
			{"go", "mod", "tidy"},
			{"go", "mod", "download"},
		},
	},
	{
		Name:    "formatting-violation",
		Pattern: regexp.MustCompile(`(?i)(gofmt|file is not properly formatted|formatting violation)`),
		Risk:    RiskLow,
		Commands: [][]string{
			{"gofmt", "-w", "."},
		},
	},
	{
		Name:    "data-migration",
		Pattern: regexp.MustCompile(`(?i)(schema migration|data migration|alter table|drop (table|column))`),
		Risk:    RiskHigh,
	},
	{
		Name:    "security-sensitive",
		Pattern: regexp.MustCompile(`(?i)(credential|secret leak|permission change|security polic)`),
		Risk:    RiskHigh,
	},
}

// Runner executes one remediation command in a working directory.
// Stubbed in tests.
type Runner func(dir string, argv []string) error

// ExecRunner runs commands with os/exec.
func ExecRunner(dir string, argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", strings.Join(argv, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Result reports the outcome of one Apply call.
type Result struct {
	Tier       Tier
	Rule       string
	SnapshotID string
	Applied    bool
	RolledBack bool
	Escalated  bool // Tier2 attempts exhausted or tier3 awaiting confirmation
}

// Engine is the tiered remediation engine.
type Engine struct {
	cfg      *domain.Config
	snaps    domain.Snapshotter
	log      *EventLog
	runner   Runner
	rules    []Rule
	repoRoot string
	clock    domain.Clock
}

// NewEngine creates an Engine with the built-in rule set.
func NewEngine(cfg *domain.Config, snaps domain.Snapshotter, log *EventLog, runner Runner, repoRoot string, clock domain.Clock) *Engine {
	return &Engine{
		cfg:      cfg,
		snaps:    snaps,
		log:      log,
		runner:   runner,
		rules:    append([]Rule(nil), defaultRules...),
		repoRoot: repoRoot,
		clock:    clock,
	}
}

// Register adds a deployment-specific rule ahead of the built-ins.
func (e *Engine) Register(rule Rule) {
	e.rules = append([]Rule{rule}, e.rules...)
}

// Classify returns the tier and matched rule for an error signature.
func (e *Engine) Classify(signature string, confidence float64) (Tier, *Rule) {
	var matched *Rule
	for i := range e.rules {
		if e.rules[i].Pattern.MatchString(signature) {
			matched = &e.rules[i]
			break
		}
	}

	if matched != nil && matched.Risk == RiskHigh {
		return Tier3, matched
	}
	t2 := e.cfg.AutoFix.Tier2.ConfidenceRange
	switch {
	case matched != nil && confidence >= e.cfg.AutoFix.Tier1.ConfidenceMin:
		return Tier1, matched
	case len(t2) == 2 && confidence >= t2[0] && confidence < t2[1]:
		return Tier2, matched
	default:
		return Tier3, matched
	}
}

// Apply runs the remediation for an error signature.
//
// The ordering is the core safety property: the snapshot is created and
// flushed before any mutation, unconditionally. On failure the snapshot is
// restored and retained for audit; on success it is discarded.
func (e *Engine) Apply(signature string, confidence float64, confirmed bool) (*Result, error) {
	tier, rule := e.Classify(signature, confidence)
	res := &Result{Tier: tier}
	if rule != nil {
		res.Rule = rule.Name
	}

	e.log.append(Event{
		Time:       e.clock.Now(),
		Kind:       EventAttempt,
		Signature:  signature,
		Rule:       res.Rule,
		Tier:       string(tier),
		Confidence: confidence,
	})

	if tier == Tier3 && e.cfg.AutoFix.Tier3.AlwaysConfirm && !confirmed {
		res.Escalated = true
		e.log.append(Event{
			Time:      e.clock.Now(),
			Kind:      EventEscalate,
			Signature: signature,
			Rule:      res.Rule,
			Tier:      string(tier),
			Reason:    "confirmation required",
		})
		return res, domain.ErrConfirmRequired
	}

	if rule == nil || len(rule.Commands) == 0 {
		res.Escalated = true
		e.log.append(Event{
			Time:      e.clock.Now(),
			Kind:      EventEscalate,
			Signature: signature,
			Tier:      string(tier),
			Reason:    "no remediation commands for signature",
		})
		return res, fmt.Errorf("no remediation known for signature %q", signature)
	}

	snapID, err := e.snaps.Create("autofix: " + rule.Name)
	if err != nil {
		return res, fmt.Errorf("create snapshot: %w", err)
	}
	res.SnapshotID = snapID

	var attemptErrs []error
	for _, argv := range rule.Commands {
		if err := e.runner(e.repoRoot, argv); err != nil {
			attemptErrs = append(attemptErrs, err)
			continue
		}
		attemptErrs = nil
		break
	}

	if attemptErrs != nil {
		reason := errors.Join(attemptErrs...).Error()
		if restoreErr := e.snaps.Restore(snapID); restoreErr != nil {
			return res, fmt.Errorf("fix failed and rollback failed: %w", errors.Join(append(attemptErrs, restoreErr)...))
		}
		// Snapshot retained for audit after rollback.
		res.RolledBack = true
		e.log.append(Event{
			Time:       e.clock.Now(),
			Kind:       EventRollback,
			Signature:  signature,
			Rule:       rule.Name,
			Tier:       string(tier),
			SnapshotID: snapID,
			Reason:     reason,
		})
		if tier == Tier2 {
			res.Escalated = true
			e.log.append(Event{
				Time:      e.clock.Now(),
				Kind:      EventEscalate,
				Signature: signature,
				Rule:      rule.Name,
				Tier:      string(tier),
				Reason:    "all attempts failed",
			})
		}
		return res, fmt.Errorf("remediation failed, rolled back: %s", reason)
	}

	if err := e.snaps.Discard(snapID); err != nil {
		return res, fmt.Errorf("discard snapshot: %w", err)
	}
	res.Applied = true
	e.log.append(Event{
		Time:       e.clock.Now(),
		Kind:       EventSuccess,
		Signature:  signature,
		Rule:       rule.Name,
		Tier:       string(tier),
		Confidence: confidence,
	})
	return res, nil
}
