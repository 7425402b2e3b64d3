package usecase

import (
	"fmt"
	"os"
	"time"

	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/infra/scan"
)

// AuditChecklistInput contains the parameters for auditing a checklist.
type AuditChecklistInput struct {
	ChecklistText string   // Used directly when non-empty
	ChecklistPath string   // Read from disk otherwise
	TaskID        string   // Restrict evidence resolution to one task (optional)
	RequireFresh  bool     // Treat stale evidence as blocking
	Keywords      []string // Required topics the checklist must mention outside code fences
}

// AuditChecklist is the anti-hollow gate: it validates every checked-off
// checklist item against the evidence store and the id mapping. An item
// counted complete without a resolvable evidence record is hollow — the
// failure mode this gate exists to catch.
type AuditChecklist struct {
	evidence domain.EvidenceStore
	mapping  domain.MappingStore
	config   domain.ConfigLoader
	clock    domain.Clock
}

// NewAuditChecklist creates a new AuditChecklist use case.
func NewAuditChecklist(evidence domain.EvidenceStore, mapping domain.MappingStore, config domain.ConfigLoader, clock domain.Clock) *AuditChecklist {
	return &AuditChecklist{evidence: evidence, mapping: mapping, config: config, clock: clock}
}

// Execute scans the checklist line by line and classifies every item.
// The scan is pure over its inputs: re-running it on unchanged input
// yields the same report.
func (uc *AuditChecklist) Execute(in AuditChecklistInput) (*domain.AuditReport, error) {
	text := in.ChecklistText
	if text == "" && in.ChecklistPath != "" {
		content, err := os.ReadFile(in.ChecklistPath)
		if err != nil {
			return nil, fmt.Errorf("read checklist: %w", err)
		}
		text = string(content)
	}

	cfg, err := uc.config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	requiredTypes, err := uc.requiredTypesByItem()
	if err != nil {
		return nil, err
	}

	lines := scan.Lines(text)
	items := scan.Items(lines)
	now := uc.clock.Now()
	window := cfg.FreshnessWindow()

	report := &domain.AuditReport{}
	for _, item := range items {
		result := domain.ChecklistResult{
			Line:    item.Line,
			ItemID:  item.ItemID,
			Text:    item.Text,
			Checked: item.Checked,
		}
		report.Total++
		if !item.Checked {
			report.Incomplete++
			report.Results = append(report.Results, result)
			continue
		}

		result.Status, result.EvidenceID = uc.classify(lines, item, requiredTypes, cfg.Audit.LookaheadLines, now, window, in.TaskID)

		switch result.Status {
		case domain.ItemComplete:
			report.CompleteWithEvidence++
		case domain.ItemStale:
			// Stale evidence blocks only when freshness is required.
			if in.RequireFresh {
				report.CompleteWithoutEvidence++
				report.HollowItems = append(report.HollowItems, result)
			} else {
				report.CompleteWithEvidence++
			}
		default:
			report.CompleteWithoutEvidence++
			report.HollowItems = append(report.HollowItems, result)
		}
		report.Results = append(report.Results, result)
	}

	// Keyword mentions inside code fences are quoted text, not coverage.
	for _, kw := range in.Keywords {
		if !scan.ContainsKeyword(lines, kw) {
			report.UnaddressedKeywords = append(report.UnaddressedKeywords, kw)
		}
	}
	return report, nil
}

// classify decides the status of one checked-off item and returns the
// referenced evidence id, if any.
func (uc *AuditChecklist) classify(lines []scan.Line, item scan.Item, requiredTypes map[string]domain.EvidenceType, window int, now time.Time, freshness time.Duration, taskID string) (domain.ItemStatus, string) {
	ref, ok := scan.EvidenceRef(lines, item.Line, window)
	if !ok {
		return domain.ItemMissing, ""
	}
	if _, _, _, valid := domain.ParseEvidenceID(ref); !valid {
		return domain.ItemInvalid, ref
	}

	record, err := uc.evidence.Lookup(ref)
	if err != nil {
		return domain.ItemInvalid, ref
	}
	if taskID != "" && record.TaskID != "" && record.TaskID != taskID {
		return domain.ItemInvalid, ref
	}
	// An evidence comment within the lookahead window may belong to a
	// different item; a record bound to another item id does not cover
	// this one.
	if record.ChecklistItem != "" && item.ItemID != "" && record.ChecklistItem != item.ItemID {
		return domain.ItemInvalid, ref
	}
	if required, bound := requiredTypes[item.ItemID]; bound && record.Type != required {
		return domain.ItemInvalid, ref
	}
	if !record.IsFresh(now, freshness) {
		return domain.ItemStale, ref
	}
	return domain.ItemComplete, ref
}

func (uc *AuditChecklist) requiredTypesByItem() (map[string]domain.EvidenceType, error) {
	file, err := uc.mapping.Load()
	if err != nil {
		return nil, fmt.Errorf("load mapping: %w", err)
	}
	required := make(map[string]domain.EvidenceType)
	for _, section := range file.Mappings {
		for _, c := range section.ChecklistItems {
			if c.RequiredEvidenceType != "" {
				required[c.ID] = c.RequiredEvidenceType
			}
		}
	}
	return required, nil
}
