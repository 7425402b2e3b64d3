package domain

// MappingFile is the persisted plan/checklist binding. It is the single
// source of truth for which checklist line corresponds to which plan line;
// rewording either side must not break the link.
type MappingFile struct {
	Version       int              `yaml:"version"`
	PlanFile      string           `yaml:"plan_file,omitempty"`
	ChecklistFile string           `yaml:"checklist_file,omitempty"`
	Mappings      []MappingSection `yaml:"mappings"`
}

// MappingSection groups plan items under a plan section heading.
type MappingSection struct {
	PlanSection    string          `yaml:"plan_section"`
	PlanItems      []PlanItem      `yaml:"plan_items"`
	ChecklistItems []ChecklistItem `yaml:"checklist_items"`
}

// PlanItem is one plan line with a stable id.
type PlanItem struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text,omitempty"`
}

// ChecklistItem is one checklist line with a stable id and the evidence
// type required for its completion claim.
type ChecklistItem struct {
	ID                   string       `yaml:"id"`
	Text                 string       `yaml:"text,omitempty"`
	RequiredEvidenceType EvidenceType `yaml:"required_evidence_type,omitempty"`
}

// MappingEntry binds one plan item to its checklist items.
type MappingEntry struct {
	PlanItemID           string
	ChecklistItemIDs     []string
	RequiredEvidenceType EvidenceType
}

// ItemStatus classifies one checked-off checklist item after validation.
type ItemStatus string

const (
	ItemComplete ItemStatus = "complete" // Checked with a valid, resolvable evidence reference
	ItemMissing  ItemStatus = "missing"  // Checked with no evidence reference in the lookahead window
	ItemInvalid  ItemStatus = "invalid"  // Checked with a malformed or unresolvable evidence id
	ItemStale    ItemStatus = "stale"    // Checked with evidence older than the freshness window
)

// ChecklistResult is the outcome of validating one checklist line.
type ChecklistResult struct {
	Line       int        // 1-based line number of the checklist item
	ItemID     string     // Stable item id if present on the line
	Text       string     // Item text as written
	Checked    bool       // True for [x] items
	Status     ItemStatus // Only meaningful for checked items
	EvidenceID string     // Referenced evidence id, if any
}

// AuditReport summarizes a checklist audit.
type AuditReport struct {
	Total                   int               `yaml:"total"`
	CompleteWithEvidence    int               `yaml:"complete_with_evidence"`
	CompleteWithoutEvidence int               `yaml:"complete_without_evidence"`
	Incomplete              int               `yaml:"incomplete"`
	UnaddressedKeywords     []string          `yaml:"unaddressed_keywords,omitempty"`
	HollowItems             []ChecklistResult `yaml:"-"`
	Results                 []ChecklistResult `yaml:"-"`
}

// CompletionRatio returns complete-with-evidence over all checked items.
// Returns 1 when nothing is checked, so an empty checklist never blocks.
func (r *AuditReport) CompletionRatio() float64 {
	checked := r.CompleteWithEvidence + r.CompleteWithoutEvidence
	if checked == 0 {
		return 1
	}
	return float64(r.CompleteWithEvidence) / float64(checked)
}
