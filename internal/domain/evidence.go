package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// EvidenceType classifies an evidence record.
type EvidenceType string

const (
	EvidenceTestResult    EvidenceType = "test_result"    // Captured test run
	EvidenceCodeReview    EvidenceType = "code_review"    // Review verdict
	EvidenceCommandOutput EvidenceType = "command_output" // Captured command run
	EvidenceArtifact      EvidenceType = "artifact"       // Copied file with content hash
)

// AllEvidenceTypes returns all valid evidence types.
func AllEvidenceTypes() []EvidenceType {
	return []EvidenceType{EvidenceTestResult, EvidenceCodeReview, EvidenceCommandOutput, EvidenceArtifact}
}

// ParseEvidenceType parses a string into an EvidenceType.
func ParseEvidenceType(s string) (EvidenceType, error) {
	for _, t := range AllEvidenceTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", ErrUnknownEvidenceType
}

// IsValid returns true if the type is a known value.
func (t EvidenceType) IsValid() bool {
	switch t {
	case EvidenceTestResult, EvidenceCodeReview, EvidenceCommandOutput, EvidenceArtifact:
		return true
	default:
		return false
	}
}

// EvidenceRecord is an immutable proof-of-work record. Corrections are new
// records, never in-place edits.
type EvidenceRecord struct {
	ID            string       `yaml:"id"`
	Type          EvidenceType `yaml:"type"`
	ChecklistItem string       `yaml:"checklist_item,omitempty"`
	Timestamp     time.Time    `yaml:"timestamp"`
	Artifact      Artifact     `yaml:"artifact"`
	Branch        string       `yaml:"branch,omitempty"`
	Commit        string       `yaml:"commit,omitempty"`
	TaskID        string       `yaml:"task_id,omitempty"`
}

// Artifact is the proof payload of an evidence record. Exactly one shape is
// populated depending on the record type: a copied file (Path + SHA256) or a
// captured command (Command + ExitCode + OutputSample). Review records carry
// Reviewer, Verdict and Notes instead.
type Artifact struct {
	Path         string `yaml:"path,omitempty"`
	SHA256       string `yaml:"sha256,omitempty"`
	Command      string `yaml:"command,omitempty"`
	ExitCode     *int   `yaml:"exit_code,omitempty"`
	OutputSample string `yaml:"output_sample,omitempty"`
	Reviewer     string `yaml:"reviewer,omitempty"`
	Verdict      string `yaml:"verdict,omitempty"`
	Notes        string `yaml:"notes,omitempty"`
}

// Validate checks the record against the schema for its declared type.
// Fields are checked structurally: present and non-empty / well-typed, not
// merely present as a key.
func (r *EvidenceRecord) Validate() error {
	if !r.Type.IsValid() {
		return &SchemaViolation{Type: r.Type, Field: "type", Reason: "unknown evidence type"}
	}
	if r.Timestamp.IsZero() {
		return &SchemaViolation{Type: r.Type, Field: "timestamp", Reason: "must be set"}
	}
	switch r.Type {
	case EvidenceTestResult, EvidenceCommandOutput:
		if r.Artifact.Command == "" {
			return &SchemaViolation{Type: r.Type, Field: "command", Reason: "required and non-empty"}
		}
		if r.Artifact.ExitCode == nil {
			return &SchemaViolation{Type: r.Type, Field: "exit_code", Reason: "required"}
		}
		if r.Artifact.OutputSample == "" {
			return &SchemaViolation{Type: r.Type, Field: "output_sample", Reason: "required and non-empty"}
		}
	case EvidenceCodeReview:
		if r.Artifact.Reviewer == "" {
			return &SchemaViolation{Type: r.Type, Field: "reviewer", Reason: "required and non-empty"}
		}
		if r.Artifact.Verdict == "" {
			return &SchemaViolation{Type: r.Type, Field: "verdict", Reason: "required and non-empty"}
		}
		if r.Artifact.Notes == "" {
			return &SchemaViolation{Type: r.Type, Field: "notes", Reason: "required and non-empty"}
		}
	case EvidenceArtifact:
		if r.Artifact.Path == "" {
			return &SchemaViolation{Type: r.Type, Field: "path", Reason: "required and non-empty"}
		}
		if len(r.Artifact.SHA256) != 64 {
			return &SchemaViolation{Type: r.Type, Field: "sha256", Reason: "must be 64 hex characters"}
		}
	}
	return nil
}

// evidenceIDPattern matches EVID-<year>W<2-digit ISO week>-<3-digit seq>.
var evidenceIDPattern = regexp.MustCompile(`^EVID-(\d{4})W(\d{2})-(\d{3})$`)

// FormatEvidenceID builds an evidence id for the given week bucket and
// sequence number.
func FormatEvidenceID(year, week, seq int) string {
	return fmt.Sprintf("EVID-%04dW%02d-%03d", year, week, seq)
}

// ParseEvidenceID splits an evidence id into its week bucket and sequence.
// ok is false for malformed ids.
func ParseEvidenceID(id string) (year, week, seq int, ok bool) {
	m := evidenceIDPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, 0, 0, false
	}
	year, _ = strconv.Atoi(m[1])
	week, _ = strconv.Atoi(m[2])
	seq, _ = strconv.Atoi(m[3])
	return year, week, seq, true
}

// WeekBucket returns the ISO week bucket name for t, e.g. "2025W44".
// Computed in UTC so bucket assignment does not depend on the host zone.
func WeekBucket(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04dW%02d", year, week)
}

// IsFresh returns true if the record is no older than window at time now.
func (r *EvidenceRecord) IsFresh(now time.Time, window time.Duration) bool {
	return now.UTC().Sub(r.Timestamp.UTC()) <= window
}
