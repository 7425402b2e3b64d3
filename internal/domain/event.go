package domain

// EventType identifies the lifecycle event triggering a check.
type EventType string

const (
	EventPreMutation  EventType = "pre_mutation"  // Before a tool mutates files
	EventPreCommit    EventType = "pre_commit"    // Version-control pre-commit hook
	EventPhaseAdvance EventType = "phase_advance" // Explicit phase-advance request
)

// ParseEventType returns the event type for the given string.
func ParseEventType(s string) (EventType, bool) {
	switch EventType(s) {
	case EventPreMutation, EventPreCommit, EventPhaseAdvance:
		return EventType(s), true
	default:
		return "", false
	}
}

// CheckRequest is the lifecycle event payload consumed from the host tool.
type CheckRequest struct {
	EventType    EventType `json:"event_type"`
	ToolName     string    `json:"tool_name,omitempty"`
	StagedPaths  []string  `json:"staged_paths,omitempty"`
	CurrentPhase Phase     `json:"current_phase,omitempty"`
	TaskID       string    `json:"task_id,omitempty"`
}

// Decision is the engine's answer to a lifecycle event.
type Decision struct {
	Allow   bool     `json:"allow"`
	Reasons []string `json:"reasons,omitempty"`
}

// EnforcementMode controls how violations are applied.
type EnforcementMode string

const (
	EnforceStrict   EnforcementMode = "strict"   // Violations block
	EnforceAdvisory EnforcementMode = "advisory" // Violations reported, never block
	EnforceDisabled EnforcementMode = "disabled" // Checks skipped entirely
)

// Violation is one unmet condition with an actionable remediation hint.
// Blocking failures carry the specific condition, never a generic message.
type Violation struct {
	Condition   string `json:"condition"`
	Remediation string `json:"remediation,omitempty"`
	Warning     bool   `json:"warning,omitempty"` // True for non-fatal findings (e.g. stale evidence)
}

func (v Violation) String() string {
	if v.Remediation == "" {
		return v.Condition
	}
	return v.Condition + " (fix: " + v.Remediation + ")"
}
