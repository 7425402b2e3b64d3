package domain

// Phase represents one stage of the development workflow.
type Phase string

const (
	PhaseDiscovery      Phase = "discovery"      // Problem understood, constraints collected
	PhasePlanning       Phase = "planning"       // Plan and checklist written
	PhaseImplementation Phase = "implementation" // Code written
	PhaseTesting        Phase = "testing"        // Tests executed with recorded results
	PhaseReview         Phase = "review"         // Work reviewed
	PhaseRelease        Phase = "release"        // Artifact published
	PhaseAcceptance     Phase = "acceptance"     // Stakeholder sign-off
	PhaseClosure        Phase = "closure"        // Terminal; task archived
)

// phaseOrder is the fixed phase sequence. Phases are never skipped or
// reordered; rollback to an earlier phase is an explicit administrative
// action, never implicit.
var phaseOrder = []Phase{
	PhaseDiscovery,
	PhasePlanning,
	PhaseImplementation,
	PhaseTesting,
	PhaseReview,
	PhaseRelease,
	PhaseAcceptance,
	PhaseClosure,
}

// AllPhases returns the ordered phase sequence.
func AllPhases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// InitialPhase returns the first phase of the sequence.
func InitialPhase() Phase {
	return phaseOrder[0]
}

// ParsePhase returns the phase for the given string.
// Unknown strings are rejected; there is no silent fall-through.
func ParsePhase(s string) (Phase, error) {
	for _, p := range phaseOrder {
		if string(p) == s {
			return p, nil
		}
	}
	return "", ErrUnknownPhase
}

// IsValid returns true if the phase is a known value.
func (p Phase) IsValid() bool {
	for _, known := range phaseOrder {
		if p == known {
			return true
		}
	}
	return false
}

// Index returns the position of the phase in the sequence, or -1 if unknown.
func (p Phase) Index() int {
	for i, known := range phaseOrder {
		if p == known {
			return i
		}
	}
	return -1
}

// Next returns the immediate successor phase.
// ok is false for the terminal phase and for unknown values.
func (p Phase) Next() (Phase, bool) {
	i := p.Index()
	if i < 0 || i == len(phaseOrder)-1 {
		return "", false
	}
	return phaseOrder[i+1], true
}

// IsTerminal returns true if the phase is the last of the sequence.
func (p Phase) IsTerminal() bool {
	return p == phaseOrder[len(phaseOrder)-1]
}

// CanAdvanceTo returns true if target is the immediate successor of p.
func (p Phase) CanAdvanceTo(target Phase) bool {
	next, ok := p.Next()
	return ok && next == target
}

// Display returns a human-readable representation of the phase.
func (p Phase) Display() string {
	switch p {
	case PhaseDiscovery:
		return "Discovery"
	case PhasePlanning:
		return "Planning"
	case PhaseImplementation:
		return "Implementation"
	case PhaseTesting:
		return "Testing"
	case PhaseReview:
		return "Review"
	case PhaseRelease:
		return "Release"
	case PhaseAcceptance:
		return "Acceptance"
	case PhaseClosure:
		return "Closure"
	default:
		return string(p)
	}
}

// PhaseRequirements describes what must hold before a phase may be exited.
type PhaseRequirements struct {
	// RequiredEvidence lists evidence types that need at least one record.
	RequiredEvidence []EvidenceType

	// MutablePaths is the allow-list of glob patterns a mutation during
	// this phase may touch. Empty means no restriction.
	MutablePaths []string

	// ChecklistThreshold is the minimum complete-with-evidence ratio
	// required by the exit predicate. Zero disables the checklist audit.
	ChecklistThreshold float64

	// RequiresAgents is true for phases that mandate delegated work on
	// the full lane.
	RequiresAgents bool

	// RequiresFreshEvidence is true when the exit predicate rejects
	// evidence older than the configured freshness window.
	RequiresFreshEvidence bool
}

// phaseRequirements holds the per-phase exit requirements. The threshold
// values are configurable defaults; Config overrides apply on top.
var phaseRequirements = map[Phase]PhaseRequirements{
	PhaseDiscovery: {
		MutablePaths: []string{"docs/**", "notes/**"},
	},
	PhasePlanning: {
		RequiredEvidence: []EvidenceType{EvidenceArtifact},
		MutablePaths:     []string{"docs/**", "plans/**"},
	},
	PhaseImplementation: {
		RequiredEvidence:   []EvidenceType{EvidenceCommandOutput},
		ChecklistThreshold: 0.90,
		RequiresAgents:     true,
	},
	PhaseTesting: {
		RequiredEvidence:      []EvidenceType{EvidenceTestResult},
		ChecklistThreshold:    0.90,
		RequiresFreshEvidence: true,
	},
	PhaseReview: {
		RequiredEvidence: []EvidenceType{EvidenceCodeReview},
	},
	PhaseRelease: {
		RequiredEvidence: []EvidenceType{EvidenceArtifact, EvidenceCommandOutput},
	},
	PhaseAcceptance: {
		RequiredEvidence: []EvidenceType{EvidenceCodeReview},
	},
	PhaseClosure: {},
}

// Requirements returns the exit requirements for the phase.
func (p Phase) Requirements() PhaseRequirements {
	return phaseRequirements[p]
}
