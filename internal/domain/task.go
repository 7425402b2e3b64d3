// Package domain contains core business entities and interfaces.
package domain

import "time"

// Lane is a task's required rigor level.
type Lane string

const (
	LaneFast Lane = "fast" // Minimal checks, no delegated work required
	LaneFull Lane = "full" // Full evidence and agent requirements
)

// ParseLane returns the lane for the given string.
func ParseLane(s string) (Lane, error) {
	switch Lane(s) {
	case LaneFast:
		return LaneFast, nil
	case LaneFull:
		return LaneFull, nil
	default:
		return "", ErrUnknownLane
	}
}

// PhaseEntry is one record of a task's phase history. The history is
// append-only; entries are never rewritten once exited.
type PhaseEntry struct {
	Phase      Phase     `json:"phase"`
	EnteredAt  time.Time `json:"entered_at"`
	ExitedAt   time.Time `json:"exited_at,omitzero"`
	GatePassed bool      `json:"gate_passed"`
}

// Task represents a unit of work moving through the phase sequence.
// Fields are ordered to minimize memory padding.
type Task struct {
	StartedAt          time.Time    `json:"started_at"`
	ID                 string       `json:"-"` // Stored as the namespace directory name
	Slug               string       `json:"slug"`
	Lane               Lane         `json:"lane"`
	PhaseHistory       []PhaseEntry `json:"phase_history"`
	InvokedAgents      []string     `json:"invoked_agents,omitempty"`
	RequiredAgentCount int          `json:"required_agent_count"`
	Archived           bool         `json:"archived,omitempty"`
}

// CurrentPhase returns the phase of the last history entry.
func (t *Task) CurrentPhase() Phase {
	if len(t.PhaseHistory) == 0 {
		return InitialPhase()
	}
	return t.PhaseHistory[len(t.PhaseHistory)-1].Phase
}

// EnterPhase appends a new history entry, closing the previous one.
func (t *Task) EnterPhase(p Phase, now time.Time, gatePassed bool) {
	if n := len(t.PhaseHistory); n > 0 {
		t.PhaseHistory[n-1].ExitedAt = now
		t.PhaseHistory[n-1].GatePassed = gatePassed
	}
	t.PhaseHistory = append(t.PhaseHistory, PhaseEntry{Phase: p, EnteredAt: now})
}

// HasInvokedAgent returns true if the named agent was already recorded.
func (t *Task) HasInvokedAgent(name string) bool {
	for _, a := range t.InvokedAgents {
		if a == name {
			return true
		}
	}
	return false
}

// AgentInvocation records one delegated sub-task dispatch.
// Depth 0 is the orchestrating process, 1 a dispatched unit; depth greater
// than 1 is a violation, not a state.
type AgentInvocation struct {
	InvokedAt   time.Time `json:"invoked_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	AgentName   string    `json:"agent_name"`
	Status      string    `json:"status"` // success | failure | timeout
	Signature   string    `json:"signature"`
	Depth       int       `json:"depth"`
}
