package domain

import "errors"

// Domain errors.
var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrEvidenceNotFound    = errors.New("evidence record not found")
	ErrIDCollision         = errors.New("task id collision after retries")
	ErrUnknownPhase        = errors.New("unknown phase")
	ErrUnknownLane         = errors.New("unknown lane")
	ErrUnknownEvidenceType = errors.New("unknown evidence type")
	ErrNotSuccessor        = errors.New("target phase is not the immediate successor")
	ErrTerminalPhase       = errors.New("task is in the terminal phase")
	ErrDuplicatePlanID     = errors.New("plan item already bound to a different checklist set")
	ErrDepthViolation      = errors.New("agent invocation depth exceeds 1 (cascading delegation)")
	ErrSignatureInvalid    = errors.New("agent invocation signature cannot be verified")
	ErrStaleEvidence       = errors.New("evidence is older than the freshness window")
	ErrNotInitialized      = errors.New("stagegate not initialized (run 'stagegate init' first)")
	ErrAlreadyInitialized  = errors.New("stagegate already initialized")
	ErrEmptySlug           = errors.New("task slug cannot be empty")
	ErrTaskArchived        = errors.New("task is archived")
	ErrConfirmRequired     = errors.New("fix requires explicit confirmation")
	ErrNoSigningKey        = errors.New("orchestrator signing key not found")
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrToolMissing         = errors.New("required external tool unavailable")
)

// SchemaViolation reports a malformed evidence record. It names the
// offending field so the caller can self-correct instead of guessing.
type SchemaViolation struct {
	Type   EvidenceType
	Field  string
	Reason string
}

func (e *SchemaViolation) Error() string {
	return "evidence schema violation: " + string(e.Type) + "." + e.Field + ": " + e.Reason
}
