package usecase

import (
	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/infra/autofix"
)

// ApplyFixInput identifies the failure to remediate.
type ApplyFixInput struct {
	Signature  string
	Confidence float64
	Confirmed  bool // Operator approval, required for tier3 and unmatched signatures
}

// ApplyFixOutput reports the applied tier and outcome.
type ApplyFixOutput struct {
	Result *autofix.Result
}

// ApplyFix runs the tiered remediation engine for one error signature.
type ApplyFix struct {
	engine *autofix.Engine
	logger domain.Logger
}

// NewApplyFix creates a new ApplyFix use case.
func NewApplyFix(engine *autofix.Engine, logger domain.Logger) *ApplyFix {
	return &ApplyFix{engine: engine, logger: logger}
}

// Execute classifies the signature and applies the matching fix. Tier3
// signatures and those with no matching rule return ErrConfirmRequired
// unless Confirmed is set.
func (uc *ApplyFix) Execute(in ApplyFixInput) (*ApplyFixOutput, error) {
	result, err := uc.engine.Apply(in.Signature, in.Confidence, in.Confirmed)
	if result != nil {
		uc.logger.Global().Info("auto-fix",
			"tier", string(result.Tier), "rule", result.Rule,
			"applied", result.Applied, "rolled_back", result.RolledBack, "escalated", result.Escalated)
	}
	if err != nil {
		return &ApplyFixOutput{Result: result}, err
	}
	return &ApplyFixOutput{Result: result}, nil
}
