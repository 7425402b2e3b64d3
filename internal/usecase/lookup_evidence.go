package usecase

import (
	"github.com/mrkwtz/stagegate/internal/domain"
)

// LookupEvidence retrieves a single evidence record by id.
type LookupEvidence struct {
	evidence domain.EvidenceStore
}

// NewLookupEvidence creates a new LookupEvidence use case.
func NewLookupEvidence(evidence domain.EvidenceStore) *LookupEvidence {
	return &LookupEvidence{evidence: evidence}
}

// Execute resolves the id. Malformed ids fail the same way as absent ones.
func (uc *LookupEvidence) Execute(id string) (*domain.EvidenceRecord, error) {
	if _, _, _, ok := domain.ParseEvidenceID(id); !ok {
		return nil, domain.ErrEvidenceNotFound
	}
	return uc.evidence.Lookup(id)
}
