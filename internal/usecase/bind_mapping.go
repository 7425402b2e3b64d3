package usecase

import (
	"fmt"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// BindMappingInput binds one plan item to its checklist items.
type BindMappingInput struct {
	PlanItemID           string
	ChecklistItemIDs     []string
	RequiredEvidenceType string
}

// BindMapping maintains the plan/checklist id mapping.
type BindMapping struct {
	mapping domain.MappingStore
	logger  domain.Logger
}

// NewBindMapping creates a new BindMapping use case.
func NewBindMapping(mapping domain.MappingStore, logger domain.Logger) *BindMapping {
	return &BindMapping{mapping: mapping, logger: logger}
}

// Execute upserts the binding. Re-binding the same set is a no-op; a
// different set for an existing plan id is rejected so stale bindings
// cannot be silently overwritten.
func (uc *BindMapping) Execute(in BindMappingInput) error {
	if in.PlanItemID == "" {
		return fmt.Errorf("plan item id must not be empty")
	}
	if len(in.ChecklistItemIDs) == 0 {
		return fmt.Errorf("at least one checklist item id is required")
	}

	entry := domain.MappingEntry{
		PlanItemID:       in.PlanItemID,
		ChecklistItemIDs: in.ChecklistItemIDs,
	}
	if in.RequiredEvidenceType != "" {
		evType, err := domain.ParseEvidenceType(in.RequiredEvidenceType)
		if err != nil {
			return err
		}
		entry.RequiredEvidenceType = evType
	}

	if err := uc.mapping.Bind(entry); err != nil {
		return err
	}
	uc.logger.Global().Info("mapping bound",
		"plan_item", in.PlanItemID, "checklist_items", len(in.ChecklistItemIDs))
	return nil
}
