package usecase

import (
	"fmt"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// AppendEvidenceInput contains the parameters for recording evidence.
type AppendEvidenceInput struct {
	TaskID string
	Record domain.EvidenceRecord
}

// AppendEvidence is the use case for appending a proof-of-work record.
type AppendEvidence struct {
	tasks    domain.TaskRepository
	evidence domain.EvidenceStore
	logger   domain.Logger
}

// NewAppendEvidence creates a new AppendEvidence use case.
func NewAppendEvidence(tasks domain.TaskRepository, evidence domain.EvidenceStore, logger domain.Logger) *AppendEvidence {
	return &AppendEvidence{tasks: tasks, evidence: evidence, logger: logger}
}

// Execute validates and persists the record, returning the assigned id.
func (uc *AppendEvidence) Execute(in AppendEvidenceInput) (string, error) {
	if in.TaskID != "" {
		task, err := uc.tasks.Resolve(in.TaskID)
		if err != nil {
			return "", fmt.Errorf("resolve task: %w", err)
		}
		if task.Archived {
			return "", domain.ErrTaskArchived
		}
		in.Record.TaskID = task.ID
	}

	id, err := uc.evidence.Append(&in.Record)
	if err != nil {
		return "", err
	}

	uc.logger.Task(in.TaskID).Info("evidence appended",
		"id", id, "type", string(in.Record.Type), "checklist_item", in.Record.ChecklistItem)
	return id, nil
}
