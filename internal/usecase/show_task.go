package usecase

import (
	"fmt"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// ShowTaskOutput is the full view of one task.
type ShowTaskOutput struct {
	Task        *domain.Task
	Invocations []domain.AgentInvocation
	Evidence    []*domain.EvidenceRecord
}

// ShowTask assembles the task descriptor with its invocation and evidence
// history.
type ShowTask struct {
	tasks    domain.TaskRepository
	evidence domain.EvidenceStore
	agents   domain.AgentLog
}

// NewShowTask creates a new ShowTask use case.
func NewShowTask(tasks domain.TaskRepository, evidence domain.EvidenceStore, agents domain.AgentLog) *ShowTask {
	return &ShowTask{tasks: tasks, evidence: evidence, agents: agents}
}

// Execute resolves the task and gathers its related records.
func (uc *ShowTask) Execute(taskID string) (*ShowTaskOutput, error) {
	task, err := uc.tasks.Resolve(taskID)
	if err != nil {
		return nil, err
	}
	invocations, err := uc.agents.List(task.ID)
	if err != nil {
		return nil, fmt.Errorf("list agent invocations: %w", err)
	}
	records, err := uc.collectEvidence(task.ID)
	if err != nil {
		return nil, err
	}
	return &ShowTaskOutput{Task: task, Invocations: invocations, Evidence: records}, nil
}

func (uc *ShowTask) collectEvidence(taskID string) ([]*domain.EvidenceRecord, error) {
	buckets, err := uc.evidence.Buckets()
	if err != nil {
		return nil, err
	}
	var out []*domain.EvidenceRecord
	for _, bucket := range buckets {
		records, err := uc.evidence.ListBucket(bucket)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if r.TaskID == taskID {
				out = append(out, r)
			}
		}
	}
	return out, nil
}
