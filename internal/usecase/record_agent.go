package usecase

import (
	"fmt"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// RecordAgentInput contains the parameters for recording a delegated
// sub-task dispatch.
type RecordAgentInput struct {
	TaskID     string
	Invocation domain.AgentInvocation
}

// RecordAgent is the use case for tracking agent invocations.
type RecordAgent struct {
	tasks  domain.TaskRepository
	agents domain.AgentLog
	logger domain.Logger
}

// NewRecordAgent creates a new RecordAgent use case.
func NewRecordAgent(tasks domain.TaskRepository, agents domain.AgentLog, logger domain.Logger) *RecordAgent {
	return &RecordAgent{tasks: tasks, agents: agents, logger: logger}
}

// Execute records the invocation and adds the agent to the task's set.
func (uc *RecordAgent) Execute(in RecordAgentInput) error {
	task, err := uc.tasks.Resolve(in.TaskID)
	if err != nil {
		return fmt.Errorf("resolve task: %w", err)
	}
	if task.Archived {
		return domain.ErrTaskArchived
	}

	if err := uc.agents.Record(task.ID, in.Invocation); err != nil {
		return err
	}

	if !task.HasInvokedAgent(in.Invocation.AgentName) {
		task.InvokedAgents = append(task.InvokedAgents, in.Invocation.AgentName)
		if err := uc.tasks.Save(task); err != nil {
			return fmt.Errorf("save task: %w", err)
		}
	}

	uc.logger.Task(task.ID).Info("agent invocation recorded",
		"agent", in.Invocation.AgentName, "depth", in.Invocation.Depth, "status", in.Invocation.Status)
	return nil
}
