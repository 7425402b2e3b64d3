package usecase

import (
	"fmt"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// ArchiveTaskInput selects the task to archive.
type ArchiveTaskInput struct {
	TaskID string
	Force  bool // Archive even before the terminal phase
}

// ArchiveTask moves a task namespace to the archive. Archived tasks keep
// their full history; nothing is hard-deleted.
type ArchiveTask struct {
	tasks  domain.TaskRepository
	logger domain.Logger
}

// NewArchiveTask creates a new ArchiveTask use case.
func NewArchiveTask(tasks domain.TaskRepository, logger domain.Logger) *ArchiveTask {
	return &ArchiveTask{tasks: tasks, logger: logger}
}

// Execute archives the task. Without Force the task must have reached the
// terminal phase.
func (uc *ArchiveTask) Execute(in ArchiveTaskInput) error {
	task, err := uc.tasks.Resolve(in.TaskID)
	if err != nil {
		return err
	}
	if task.Archived {
		return domain.ErrTaskArchived
	}
	if !in.Force && !task.CurrentPhase().IsTerminal() {
		return fmt.Errorf("task is in phase %s, not the terminal phase (use --force to archive anyway)", task.CurrentPhase())
	}
	if err := uc.tasks.Archive(task.ID); err != nil {
		return err
	}
	uc.logger.Global().Info("task archived", "task", task.ID, "phase", string(task.CurrentPhase()))
	return nil
}
