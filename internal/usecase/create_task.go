// Package usecase contains application use cases.
package usecase

import (
	"fmt"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// CreateTaskInput contains the parameters for creating a task.
type CreateTaskInput struct {
	Slug string
	Lane domain.Lane
}

// CreateTask is the use case for allocating a new task namespace.
type CreateTask struct {
	tasks  domain.TaskRepository
	config domain.ConfigLoader
	logger domain.Logger
}

// NewCreateTask creates a new CreateTask use case.
func NewCreateTask(tasks domain.TaskRepository, config domain.ConfigLoader, logger domain.Logger) *CreateTask {
	return &CreateTask{tasks: tasks, config: config, logger: logger}
}

// Execute creates a task in the initial phase.
func (uc *CreateTask) Execute(in CreateTaskInput) (*domain.Task, error) {
	slug := domain.NormalizeSlug(in.Slug)
	if slug == "" {
		return nil, domain.ErrEmptySlug
	}

	cfg, err := uc.config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	task, err := uc.tasks.Create(slug, in.Lane, cfg.RequiredAgentCount(in.Lane))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	uc.logger.Task(task.ID).Info("task created",
		"slug", task.Slug, "lane", string(task.Lane), "phase", string(task.CurrentPhase()))
	return task, nil
}
