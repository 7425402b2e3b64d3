package usecase

import (
	"sort"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// ListTasksInput filters the listing.
type ListTasksInput struct {
	Phase string // Optional phase name filter
	Lane  string // Optional lane filter
}

// ListTasks returns the live tasks, newest first.
type ListTasks struct {
	tasks domain.TaskRepository
}

// NewListTasks creates a new ListTasks use case.
func NewListTasks(tasks domain.TaskRepository) *ListTasks {
	return &ListTasks{tasks: tasks}
}

// Execute lists tasks matching the filters.
func (uc *ListTasks) Execute(in ListTasksInput) ([]*domain.Task, error) {
	var phase domain.Phase
	if in.Phase != "" {
		p, err := domain.ParsePhase(in.Phase)
		if err != nil {
			return nil, err
		}
		phase = p
	}
	var lane domain.Lane
	if in.Lane != "" {
		l, err := domain.ParseLane(in.Lane)
		if err != nil {
			return nil, err
		}
		lane = l
	}

	all, err := uc.tasks.List()
	if err != nil {
		return nil, err
	}
	var out []*domain.Task
	for _, t := range all {
		if phase != "" && t.CurrentPhase() != phase {
			continue
		}
		if lane != "" && t.Lane != lane {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}
