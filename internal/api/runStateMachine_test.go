package api

import (
	"testing"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/syncmap"
)

func newTestStateMachine() *RunStateMachine {
	return &RunStateMachine{
		TaskExecutions: syncmap.New[string, models.TaskExecution](),
	}
}

func TestParentTasksFinished(t *testing.T) {
	sm := newTestStateMachine()

	sm.TaskExecutions.Set("done", models.TaskExecution{
		ID:    "done",
		State: models.TaskExecutionStateComplete,
	})
	sm.TaskExecutions.Set("still_running", models.TaskExecution{
		ID:    "still_running",
		State: models.TaskExecutionStateRunning,
	})

	tests := map[string]struct {
		dependencies map[string]models.RequiredParentStatus
		expected     bool
	}{
		"no_parents":       {dependencies: map[string]models.RequiredParentStatus{}, expected: true},
		"parent_finished":  {dependencies: map[string]models.RequiredParentStatus{"done": models.RequiredParentStatusAny}, expected: true},
		"parent_running":   {dependencies: map[string]models.RequiredParentStatus{"still_running": models.RequiredParentStatusAny}, expected: false},
		"parent_not_found": {dependencies: map[string]models.RequiredParentStatus{"missing": models.RequiredParentStatusAny}, expected: false},
		"mixed": {dependencies: map[string]models.RequiredParentStatus{
			"done":          models.RequiredParentStatusSuccess,
			"still_running": models.RequiredParentStatusAny,
		}, expected: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			result := sm.parentTasksFinished(test.dependencies)
			if result != test.expected {
				t.Errorf("incorrect parent finished result; want %t got %t", test.expected, result)
			}
		})
	}
}

func TestTaskDependenciesSatisfied(t *testing.T) {
	sm := newTestStateMachine()

	sm.TaskExecutions.Set("successful", models.TaskExecution{
		ID:     "successful",
		State:  models.TaskExecutionStateComplete,
		Status: models.TaskExecutionStatusSuccessful,
	})
	sm.TaskExecutions.Set("failed", models.TaskExecution{
		ID:     "failed",
		State:  models.TaskExecutionStateComplete,
		Status: models.TaskExecutionStatusFailed,
	})
	sm.TaskExecutions.Set("skipped", models.TaskExecution{
		ID:     "skipped",
		State:  models.TaskExecutionStateComplete,
		Status: models.TaskExecutionStatusSkipped,
	})
	sm.TaskExecutions.Set("cancelled", models.TaskExecution{
		ID:     "cancelled",
		State:  models.TaskExecutionStateComplete,
		Status: models.TaskExecutionStatusCancelled,
	})

	tests := map[string]struct {
		dependencies map[string]models.RequiredParentStatus
		wantErr      bool
	}{
		"success_on_successful": {
			dependencies: map[string]models.RequiredParentStatus{"successful": models.RequiredParentStatusSuccess},
			wantErr:      false,
		},
		"success_on_failed": {
			dependencies: map[string]models.RequiredParentStatus{"failed": models.RequiredParentStatusSuccess},
			wantErr:      true,
		},
		"failure_on_failed": {
			dependencies: map[string]models.RequiredParentStatus{"failed": models.RequiredParentStatusFailure},
			wantErr:      false,
		},
		"failure_on_successful": {
			dependencies: map[string]models.RequiredParentStatus{"successful": models.RequiredParentStatusFailure},
			wantErr:      true,
		},
		"any_on_successful": {
			dependencies: map[string]models.RequiredParentStatus{"successful": models.RequiredParentStatusAny},
			wantErr:      false,
		},
		"any_on_failed": {
			dependencies: map[string]models.RequiredParentStatus{"failed": models.RequiredParentStatusAny},
			wantErr:      false,
		},
		"any_on_skipped": {
			dependencies: map[string]models.RequiredParentStatus{"skipped": models.RequiredParentStatusAny},
			wantErr:      false,
		},
		"any_on_cancelled": {
			dependencies: map[string]models.RequiredParentStatus{"cancelled": models.RequiredParentStatusAny},
			wantErr:      true,
		},
		"unknown_required_status": {
			dependencies: map[string]models.RequiredParentStatus{"successful": models.RequiredParentStatusUnknown},
			wantErr:      true,
		},
		"missing_parent": {
			dependencies: map[string]models.RequiredParentStatus{"missing": models.RequiredParentStatusAny},
			wantErr:      true,
		},
		"multiple_satisfied": {
			dependencies: map[string]models.RequiredParentStatus{
				"successful": models.RequiredParentStatusSuccess,
				"failed":     models.RequiredParentStatusFailure,
				"skipped":    models.RequiredParentStatusAny,
			},
			wantErr: false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := sm.taskDependenciesSatisfied(test.dependencies)
			if (err != nil) != test.wantErr {
				t.Errorf("incorrect dependency result; wantErr %t got %v", test.wantErr, err)
			}
		})
	}
}
