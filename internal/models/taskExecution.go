package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/rs/zerolog/log"
)

type TaskExecutionState string

const (
	TaskExecutionStateUnknown    TaskExecutionState = "UNKNOWN"    // Unknown state, should never be in this state.
	TaskExecutionStateProcessing TaskExecutionState = "PROCESSING" // Pre-scheduling validation and prep.
	TaskExecutionStateWaiting    TaskExecutionState = "WAITING"    // Waiting to be scheduled.
	TaskExecutionStateRunning    TaskExecutionState = "RUNNING"    // Currently running as reported by scheduler.
	TaskExecutionStateComplete   TaskExecutionState = "COMPLETE"
)

type TaskExecutionStatus string

const (
	TaskExecutionStatusUnknown    TaskExecutionStatus = "UNKNOWN"
	TaskExecutionStatusFailed     TaskExecutionStatus = "FAILED"
	TaskExecutionStatusSuccessful TaskExecutionStatus = "SUCCESSFUL"
	TaskExecutionStatusCancelled  TaskExecutionStatus = "CANCELLED"
	TaskExecutionStatusSkipped    TaskExecutionStatus = "SKIPPED"
)

type TaskExecutionStatusReasonKind string

const (
	TaskExecutionStatusReasonKindUnknown            TaskExecutionStatusReasonKind = "UNKNOWN"
	TaskExecutionStatusReasonKindAbnormalExit       TaskExecutionStatusReasonKind = "ABNORMAL_EXIT"
	TaskExecutionStatusReasonKindSchedulerError     TaskExecutionStatusReasonKind = "SCHEDULER_ERROR"
	TaskExecutionStatusReasonKindFailedPrecondition TaskExecutionStatusReasonKind = "FAILED_PRECONDITION"
	TaskExecutionStatusReasonKindCancelled          TaskExecutionStatusReasonKind = "CANCELLED"
	// The task execution was lost mid-run, usually due to an unexpected process restart.
	TaskExecutionStatusReasonKindOrphaned TaskExecutionStatusReasonKind = "ORPHANED"
)

type TaskExecutionStatusReason struct {
	Reason      TaskExecutionStatusReasonKind `json:"reason" example:"ABNORMAL_EXIT" doc:"Specific type of task execution failure"`
	Description string                        `json:"description" example:"task exited without an error code of 0" doc:"A humanized description for what occurred"`
}

func (r *TaskExecutionStatusReason) ToJSON() string {
	reason, err := json.Marshal(r)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to convert task execution status reason to json")
	}

	return string(reason)
}

// a task execution represents a specific task's execution within a specific run. It holds information
// about the state of the container it runs as well as the final result of that container run.
type TaskExecution struct {
	Namespace string `json:"namespace" example:"default" doc:"Unique identifier of the target namespace"`
	Pipeline  string `json:"pipeline" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
	Run       int64  `json:"run" example:"1" doc:"Unique identifier of the target run"`
	ID        string `json:"id" example:"my_task" doc:"Unique identifier of the task; shared with the task definition"`
	Task      Task   `json:"task" doc:"Snapshot of the task definition this execution is running"`
	Created   uint64 `json:"created" example:"1712433802634" doc:"Time of task execution creation in epoch milliseconds"`
	Started   uint64 `json:"started" example:"1712433802634" doc:"Time the task execution began running in epoch milliseconds"`
	Ended     uint64 `json:"ended" example:"1712433802634" doc:"Time of task execution completion in epoch milliseconds"`
	ExitCode  *int64 `json:"exit_code" example:"0" doc:"The exit code of the container once it finished"`
	// Whether the logs have past their retention time. Their presence is no longer guaranteed.
	LogsExpired bool `json:"logs_expired" example:"false" doc:"Whether the logs have past their retention time"`
	// If the logs for this execution have been removed. This can be due to user request or automatic lifecycle policy.
	LogsRemoved  bool                       `json:"logs_removed" example:"false" doc:"Whether the logs have been removed"`
	State        TaskExecutionState         `json:"state" example:"RUNNING" doc:"Current state of the task execution within the Gofer execution model"`
	Status       TaskExecutionStatus        `json:"status" example:"SUCCESSFUL" doc:"The final result of the task execution"`
	StatusReason *TaskExecutionStatusReason `json:"status_reason,omitempty" doc:"More details about the current status"`
	Variables    []Variable                 `json:"variables" doc:"The environment variables injected during this particular task execution"`
}

func NewTaskExecution(namespace, pipeline string, run int64, task Task) *TaskExecution {
	return &TaskExecution{
		Namespace:    namespace,
		Pipeline:     pipeline,
		Run:          run,
		ID:           task.ID,
		Task:         task,
		Created:      uint64(time.Now().UnixMilli()),
		Started:      0,
		Ended:        0,
		ExitCode:     nil,
		LogsExpired:  false,
		LogsRemoved:  false,
		State:        TaskExecutionStateProcessing,
		Status:       TaskExecutionStatusUnknown,
		StatusReason: nil,
		Variables:    []Variable{},
	}
}

func (r *TaskExecution) ToStorage() *storage.TaskExecution {
	task, err := json.Marshal(r.Task)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	variables, err := json.Marshal(r.Variables)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	// 999 is a special number that means the exit code doesn't exist yet.
	exitCode := int64(999)
	if r.ExitCode != nil {
		exitCode = *r.ExitCode
	}

	return &storage.TaskExecution{
		Namespace:    r.Namespace,
		Pipeline:     r.Pipeline,
		Run:          r.Run,
		ID:           r.ID,
		Task:         string(task),
		Created:      fmt.Sprint(r.Created),
		Started:      fmt.Sprint(r.Started),
		Ended:        fmt.Sprint(r.Ended),
		ExitCode:     exitCode,
		LogsExpired:  r.LogsExpired,
		LogsRemoved:  r.LogsRemoved,
		State:        string(r.State),
		Status:       string(r.Status),
		StatusReason: r.StatusReason.ToJSON(),
		Variables:    string(variables),
	}
}

func (r *TaskExecution) FromStorage(st *storage.TaskExecution) {
	var statusReason *TaskExecutionStatusReason
	if st.StatusReason != "" && st.StatusReason != "null" {
		statusReason = &TaskExecutionStatusReason{}
		err := json.Unmarshal([]byte(st.StatusReason), statusReason)
		if err != nil {
			log.Fatal().Err(err).Msg("error in translating from storage")
		}
	}

	var task Task
	err := json.Unmarshal([]byte(st.Task), &task)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	var variables []Variable
	err = json.Unmarshal([]byte(st.Variables), &variables)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	created, err := strconv.ParseUint(st.Created, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	started, err := strconv.ParseUint(st.Started, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	ended, err := strconv.ParseUint(st.Ended, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	var exitCode *int64
	if st.ExitCode != 999 {
		exitCode = &st.ExitCode
	}

	r.Namespace = st.Namespace
	r.Pipeline = st.Pipeline
	r.Run = st.Run
	r.ID = st.ID
	r.Task = task
	r.Created = created
	r.Started = started
	r.Ended = ended
	r.ExitCode = exitCode
	r.LogsExpired = st.LogsExpired
	r.LogsRemoved = st.LogsRemoved
	r.State = TaskExecutionState(st.State)
	r.Status = TaskExecutionStatus(st.Status)
	r.StatusReason = statusReason
	r.Variables = variables
}
