package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/scheduler"
	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/clintjedwards/gofer/internal/syncmap"

	"github.com/rs/zerolog/log"
)

// RunStateMachine tracks a run from creation through completion. Each task execution progresses
// on its own goroutine; the shared TaskExecutions map is the single source of truth used for
// dependency resolution between them.
type RunStateMachine struct {
	APIContext     *APIContext
	Pipeline       *models.PipelineMetadata
	Config         *models.PipelineConfig
	Run            *models.Run
	TaskExecutions syncmap.Syncmap[string, models.TaskExecution]
}

func (apictx *APIContext) newRunStateMachine(pipeline *models.PipelineMetadata, config *models.PipelineConfig,
	run *models.Run,
) *RunStateMachine {
	return &RunStateMachine{
		APIContext:     apictx,
		Pipeline:       pipeline,
		Config:         config,
		Run:            run,
		TaskExecutions: syncmap.New[string, models.TaskExecution](),
	}
}

// setTaskExecutionFinished marks a task execution as complete with a final status. The storage
// write always lands before the map update so that any sibling that observes the parent as
// complete will also see the persisted status.
func (r *RunStateMachine) setTaskExecutionFinished(id string, code *int64, status models.TaskExecutionStatus,
	reason *models.TaskExecutionStatusReason,
) error {
	taskExecution, exists := r.TaskExecutions.Get(id)
	if !exists {
		return fmt.Errorf("could not find task execution %q", id)
	}

	err := r.APIContext.db.UpdateTaskExecution(r.APIContext.db.Write(), taskExecution.Namespace,
		taskExecution.Pipeline, taskExecution.Run, taskExecution.ID,
		storage.UpdatableTaskExecutionFields{
			ExitCode:     code,
			State:        ptr(string(models.TaskExecutionStateComplete)),
			Status:       ptr(string(status)),
			StatusReason: ptr(reason.ToJSON()),
			Ended:        ptr(timeNowMilliStr()),
		})
	if err != nil {
		return err
	}

	taskExecution.State = models.TaskExecutionStateComplete
	taskExecution.Status = status
	taskExecution.StatusReason = reason
	taskExecution.ExitCode = code
	taskExecution.Ended = uint64(time.Now().UnixMilli())

	r.TaskExecutions.Set(id, taskExecution)

	r.APIContext.events.Publish(models.EventCompletedTaskExecution{
		NamespaceID:     taskExecution.Namespace,
		PipelineID:      taskExecution.Pipeline,
		RunID:           taskExecution.Run,
		TaskExecutionID: taskExecution.ID,
		Status:          status,
	})

	return nil
}

func (r *RunStateMachine) setRunFinished(status models.RunStatus, reason *models.RunStatusReason) error {
	err := r.APIContext.db.UpdateRun(r.APIContext.db.Write(), r.Pipeline.Namespace, r.Pipeline.ID, r.Run.RunID,
		storage.UpdatableRunFields{
			State:        ptr(string(models.RunStateComplete)),
			Status:       ptr(string(status)),
			StatusReason: ptr(reason.ToJSON()),
			Ended:        ptr(timeNowMilliStr()),
		})
	if err != nil {
		return err
	}

	r.Run.State = models.RunStateComplete
	r.Run.Status = status
	r.Run.StatusReason = reason

	r.APIContext.events.Publish(models.EventCompletedRun{
		NamespaceID: r.Run.NamespaceID,
		PipelineID:  r.Run.PipelineID,
		RunID:       r.Run.RunID,
		Status:      status,
	})

	return nil
}

func (r *RunStateMachine) setTaskExecutionState(taskExecution models.TaskExecution,
	state models.TaskExecutionState,
) error {
	err := r.APIContext.db.UpdateTaskExecution(r.APIContext.db.Write(), taskExecution.Namespace,
		taskExecution.Pipeline, taskExecution.Run, taskExecution.ID,
		storage.UpdatableTaskExecutionFields{
			State: ptr(string(state)),
		})
	if err != nil {
		return err
	}

	taskExecution.State = state
	r.TaskExecutions.Set(taskExecution.ID, taskExecution)

	return nil
}

// createAutoInjectToken evaluates whether any task in the run has asked for an injected API token
// and if so mints a short lived client token scoped to the run's namespace. The token itself is
// kept in the secret store so it travels through the normal variable interpolation path.
func (r *RunStateMachine) createAutoInjectToken() {
	createToken := false

	for _, task := range r.Config.Tasks {
		if task.InjectAPIToken {
			createToken = true
			break
		}
	}

	if !createToken {
		return
	}

	token, hash := r.APIContext.createNewAPIToken()
	newToken := models.NewToken(hash, models.TokenTypeClient, []string{r.Pipeline.Namespace}, map[string]string{
		"description": "This token was automatically created by the Gofer API on behalf of a run that requested " +
			"an injected API token.",
	}, time.Hour*48)

	err := r.APIContext.db.InsertToken(r.APIContext.db.Write(), newToken.ToStorage())
	if err != nil {
		log.Error().Err(err).Msg("could not save auto-inject token to storage")
		return
	}

	err = r.APIContext.secretStore.PutSecret(
		pipelineSecretKey(r.Pipeline.Namespace, r.Pipeline.ID, fmt.Sprintf("gofer_api_token_%d", r.Run.RunID)),
		token, true)
	if err != nil {
		log.Error().Err(err).Msg("could not save auto-inject token to secret store")
		return
	}

	tokenID := newToken.ID

	err = r.APIContext.db.UpdateRun(r.APIContext.db.Write(), r.Pipeline.Namespace, r.Pipeline.ID, r.Run.RunID,
		storage.UpdatableRunFields{
			TokenID: ptr(tokenID),
		})
	if err != nil {
		log.Error().Err(err).Msg("could not associate auto-inject token with run")
		return
	}

	r.Run.TokenID = &tokenID
}

// executeTaskTree creates a task execution for every task in the run's config and then blocks,
// monitoring the run until every one of them has finished.
func (r *RunStateMachine) executeTaskTree() {
	go r.handleRunObjectExpiry()
	go r.handleRunLogExpiry()

	r.createAutoInjectToken()

	// The run transitions to running before any task execution exists so the started event always
	// precedes the task creation events.
	err := r.APIContext.db.UpdateRun(r.APIContext.db.Write(), r.Pipeline.Namespace, r.Pipeline.ID, r.Run.RunID,
		storage.UpdatableRunFields{
			State: ptr(string(models.RunStateRunning)),
		})
	if err != nil {
		log.Error().Err(err).Msg("could not mark run as running")
		return
	}

	r.APIContext.events.Publish(models.EventStartedRun{
		NamespaceID: r.Run.NamespaceID,
		PipelineID:  r.Run.PipelineID,
		RunID:       r.Run.RunID,
	})

	for _, task := range r.Config.Tasks {
		task := task
		go r.launchTaskExecution(task, true)
	}

	r.waitRunFinish()
}

// parentTasksFinished reports whether every parent named in the dependency map has reached a
// terminal state.
func (r *RunStateMachine) parentTasksFinished(dependencies map[string]models.RequiredParentStatus) bool {
	for parent := range dependencies {
		parentExecution, exists := r.TaskExecutions.Get(parent)
		if !exists {
			return false
		}

		if parentExecution.State != models.TaskExecutionStateComplete {
			return false
		}
	}

	return true
}

// taskDependenciesSatisfied checks that all parents finished in the states the task requires.
func (r *RunStateMachine) taskDependenciesSatisfied(dependencies map[string]models.RequiredParentStatus) error {
	for parent, requiredStatus := range dependencies {
		parentExecution, exists := r.TaskExecutions.Get(parent)
		if !exists {
			return fmt.Errorf("could not find parent %q while evaluating task dependencies", parent)
		}

		switch requiredStatus {
		case models.RequiredParentStatusUnknown:
			return fmt.Errorf("a parent dependency should never be in the state Unknown")
		case models.RequiredParentStatusAny:
			if parentExecution.Status != models.TaskExecutionStatusSuccessful &&
				parentExecution.Status != models.TaskExecutionStatusFailed &&
				parentExecution.Status != models.TaskExecutionStatusSkipped {
				return fmt.Errorf("parent %q has incorrect status %q for required 'any' dependency", parent,
					parentExecution.Status)
			}
		case models.RequiredParentStatusSuccess:
			if parentExecution.Status != models.TaskExecutionStatusSuccessful {
				return fmt.Errorf("parent %q has incorrect status %q for required 'successful' dependency", parent,
					parentExecution.Status)
			}
		case models.RequiredParentStatusFailure:
			if parentExecution.Status != models.TaskExecutionStatusFailed {
				return fmt.Errorf("parent %q has incorrect status %q for required 'failed' dependency", parent,
					parentExecution.Status)
			}
		}
	}

	return nil
}

// waitRunFinish blocks until every task execution has finished and then tallies the final run
// status. A run is only successful if every task execution was successful or skipped. Any failed
// or unknown task fails the run; a cancelled task with no failures cancels the run.
func (r *RunStateMachine) waitRunFinish() {
	// Wait until the map has an entry for every task in the config.
	for {
		if len(r.TaskExecutions.Keys()) != len(r.Config.Tasks) {
			time.Sleep(time.Millisecond * 500)
			continue
		}

		break
	}

outerLoop:
	for {
		time.Sleep(time.Millisecond * 500)
		for _, id := range r.TaskExecutions.Keys() {
			taskExecution, exists := r.TaskExecutions.Get(id)
			if !exists {
				continue outerLoop
			}

			if taskExecution.State != models.TaskExecutionStateComplete {
				continue outerLoop
			}
		}

		break
	}

	cancelled := false

	for _, id := range r.TaskExecutions.Keys() {
		taskExecution, exists := r.TaskExecutions.Get(id)
		if !exists {
			log.Error().Str("task_execution", id).
				Msg("could not find task execution in run state machine while tallying results")
			return
		}

		switch taskExecution.Status {
		case models.TaskExecutionStatusUnknown, models.TaskExecutionStatusFailed:
			err := r.setRunFinished(models.RunStatusFailed, &models.RunStatusReason{
				Reason:      models.RunStatusReasonKindAbnormalExit,
				Description: "One or more task executions failed during execution",
			})
			if err != nil {
				log.Error().Err(err).Msg("could not set run finished")
			}

			return
		case models.TaskExecutionStatusCancelled:
			cancelled = true
		case models.TaskExecutionStatusSuccessful, models.TaskExecutionStatusSkipped:
			continue
		}
	}

	if cancelled {
		err := r.setRunFinished(models.RunStatusCancelled, &models.RunStatusReason{
			Reason:      models.RunStatusReasonKindAbnormalExit,
			Description: "One or more task executions were cancelled during execution",
		})
		if err != nil {
			log.Error().Err(err).Msg("could not set run finished")
		}
		return
	}

	err := r.setRunFinished(models.RunStatusSuccessful, nil)
	if err != nil {
		log.Error().Err(err).Msg("could not set run finished")
	}
}

// waitTaskExecutionFinish polls the scheduler until the container backing a task execution has
// reached a terminal state and records the result.
func (r *RunStateMachine) waitTaskExecutionFinish(containerID, taskExecutionID string) error {
	for {
		response, err := r.APIContext.scheduler.GetState(scheduler.GetStateRequest{
			ID: containerID,
		})
		if err != nil {
			_ = r.setTaskExecutionFinished(taskExecutionID, nil, models.TaskExecutionStatusUnknown,
				&models.TaskExecutionStatusReason{
					Reason:      models.TaskExecutionStatusReasonKindSchedulerError,
					Description: fmt.Sprintf("Could not query the scheduler for task execution state; %v", err),
				})
			return err
		}

		switch response.State {
		case scheduler.ContainerStateUnknown:
			_ = r.setTaskExecutionFinished(taskExecutionID, nil, models.TaskExecutionStatusUnknown,
				&models.TaskExecutionStatusReason{
					Reason:      models.TaskExecutionStatusReasonKindSchedulerError,
					Description: "An unknown error has occurred on the scheduler level; this should never happen",
				})
			return nil
		case scheduler.ContainerStateRunning, scheduler.ContainerStatePaused, scheduler.ContainerStateRestarting:
			time.Sleep(time.Millisecond * 500)
			continue
		case scheduler.ContainerStateCancelled:
			_ = r.setTaskExecutionFinished(taskExecutionID, nil, models.TaskExecutionStatusCancelled,
				&models.TaskExecutionStatusReason{
					Reason:      models.TaskExecutionStatusReasonKindCancelled,
					Description: "The task execution was cancelled",
				})
			return nil
		case scheduler.ContainerStateExited:
			if response.ExitCode == 0 {
				_ = r.setTaskExecutionFinished(taskExecutionID, ptr(response.ExitCode),
					models.TaskExecutionStatusSuccessful, nil)
				return nil
			}

			_ = r.setTaskExecutionFinished(taskExecutionID, ptr(response.ExitCode),
				models.TaskExecutionStatusFailed, &models.TaskExecutionStatusReason{
					Reason:      models.TaskExecutionStatusReasonKindAbnormalExit,
					Description: "Task execution exited with abnormal exit code.",
				})
			return nil
		default:
			_ = r.setTaskExecutionFinished(taskExecutionID, nil, models.TaskExecutionStatusUnknown,
				&models.TaskExecutionStatusReason{
					Reason:      models.TaskExecutionStatusReasonKindSchedulerError,
					Description: fmt.Sprintf("The scheduler returned an unexpected container state %q", response.State),
				})
			return nil
		}
	}
}

// monitorTaskExecution tracks the state and log progress of a task execution until it has reached
// a terminal state.
func (r *RunStateMachine) monitorTaskExecution(containerID, taskExecutionID string) error {
	go r.handleLogUpdates(containerID, taskExecutionID)
	return r.waitTaskExecutionFinish(containerID, taskExecutionID)
}

func (r *RunStateMachine) handleLogUpdates(containerID, taskExecutionID string) {
	taskExecution, exists := r.TaskExecutions.Get(taskExecutionID)
	if !exists {
		log.Error().Msg("could not find task execution in run state machine")
		return
	}

	logReader, err := r.APIContext.scheduler.GetLogs(scheduler.GetLogsRequest{
		ID: containerID,
	})
	if err != nil {
		log.Error().Err(err).Msg("scheduler error; could not get logs")
		return
	}

	logFile, err := os.Create(taskExecutionLogFilePath(r.APIContext.config.TaskExecutionLogsDir,
		taskExecution.Namespace, taskExecution.Pipeline, taskExecution.Run, taskExecution.ID))
	if err != nil {
		log.Error().Err(err).Msg("could not open task execution log file for writing")
		return
	}

	scanner := bufio.NewScanner(logReader)
	for scanner.Scan() {
		_, _ = logFile.WriteString(scanner.Text() + "\n")
	}

	// The marker tells followers of the file that no further lines will ever be written, so they can
	// distinguish a finished file from one that is merely quiet.
	_, _ = logFile.WriteString(GOFEREOF)

	logFile.Close()

	err = scanner.Err()
	if err != nil {
		log.Error().Err(err).Msg("could not properly read from logging stream")
	}
}

// handleRunObjectExpiry removes run level objects once a run passes the configured expiry depth.
func (r *RunStateMachine) handleRunObjectExpiry() {
	limit := r.APIContext.config.ObjectStore.RunObjectExpiry

	// We ask for the limit of runs plus one extra.
	runs, err := r.APIContext.db.ListRuns(r.APIContext.db.Read(), 0, limit+1, r.Pipeline.Namespace, r.Pipeline.ID)
	if err != nil {
		log.Error().Err(err).Msg("could not get runs for run object expiry processing")
		return
	}

	// If there aren't enough runs to reach the limit there is nothing to remove.
	if limit > len(runs) {
		return
	}

	if len(runs) == 0 {
		return
	}

	expiredRunRaw := runs[len(runs)-1]
	var expiredRun models.Run
	expiredRun.FromStorage(&expiredRunRaw)

	// If the run is still in progress wait for it to be done.
	for expiredRun.State != models.RunStateComplete {
		time.Sleep(time.Second)

		expiredRunRaw, err = r.APIContext.db.GetRun(r.APIContext.db.Read(), r.Pipeline.Namespace, r.Pipeline.ID,
			expiredRun.RunID)
		if err != nil {
			log.Error().Err(err).Msg("could not get run for run object expiry processing")
			return
		}

		var freshRun models.Run
		freshRun.FromStorage(&expiredRunRaw)
		expiredRun = freshRun
	}

	if expiredRun.StoreObjectsExpired {
		return
	}

	objectKeys, err := r.APIContext.db.ListObjectStoreRunKeys(r.APIContext.db.Read(), r.Pipeline.Namespace,
		r.Pipeline.ID, expiredRun.RunID)
	if err != nil {
		log.Error().Err(err).Msg("could not get object keys for run object expiry processing")
		return
	}

	for _, key := range objectKeys {
		err = r.APIContext.objectStore.DeleteObject(
			runObjectKey(r.Pipeline.Namespace, r.Pipeline.ID, expiredRun.RunID, key.Key))
		if err != nil {
			log.Error().Err(err).Msg("could not delete run object for run object expiry processing")
			continue
		}

		err = r.APIContext.db.DeleteObjectStoreRunKey(r.APIContext.db.Write(), r.Pipeline.Namespace, r.Pipeline.ID,
			expiredRun.RunID, key.Key)
		if err != nil {
			log.Error().Err(err).Msg("could not delete run object key for run object expiry processing")
			continue
		}
	}

	err = r.APIContext.db.UpdateRun(r.APIContext.db.Write(), r.Pipeline.Namespace, r.Pipeline.ID, expiredRun.RunID,
		storage.UpdatableRunFields{
			StoreObjectsExpired: ptr(true),
		})
	if err != nil {
		log.Error().Err(err).Msg("could not mark run objects as expired")
		return
	}

	log.Debug().Str("namespace", r.Pipeline.Namespace).Str("pipeline", r.Pipeline.ID).
		Int64("run", expiredRun.RunID).Msg("expired run objects")
}

// handleRunLogExpiry removes task execution log files once a run passes the configured log
// retention depth.
func (r *RunStateMachine) handleRunLogExpiry() {
	limit := r.APIContext.config.TaskExecutionLogExpiry

	// We ask for the limit of runs plus one extra.
	runs, err := r.APIContext.db.ListRuns(r.APIContext.db.Read(), 0, limit+1, r.Pipeline.Namespace, r.Pipeline.ID)
	if err != nil {
		log.Error().Err(err).Msg("could not get runs for run log expiry processing")
		return
	}

	// If there aren't enough runs to reach the limit there is nothing to remove.
	if limit > len(runs) {
		return
	}

	if len(runs) == 0 {
		return
	}

	expiredRunRaw := runs[len(runs)-1]
	var expiredRun models.Run
	expiredRun.FromStorage(&expiredRunRaw)

	// If the run is still in progress wait for it to be done.
	for expiredRun.State != models.RunStateComplete {
		time.Sleep(time.Second)

		expiredRunRaw, err = r.APIContext.db.GetRun(r.APIContext.db.Read(), r.Pipeline.Namespace, r.Pipeline.ID,
			expiredRun.RunID)
		if err != nil {
			log.Error().Err(err).Msg("could not get run for run log expiry processing")
			return
		}

		var freshRun models.Run
		freshRun.FromStorage(&expiredRunRaw)
		expiredRun = freshRun
	}

	var taskExecutions []models.TaskExecution

	// If the task executions are in progress we wait for them to be done.
outerLoop:
	for {
		taskExecutions = taskExecutions[:0]

		storedExecutions, err := r.APIContext.db.ListTaskExecutions(r.APIContext.db.Read(), 0, 0,
			r.Pipeline.Namespace, r.Pipeline.ID, expiredRun.RunID)
		if err != nil {
			log.Error().Err(err).Msg("could not get task executions for run log expiry processing")
			return
		}

		for _, storedExecution := range storedExecutions {
			var taskExecution models.TaskExecution
			taskExecution.FromStorage(&storedExecution)
			taskExecutions = append(taskExecutions, taskExecution)
		}

		for _, taskExecution := range taskExecutions {
			if taskExecution.State != models.TaskExecutionStateComplete {
				time.Sleep(time.Millisecond * 500)
				continue outerLoop
			}
		}

		break
	}

	removedFiles := []string{}
	for _, taskExecution := range taskExecutions {
		if taskExecution.LogsExpired || taskExecution.LogsRemoved {
			continue
		}

		logFilePath := taskExecutionLogFilePath(r.APIContext.config.TaskExecutionLogsDir,
			taskExecution.Namespace, taskExecution.Pipeline, taskExecution.Run, taskExecution.ID)

		err := os.Remove(logFilePath)
		if err != nil {
			log.Debug().Err(err).Msg("could not remove task execution log file")
		}

		err = r.APIContext.db.UpdateTaskExecution(r.APIContext.db.Write(), taskExecution.Namespace,
			taskExecution.Pipeline, taskExecution.Run, taskExecution.ID,
			storage.UpdatableTaskExecutionFields{
				LogsExpired: ptr(true),
				LogsRemoved: ptr(true),
			})
		if err != nil {
			log.Error().Err(err).Msg("could not update task execution during log expiry")
			continue
		}

		removedFiles = append(removedFiles, logFilePath)
	}

	log.Debug().Strs("removed_files", removedFiles).Msg("removed task execution logs")
}

// launchTaskExecution registers[^1] and launches a brand new task execution as part of a larger run.
// It blocks until the task execution has completed.
//
// [^1]: The register parameter controls whether the execution is inserted into the database and its
// creation announced via events. Turning it off is useful when reviving an execution that already
// has a record.
func (r *RunStateMachine) launchTaskExecution(task models.Task, register bool) {
	// Start by creating a new task execution and saving it to the state machine and disk.
	newTaskExecution := models.NewTaskExecution(r.Pipeline.Namespace, r.Pipeline.ID, r.Run.RunID, task)

	r.TaskExecutions.Set(newTaskExecution.ID, *newTaskExecution)

	if register {
		err := r.APIContext.db.InsertTaskExecution(r.APIContext.db.Write(), newTaskExecution.ToStorage())
		if err != nil {
			log.Error().Err(err).Msg("could not register task execution")
			return
		}

		r.APIContext.events.Publish(models.EventCreatedTaskExecution{
			NamespaceID:     r.Pipeline.Namespace,
			PipelineID:      r.Pipeline.ID,
			RunID:           r.Run.RunID,
			TaskExecutionID: newTaskExecution.ID,
		})
	}

	envVars := r.APIContext.combineVariables(r.Run, &task)
	newTaskExecution.Variables = envVars

	envVarsJSON, err := json.Marshal(envVars)
	if err != nil {
		log.Error().Err(err).Msg("could not serialize task execution variables")
		return
	}

	err = r.APIContext.db.UpdateTaskExecution(r.APIContext.db.Write(), newTaskExecution.Namespace,
		newTaskExecution.Pipeline, newTaskExecution.Run, newTaskExecution.ID,
		storage.UpdatableTaskExecutionFields{
			Variables: ptr(string(envVarsJSON)),
		})
	if err != nil {
		log.Error().Err(err).Msg("could not launch task execution")
		return
	}

	// Now examine the validity of the task execution to be started and wait for its parents to finish.
	err = r.setTaskExecutionState(*newTaskExecution, models.TaskExecutionStateWaiting)
	if err != nil {
		log.Error().Err(err).Msg("could not launch task execution")
		return
	}

	for !r.parentTasksFinished(task.DependsOn) {
		time.Sleep(time.Millisecond * 500)
	}

	err = r.setTaskExecutionState(*newTaskExecution, models.TaskExecutionStateProcessing)
	if err != nil {
		log.Error().Err(err).Msg("could not launch task execution")
		return
	}

	// Check that the parents all finished in the required states. If not the task is skipped.
	err = r.taskDependenciesSatisfied(task.DependsOn)
	if err != nil {
		_ = r.setTaskExecutionFinished(newTaskExecution.ID, nil, models.TaskExecutionStatusSkipped,
			&models.TaskExecutionStatusReason{
				Reason:      models.TaskExecutionStatusReasonKindFailedPrecondition,
				Description: fmt.Sprintf("Task could not be run due to unmet dependencies; %v", err),
			})
		return
	}

	// Resolving object and secret references must happen only after a task's parents have
	// finished; this is what lets one task pass objects to its downstream siblings.
	envVars, err = r.APIContext.interpolateVars(r.Pipeline.Namespace, r.Pipeline.ID, &r.Run.RunID, envVars)
	if err != nil {
		_ = r.setTaskExecutionFinished(newTaskExecution.ID, nil, models.TaskExecutionStatusFailed,
			&models.TaskExecutionStatusReason{
				Reason:      models.TaskExecutionStatusReasonKindFailedPrecondition,
				Description: fmt.Sprintf("Task could not be run due to inability to retrieve interpolated variables; %v", err),
			})
		return
	}

	containerID := taskContainerID(r.Pipeline.Namespace, r.Pipeline.ID, r.Run.RunID, newTaskExecution.ID)

	_, err = r.APIContext.scheduler.StartContainer(scheduler.StartContainerRequest{
		ID:           containerID,
		ImageName:    task.Image,
		EnvVars:      convertVarsToMap(envVars),
		RegistryAuth: task.RegistryAuth,
		AlwaysPull:   false,
		Entrypoint:   task.Entrypoint,
		Command:      task.Command,
	})
	if err != nil {
		_ = r.setTaskExecutionFinished(newTaskExecution.ID, nil, models.TaskExecutionStatusFailed,
			&models.TaskExecutionStatusReason{
				Reason:      models.TaskExecutionStatusReasonKindSchedulerError,
				Description: fmt.Sprintf("Task could not be run due to inability to be scheduled; %v", err),
			})
		return
	}

	err = r.APIContext.db.UpdateTaskExecution(r.APIContext.db.Write(), newTaskExecution.Namespace,
		newTaskExecution.Pipeline, newTaskExecution.Run, newTaskExecution.ID,
		storage.UpdatableTaskExecutionFields{
			State:   ptr(string(models.TaskExecutionStateRunning)),
			Started: ptr(timeNowMilliStr()),
		})
	if err != nil {
		log.Error().Err(err).Msg("could not launch task execution")
		return
	}

	r.APIContext.events.Publish(models.EventStartedTaskExecution{
		NamespaceID:     r.Pipeline.Namespace,
		PipelineID:      r.Pipeline.ID,
		RunID:           r.Run.RunID,
		TaskExecutionID: newTaskExecution.ID,
	})

	newTaskExecution.State = models.TaskExecutionStateRunning
	newTaskExecution.Started = uint64(time.Now().UnixMilli())
	r.TaskExecutions.Set(newTaskExecution.ID, *newTaskExecution)

	// Block until the task execution is finished and log results.
	err = r.monitorTaskExecution(containerID, newTaskExecution.ID)
	if err != nil {
		log.Error().Err(err).Msg("error while monitoring task execution")
	}
}
