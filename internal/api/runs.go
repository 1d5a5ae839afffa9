package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/storage"

	"github.com/rs/zerolog/log"
)

// mergeMaps combines many string maps in a "last one in wins" format. Meaning that in case of key collision
// the last map to be added will overwrite the value of the previous key.
func mergeMaps(maps ...map[string]string) map[string]string {
	newMap := map[string]string{}

	for _, extraMap := range maps {
		for key, value := range extraMap {
			newMap[key] = value
		}
	}

	return newMap
}

// systemInjectedVars returns the variables Gofer provides to every task execution. These are
// the lowest precedence layer; user defined variables override them.
func (apictx *APIContext) systemInjectedVars(run *models.Run, task *models.Task) map[string]string {
	vars := map[string]string{
		"GOFER_PIPELINE_ID": run.PipelineID,
		"GOFER_RUN_ID":      fmt.Sprint(run.RunID),
		"GOFER_TASK_ID":     task.ID,
		"GOFER_TASK_IMAGE":  task.Image,
	}

	if task.InjectAPIToken {
		vars["GOFER_API_TOKEN"] = fmt.Sprintf("pipeline_secret{{gofer_api_token_%d}}", run.RunID)
	}

	return vars
}

// combineVariables resolves the final environment variable set for a task execution. The order
// of precedence from lowest to highest is: system injected vars, task level vars, run level vars.
// Keys are case folded to upper so collisions behave the same regardless of how users typed them;
// empty keys are dropped.
func (apictx *APIContext) combineVariables(run *models.Run, task *models.Task) []models.Variable {
	taskVars := map[string]string{}
	for _, variable := range task.Variables {
		taskVars[strings.ToUpper(variable.Key)] = variable.Value
	}

	runVars := map[string]string{}
	for _, variable := range run.Variables {
		runVars[strings.ToUpper(variable.Key)] = variable.Value
	}

	combined := mergeMaps(
		apictx.systemInjectedVars(run, task),
		taskVars,
		runVars,
	)

	variables := []models.Variable{}
	for key, value := range combined {
		if key == "" {
			continue
		}

		source := models.VariableSourceSystem
		if _, found := runVars[key]; found {
			source = models.VariableSourceRunOptions
		} else if _, found := taskVars[key]; found {
			source = models.VariableSourcePipelineConfig
		}

		variables = append(variables, models.Variable{
			Key:    key,
			Value:  value,
			Source: source,
		})
	}

	// Map iteration order is random; the persisted list should not be.
	sort.Slice(variables, func(i, j int) bool {
		return variables[i].Key < variables[j].Key
	})

	return variables
}

// parseInterpolationSyntax checks if a variable value requests interpolation of kind
// `kind{{key}}` and if so returns the key and true. Values that don't match the requested
// kind are left untouched.
func parseInterpolationSyntax(kind, value string) (string, bool) {
	if strings.HasPrefix(value, kind+"{{") && strings.HasSuffix(value, "}}") {
		key := strings.TrimPrefix(value, kind+"{{")
		key = strings.TrimSuffix(key, "}}")
		return strings.TrimSpace(key), true
	}

	return value, false
}

// interpolateVars replaces store references within variable values with the content they point
// to. Supported kinds are `pipeline_secret{{key}}`, `global_secret{{key}}`, `pipeline_object{{key}}`
// and, when run is given, `run_object{{key}}`.
//
// This deliberately runs only once a task's parents have finished so tasks can pass objects to
// their downstream siblings within the same run.
func (apictx *APIContext) interpolateVars(namespace, pipeline string, run *int64, variables []models.Variable) (
	[]models.Variable, error,
) {
	interpolated := []models.Variable{}

	for _, variable := range variables {
		if key, ok := parseInterpolationSyntax("pipeline_secret", variable.Value); ok {
			secret, err := apictx.secretStore.GetSecret(pipelineSecretKey(namespace, pipeline, key))
			if err != nil {
				return nil, fmt.Errorf("could not get pipeline secret %q: %w", key, err)
			}

			variable.Value = secret
			interpolated = append(interpolated, variable)
			continue
		}

		if key, ok := parseInterpolationSyntax("global_secret", variable.Value); ok {
			storedKey, err := apictx.db.GetSecretStoreGlobalKey(apictx.db.Read(), key)
			if err != nil {
				return nil, fmt.Errorf("could not get global secret %q: %w", key, err)
			}

			var secretKey models.SecretStoreKey
			secretKey.FromGlobalSecretKeyStorage(&storedKey)

			if !secretKey.IsAllowedNamespace(namespace) {
				return nil, fmt.Errorf("global secret %q is not allowed for namespace %q", key, namespace)
			}

			secret, err := apictx.secretStore.GetSecret(globalSecretKey(key))
			if err != nil {
				return nil, fmt.Errorf("could not get global secret %q: %w", key, err)
			}

			variable.Value = secret
			interpolated = append(interpolated, variable)
			continue
		}

		if key, ok := parseInterpolationSyntax("pipeline_object", variable.Value); ok {
			object, err := apictx.objectStore.GetObject(pipelineObjectKey(namespace, pipeline, key))
			if err != nil {
				return nil, fmt.Errorf("could not get pipeline object %q: %w", key, err)
			}

			variable.Value = string(object)
			interpolated = append(interpolated, variable)
			continue
		}

		if key, ok := parseInterpolationSyntax("run_object", variable.Value); ok {
			if run == nil {
				return nil, fmt.Errorf("run object %q requested outside of a run context", key)
			}

			object, err := apictx.objectStore.GetObject(runObjectKey(namespace, pipeline, *run, key))
			if err != nil {
				return nil, fmt.Errorf("could not get run object %q: %w", key, err)
			}

			variable.Value = string(object)
			interpolated = append(interpolated, variable)
			continue
		}

		interpolated = append(interpolated, variable)
	}

	return interpolated, nil
}

// cancelRun marks a run for cancellation and requests the stop of every task execution that has
// not yet reached a terminal state. Cancellation of the run record itself happens through the run's
// own state machine once all its task executions have wound down.
func (apictx *APIContext) cancelRun(run *models.Run, description string, timeout int64) error {
	apictx.events.Publish(models.EventStartedRunCancellation{
		NamespaceID: run.NamespaceID,
		PipelineID:  run.PipelineID,
		RunID:       run.RunID,
	})

	storedExecutions, err := apictx.db.ListTaskExecutions(apictx.db.Read(), 0, 0,
		run.NamespaceID, run.PipelineID, run.RunID)
	if err != nil {
		return err
	}

	for _, storedExecution := range storedExecutions {
		var execution models.TaskExecution
		execution.FromStorage(&storedExecution)

		if execution.State == models.TaskExecutionStateComplete {
			continue
		}

		err = apictx.cancelTaskExecution(&execution, timeout)
		if err != nil {
			log.Error().Err(err).Str("task_execution", execution.ID).
				Msg("could not cancel task execution while cancelling run")
		}
	}

	// A run that was still pending has no task executions to unwind, so we finish it here.
	storedRun, err := apictx.db.GetRun(apictx.db.Read(), run.NamespaceID, run.PipelineID, run.RunID)
	if err != nil {
		return err
	}

	if len(storedExecutions) == 0 && storedRun.State != string(models.RunStateComplete) {
		reason := models.RunStatusReason{
			Reason:      models.RunStatusReasonKindUserCancelled,
			Description: description,
		}

		err = apictx.db.UpdateRun(apictx.db.Write(), run.NamespaceID, run.PipelineID, run.RunID,
			storage.UpdatableRunFields{
				State:        ptr(string(models.RunStateComplete)),
				Status:       ptr(string(models.RunStatusCancelled)),
				StatusReason: ptr(reason.ToJSON()),
				Ended:        ptr(timeNowMilliStr()),
			})
		if err != nil {
			return err
		}

		apictx.events.Publish(models.EventCompletedRun{
			NamespaceID: run.NamespaceID,
			PipelineID:  run.PipelineID,
			RunID:       run.RunID,
			Status:      models.RunStatusCancelled,
		})
	}

	return nil
}

// cancelAllRuns requests cancellation for every run of a pipeline that is still in progress.
// It returns the list of run ids that were told to cancel.
func (apictx *APIContext) cancelAllRuns(namespace, pipeline, description string, timeout int64) ([]int64, error) {
	storedRuns, err := apictx.db.ListActiveRuns(apictx.db.Read(), namespace, pipeline)
	if err != nil {
		return nil, err
	}

	cancelled := []int64{}

	for _, storedRun := range storedRuns {
		var run models.Run
		run.FromStorage(&storedRun)

		err = apictx.cancelRun(&run, description, timeout)
		if err != nil {
			log.Error().Err(err).Int64("run", run.RunID).Msg("could not cancel run during cancel all runs")
			continue
		}

		cancelled = append(cancelled, run.RunID)
	}

	return cancelled, nil
}

// resolveRun is a convenience wrapper for handlers that need a full run model.
func (apictx *APIContext) resolveRun(namespace, pipeline string, id int64) (*models.Run, error) {
	storedRun, err := apictx.db.GetRun(apictx.db.Read(), namespace, pipeline, id)
	if err != nil {
		return nil, err
	}

	var run models.Run
	run.FromStorage(&storedRun)

	return &run, nil
}

// waitRunCompletion blocks until a run has reached state Complete or the timeout elapses. Used by
// handlers that need to give feedback on a cancellation they just requested.
func (apictx *APIContext) waitRunCompletion(namespace, pipeline string, id int64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if time.Now().After(deadline) {
			return errors.New("timed out while waiting for run to complete")
		}

		storedRun, err := apictx.db.GetRun(apictx.db.Read(), namespace, pipeline, id)
		if err != nil {
			return err
		}

		if storedRun.State == string(models.RunStateComplete) {
			return nil
		}

		time.Sleep(time.Millisecond * 500)
	}
}
