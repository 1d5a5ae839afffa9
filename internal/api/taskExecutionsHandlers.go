package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/scheduler"
	"github.com/clintjedwards/gofer/internal/storage"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/nxadm/tail"
	"github.com/rs/zerolog/log"
)

func (apictx *APIContext) registerListTaskExecutions(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListTaskExecutions",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/runs/{run_id}/tasks",
		Summary:     "List task executions",
		Description: "List all task executions for a particular run.",
		Tags:        []string{"Task Executions"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		RunID       int64  `path:"run_id" example:"1" doc:"The unique identifier for the target run"`
	},
	) (*ListTaskExecutionsResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		storedExecutions, err := apictx.db.ListTaskExecutions(apictx.db.Read(), 0, 0, namespace,
			request.PipelineID, request.RunID)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not get task executions", err)
		}

		taskExecutions := []models.TaskExecution{}

		for _, storedExecution := range storedExecutions {
			var taskExecution models.TaskExecution
			taskExecution.FromStorage(&storedExecution)
			taskExecutions = append(taskExecutions, taskExecution)
		}

		resp := &ListTaskExecutionsResponse{}
		resp.Body.TaskExecutions = taskExecutions

		return resp, nil
	})
}

type ListTaskExecutionsResponse struct {
	Body struct {
		TaskExecutions []models.TaskExecution `json:"task_executions" doc:"A list of task executions"`
	}
}

func (apictx *APIContext) registerDescribeTaskExecution(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DescribeTaskExecution",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/runs/{run_id}/tasks/{task_execution_id}",
		Summary:     "Describe a task execution",
		Description: "Returns details on a specific task execution.",
		Tags:        []string{"Task Executions"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth            string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID     string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID      string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		RunID           int64  `path:"run_id" example:"1" doc:"The unique identifier for the target run"`
		TaskExecutionID string `path:"task_execution_id" example:"simple_task" doc:"The unique identifier for the target task execution"`
	},
	) (*DescribeTaskExecutionResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		taskExecution, err := apictx.resolveTaskExecution(namespace, request.PipelineID, request.RunID,
			request.TaskExecutionID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "task execution not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get task execution", err)
		}

		resp := &DescribeTaskExecutionResponse{}
		resp.Body.TaskExecution = *taskExecution

		return resp, nil
	})
}

type DescribeTaskExecutionResponse struct {
	Body struct {
		TaskExecution models.TaskExecution `json:"task_execution" doc:"The requested task execution"`
	}
}

func (apictx *APIContext) registerCancelTaskExecution(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "CancelTaskExecution",
		Method:      http.MethodDelete,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/runs/{run_id}/tasks/{task_execution_id}",
		Summary:     "Cancel a task execution",
		Description: "Request the stop of a task execution's container. The container gets a grace period " +
			"before being force killed; pass force to skip the grace period.",
		Tags: []string{"Task Executions"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth            string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID     string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID      string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		RunID           int64  `path:"run_id" example:"1" doc:"The unique identifier for the target run"`
		TaskExecutionID string `path:"task_execution_id" example:"simple_task" doc:"The unique identifier for the target task execution"`
		Force           bool   `query:"force" default:"false" doc:"Skip the grace period and kill the container immediately"`
	},
	) (*CancelTaskExecutionResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		taskExecution, err := apictx.resolveTaskExecution(namespace, request.PipelineID, request.RunID,
			request.TaskExecutionID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "task execution not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get task execution", err)
		}

		if taskExecution.State == models.TaskExecutionStateComplete {
			return nil, huma.NewError(http.StatusBadRequest, "task execution has already finished")
		}

		timeout := apictx.config.TaskExecutionStopTimeout.Milliseconds()
		if request.Force {
			timeout = 0
		}

		err = apictx.cancelTaskExecution(taskExecution, timeout)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not cancel task execution", err)
		}

		resp := &CancelTaskExecutionResponse{}

		return resp, nil
	})
}

type CancelTaskExecutionResponse struct{}

func (apictx *APIContext) registerDeleteTaskExecutionLogs(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DeleteTaskExecutionLogs",
		Method:      http.MethodDelete,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/runs/{run_id}/tasks/{task_execution_id}/logs",
		Summary:     "Delete task execution logs",
		Description: "Remove a task execution's log file from disk. The task execution must be finished.",
		Tags:        []string{"Task Executions"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth            string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID     string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID      string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		RunID           int64  `path:"run_id" example:"1" doc:"The unique identifier for the target run"`
		TaskExecutionID string `path:"task_execution_id" example:"simple_task" doc:"The unique identifier for the target task execution"`
	},
	) (*DeleteTaskExecutionLogsResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		taskExecution, err := apictx.resolveTaskExecution(namespace, request.PipelineID, request.RunID,
			request.TaskExecutionID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "task execution not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get task execution", err)
		}

		if taskExecution.State != models.TaskExecutionStateComplete {
			return nil, huma.NewError(http.StatusBadRequest,
				"can not delete logs for a task execution which is still in progress")
		}

		logFilePath := taskExecutionLogFilePath(apictx.config.TaskExecutionLogsDir, namespace,
			request.PipelineID, request.RunID, request.TaskExecutionID)

		err = os.Remove(logFilePath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, huma.NewError(http.StatusInternalServerError, "could not remove log file", err)
		}

		err = apictx.db.UpdateTaskExecution(apictx.db.Write(), namespace, request.PipelineID, request.RunID,
			request.TaskExecutionID, storage.UpdatableTaskExecutionFields{
				LogsRemoved: ptr(true),
			})
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not update task execution", err)
		}

		resp := &DeleteTaskExecutionLogsResponse{}

		return resp, nil
	})
}

type DeleteTaskExecutionLogsResponse struct{}

// cancelTaskExecution requests the scheduler stop the container backing a task execution. The
// run state machine monitoring the container observes the resulting Cancelled state and records
// the final status, so no status write happens here.
func (apictx *APIContext) cancelTaskExecution(taskExecution *models.TaskExecution, timeout int64) error {
	apictx.events.Publish(models.EventStartedTaskExecutionCancellation{
		NamespaceID:     taskExecution.Namespace,
		PipelineID:      taskExecution.Pipeline,
		RunID:           taskExecution.Run,
		TaskExecutionID: taskExecution.ID,
		Timeout:         timeout,
	})

	return apictx.scheduler.StopContainer(scheduler.StopContainerRequest{
		ID: taskContainerID(taskExecution.Namespace, taskExecution.Pipeline, taskExecution.Run,
			taskExecution.ID),
		Timeout: time.Duration(timeout) * time.Millisecond,
	})
}

func (apictx *APIContext) resolveTaskExecution(namespace, pipeline string, run int64, id string) (
	*models.TaskExecution, error,
) {
	storedExecution, err := apictx.db.GetTaskExecution(apictx.db.Read(), namespace, pipeline, run, id)
	if err != nil {
		return nil, err
	}

	var taskExecution models.TaskExecution
	taskExecution.FromStorage(&storedExecution)

	return &taskExecution, nil
}

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// getTaskExecutionLogsHandler streams a task execution's log file over a websocket connection. It
// follows the file while the execution is still running and closes the stream once the end of file
// marker has been written.
func (apictx *APIContext) getTaskExecutionLogsHandler(resp http.ResponseWriter, req *http.Request) {
	namespace := req.URL.Query().Get("namespace_id")
	if namespace == "" {
		namespace = namespaceDefaultID
	}
	pipeline := chi.URLParam(req, "pipeline_id")
	taskExecutionID := chi.URLParam(req, "task_execution_id")

	runID, err := strconv.ParseInt(chi.URLParam(req, "run_id"), 10, 64)
	if err != nil {
		http.Error(resp, "could not parse run id", http.StatusBadRequest)
		return
	}

	taskExecution, err := apictx.resolveTaskExecution(namespace, pipeline, runID, taskExecutionID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			http.Error(resp, "task execution not found", http.StatusNotFound)
			return
		}

		http.Error(resp, "could not get task execution", http.StatusInternalServerError)
		return
	}

	if taskExecution.LogsExpired {
		http.Error(resp, "task execution logs have expired and are no longer available",
			http.StatusGone)
		return
	}

	if taskExecution.LogsRemoved {
		http.Error(resp, "task execution logs have been removed and are no longer available",
			http.StatusGone)
		return
	}

	conn, err := websocketUpgrader.Upgrade(resp, req, nil)
	if err != nil {
		log.Error().Err(err).Msg("could not upgrade connection to websocket")
		return
	}
	defer conn.Close()

	logFilePath := taskExecutionLogFilePath(apictx.config.TaskExecutionLogsDir, namespace, pipeline,
		runID, taskExecutionID)

	file, err := tail.TailFile(logFilePath, tail.Config{Follow: true, Logger: tail.DiscardingLogger})
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "could not tail log file"))
		return
	}
	defer file.Stop()

	for line := range file.Lines {
		if strings.Contains(line.Text, GOFEREOF) {
			break
		}

		err = conn.WriteMessage(websocket.TextMessage, []byte(line.Text))
		if err != nil {
			return
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// attachToTaskExecutionHandler proxies a websocket connection into a running task execution's
// container, allowing interactive debugging of in flight tasks.
func (apictx *APIContext) attachToTaskExecutionHandler(resp http.ResponseWriter, req *http.Request) {
	namespace := req.URL.Query().Get("namespace_id")
	if namespace == "" {
		namespace = namespaceDefaultID
	}
	pipeline := chi.URLParam(req, "pipeline_id")
	taskExecutionID := chi.URLParam(req, "task_execution_id")

	runID, err := strconv.ParseInt(chi.URLParam(req, "run_id"), 10, 64)
	if err != nil {
		http.Error(resp, "could not parse run id", http.StatusBadRequest)
		return
	}

	taskExecution, err := apictx.resolveTaskExecution(namespace, pipeline, runID, taskExecutionID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			http.Error(resp, "task execution not found", http.StatusNotFound)
			return
		}

		http.Error(resp, "could not get task execution", http.StatusInternalServerError)
		return
	}

	if taskExecution.State == models.TaskExecutionStateComplete {
		http.Error(resp, "can not attach to a task execution which has finished", http.StatusBadRequest)
		return
	}

	command := []string{"/bin/sh"}
	if rawCommand := req.URL.Query().Get("command"); rawCommand != "" {
		command = strings.Split(rawCommand, " ")
	}

	attach, err := apictx.scheduler.AttachContainer(scheduler.AttachContainerRequest{
		ID:      taskContainerID(namespace, pipeline, runID, taskExecutionID),
		Command: command,
	})
	if err != nil {
		http.Error(resp, "could not attach to container", http.StatusInternalServerError)
		return
	}
	defer attach.Input.Close()

	conn, err := websocketUpgrader.Upgrade(resp, req, nil)
	if err != nil {
		log.Error().Err(err).Msg("could not upgrade connection to websocket")
		return
	}
	defer conn.Close()

	// Reader side; everything the container outputs goes back over the socket.
	go func() {
		buffer := make([]byte, 1024)
		for {
			read, err := attach.Output.Read(buffer)
			if read > 0 {
				writeErr := conn.WriteMessage(websocket.TextMessage, buffer[:read])
				if writeErr != nil {
					return
				}
			}
			if err != nil {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}()

	// Writer side; everything received over the socket goes into the container.
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		_, err = attach.Input.Write(append(message, '\n'))
		if err != nil {
			return
		}
	}
}
