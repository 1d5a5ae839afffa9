package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/storage"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmoiron/sqlx"
)

func (apictx *APIContext) registerListRuns(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListRuns",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/runs",
		Summary:     "List all runs",
		Description: "List all runs for a particular pipeline, sorted by most recent first.",
		Tags:        []string{"Runs"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		Offset      int    `query:"offset" default:"0" doc:"The offset into the list of runs"`
		Limit       int    `query:"limit" default:"0" doc:"The limit of how many runs to return"`
	},
	) (*ListRunsResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		storedRuns, err := apictx.db.ListRuns(apictx.db.Read(), request.Offset, request.Limit, namespace,
			request.PipelineID)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not get runs", err)
		}

		runs := []models.Run{}

		for _, storedRun := range storedRuns {
			var run models.Run
			run.FromStorage(&storedRun)
			runs = append(runs, run)
		}

		resp := &ListRunsResponse{}
		resp.Body.Runs = runs

		return resp, nil
	})
}

type ListRunsResponse struct {
	Body struct {
		Runs []models.Run `json:"runs" doc:"A list of runs"`
	}
}

func (apictx *APIContext) registerDescribeRun(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DescribeRun",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/runs/{run_id}",
		Summary:     "Describe a run",
		Description: "Returns details on a specific run.",
		Tags:        []string{"Runs"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		RunID       int64  `path:"run_id" example:"1" doc:"The unique identifier for the target run"`
	},
	) (*DescribeRunResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		run, err := apictx.resolveRun(namespace, request.PipelineID, request.RunID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "run not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get run", err)
		}

		resp := &DescribeRunResponse{}
		resp.Body.Run = *run

		return resp, nil
	})
}

type DescribeRunResponse struct {
	Body struct {
		Run models.Run `json:"run" doc:"The requested run"`
	}
}

func (apictx *APIContext) registerStartRun(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID:   "StartRun",
		Method:        http.MethodPost,
		Path:          "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/runs",
		Summary:       "Start a new run",
		Description:   "Launch a new run of the pipeline's live configuration version.",
		Tags:          []string{"Runs"},
		DefaultStatus: http.StatusCreated,
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		Body        struct {
			Variables map[string]string `json:"variables,omitempty" doc:"Optional environment variables made available to all task executions of this run"`
		}
	},
	) (*StartRunResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		if apictx.ignorePipelineRunEvents.Load() {
			return nil, huma.NewError(http.StatusServiceUnavailable,
				"api is not accepting new events at this time")
		}

		run, err := apictx.launchNewRun(ctx, namespace, request.PipelineID, request.Body.Variables)
		if err != nil {
			return nil, err
		}

		resp := &StartRunResponse{}
		resp.Body.Run = *run

		return resp, nil
	})
}

type StartRunResponse struct {
	Body struct {
		Run models.Run `json:"run" doc:"The newly created run"`
	}
}

// launchNewRun creates a new run against the pipeline's live config and hands it off to a fresh
// state machine. The heavy lifting happens asynchronously; the caller gets back the run record in
// its pending state.
func (apictx *APIContext) launchNewRun(ctx context.Context, namespace, pipeline string,
	variables map[string]string,
) (*models.Run, error) {
	storedMetadata, err := apictx.db.GetPipelineMetadata(apictx.db.Read(), namespace, pipeline)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return nil, huma.NewError(http.StatusNotFound, "pipeline not found")
		}

		return nil, huma.NewError(http.StatusInternalServerError, "could not get pipeline", err)
	}

	var metadata models.PipelineMetadata
	metadata.FromStorage(&storedMetadata)

	if metadata.State != models.PipelineStateActive {
		return nil, huma.NewError(http.StatusFailedDependency,
			"could not create run; pipeline is not active")
	}

	storedConfig, err := apictx.db.GetLivePipelineConfig(apictx.db.Read(), namespace, pipeline)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return nil, huma.NewError(http.StatusFailedDependency,
				"could not create run; pipeline has no live configuration version; deploy one first")
		}

		return nil, huma.NewError(http.StatusInternalServerError, "could not get pipeline config", err)
	}

	storedTasks, err := apictx.db.ListTasks(apictx.db.Read(), namespace, pipeline, storedConfig.Version)
	if err != nil {
		return nil, huma.NewError(http.StatusInternalServerError, "could not get pipeline config", err)
	}

	var config models.PipelineConfig
	config.FromStorage(&storedConfig, &storedTasks)

	initiator := models.Initiator{
		Type:   models.InitiatorTypeHuman,
		Name:   "api",
		Reason: "Manually initiated run via API",
	}

	// Extensions start runs with their own client tokens; attribute those runs to the machine.
	if kind, ok := ctx.Value(contextUserKind).(string); ok && kind == string(models.TokenTypeClient) {
		initiator.Type = models.InitiatorTypeBot
	}

	var newRun *models.Run

	// Admission control and run id allocation share one write transaction so that two concurrent
	// starts cannot both pass the parallelism check or claim the same id.
	err = apictx.db.InsideTx(func(tx *sqlx.Tx) error {
		if err := apictx.checkRunParallelismLimit(tx, namespace, pipeline, config.Parallelism); err != nil {
			return err
		}

		latestRunID := int64(0)

		latestRun, err := apictx.db.GetLatestRun(tx, namespace, pipeline)
		if err != nil {
			if !errors.Is(err, storage.ErrEntityNotFound) {
				return huma.NewError(http.StatusInternalServerError, "could not get latest run", err)
			}
		} else {
			latestRunID = latestRun.ID
		}

		newRun = models.NewRun(namespace, pipeline, config.Version, latestRunID+1, initiator,
			convertVarsToSlice(variables, models.VariableSourceRunOptions))

		if err := apictx.db.InsertRun(tx, newRun.ToStorage()); err != nil {
			return huma.NewError(http.StatusInternalServerError, "could not create run", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	apictx.events.Publish(models.EventQueuedRun{
		NamespaceID: namespace,
		PipelineID:  pipeline,
		RunID:       newRun.RunID,
	})

	runStateMachine := apictx.newRunStateMachine(&metadata, &config, newRun)

	go runStateMachine.executeTaskTree()

	return newRun, nil
}

// checkRunParallelismLimit enforces the effective parallelism limit for a pipeline, which is the
// stricter of the pipeline's own setting and the server wide one.
func (apictx *APIContext) checkRunParallelismLimit(conn storage.Queryable, namespace, pipeline string,
	pipelineLimit int64,
) error {
	limit := pipelineLimit
	globalLimit := int64(apictx.config.RunParallelismLimit)

	if limit == 0 || (globalLimit != 0 && globalLimit < limit) {
		limit = globalLimit
	}

	if limit == 0 {
		return nil
	}

	activeRuns, err := apictx.db.ListActiveRuns(conn, namespace, pipeline)
	if err != nil {
		return huma.NewError(http.StatusInternalServerError,
			"could not verify run parallelism limit; refusing new run", err)
	}

	if int64(len(activeRuns)) >= limit {
		return huma.NewError(http.StatusTooManyRequests,
			fmt.Sprintf("pipeline has reached its parallel run limit of %d; wait for a run to finish", limit))
	}

	return nil
}

func (apictx *APIContext) registerCancelRun(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "CancelRun",
		Method:      http.MethodDelete,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/runs/{run_id}",
		Summary:     "Cancel a run",
		Description: "Cancel a run by requesting the stop of all its task executions. Stopped containers get " +
			"a grace period before being force killed; pass force to skip the grace period.",
		Tags: []string{"Runs"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		RunID       int64  `path:"run_id" example:"1" doc:"The unique identifier for the target run"`
		Force       bool   `query:"force" default:"false" doc:"Skip the grace period and kill containers immediately"`
	},
	) (*CancelRunResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		run, err := apictx.resolveRun(namespace, request.PipelineID, request.RunID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "run not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get run", err)
		}

		if run.State == models.RunStateComplete {
			return nil, huma.NewError(http.StatusBadRequest, "run has already finished")
		}

		timeout := apictx.config.TaskExecutionStopTimeout.Milliseconds()
		if request.Force {
			timeout = 0
		}

		err = apictx.cancelRun(run, "Run cancelled via API", timeout)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not cancel run", err)
		}

		resp := &CancelRunResponse{}

		return resp, nil
	})
}

type CancelRunResponse struct{}

func (apictx *APIContext) registerCancelAllRuns(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "CancelAllRuns",
		Method:      http.MethodDelete,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/runs",
		Summary:     "Cancel all in progress runs",
		Description: "Request cancellation of every run of the pipeline that is still in progress.",
		Tags:        []string{"Runs"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		Force       bool   `query:"force" default:"false" doc:"Skip the grace period and kill containers immediately"`
	},
	) (*CancelAllRunsResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		timeout := apictx.config.TaskExecutionStopTimeout.Milliseconds()
		if request.Force {
			timeout = 0
		}

		cancelledRuns, err := apictx.cancelAllRuns(namespace, request.PipelineID,
			"Run cancelled via API", timeout)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not cancel runs", err)
		}

		resp := &CancelAllRunsResponse{}
		resp.Body.Runs = cancelledRuns

		return resp, nil
	})
}

type CancelAllRunsResponse struct {
	Body struct {
		Runs []int64 `json:"runs" doc:"The run ids that were told to cancel"`
	}
}
