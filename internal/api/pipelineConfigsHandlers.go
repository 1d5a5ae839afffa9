package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/clintjedwards/gofer/internal/dag"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/danielgtaylor/huma/v2"
	"github.com/jmoiron/sqlx"

	"github.com/rs/zerolog/log"
)

var alphanumericWithUnderscores = regexp.MustCompile("^[a-zA-Z0-9_]*$")

// Identifiers are used as part of container names, file paths and API routes, so we keep the
// allowed character set conservative.
func validateIdentifier(arg, value string) error {
	if len(value) > 70 {
		return fmt.Errorf("%s cannot be longer than 70 characters", arg)
	}

	if len(value) < 3 {
		return fmt.Errorf("%s cannot be shorter than 3 characters", arg)
	}

	if !alphanumericWithUnderscores.MatchString(value) {
		return fmt.Errorf("%s can only be made up of alphanumeric and underscore characters", arg)
	}

	return nil
}

// validateTaskDAG makes sure the task set forms a directed acyclic graph. Every task is entered
// as a node and every dependency as an edge; any dangling parent reference or cycle fails the
// whole config.
func validateTaskDAG(tasks map[string]models.Task) error {
	taskDAG := dag.New()

	for id := range tasks {
		err := taskDAG.AddNode(id)
		if err != nil {
			if errors.Is(err, dag.ErrEntityExists) {
				return fmt.Errorf("task %q is defined more than once", id)
			}
			return err
		}
	}

	for id, task := range tasks {
		for parent := range task.DependsOn {
			err := taskDAG.AddEdge(parent, id)
			if err != nil {
				if errors.Is(err, dag.ErrEdgeCreatesCycle) {
					return fmt.Errorf("a cycle was detected creating a dependency from task %q to task %q; "+
						"pipelines must be acyclic", parent, id)
				}
				if errors.Is(err, dag.ErrEntityNotFound) {
					return fmt.Errorf("task %q depends on task %q, but task %q does not exist", id, parent, parent)
				}
				return err
			}
		}
	}

	return nil
}

type (
	RegisterPipelineConfigRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		Body        struct {
			ID          string                 `json:"id" example:"simple_pipeline" doc:"Unique identifier for the pipeline"`
			Name        string                 `json:"name" example:"Simple Pipeline" doc:"Humanized name for the pipeline"`
			Description string                 `json:"description,omitempty" doc:"Description of the pipeline's purpose and other details"`
			Parallelism int64                  `json:"parallelism,omitempty" example:"2" doc:"How many runs can be active at any single time; 0 defers to the global limit"`
			Tasks       map[string]models.Task `json:"tasks" doc:"The task set of the pipeline keyed by task id"`
		}
	}
	RegisterPipelineConfigResponse struct {
		Body struct {
			Pipeline models.PipelineMetadata `json:"pipeline" doc:"The metadata of the pipeline registered to"`
			Config   models.PipelineConfig   `json:"config" doc:"The newly registered config version"`
		}
	}
)

func (apictx *APIContext) registerRegisterPipelineConfig(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID:   "RegisterPipelineConfig",
		Method:        http.MethodPost,
		Path:          "/api/namespaces/{namespace_id}/pipelines/configs",
		Summary:       "Register a new pipeline config version",
		DefaultStatus: http.StatusCreated,
		Description: "Registers a new version of a pipeline's configuration. If the pipeline does not exist yet it is " +
			"created automatically. A registered config does not take effect until it is deployed.",
		Tags: []string{"Configs"},
		// Handler //
	}, func(ctx context.Context, request *RegisterPipelineConfigRequest) (*RegisterPipelineConfigResponse, error) {
		if !hasAccess(ctx, request.NamespaceID) {
			return nil, huma.NewError(http.StatusUnauthorized, "token does not have access to this namespace")
		}

		if err := validateIdentifier("id", request.Body.ID); err != nil {
			return nil, huma.NewError(http.StatusBadRequest, err.Error())
		}

		if len(request.Body.Tasks) == 0 {
			return nil, huma.NewError(http.StatusBadRequest, "pipelines must contain at least one task")
		}

		tasks := map[string]models.Task{}
		for id, task := range request.Body.Tasks {
			if err := validateIdentifier("task id", id); err != nil {
				return nil, huma.NewError(http.StatusBadRequest, err.Error())
			}

			task.ID = id
			for index, variable := range task.Variables {
				variable.Source = models.VariableSourcePipelineConfig
				task.Variables[index] = variable
			}
			tasks[id] = task
		}

		if err := validateTaskDAG(tasks); err != nil {
			return nil, huma.NewError(http.StatusBadRequest, err.Error())
		}

		var metadata *models.PipelineMetadata
		var config *models.PipelineConfig

		err := apictx.db.InsideTx(func(tx *sqlx.Tx) error {
			metadata = models.NewPipelineMetadata(request.NamespaceID, request.Body.ID)

			// If the pipeline doesn't exist yet we register it for the user automatically.
			err := apictx.db.InsertPipelineMetadata(tx, metadata.ToStorage())
			if err != nil {
				if !errors.Is(err, storage.ErrEntityExists) {
					return err
				}

				storedMetadata, err := apictx.db.GetPipelineMetadata(tx, request.NamespaceID, request.Body.ID)
				if err != nil {
					return err
				}
				metadata.FromStorage(&storedMetadata)
			}

			var latestVersion int64

			latestConfig, err := apictx.db.GetLatestPipelineConfig(tx, request.NamespaceID, request.Body.ID)
			if err != nil {
				if !errors.Is(err, storage.ErrEntityNotFound) {
					return err
				}
			} else {
				latestVersion = latestConfig.Version
			}

			config = models.NewPipelineConfig(request.NamespaceID, request.Body.ID, latestVersion+1,
				request.Body.Name, request.Body.Description, request.Body.Parallelism, tasks)

			storedConfig, storedTasks := config.ToStorage()

			err = apictx.db.InsertPipelineConfig(tx, storedConfig)
			if err != nil {
				return err
			}

			for _, task := range storedTasks {
				err = apictx.db.InsertTask(tx, task)
				if err != nil {
					return err
				}
			}

			return nil
		})
		if err != nil {
			log.Error().Err(err).Msg("could not register pipeline config due to database error")
			return nil, huma.NewError(http.StatusInternalServerError, "could not register pipeline config", err)
		}

		if config.Version == 1 {
			apictx.events.Publish(models.EventCreatedPipeline{
				NamespaceID: metadata.Namespace,
				PipelineID:  metadata.ID,
			})
		}

		go apictx.pruneOldPipelineConfigs(request.NamespaceID, request.Body.ID)

		resp := &RegisterPipelineConfigResponse{}
		resp.Body.Pipeline = *metadata
		resp.Body.Config = *config

		return resp, nil
	})
}

// pruneOldPipelineConfigs removes the oldest deprecated config versions once a pipeline exceeds its
// version retention limit. Live and unreleased versions are never pruned.
func (apictx *APIContext) pruneOldPipelineConfigs(namespace, pipeline string) {
	storedConfigs, err := apictx.db.ListPipelineConfigs(apictx.db.Read(), 0, 0, namespace, pipeline)
	if err != nil {
		log.Error().Err(err).Msg("could not list pipeline configs while pruning old versions")
		return
	}

	if len(storedConfigs) <= apictx.config.PipelineVersionLimit {
		return
	}

	excess := len(storedConfigs) - apictx.config.PipelineVersionLimit

	// ListPipelineConfigs returns versions newest first, so we walk it backwards.
	for i := len(storedConfigs) - 1; i >= 0 && excess > 0; i-- {
		storedConfig := storedConfigs[i]
		if storedConfig.State != string(models.PipelineConfigStateDeprecated) {
			continue
		}

		err = apictx.db.DeletePipelineConfig(apictx.db.Write(), namespace, pipeline, storedConfig.Version)
		if err != nil {
			log.Error().Err(err).Int64("version", storedConfig.Version).
				Msg("could not delete pipeline config while pruning old versions")
			continue
		}

		log.Debug().Str("namespace", namespace).Str("pipeline", pipeline).Int64("version", storedConfig.Version).
			Msg("pruned old pipeline config")
		excess--
	}
}

type (
	ListPipelineConfigsRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
		Offset      int64  `query:"offset" example:"0" default:"0" doc:"The number of objects to skip before counting objects returned"`
		Limit       int64  `query:"limit" example:"50" default:"50" doc:"Maximum number of objects to return"`
	}
	ListPipelineConfigsResponse struct {
		Body struct {
			Configs []models.PipelineConfig `json:"configs" doc:"All config versions for the pipeline, newest first"`
		}
	}
)

func (apictx *APIContext) registerListPipelineConfigs(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListPipelineConfigs",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/configs",
		Summary:     "List all config versions for a pipeline",
		Description: "Returns every retained config version for a pipeline, newest first.",
		Tags:        []string{"Configs"},
		// Handler //
	}, func(ctx context.Context, request *ListPipelineConfigsRequest) (*ListPipelineConfigsResponse, error) {
		if !hasAccess(ctx, request.NamespaceID) {
			return nil, huma.NewError(http.StatusUnauthorized, "token does not have access to this namespace")
		}

		storedConfigs, err := apictx.db.ListPipelineConfigs(apictx.db.Read(), int(request.Offset), int(request.Limit),
			request.NamespaceID, request.PipelineID)
		if err != nil {
			log.Error().Err(err).Msg("could not get pipeline configs from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve pipeline configs from database", err)
		}

		configs := []models.PipelineConfig{}
		for _, storedConfig := range storedConfigs {
			storedTasks, err := apictx.db.ListTasks(apictx.db.Read(), request.NamespaceID, request.PipelineID,
				storedConfig.Version)
			if err != nil {
				log.Error().Err(err).Msg("could not get tasks from storage")
				return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve tasks from database", err)
			}

			var config models.PipelineConfig
			config.FromStorage(&storedConfig, &storedTasks)
			configs = append(configs, config)
		}

		resp := &ListPipelineConfigsResponse{}
		resp.Body.Configs = configs

		return resp, nil
	})
}

type (
	DescribePipelineConfigRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
		Version     int64  `path:"version" example:"1" doc:"The version of the target pipeline config"`
	}
	DescribePipelineConfigResponse struct {
		Body struct {
			Config models.PipelineConfig `json:"config" doc:"The config version requested"`
		}
	}
)

func (apictx *APIContext) registerDescribePipelineConfig(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DescribePipelineConfig",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/configs/{version}",
		Summary:     "Describe a single pipeline config version",
		Description: "Returns a single version of a pipeline's configuration including its full task set.",
		Tags:        []string{"Configs"},
		// Handler //
	}, func(ctx context.Context, request *DescribePipelineConfigRequest) (*DescribePipelineConfigResponse, error) {
		if !hasAccess(ctx, request.NamespaceID) {
			return nil, huma.NewError(http.StatusUnauthorized, "token does not have access to this namespace")
		}

		storedConfig, err := apictx.db.GetPipelineConfig(apictx.db.Read(), request.NamespaceID, request.PipelineID,
			request.Version)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "pipeline config not found")
			}

			log.Error().Err(err).Msg("could not get pipeline config from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve pipeline config from database", err)
		}

		storedTasks, err := apictx.db.ListTasks(apictx.db.Read(), request.NamespaceID, request.PipelineID, request.Version)
		if err != nil {
			log.Error().Err(err).Msg("could not get tasks from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve tasks from database", err)
		}

		var config models.PipelineConfig
		config.FromStorage(&storedConfig, &storedTasks)

		resp := &DescribePipelineConfigResponse{}
		resp.Body.Config = config

		return resp, nil
	})
}

type (
	DeletePipelineConfigRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
		Version     int64  `path:"version" example:"1" doc:"The version of the target pipeline config"`
	}
	DeletePipelineConfigResponse struct{}
)

func (apictx *APIContext) registerDeletePipelineConfig(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DeletePipelineConfig",
		Method:      http.MethodDelete,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/configs/{version}",
		Summary:     "Delete a pipeline config version",
		Description: "Removes a single config version. The live version and the latest version cannot be deleted.",
		Tags:        []string{"Configs"},
		// Handler //
	}, func(ctx context.Context, request *DeletePipelineConfigRequest) (*DeletePipelineConfigResponse, error) {
		if !hasAccess(ctx, request.NamespaceID) {
			return nil, huma.NewError(http.StatusUnauthorized, "token does not have access to this namespace")
		}

		storedConfig, err := apictx.db.GetPipelineConfig(apictx.db.Read(), request.NamespaceID, request.PipelineID,
			request.Version)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "pipeline config not found")
			}

			log.Error().Err(err).Msg("could not get pipeline config from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve pipeline config from database", err)
		}

		if storedConfig.State == string(models.PipelineConfigStateLive) {
			return nil, huma.NewError(http.StatusBadRequest,
				"cannot delete a live configuration; deploy a new config and then delete the old one")
		}

		latestConfig, err := apictx.db.GetLatestPipelineConfig(apictx.db.Read(), request.NamespaceID, request.PipelineID)
		if err != nil {
			log.Error().Err(err).Msg("could not get pipeline config from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve pipeline config from database", err)
		}

		if latestConfig.Version == request.Version {
			return nil, huma.NewError(http.StatusBadRequest,
				"cannot delete the latest version of a pipeline configuration; register a new config and then delete the older version")
		}

		err = apictx.db.DeletePipelineConfig(apictx.db.Write(), request.NamespaceID, request.PipelineID, request.Version)
		if err != nil {
			log.Error().Err(err).Msg("could not delete pipeline config from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to delete pipeline config from database", err)
		}

		return &DeletePipelineConfigResponse{}, nil
	})
}
