package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/danielgtaylor/huma/v2"

	"github.com/rs/zerolog/log"
)

type (
	ListPipelinesRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		Offset      int64  `query:"offset" example:"0" default:"0" doc:"The number of objects to skip before counting objects returned"`
		Limit       int64  `query:"limit" example:"50" default:"50" doc:"Maximum number of objects to return"`
	}
	ListPipelinesResponse struct {
		Body struct {
			Pipelines []models.PipelineMetadata `json:"pipelines" doc:"The metadata for all pipelines within the namespace"`
		}
	}
)

func (apictx *APIContext) registerListPipelines(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListPipelines",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines",
		Summary:     "List all pipelines within a namespace",
		Description: "Returns the metadata for all pipelines registered within a namespace.",
		Tags:        []string{"Pipelines"},
		// Handler //
	}, func(ctx context.Context, request *ListPipelinesRequest) (*ListPipelinesResponse, error) {
		if !hasAccess(ctx, request.NamespaceID) {
			return nil, huma.NewError(http.StatusUnauthorized, "token does not have access to this namespace")
		}

		storedPipelines, err := apictx.db.ListPipelineMetadata(apictx.db.Read(), int(request.Offset), int(request.Limit),
			request.NamespaceID)
		if err != nil {
			log.Error().Err(err).Msg("could not get pipelines from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve pipelines from database", err)
		}

		pipelines := []models.PipelineMetadata{}
		for _, storedPipeline := range storedPipelines {
			var pipeline models.PipelineMetadata
			pipeline.FromStorage(&storedPipeline)
			pipelines = append(pipelines, pipeline)
		}

		resp := &ListPipelinesResponse{}
		resp.Body.Pipelines = pipelines

		return resp, nil
	})
}

type (
	DescribePipelineRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
	}
	DescribePipelineResponse struct {
		Body struct {
			Metadata models.PipelineMetadata `json:"metadata" doc:"System controlled metadata for the pipeline"`
			// The live config if one exists, otherwise the latest registered config.
			Config models.PipelineConfig `json:"config" doc:"The most relevant config version for the pipeline"`
		}
	}
)

func (apictx *APIContext) registerDescribePipeline(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DescribePipeline",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}",
		Summary:     "Describe a single pipeline",
		Description: "Returns the metadata for a pipeline combined with its live config version. If no version has been " +
			"deployed yet the latest registered version is returned instead.",
		Tags: []string{"Pipelines"},
		// Handler //
	}, func(ctx context.Context, request *DescribePipelineRequest) (*DescribePipelineResponse, error) {
		if !hasAccess(ctx, request.NamespaceID) {
			return nil, huma.NewError(http.StatusUnauthorized, "token does not have access to this namespace")
		}

		storedMetadata, err := apictx.db.GetPipelineMetadata(apictx.db.Read(), request.NamespaceID, request.PipelineID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "pipeline not found")
			}

			log.Error().Err(err).Msg("could not get pipeline from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve pipeline from database", err)
		}

		var metadata models.PipelineMetadata
		metadata.FromStorage(&storedMetadata)

		storedConfig, err := apictx.db.GetLivePipelineConfig(apictx.db.Read(), request.NamespaceID, request.PipelineID)
		if err != nil {
			if !errors.Is(err, storage.ErrEntityNotFound) {
				log.Error().Err(err).Msg("could not get pipeline config from storage")
				return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve pipeline config from database", err)
			}

			storedConfig, err = apictx.db.GetLatestPipelineConfig(apictx.db.Read(), request.NamespaceID, request.PipelineID)
			if err != nil {
				if errors.Is(err, storage.ErrEntityNotFound) {
					return nil, huma.NewError(http.StatusNotFound, "pipeline has no registered configs")
				}

				log.Error().Err(err).Msg("could not get pipeline config from storage")
				return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve pipeline config from database", err)
			}
		}

		storedTasks, err := apictx.db.ListTasks(apictx.db.Read(), request.NamespaceID, request.PipelineID, storedConfig.Version)
		if err != nil {
			log.Error().Err(err).Msg("could not get tasks from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve tasks from database", err)
		}

		var config models.PipelineConfig
		config.FromStorage(&storedConfig, &storedTasks)

		resp := &DescribePipelineResponse{}
		resp.Body.Metadata = metadata
		resp.Body.Config = config

		return resp, nil
	})
}

type (
	EnablePipelineRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
	}
	EnablePipelineResponse struct{}
)

func (apictx *APIContext) registerEnablePipeline(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "EnablePipeline",
		Method:      http.MethodPost,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/enable",
		Summary:     "Enable a pipeline",
		Description: "Allows a previously disabled pipeline to resume processing new runs.",
		Tags:        []string{"Pipelines"},
		// Handler //
	}, func(ctx context.Context, request *EnablePipelineRequest) (*EnablePipelineResponse, error) {
		if !hasAccess(ctx, request.NamespaceID) {
			return nil, huma.NewError(http.StatusUnauthorized, "token does not have access to this namespace")
		}

		err := apictx.db.UpdatePipelineMetadata(apictx.db.Write(), request.NamespaceID, request.PipelineID,
			storage.UpdatablePipelineMetadataFields{
				State:    ptr(string(models.PipelineStateActive)),
				Modified: ptr(timeNowMilliStr()),
			})
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "pipeline not found")
			}

			log.Error().Err(err).Msg("could not update pipeline in storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to update pipeline in database", err)
		}

		apictx.events.Publish(models.EventEnabledPipeline{
			NamespaceID: request.NamespaceID,
			PipelineID:  request.PipelineID,
		})

		return &EnablePipelineResponse{}, nil
	})
}

type (
	DisablePipelineRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
	}
	DisablePipelineResponse struct{}
)

func (apictx *APIContext) registerDisablePipeline(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DisablePipeline",
		Method:      http.MethodPost,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/disable",
		Summary:     "Disable a pipeline",
		Description: "Stops a pipeline from accepting new runs. Does not affect runs already in flight.",
		Tags:        []string{"Pipelines"},
		// Handler //
	}, func(ctx context.Context, request *DisablePipelineRequest) (*DisablePipelineResponse, error) {
		if !hasAccess(ctx, request.NamespaceID) {
			return nil, huma.NewError(http.StatusUnauthorized, "token does not have access to this namespace")
		}

		err := apictx.db.UpdatePipelineMetadata(apictx.db.Write(), request.NamespaceID, request.PipelineID,
			storage.UpdatablePipelineMetadataFields{
				State:    ptr(string(models.PipelineStateDisabled)),
				Modified: ptr(timeNowMilliStr()),
			})
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "pipeline not found")
			}

			log.Error().Err(err).Msg("could not update pipeline in storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to update pipeline in database", err)
		}

		apictx.events.Publish(models.EventDisabledPipeline{
			NamespaceID: request.NamespaceID,
			PipelineID:  request.PipelineID,
		})

		return &DisablePipelineResponse{}, nil
	})
}

type (
	DeletePipelineRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
	}
	DeletePipelineResponse struct{}
)

func (apictx *APIContext) registerDeletePipeline(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DeletePipeline",
		Method:      http.MethodDelete,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}",
		Summary:     "Delete a pipeline",
		Description: "Removes a pipeline along with all of its versions, runs and task executions.",
		Tags:        []string{"Pipelines"},
		// Handler //
	}, func(ctx context.Context, request *DeletePipelineRequest) (*DeletePipelineResponse, error) {
		if !hasAccess(ctx, request.NamespaceID) {
			return nil, huma.NewError(http.StatusUnauthorized, "token does not have access to this namespace")
		}

		err := apictx.db.DeletePipelineMetadata(apictx.db.Write(), request.NamespaceID, request.PipelineID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "pipeline not found")
			}

			log.Error().Err(err).Msg("could not delete pipeline from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to delete pipeline from database", err)
		}

		apictx.events.Publish(models.EventDeletedPipeline{
			NamespaceID: request.NamespaceID,
			PipelineID:  request.PipelineID,
		})

		return &DeletePipelineResponse{}, nil
	})
}
