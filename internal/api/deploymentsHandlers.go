package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/danielgtaylor/huma/v2"
	"github.com/jmoiron/sqlx"

	"github.com/rs/zerolog/log"
)

type (
	DeployPipelineRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
		Body        struct {
			Version int64 `json:"version" example:"2" doc:"The config version to deploy as the new live version"`
		}
	}
	DeployPipelineResponse struct {
		Body struct {
			Deployment models.Deployment `json:"deployment" doc:"The finished deployment"`
		}
	}
)

func (apictx *APIContext) registerDeployPipeline(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DeployPipeline",
		Method:      http.MethodPost,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/deployments",
		Summary:     "Deploy a config version as the new live version",
		Description: "Transitions a pipeline from its current live config version to the given version. Only one " +
			"deployment per pipeline may run at a time. Deploying the version that is already live is a no-op success.",
		Tags: []string{"Deployments"},
		// Handler //
	}, func(ctx context.Context, request *DeployPipelineRequest) (*DeployPipelineResponse, error) {
		if !hasAccess(ctx, request.NamespaceID) {
			return nil, huma.NewError(http.StatusUnauthorized, "token does not have access to this namespace")
		}

		deployment, err := apictx.deployPipelineVersion(request.NamespaceID, request.PipelineID, request.Body.Version)
		if err != nil {
			return nil, err
		}

		resp := &DeployPipelineResponse{}
		resp.Body.Deployment = *deployment

		return resp, nil
	})
}

// deployPipelineVersion runs the full deployment lifecycle for a single version swap. It blocks until
// the deployment has reached its terminal state and returns the finished deployment record.
func (apictx *APIContext) deployPipelineVersion(namespace, pipeline string, version int64) (*models.Deployment, error) {
	endConfigRaw, err := apictx.db.GetPipelineConfig(apictx.db.Read(), namespace, pipeline, version)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return nil, huma.NewError(http.StatusNotFound, "pipeline config not found")
		}

		log.Error().Err(err).Msg("could not get pipeline config from storage")
		return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve pipeline config from database", err)
	}

	var deployment *models.Deployment

	// The single-running-deployment check and the deployment id allocation share one write
	// transaction so concurrent deploy calls cannot both be admitted.
	err = apictx.db.InsideTx(func(tx *sqlx.Tx) error {
		runningDeployments, err := apictx.db.ListRunningDeployments(tx, 0, 0, namespace, pipeline)
		if err != nil {
			log.Error().Err(err).Msg("could not get deployments from storage")
			return huma.NewError(http.StatusInternalServerError, "failed to retrieve deployments from database", err)
		}

		if len(runningDeployments) != 0 {
			return huma.NewError(http.StatusBadRequest,
				fmt.Sprintf("deployment %d is already in progress for this pipeline", runningDeployments[0].ID))
		}

		startVersion := endConfigRaw.Version

		liveConfig, err := apictx.db.GetLivePipelineConfig(tx, namespace, pipeline)
		if err != nil {
			if !errors.Is(err, storage.ErrEntityNotFound) {
				log.Error().Err(err).Msg("could not get pipeline config from storage")
				return huma.NewError(http.StatusInternalServerError, "failed to retrieve pipeline config from database", err)
			}
		} else {
			startVersion = liveConfig.Version
		}

		var latestID int64

		latestDeployment, err := apictx.db.GetLatestDeployment(tx, namespace, pipeline)
		if err != nil {
			if !errors.Is(err, storage.ErrEntityNotFound) {
				log.Error().Err(err).Msg("could not get deployments from storage")
				return huma.NewError(http.StatusInternalServerError, "failed to retrieve deployments from database", err)
			}
		} else {
			latestID = latestDeployment.ID
		}

		deployment = models.NewDeployment(namespace, pipeline, latestID+1, startVersion, endConfigRaw.Version)

		if err := apictx.db.InsertDeployment(tx, deployment.ToStorage()); err != nil {
			log.Error().Err(err).Msg("could not insert deployment into storage")
			return huma.NewError(http.StatusInternalServerError, "failed to insert deployment into database", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	startedEvent := apictx.events.Publish(models.EventStartedDeployment{
		NamespaceID:  namespace,
		PipelineID:   pipeline,
		StartVersion: deployment.StartVersion,
		EndVersion:   deployment.EndVersion,
	})
	if startedEvent != nil {
		deployment.Logs = append(deployment.Logs, *startedEvent)
	}

	// Deploying the already-live version changes nothing, so the deployment completes on the spot.
	swapRequired := deployment.StartVersion != deployment.EndVersion ||
		endConfigRaw.State != string(models.PipelineConfigStateLive)

	var deployErr error
	if swapRequired {
		deployErr = apictx.applyDeployment(deployment)
	}

	if deployErr != nil {
		deployment.Status = models.DeploymentStatusFailed
		deployment.StatusReason = &models.DeploymentStatusReason{
			Reason:      models.DeploymentStatusReasonSubscriptionFailure,
			Description: deployErr.Error(),
		}
	} else {
		deployment.Status = models.DeploymentStatusSuccessful
	}

	deployment.State = models.DeploymentStateComplete
	deployment.Ended = uint64(time.Now().UnixMilli())

	completedEvent := apictx.events.Publish(models.EventCompletedDeployment{
		NamespaceID:  namespace,
		PipelineID:   pipeline,
		StartVersion: deployment.StartVersion,
		EndVersion:   deployment.EndVersion,
	})
	if completedEvent != nil {
		deployment.Logs = append(deployment.Logs, *completedEvent)
	}

	storageDeployment := deployment.ToStorage()

	err = apictx.db.UpdateDeployment(apictx.db.Write(), namespace, pipeline, deployment.DeploymentID,
		storage.UpdatableDeploymentFields{
			Ended:        ptr(storageDeployment.Ended),
			State:        ptr(storageDeployment.State),
			Status:       ptr(storageDeployment.Status),
			StatusReason: ptr(storageDeployment.StatusReason),
			Logs:         ptr(storageDeployment.Logs),
		})
	if err != nil {
		log.Error().Err(err).Msg("could not update deployment in storage")
		return nil, huma.NewError(http.StatusInternalServerError, "failed to update deployment in database", err)
	}

	return deployment, nil
}

// applyDeployment performs the side effects of the version swap: re-issuing the pipeline's extension
// subscriptions against the new config version and then flipping the live pointer. If any subscription
// cannot be applied the swap is abandoned and the previous version stays live.
func (apictx *APIContext) applyDeployment(deployment *models.Deployment) error {
	storedSubscriptions, err := apictx.db.ListExtensionSubscriptions(apictx.db.Read(),
		deployment.NamespaceID, deployment.PipelineID)
	if err != nil {
		return fmt.Errorf("could not list pipeline extension subscriptions: %w", err)
	}

	applied := []models.PipelineExtensionSubscription{}

	for _, storedSubscription := range storedSubscriptions {
		var subscription models.PipelineExtensionSubscription
		subscription.FromStorage(&storedSubscription)

		err = apictx.sendSubscribeToExtension(&subscription)
		if err != nil {
			// Unwind the subscriptions we already re-issued so the extension set reflects the version
			// that stays live.
			for _, appliedSubscription := range applied {
				unsubErr := apictx.sendUnsubscribeToExtension(&appliedSubscription)
				if unsubErr != nil {
					log.Error().Err(unsubErr).
						Str("namespace", deployment.NamespaceID).
						Str("pipeline", deployment.PipelineID).
						Str("extension", appliedSubscription.ExtensionID).
						Msg("could not roll back extension subscription during failed deployment")
				}
			}

			return fmt.Errorf("could not re-subscribe pipeline to extension %q: %w", subscription.ExtensionID, err)
		}

		applied = append(applied, subscription)
	}

	// Both pointer flips happen in one transaction; a failed promotion leaves the start version live.
	return apictx.db.InsideTx(func(tx *sqlx.Tx) error {
		if deployment.StartVersion != deployment.EndVersion {
			err := apictx.db.UpdatePipelineConfig(tx, deployment.NamespaceID, deployment.PipelineID,
				deployment.StartVersion, storage.UpdatablePipelineConfigFields{
					State:      ptr(string(models.PipelineConfigStateDeprecated)),
					Deprecated: ptr(timeNowMilliStr()),
				})
			if err != nil {
				return fmt.Errorf("could not deprecate pipeline config version %d: %w", deployment.StartVersion, err)
			}
		}

		err := apictx.db.UpdatePipelineConfig(tx, deployment.NamespaceID, deployment.PipelineID,
			deployment.EndVersion, storage.UpdatablePipelineConfigFields{
				State: ptr(string(models.PipelineConfigStateLive)),
			})
		if err != nil {
			return fmt.Errorf("could not promote pipeline config version %d to live: %w", deployment.EndVersion, err)
		}

		return nil
	})
}

type (
	ListDeploymentsRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
		Offset      int64  `query:"offset" example:"0" default:"0" doc:"The number of objects to skip before counting objects returned"`
		Limit       int64  `query:"limit" example:"50" default:"50" doc:"Maximum number of objects to return"`
	}
	ListDeploymentsResponse struct {
		Body struct {
			Deployments []models.Deployment `json:"deployments" doc:"All deployments for the pipeline"`
		}
	}
)

func (apictx *APIContext) registerListDeployments(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListDeployments",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/deployments",
		Summary:     "List all deployments for a pipeline",
		Description: "Returns all tracked deployments for a pipeline.",
		Tags:        []string{"Deployments"},
		// Handler //
	}, func(ctx context.Context, request *ListDeploymentsRequest) (*ListDeploymentsResponse, error) {
		if !hasAccess(ctx, request.NamespaceID) {
			return nil, huma.NewError(http.StatusUnauthorized, "token does not have access to this namespace")
		}

		storedDeployments, err := apictx.db.ListDeployments(apictx.db.Read(), int(request.Offset), int(request.Limit),
			request.NamespaceID, request.PipelineID)
		if err != nil {
			log.Error().Err(err).Msg("could not get deployments from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve deployments from database", err)
		}

		deployments := []models.Deployment{}
		for _, storedDeployment := range storedDeployments {
			var deployment models.Deployment
			deployment.FromStorage(&storedDeployment)
			deployments = append(deployments, deployment)
		}

		resp := &ListDeploymentsResponse{}
		resp.Body.Deployments = deployments

		return resp, nil
	})
}

type (
	DescribeDeploymentRequest struct {
		Auth         string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID  string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		PipelineID   string `path:"pipeline_id" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
		DeploymentID int64  `path:"deployment_id" example:"1" doc:"Unique identifier of the target deployment"`
	}
	DescribeDeploymentResponse struct {
		Body struct {
			Deployment models.Deployment `json:"deployment" doc:"The deployment requested"`
		}
	}
)

func (apictx *APIContext) registerDescribeDeployment(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DescribeDeployment",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/deployments/{deployment_id}",
		Summary:     "Describe a single deployment",
		Description: "Returns a single deployment for a pipeline including the events it emitted.",
		Tags:        []string{"Deployments"},
		// Handler //
	}, func(ctx context.Context, request *DescribeDeploymentRequest) (*DescribeDeploymentResponse, error) {
		if !hasAccess(ctx, request.NamespaceID) {
			return nil, huma.NewError(http.StatusUnauthorized, "token does not have access to this namespace")
		}

		storedDeployment, err := apictx.db.GetDeployment(apictx.db.Read(), request.NamespaceID, request.PipelineID,
			request.DeploymentID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "deployment not found")
			}

			log.Error().Err(err).Msg("could not get deployment from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve deployment from database", err)
		}

		var deployment models.Deployment
		deployment.FromStorage(&storedDeployment)

		resp := &DescribeDeploymentResponse{}
		resp.Body.Deployment = deployment

		return resp, nil
	})
}
