package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/storage"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

func (apictx *APIContext) registerListExtensions(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListExtensions",
		Method:      http.MethodGet,
		Path:        "/api/extensions",
		Summary:     "List extensions",
		Description: "Returns all installed extensions and their current state.",
		Tags:        []string{"Extensions"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
	},
	) (*ListExtensionsResponse, error) {
		extensions := []models.Extension{}

		for _, extensionID := range apictx.extensions.Keys() {
			extension, exists := apictx.extensions.Get(extensionID)
			if !exists {
				continue
			}

			extensions = append(extensions, *extension)
		}

		resp := &ListExtensionsResponse{}
		resp.Body.Extensions = extensions

		return resp, nil
	})
}

type ListExtensionsResponse struct {
	Body struct {
		Extensions []models.Extension `json:"extensions" doc:"A list of installed extensions"`
	}
}

func (apictx *APIContext) registerDescribeExtension(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DescribeExtension",
		Method:      http.MethodGet,
		Path:        "/api/extensions/{extension_id}",
		Summary:     "Describe an extension",
		Description: "Returns details on a single installed extension, including its documentation.",
		Tags:        []string{"Extensions"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		ExtensionID string `path:"extension_id" example:"cron" doc:"The unique identifier for the target extension"`
	},
	) (*DescribeExtensionResponse, error) {
		extension, exists := apictx.extensions.Get(request.ExtensionID)
		if !exists {
			return nil, huma.NewError(http.StatusNotFound, "extension not found")
		}

		resp := &DescribeExtensionResponse{}
		resp.Body.Extension = *extension

		return resp, nil
	})
}

type DescribeExtensionResponse struct {
	Body struct {
		Extension models.Extension `json:"extension" doc:"The requested extension"`
	}
}

func (apictx *APIContext) registerInstallExtension(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID:   "InstallExtension",
		Method:        http.MethodPost,
		Path:          "/api/extensions",
		Summary:       "Install an extension",
		Description:   "Register a new extension and start its container.",
		Tags:          []string{"Extensions"},
		DefaultStatus: http.StatusCreated,
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		Body struct {
			ID           string               `json:"id" example:"cron" doc:"The unique identifier for the new extension"`
			Image        string               `json:"image" example:"ghcr.io/clintjedwards/gofer/extensions/cron:latest" doc:"Which container image to run for this extension"`
			RegistryAuth *models.RegistryAuth `json:"registry_auth,omitempty" doc:"Auth credentials for the image's registry"`
			Variables    map[string]string    `json:"variables,omitempty" doc:"Env vars to pass to the extension container"`
		}
	},
	) (*InstallExtensionResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		if request.Body.ID == "" || request.Body.Image == "" {
			return nil, huma.NewError(http.StatusBadRequest, "id and image required")
		}

		registration := models.NewExtensionRegistration(request.Body.ID, request.Body.Image,
			request.Body.RegistryAuth,
			convertVarsToSlice(request.Body.Variables, models.VariableSourceSystem))

		err := apictx.db.InsertExtensionRegistration(apictx.db.Write(), registration.ToStorage())
		if err != nil {
			if errors.Is(err, storage.ErrEntityExists) {
				return nil, huma.NewError(http.StatusConflict, "extension already exists")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not install extension", err)
		}

		cert, key, err := apictx.getTLSFromFile(apictx.config.Extensions.TLSCertPath,
			apictx.config.Extensions.TLSKeyPath)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not load extension TLS material", err)
		}

		err = apictx.startExtension(*registration, string(cert), string(key))
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not start extension", err)
		}

		apictx.events.Publish(models.EventInstalledExtension{
			ID:    request.Body.ID,
			Image: request.Body.Image,
		})

		resp := &InstallExtensionResponse{}
		resp.Body.ExtensionID = request.Body.ID

		return resp, nil
	})
}

type InstallExtensionResponse struct {
	Body struct {
		ExtensionID string `json:"extension_id" example:"cron" doc:"The unique identifier for the new extension"`
	}
}

func (apictx *APIContext) registerUninstallExtension(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "UninstallExtension",
		Method:      http.MethodDelete,
		Path:        "/api/extensions/{extension_id}",
		Summary:     "Uninstall an extension",
		Description: "Stop an extension's container and remove its registration. Pipelines subscribed to the " +
			"extension keep their subscription records but stop receiving events.",
		Tags: []string{"Extensions"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		ExtensionID string `path:"extension_id" example:"cron" doc:"The unique identifier for the target extension"`
	},
	) (*UninstallExtensionResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		storedRegistration, err := apictx.db.GetExtensionRegistration(apictx.db.Read(), request.ExtensionID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "extension not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get extension", err)
		}

		apictx.stopExtension(request.ExtensionID)

		err = apictx.db.InsideTx(func(tx *sqlx.Tx) error {
			if storedRegistration.KeyID != "" {
				_ = apictx.db.DeleteToken(tx, storedRegistration.KeyID)
			}

			return apictx.db.DeleteExtensionRegistration(tx, request.ExtensionID)
		})
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not uninstall extension", err)
		}

		apictx.events.Publish(models.EventUninstalledExtension{
			ID:    request.ExtensionID,
			Image: storedRegistration.Image,
		})

		resp := &UninstallExtensionResponse{}

		return resp, nil
	})
}

type UninstallExtensionResponse struct{}

func (apictx *APIContext) registerEnableExtension(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "EnableExtension",
		Method:      http.MethodPut,
		Path:        "/api/extensions/{extension_id}/enable",
		Summary:     "Enable an extension",
		Description: "Mark an extension as enabled, allowing pipelines to subscribe to it. The extension is " +
			"started if it is not already running.",
		Tags: []string{"Extensions"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		ExtensionID string `path:"extension_id" example:"cron" doc:"The unique identifier for the target extension"`
	},
	) (*EnableExtensionResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		storedRegistration, err := apictx.db.GetExtensionRegistration(apictx.db.Read(), request.ExtensionID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "extension not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get extension", err)
		}

		err = apictx.db.UpdateExtensionRegistration(apictx.db.Write(), request.ExtensionID,
			storage.UpdatableExtensionRegistrationFields{
				Status:   ptr(string(models.ExtensionStatusEnabled)),
				Modified: ptr(timeNowMilliStr()),
			})
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not update extension", err)
		}

		if _, running := apictx.extensions.Get(request.ExtensionID); !running {
			var registration models.ExtensionRegistration
			registration.FromStorage(&storedRegistration)
			registration.Status = models.ExtensionStatusEnabled

			cert, key, tlsErr := apictx.getTLSFromFile(apictx.config.Extensions.TLSCertPath,
				apictx.config.Extensions.TLSKeyPath)
			if tlsErr == nil {
				startErr := apictx.startExtension(registration, string(cert), string(key))
				if startErr != nil {
					log.Error().Err(startErr).Str("id", request.ExtensionID).
						Msg("could not start extension during enable")
				}
			}
		}

		apictx.events.Publish(models.EventEnabledExtension{
			ID:    request.ExtensionID,
			Image: storedRegistration.Image,
		})

		resp := &EnableExtensionResponse{}

		return resp, nil
	})
}

type EnableExtensionResponse struct{}

func (apictx *APIContext) registerDisableExtension(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DisableExtension",
		Method:      http.MethodPut,
		Path:        "/api/extensions/{extension_id}/disable",
		Summary:     "Disable an extension",
		Description: "Mark an extension as disabled and stop its container. Existing subscription records stay " +
			"in place for when the extension is enabled again.",
		Tags: []string{"Extensions"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		ExtensionID string `path:"extension_id" example:"cron" doc:"The unique identifier for the target extension"`
	},
	) (*DisableExtensionResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		storedRegistration, err := apictx.db.GetExtensionRegistration(apictx.db.Read(), request.ExtensionID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "extension not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get extension", err)
		}

		err = apictx.db.UpdateExtensionRegistration(apictx.db.Write(), request.ExtensionID,
			storage.UpdatableExtensionRegistrationFields{
				Status:   ptr(string(models.ExtensionStatusDisabled)),
				Modified: ptr(timeNowMilliStr()),
			})
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not update extension", err)
		}

		apictx.stopExtension(request.ExtensionID)

		apictx.events.Publish(models.EventDisabledExtension{
			ID:    request.ExtensionID,
			Image: storedRegistration.Image,
		})

		resp := &DisableExtensionResponse{}

		return resp, nil
	})
}

type DisableExtensionResponse struct{}

func (apictx *APIContext) registerSubscribePipelineExtension(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID:   "SubscribePipelineExtension",
		Method:        http.MethodPost,
		Path:          "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/subscriptions",
		Summary:       "Subscribe a pipeline to an extension",
		Description:   "Register a pipeline with an extension so the extension can trigger runs on its behalf.",
		Tags:          []string{"Subscriptions"},
		DefaultStatus: http.StatusCreated,
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		Body        struct {
			ExtensionID string            `json:"extension_id" example:"cron" doc:"The unique identifier for the target extension"`
			Label       string            `json:"label" example:"every_5_seconds" doc:"A pipeline unique label to differentiate multiple subscriptions to the same extension"`
			Settings    map[string]string `json:"settings,omitempty" doc:"Extension specific subscription settings; consult the extension's documentation"`
		}
	},
	) (*SubscribePipelineExtensionResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		if request.Body.ExtensionID == "" || request.Body.Label == "" {
			return nil, huma.NewError(http.StatusBadRequest, "extension_id and label required")
		}

		extension, exists := apictx.extensions.Get(request.Body.ExtensionID)
		if !exists {
			return nil, huma.NewError(http.StatusNotFound, "extension not found")
		}

		if extension.Registration.Status != models.ExtensionStatusEnabled {
			return nil, huma.NewError(http.StatusFailedDependency, "extension is disabled")
		}

		subscription := models.PipelineExtensionSubscription{
			NamespaceID: namespace,
			PipelineID:  request.PipelineID,
			ExtensionID: request.Body.ExtensionID,
			Label:       request.Body.Label,
			Settings:    request.Body.Settings,
			Status:      models.ExtensionSubscriptionStatusActive,
			StatusReason: models.ExtensionSubscriptionStatusReason{
				Reason: models.ExtensionSubscriptionStatusReasonUnknown,
			},
		}

		err := apictx.sendSubscribeToExtension(&subscription)
		if err != nil {
			return nil, huma.NewError(http.StatusFailedDependency,
				"could not subscribe to extension", err)
		}

		err = apictx.db.InsertExtensionSubscription(apictx.db.Write(), subscription.ToStorage())
		if err != nil {
			if errors.Is(err, storage.ErrEntityExists) {
				// Roll back the extension side registration so the two sides stay in sync.
				_ = apictx.sendUnsubscribeToExtension(&subscription)
				return nil, huma.NewError(http.StatusConflict, "subscription already exists")
			}

			_ = apictx.sendUnsubscribeToExtension(&subscription)
			return nil, huma.NewError(http.StatusInternalServerError, "could not store subscription", err)
		}

		apictx.events.Publish(models.EventPipelineExtensionSubscriptionRegistered{
			NamespaceID:    namespace,
			PipelineID:     request.PipelineID,
			ExtensionID:    request.Body.ExtensionID,
			SubscriptionID: request.Body.Label,
		})

		resp := &SubscribePipelineExtensionResponse{}
		resp.Body.Subscription = subscription

		return resp, nil
	})
}

type SubscribePipelineExtensionResponse struct {
	Body struct {
		Subscription models.PipelineExtensionSubscription `json:"subscription" doc:"The newly created subscription"`
	}
}

func (apictx *APIContext) registerUnsubscribePipelineExtension(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "UnsubscribePipelineExtension",
		Method:      http.MethodDelete,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/subscriptions/{extension_id}/{label}",
		Summary:     "Unsubscribe a pipeline from an extension",
		Description: "Remove a pipeline's subscription to an extension.",
		Tags:        []string{"Subscriptions"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		ExtensionID string `path:"extension_id" example:"cron" doc:"The unique identifier for the target extension"`
		Label       string `path:"label" example:"every_5_seconds" doc:"The subscription's unique label"`
	},
	) (*UnsubscribePipelineExtensionResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		storedSubscription, err := apictx.db.GetExtensionSubscription(apictx.db.Read(), namespace,
			request.PipelineID, request.ExtensionID, request.Label)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "subscription not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get subscription", err)
		}

		var subscription models.PipelineExtensionSubscription
		subscription.FromStorage(&storedSubscription)

		// An unreachable extension shouldn't hold the unsubscribe hostage; the stored record is the
		// source of truth and the extension forgets everything on restart anyway.
		err = apictx.sendUnsubscribeToExtension(&subscription)
		if err != nil {
			log.Warn().Err(err).Str("extension_id", request.ExtensionID).Str("label", request.Label).
				Msg("could not notify extension of unsubscription")
		}

		err = apictx.db.DeleteExtensionSubscription(apictx.db.Write(), namespace, request.PipelineID,
			request.ExtensionID, request.Label)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not delete subscription", err)
		}

		apictx.events.Publish(models.EventPipelineExtensionSubscriptionUnregistered{
			NamespaceID:    namespace,
			PipelineID:     request.PipelineID,
			ExtensionID:    request.ExtensionID,
			SubscriptionID: request.Label,
		})

		resp := &UnsubscribePipelineExtensionResponse{}

		return resp, nil
	})
}

type UnsubscribePipelineExtensionResponse struct{}

func (apictx *APIContext) registerListPipelineExtensionSubscriptions(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListPipelineExtensionSubscriptions",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/subscriptions",
		Summary:     "List pipeline extension subscriptions",
		Description: "Returns all extension subscriptions for a particular pipeline.",
		Tags:        []string{"Subscriptions"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
	},
	) (*ListPipelineExtensionSubscriptionsResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		storedSubscriptions, err := apictx.db.ListExtensionSubscriptions(apictx.db.Read(), namespace,
			request.PipelineID)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not get subscriptions", err)
		}

		subscriptions := []models.PipelineExtensionSubscription{}
		for _, storedSubscription := range storedSubscriptions {
			var subscription models.PipelineExtensionSubscription
			subscription.FromStorage(&storedSubscription)
			subscriptions = append(subscriptions, subscription)
		}

		resp := &ListPipelineExtensionSubscriptionsResponse{}
		resp.Body.Subscriptions = subscriptions

		return resp, nil
	})
}

type ListPipelineExtensionSubscriptionsResponse struct {
	Body struct {
		Subscriptions []models.PipelineExtensionSubscription `json:"subscriptions" doc:"A list of extension subscriptions for the pipeline"`
	}
}
