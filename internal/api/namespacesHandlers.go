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
	ListNamespacesRequest struct {
		Auth   string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		Offset int64  `query:"offset" example:"0" default:"0" doc:"The number of objects to skip before counting objects returned"`
		Limit  int64  `query:"limit" example:"50" default:"50" doc:"Maximum number of objects to return"`
	}
	ListNamespacesResponse struct {
		Body struct {
			Namespaces []models.Namespace `json:"namespaces" doc:"A list of namespaces"`
		}
	}
)

func (apictx *APIContext) registerListNamespaces(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListNamespaces",
		Method:      http.MethodGet,
		Path:        "/api/namespaces",
		Summary:     "List all namespaces",
		Description: "Returns all registered namespaces.",
		Tags:        []string{"Namespaces"},
		// Handler //
	}, func(_ context.Context, request *ListNamespacesRequest) (*ListNamespacesResponse, error) {
		storedNamespaces, err := apictx.db.ListNamespaces(apictx.db.Read(), int(request.Offset), int(request.Limit))
		if err != nil {
			log.Error().Err(err).Msg("could not get namespaces from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve namespaces from database", err)
		}

		namespaces := []models.Namespace{}
		for _, storedNamespace := range storedNamespaces {
			var namespace models.Namespace
			namespace.FromStorage(&storedNamespace)
			namespaces = append(namespaces, namespace)
		}

		resp := &ListNamespacesResponse{}
		resp.Body.Namespaces = namespaces

		return resp, nil
	})
}

type (
	DescribeNamespaceRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
	}
	DescribeNamespaceResponse struct {
		Body struct {
			Namespace models.Namespace `json:"namespace" doc:"The metadata for the namespace requested"`
		}
	}
)

func (apictx *APIContext) registerDescribeNamespace(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DescribeNamespace",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}",
		Summary:     "Describe a single namespace",
		Description: "Returns the details of a single namespace by ID.",
		Tags:        []string{"Namespaces"},
		// Handler //
	}, func(_ context.Context, request *DescribeNamespaceRequest) (*DescribeNamespaceResponse, error) {
		storedNamespace, err := apictx.db.GetNamespace(apictx.db.Read(), request.NamespaceID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "namespace not found")
			}

			log.Error().Err(err).Msg("could not get namespace from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to retrieve namespace from database", err)
		}

		var namespace models.Namespace
		namespace.FromStorage(&storedNamespace)

		resp := &DescribeNamespaceResponse{}
		resp.Body.Namespace = namespace

		return resp, nil
	})
}

type (
	CreateNamespaceRequest struct {
		Auth string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		Body struct {
			ID          string `json:"id" example:"my_namespace" doc:"Unique identifier for the new namespace"`
			Name        string `json:"name" example:"My Namespace" doc:"Humanized name for the new namespace"`
			Description string `json:"description,omitempty" example:"Namespace for the devops team" doc:"Short description of the namespace"`
		}
	}
	CreateNamespaceResponse struct {
		Body struct {
			Namespace models.Namespace `json:"namespace" doc:"The newly created namespace"`
		}
	}
)

func (apictx *APIContext) registerCreateNamespace(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID:   "CreateNamespace",
		Method:        http.MethodPost,
		Path:          "/api/namespaces",
		Summary:       "Create a new namespace",
		DefaultStatus: http.StatusCreated,
		Description: "Creates a new namespace that can be used to separate collections of pipelines. Requires a " +
			"management token.",
		Tags: []string{"Namespaces"},
		// Handler //
	}, func(ctx context.Context, request *CreateNamespaceRequest) (*CreateNamespaceResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized, "management token required for this action")
		}

		if request.Body.ID == "" {
			return nil, huma.NewError(http.StatusBadRequest, "id required")
		}

		newNamespace := models.NewNamespace(request.Body.ID, request.Body.Name, request.Body.Description)

		err := apictx.db.InsertNamespace(apictx.db.Write(), newNamespace.ToStorage())
		if err != nil {
			if errors.Is(err, storage.ErrEntityExists) {
				return nil, huma.NewError(http.StatusConflict, "namespace already exists")
			}

			log.Error().Err(err).Msg("could not insert namespace into storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to insert namespace into database", err)
		}

		apictx.events.Publish(models.EventCreatedNamespace{
			NamespaceID: newNamespace.ID,
		})

		resp := &CreateNamespaceResponse{}
		resp.Body.Namespace = *newNamespace

		return resp, nil
	})
}

type (
	UpdateNamespaceRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
		Body        struct {
			Name        *string `json:"name,omitempty" example:"My Namespace" doc:"Humanized name for the namespace"`
			Description *string `json:"description,omitempty" example:"Namespace for the devops team" doc:"Short description of the namespace"`
		}
	}
	UpdateNamespaceResponse struct{}
)

func (apictx *APIContext) registerUpdateNamespace(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "UpdateNamespace",
		Method:      http.MethodPatch,
		Path:        "/api/namespaces/{namespace_id}",
		Summary:     "Update a namespace's details",
		Description: "Updates the name or description of an existing namespace. Requires a management token.",
		Tags:        []string{"Namespaces"},
		// Handler //
	}, func(ctx context.Context, request *UpdateNamespaceRequest) (*UpdateNamespaceResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized, "management token required for this action")
		}

		err := apictx.db.UpdateNamespace(apictx.db.Write(), request.NamespaceID, storage.UpdatableNamespaceFields{
			Name:        request.Body.Name,
			Description: request.Body.Description,
			Modified:    ptr(timeNowMilliStr()),
		})
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "namespace not found")
			}

			log.Error().Err(err).Msg("could not update namespace in storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to update namespace in database", err)
		}

		return &UpdateNamespaceResponse{}, nil
	})
}

type (
	DeleteNamespaceRequest struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"Unique identifier of the target namespace"`
	}
	DeleteNamespaceResponse struct{}
)

func (apictx *APIContext) registerDeleteNamespace(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DeleteNamespace",
		Method:      http.MethodDelete,
		Path:        "/api/namespaces/{namespace_id}",
		Summary:     "Delete a namespace",
		Description: "Removes a namespace and cascades the removal to everything stored underneath it. Requires a " +
			"management token.",
		Tags: []string{"Namespaces"},
		// Handler //
	}, func(ctx context.Context, request *DeleteNamespaceRequest) (*DeleteNamespaceResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized, "management token required for this action")
		}

		if request.NamespaceID == namespaceDefaultID {
			return nil, huma.NewError(http.StatusBadRequest, "default namespace cannot be deleted")
		}

		err := apictx.db.DeleteNamespace(apictx.db.Write(), request.NamespaceID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "namespace not found")
			}

			log.Error().Err(err).Msg("could not delete namespace from storage")
			return nil, huma.NewError(http.StatusInternalServerError, "failed to delete namespace from database", err)
		}

		apictx.events.Publish(models.EventDeletedNamespace{
			NamespaceID: request.NamespaceID,
		})

		return &DeleteNamespaceResponse{}, nil
	})
}
