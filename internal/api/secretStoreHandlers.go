package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/secretStore"
	"github.com/clintjedwards/gofer/internal/storage"

	"github.com/danielgtaylor/huma/v2"
)

func (apictx *APIContext) registerListGlobalSecrets(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListGlobalSecrets",
		Method:      http.MethodGet,
		Path:        "/api/secrets/global",
		Summary:     "List global secrets",
		Description: "Returns the keys of all global secrets along with their namespace filters. " +
			"Secret values are never returned in listings.",
		Tags: []string{"Secrets"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
	},
	) (*ListGlobalSecretsResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		storedKeys, err := apictx.db.ListSecretStoreGlobalKeys(apictx.db.Read())
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not get secret keys", err)
		}

		keys := []models.SecretStoreKey{}
		for _, storedKey := range storedKeys {
			storedKey := storedKey
			var key models.SecretStoreKey
			key.FromGlobalSecretKeyStorage(&storedKey)
			keys = append(keys, key)
		}

		resp := &ListGlobalSecretsResponse{}
		resp.Body.Keys = keys

		return resp, nil
	})
}

type ListGlobalSecretsResponse struct {
	Body struct {
		Keys []models.SecretStoreKey `json:"keys" doc:"The keys of all global secrets"`
	}
}

func (apictx *APIContext) registerGetGlobalSecret(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "GetGlobalSecret",
		Method:      http.MethodGet,
		Path:        "/api/secrets/global/{key}",
		Summary:     "Get a global secret",
		Description: "Returns the metadata for a global secret and optionally its value.",
		Tags:        []string{"Secrets"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth          string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		Key           string `path:"key" example:"example_key" doc:"The secret key"`
		IncludeSecret bool   `query:"include_secret" default:"false" doc:"Include the plaintext secret value in the response"`
	},
	) (*GetGlobalSecretResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		storedKey, err := apictx.db.GetSecretStoreGlobalKey(apictx.db.Read(), request.Key)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "secret not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get secret", err)
		}

		var key models.SecretStoreKey
		key.FromGlobalSecretKeyStorage(&storedKey)

		resp := &GetGlobalSecretResponse{}
		resp.Body.Metadata = key

		if request.IncludeSecret {
			secret, err := apictx.secretStore.GetSecret(globalSecretKey(request.Key))
			if err != nil {
				return nil, huma.NewError(http.StatusInternalServerError, "could not get secret value", err)
			}

			resp.Body.Secret = secret
		}

		return resp, nil
	})
}

type GetGlobalSecretResponse struct {
	Body struct {
		Metadata models.SecretStoreKey `json:"metadata" doc:"Metadata about the secret"`
		Secret   string                `json:"secret,omitempty" doc:"The plaintext secret value, only included when requested"`
	}
}

func (apictx *APIContext) registerPutGlobalSecret(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "PutGlobalSecret",
		Method:      http.MethodPost,
		Path:        "/api/secrets/global",
		Summary:     "Put a global secret",
		Description: "Store a global secret. The namespaces list controls which namespaces may reference the " +
			"secret; entries can be plain namespace ids or regexes.",
		Tags:          []string{"Secrets"},
		DefaultStatus: http.StatusCreated,
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		Body struct {
			Key        string   `json:"key" example:"example_key" doc:"The secret key"`
			Content    string   `json:"content" doc:"The secret value"`
			Namespaces []string `json:"namespaces" example:"[\"default\"]" doc:"Namespaces allowed to reference this secret; regexes allowed"`
			Force      bool     `json:"force,omitempty" default:"false" doc:"Overwrite the secret if the key already exists"`
		}
	},
	) (*PutGlobalSecretResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		if request.Body.Key == "" {
			return nil, huma.NewError(http.StatusBadRequest, "key required")
		}

		newKey := models.NewSecretStoreKey(request.Body.Key, request.Body.Namespaces)

		err := apictx.secretStore.PutSecret(globalSecretKey(request.Body.Key), request.Body.Content,
			request.Body.Force)
		if err != nil {
			if errors.Is(err, secretStore.ErrEntityExists) {
				return nil, huma.NewError(http.StatusConflict,
					"secret already exists; use force to overwrite")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not store secret", err)
		}

		err = apictx.db.InsertSecretStoreGlobalKey(apictx.db.Write(), newKey.ToGlobalSecretKeyStorage())
		if err != nil && !errors.Is(err, storage.ErrEntityExists) {
			return nil, huma.NewError(http.StatusInternalServerError, "could not store secret key", err)
		}

		resp := &PutGlobalSecretResponse{}
		resp.Body.Key = *newKey

		return resp, nil
	})
}

type PutGlobalSecretResponse struct {
	Body struct {
		Key models.SecretStoreKey `json:"key" doc:"The newly stored secret key"`
	}
}

func (apictx *APIContext) registerDeleteGlobalSecret(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DeleteGlobalSecret",
		Method:      http.MethodDelete,
		Path:        "/api/secrets/global/{key}",
		Summary:     "Delete a global secret",
		Description: "Remove a global secret and its namespace filter metadata.",
		Tags:        []string{"Secrets"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		Key  string `path:"key" example:"example_key" doc:"The secret key"`
	},
	) (*DeleteGlobalSecretResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		err := apictx.secretStore.DeleteSecret(globalSecretKey(request.Key))
		if err != nil && !errors.Is(err, secretStore.ErrEntityNotFound) {
			return nil, huma.NewError(http.StatusInternalServerError, "could not delete secret", err)
		}

		err = apictx.db.DeleteSecretStoreGlobalKey(apictx.db.Write(), request.Key)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "secret not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not delete secret key", err)
		}

		resp := &DeleteGlobalSecretResponse{}

		return resp, nil
	})
}

type DeleteGlobalSecretResponse struct{}

func (apictx *APIContext) registerListPipelineSecrets(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListPipelineSecrets",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/secrets",
		Summary:     "List pipeline secrets",
		Description: "Returns the keys of all secrets stored at the pipeline level. Secret values are never " +
			"returned in listings.",
		Tags: []string{"Secrets"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
	},
	) (*ListPipelineSecretsResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		storedKeys, err := apictx.db.ListSecretStorePipelineKeys(apictx.db.Read(), namespace,
			request.PipelineID)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not get secret keys", err)
		}

		keys := []models.SecretStoreKey{}
		for _, storedKey := range storedKeys {
			keys = append(keys, models.SecretStoreKey{
				Key:     storedKey.Key,
				Created: parseUint(storedKey.Created),
			})
		}

		resp := &ListPipelineSecretsResponse{}
		resp.Body.Keys = keys

		return resp, nil
	})
}

type ListPipelineSecretsResponse struct {
	Body struct {
		Keys []models.SecretStoreKey `json:"keys" doc:"The keys of all pipeline secrets"`
	}
}

func (apictx *APIContext) registerGetPipelineSecret(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "GetPipelineSecret",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/secrets/{key}",
		Summary:     "Get a pipeline secret",
		Description: "Returns the metadata for a pipeline secret and optionally its value.",
		Tags:        []string{"Secrets"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth          string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID   string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID    string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		Key           string `path:"key" example:"example_key" doc:"The secret key"`
		IncludeSecret bool   `query:"include_secret" default:"false" doc:"Include the plaintext secret value in the response"`
	},
	) (*GetPipelineSecretResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		secret, err := apictx.secretStore.GetSecret(pipelineSecretKey(namespace, request.PipelineID,
			request.Key))
		if err != nil {
			if errors.Is(err, secretStore.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "secret not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get secret", err)
		}

		resp := &GetPipelineSecretResponse{}
		resp.Body.Key = request.Key

		if request.IncludeSecret {
			resp.Body.Secret = secret
		}

		return resp, nil
	})
}

type GetPipelineSecretResponse struct {
	Body struct {
		Key    string `json:"key" example:"example_key" doc:"The secret key"`
		Secret string `json:"secret,omitempty" doc:"The plaintext secret value, only included when requested"`
	}
}

func (apictx *APIContext) registerPutPipelineSecret(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID:   "PutPipelineSecret",
		Method:        http.MethodPost,
		Path:          "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/secrets",
		Summary:       "Put a pipeline secret",
		Description:   "Store a secret at the pipeline level, referenceable from the pipeline's task configurations.",
		Tags:          []string{"Secrets"},
		DefaultStatus: http.StatusCreated,
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		Body        struct {
			Key     string `json:"key" example:"example_key" doc:"The secret key"`
			Content string `json:"content" doc:"The secret value"`
			Force   bool   `json:"force,omitempty" default:"false" doc:"Overwrite the secret if the key already exists"`
		}
	},
	) (*PutPipelineSecretResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		if request.Body.Key == "" {
			return nil, huma.NewError(http.StatusBadRequest, "key required")
		}

		err := apictx.secretStore.PutSecret(pipelineSecretKey(namespace, request.PipelineID,
			request.Body.Key), request.Body.Content, request.Body.Force)
		if err != nil {
			if errors.Is(err, secretStore.ErrEntityExists) {
				return nil, huma.NewError(http.StatusConflict,
					"secret already exists; use force to overwrite")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not store secret", err)
		}

		newKey := models.NewSecretStoreKey(request.Body.Key, nil)

		err = apictx.db.InsertSecretStorePipelineKey(apictx.db.Write(), &storage.SecretStorePipelineKey{
			Namespace: namespace,
			Pipeline:  request.PipelineID,
			Key:       newKey.Key,
			Created:   fmt.Sprint(newKey.Created),
		})
		if err != nil && !errors.Is(err, storage.ErrEntityExists) {
			return nil, huma.NewError(http.StatusInternalServerError, "could not store secret key", err)
		}

		resp := &PutPipelineSecretResponse{}
		resp.Body.Key = request.Body.Key

		return resp, nil
	})
}

type PutPipelineSecretResponse struct {
	Body struct {
		Key string `json:"key" example:"example_key" doc:"The newly stored secret key"`
	}
}

func (apictx *APIContext) registerDeletePipelineSecret(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DeletePipelineSecret",
		Method:      http.MethodDelete,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/secrets/{key}",
		Summary:     "Delete a pipeline secret",
		Description: "Remove a single pipeline level secret.",
		Tags:        []string{"Secrets"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		Key         string `path:"key" example:"example_key" doc:"The secret key"`
	},
	) (*DeletePipelineSecretResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		err := apictx.secretStore.DeleteSecret(pipelineSecretKey(namespace, request.PipelineID, request.Key))
		if err != nil {
			if errors.Is(err, secretStore.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "secret not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not delete secret", err)
		}

		err = apictx.db.DeleteSecretStorePipelineKey(apictx.db.Write(), namespace, request.PipelineID,
			request.Key)
		if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
			return nil, huma.NewError(http.StatusInternalServerError, "could not delete secret key", err)
		}

		resp := &DeletePipelineSecretResponse{}

		return resp, nil
	})
}

type DeletePipelineSecretResponse struct{}
