package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/objectStore"
	"github.com/clintjedwards/gofer/internal/storage"

	"github.com/danielgtaylor/huma/v2"
)

// addPipelineObject stores a new pipeline level object and evicts the oldest one if the pipeline
// has gone over its object limit. Pipeline objects never expire on their own so the limit is the
// only thing keeping them in check.
func (apictx *APIContext) addPipelineObject(namespace, pipeline, key string, content []byte,
	force bool,
) (evictedKey string, err error) {
	keys, err := apictx.db.ListObjectStorePipelineKeys(apictx.db.Read(), namespace, pipeline)
	if err != nil {
		return "", err
	}

	isCurrentKey := false
	for _, storedKey := range keys {
		if storedKey.Key == key {
			isCurrentKey = true
			break
		}
	}

	if len(keys) >= apictx.config.ObjectStore.PipelineObjectLimit && !isCurrentKey {
		// Keys are returned oldest first; the first one is the eviction candidate.
		evicted := keys[0]

		err = apictx.objectStore.DeleteObject(pipelineObjectKey(namespace, pipeline, evicted.Key))
		if err != nil {
			return "", err
		}

		err = apictx.db.DeleteObjectStorePipelineKey(apictx.db.Write(), namespace, pipeline, evicted.Key)
		if err != nil {
			return "", err
		}

		evictedKey = evicted.Key
	}

	err = apictx.objectStore.PutObject(pipelineObjectKey(namespace, pipeline, key), content, force)
	if err != nil {
		return "", err
	}

	if !isCurrentKey {
		newKey := models.NewObjectStoreKey(key)
		err = apictx.db.InsertObjectStorePipelineKey(apictx.db.Write(), &storage.ObjectStorePipelineKey{
			Namespace: namespace,
			Pipeline:  pipeline,
			Key:       newKey.Key,
			Created:   fmt.Sprint(newKey.Created),
		})
		if err != nil {
			return "", err
		}
	}

	return evictedKey, nil
}

// addRunObject stores a new run level object. Run objects are expired wholesale by run depth so
// there is no per-key limit here.
func (apictx *APIContext) addRunObject(namespace, pipeline string, run int64, key string,
	content []byte, force bool,
) error {
	err := apictx.objectStore.PutObject(runObjectKey(namespace, pipeline, run, key), content, force)
	if err != nil {
		return err
	}

	newKey := models.NewObjectStoreKey(key)
	err = apictx.db.InsertObjectStoreRunKey(apictx.db.Write(), &storage.ObjectStoreRunKey{
		Namespace: namespace,
		Pipeline:  pipeline,
		Run:       run,
		Key:       newKey.Key,
		Created:   fmt.Sprint(newKey.Created),
	})
	if err != nil && !errors.Is(err, storage.ErrEntityExists) {
		return err
	}

	return nil
}

func (apictx *APIContext) registerListPipelineObjects(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListPipelineObjects",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/objects",
		Summary:     "List pipeline objects",
		Description: "Returns the keys of all objects stored at the pipeline level.",
		Tags:        []string{"Objects"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
	},
	) (*ListPipelineObjectsResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		storedKeys, err := apictx.db.ListObjectStorePipelineKeys(apictx.db.Read(), namespace,
			request.PipelineID)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not get object keys", err)
		}

		keys := []models.ObjectStoreKey{}
		for _, storedKey := range storedKeys {
			keys = append(keys, models.ObjectStoreKey{
				Key:     storedKey.Key,
				Created: parseUint(storedKey.Created),
			})
		}

		resp := &ListPipelineObjectsResponse{}
		resp.Body.Keys = keys

		return resp, nil
	})
}

type ListPipelineObjectsResponse struct {
	Body struct {
		Keys []models.ObjectStoreKey `json:"keys" doc:"The object keys stored at the pipeline level"`
	}
}

func (apictx *APIContext) registerGetPipelineObject(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "GetPipelineObject",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/objects/{key}",
		Summary:     "Get a pipeline object",
		Description: "Returns the content of a single pipeline level object, base64 encoded.",
		Tags:        []string{"Objects"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		Key         string `path:"key" example:"example_key" doc:"The object key"`
	},
	) (*GetPipelineObjectResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		content, err := apictx.objectStore.GetObject(pipelineObjectKey(namespace, request.PipelineID,
			request.Key))
		if err != nil {
			if errors.Is(err, objectStore.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "object not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get object", err)
		}

		resp := &GetPipelineObjectResponse{}
		resp.Body.Content = base64.StdEncoding.EncodeToString(content)

		return resp, nil
	})
}

type GetPipelineObjectResponse struct {
	Body struct {
		Content string `json:"content" doc:"The object content, base64 encoded"`
	}
}

func (apictx *APIContext) registerPutPipelineObject(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "PutPipelineObject",
		Method:      http.MethodPost,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/objects",
		Summary:     "Put a pipeline object",
		Description: "Store an object at the pipeline level. If the pipeline is over its object limit the " +
			"oldest object is evicted to make room.",
		Tags:          []string{"Objects"},
		DefaultStatus: http.StatusCreated,
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		Body        struct {
			Key     string `json:"key" example:"example_key" doc:"The object key"`
			Content string `json:"content" doc:"The object content, base64 encoded"`
			Force   bool   `json:"force,omitempty" default:"false" doc:"Overwrite the object if the key already exists"`
		}
	},
	) (*PutPipelineObjectResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		content, err := base64.StdEncoding.DecodeString(request.Body.Content)
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "content must be base64 encoded", err)
		}

		evictedKey, err := apictx.addPipelineObject(namespace, request.PipelineID, request.Body.Key,
			content, request.Body.Force)
		if err != nil {
			if errors.Is(err, objectStore.ErrEntityExists) {
				return nil, huma.NewError(http.StatusConflict,
					"object already exists; use force to overwrite")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not store object", err)
		}

		resp := &PutPipelineObjectResponse{}
		resp.Body.Bytes = int64(len(content))
		resp.Body.EvictedKey = evictedKey

		return resp, nil
	})
}

type PutPipelineObjectResponse struct {
	Body struct {
		Bytes      int64  `json:"bytes" example:"1024" doc:"The number of bytes stored"`
		EvictedKey string `json:"evicted_key,omitempty" doc:"The key that was evicted to make room, if any"`
	}
}

func (apictx *APIContext) registerDeletePipelineObject(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DeletePipelineObject",
		Method:      http.MethodDelete,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/objects/{key}",
		Summary:     "Delete a pipeline object",
		Description: "Remove a single pipeline level object.",
		Tags:        []string{"Objects"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		Key         string `path:"key" example:"example_key" doc:"The object key"`
	},
	) (*DeletePipelineObjectResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		err := apictx.objectStore.DeleteObject(pipelineObjectKey(namespace, request.PipelineID, request.Key))
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not delete object", err)
		}

		err = apictx.db.DeleteObjectStorePipelineKey(apictx.db.Write(), namespace, request.PipelineID,
			request.Key)
		if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
			return nil, huma.NewError(http.StatusInternalServerError, "could not delete object key", err)
		}

		resp := &DeletePipelineObjectResponse{}

		return resp, nil
	})
}

type DeletePipelineObjectResponse struct{}

func (apictx *APIContext) registerListRunObjects(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListRunObjects",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/runs/{run_id}/objects",
		Summary:     "List run objects",
		Description: "Returns the keys of all objects stored at the run level.",
		Tags:        []string{"Objects"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		RunID       int64  `path:"run_id" example:"1" doc:"The unique identifier for the target run"`
	},
	) (*ListRunObjectsResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		storedKeys, err := apictx.db.ListObjectStoreRunKeys(apictx.db.Read(), namespace,
			request.PipelineID, request.RunID)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not get object keys", err)
		}

		keys := []models.ObjectStoreKey{}
		for _, storedKey := range storedKeys {
			keys = append(keys, models.ObjectStoreKey{
				Key:     storedKey.Key,
				Created: parseUint(storedKey.Created),
			})
		}

		resp := &ListRunObjectsResponse{}
		resp.Body.Keys = keys

		return resp, nil
	})
}

type ListRunObjectsResponse struct {
	Body struct {
		Keys []models.ObjectStoreKey `json:"keys" doc:"The object keys stored at the run level"`
	}
}

func (apictx *APIContext) registerGetRunObject(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "GetRunObject",
		Method:      http.MethodGet,
		Path:        "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/runs/{run_id}/objects/{key}",
		Summary:     "Get a run object",
		Description: "Returns the content of a single run level object, base64 encoded.",
		Tags:        []string{"Objects"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		RunID       int64  `path:"run_id" example:"1" doc:"The unique identifier for the target run"`
		Key         string `path:"key" example:"example_key" doc:"The object key"`
	},
	) (*GetRunObjectResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		content, err := apictx.objectStore.GetObject(runObjectKey(namespace, request.PipelineID,
			request.RunID, request.Key))
		if err != nil {
			if errors.Is(err, objectStore.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "object not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get object", err)
		}

		resp := &GetRunObjectResponse{}
		resp.Body.Content = base64.StdEncoding.EncodeToString(content)

		return resp, nil
	})
}

type GetRunObjectResponse struct {
	Body struct {
		Content string `json:"content" doc:"The object content, base64 encoded"`
	}
}

func (apictx *APIContext) registerPutRunObject(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID:   "PutRunObject",
		Method:        http.MethodPost,
		Path:          "/api/namespaces/{namespace_id}/pipelines/{pipeline_id}/runs/{run_id}/objects",
		Summary:       "Put a run object",
		Description:   "Store an object at the run level. Run objects are removed wholesale once the run ages out.",
		Tags:          []string{"Objects"},
		DefaultStatus: http.StatusCreated,
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth        string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		NamespaceID string `path:"namespace_id" example:"default" doc:"The unique identifier for the target namespace"`
		PipelineID  string `path:"pipeline_id" example:"simple_pipeline" doc:"The unique identifier for the target pipeline"`
		RunID       int64  `path:"run_id" example:"1" doc:"The unique identifier for the target run"`
		Body        struct {
			Key     string `json:"key" example:"example_key" doc:"The object key"`
			Content string `json:"content" doc:"The object content, base64 encoded"`
			Force   bool   `json:"force,omitempty" default:"false" doc:"Overwrite the object if the key already exists"`
		}
	},
	) (*PutRunObjectResponse, error) {
		namespace := request.NamespaceID

		if !hasAccess(ctx, namespace) {
			return nil, huma.NewError(http.StatusUnauthorized, "token not valid for namespace")
		}

		content, err := base64.StdEncoding.DecodeString(request.Body.Content)
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "content must be base64 encoded", err)
		}

		err = apictx.addRunObject(namespace, request.PipelineID, request.RunID, request.Body.Key,
			content, request.Body.Force)
		if err != nil {
			if errors.Is(err, objectStore.ErrEntityExists) {
				return nil, huma.NewError(http.StatusConflict,
					"object already exists; use force to overwrite")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not store object", err)
		}

		resp := &PutRunObjectResponse{}
		resp.Body.Bytes = int64(len(content))

		return resp, nil
	})
}

type PutRunObjectResponse struct {
	Body struct {
		Bytes int64 `json:"bytes" example:"1024" doc:"The number of bytes stored"`
	}
}
