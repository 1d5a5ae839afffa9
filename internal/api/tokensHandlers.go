package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/storage"

	"github.com/danielgtaylor/huma/v2"
)

func (apictx *APIContext) registerCreateToken(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID:   "CreateToken",
		Method:        http.MethodPost,
		Path:          "/api/tokens",
		Summary:       "Create a new token",
		Description:   "Create a new API token scoped to a set of namespaces.",
		Tags:          []string{"Tokens"},
		DefaultStatus: http.StatusCreated,
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		Body struct {
			TokenType  models.TokenType  `json:"token_type" example:"CLIENT" doc:"The type of token; management tokens are essentially root"`
			Namespaces []string          `json:"namespaces" example:"[\"default\"]" doc:"Namespaces this token will have access to; entries can be regexes"`
			Metadata   map[string]string `json:"metadata,omitempty" doc:"Extra information about this token in label form"`
			ExpiryHrs  int               `json:"expiry_hrs" example:"24" doc:"How many hours until the token expires"`
		}
	},
	) (*CreateTokenResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		if request.Body.TokenType != models.TokenTypeClient &&
			request.Body.TokenType != models.TokenTypeManagement {
			return nil, huma.NewError(http.StatusBadRequest,
				"token_type must be either CLIENT or MANAGEMENT")
		}

		if len(request.Body.Namespaces) == 0 {
			return nil, huma.NewError(http.StatusBadRequest, "at least one namespace required")
		}

		expiry := time.Duration(request.Body.ExpiryHrs) * time.Hour
		if request.Body.ExpiryHrs == 0 {
			expiry = time.Hour * 876600
		}

		token, hash := apictx.createNewAPIToken()
		newToken := models.NewToken(hash, request.Body.TokenType, request.Body.Namespaces,
			request.Body.Metadata, expiry)

		err := apictx.db.InsertToken(apictx.db.Write(), newToken.ToStorage())
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not save token", err)
		}

		resp := &CreateTokenResponse{}
		resp.Body.Details = *newToken
		resp.Body.Secret = token

		return resp, nil
	})
}

type CreateTokenResponse struct {
	Body struct {
		Details models.Token `json:"details" doc:"Metadata about the created token"`
		Secret  string       `json:"secret" doc:"The token itself; this is the only time it is shown"`
	}
}

func (apictx *APIContext) registerBootstrapToken(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "BootstrapToken",
		Method:      http.MethodPost,
		Path:        "/api/tokens/bootstrap",
		Summary:     "Bootstrap the first management token",
		Description: "Create the initial management token. Works exactly once on a fresh install; afterwards " +
			"all token creation requires an existing management token.",
		Tags:          []string{"Tokens"},
		DefaultStatus: http.StatusCreated,
		// Handler //
	}, func(ctx context.Context, request *struct{},
	) (*CreateTokenResponse, error) {
		managementTokens, err := apictx.db.ListTokensByKind(apictx.db.Read(),
			string(models.TokenTypeManagement))
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not query existing tokens", err)
		}

		if len(managementTokens) != 0 {
			return nil, huma.NewError(http.StatusConflict,
				"bootstrap token already created; use an existing management token instead")
		}

		token, hash := apictx.createNewAPIToken()
		newToken := models.NewToken(hash, models.TokenTypeManagement, []string{".*"},
			map[string]string{"bootstrap_token": "true"}, time.Hour*876600)

		err = apictx.db.InsertToken(apictx.db.Write(), newToken.ToStorage())
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not save token", err)
		}

		resp := &CreateTokenResponse{}
		resp.Body.Details = *newToken
		resp.Body.Secret = token

		return resp, nil
	})
}

func (apictx *APIContext) registerListTokens(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListTokens",
		Method:      http.MethodGet,
		Path:        "/api/tokens",
		Summary:     "List tokens",
		Description: "Returns metadata for all tokens. Token secrets are never returned.",
		Tags:        []string{"Tokens"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth   string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		Offset int    `query:"offset" default:"0" doc:"The offset into the list of tokens"`
		Limit  int    `query:"limit" default:"0" doc:"The limit of how many tokens to return"`
	},
	) (*ListTokensResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		storedTokens, err := apictx.db.ListTokens(apictx.db.Read(), request.Offset, request.Limit)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not get tokens", err)
		}

		tokens := []models.Token{}
		for _, storedToken := range storedTokens {
			storedToken := storedToken
			var token models.Token
			token.FromStorage(&storedToken)
			tokens = append(tokens, token)
		}

		resp := &ListTokensResponse{}
		resp.Body.Tokens = tokens

		return resp, nil
	})
}

type ListTokensResponse struct {
	Body struct {
		Tokens []models.Token `json:"tokens" doc:"A list of token metadata"`
	}
}

func (apictx *APIContext) registerDescribeToken(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DescribeToken",
		Method:      http.MethodGet,
		Path:        "/api/tokens/{token_id}",
		Summary:     "Describe a token",
		Description: "Returns metadata for a single token. The token secret is never returned.",
		Tags:        []string{"Tokens"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth    string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		TokenID string `path:"token_id" example:"de3foi" doc:"The unique identifier for the target token"`
	},
	) (*DescribeTokenResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		storedToken, err := apictx.db.GetToken(apictx.db.Read(), request.TokenID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "token not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get token", err)
		}

		var token models.Token
		token.FromStorage(&storedToken)

		resp := &DescribeTokenResponse{}
		resp.Body.Token = token

		return resp, nil
	})
}

type DescribeTokenResponse struct {
	Body struct {
		Token models.Token `json:"token" doc:"The requested token's metadata"`
	}
}

func (apictx *APIContext) registerEnableToken(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "EnableToken",
		Method:      http.MethodPut,
		Path:        "/api/tokens/{token_id}/enable",
		Summary:     "Enable a token",
		Description: "Re-enable a disabled token.",
		Tags:        []string{"Tokens"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth    string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		TokenID string `path:"token_id" example:"de3foi" doc:"The unique identifier for the target token"`
	},
	) (*ToggleTokenResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		err := apictx.db.UpdateToken(apictx.db.Write(), request.TokenID, storage.UpdatableTokenFields{
			Disabled: ptr(false),
		})
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "token not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not update token", err)
		}

		resp := &ToggleTokenResponse{}

		return resp, nil
	})
}

type ToggleTokenResponse struct{}

func (apictx *APIContext) registerDisableToken(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DisableToken",
		Method:      http.MethodPut,
		Path:        "/api/tokens/{token_id}/disable",
		Summary:     "Disable a token",
		Description: "Disable a token without deleting it. Disabled tokens fail all authentication checks.",
		Tags:        []string{"Tokens"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth    string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		TokenID string `path:"token_id" example:"de3foi" doc:"The unique identifier for the target token"`
	},
	) (*ToggleTokenResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		err := apictx.db.UpdateToken(apictx.db.Write(), request.TokenID, storage.UpdatableTokenFields{
			Disabled: ptr(true),
		})
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "token not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not update token", err)
		}

		resp := &ToggleTokenResponse{}

		return resp, nil
	})
}

func (apictx *APIContext) registerDeleteToken(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DeleteToken",
		Method:      http.MethodDelete,
		Path:        "/api/tokens/{token_id}",
		Summary:     "Delete a token",
		Description: "Permanently remove a token.",
		Tags:        []string{"Tokens"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth    string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		TokenID string `path:"token_id" example:"de3foi" doc:"The unique identifier for the target token"`
	},
	) (*DeleteTokenResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		err := apictx.db.DeleteToken(apictx.db.Write(), request.TokenID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "token not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not delete token", err)
		}

		resp := &DeleteTokenResponse{}

		return resp, nil
	})
}

type DeleteTokenResponse struct{}
