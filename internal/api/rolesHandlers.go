package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/storage"

	"github.com/danielgtaylor/huma/v2"
)

func (apictx *APIContext) registerListRoles(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListRoles",
		Method:      http.MethodGet,
		Path:        "/api/roles",
		Summary:     "List roles",
		Description: "Returns all roles and their permission sets.",
		Tags:        []string{"Roles"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth   string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		Offset int    `query:"offset" default:"0" doc:"The offset into the list of roles"`
		Limit  int    `query:"limit" default:"0" doc:"The limit of how many roles to return"`
	},
	) (*ListRolesResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		storedRoles, err := apictx.db.ListRoles(apictx.db.Read(), request.Offset, request.Limit)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not get roles", err)
		}

		roles := []models.Role{}
		for _, storedRole := range storedRoles {
			storedRole := storedRole
			var role models.Role
			role.FromStorage(&storedRole)
			roles = append(roles, role)
		}

		resp := &ListRolesResponse{}
		resp.Body.Roles = roles

		return resp, nil
	})
}

type ListRolesResponse struct {
	Body struct {
		Roles []models.Role `json:"roles" doc:"A list of roles"`
	}
}

func (apictx *APIContext) registerDescribeRole(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DescribeRole",
		Method:      http.MethodGet,
		Path:        "/api/roles/{role_id}",
		Summary:     "Describe a role",
		Description: "Returns details on a single role.",
		Tags:        []string{"Roles"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth   string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		RoleID string `path:"role_id" example:"operators" doc:"The unique identifier for the target role"`
	},
	) (*DescribeRoleResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		storedRole, err := apictx.db.GetRole(apictx.db.Read(), request.RoleID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "role not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get role", err)
		}

		var role models.Role
		role.FromStorage(&storedRole)

		resp := &DescribeRoleResponse{}
		resp.Body.Role = role

		return resp, nil
	})
}

type DescribeRoleResponse struct {
	Body struct {
		Role models.Role `json:"role" doc:"The requested role"`
	}
}

func (apictx *APIContext) registerCreateRole(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID:   "CreateRole",
		Method:        http.MethodPost,
		Path:          "/api/roles",
		Summary:       "Create a role",
		Description:   "Create a new role with a named set of permissions.",
		Tags:          []string{"Roles"},
		DefaultStatus: http.StatusCreated,
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		Body struct {
			ID          string              `json:"id" example:"operators" doc:"The unique identifier for the new role"`
			Description string              `json:"description,omitempty" doc:"Short description on what the role is used for"`
			Permissions []models.Permission `json:"permissions" doc:"The permission set to grant"`
		}
	},
	) (*CreateRoleResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		if request.Body.ID == "" {
			return nil, huma.NewError(http.StatusBadRequest, "id required")
		}

		newRole := models.NewRole(request.Body.ID, request.Body.Description,
			request.Body.Permissions, false)

		err := apictx.db.InsertRole(apictx.db.Write(), newRole.ToStorage())
		if err != nil {
			if errors.Is(err, storage.ErrEntityExists) {
				return nil, huma.NewError(http.StatusConflict, "role already exists")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not create role", err)
		}

		apictx.events.Publish(models.EventCreatedRole{
			RoleID: request.Body.ID,
		})

		resp := &CreateRoleResponse{}
		resp.Body.Role = *newRole

		return resp, nil
	})
}

type CreateRoleResponse struct {
	Body struct {
		Role models.Role `json:"role" doc:"The newly created role"`
	}
}

func (apictx *APIContext) registerUpdateRole(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "UpdateRole",
		Method:      http.MethodPatch,
		Path:        "/api/roles/{role_id}",
		Summary:     "Update a role",
		Description: "Change a role's description or permission set. System roles cannot be modified.",
		Tags:        []string{"Roles"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth   string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		RoleID string `path:"role_id" example:"operators" doc:"The unique identifier for the target role"`
		Body   struct {
			Description *string              `json:"description,omitempty" doc:"New description for the role"`
			Permissions *[]models.Permission `json:"permissions,omitempty" doc:"New permission set for the role"`
		}
	},
	) (*UpdateRoleResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		storedRole, err := apictx.db.GetRole(apictx.db.Read(), request.RoleID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "role not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get role", err)
		}

		if storedRole.SystemRole {
			return nil, huma.NewError(http.StatusBadRequest, "system roles cannot be modified")
		}

		fields := storage.UpdatableRoleFields{
			Description: request.Body.Description,
		}

		if request.Body.Permissions != nil {
			rawPermissions, err := json.Marshal(request.Body.Permissions)
			if err != nil {
				return nil, huma.NewError(http.StatusBadRequest, "could not serialize permissions", err)
			}

			fields.Permissions = ptr(string(rawPermissions))
		}

		err = apictx.db.UpdateRole(apictx.db.Write(), request.RoleID, fields)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not update role", err)
		}

		resp := &UpdateRoleResponse{}

		return resp, nil
	})
}

type UpdateRoleResponse struct{}

func (apictx *APIContext) registerDeleteRole(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DeleteRole",
		Method:      http.MethodDelete,
		Path:        "/api/roles/{role_id}",
		Summary:     "Delete a role",
		Description: "Permanently remove a role. System roles cannot be removed.",
		Tags:        []string{"Roles"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth   string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		RoleID string `path:"role_id" example:"operators" doc:"The unique identifier for the target role"`
	},
	) (*DeleteRoleResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		storedRole, err := apictx.db.GetRole(apictx.db.Read(), request.RoleID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "role not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get role", err)
		}

		if storedRole.SystemRole {
			return nil, huma.NewError(http.StatusBadRequest, "system roles cannot be removed")
		}

		err = apictx.db.DeleteRole(apictx.db.Write(), request.RoleID)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not delete role", err)
		}

		apictx.events.Publish(models.EventDeletedRole{
			RoleID: request.RoleID,
		})

		resp := &DeleteRoleResponse{}

		return resp, nil
	})
}

type DeleteRoleResponse struct{}
